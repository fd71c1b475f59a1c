package logging

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return db
}

func TestLogAndReadBack(t *testing.T) {
	db := tempDB(t)

	entries := []AcceptanceEntry{
		{NodeID: "n1", BlockHash: "h1", AgentID: "a1", Decision: "accept"},
		{NodeID: "n1", BlockHash: "h2", AgentID: "a1", Decision: "pending",
			Reason: "2 unresolved prerequisite(s)", Missing: []string{"h3", "h4"}},
		{NodeID: "n1", BlockHash: "h1", AgentID: "a1", Decision: "duplicate"},
	}
	for _, e := range entries {
		if err := LogAcceptance(db, e); err != nil {
			t.Fatalf("LogAcceptance: %v", err)
		}
	}

	got, err := RecentEntries(db, 10)
	if err != nil {
		t.Fatalf("RecentEntries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3", len(got))
	}
	// Newest first.
	if got[0].Decision != "duplicate" || got[2].Decision != "accept" {
		t.Fatalf("order wrong: %+v", got)
	}
	if got[1].Reason != "2 unresolved prerequisite(s)" {
		t.Fatalf("reason = %q", got[1].Reason)
	}
	if len(got[1].Missing) != 2 || got[1].Missing[0] != "h3" {
		t.Fatalf("missing = %v", got[1].Missing)
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("created_at not populated")
	}
}

func TestRecentEntriesLimit(t *testing.T) {
	db := tempDB(t)
	for i := 0; i < 5; i++ {
		if err := LogAcceptance(db, AcceptanceEntry{NodeID: "n1", BlockHash: "h", AgentID: "a1", Decision: "accept"}); err != nil {
			t.Fatalf("LogAcceptance: %v", err)
		}
	}
	got, err := RecentEntries(db, 2)
	if err != nil {
		t.Fatalf("RecentEntries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
}
