package logging

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS acceptance_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id     TEXT NOT NULL,
	block_hash  TEXT NOT NULL,
	agent_id    TEXT NOT NULL,
	decision    TEXT NOT NULL,
	reason      TEXT,
	missing     TEXT,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_acceptance_block ON acceptance_log(block_hash);
`

// EnsureSchema creates the acceptance log table.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("acceptance log schema: %w", err)
	}
	return nil
}
// #endregion schema

// #region entry
// AcceptanceEntry is one validation verdict, kept for audit: which node
// decided what about which block, and why.
type AcceptanceEntry struct {
	NodeID    string
	BlockHash string
	AgentID   string
	Decision  string // "accept" | "duplicate" | "pending"
	Reason    string
	Missing   []string
	CreatedAt time.Time
}
// #endregion entry

// #region log-acceptance
// LogAcceptance writes one verdict to the acceptance_log table.
func LogAcceptance(db *sql.DB, entry AcceptanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO acceptance_log (node_id, block_hash, agent_id, decision, reason, missing, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.NodeID,
		entry.BlockHash,
		entry.AgentID,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(strings.Join(entry.Missing, ",")),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log acceptance: %w", err)
	}
	return nil
}
// #endregion log-acceptance

// #region recent
// RecentEntries returns the newest limit verdicts, newest first.
func RecentEntries(db *sql.DB, limit int) ([]AcceptanceEntry, error) {
	rows, err := db.Query(
		`SELECT node_id, block_hash, agent_id, decision, reason, missing, created_at
		 FROM acceptance_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent acceptance entries: %w", err)
	}
	defer rows.Close()

	var entries []AcceptanceEntry
	for rows.Next() {
		var e AcceptanceEntry
		var reason, missing sql.NullString
		var createdStr string
		if err := rows.Scan(&e.NodeID, &e.BlockHash, &e.AgentID, &e.Decision, &reason, &missing, &createdStr); err != nil {
			return nil, fmt.Errorf("scan acceptance row: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		if missing.Valid && missing.String != "" {
			e.Missing = strings.Split(missing.String, ",")
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion recent

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
