package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/codec"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(codec.NewIntervalCodec(), nil)
}

func mustAppend(t *testing.T, l *Ledger, agentID string, snap profile.Snapshot) string {
	t.Helper()
	hash, err := l.AppendBlock(context.Background(), agentID, snap, 1.0, nil, nil)
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	return hash
}

// testBlock builds an accepted-looking block with an explicit timestamp so
// recency queries are deterministic.
func testBlock(t *testing.T, agentID string, ts time.Time, prevHash string, deps []string) *block.Block {
	t.Helper()
	scan, err := codec.NewIntervalCodec().Encode(context.Background(),
		profile.FromSnapshot(agentID, profile.Snapshot{Skills: []string{"s1"}, AverageAccuracy: 0.5}), 1.0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return block.New(agentID, scan, ts, prevHash, deps, nil)
}

func TestAppendBuildsChain(t *testing.T) {
	l := newTestLedger(t)

	const n = 5
	for i := 0; i < n; i++ {
		mustAppend(t, l, "a1", profile.Snapshot{Skills: []string{"s1"}, AverageAccuracy: 0.5, LearningIterations: i})
	}

	chain := l.GetHistory("a1", 0)
	if len(chain) != n {
		t.Fatalf("chain length = %d, want %d", len(chain), n)
	}
	if chain[0].PrevHash != "" {
		t.Fatalf("first block has prev hash %q", chain[0].PrevHash)
	}
	for i := 1; i < n; i++ {
		if chain[i].PrevHash != chain[i-1].Hash {
			t.Fatalf("block %d prev hash %q, want %q", i, chain[i].PrevHash, chain[i-1].Hash)
		}
	}
}

func TestGetStateReconstruction(t *testing.T) {
	l := newTestLedger(t)
	hash := mustAppend(t, l, "a1", profile.Snapshot{
		Skills:             []string{"s1", "s2"},
		AverageAccuracy:    0.8,
		LearningIterations: 3,
	})

	state, err := l.GetState(context.Background(), "a1", 1.0, "")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	// Wealth 350 reads back as 3 skills + 1 iteration; lossy on purpose.
	if state.SkillCount != 3 {
		t.Fatalf("skill count = %d, want 3", state.SkillCount)
	}
	if state.AverageAccuracy != 0.8 {
		t.Fatalf("accuracy = %f, want 0.8", state.AverageAccuracy)
	}
	if state.NeedsTraining {
		t.Fatal("hunger 20 must not need training")
	}

	// Explicit hash resolves to the same block.
	byHash, err := l.GetState(context.Background(), "a1", 1.0, hash)
	if err != nil {
		t.Fatalf("GetState by hash: %v", err)
	}
	if byHash.SkillCount != state.SkillCount {
		t.Fatalf("by-hash state differs: %+v vs %+v", byHash, state)
	}
}

func TestGetStateNotFound(t *testing.T) {
	l := newTestLedger(t)
	hash := mustAppend(t, l, "a1", profile.Snapshot{AverageAccuracy: 0.5})

	if _, err := l.GetState(context.Background(), "nobody", 1.0, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown agent: err = %v", err)
	}
	if _, err := l.GetState(context.Background(), "a1", 1.0, "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown hash: err = %v", err)
	}
	// A real hash owned by a different agent is still not found.
	if _, err := l.GetState(context.Background(), "a2", 1.0, hash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("agent mismatch: err = %v", err)
	}
}

func TestGetHistoryLimit(t *testing.T) {
	l := newTestLedger(t)
	var hashes []string
	for i := 0; i < 4; i++ {
		hashes = append(hashes, mustAppend(t, l, "a1", profile.Snapshot{LearningIterations: i}))
	}

	got := l.GetHistory("a1", 2)
	if len(got) != 2 {
		t.Fatalf("history length = %d, want 2", len(got))
	}
	// Most recent two, oldest first.
	if got[0].Hash != hashes[2] || got[1].Hash != hashes[3] {
		t.Fatalf("history = [%s %s], want [%s %s]", got[0].Hash, got[1].Hash, hashes[2], hashes[3])
	}

	if got := l.GetHistory("nobody", 10); len(got) != 0 {
		t.Fatalf("unknown agent history length = %d", len(got))
	}
}

func TestGetBlock(t *testing.T) {
	l := newTestLedger(t)
	hash := mustAppend(t, l, "a1", profile.Snapshot{})

	b, err := l.GetBlock(hash)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if b.AgentID != "a1" {
		t.Fatalf("agent = %s", b.AgentID)
	}
	if _, err := l.GetBlock("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing block: err = %v", err)
	}
}

func TestGetAgentAtTime(t *testing.T) {
	l := newTestLedger(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	b1 := testBlock(t, "a1", base, "", nil)
	b2 := testBlock(t, "a1", base.Add(10*time.Second), b1.Hash, nil)
	b3 := testBlock(t, "a1", base.Add(30*time.Second), b2.Hash, nil)
	for _, b := range []*block.Block{b1, b2, b3} {
		if err := l.Insert(b); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	// 12s in: closest is b2.
	state, err := l.GetAgentAtTime(context.Background(), "a1", base.Add(12*time.Second), 1.0)
	if err != nil {
		t.Fatalf("GetAgentAtTime: %v", err)
	}
	if !state.Timestamp.Equal(b2.Timestamp) {
		t.Fatalf("picked %v, want %v", state.Timestamp, b2.Timestamp)
	}

	// 20s in: equidistant between b2 and b3; earliest in chain order wins.
	state, err = l.GetAgentAtTime(context.Background(), "a1", base.Add(20*time.Second), 1.0)
	if err != nil {
		t.Fatalf("GetAgentAtTime: %v", err)
	}
	if !state.Timestamp.Equal(b2.Timestamp) {
		t.Fatalf("tie-break picked %v, want %v", state.Timestamp, b2.Timestamp)
	}

	if _, err := l.GetAgentAtTime(context.Background(), "nobody", base, 1.0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown agent: err = %v", err)
	}
}

func TestGetEntangledStates(t *testing.T) {
	l := newTestLedger(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	dep := testBlock(t, "a2", base, "", nil)
	if err := l.Insert(dep); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Latest a1 block depends on one resolvable and one unknown hash.
	own := testBlock(t, "a1", base.Add(time.Second), "", []string{dep.Hash, "unresolved"})
	if err := l.Insert(own); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	entangled, err := l.GetEntangledStates(context.Background(), "a1", 1.0)
	if err != nil {
		t.Fatalf("GetEntangledStates: %v", err)
	}
	if len(entangled) != 1 {
		t.Fatalf("entangled count = %d, want 1 (unresolved skipped)", len(entangled))
	}
	if entangled[0].AgentID != "a2" || entangled[0].BlockHash != dep.Hash {
		t.Fatalf("entangled = %+v", entangled[0])
	}

	// No blocks at all: empty, not an error.
	empty, err := l.GetEntangledStates(context.Background(), "nobody", 1.0)
	if err != nil {
		t.Fatalf("GetEntangledStates: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no entangled states, got %d", len(empty))
	}
}

func TestGetGlobalKnowledge(t *testing.T) {
	l := newTestLedger(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Eight blocks across two agents with interleaved timestamps.
	var prev1, prev2 string
	for i := 0; i < 4; i++ {
		b := testBlock(t, "a1", base.Add(time.Duration(2*i)*time.Second), prev1, nil)
		prev1 = b.Hash
		if err := l.Insert(b); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		b = testBlock(t, "a2", base.Add(time.Duration(2*i+1)*time.Second), prev2, nil)
		prev2 = b.Hash
		if err := l.Insert(b); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	knowledge, err := l.GetGlobalKnowledge(context.Background(), 1.0, 5)
	if err != nil {
		t.Fatalf("GetGlobalKnowledge: %v", err)
	}
	if len(knowledge) != 5 {
		t.Fatalf("knowledge length = %d, want 5", len(knowledge))
	}
	for i := 1; i < len(knowledge); i++ {
		if knowledge[i].Timestamp.After(knowledge[i-1].Timestamp) {
			t.Fatalf("knowledge not in descending timestamp order at %d", i)
		}
	}
	// Largest timestamp overall is a2's last block (base+7s).
	if !knowledge[0].Timestamp.Equal(base.Add(7 * time.Second)) {
		t.Fatalf("most recent entry at %v", knowledge[0].Timestamp)
	}

	// Fewer blocks than limit returns what exists.
	all, err := l.GetGlobalKnowledge(context.Background(), 1.0, 100)
	if err != nil {
		t.Fatalf("GetGlobalKnowledge: %v", err)
	}
	if len(all) != 8 {
		t.Fatalf("knowledge length = %d, want 8", len(all))
	}
}

func TestHeadsExposesForks(t *testing.T) {
	l := newTestLedger(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	root := testBlock(t, "a1", base, "", nil)
	forkA := testBlock(t, "a1", base.Add(time.Second), root.Hash, nil)
	forkB := testBlock(t, "a1", base.Add(2*time.Second), root.Hash, nil)
	for _, b := range []*block.Block{root, forkA, forkB} {
		if err := l.Insert(b); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	heads := l.Heads("a1")
	if len(heads) != 2 {
		t.Fatalf("heads = %d, want 2", len(heads))
	}
	seen := map[string]bool{}
	for _, h := range heads {
		seen[h.Hash] = true
	}
	if !seen[forkA.Hash] || !seen[forkB.Hash] {
		t.Fatalf("heads missing a fork tip: %v", seen)
	}
}

// #region journal-tests
type countingJournal struct {
	appended []string
	fail     bool
}

func (j *countingJournal) AppendBlock(b *block.Block) error {
	if j.fail {
		return errors.New("disk full")
	}
	j.appended = append(j.appended, b.Hash)
	return nil
}

func TestJournalReceivesAcceptedBlocks(t *testing.T) {
	j := &countingJournal{}
	l := New(codec.NewIntervalCodec(), j)

	hash, err := l.AppendBlock(context.Background(), "a1", profile.Snapshot{}, 1.0, nil, nil)
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if len(j.appended) != 1 || j.appended[0] != hash {
		t.Fatalf("journal saw %v, want [%s]", j.appended, hash)
	}
}

func TestJournalFailureAbortsAppend(t *testing.T) {
	j := &countingJournal{fail: true}
	l := New(codec.NewIntervalCodec(), j)

	if _, err := l.AppendBlock(context.Background(), "a1", profile.Snapshot{}, 1.0, nil, nil); err == nil {
		t.Fatal("expected journal failure to abort append")
	}
	if l.Len() != 0 {
		t.Fatalf("ledger indexed a block whose journal write failed: len = %d", l.Len())
	}
}

func TestMultiJournalPartialWriteIsRetryable(t *testing.T) {
	first := &countingJournal{}
	second := &countingJournal{fail: true}
	l := New(codec.NewIntervalCodec(), MultiJournal{first, second})

	b := testBlock(t, "a1", time.Now().UTC(), "", nil)
	if err := l.Insert(b); err == nil {
		t.Fatal("expected second journal's failure to abort the insert")
	}
	if l.Len() != 0 {
		t.Fatalf("ledger indexed a partially journaled block: len = %d", l.Len())
	}
	// The first journal kept its write; re-delivery must tolerate that.
	if len(first.appended) != 1 {
		t.Fatalf("first journal saw %v, want one entry", first.appended)
	}

	second.fail = false
	if err := l.Insert(b); err != nil {
		t.Fatalf("retry after journal recovery: %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d after retry, want 1", l.Len())
	}
	if len(second.appended) != 1 || second.appended[0] != b.Hash {
		t.Fatalf("second journal saw %v, want [%s]", second.appended, b.Hash)
	}
}

func TestRestoreDoesNotJournal(t *testing.T) {
	j := &countingJournal{}
	l := New(codec.NewIntervalCodec(), j)

	b := testBlock(t, "a1", time.Now().UTC(), "", nil)
	if err := l.Restore([]*block.Block{b, b}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("duplicate restore indexed twice: len = %d", l.Len())
	}
	if len(j.appended) != 0 {
		t.Fatalf("restore must not re-journal, saw %v", j.appended)
	}
}
// #endregion journal-tests

func TestConcurrentAppends(t *testing.T) {
	l := newTestLedger(t)

	const agents, perAgent = 4, 25
	var wg sync.WaitGroup
	for a := 0; a < agents; a++ {
		wg.Add(1)
		go func(a int) {
			defer wg.Done()
			agentID := fmt.Sprintf("agent-%d", a)
			for i := 0; i < perAgent; i++ {
				if _, err := l.AppendBlock(context.Background(), agentID, profile.Snapshot{LearningIterations: i}, 1.0, nil, nil); err != nil {
					t.Errorf("AppendBlock: %v", err)
					return
				}
			}
		}(a)
	}
	wg.Wait()

	if l.Len() != agents*perAgent {
		t.Fatalf("len = %d, want %d", l.Len(), agents*perAgent)
	}
	for a := 0; a < agents; a++ {
		chain := l.GetHistory(fmt.Sprintf("agent-%d", a), 0)
		if len(chain) != perAgent {
			t.Fatalf("agent %d chain length = %d", a, len(chain))
		}
		for i := 1; i < len(chain); i++ {
			if chain[i].PrevHash != chain[i-1].Hash {
				t.Fatalf("agent %d chain broken at %d", a, i)
			}
		}
	}
}
