package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/codec"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
)

// ErrNotFound is returned for unknown agents, unknown hashes, and
// hash/agent mismatches. It is the only absent-result signal the ledger
// emits; nothing here is fatal.
var ErrNotFound = errors.New("ledger: not found")

// #region journal
// Journal receives every block the ledger accepts, in acceptance order.
// Implementations make the ledger durable; a nil journal keeps it
// memory-only.
type Journal interface {
	AppendBlock(b *block.Block) error
}

// MultiJournal fans one acceptance out to several journals. The first
// failure aborts the append without rolling earlier journals back, so a
// partially journaled block can resurface from the log on restart.
// Journals must therefore treat AppendBlock as at-least-once: both SQLite
// journals in this repo insert with OR IGNORE, so a re-delivered or
// resurrected block never duplicates rows.
type MultiJournal []Journal

func (m MultiJournal) AppendBlock(b *block.Block) error {
	for _, j := range m {
		if err := j.AppendBlock(b); err != nil {
			return err
		}
	}
	return nil
}
// #endregion journal

// #region ledger
// Ledger is the append-only block store: a global acceptance sequence, one
// chain per agent, and a hash index. All three indexes mutate under one
// lock, so no reader ever sees a block in one index and not another.
// Accepted blocks are never removed or rewritten.
type Ledger struct {
	codec   codec.Codec
	journal Journal

	mu          sync.RWMutex
	blocks      []*block.Block
	agentBlocks map[string][]*block.Block
	hashIndex   map[string]*block.Block
	children    map[string][]string // prevHash -> hashes of accepted successors
}

// New creates an empty ledger. journal may be nil.
func New(c codec.Codec, journal Journal) *Ledger {
	return &Ledger{
		codec:       c,
		journal:     journal,
		agentBlocks: make(map[string][]*block.Block),
		hashIndex:   make(map[string]*block.Block),
		children:    make(map[string][]string),
	}
}
// #endregion ledger

// #region append
// AppendBlock encodes the snapshot and appends a new block to the agent's
// chain, linking PrevHash to the agent's current last block. Every call
// produces a new block with a fresh timestamp, even for identical input.
func (l *Ledger) AppendBlock(ctx context.Context, agentID string, snap profile.Snapshot, timeWindow float64, dependencies []string, metadata map[string]string) (string, error) {
	p := profile.FromSnapshot(agentID, snap)
	scan, err := l.codec.Encode(ctx, p, timeWindow)
	if err != nil {
		return "", fmt.Errorf("append block for %s: %w", agentID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := ""
	if chain := l.agentBlocks[agentID]; len(chain) > 0 {
		prevHash = chain[len(chain)-1].Hash
	}

	b := block.New(agentID, scan, time.Now().UTC(), prevHash, dependencies, metadata)
	if err := l.indexLocked(b, true); err != nil {
		return "", err
	}
	return b.Hash, nil
}

// Insert accepts an externally built block (one received from a peer). The
// caller is responsible for validation; insertion of an already known hash
// is a no-op.
func (l *Ledger) Insert(b *block.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.hashIndex[b.Hash]; ok {
		return nil
	}
	return l.indexLocked(b, true)
}

// Restore indexes blocks replayed from a journal, without journaling them
// again. Used once at startup.
func (l *Ledger) Restore(blocks []*block.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range blocks {
		if _, ok := l.hashIndex[b.Hash]; ok {
			continue
		}
		if err := l.indexLocked(b, false); err != nil {
			return err
		}
	}
	return nil
}

// indexLocked appends b to all three indexes as one step. Journal failure
// aborts before any index mutates, so durability and indexes cannot diverge.
func (l *Ledger) indexLocked(b *block.Block, journal bool) error {
	if journal && l.journal != nil {
		if err := l.journal.AppendBlock(b); err != nil {
			return fmt.Errorf("journal block %s: %w", b.Hash, err)
		}
	}
	l.blocks = append(l.blocks, b)
	l.agentBlocks[b.AgentID] = append(l.agentBlocks[b.AgentID], b)
	l.hashIndex[b.Hash] = b
	if b.PrevHash != "" {
		l.children[b.PrevHash] = append(l.children[b.PrevHash], b.Hash)
	}
	return nil
}
// #endregion append

// #region lookups
// GetBlock returns the block with the given hash.
func (l *Ledger) GetBlock(hash string) (*block.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.hashIndex[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// Has reports whether a hash is indexed.
func (l *Ledger) Has(hash string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.hashIndex[hash]
	return ok
}

// Len returns the number of accepted blocks.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// GetHistory returns the agent's most recent limit blocks in chain order
// (oldest first). Unknown agents yield an empty slice.
func (l *Ledger) GetHistory(agentID string, limit int) []*block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	chain := l.agentBlocks[agentID]
	if limit > 0 && len(chain) > limit {
		chain = chain[len(chain)-limit:]
	}
	out := make([]*block.Block, len(chain))
	copy(out, chain)
	return out
}

// Heads returns the agent's chain tips: accepted blocks no accepted block
// links back to. More than one head means the chain has forked; the ledger
// exposes forks rather than resolving them.
func (l *Ledger) Heads(agentID string) []*block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var heads []*block.Block
	for _, b := range l.agentBlocks[agentID] {
		if len(l.children[b.Hash]) == 0 {
			heads = append(heads, b)
		}
	}
	return heads
}

// RecentBlocks returns up to limit blocks across all agents, most recent
// timestamp first. Ties keep acceptance order.
func (l *Ledger) RecentBlocks(limit int) []*block.Block {
	l.mu.RLock()
	out := make([]*block.Block, len(l.blocks))
	copy(out, l.blocks)
	l.mu.RUnlock()

	sortByTimestampDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
// #endregion lookups
