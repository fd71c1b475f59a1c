package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
)

// #region result-types
// EntangledState is one resolved dependency of an agent's latest block.
type EntangledState struct {
	AgentID   string                `json:"agent_id"`
	BlockHash string                `json:"block_hash"`
	State     profile.Reconstructed `json:"state"`
}

// KnowledgeEntry is one decoded block in a cross-agent recency query.
type KnowledgeEntry struct {
	AgentID   string                `json:"agent_id"`
	BlockHash string                `json:"block_hash"`
	Timestamp time.Time             `json:"timestamp"`
	State     profile.Reconstructed `json:"state"`
}
// #endregion result-types

// #region get-state
// GetState reconstructs an agent's state from a block's scan. With an empty
// targetHash the agent's latest block is used; otherwise the hash must exist
// and belong to the agent.
func (l *Ledger) GetState(ctx context.Context, agentID string, timeWindow float64, targetHash string) (profile.Reconstructed, error) {
	l.mu.RLock()
	var b *block.Block
	if targetHash != "" {
		b = l.hashIndex[targetHash]
		if b != nil && b.AgentID != agentID {
			b = nil
		}
	} else if chain := l.agentBlocks[agentID]; len(chain) > 0 {
		b = chain[len(chain)-1]
	}
	l.mu.RUnlock()

	if b == nil {
		return profile.Reconstructed{}, ErrNotFound
	}
	return l.reconstruct(ctx, b, timeWindow)
}
// #endregion get-state

// #region get-at-time
// GetAgentAtTime reconstructs the agent's state from the block whose
// timestamp is closest to ts. Equidistant blocks tie-break to the earliest
// in chain order.
func (l *Ledger) GetAgentAtTime(ctx context.Context, agentID string, ts time.Time, timeWindow float64) (profile.Reconstructed, error) {
	l.mu.RLock()
	var closest *block.Block
	best := math.MaxFloat64
	for _, b := range l.agentBlocks[agentID] {
		d := math.Abs(b.Timestamp.Sub(ts).Seconds())
		if d < best {
			best = d
			closest = b
		}
	}
	l.mu.RUnlock()

	if closest == nil {
		return profile.Reconstructed{}, ErrNotFound
	}
	return l.reconstruct(ctx, closest, timeWindow)
}
// #endregion get-at-time

// #region entangled
// GetEntangledStates reconstructs the state behind every resolvable
// dependency of the agent's latest block. Dependencies not present in the
// index are skipped, not errored.
func (l *Ledger) GetEntangledStates(ctx context.Context, agentID string, timeWindow float64) ([]EntangledState, error) {
	l.mu.RLock()
	var deps []*block.Block
	if chain := l.agentBlocks[agentID]; len(chain) > 0 {
		last := chain[len(chain)-1]
		for _, depHash := range last.Dependencies {
			if dep, ok := l.hashIndex[depHash]; ok {
				deps = append(deps, dep)
			}
		}
	}
	l.mu.RUnlock()

	out := make([]EntangledState, 0, len(deps))
	for _, dep := range deps {
		state, err := l.reconstruct(ctx, dep, timeWindow)
		if err != nil {
			return nil, err
		}
		out = append(out, EntangledState{
			AgentID:   dep.AgentID,
			BlockHash: dep.Hash,
			State:     state,
		})
	}
	return out, nil
}
// #endregion entangled

// #region global-knowledge
// GetGlobalKnowledge reconstructs the limit most recent blocks across all
// agents, most recent first.
func (l *Ledger) GetGlobalKnowledge(ctx context.Context, timeWindow float64, limit int) ([]KnowledgeEntry, error) {
	recent := l.RecentBlocks(limit)

	out := make([]KnowledgeEntry, 0, len(recent))
	for _, b := range recent {
		state, err := l.reconstruct(ctx, b, timeWindow)
		if err != nil {
			return nil, err
		}
		out = append(out, KnowledgeEntry{
			AgentID:   b.AgentID,
			BlockHash: b.Hash,
			Timestamp: b.Timestamp,
			State:     state,
		})
	}
	return out, nil
}
// #endregion global-knowledge

// #region reconstruct
// reconstruct decodes a block's scan and maps the ranges back to agent
// metrics. Decoding runs outside the index lock; blocks are immutable.
func (l *Ledger) reconstruct(ctx context.Context, b *block.Block, timeWindow float64) (profile.Reconstructed, error) {
	ranges, err := l.codec.Decode(ctx, b.Scan, timeWindow)
	if err != nil {
		return profile.Reconstructed{}, fmt.Errorf("reconstruct %s: %w", b.Hash, err)
	}
	state := profile.FromRanges(b.AgentID, ranges)
	state.Timestamp = b.Timestamp
	state.Dependencies = b.Dependencies
	return state, nil
}

func sortByTimestampDesc(blocks []*block.Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Timestamp.After(blocks[j].Timestamp)
	})
}
// #endregion reconstruct
