package consensus

import (
	"fmt"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
)

// #region decision
// Decision classifies the outcome of validating one incoming block.
type Decision string

const (
	// DecisionAccept: all structural prerequisites are indexed locally.
	DecisionAccept Decision = "accept"
	// DecisionDuplicate: the hash is already indexed; re-delivery is a
	// no-op reported as success.
	DecisionDuplicate Decision = "duplicate"
	// DecisionPending: a prerequisite is missing (or wrong); the block is
	// held for re-validation.
	DecisionPending Decision = "pending"
)
// #endregion decision

// #region verdict
// Verdict is the result of validating a block against the local index.
type Verdict struct {
	BlockHash string
	AgentID   string
	Decision  Decision
	Reason    string
	// Missing lists the hashes whose arrival would let the block pass.
	// Empty for a pending verdict means the block can never pass (its
	// PrevHash resolves to another agent's block).
	Missing []string
}
// #endregion verdict

// #region validate
// ValidateBlock checks a block against the current index state only; it
// mutates nothing. Acceptance requires the previous block (if referenced)
// to exist and belong to the same agent, and every dependency to exist.
func (n *Node) ValidateBlock(b *block.Block) Verdict {
	v := Verdict{BlockHash: b.Hash, AgentID: b.AgentID}

	if n.ledger.Has(b.Hash) {
		v.Decision = DecisionDuplicate
		return v
	}

	if b.PrevHash != "" {
		prev, err := n.ledger.GetBlock(b.PrevHash)
		switch {
		case err != nil:
			v.Missing = append(v.Missing, b.PrevHash)
		case prev.AgentID != b.AgentID:
			v.Decision = DecisionPending
			v.Reason = fmt.Sprintf("previous block %s belongs to agent %s", b.PrevHash, prev.AgentID)
			return v
		}
	}

	for _, dep := range b.Dependencies {
		if !n.ledger.Has(dep) {
			v.Missing = append(v.Missing, dep)
		}
	}

	if len(v.Missing) > 0 {
		v.Decision = DecisionPending
		v.Reason = fmt.Sprintf("%d unresolved prerequisite(s)", len(v.Missing))
		return v
	}

	v.Decision = DecisionAccept
	return v
}
// #endregion validate
