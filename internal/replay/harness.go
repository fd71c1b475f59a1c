package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/block"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/codec"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/consensus"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/ledger"
	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
)

// #region harness
// StepResult is the observed outcome of one fixture step.
type StepResult struct {
	StepID       string
	Hash         string
	Accepted     bool
	PendingAfter int
}

// scenarioEpoch anchors AtSeconds offsets so replayed timestamps are stable
// across runs.
var scenarioEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Run executes a fixture against a fresh single node backed by the interval
// codec, resolving step references to hashes as steps complete.
func Run(ctx context.Context, f Fixture) ([]StepResult, error) {
	c := codec.NewIntervalCodec()
	node := consensus.NewNode("replay", ledger.New(c, nil))

	hashes := map[string]string{}      // step id -> block hash
	built := map[string]*block.Block{} // build step id -> undelivered block
	resolve := func(ref string) string {
		if h, ok := hashes[ref]; ok {
			return h
		}
		return ref
	}

	results := make([]StepResult, 0, len(f.Steps))
	for _, s := range f.Steps {
		var res StepResult
		res.StepID = s.ID

		switch s.Action {
		case "propose":
			deps := make([]string, 0, len(s.DependsOn))
			for _, d := range s.DependsOn {
				deps = append(deps, resolve(d))
			}
			hash, _, err := node.ProposeBlock(ctx, s.AgentID, s.Snapshot, f.TimeWindow, deps, nil)
			if err != nil {
				return nil, fmt.Errorf("step %s: propose: %w", s.ID, err)
			}
			res.Hash = hash
			res.Accepted = true

		case "receive":
			b, err := foreignBlock(ctx, c, f, s, resolve)
			if err != nil {
				return nil, fmt.Errorf("step %s: %w", s.ID, err)
			}
			res.Hash = b.Hash
			res.Accepted = node.ReceiveBlock(b)

		case "build":
			b, err := foreignBlock(ctx, c, f, s, resolve)
			if err != nil {
				return nil, fmt.Errorf("step %s: %w", s.ID, err)
			}
			built[s.ID] = b
			res.Hash = b.Hash

		case "deliver":
			b, ok := built[s.TargetStep]
			if !ok {
				return nil, fmt.Errorf("step %s: target_step %q was never built", s.ID, s.TargetStep)
			}
			res.Hash = b.Hash
			res.Accepted = node.ReceiveBlock(b)

		default:
			return nil, fmt.Errorf("step %s: unknown action %q", s.ID, s.Action)
		}

		hashes[s.ID] = res.Hash
		res.PendingAfter = len(node.PendingBlocks())
		results = append(results, res)
	}
	return results, nil
}

// foreignBlock builds the block a receive step delivers, as if another node
// had authored it.
func foreignBlock(ctx context.Context, c codec.Codec, f Fixture, s Step, resolve func(string) string) (*block.Block, error) {
	scan, err := c.Encode(ctx, profile.FromSnapshot(s.AgentID, s.Snapshot), f.TimeWindow)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	prev := ""
	if s.PrevStep != "" {
		prev = resolve(s.PrevStep)
	}
	deps := make([]string, 0, len(s.DependsOn))
	for _, d := range s.DependsOn {
		deps = append(deps, resolve(d))
	}

	ts := scenarioEpoch.Add(time.Duration(s.AtSeconds) * time.Second)
	return block.New(s.AgentID, scan, ts, prev, deps, nil), nil
}
// #endregion harness

// #region check
// Check compares observed step results against the fixture's expectations
// and returns one message per mismatch. An empty slice means the scenario
// replayed as recorded.
func Check(f Fixture, results []StepResult) []string {
	byStep := make(map[string]StepResult, len(results))
	for _, r := range results {
		byStep[r.StepID] = r
	}

	var mismatches []string
	for _, want := range f.ExpectedResults {
		got, ok := byStep[want.StepID]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("step %s: no result recorded", want.StepID))
			continue
		}
		if got.Accepted != want.Accepted {
			mismatches = append(mismatches, fmt.Sprintf("step %s: accepted = %v, want %v", want.StepID, got.Accepted, want.Accepted))
		}
		if got.PendingAfter != want.PendingAfter {
			mismatches = append(mismatches, fmt.Sprintf("step %s: pending after = %d, want %d", want.StepID, got.PendingAfter, want.PendingAfter))
		}
	}
	return mismatches
}
// #endregion check
