package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/agent-ledger/go-node/internal/profile"
)

// #region fixture-types
// Fixture is the top-level JSON structure for a replication scenario.
// Steps run in order against one fresh node; block hashes are not known
// when a fixture is written, so steps reference each other by step ID and
// the harness resolves IDs to hashes as it goes.
type Fixture struct {
	Description     string           `json:"description"`
	TimeWindow      float64          `json:"time_window"`
	Steps           []Step           `json:"steps"`
	ExpectedResults []ExpectedResult `json:"expected_results"`
}

// Step is one action. "propose" appends locally; "receive" builds a foreign
// block and delivers it; "build" constructs a foreign block without
// delivering, so a later "deliver" step can hand blocks over out of chain
// order.
type Step struct {
	ID       string           `json:"id"`
	Action   string           `json:"action"` // "propose" | "receive" | "build" | "deliver"
	AgentID  string           `json:"agent_id,omitempty"`
	Snapshot profile.Snapshot `json:"snapshot,omitempty"`

	// TargetStep names the build step whose block a deliver step hands in.
	TargetStep string `json:"target_step,omitempty"`

	// DependsOn entries naming an earlier step resolve to that step's
	// block hash; anything else is used verbatim, which lets a fixture
	// reference a hash that never arrives.
	DependsOn []string `json:"depends_on,omitempty"`

	// PrevStep names the step whose block this one chains to. Only
	// meaningful for receive steps; unresolvable values are used
	// verbatim, like DependsOn. Proposals always chain to the node's
	// current tip for the agent.
	PrevStep string `json:"prev_step,omitempty"`

	// AtSeconds places a received block's timestamp relative to the
	// scenario start, keeping recency queries deterministic.
	AtSeconds int `json:"at_seconds,omitempty"`
}

// ExpectedResult captures the expected outcome of one step.
type ExpectedResult struct {
	StepID       string `json:"step_id"`
	Accepted     bool   `json:"accepted"`
	PendingAfter int    `json:"pending_after"`
}
// #endregion fixture-types

// #region load
// LoadFixture reads and validates a fixture JSON file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	seen := map[string]bool{}
	for i, s := range f.Steps {
		if s.ID == "" {
			return Fixture{}, fmt.Errorf("fixture %s: step %d has no id", path, i)
		}
		if seen[s.ID] {
			return Fixture{}, fmt.Errorf("fixture %s: duplicate step id %q", path, s.ID)
		}
		seen[s.ID] = true
		switch s.Action {
		case "propose", "receive", "build":
			if s.AgentID == "" {
				return Fixture{}, fmt.Errorf("fixture %s: step %q has no agent_id", path, s.ID)
			}
		case "deliver":
			if s.TargetStep == "" {
				return Fixture{}, fmt.Errorf("fixture %s: deliver step %q has no target_step", path, s.ID)
			}
		default:
			return Fixture{}, fmt.Errorf("fixture %s: step %q has unknown action %q", path, s.ID, s.Action)
		}
	}
	if f.TimeWindow == 0 {
		f.TimeWindow = 1.0
	}
	return f, nil
}
// #endregion load
