package profile

import "time"

// #region snapshot
// Snapshot is the caller-facing view of an agent's state, as proposed to the
// ledger. Only the fields below feed the profile; anything else an agent
// tracks is out of scope for encoding.
type Snapshot struct {
	Skills             []string `json:"skills"`
	AverageAccuracy    float64  `json:"average_accuracy"`
	LearningIterations int      `json:"learning_iterations"`
	Dependencies       []string `json:"dependencies,omitempty"`
	RelatedAgents      []string `json:"related_agents,omitempty"`
}
// #endregion snapshot

// #region profile
// Profile is the three-metric numeric summary handed to the codec.
type Profile struct {
	ID            string              `json:"id"`
	Wealth        int                 `json:"Wealth"`
	Hunger        int                 `json:"Hunger"`
	Status        int                 `json:"Status"`
	Relationships map[string][]string `json:"relationships,omitempty"`
}
// #endregion profile

// #region ranges
// Interval is a [low, high] numeric range produced by decoding a scan.
type Interval [2]float64

// Mid returns the midpoint of the interval.
func (iv Interval) Mid() float64 {
	return (iv[0] + iv[1]) / 2
}

// Ranges holds the decoded interval per profile metric.
type Ranges struct {
	Wealth Interval `json:"Wealth"`
	Hunger Interval `json:"Hunger"`
	Status Interval `json:"Status"`
}
// #endregion ranges

// #region reconstructed
// Reconstructed is the lossy inverse of a Snapshot, derived from decoded
// ranges. Skill identities are not recoverable, only the count.
type Reconstructed struct {
	AgentID            string    `json:"agent_id"`
	SkillCount         int       `json:"skill_count"`
	AverageAccuracy    float64   `json:"average_accuracy"`
	LearningIterations int       `json:"learning_iterations"`
	NeedsTraining      bool      `json:"needs_training"`
	Timestamp          time.Time `json:"timestamp"`
	Dependencies       []string  `json:"dependencies,omitempty"`
}
// #endregion reconstructed
