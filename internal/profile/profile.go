package profile

import "math"

// #region forward
// FromSnapshot is the pure forward mapping from an agent snapshot to its
// profile. Wealth aggregates skills and learning effort, Hunger is the
// remaining distance to perfect accuracy, Status is accuracy itself.
func FromSnapshot(agentID string, s Snapshot) Profile {
	accuracy := clamp01(s.AverageAccuracy)
	status := int(math.Round(accuracy * 100))

	hunger := 100 - status
	if hunger < 0 {
		hunger = 0
	}

	p := Profile{
		ID:     agentID,
		Wealth: len(s.Skills)*100 + s.LearningIterations*50,
		Hunger: hunger,
		Status: status,
	}

	if len(s.Dependencies) > 0 || len(s.RelatedAgents) > 0 {
		p.Relationships = map[string][]string{}
		if len(s.Dependencies) > 0 {
			p.Relationships["dependencies"] = s.Dependencies
		}
		if len(s.RelatedAgents) > 0 {
			p.Relationships["agents"] = s.RelatedAgents
		}
	}

	return p
}
// #endregion forward

// #region inverse
// FromRanges is the pure inverse mapping from decoded ranges back to agent
// metrics. It takes the midpoint of each interval and unpacks Wealth into a
// skill count and leftover learning iterations. The mapping is lossy: the
// reconstruction is only as exact as the ranges are narrow.
func FromRanges(agentID string, r Ranges) Reconstructed {
	wealth := r.Wealth.Mid()
	hunger := r.Hunger.Mid()
	status := r.Status.Mid()

	skillCount := int(wealth / 100)
	if skillCount < 1 {
		skillCount = 1
	}

	iterations := int((wealth - float64(skillCount)*100) / 50)
	if iterations < 0 {
		iterations = 0
	}

	return Reconstructed{
		AgentID:            agentID,
		SkillCount:         skillCount,
		AverageAccuracy:    status / 100,
		LearningIterations: iterations,
		NeedsTraining:      hunger > 50,
	}
}
// #endregion inverse

// #region helpers
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
// #endregion helpers
