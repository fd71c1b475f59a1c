package profile

import "testing"

func TestFromSnapshotFormulas(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		wealth int
		hunger int
		status int
	}{
		{
			name:   "two skills three iterations",
			snap:   Snapshot{Skills: []string{"s1", "s2"}, AverageAccuracy: 0.8, LearningIterations: 3},
			wealth: 350, hunger: 20, status: 80,
		},
		{
			name:   "empty snapshot",
			snap:   Snapshot{},
			wealth: 0, hunger: 100, status: 0,
		},
		{
			name:   "perfect accuracy",
			snap:   Snapshot{Skills: []string{"s1"}, AverageAccuracy: 1.0},
			wealth: 100, hunger: 0, status: 100,
		},
		{
			name:   "accuracy above one is clamped",
			snap:   Snapshot{AverageAccuracy: 1.7},
			wealth: 0, hunger: 0, status: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromSnapshot("a1", tt.snap)
			if p.ID != "a1" {
				t.Fatalf("id = %s", p.ID)
			}
			if p.Wealth != tt.wealth || p.Hunger != tt.hunger || p.Status != tt.status {
				t.Fatalf("got W=%d H=%d S=%d, want W=%d H=%d S=%d",
					p.Wealth, p.Hunger, p.Status, tt.wealth, tt.hunger, tt.status)
			}
		})
	}
}

func TestFromSnapshotRelationships(t *testing.T) {
	p := FromSnapshot("a1", Snapshot{
		Dependencies:  []string{"hash-1"},
		RelatedAgents: []string{"a2"},
	})
	if got := p.Relationships["dependencies"]; len(got) != 1 || got[0] != "hash-1" {
		t.Fatalf("dependencies = %v", got)
	}
	if got := p.Relationships["agents"]; len(got) != 1 || got[0] != "a2" {
		t.Fatalf("agents = %v", got)
	}

	bare := FromSnapshot("a1", Snapshot{Skills: []string{"s1"}})
	if bare.Relationships != nil {
		t.Fatal("expected nil relationships for snapshot without any")
	}
}

// The round trip is lossy on purpose: three iterations worth of Wealth reads
// back as three skills and one iteration. The derived fields must still
// follow the documented formulas.
func TestFromRangesLossyRoundTrip(t *testing.T) {
	point := func(v float64) Interval { return Interval{v, v} }

	rec := FromRanges("a1", Ranges{
		Wealth: point(350),
		Hunger: point(20),
		Status: point(80),
	})

	if rec.SkillCount != 3 {
		t.Fatalf("skill count = %d, want 3", rec.SkillCount)
	}
	if rec.AverageAccuracy != 0.8 {
		t.Fatalf("accuracy = %f, want 0.8", rec.AverageAccuracy)
	}
	if rec.LearningIterations != 1 {
		t.Fatalf("iterations = %d, want 1", rec.LearningIterations)
	}
	if rec.NeedsTraining {
		t.Fatal("hunger 20 must not need training")
	}
}

func TestFromRangesEdges(t *testing.T) {
	point := func(v float64) Interval { return Interval{v, v} }

	// Zero wealth still reports one skill, never zero.
	rec := FromRanges("a1", Ranges{Wealth: point(0), Hunger: point(80), Status: point(10)})
	if rec.SkillCount != 1 {
		t.Fatalf("skill count = %d, want 1", rec.SkillCount)
	}
	if rec.LearningIterations != 0 {
		t.Fatalf("iterations = %d, want 0", rec.LearningIterations)
	}
	if !rec.NeedsTraining {
		t.Fatal("hunger 80 must need training")
	}

	// Wide symmetric interval keeps the midpoint.
	rec = FromRanges("a1", Ranges{
		Wealth: Interval{300, 400},
		Hunger: Interval{0, 40},
		Status: Interval{60, 100},
	})
	if rec.SkillCount != 3 || rec.AverageAccuracy != 0.8 {
		t.Fatalf("midpoint reconstruction off: %+v", rec)
	}
}
