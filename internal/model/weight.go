package model

// HeuristicWeight maps one (source, signal) pair to an integer weight.
// Rows are seeded with defaults on first run and edited only through the
// configuration surface; the orchestrator treats them as read-only.
type HeuristicWeight struct {
	ID     string     `json:"id"`
	Source SourceType `json:"source"`
	Signal string     `json:"signal"`
	Weight int        `json:"weight"`
}

// DefaultWeights are the signal weights seeded for the built-in sources
// when the database is first created.
func DefaultWeights() []HeuristicWeight {
	defaults := []struct {
		source SourceType
		signal string
		weight int
	}{
		{SourceTypeJira, "assigned_to_me", 3},
		{SourceTypeJira, "priority_p1_blocker", 4},
		{SourceTypeJira, "mentioned_in_comment", 2},
		{SourceTypeJira, "deadline_24h", 3},
		{SourceTypeBitbucket, "pr_review_requested", 3},
		{SourceTypeBitbucket, "ci_failed", 4},
		{SourceTypeBitbucket, "pr_comment", 2},
		{SourceTypeEmail, "vip_sender", 4},
		{SourceTypeEmail, "unread_over_4h", 2},
		{SourceTypeEmail, "has_attachment", 1},
	}

	weights := make([]HeuristicWeight, 0, len(defaults))
	for _, d := range defaults {
		weights = append(weights, HeuristicWeight{
			ID:     string(d.source) + "-" + d.signal,
			Source: d.source,
			Signal: d.signal,
			Weight: d.weight,
		})
	}
	return weights
}
