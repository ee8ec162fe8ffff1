package heuristic

import (
	"testing"

	"github.com/gustaf30/nexus/internal/model"
)

func testWeights() WeightSet {
	return NewWeightSet([]model.HeuristicWeight{
		{Source: model.SourceTypeJira, Signal: "assigned", Weight: 3},
		{Source: model.SourceTypeJira, Signal: "highPriority", Weight: 4},
		{Source: model.SourceTypeJira, Signal: "deadline", Weight: 3},
	})
}

func TestEvaluateTiers(t *testing.T) {
	weights := testWeights()

	tests := []struct {
		name    string
		reasons []string
		want    model.Urgency
	}{
		{"no signals", nil, model.UrgencyLow},
		{"single medium", []string{"assigned"}, model.UrgencyMedium},
		{"two signals high", []string{"assigned", "highPriority"}, model.UrgencyHigh},
		{"three signals critical", []string{"assigned", "highPriority", "deadline"}, model.UrgencyCritical},
		{"unknown signal counts zero", []string{"mystery"}, model.UrgencyLow},
		{"unknown mixed with known", []string{"assigned", "mystery"}, model.UrgencyMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.reasons, weights)
			if got != tt.want {
				t.Errorf("Evaluate(%v) = %s, want %s", tt.reasons, got, tt.want)
			}
		})
	}
}

func TestTierForTotalBoundaries(t *testing.T) {
	tests := []struct {
		total int
		want  model.Urgency
	}{
		{-1, model.UrgencyLow},
		{0, model.UrgencyLow},
		{2, model.UrgencyLow},
		{3, model.UrgencyMedium},
		{5, model.UrgencyMedium},
		{6, model.UrgencyHigh},
		{8, model.UrgencyHigh},
		{9, model.UrgencyCritical},
		{20, model.UrgencyCritical},
	}

	for _, tt := range tests {
		if got := TierForTotal(tt.total); got != tt.want {
			t.Errorf("TierForTotal(%d) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestShouldNotify(t *testing.T) {
	if ShouldNotify(model.UrgencyLow) {
		t.Error("low tier must not produce a notification")
	}
	for _, u := range []model.Urgency{model.UrgencyMedium, model.UrgencyHigh, model.UrgencyCritical} {
		if !ShouldNotify(u) {
			t.Errorf("%s tier should produce a notification", u)
		}
	}
}
