// Package heuristic turns the signals a plugin emits into an urgency tier
// via a deterministic weighted sum. The thresholds are fixed and identical
// for every source; only the per-signal weights are user-configurable.
package heuristic

import "github.com/gustaf30/nexus/internal/model"

// Tier thresholds for the summed signal weights. Shared by all sources;
// plugins cannot override them.
const (
	criticalThreshold = 9
	highThreshold     = 6
	mediumThreshold   = 3
)

// TierForTotal maps a summed weight to its urgency tier.
func TierForTotal(total int) model.Urgency {
	switch {
	case total >= criticalThreshold:
		return model.UrgencyCritical
	case total >= highThreshold:
		return model.UrgencyHigh
	case total >= mediumThreshold:
		return model.UrgencyMedium
	default:
		return model.UrgencyLow
	}
}

// WeightSet resolves signal names to weights for one source. Signals with
// no configured weight contribute zero.
type WeightSet map[string]int

// NewWeightSet builds a WeightSet from stored heuristic weight rows.
func NewWeightSet(weights []model.HeuristicWeight) WeightSet {
	ws := make(WeightSet, len(weights))
	for _, w := range weights {
		ws[w.Signal] = w.Weight
	}
	return ws
}

// Evaluate computes the urgency tier for an ordered set of fired signals.
// The result depends only on the weights and the signal names, never on
// any urgency hint the plugin supplied.
func Evaluate(reasons []string, weights WeightSet) model.Urgency {
	total := 0
	for _, reason := range reasons {
		total += weights[reason]
	}
	return TierForTotal(total)
}

// ShouldNotify reports whether a tier warrants persisting a notification.
// Low-tier signals still matter for feed visibility but never create a
// notification row.
func ShouldNotify(urgency model.Urgency) bool {
	return urgency.MeetsThreshold(model.UrgencyMedium)
}
