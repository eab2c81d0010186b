// Package category implements the seven behavioral risk calculators.
// Each calculator is a pure function of a windowed signal set and the
// configured thresholds, returning a score in [0,100]. An empty signal
// set always scores 0: absence of data is never penalized.
package category

import (
	"github.com/open-hospitality/kestrel/internal/domain"
)

// Calculator scores one risk category from a signal set.
type Calculator interface {
	Category() domain.Category
	Score(set *domain.SignalSet, th domain.Thresholds) float64
}

// All returns the seven calculators in weight-table order.
func All() []Calculator {
	return []Calculator{
		VoidCalculator{},
		DiscountCalculator{},
		CashCalculator{},
		RefundCalculator{},
		TimeCalculator{},
		PatternCalculator{},
		OverrideCalculator{},
	}
}

// clamp bounds a score to [0,100].
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// capped bounds a single heuristic contribution to [0, cap].
func capped(v, cap float64) float64 {
	if v < 0 {
		return 0
	}
	if v > cap {
		return cap
	}
	return v
}

// rateExcess scales how far rate exceeds threshold into [0, cap]:
// zero at the threshold, cap once the rate doubles the threshold.
func rateExcess(rate, threshold, cap float64) float64 {
	if threshold <= 0 || rate <= threshold {
		return 0
	}
	return capped((rate-threshold)/threshold*cap, cap)
}

// offHours reports whether hour falls outside venue operating hours.
func offHours(hour int, th domain.Thresholds) bool {
	return hour < th.OpenHour || hour >= th.CloseHour
}
