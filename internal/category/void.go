package category

import (
	"github.com/open-hospitality/kestrel/internal/domain"
)

// consecutiveVoidWindow is the maximum gap, in minutes, for two voids to
// count as consecutive.
const consecutiveVoidWindow = 5.0

// VoidCalculator scores void abuse: excessive void rates, high-value
// voids, rapid runs of voids, end-of-shift voids, and voids rung after
// payment was already captured.
type VoidCalculator struct{}

func (VoidCalculator) Category() domain.Category { return domain.CategoryVoid }

func (VoidCalculator) Score(set *domain.SignalSet, th domain.Thresholds) float64 {
	voids := set.Voids
	if len(voids) == 0 {
		return 0
	}

	var score float64

	// Void rate above threshold, up to 40.
	if n := len(set.Transactions); n > 0 {
		rate := float64(len(voids)) / float64(n)
		score += rateExcess(rate, th.VoidRate, 40)
	}

	// High-value voids, 5 points each up to 20.
	var highValue int
	for _, v := range voids {
		if v.Amount > th.HighValueVoid {
			highValue++
		}
	}
	score += capped(float64(highValue)*5, 20)

	// Consecutive voids within the window, flat 20.
	// Adapter ordering is by timestamp, so adjacent pairs suffice.
	for i := 1; i < len(voids); i++ {
		gap := voids[i].Timestamp.Sub(voids[i-1].Timestamp).Minutes()
		if gap >= 0 && gap <= consecutiveVoidWindow {
			score += 20
			break
		}
	}

	// End-of-shift voids, 5 points each up to 20.
	var endOfShift int
	for _, v := range voids {
		if v.EndOfShift {
			endOfShift++
		}
	}
	score += capped(float64(endOfShift)*5, 20)

	// Voids after payment captured, 10 points each up to 20.
	var afterPayment int
	for _, v := range voids {
		if v.AfterPayment {
			afterPayment++
		}
	}
	score += capped(float64(afterPayment)*10, 20)

	return clamp(score)
}
