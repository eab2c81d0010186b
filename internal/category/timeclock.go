package category

import (
	"github.com/open-hospitality/kestrel/internal/domain"
)

const (
	// standardShiftHours is the shift length beyond which hours count as
	// overtime.
	standardShiftHours = 8.0

	// paddingFloorMinutes is the total padding below which clock drift is
	// treated as noise.
	paddingFloorMinutes = 30.0
)

// TimeCalculator scores time-clock fraud: unusual clock-in locations,
// cumulative overtime, manual corrections, and schedule padding.
type TimeCalculator struct{}

func (TimeCalculator) Category() domain.Category { return domain.CategoryTime }

func (TimeCalculator) Score(set *domain.SignalSet, th domain.Thresholds) float64 {
	entries := set.TimeEntries
	if len(entries) == 0 {
		return 0
	}

	var score float64

	// Unusual clock-in locations, 5 points each up to 25.
	var unusual int
	for _, e := range entries {
		if e.UnusualLocation {
			unusual++
		}
	}
	score += capped(float64(unusual)*5, 25)

	// Cumulative overtime beyond the threshold, 2 points per excess hour
	// up to 20.
	var overtime float64
	for _, e := range entries {
		if worked := e.WorkedHours(); worked > standardShiftHours {
			overtime += worked - standardShiftHours
		}
	}
	if overtime > th.OvertimeHours {
		score += capped((overtime-th.OvertimeHours)*2, 20)
	}

	// Manual corrections beyond the threshold, 5 points each up to 25.
	var manual int
	for _, e := range entries {
		if e.Manual {
			manual++
		}
	}
	if manual > th.ManualCorrections {
		score += capped(float64(manual-th.ManualCorrections)*5, 25)
	}

	// Early-in/late-out padding against the schedule, 1 point per 10
	// padded minutes up to 30, ignoring totals under the noise floor.
	var padding float64
	for _, e := range entries {
		padding += e.PaddingMinutes()
	}
	if padding > paddingFloorMinutes {
		score += capped(padding/10, 30)
	}

	return clamp(score)
}
