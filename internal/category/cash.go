package category

import (
	"github.com/open-hospitality/kestrel/internal/domain"
)

// smallShortageLimit is how many sub-threshold shortages are tolerated
// before the repeated-small-variance heuristic fires.
const smallShortageLimit = 3

// CashCalculator scores drawer handling: cumulative shortages, repeated
// small negative variances (skimming pattern), overages, and excessive
// no-sale drawer opens.
type CashCalculator struct{}

func (CashCalculator) Category() domain.Category { return domain.CategoryCash }

func (CashCalculator) Score(set *domain.SignalSet, th domain.Thresholds) float64 {
	reports := set.CashReports
	if len(reports) == 0 {
		return 0
	}

	var score float64

	// Cumulative shortages scaled against the variance threshold, up to
	// 40. A shortage equal to the threshold hits the cap.
	var shortage, overage float64
	var smallShortages, noSales int
	for _, r := range reports {
		switch {
		case r.Variance < 0:
			shortage += -r.Variance
			if -r.Variance < th.SmallShortage {
				smallShortages++
			}
		case r.Variance > 0:
			overage += r.Variance
		}
		noSales += r.NoSaleCount
	}
	if shortage > 0 {
		score += capped(shortage/th.CashVariance*40, 40)
	}

	// More than three small shortages, flat 30. Repeated just-under-the-
	// radar variances are a stronger skimming signal than one big miss.
	if smallShortages > smallShortageLimit {
		score += 30
	}

	// Overages beyond the threshold, up to 15. An over-full drawer means
	// sales rung short, often staging cash for later removal.
	if overage > th.CashVariance {
		score += capped((overage-th.CashVariance)/th.CashVariance*15, 15)
	}

	// Excess no-sale opens, 2 points each beyond the limit up to 20.
	if noSales > th.NoSaleLimit {
		score += capped(float64(noSales-th.NoSaleLimit)*2, 20)
	}

	return clamp(score)
}
