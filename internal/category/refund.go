package category

import (
	"github.com/open-hospitality/kestrel/internal/domain"
)

const (
	// tenderPatternMinRefunds is the minimum refund count before the
	// single-tender concentration heuristic applies.
	tenderPatternMinRefunds = 5

	// tenderPatternShare is the concentration that marks a pattern.
	tenderPatternShare = 0.8
)

// RefundCalculator scores refund abuse: excessive refund rates, refunds
// without receipts, single-tender routing, and after-hours refunds.
type RefundCalculator struct{}

func (RefundCalculator) Category() domain.Category { return domain.CategoryRefund }

func (RefundCalculator) Score(set *domain.SignalSet, th domain.Thresholds) float64 {
	refunds := set.Refunds
	if len(refunds) == 0 {
		return 0
	}

	var score float64

	// Refund rate above threshold, up to 40.
	if n := len(set.Transactions); n > 0 {
		rate := float64(len(refunds)) / float64(n)
		score += rateExcess(rate, th.RefundRate, 40)
	}

	// Refunds without receipt, 10 points each up to 30.
	var noReceipt int
	for _, r := range refunds {
		if !r.HasReceipt {
			noReceipt++
		}
	}
	score += capped(float64(noReceipt)*10, 30)

	// Single-tender concentration above 80%, flat 20. Routing refunds to
	// one tender type (usually cash) is a classic pocketing pattern.
	if len(refunds) >= tenderPatternMinRefunds {
		perTender := make(map[string]int)
		max := 0
		for _, r := range refunds {
			perTender[r.TenderType]++
			if perTender[r.TenderType] > max {
				max = perTender[r.TenderType]
			}
		}
		if float64(max)/float64(len(refunds)) > tenderPatternShare {
			score += 20
		}
	}

	// After-hours refunds, 5 points each up to 20.
	var afterHours int
	for _, r := range refunds {
		if offHours(r.Timestamp.Hour(), th) {
			afterHours++
		}
	}
	score += capped(float64(afterHours)*5, 20)

	return clamp(score)
}
