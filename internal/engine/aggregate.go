package engine

import (
	"github.com/open-hospitality/kestrel/internal/domain"
)

// concernTexts maps categories scoring >= concernFloor to the fixed
// human-readable concern attached to the snapshot.
var concernTexts = map[domain.Category]string{
	domain.CategoryVoid:     "Excessive or suspicious void activity",
	domain.CategoryDiscount: "Discount usage outside policy norms",
	domain.CategoryCash:     "Cash drawer variances indicate possible skimming",
	domain.CategoryRefund:   "Refund pattern consistent with refund abuse",
	domain.CategoryTime:     "Time-clock entries suggest hours padding",
	domain.CategoryPattern:  "Transaction pattern deviates sharply from baseline",
	domain.CategoryOverride: "Manager override usage suggests control bypass",
}

// recommendationTexts maps categories scoring >= recommendationFloor to
// the fixed actionable recommendation attached to the snapshot.
var recommendationTexts = map[domain.Category]string{
	domain.CategoryVoid:     "Review void slips against kitchen tickets for the period",
	domain.CategoryDiscount: "Audit discount approvals and re-brief discount policy",
	domain.CategoryCash:     "Schedule surprise drawer counts on this employee's shifts",
	domain.CategoryRefund:   "Require manager sign-off on this employee's refunds",
	domain.CategoryTime:     "Cross-check clock entries against POS activity and schedules",
	domain.CategoryPattern:  "Pull camera footage for flagged transaction windows",
	domain.CategoryOverride: "Review override log with the approving manager",
}

// standardRecommendation is emitted when no category crosses the
// recommendation floor.
const standardRecommendation = "Continue standard monitoring"

const (
	concernFloor        = 50.0
	recommendationFloor = 30.0
)

// Aggregator combines category scores into the composite fraud index.
// Weights are validated at configuration load; Aggregate assumes a
// convex combination.
type Aggregator struct {
	weights map[domain.Category]float64
}

// NewAggregator builds an aggregator from a validated scoring config.
func NewAggregator(cfg domain.ScoringConfig) *Aggregator {
	return &Aggregator{weights: cfg.Weights}
}

// Composite holds the aggregated scoring output.
type Composite struct {
	FraudIndex      float64
	RiskLevel       domain.RiskLevel
	Concerns        []string
	Recommendations []string
}

// Aggregate computes the weighted fraud index, risk level, concerns, and
// recommendations from per-category scores. Missing categories count as
// zero; with weights summing to 1.0 the index stays in [0,100].
func (a *Aggregator) Aggregate(scores map[domain.Category]float64) Composite {
	var index float64
	for _, cat := range domain.Categories() {
		index += scores[cat] * a.weights[cat]
	}
	if index < 0 {
		index = 0
	}
	if index > 100 {
		index = 100
	}

	c := Composite{
		FraudIndex: index,
		RiskLevel:  domain.RiskLevelFor(index),
	}

	for _, cat := range domain.Categories() {
		if scores[cat] >= concernFloor {
			c.Concerns = append(c.Concerns, concernTexts[cat])
		}
		if scores[cat] >= recommendationFloor {
			c.Recommendations = append(c.Recommendations, recommendationTexts[cat])
		}
	}
	if len(c.Recommendations) == 0 {
		c.Recommendations = []string{standardRecommendation}
	}

	return c
}
