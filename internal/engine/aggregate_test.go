package engine

import (
	"testing"

	"github.com/open-hospitality/kestrel/internal/domain"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	return NewAggregator(domain.DefaultScoringConfig())
}

// uniformScores gives every category the same score, which makes the
// composite index equal to that score under convex weights.
func uniformScores(v float64) map[domain.Category]float64 {
	scores := make(map[domain.Category]float64, len(domain.Categories()))
	for _, cat := range domain.Categories() {
		scores[cat] = v
	}
	return scores
}

func TestAggregateWeightedSum(t *testing.T) {
	agg := newTestAggregator(t)

	// Only the void category contributes: index = 100 * 0.20.
	c := agg.Aggregate(map[domain.Category]float64{
		domain.CategoryVoid: 100,
	})
	if c.FraudIndex != 20 {
		t.Errorf("expected index 20, got %v", c.FraudIndex)
	}
	if c.RiskLevel != domain.RiskLow {
		t.Errorf("expected low risk, got %s", c.RiskLevel)
	}

	// Two categories: 100*0.20 + 80*0.25 = 40.
	c = agg.Aggregate(map[domain.Category]float64{
		domain.CategoryVoid: 100,
		domain.CategoryCash: 80,
	})
	if c.FraudIndex != 40 {
		t.Errorf("expected index 40, got %v", c.FraudIndex)
	}
}

func TestAggregateEmptyScores(t *testing.T) {
	agg := newTestAggregator(t)

	c := agg.Aggregate(map[domain.Category]float64{})
	if c.FraudIndex != 0 {
		t.Errorf("expected zero index, got %v", c.FraudIndex)
	}
	if c.RiskLevel != domain.RiskNormal {
		t.Errorf("expected normal risk, got %s", c.RiskLevel)
	}
	if len(c.Concerns) != 0 {
		t.Errorf("expected no concerns, got %v", c.Concerns)
	}
	if len(c.Recommendations) != 1 || c.Recommendations[0] != standardRecommendation {
		t.Errorf("expected standard recommendation, got %v", c.Recommendations)
	}
}

func TestAggregateRiskLevelBoundaries(t *testing.T) {
	agg := newTestAggregator(t)

	tests := []struct {
		name  string
		score float64
		want  domain.RiskLevel
	}{
		{"critical at 70", 70, domain.RiskCritical},
		{"high just below 70", 69.999, domain.RiskHigh},
		{"high at 50", 50, domain.RiskHigh},
		{"medium just below 50", 49.999, domain.RiskMedium},
		{"medium at 30", 30, domain.RiskMedium},
		{"low at 15", 15, domain.RiskLow},
		{"normal just below 15", 14.999, domain.RiskNormal},
		{"normal at zero", 0, domain.RiskNormal},
		{"critical at max", 100, domain.RiskCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := agg.Aggregate(uniformScores(tt.score))
			if c.FraudIndex != tt.score {
				t.Fatalf("expected index %v, got %v", tt.score, c.FraudIndex)
			}
			if c.RiskLevel != tt.want {
				t.Errorf("index %v: expected %s, got %s", tt.score, tt.want, c.RiskLevel)
			}
		})
	}
}

func TestAggregateConcernsAndRecommendations(t *testing.T) {
	agg := newTestAggregator(t)

	// Void crosses both floors, discount only the recommendation floor.
	c := agg.Aggregate(map[domain.Category]float64{
		domain.CategoryVoid:     55,
		domain.CategoryDiscount: 35,
	})

	if len(c.Concerns) != 1 || c.Concerns[0] != concernTexts[domain.CategoryVoid] {
		t.Errorf("expected single void concern, got %v", c.Concerns)
	}
	if len(c.Recommendations) != 2 {
		t.Fatalf("expected two recommendations, got %v", c.Recommendations)
	}
	if c.Recommendations[0] != recommendationTexts[domain.CategoryVoid] {
		t.Errorf("expected void recommendation first, got %q", c.Recommendations[0])
	}
	if c.Recommendations[1] != recommendationTexts[domain.CategoryDiscount] {
		t.Errorf("expected discount recommendation second, got %q", c.Recommendations[1])
	}
}

func TestAggregateFloorsAreInclusive(t *testing.T) {
	agg := newTestAggregator(t)

	c := agg.Aggregate(map[domain.Category]float64{
		domain.CategoryCash: concernFloor,
	})
	if len(c.Concerns) != 1 {
		t.Errorf("score exactly at concern floor should raise a concern, got %v", c.Concerns)
	}

	c = agg.Aggregate(map[domain.Category]float64{
		domain.CategoryRefund: recommendationFloor,
	})
	if len(c.Recommendations) != 1 || c.Recommendations[0] != recommendationTexts[domain.CategoryRefund] {
		t.Errorf("score exactly at recommendation floor should recommend, got %v", c.Recommendations)
	}
}
