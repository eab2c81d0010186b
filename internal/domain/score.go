package domain

import (
	"time"
)

// Category identifies one of the seven risk sub-scores.
type Category string

const (
	CategoryVoid     Category = "void"
	CategoryDiscount Category = "discount"
	CategoryCash     Category = "cash"
	CategoryRefund   Category = "refund"
	CategoryTime     Category = "time"
	CategoryPattern  Category = "pattern"
	CategoryOverride Category = "override"
)

// Categories lists all categories in weight-table order.
func Categories() []Category {
	return []Category{
		CategoryVoid, CategoryDiscount, CategoryCash, CategoryRefund,
		CategoryTime, CategoryPattern, CategoryOverride,
	}
}

// CategoryScore is the output of one category calculator, always in [0,100].
type CategoryScore struct {
	Category Category `json:"category"`
	Score    float64  `json:"score"`
}

// RiskLevel is the discrete classification of a fraud index.
type RiskLevel string

const (
	RiskNormal   RiskLevel = "normal"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelFor maps a fraud index to its risk level.
// Boundaries: <15 normal, [15,30) low, [30,50) medium, [50,70) high, >=70 critical.
func RiskLevelFor(index float64) RiskLevel {
	switch {
	case index >= 70:
		return RiskCritical
	case index >= 50:
		return RiskHigh
	case index >= 30:
		return RiskMedium
	case index >= 15:
		return RiskLow
	default:
		return RiskNormal
	}
}

// TrendDirection classifies index movement over recent history.
type TrendDirection string

const (
	TrendRising    TrendDirection = "rising"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// Snapshot is the immutable, persisted result of one evaluation.
// Re-evaluation always produces a new snapshot, never an edit.
type Snapshot struct {
	ID          string    `json:"id"`
	VenueID     string    `json:"venueId"`
	EmployeeID  string    `json:"employeeId"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`

	CategoryScores map[Category]float64 `json:"categoryScores"`
	FraudIndex     float64              `json:"fraudIndex"`
	RiskLevel      RiskLevel            `json:"riskLevel"`

	TransactionsAnalyzed int            `json:"transactionsAnalyzed"`
	ScoreDelta           float64        `json:"scoreDelta"`
	TrendDirection       TrendDirection `json:"trendDirection"`

	Concerns        []string `json:"concerns,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`

	// DegradedSources lists signal kinds that could not be read; the
	// snapshot is then a best-effort score over the remaining signals.
	DegradedSources []SignalKind `json:"degradedSources,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TrendReport is the 30-day history comparison for one employee.
type TrendReport struct {
	Direction TrendDirection `json:"direction"`
	ChangePct float64        `json:"changePct"`
	RecentAvg float64        `json:"recentAvg"`
	OlderAvg  float64        `json:"olderAvg"`
	Highest30 float64        `json:"highest30d"`
	Lowest30  float64        `json:"lowest30d"`
	Points    int            `json:"points"`
	Alert     bool           `json:"alert"`
}

// Peer comparison sentinels.
const (
	ComparisonAboveAverage = "above_average"
	ComparisonBelowAverage = "below_average"
	ComparisonAverage      = "average"
	ComparisonNoPeers      = "no_peers"
)

// PeerComparison ranks an employee's index against venue peers.
// When no peers exist, Comparison is "no_peers" and the numeric fields
// are zero rather than an error.
type PeerComparison struct {
	Comparison string  `json:"comparison"`
	PeerAvg    float64 `json:"peerAvg"`
	Percentile float64 `json:"percentile"`
	PeerCount  int     `json:"peerCount"`
}

// EvaluationResult is the API-facing wrapper combining the snapshot with
// its trend and peer context.
type EvaluationResult struct {
	Snapshot *Snapshot       `json:"snapshot"`
	Trend    *TrendReport    `json:"trend,omitempty"`
	Peers    *PeerComparison `json:"peers,omitempty"`
}
