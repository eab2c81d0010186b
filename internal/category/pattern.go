package category

import (
	"math"

	"github.com/open-hospitality/kestrel/internal/domain"
)

const (
	// velocityDeviation is the fractional deviation from the baseline
	// hourly transaction rate at which the velocity heuristic fires.
	velocityDeviation = 0.5

	// ticketSigma is the z-score beyond which a period's average ticket
	// counts as an outlier against the personal baseline.
	ticketSigma = 2.0

	// streakMin is the shortest suspicious run of identical transactions.
	streakMin = 3
)

// PatternCalculator scores statistical anomalies in transaction behavior:
// off-hours activity, velocity deviation from the personal baseline,
// average-ticket deviation beyond 2 sigma, and same-type streaks.
// Baseline-relative heuristics contribute nothing when no baseline exists.
type PatternCalculator struct{}

func (PatternCalculator) Category() domain.Category { return domain.CategoryPattern }

func (PatternCalculator) Score(set *domain.SignalSet, th domain.Thresholds) float64 {
	txs := set.Transactions
	if len(txs) == 0 {
		return 0
	}

	var score float64

	// Off-hours transactions, 5 points each up to 25.
	var offHour int
	for _, tx := range txs {
		if offHours(tx.Timestamp.Hour(), th) {
			offHour++
		}
	}
	score += capped(float64(offHour)*5, 25)

	// Velocity deviation beyond 50% of the baseline hourly rate, up to 25.
	if b := set.Baseline; b != nil && b.AvgHourlyTx > 0 {
		current := hourlyVelocity(txs)
		dev := math.Abs(current-b.AvgHourlyTx) / b.AvgHourlyTx
		if dev > velocityDeviation {
			score += capped((dev-velocityDeviation)*50, 25)
		}
	}

	// Average ticket beyond 2 sigma of the personal baseline, up to 25.
	if b := set.Baseline; b != nil && b.TicketStddev > 0 {
		var total float64
		for _, tx := range txs {
			total += tx.Amount
		}
		avg := total / float64(len(txs))
		z := math.Abs(avg-b.AvgTicket) / b.TicketStddev
		if z > ticketSigma {
			score += capped(z*8, 25)
		}
	}

	// Same-type, same-amount streaks of three or more, 5 points per
	// streak transaction up to 25.
	if streak := longestStreak(txs); streak >= streakMin {
		score += capped(float64(streak)*5, 25)
	}

	return clamp(score)
}

// hourlyVelocity returns the mean transaction count per active hour.
func hourlyVelocity(txs []*domain.Transaction) float64 {
	if len(txs) == 0 {
		return 0
	}
	hours := make(map[int64]int)
	for _, tx := range txs {
		hours[tx.Timestamp.Truncate(0).Unix()/3600]++
	}
	var total int
	for _, n := range hours {
		total += n
	}
	return float64(total) / float64(len(hours))
}

// longestStreak returns the longest run of consecutive transactions with
// identical type and amount. Identical repeated tickets are a common
// sweethearting signature.
func longestStreak(txs []*domain.Transaction) int {
	longest, run := 0, 0
	for i, tx := range txs {
		if i > 0 && tx.Type == txs[i-1].Type && tx.Amount == txs[i-1].Amount {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
