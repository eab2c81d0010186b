package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
)

const (
	// trendWindowDays is how far back snapshot history is considered.
	trendWindowDays = 30

	// trendMinPoints is the minimum history for a directional trend;
	// below it the trend is stable with zero change.
	trendMinPoints = 3

	// trendRecentPoints is the size of the "recent" subset.
	trendRecentPoints = 7

	// trendChangePct is the mean change, in percent, separating
	// rising/declining from stable.
	trendChangePct = 15.0

	// sustainedElevation marks a run of recent indexes all above this
	// value as alert-worthy even without a rising direction.
	sustainedElevation = 40.0
)

// Trend compares the current index against the employee's own snapshot
// history. On a history read failure it falls back to a coarser two-point
// comparison against the previous snapshot rather than failing.
// Snapshots arrive ordered newest first.
func (e *Engine) Trend(ctx context.Context, venueID, employeeID string, currentIndex float64, previous *domain.Snapshot) *domain.TrendReport {
	since := time.Now().UTC().AddDate(0, 0, -trendWindowDays)
	history, err := e.repo.GetSnapshots(ctx, venueID, employeeID, since)
	if err != nil {
		slog.Warn("snapshot history unavailable, using two-point trend",
			"venue_id", venueID,
			"employee_id", employeeID,
			"error", err,
		)
		return twoPointTrend(currentIndex, previous)
	}

	return historyTrend(currentIndex, history)
}

// historyTrend implements the full 30-day comparison.
func historyTrend(currentIndex float64, history []*domain.Snapshot) *domain.TrendReport {
	report := &domain.TrendReport{
		Direction: domain.TrendStable,
		Points:    len(history),
	}
	if len(history) < trendMinPoints {
		return report
	}

	report.Highest30 = history[0].FraudIndex
	report.Lowest30 = history[0].FraudIndex
	for _, s := range history {
		if s.FraudIndex > report.Highest30 {
			report.Highest30 = s.FraudIndex
		}
		if s.FraudIndex < report.Lowest30 {
			report.Lowest30 = s.FraudIndex
		}
	}

	recent := history
	if len(recent) > trendRecentPoints {
		recent = history[:trendRecentPoints]
	}
	older := history[len(recent):]
	if len(older) == 0 {
		// Too few points to split: compare against the single oldest.
		older = history[len(history)-1:]
		recent = history[:len(history)-1]
	}

	report.RecentAvg = meanIndex(recent)
	report.OlderAvg = meanIndex(older)

	if report.OlderAvg > 0 {
		report.ChangePct = (report.RecentAvg - report.OlderAvg) / report.OlderAvg * 100
	} else if report.RecentAvg > 0 {
		report.ChangePct = 100
	}

	switch {
	case report.ChangePct > trendChangePct:
		report.Direction = domain.TrendRising
	case report.ChangePct < -trendChangePct:
		report.Direction = domain.TrendDeclining
	}

	if report.Direction == domain.TrendRising && currentIndex > 50 {
		report.Alert = true
	}
	if allAbove(recent, sustainedElevation) {
		report.Alert = true
	}

	return report
}

// twoPointTrend is the degraded comparison against just the previous
// snapshot.
func twoPointTrend(currentIndex float64, previous *domain.Snapshot) *domain.TrendReport {
	report := &domain.TrendReport{Direction: domain.TrendStable}
	if previous == nil {
		return report
	}

	report.Points = 1
	report.RecentAvg = currentIndex
	report.OlderAvg = previous.FraudIndex
	if previous.FraudIndex > 0 {
		report.ChangePct = (currentIndex - previous.FraudIndex) / previous.FraudIndex * 100
	} else if currentIndex > 0 {
		report.ChangePct = 100
	}

	switch {
	case report.ChangePct > trendChangePct:
		report.Direction = domain.TrendRising
	case report.ChangePct < -trendChangePct:
		report.Direction = domain.TrendDeclining
	}
	if report.Direction == domain.TrendRising && currentIndex > 50 {
		report.Alert = true
	}
	return report
}

// Peers ranks the subject's index against the latest snapshot of every
// other employee at the venue. Zero peers yields the no_peers sentinel,
// never a division by zero.
func (e *Engine) Peers(ctx context.Context, venueID, employeeID string, index float64) *domain.PeerComparison {
	snapshots, err := e.repo.GetLatestVenueSnapshots(ctx, venueID)
	if err != nil {
		slog.Warn("peer snapshots unavailable",
			"venue_id", venueID,
			"error", err,
		)
		return &domain.PeerComparison{Comparison: domain.ComparisonNoPeers}
	}

	var peers []float64
	for _, s := range snapshots {
		if s.EmployeeID != employeeID {
			peers = append(peers, s.FraudIndex)
		}
	}
	return ComparePeers(index, peers)
}

// ComparePeers computes mean and percentile rank of index among peers.
func ComparePeers(index float64, peers []float64) *domain.PeerComparison {
	if len(peers) == 0 {
		return &domain.PeerComparison{Comparison: domain.ComparisonNoPeers}
	}

	var sum float64
	var below int
	for _, p := range peers {
		sum += p
		if p < index {
			below++
		}
	}

	pc := &domain.PeerComparison{
		PeerAvg:    sum / float64(len(peers)),
		Percentile: float64(below) / float64(len(peers)) * 100,
		PeerCount:  len(peers),
	}
	switch {
	case index > pc.PeerAvg:
		pc.Comparison = domain.ComparisonAboveAverage
	case index < pc.PeerAvg:
		pc.Comparison = domain.ComparisonBelowAverage
	default:
		pc.Comparison = domain.ComparisonAverage
	}
	return pc
}

func meanIndex(snapshots []*domain.Snapshot) float64 {
	if len(snapshots) == 0 {
		return 0
	}
	var sum float64
	for _, s := range snapshots {
		sum += s.FraudIndex
	}
	return sum / float64(len(snapshots))
}

func allAbove(snapshots []*domain.Snapshot, floor float64) bool {
	if len(snapshots) == 0 {
		return false
	}
	for _, s := range snapshots {
		if s.FraudIndex <= floor {
			return false
		}
	}
	return true
}
