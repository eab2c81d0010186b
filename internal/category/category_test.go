package category

import (
	"fmt"
	"testing"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
)

var th = domain.DefaultScoringConfig().Thresholds

func baseTime() time.Time {
	return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
}

func setWithTransactions(n int) *domain.SignalSet {
	set := &domain.SignalSet{
		VenueID:     "venue-001",
		EmployeeID:  "emp-001",
		PeriodStart: baseTime().AddDate(0, 0, -30),
		PeriodEnd:   baseTime(),
	}
	for i := 0; i < n; i++ {
		set.Transactions = append(set.Transactions, &domain.Transaction{
			ID:         fmt.Sprintf("tx-%d", i),
			EmployeeID: "emp-001",
			Type:       "sale",
			Amount:     20 + float64(i%7),
			TenderType: "card",
			Timestamp:  baseTime().Add(time.Duration(i) * 10 * time.Minute),
		})
	}
	return set
}

func TestEmptySignalSetScoresZero(t *testing.T) {
	set := &domain.SignalSet{
		PeriodStart: baseTime().AddDate(0, 0, -30),
		PeriodEnd:   baseTime(),
	}
	for _, calc := range All() {
		if got := calc.Score(set, th); got != 0 {
			t.Errorf("%s: expected 0 for empty signals, got %.2f", calc.Category(), got)
		}
	}
}

func TestScoresStayInRange(t *testing.T) {
	// Saturate every heuristic and confirm the clamp holds.
	set := setWithTransactions(10)
	for i := 0; i < 50; i++ {
		ts := baseTime().Add(time.Duration(i) * time.Minute)
		set.Voids = append(set.Voids, &domain.Void{
			Amount: 500, MinutesSinceOrder: 90, AfterPayment: true,
			EndOfShift: true, Timestamp: ts,
		})
		set.Discounts = append(set.Discounts, &domain.Discount{
			Percent: 90, Approved: false, CustomerID: "cust-1", Timestamp: ts,
		})
		set.Refunds = append(set.Refunds, &domain.Refund{
			Amount: 100, HasReceipt: false, TenderType: "cash",
			Timestamp: time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC),
		})
		set.CashReports = append(set.CashReports, &domain.CashReport{
			Variance: -15, NoSaleCount: 5, Timestamp: ts,
		})
		set.Overrides = append(set.Overrides, &domain.ManagerOverride{
			EmployeeID: "emp-001", ApproverID: "emp-001", Timestamp: ts,
		})
		set.TimeEntries = append(set.TimeEntries, &domain.TimeEntry{
			ClockIn:         ts,
			ClockOut:        ts.Add(14 * time.Hour),
			ScheduledStart:  ts.Add(2 * time.Hour),
			ScheduledEnd:    ts.Add(10 * time.Hour),
			Manual:          true,
			UnusualLocation: true,
		})
	}
	for _, calc := range All() {
		got := calc.Score(set, th)
		if got < 0 || got > 100 {
			t.Errorf("%s: score %.2f out of [0,100]", calc.Category(), got)
		}
	}
}

func TestVoidRateOnly(t *testing.T) {
	// 8 voids against 100 transactions: only the rate heuristic fires,
	// so the score is positive but under the 40-point cap.
	set := setWithTransactions(100)
	for i := 0; i < 8; i++ {
		set.Voids = append(set.Voids, &domain.Void{
			Amount:            10, // below high-value
			MinutesSinceOrder: 5,
			Timestamp:         baseTime().Add(time.Duration(i) * time.Hour),
		})
	}

	got := VoidCalculator{}.Score(set, th)
	if got <= 0 || got >= 40 {
		t.Fatalf("expected rate-only score in (0,40), got %.2f", got)
	}

	// rate 0.08 vs threshold 0.05 scales to (0.03/0.05)*40 = 24.
	if got < 23.9 || got > 24.1 {
		t.Errorf("expected 24.0, got %.2f", got)
	}
}

func TestVoidRateBelowThreshold(t *testing.T) {
	set := setWithTransactions(100)
	for i := 0; i < 4; i++ {
		set.Voids = append(set.Voids, &domain.Void{
			Amount:    10,
			Timestamp: baseTime().Add(time.Duration(i) * time.Hour),
		})
	}
	if got := (VoidCalculator{}).Score(set, th); got != 0 {
		t.Errorf("expected 0 below rate threshold, got %.2f", got)
	}
}

func TestVoidConsecutiveFlat(t *testing.T) {
	set := setWithTransactions(100)
	set.Voids = []*domain.Void{
		{Amount: 10, Timestamp: baseTime()},
		{Amount: 10, Timestamp: baseTime().Add(3 * time.Minute)},
	}
	got := VoidCalculator{}.Score(set, th)
	if got != 20 {
		t.Errorf("expected flat 20 for consecutive voids, got %.2f", got)
	}

	// Same voids an hour apart should not fire.
	set.Voids[1].Timestamp = baseTime().Add(time.Hour)
	if got := (VoidCalculator{}).Score(set, th); got != 0 {
		t.Errorf("expected 0 for spread voids, got %.2f", got)
	}
}

func TestVoidAfterPayment(t *testing.T) {
	set := setWithTransactions(200)
	set.Voids = []*domain.Void{
		{Amount: 10, AfterPayment: true, Timestamp: baseTime()},
	}
	got := VoidCalculator{}.Score(set, th)
	if got != 10 {
		t.Errorf("expected 10 for one post-payment void, got %.2f", got)
	}
}

func TestDiscountUnapproved(t *testing.T) {
	set := setWithTransactions(100)
	for i := 0; i < 2; i++ {
		set.Discounts = append(set.Discounts, &domain.Discount{
			Percent:   10,
			Approved:  false,
			Timestamp: baseTime().Add(time.Duration(i) * time.Hour),
		})
	}
	got := DiscountCalculator{}.Score(set, th)
	if got != 20 {
		t.Errorf("expected 20 for two unapproved discounts, got %.2f", got)
	}
}

func TestDiscountRepeatCustomer(t *testing.T) {
	set := setWithTransactions(100)
	for i := 0; i < 3; i++ {
		set.Discounts = append(set.Discounts, &domain.Discount{
			Percent:    10,
			Approved:   true,
			CustomerID: "regular-7",
			Timestamp:  baseTime().Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	got := DiscountCalculator{}.Score(set, th)
	if got != 20 {
		t.Errorf("expected flat 20 for repeat-customer pattern, got %.2f", got)
	}
}

func TestCashShortageScaling(t *testing.T) {
	tests := []struct {
		name     string
		variance float64
		want     float64
	}{
		{"large shortage", -60, 40}, // 60/50*40 = 48, capped at 40
		{"half threshold", -25, 20}, // 25/50*40 = 20
		{"at threshold", -50, 40},   // 50/50*40 = 40
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := setWithTransactions(0)
			set.CashReports = []*domain.CashReport{
				{Variance: tt.variance, Timestamp: baseTime()},
			}
			got := CashCalculator{}.Score(set, th)
			if got != tt.want {
				t.Errorf("variance %.0f: expected %.1f, got %.2f", tt.variance, tt.want, got)
			}
		})
	}
}

func TestCashRepeatedSmallShortages(t *testing.T) {
	set := setWithTransactions(0)
	for i := 0; i < 4; i++ {
		set.CashReports = append(set.CashReports, &domain.CashReport{
			Variance:  -5,
			Timestamp: baseTime().Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	got := CashCalculator{}.Score(set, th)
	// 20 cumulative shortage contributes 16, plus flat 30 for the pattern.
	want := 16.0 + 30.0
	if got != want {
		t.Errorf("expected %.1f, got %.2f", want, got)
	}
}

func TestCashNoSaleOpens(t *testing.T) {
	set := setWithTransactions(0)
	set.CashReports = []*domain.CashReport{
		{Variance: 0, NoSaleCount: 15, Timestamp: baseTime()},
	}
	got := CashCalculator{}.Score(set, th)
	if got != 10 {
		t.Errorf("expected 10 for 5 excess no-sales, got %.2f", got)
	}
}

func TestRefundNoReceipt(t *testing.T) {
	set := setWithTransactions(200)
	set.Refunds = []*domain.Refund{
		{Amount: 30, HasReceipt: false, TenderType: "cash", Timestamp: baseTime()},
	}
	got := RefundCalculator{}.Score(set, th)
	if got != 10 {
		t.Errorf("expected 10 for one receipt-less refund, got %.2f", got)
	}
}

func TestRefundTenderConcentration(t *testing.T) {
	set := setWithTransactions(1000)
	for i := 0; i < 6; i++ {
		set.Refunds = append(set.Refunds, &domain.Refund{
			Amount:     20,
			HasReceipt: true,
			TenderType: "cash",
			Timestamp:  baseTime().Add(time.Duration(i) * time.Hour),
		})
	}
	got := RefundCalculator{}.Score(set, th)
	if got != 20 {
		t.Errorf("expected flat 20 for tender concentration, got %.2f", got)
	}
}

func TestTimePadding(t *testing.T) {
	set := setWithTransactions(0)
	start := baseTime()
	set.TimeEntries = []*domain.TimeEntry{
		{
			ClockIn:        start.Add(-40 * time.Minute), // 40 early
			ClockOut:       start.Add(8*time.Hour + 30*time.Minute),
			ScheduledStart: start,
			ScheduledEnd:   start.Add(8 * time.Hour), // 30 late
		},
	}
	got := TimeCalculator{}.Score(set, th)
	// 70 padded minutes over the 30-minute floor -> 70/10 = 7 points.
	if got != 7 {
		t.Errorf("expected 7, got %.2f", got)
	}
}

func TestTimeManualCorrections(t *testing.T) {
	set := setWithTransactions(0)
	for i := 0; i < 8; i++ {
		in := baseTime().Add(time.Duration(i) * 24 * time.Hour)
		set.TimeEntries = append(set.TimeEntries, &domain.TimeEntry{
			ClockIn:  in,
			ClockOut: in.Add(6 * time.Hour),
			Manual:   true,
		})
	}
	got := TimeCalculator{}.Score(set, th)
	// 3 corrections beyond the threshold of 5 -> 15.
	if got != 15 {
		t.Errorf("expected 15, got %.2f", got)
	}
}

func TestPatternStreak(t *testing.T) {
	set := &domain.SignalSet{
		PeriodStart: baseTime().AddDate(0, 0, -30),
		PeriodEnd:   baseTime(),
	}
	for i := 0; i < 4; i++ {
		set.Transactions = append(set.Transactions, &domain.Transaction{
			Type:      "sale",
			Amount:    9.50,
			Timestamp: baseTime().Add(time.Duration(i) * time.Minute),
		})
	}
	got := PatternCalculator{}.Score(set, th)
	// Streak of 4 identical tickets -> 20. No baseline, so nothing else.
	if got != 20 {
		t.Errorf("expected 20, got %.2f", got)
	}
}

func TestPatternOffHours(t *testing.T) {
	set := &domain.SignalSet{
		PeriodStart: baseTime().AddDate(0, 0, -30),
		PeriodEnd:   baseTime(),
	}
	for i := 0; i < 2; i++ {
		set.Transactions = append(set.Transactions, &domain.Transaction{
			Type:      "sale",
			Amount:    15 + float64(i),
			Timestamp: time.Date(2025, 6, 2+i, 3, 30, 0, 0, time.UTC),
		})
	}
	got := PatternCalculator{}.Score(set, th)
	if got != 10 {
		t.Errorf("expected 10 for two off-hour transactions, got %.2f", got)
	}
}

func TestPatternTicketDeviation(t *testing.T) {
	set := setWithTransactions(0)
	for i := 0; i < 10; i++ {
		set.Transactions = append(set.Transactions, &domain.Transaction{
			Type:      "sale",
			Amount:    100 + float64(i), // far above baseline
			Timestamp: baseTime().Add(time.Duration(i) * 2 * time.Hour),
		})
	}
	set.Baseline = &domain.Baseline{
		AvgTicket:    20,
		TicketStddev: 5,
		AvgHourlyTx:  1,
	}
	got := PatternCalculator{}.Score(set, th)
	if got <= 0 {
		t.Errorf("expected positive score for ticket deviation, got %.2f", got)
	}
}

func TestOverrideSelfApproval(t *testing.T) {
	set := setWithTransactions(0)
	set.Overrides = []*domain.ManagerOverride{
		{EmployeeID: "emp-001", ApproverID: "emp-001", Timestamp: baseTime()},
	}
	got := OverrideCalculator{}.Score(set, th)
	if got != 30 {
		t.Errorf("expected flat 30 for self-approval, got %.2f", got)
	}
}

func TestOverrideConcentration(t *testing.T) {
	set := setWithTransactions(0)
	set.PeriodStart = baseTime().AddDate(0, 0, -28)
	for i := 0; i < 12; i++ {
		set.Overrides = append(set.Overrides, &domain.ManagerOverride{
			EmployeeID: "emp-001",
			ApproverID: "mgr-001",
			Timestamp:  baseTime().Add(-time.Duration(i) * 24 * time.Hour),
		})
	}
	got := OverrideCalculator{}.Score(set, th)
	// 3 overrides/week is under the frequency threshold; concentration
	// alone fires.
	if got != 30 {
		t.Errorf("expected flat 30 for approver concentration, got %.2f", got)
	}
}

func TestOverrideFrequency(t *testing.T) {
	set := setWithTransactions(0)
	set.PeriodStart = baseTime().AddDate(0, 0, -7)
	set.PeriodEnd = baseTime()
	for i := 0; i < 15; i++ {
		set.Overrides = append(set.Overrides, &domain.ManagerOverride{
			EmployeeID: "emp-001",
			ApproverID: fmt.Sprintf("mgr-%d", i%4),
			Timestamp:  baseTime().Add(-time.Duration(i) * time.Hour),
		})
	}
	got := OverrideCalculator{}.Score(set, th)
	// 15/week vs threshold 10 -> (15-10)*4 = 20. Volume over 10 but no
	// approver holds a majority.
	if got != 20 {
		t.Errorf("expected 20, got %.2f", got)
	}
}
