package category

import (
	"github.com/open-hospitality/kestrel/internal/domain"
)

const (
	// concentrationMinOverrides is the override count before approver
	// concentration is considered meaningful.
	concentrationMinOverrides = 10

	// concentrationShare is the single-approver share that marks a
	// possible collusion pair.
	concentrationShare = 0.5
)

// OverrideCalculator scores manager-override abuse: override frequency
// beyond the weekly threshold, single-approver concentration (collusion),
// and self-approval.
type OverrideCalculator struct{}

func (OverrideCalculator) Category() domain.Category { return domain.CategoryOverride }

func (OverrideCalculator) Score(set *domain.SignalSet, th domain.Thresholds) float64 {
	overrides := set.Overrides
	if len(overrides) == 0 {
		return 0
	}

	var score float64

	// Weekly frequency beyond the threshold, 4 points per excess override
	// per week, up to 40.
	weeks := float64(set.PeriodDays()) / 7
	if weeks < 1 {
		weeks = 1
	}
	perWeek := float64(len(overrides)) / weeks
	if perWeek > th.OverridesPerWeek {
		score += capped((perWeek-th.OverridesPerWeek)*4, 40)
	}

	// Single-approver concentration above 50% with a meaningful volume,
	// flat 30.
	if len(overrides) > concentrationMinOverrides {
		perApprover := make(map[string]int)
		max := 0
		for _, ov := range overrides {
			perApprover[ov.ApproverID]++
			if perApprover[ov.ApproverID] > max {
				max = perApprover[ov.ApproverID]
			}
		}
		if float64(max)/float64(len(overrides)) > concentrationShare {
			score += 30
		}
	}

	// Self-approval, flat 30. An employee approving their own overrides
	// defeats the control entirely.
	for _, ov := range overrides {
		if ov.ApproverID != "" && ov.ApproverID == ov.EmployeeID {
			score += 30
			break
		}
	}

	return clamp(score)
}
