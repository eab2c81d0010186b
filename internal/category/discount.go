package category

import (
	"github.com/open-hospitality/kestrel/internal/domain"
)

// repeatCustomerMin is the number of discounts to a single customer that
// marks a repeat-customer pattern.
const repeatCustomerMin = 3

// DiscountCalculator scores discount abuse: excessive discount rates,
// unapproved discounts, repeat-customer favoritism, and frequent deep
// discounts.
type DiscountCalculator struct{}

func (DiscountCalculator) Category() domain.Category { return domain.CategoryDiscount }

func (DiscountCalculator) Score(set *domain.SignalSet, th domain.Thresholds) float64 {
	discounts := set.Discounts
	if len(discounts) == 0 {
		return 0
	}

	var score float64

	// Discount rate above threshold, up to 30.
	if n := len(set.Transactions); n > 0 {
		rate := float64(len(discounts)) / float64(n)
		score += rateExcess(rate, th.DiscountRate, 30)
	}

	// Unapproved discounts, 10 points each up to 30.
	var unapproved int
	for _, d := range discounts {
		if !d.Approved {
			unapproved++
		}
	}
	score += capped(float64(unapproved)*10, 30)

	// Repeat-customer pattern, flat 20.
	perCustomer := make(map[string]int)
	for _, d := range discounts {
		if d.CustomerID == "" {
			continue
		}
		perCustomer[d.CustomerID]++
		if perCustomer[d.CustomerID] >= repeatCustomerMin {
			score += 20
			break
		}
	}

	// Frequent deep discounts, 4 points each up to 20 once there are
	// at least three.
	var deep int
	for _, d := range discounts {
		if d.Percent >= th.LargeDiscountPct {
			deep++
		}
	}
	if deep >= 3 {
		score += capped(float64(deep)*4, 20)
	}

	return clamp(score)
}
