// Package dedup flags accidental duplicate payments and payment plans.
//
// Both detectors are pure: they never modify their input and return the
// records that should be removed, in input order.
package dedup

import (
	"fmt"
	"time"

	"gymdesk/internal/domain"
)

// DefaultPlanWindow is how close two plan creation times must be for the
// plans to count as a double submission.
const DefaultPlanWindow = 5 * time.Minute

// PlanWinnerPolicy decides which plan of a matching pair is flagged.
type PlanWinnerPolicy string

const (
	// PlanWinnerLaterIndex flags the plan that appears later in the input.
	PlanWinnerLaterIndex PlanWinnerPolicy = "later_index"
	// PlanWinnerKeepNewest flags the plan with the older created_at.
	PlanWinnerKeepNewest PlanWinnerPolicy = "keep_newest"
)

// ParsePlanWinner accepts the configuration spelling of a policy; empty
// selects PlanWinnerLaterIndex.
func ParsePlanWinner(s string) (PlanWinnerPolicy, error) {
	switch PlanWinnerPolicy(s) {
	case "", PlanWinnerLaterIndex:
		return PlanWinnerLaterIndex, nil
	case PlanWinnerKeepNewest:
		return PlanWinnerKeepNewest, nil
	}
	return "", fmt.Errorf("unknown plan winner policy %q", s)
}

type Options struct {
	Window     time.Duration
	PlanWinner PlanWinnerPolicy

	// IgnoreStandalone skips payments that belong to no plan.
	IgnoreStandalone bool
}

func DefaultOptions() Options {
	return Options{Window: DefaultPlanWindow, PlanWinner: PlanWinnerLaterIndex}
}

func (o Options) window() time.Duration {
	if o.Window <= 0 {
		return DefaultPlanWindow
	}
	return o.Window
}

// PaymentKey identifies an installment. A payment without a plan has
// HasPlan=false and never collides with a plan whose id happens to be "null".
type PaymentKey struct {
	PlanID            string
	HasPlan           bool
	InstallmentNumber int
	Amount            string
}

func KeyOf(p domain.Payment) PaymentKey {
	k := PaymentKey{
		InstallmentNumber: p.InstallmentNumber,
		Amount:            p.Amount.String(),
	}
	if p.PlanID != nil {
		k.PlanID = *p.PlanID
		k.HasPlan = true
	}
	return k
}

// DuplicatePayments walks the list once and returns every payment whose key
// was already seen. The first occurrence of a key is always kept, so for a
// newest-first list the most recently created payment survives.
func DuplicatePayments(payments []domain.Payment, opts Options) []domain.Payment {
	seen := make(map[PaymentKey]struct{}, len(payments))
	var dups []domain.Payment

	for _, p := range payments {
		if opts.IgnoreStandalone && p.Standalone() {
			continue
		}
		k := KeyOf(p)
		if _, ok := seen[k]; ok {
			dups = append(dups, p)
			continue
		}
		seen[k] = struct{}{}
	}

	return dups
}

// SamePlan reports whether b looks like an accidental resubmission of a:
// equal total, installment count and start day, created less than window apart.
func SamePlan(a, b domain.PaymentPlan, window time.Duration) bool {
	if !a.TotalAmount.Equal(b.TotalAmount) {
		return false
	}
	if a.Installments != b.Installments {
		return false
	}
	if a.StartDate.Format(time.DateOnly) != b.StartDate.Format(time.DateOnly) {
		return false
	}

	diff := a.CreatedAt.Sub(b.CreatedAt)
	if diff < 0 {
		diff = -diff
	}
	return diff < window
}

// DuplicatePlans compares every pair of plans. With PlanWinnerLaterIndex the
// later-indexed plan of a matching pair is flagged, which for a newest-first
// list is not guaranteed to be the older one when created_at values tie or the
// input is unordered. Each plan is returned at most once.
func DuplicatePlans(plans []domain.PaymentPlan, opts Options) []domain.PaymentPlan {
	window := opts.window()
	flagged := make([]bool, len(plans))

	for i := 0; i < len(plans); i++ {
		for j := i + 1; j < len(plans); j++ {
			if !SamePlan(plans[i], plans[j], window) {
				continue
			}

			loser := j
			if opts.PlanWinner == PlanWinnerKeepNewest && plans[j].CreatedAt.After(plans[i].CreatedAt) {
				loser = i
			}
			flagged[loser] = true
		}
	}

	var dups []domain.PaymentPlan
	for i, f := range flagged {
		if f {
			dups = append(dups, plans[i])
		}
	}
	return dups
}
