package dedup

import "gymdesk/internal/domain"

// Summary is the outcome of running both detectors over one client's records.
type Summary struct {
	Payments []domain.Payment
	Plans    []domain.PaymentPlan

	// PlanPayments are the payments owned by a flagged plan; they go away
	// together with the plan.
	PlanPayments []domain.Payment
}

func Detect(payments []domain.Payment, plans []domain.PaymentPlan, opts Options) Summary {
	s := Summary{
		Payments: DuplicatePayments(payments, opts),
		Plans:    DuplicatePlans(plans, opts),
	}

	if len(s.Plans) > 0 {
		ids := make(map[string]struct{}, len(s.Plans))
		for _, p := range s.Plans {
			ids[p.ID] = struct{}{}
		}
		for _, p := range payments {
			if p.PlanID == nil {
				continue
			}
			if _, ok := ids[*p.PlanID]; ok {
				s.PlanPayments = append(s.PlanPayments, p)
			}
		}
	}

	return s
}

func (s Summary) Empty() bool {
	return len(s.Payments) == 0 && len(s.Plans) == 0
}

func (s Summary) PaymentIDs() []string {
	ids := make([]string, 0, len(s.Payments))
	for _, p := range s.Payments {
		ids = append(ids, p.ID)
	}
	return ids
}

func (s Summary) PlanIDs() []string {
	ids := make([]string, 0, len(s.Plans))
	for _, p := range s.Plans {
		ids = append(ids, p.ID)
	}
	return ids
}

// Total is the number of rows a reconciliation would remove. A duplicate
// payment that also belongs to a flagged plan is counted once.
func (s Summary) Total() int {
	ids := make(map[string]struct{}, len(s.Payments)+len(s.PlanPayments))
	for _, p := range s.Payments {
		ids[p.ID] = struct{}{}
	}
	for _, p := range s.PlanPayments {
		ids[p.ID] = struct{}{}
	}
	return len(ids) + len(s.Plans)
}
