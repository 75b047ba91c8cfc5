package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gymdesk/internal/domain"
)

type PaymentService struct {
	store Store
	now   func() time.Time
}

func NewPaymentService(store Store) *PaymentService {
	return &PaymentService{store: store, now: time.Now}
}

// MarkPaid settles a pending payment. When it was the last open installment
// of its plan, the plan becomes completed.
func (s *PaymentService) MarkPaid(ctx context.Context, paymentID, method string, paidAt *time.Time) (*domain.Payment, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, fmt.Errorf("%w: payment_method is required", ErrInvalidInput)
	}

	p, err := s.store.Repos().Payments.Get(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	if p.Status != domain.PaymentPending {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidTransition, p.Status)
	}

	at := s.now()
	if paidAt != nil {
		at = *paidAt
	}

	steps := []step{
		{name: "mark_paid", run: func(ctx context.Context, r Repositories) error {
			return notFound(r.Payments.MarkPaid(ctx, paymentID, method, at), ErrPaymentNotFound)
		}},
	}
	if p.PlanID != nil {
		planID := *p.PlanID
		steps = append(steps, step{name: "complete_plan", run: func(ctx context.Context, r Repositories) error {
			open, err := r.Payments.CountOpenByPlan(ctx, planID)
			if err != nil {
				return err
			}
			if open > 0 {
				return nil
			}
			return r.Plans.SetStatus(ctx, planID, domain.PlanCompleted)
		}})
	}

	if err := runSteps(ctx, s.store, "mark paid", steps); err != nil {
		return nil, err
	}

	p.Status = domain.PaymentPaid
	p.PaymentMethod = &method
	p.PaidAt = &at
	return p, nil
}
