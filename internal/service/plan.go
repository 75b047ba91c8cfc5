package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"gymdesk/internal/dedup"
	"gymdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const MaxInstallments = 60

type CreateCarneInput struct {
	ClientID      string
	TotalAmount   decimal.Decimal
	Installments  int
	StartDate     time.Time
	PaymentMethod *string

	// Force skips the double-submission guard.
	Force bool
}

type Carne struct {
	Plan     domain.PaymentPlan `json:"plan"`
	Payments []domain.Payment   `json:"payments"`
}

type PlanService struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

func NewPlanService(store Store, window time.Duration) *PlanService {
	if window <= 0 {
		window = dedup.DefaultPlanWindow
	}
	return &PlanService{store: store, window: window, now: time.Now}
}

// SplitInstallments divides total into n amounts rounded down to cents; the
// remainder is added to the last installment so the parts always sum to total.
func SplitInstallments(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	count := decimal.NewFromInt(int64(n))
	base := total.Div(count).Truncate(2)

	out := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		out[i] = base
	}
	out[n-1] = total.Sub(base.Mul(decimal.NewFromInt(int64(n - 1))))
	return out
}

// AddMonthsClamped moves t forward by months, keeping the day of month but
// clamping it to the last day of shorter months (Jan 31 + 1 -> Feb 28/29).
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func (in CreateCarneInput) validate() error {
	if in.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if !in.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: total_amount must be greater than zero", ErrInvalidInput)
	}
	if in.Installments < 1 || in.Installments > MaxInstallments {
		return fmt.Errorf("%w: installments must be between 1 and %d", ErrInvalidInput, MaxInstallments)
	}
	if in.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", ErrInvalidInput)
	}
	return nil
}

// CreateCarne creates one plan and a pending payment per installment.
func (s *PlanService) CreateCarne(ctx context.Context, in CreateCarneInput) (*Carne, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	r := s.store.Repos()

	profile, err := r.Profiles.Get(ctx, in.ClientID)
	if err != nil {
		return nil, notFound(err, ErrClientNotFound)
	}
	if profile.EnrollmentStatus == domain.EnrollmentCancelled {
		return nil, ErrAlreadyCancelled
	}

	now := s.now()
	amounts := SplitInstallments(in.TotalAmount, in.Installments)

	plan := domain.PaymentPlan{
		ID:                uuid.NewString(),
		ClientID:          in.ClientID,
		TotalAmount:       in.TotalAmount,
		Installments:      in.Installments,
		InstallmentAmount: amounts[0],
		Status:            domain.PlanActive,
		StartDate:         in.StartDate,
		CreatedAt:         now,
	}

	if !in.Force {
		existing, err := r.Plans.ListByClient(ctx, in.ClientID)
		if err != nil {
			return nil, fmt.Errorf("list plans: %w", err)
		}
		for _, p := range existing {
			if p.Status == domain.PlanCancelled {
				continue
			}
			if dedup.SamePlan(p, plan, s.window) {
				return nil, fmt.Errorf("%w (plan %s)", ErrDuplicatePlan, p.ID)
			}
		}
	}

	payments := make([]domain.Payment, 0, in.Installments)
	for i, amount := range amounts {
		due := AddMonthsClamped(in.StartDate, i)
		planID := plan.ID
		payments = append(payments, domain.Payment{
			ID:                uuid.NewString(),
			ClientID:          in.ClientID,
			PlanID:            &planID,
			Amount:            amount,
			DueDate:           &due,
			PaymentMethod:     in.PaymentMethod,
			Status:            domain.PaymentPending,
			InstallmentNumber: i + 1,
			TotalInstallments: in.Installments,
			CreatedAt:         now,
		})
	}

	err = runSteps(ctx, s.store, "create carne", []step{
		{name: "create_plan", run: func(ctx context.Context, r Repositories) error {
			return r.Plans.Create(ctx, plan)
		}},
		{name: "create_payments", run: func(ctx context.Context, r Repositories) error {
			return r.Payments.CreateBatch(ctx, payments)
		}},
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[PLAN] client=%s plan=%s total=%s installments=%d", in.ClientID, plan.ID, plan.TotalAmount, plan.Installments)
	return &Carne{Plan: plan, Payments: payments}, nil
}
