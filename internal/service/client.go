package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gymdesk/internal/dedup"
	"gymdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	stepArchive              = "archive_snapshot"
	stepCancelPayments       = "cancel_pending_payments"
	stepCancelPlans          = "cancel_active_plans"
	stepCancelEnrollment     = "cancel_enrollment"
	stepDeactivateInstructor = "deactivate_instructor_links"

	stepFreezePlan     = "set_plan_status"
	stepFreezePayments = "set_payment_status"

	defaultAccessLogLimit = 50
)

type ClientService struct {
	store          Store
	opts           dedup.Options
	accessLogLimit int
	now            func() time.Time
}

func NewClientService(store Store, opts dedup.Options) *ClientService {
	return &ClientService{
		store:          store,
		opts:           opts,
		accessLogLimit: defaultAccessLogLimit,
		now:            time.Now,
	}
}

// clientSnapshot is what lands in the trash table: a summary, not the rows.
type clientSnapshot struct {
	Profile         domain.Profile  `json:"profile"`
	PendingPayments int             `json:"pending_payments"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	ActivePlans     int             `json:"active_plans"`
	ActivePlanIDs   []string        `json:"active_plan_ids"`
	CancelledAt     time.Time       `json:"cancelled_at"`
}

type SoftDeleteResult struct {
	ClientID              string `json:"client_id"`
	TrashID               string `json:"trash_id"`
	CancelledPayments     int64  `json:"cancelled_payments"`
	CancelledPlans        int64  `json:"cancelled_plans"`
	DeactivatedInstructor int64  `json:"deactivated_instructor_links"`
}

// SoftDelete moves an active or frozen client to cancelled: the summary goes
// to the trash table, pending payments and active plans are cancelled and
// instructor links deactivated.
func (s *ClientService) SoftDelete(ctx context.Context, adminID, clientID string, reason *string) (*SoftDeleteResult, error) {
	r := s.store.Repos()

	profile, err := r.Profiles.Get(ctx, clientID)
	if err != nil {
		return nil, notFound(err, ErrClientNotFound)
	}
	if profile.EnrollmentStatus == domain.EnrollmentCancelled {
		return nil, ErrAlreadyCancelled
	}

	payments, err := r.Payments.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	plans, err := r.Plans.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	now := s.now()
	snap := clientSnapshot{
		Profile:       *profile,
		PendingAmount: decimal.Zero,
		PaidAmount:    decimal.Zero,
		ActivePlanIDs: []string{},
		CancelledAt:   now,
	}
	for _, p := range payments {
		switch p.Status {
		case domain.PaymentPending:
			snap.PendingPayments++
			snap.PendingAmount = snap.PendingAmount.Add(p.Amount)
		case domain.PaymentPaid:
			snap.PaidAmount = snap.PaidAmount.Add(p.Amount)
		}
	}
	for _, p := range plans {
		if p.Status == domain.PlanActive {
			snap.ActivePlans++
			snap.ActivePlanIDs = append(snap.ActivePlanIDs, p.ID)
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	result := &SoftDeleteResult{ClientID: clientID, TrashID: uuid.NewString()}
	item := domain.TrashItem{
		ID:         result.TrashID,
		ItemType:   domain.TrashItemProfile,
		OriginalID: clientID,
		Snapshot:   data,
		Reason:     reason,
		DeletedBy:  adminID,
		DeletedAt:  now,
	}

	err = runSteps(ctx, s.store, "soft delete", []step{
		{name: stepArchive, run: func(ctx context.Context, r Repositories) error {
			return r.Trash.Insert(ctx, item)
		}},
		{name: stepCancelPayments, run: func(ctx context.Context, r Repositories) error {
			n, err := r.Payments.CancelPendingByClient(ctx, clientID)
			result.CancelledPayments = n
			return err
		}},
		{name: stepCancelPlans, run: func(ctx context.Context, r Repositories) error {
			n, err := r.Plans.CancelActiveByClient(ctx, clientID)
			result.CancelledPlans = n
			return err
		}},
		{name: stepCancelEnrollment, run: func(ctx context.Context, r Repositories) error {
			return r.Profiles.SetEnrollmentStatus(ctx, clientID, domain.EnrollmentCancelled)
		}},
		{name: stepDeactivateInstructor, run: func(ctx context.Context, r Repositories) error {
			n, err := r.Instructors.DeactivateByClient(ctx, clientID)
			result.DeactivatedInstructor = n
			return err
		}},
	})
	if err != nil {
		log.Printf("[CLIENT] soft delete client=%s admin=%s: %v", clientID, adminID, err)
		return nil, err
	}

	log.Printf("[CLIENT] client=%s cancelled by admin=%s (payments=%d plans=%d)",
		clientID, adminID, result.CancelledPayments, result.CancelledPlans)
	return result, nil
}

func (s *ClientService) Freeze(ctx context.Context, planID string) (*domain.PaymentPlan, error) {
	return s.transitionPlan(ctx, planID, domain.PlanActive, domain.PlanFrozen, domain.PaymentPending, domain.PaymentFrozen)
}

func (s *ClientService) Unfreeze(ctx context.Context, planID string) (*domain.PaymentPlan, error) {
	return s.transitionPlan(ctx, planID, domain.PlanFrozen, domain.PlanActive, domain.PaymentFrozen, domain.PaymentPending)
}

func (s *ClientService) transitionPlan(
	ctx context.Context,
	planID string,
	from, to domain.PlanStatus,
	paymentFrom, paymentTo domain.PaymentStatus,
) (*domain.PaymentPlan, error) {
	plan, err := s.store.Repos().Plans.Get(ctx, planID)
	if err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	if plan.Status != from {
		return nil, fmt.Errorf("%w: plan is %s, expected %s", ErrInvalidTransition, plan.Status, from)
	}

	op := "freeze plan"
	if to == domain.PlanActive {
		op = "unfreeze plan"
	}

	err = runSteps(ctx, s.store, op, []step{
		{name: stepFreezePlan, run: func(ctx context.Context, r Repositories) error {
			return r.Plans.SetStatus(ctx, planID, to)
		}},
		{name: stepFreezePayments, run: func(ctx context.Context, r Repositories) error {
			_, err := r.Payments.SetStatusByPlan(ctx, planID, paymentFrom, paymentTo)
			return err
		}},
	})
	if err != nil {
		return nil, err
	}

	plan.Status = to
	return plan, nil
}

type HistoryTotals struct {
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
	Frozen  decimal.Decimal `json:"frozen"`
}

type DuplicateBanner struct {
	Payments     int `json:"payments"`
	Plans        int `json:"plans"`
	TotalRecords int `json:"total_records"`
}

type ClientHistory struct {
	Profile    domain.Profile       `json:"profile"`
	Payments   []domain.Payment     `json:"payments"`
	Plans      []domain.PaymentPlan `json:"plans"`
	AccessLogs []domain.AccessLog   `json:"access_logs"`
	Totals     HistoryTotals        `json:"totals"`
	Duplicates DuplicateBanner      `json:"duplicates"`
}

// History gathers everything the client history view shows, including the
// duplicate counts for the warning banner.
func (s *ClientService) History(ctx context.Context, clientID string) (*ClientHistory, error) {
	r := s.store.Repos()

	profile, err := r.Profiles.Get(ctx, clientID)
	if err != nil {
		return nil, notFound(err, ErrClientNotFound)
	}

	payments, err := r.Payments.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	plans, err := r.Plans.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	logs, err := r.AccessLogs.ListByClient(ctx, clientID, s.accessLogLimit)
	if err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}

	h := &ClientHistory{
		Profile:    *profile,
		Payments:   nonNilPayments(payments),
		Plans:      nonNilPlans(plans),
		AccessLogs: logs,
		Totals:     HistoryTotals{Paid: decimal.Zero, Pending: decimal.Zero, Frozen: decimal.Zero},
	}
	if h.AccessLogs == nil {
		h.AccessLogs = []domain.AccessLog{}
	}

	for _, p := range payments {
		switch p.Status {
		case domain.PaymentPaid:
			h.Totals.Paid = h.Totals.Paid.Add(p.Amount)
		case domain.PaymentPending:
			h.Totals.Pending = h.Totals.Pending.Add(p.Amount)
		case domain.PaymentFrozen:
			h.Totals.Frozen = h.Totals.Frozen.Add(p.Amount)
		}
	}

	sum := dedup.Detect(payments, plans, s.opts)
	h.Duplicates = DuplicateBanner{
		Payments:     len(sum.Payments),
		Plans:        len(sum.Plans),
		TotalRecords: sum.Total(),
	}

	return h, nil
}
