package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gymdesk/internal/dedup"
	"gymdesk/internal/domain"
)

type ReportCache interface {
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dst any) error
	Del(ctx context.Context, keys ...string) error
}

type ReconcileNotifier interface {
	NotifyDuplicatesFound(ctx context.Context, clientID string, payments, plans int) error
	NotifyDuplicatesReconciled(ctx context.Context, adminID, clientID string, deleted int64) error
}

type DuplicateReport struct {
	ClientID string `json:"client_id"`

	DuplicatePayments []domain.Payment     `json:"duplicate_payments"`
	DuplicatePlans    []domain.PaymentPlan `json:"duplicate_plans"`

	DuplicatePaymentCount int `json:"duplicate_payment_count"`
	DuplicatePlanCount    int `json:"duplicate_plan_count"`
	PlanPaymentCount      int `json:"plan_payment_count"`
	TotalRecords          int `json:"total_records"`

	ScannedAt time.Time `json:"scanned_at"`
}

func (r *DuplicateReport) HasDuplicates() bool {
	return r.DuplicatePaymentCount > 0 || r.DuplicatePlanCount > 0
}

type ReconcileResult struct {
	ClientID string `json:"client_id"`

	DeletedPayments     int64 `json:"deleted_payments"`
	DeletedPlanPayments int64 `json:"deleted_plan_payments"`
	DeletedPlans        int64 `json:"deleted_plans"`

	RemainingPayments int `json:"remaining_payments"`
	RemainingPlans    int `json:"remaining_plans"`
}

func (r ReconcileResult) Total() int64 {
	return r.DeletedPayments + r.DeletedPlanPayments + r.DeletedPlans
}

const (
	stepDeletePayments     = "delete_payments"
	stepDeletePlanPayments = "delete_plan_payments"
	stepDeletePlans        = "delete_plans"

	reportCachePrefix = "duplicates:"
)

type ReconcileService struct {
	store    Store
	cache    ReportCache
	notify   ReconcileNotifier
	opts     dedup.Options
	cacheTTL time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

func NewReconcileService(store Store, cache ReportCache, notify ReconcileNotifier, opts dedup.Options, cacheTTL time.Duration) *ReconcileService {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &ReconcileService{
		store:    store,
		cache:    cache,
		notify:   notify,
		opts:     opts,
		cacheTTL: cacheTTL,
		now:      time.Now,
		running:  make(map[string]struct{}),
	}
}

func (s *ReconcileService) detect(ctx context.Context, r Repositories, clientID string) ([]domain.Payment, []domain.PaymentPlan, dedup.Summary, error) {
	payments, err := r.Payments.ListByClient(ctx, clientID)
	if err != nil {
		return nil, nil, dedup.Summary{}, fmt.Errorf("list payments: %w", err)
	}
	plans, err := r.Plans.ListByClient(ctx, clientID)
	if err != nil {
		return nil, nil, dedup.Summary{}, fmt.Errorf("list plans: %w", err)
	}
	return payments, plans, dedup.Detect(payments, plans, s.opts), nil
}

func (s *ReconcileService) buildReport(clientID string, sum dedup.Summary) *DuplicateReport {
	return &DuplicateReport{
		ClientID:              clientID,
		DuplicatePayments:     nonNilPayments(sum.Payments),
		DuplicatePlans:        nonNilPlans(sum.Plans),
		DuplicatePaymentCount: len(sum.Payments),
		DuplicatePlanCount:    len(sum.Plans),
		PlanPaymentCount:      len(sum.PlanPayments),
		TotalRecords:          sum.Total(),
		ScannedAt:             s.now(),
	}
}

// Scan fetches the client's records, runs both detectors and caches the report.
func (s *ReconcileService) Scan(ctx context.Context, clientID string) (*DuplicateReport, error) {
	r := s.store.Repos()

	if _, err := r.Profiles.Get(ctx, clientID); err != nil {
		return nil, notFound(err, ErrClientNotFound)
	}

	_, _, sum, err := s.detect(ctx, r, clientID)
	if err != nil {
		return nil, err
	}

	report := s.buildReport(clientID, sum)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, reportCachePrefix+clientID, report, s.cacheTTL); err != nil {
			log.Printf("[SCAN] cache report for client %s: %v", clientID, err)
		}
	}

	return report, nil
}

// Cached returns the last stored report for the client, if any.
func (s *ReconcileService) Cached(ctx context.Context, clientID string) (*DuplicateReport, bool) {
	if s.cache == nil {
		return nil, false
	}
	var report DuplicateReport
	if err := s.cache.GetJSON(ctx, reportCachePrefix+clientID, &report); err != nil {
		return nil, false
	}
	return &report, true
}

func (s *ReconcileService) lock(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[clientID]; busy {
		return false
	}
	s.running[clientID] = struct{}{}
	return true
}

func (s *ReconcileService) unlock(clientID string) {
	s.mu.Lock()
	delete(s.running, clientID)
	s.mu.Unlock()
}

// Reconcile detects duplicates from fresh data and removes them: duplicate
// payments by id, then every payment of a duplicate plan, then the plans.
func (s *ReconcileService) Reconcile(ctx context.Context, adminID, clientID string) (*ReconcileResult, error) {
	if !s.lock(clientID) {
		return nil, ErrReconcileInProgress
	}
	defer s.unlock(clientID)

	r := s.store.Repos()
	if _, err := r.Profiles.Get(ctx, clientID); err != nil {
		return nil, notFound(err, ErrClientNotFound)
	}

	_, _, sum, err := s.detect(ctx, r, clientID)
	if err != nil {
		return nil, err
	}
	if sum.Empty() {
		return nil, ErrNothingToReconcile
	}

	paymentIDs := sum.PaymentIDs()
	planIDs := sum.PlanIDs()
	result := &ReconcileResult{ClientID: clientID}

	err = runSteps(ctx, s.store, "reconcile", []step{
		{name: stepDeletePayments, run: func(ctx context.Context, r Repositories) error {
			n, err := r.Payments.DeleteByIDs(ctx, paymentIDs)
			result.DeletedPayments = n
			return err
		}},
		{name: stepDeletePlanPayments, run: func(ctx context.Context, r Repositories) error {
			n, err := r.Payments.DeleteByPlanIDs(ctx, planIDs)
			result.DeletedPlanPayments = n
			return err
		}},
		{name: stepDeletePlans, run: func(ctx context.Context, r Repositories) error {
			n, err := r.Plans.DeleteByIDs(ctx, planIDs)
			result.DeletedPlans = n
			return err
		}},
	})
	if err != nil {
		log.Printf("[RECONCILE] client=%s admin=%s: %v", clientID, adminID, err)
		return nil, err
	}

	log.Printf("[RECONCILE] client=%s admin=%s removed payments=%d plan_payments=%d plans=%d",
		clientID, adminID, result.DeletedPayments, result.DeletedPlanPayments, result.DeletedPlans)

	if s.cache != nil {
		if err := s.cache.Del(ctx, reportCachePrefix+clientID); err != nil {
			log.Printf("[RECONCILE] drop cached report for client %s: %v", clientID, err)
		}
	}

	payments, plans, _, err := s.detect(ctx, r, clientID)
	if err != nil {
		return nil, fmt.Errorf("reload client records: %w", err)
	}
	result.RemainingPayments = len(payments)
	result.RemainingPlans = len(plans)

	if s.notify != nil {
		_ = s.notify.NotifyDuplicatesReconciled(ctx, adminID, clientID, result.Total())
	}

	return result, nil
}

// ScanAll scans every client that owns a plan and returns the reports with
// duplicates. It never deletes anything.
func (s *ReconcileService) ScanAll(ctx context.Context) ([]DuplicateReport, error) {
	clientIDs, err := s.store.Repos().Plans.ClientIDsWithPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	var (
		found []DuplicateReport
		errs  []error
	)
	for _, id := range clientIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		report, err := s.Scan(ctx, id)
		if err != nil {
			if errors.Is(err, ErrClientNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("client %s: %w", id, err))
			continue
		}
		if !report.HasDuplicates() {
			continue
		}

		found = append(found, *report)
		if s.notify != nil {
			_ = s.notify.NotifyDuplicatesFound(ctx, id, report.DuplicatePaymentCount, report.DuplicatePlanCount)
		}
	}

	return found, errors.Join(errs...)
}

func nonNilPayments(p []domain.Payment) []domain.Payment {
	if p == nil {
		return []domain.Payment{}
	}
	return p
}

func nonNilPlans(p []domain.PaymentPlan) []domain.PaymentPlan {
	if p == nil {
		return []domain.PaymentPlan{}
	}
	return p
}
