package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gymdesk/internal/domain"
	"gymdesk/internal/repository"
)

// memStore is an in-memory Store. With atomic=false a failing InTx keeps the
// writes made before the failure, like a client issuing one request per step.
type memStore struct {
	mu sync.Mutex

	atomic bool
	// fail maps "Repo.Method" to the error that call returns.
	fail map[string]error

	profiles    map[string]domain.Profile
	payments    []domain.Payment
	plans       []domain.PaymentPlan
	accessLogs  []domain.AccessLog
	trash       []domain.TrashItem
	instructors map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		atomic:      true,
		fail:        map[string]error{},
		profiles:    map[string]domain.Profile{},
		instructors: map[string]int{},
	}
}

type memSnapshot struct {
	profiles    map[string]domain.Profile
	payments    []domain.Payment
	plans       []domain.PaymentPlan
	trash       []domain.TrashItem
	instructors map[string]int
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		profiles:    make(map[string]domain.Profile, len(s.profiles)),
		payments:    append([]domain.Payment(nil), s.payments...),
		plans:       append([]domain.PaymentPlan(nil), s.plans...),
		trash:       append([]domain.TrashItem(nil), s.trash...),
		instructors: make(map[string]int, len(s.instructors)),
	}
	for k, v := range s.profiles {
		snap.profiles[k] = v
	}
	for k, v := range s.instructors {
		snap.instructors[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.profiles = snap.profiles
	s.payments = snap.payments
	s.plans = snap.plans
	s.trash = snap.trash
	s.instructors = snap.instructors
}

func (s *memStore) Repos() Repositories {
	return Repositories{
		Payments:    memPayments{s},
		Plans:       memPlans{s},
		Profiles:    memProfiles{s},
		AccessLogs:  memAccessLogs{s},
		Trash:       memTrash{s},
		Instructors: memInstructors{s},
	}
}

func (s *memStore) Atomic() bool { return s.atomic }

func (s *memStore) InTx(ctx context.Context, fn func(Repositories) error) error {
	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	err := fn(s.Repos())
	if err != nil && s.atomic {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
	}
	return err
}

func (s *memStore) failure(op string) error {
	return s.fail[op]
}

func (s *memStore) addProfile(p domain.Profile) {
	if p.EnrollmentStatus == "" {
		p.EnrollmentStatus = domain.EnrollmentActive
	}
	s.profiles[p.ID] = p
}

func (s *memStore) payment(id string) (domain.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Payment{}, false
}

func (s *memStore) plan(id string) (domain.PaymentPlan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.ID == id {
			return p, true
		}
	}
	return domain.PaymentPlan{}, false
}

func (s *memStore) profile(id string) domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id]
}

func inSet(id string, ids []string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type memPayments struct{ s *memStore }

func (r memPayments) ListByClient(ctx context.Context, clientID string) ([]domain.Payment, error) {
	if err := r.s.failure("Payments.ListByClient"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Payment
	for _, p := range r.s.payments {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memPayments) Get(ctx context.Context, id string) (*domain.Payment, error) {
	p, ok := r.s.payment(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memPayments) CreateBatch(ctx context.Context, payments []domain.Payment) error {
	if err := r.s.failure("Payments.CreateBatch"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments = append(r.s.payments, payments...)
	return nil
}

func (r memPayments) deleteWhere(match func(domain.Payment) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	kept := r.s.payments[:0:0]
	for _, p := range r.s.payments {
		if match(p) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.s.payments = kept
	return n
}

func (r memPayments) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if err := r.s.failure("Payments.DeleteByIDs"); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return r.deleteWhere(func(p domain.Payment) bool { return inSet(p.ID, ids) }), nil
}

func (r memPayments) DeleteByPlanIDs(ctx context.Context, planIDs []string) (int64, error) {
	if err := r.s.failure("Payments.DeleteByPlanIDs"); err != nil {
		return 0, err
	}
	if len(planIDs) == 0 {
		return 0, nil
	}
	return r.deleteWhere(func(p domain.Payment) bool { return p.PlanID != nil && inSet(*p.PlanID, planIDs) }), nil
}

func (r memPayments) update(match func(domain.Payment) bool, apply func(*domain.Payment)) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.payments {
		if match(r.s.payments[i]) {
			apply(&r.s.payments[i])
			n++
		}
	}
	return n
}

func (r memPayments) CancelPendingByClient(ctx context.Context, clientID string) (int64, error) {
	if err := r.s.failure("Payments.CancelPendingByClient"); err != nil {
		return 0, err
	}
	return r.update(
		func(p domain.Payment) bool { return p.ClientID == clientID && p.Status == domain.PaymentPending },
		func(p *domain.Payment) { p.Status = domain.PaymentCancelled },
	), nil
}

func (r memPayments) SetStatusByPlan(ctx context.Context, planID string, from, to domain.PaymentStatus) (int64, error) {
	if err := r.s.failure("Payments.SetStatusByPlan"); err != nil {
		return 0, err
	}
	return r.update(
		func(p domain.Payment) bool { return p.PlanID != nil && *p.PlanID == planID && p.Status == from },
		func(p *domain.Payment) { p.Status = to },
	), nil
}

func (r memPayments) MarkPaid(ctx context.Context, id, method string, paidAt time.Time) error {
	if err := r.s.failure("Payments.MarkPaid"); err != nil {
		return err
	}
	n := r.update(
		func(p domain.Payment) bool { return p.ID == id && p.Status == domain.PaymentPending },
		func(p *domain.Payment) {
			p.Status = domain.PaymentPaid
			p.PaymentMethod = &method
			p.PaidAt = &paidAt
		},
	)
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r memPayments) CountOpenByPlan(ctx context.Context, planID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.payments {
		if p.PlanID != nil && *p.PlanID == planID && (p.Status == domain.PaymentPending || p.Status == domain.PaymentFrozen) {
			n++
		}
	}
	return n, nil
}

type memPlans struct{ s *memStore }

func (r memPlans) ListByClient(ctx context.Context, clientID string) ([]domain.PaymentPlan, error) {
	if err := r.s.failure("Plans.ListByClient"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PaymentPlan
	for _, p := range r.s.plans {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memPlans) Get(ctx context.Context, id string) (*domain.PaymentPlan, error) {
	p, ok := r.s.plan(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memPlans) Create(ctx context.Context, p domain.PaymentPlan) error {
	if err := r.s.failure("Plans.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.plans = append(r.s.plans, p)
	return nil
}

func (r memPlans) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if err := r.s.failure("Plans.DeleteByIDs"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	kept := r.s.plans[:0:0]
	for _, p := range r.s.plans {
		if inSet(p.ID, ids) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.s.plans = kept
	return n, nil
}

func (r memPlans) CancelActiveByClient(ctx context.Context, clientID string) (int64, error) {
	if err := r.s.failure("Plans.CancelActiveByClient"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.plans {
		if r.s.plans[i].ClientID == clientID && r.s.plans[i].Status == domain.PlanActive {
			r.s.plans[i].Status = domain.PlanCancelled
			n++
		}
	}
	return n, nil
}

func (r memPlans) SetStatus(ctx context.Context, id string, status domain.PlanStatus) error {
	if err := r.s.failure("Plans.SetStatus"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.plans {
		if r.s.plans[i].ID == id {
			r.s.plans[i].Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r memPlans) ClientIDsWithPlans(ctx context.Context) ([]string, error) {
	if err := r.s.failure("Plans.ClientIDsWithPlans"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range r.s.plans {
		if !seen[p.ClientID] {
			seen[p.ClientID] = true
			out = append(out, p.ClientID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memProfiles struct{ s *memStore }

func (r memProfiles) Get(ctx context.Context, id string) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memProfiles) SetEnrollmentStatus(ctx context.Context, id string, status domain.EnrollmentStatus) error {
	if err := r.s.failure("Profiles.SetEnrollmentStatus"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.EnrollmentStatus = status
	r.s.profiles[id] = p
	return nil
}

type memAccessLogs struct{ s *memStore }

func (r memAccessLogs) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.AccessLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.AccessLog
	for _, l := range r.s.accessLogs {
		if l.ClientID == clientID {
			out = append(out, l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type memTrash struct{ s *memStore }

func (r memTrash) Insert(ctx context.Context, item domain.TrashItem) error {
	if err := r.s.failure("Trash.Insert"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.trash = append(r.s.trash, item)
	return nil
}

type memInstructors struct{ s *memStore }

func (r memInstructors) DeactivateByClient(ctx context.Context, clientID string) (int64, error) {
	if err := r.s.failure("Instructors.DeactivateByClient"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := int64(r.s.instructors[clientID])
	r.s.instructors[clientID] = 0
	return n, nil
}

var errBoom = errors.New("boom")
