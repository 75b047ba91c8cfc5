package service

import (
	"context"
	"errors"
	"time"

	"gymdesk/internal/domain"
	"gymdesk/internal/repository"
)

type PaymentRepository interface {
	ListByClient(ctx context.Context, clientID string) ([]domain.Payment, error)
	Get(ctx context.Context, id string) (*domain.Payment, error)
	CreateBatch(ctx context.Context, payments []domain.Payment) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	DeleteByPlanIDs(ctx context.Context, planIDs []string) (int64, error)
	CancelPendingByClient(ctx context.Context, clientID string) (int64, error)
	SetStatusByPlan(ctx context.Context, planID string, from, to domain.PaymentStatus) (int64, error)
	MarkPaid(ctx context.Context, id, method string, paidAt time.Time) error
	CountOpenByPlan(ctx context.Context, planID string) (int, error)
}

type PlanRepository interface {
	ListByClient(ctx context.Context, clientID string) ([]domain.PaymentPlan, error)
	Get(ctx context.Context, id string) (*domain.PaymentPlan, error)
	Create(ctx context.Context, p domain.PaymentPlan) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	CancelActiveByClient(ctx context.Context, clientID string) (int64, error)
	SetStatus(ctx context.Context, id string, status domain.PlanStatus) error
	ClientIDsWithPlans(ctx context.Context) ([]string, error)
}

type ProfileRepository interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
	SetEnrollmentStatus(ctx context.Context, id string, status domain.EnrollmentStatus) error
}

type AccessLogRepository interface {
	ListByClient(ctx context.Context, clientID string, limit int) ([]domain.AccessLog, error)
}

type TrashRepository interface {
	Insert(ctx context.Context, item domain.TrashItem) error
}

type InstructorLinkRepository interface {
	DeactivateByClient(ctx context.Context, clientID string) (int64, error)
}

// Repositories is the capability set handed to services instead of a global
// database handle.
type Repositories struct {
	Payments    PaymentRepository
	Plans       PlanRepository
	Profiles    ProfileRepository
	AccessLogs  AccessLogRepository
	Trash       TrashRepository
	Instructors InstructorLinkRepository
}

type Store interface {
	Repos() Repositories
	// InTx runs fn against repositories sharing one unit of work.
	InTx(ctx context.Context, fn func(Repositories) error) error
	// Atomic reports whether a failed InTx leaves no writes behind.
	Atomic() bool
}

type sqlStore struct {
	s *repository.Store
}

func NewSQLStore(s *repository.Store) Store {
	return sqlStore{s: s}
}

func reposOf(s *repository.Store) Repositories {
	return Repositories{
		Payments:    s.Payments,
		Plans:       s.Plans,
		Profiles:    s.Profiles,
		AccessLogs:  s.AccessLogs,
		Trash:       s.Trash,
		Instructors: s.InstructorClients,
	}
}

func (a sqlStore) Repos() Repositories { return reposOf(a.s) }

func (a sqlStore) Atomic() bool { return true }

func (a sqlStore) InTx(ctx context.Context, fn func(Repositories) error) error {
	return a.s.InTx(ctx, func(tx *repository.Store) error {
		return fn(reposOf(tx))
	})
}

type step struct {
	name string
	run  func(ctx context.Context, r Repositories) error
}

// runSteps executes steps in order inside one InTx call and reports which of
// them stayed applied when a later one fails.
func runSteps(ctx context.Context, store Store, op string, steps []step) error {
	var done []string

	err := store.InTx(ctx, func(r Repositories) error {
		done = done[:0]
		for _, st := range steps {
			if err := st.run(ctx, r); err != nil {
				return &StepError{Op: op, Step: st.name, Err: err}
			}
			done = append(done, st.name)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	var se *StepError
	if errors.As(err, &se) {
		if !store.Atomic() {
			se.Applied = append([]string(nil), done...)
		}
		return se
	}
	return &StepError{Op: op, Step: "commit", Err: err}
}
