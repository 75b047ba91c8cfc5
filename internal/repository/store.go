package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
)

var ErrNotFound = errors.New("record not found")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB

	Payments          *PaymentRepository
	Plans             *PlanRepository
	Profiles          *ProfileRepository
	AccessLogs        *AccessLogRepository
	Trash             *TrashRepository
	InstructorClients *InstructorClientRepository
}

func NewStore(db *sql.DB) *Store {
	return newStore(db, db)
}

func newStore(db *sql.DB, q DBTX) *Store {
	return &Store{
		db:                db,
		Payments:          NewPaymentRepository(q),
		Plans:             NewPlanRepository(q),
		Profiles:          NewProfileRepository(q),
		AccessLogs:        NewAccessLogRepository(q),
		Trash:             NewTrashRepository(q),
		InstructorClients: NewInstructorClientRepository(q),
	}
}

// InTx runs fn with repositories bound to a single transaction. The
// transaction is committed when fn returns nil and rolled back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(newStore(s.db, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[DB] rollback error: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
