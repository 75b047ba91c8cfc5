package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gymdesk/internal/domain"

	"github.com/lib/pq"
)

const planColumns = `pp.id, pp.client_id, pp.total_amount, pp.installments, pp.installment_amount,
	pp.status, pp.start_date, pp.created_at`

type PlanRepository struct {
	db DBTX
}

func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

func scanPlan(row rowScanner) (domain.PaymentPlan, error) {
	var (
		p      domain.PaymentPlan
		status string
	)
	if err := row.Scan(
		&p.ID,
		&p.ClientID,
		&p.TotalAmount,
		&p.Installments,
		&p.InstallmentAmount,
		&status,
		&p.StartDate,
		&p.CreatedAt,
	); err != nil {
		return p, err
	}
	p.Status = domain.PlanStatus(status)
	return p, nil
}

// ListByClient returns the client's plans newest first.
func (r *PlanRepository) ListByClient(ctx context.Context, clientID string) ([]domain.PaymentPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM payment_plans pp WHERE pp.client_id = $1 ORDER BY pp.created_at DESC`,
		clientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PlanRepository) Get(ctx context.Context, id string) (*domain.PaymentPlan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM payment_plans pp WHERE pp.id = $1`, id)

	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PlanRepository) Create(ctx context.Context, p domain.PaymentPlan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_plans (
			id, client_id, total_amount, installments, installment_amount, status, start_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID,
		p.ClientID,
		p.TotalAmount,
		p.Installments,
		p.InstallmentAmount,
		string(p.Status),
		p.StartDate,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plan %s: %w", p.ID, err)
	}
	return nil
}

func (r *PlanRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM payment_plans WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete plans: %w", err)
	}
	return rowsAffected(res)
}

func (r *PlanRepository) CancelActiveByClient(ctx context.Context, clientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_plans SET status = $1 WHERE client_id = $2 AND status = $3`,
		string(domain.PlanCancelled), clientID, string(domain.PlanActive),
	)
	if err != nil {
		return 0, fmt.Errorf("cancel active plans: %w", err)
	}
	return rowsAffected(res)
}

func (r *PlanRepository) SetStatus(ctx context.Context, id string, status domain.PlanStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE payment_plans SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClientIDsWithPlans lists every client owning at least one non-cancelled plan.
func (r *PlanRepository) ClientIDsWithPlans(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT client_id FROM payment_plans WHERE status <> $1 ORDER BY client_id`,
		string(domain.PlanCancelled),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
