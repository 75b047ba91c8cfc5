package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/domain"

	"github.com/lib/pq"
)

const paymentColumns = `p.id, p.client_id, p.plan_id, p.amount, p.due_date, p.paid_at, p.payment_method, p.status,
	COALESCE(p.installment_number, 0), COALESCE(p.total_installments, 0), p.created_at`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		p       domain.Payment
		planID  sql.NullString
		dueDate sql.NullTime
		paidAt  sql.NullTime
		method  sql.NullString
		status  string
	)

	if err := row.Scan(
		&p.ID,
		&p.ClientID,
		&planID,
		&p.Amount,
		&dueDate,
		&paidAt,
		&method,
		&status,
		&p.InstallmentNumber,
		&p.TotalInstallments,
		&p.CreatedAt,
	); err != nil {
		return p, err
	}

	if planID.Valid {
		p.PlanID = &planID.String
	}
	if dueDate.Valid {
		p.DueDate = &dueDate.Time
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	if method.Valid {
		p.PaymentMethod = &method.String
	}
	p.Status = domain.PaymentStatus(status)

	return p, nil
}

func (r *PaymentRepository) list(ctx context.Context, where string, args ...any) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE ` + where + ` ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
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

// ListByClient returns the client's payments newest first.
func (r *PaymentRepository) ListByClient(ctx context.Context, clientID string) ([]domain.Payment, error) {
	return r.list(ctx, "p.client_id = $1", clientID)
}

func (r *PaymentRepository) ListByPlan(ctx context.Context, planID string) ([]domain.Payment, error) {
	return r.list(ctx, "p.plan_id = $1", planID)
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = $1`, id)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) CreateBatch(ctx context.Context, payments []domain.Payment) error {
	const query = `
		INSERT INTO payments (
			id, client_id, plan_id, amount, due_date, payment_method, status,
			installment_number, total_installments, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, p := range payments {
		if _, err := r.db.ExecContext(ctx, query,
			p.ID,
			p.ClientID,
			p.PlanID,
			p.Amount,
			p.DueDate,
			p.PaymentMethod,
			string(p.Status),
			p.InstallmentNumber,
			p.TotalInstallments,
			p.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert payment %s: %w", p.ID, err)
		}
	}
	return nil
}

func (r *PaymentRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete payments: %w", err)
	}
	return rowsAffected(res)
}

func (r *PaymentRepository) DeleteByPlanIDs(ctx context.Context, planIDs []string) (int64, error) {
	if len(planIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE plan_id = ANY($1)`, pq.Array(planIDs))
	if err != nil {
		return 0, fmt.Errorf("delete plan payments: %w", err)
	}
	return rowsAffected(res)
}

func (r *PaymentRepository) CancelPendingByClient(ctx context.Context, clientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1 WHERE client_id = $2 AND status = $3`,
		string(domain.PaymentCancelled), clientID, string(domain.PaymentPending),
	)
	if err != nil {
		return 0, fmt.Errorf("cancel pending payments: %w", err)
	}
	return rowsAffected(res)
}

// SetStatusByPlan moves every payment of the plan currently in from to to.
func (r *PaymentRepository) SetStatusByPlan(ctx context.Context, planID string, from, to domain.PaymentStatus) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1 WHERE plan_id = $2 AND status = $3`,
		string(to), planID, string(from),
	)
	if err != nil {
		return 0, fmt.Errorf("update plan payments: %w", err)
	}
	return rowsAffected(res)
}

func (r *PaymentRepository) MarkPaid(ctx context.Context, id, method string, paidAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, payment_method = $2, paid_at = $3 WHERE id = $4 AND status = $5`,
		string(domain.PaymentPaid), method, paidAt, id, string(domain.PaymentPending),
	)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
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

// CountOpenByPlan counts payments of the plan that are neither paid nor cancelled.
func (r *PaymentRepository) CountOpenByPlan(ctx context.Context, planID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE plan_id = $1 AND status NOT IN ($2, $3)`,
		planID, string(domain.PaymentPaid), string(domain.PaymentCancelled),
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
