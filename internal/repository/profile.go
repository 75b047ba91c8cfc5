package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gymdesk/internal/domain"
)

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (*domain.Profile, error) {
	var (
		p      domain.Profile
		status string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(full_name, ''), email, phone, enrollment_status, created_at
		FROM profiles
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p.EnrollmentStatus = domain.EnrollmentStatus(status)
	return &p, nil
}

func (r *ProfileRepository) SetEnrollmentStatus(ctx context.Context, id string, status domain.EnrollmentStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET enrollment_status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
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
