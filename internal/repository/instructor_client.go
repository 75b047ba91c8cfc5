package repository

import (
	"context"
	"fmt"
)

type InstructorClientRepository struct {
	db DBTX
}

func NewInstructorClientRepository(db DBTX) *InstructorClientRepository {
	return &InstructorClientRepository{db: db}
}

func (r *InstructorClientRepository) DeactivateByClient(ctx context.Context, clientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE instructor_clients SET is_active = FALSE WHERE client_id = $1 AND is_active`,
		clientID,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate instructor links: %w", err)
	}
	return rowsAffected(res)
}
