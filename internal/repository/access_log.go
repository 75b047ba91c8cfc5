package repository

import (
	"context"

	"gymdesk/internal/domain"
)

type AccessLogRepository struct {
	db DBTX
}

func NewAccessLogRepository(db DBTX) *AccessLogRepository {
	return &AccessLogRepository{db: db}
}

func (r *AccessLogRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]domain.AccessLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, COALESCE(access_type, ''), accessed_at
		FROM access_logs
		WHERE client_id = $1
		ORDER BY accessed_at DESC
		LIMIT $2`, clientID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AccessLog
	for rows.Next() {
		var l domain.AccessLog
		if err := rows.Scan(&l.ID, &l.ClientID, &l.AccessType, &l.AccessedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
