package repository

import (
	"context"
	"fmt"

	"gymdesk/internal/domain"
)

type TrashRepository struct {
	db DBTX
}

func NewTrashRepository(db DBTX) *TrashRepository {
	return &TrashRepository{db: db}
}

func (r *TrashRepository) Insert(ctx context.Context, item domain.TrashItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deleted_items_trash (id, item_type, original_id, item_data, reason, deleted_by, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID,
		item.ItemType,
		item.OriginalID,
		item.Snapshot,
		item.Reason,
		item.DeletedBy,
		item.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trash item: %w", err)
	}
	return nil
}
