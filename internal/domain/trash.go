package domain

import "time"

// TrashItem keeps a summary snapshot of a soft-deleted record, not the raw rows.
type TrashItem struct {
	ID         string
	ItemType   string
	OriginalID string
	Snapshot   []byte
	Reason     *string
	DeletedBy  string
	DeletedAt  time.Time
}

const TrashItemProfile = "profile"
