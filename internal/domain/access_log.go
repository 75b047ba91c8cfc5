package domain

import "time"

type AccessLog struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	AccessType string    `json:"access_type"`
	AccessedAt time.Time `json:"accessed_at"`
}
