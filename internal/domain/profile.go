package domain

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentFrozen    EnrollmentStatus = "frozen"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

type Profile struct {
	ID       string  `json:"id"`
	FullName string  `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`

	EnrollmentStatus EnrollmentStatus `json:"enrollment_status"`

	CreatedAt time.Time `json:"created_at"`
}
