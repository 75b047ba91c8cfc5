package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanCancelled PlanStatus = "cancelled"
	PlanFrozen    PlanStatus = "frozen"
)

// PaymentPlan is a carnê: one plan owning one payment row per installment.
type PaymentPlan struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`

	TotalAmount       decimal.Decimal `json:"total_amount"`
	Installments      int             `json:"installments"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`

	Status    PlanStatus `json:"status"`
	StartDate time.Time  `json:"start_date"`
	CreatedAt time.Time  `json:"created_at"`
}
