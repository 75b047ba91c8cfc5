package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFrozen    PaymentStatus = "frozen"
	PaymentCancelled PaymentStatus = "cancelled"
)

type Payment struct {
	ID       string  `json:"id"`
	ClientID string  `json:"client_id"`
	PlanID   *string `json:"plan_id"`

	Amount        decimal.Decimal `json:"amount"`
	DueDate       *time.Time      `json:"due_date"`
	PaidAt        *time.Time      `json:"paid_at"`
	PaymentMethod *string         `json:"payment_method"`
	Status        PaymentStatus   `json:"status"`

	InstallmentNumber int `json:"installment_number"`
	TotalInstallments int `json:"total_installments"`

	CreatedAt time.Time `json:"created_at"`
}

// Standalone reports whether the payment is a one-off charge outside any plan.
func (p Payment) Standalone() bool {
	return p.PlanID == nil
}
