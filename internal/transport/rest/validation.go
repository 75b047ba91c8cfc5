package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// decodeAndValidate reads an optional JSON body into dst and runs the struct
// tags. An empty body is allowed; required fields still fail validation.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Message: "invalid JSON"}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "min":
		msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "datetime":
		msg = fmt.Sprintf("%s must be YYYY-MM-DD", field)
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return &ValidationError{Field: field, Message: msg}
}

type CreateCarneRequest struct {
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Installments  int             `json:"installments" validate:"required,min=1,max=60"`
	StartDate     string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	PaymentMethod *string         `json:"payment_method" validate:"omitempty,min=1,max=50"`
	Force         bool            `json:"force"`
}

func ValidateCreateCarneRequest(r *http.Request) (*CreateCarneRequest, time.Time, error) {
	var req CreateCarneRequest
	if err := decodeAndValidate(r, &req); err != nil {
		return nil, time.Time{}, err
	}
	if !req.TotalAmount.IsPositive() {
		return nil, time.Time{}, &ValidationError{Field: "total_amount", Message: "total_amount must be greater than zero"}
	}
	if req.TotalAmount.Exponent() < -2 {
		return nil, time.Time{}, &ValidationError{Field: "total_amount", Message: "total_amount must have at most 2 decimal places"}
	}

	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		return nil, time.Time{}, &ValidationError{Field: "start_date", Message: "start_date must be YYYY-MM-DD"}
	}
	return &req, start, nil
}

type MarkPaidRequest struct {
	PaymentMethod string     `json:"payment_method" validate:"required,max=50"`
	PaidAt        *time.Time `json:"paid_at"`
}

func ValidateMarkPaidRequest(r *http.Request) (*MarkPaidRequest, error) {
	var req MarkPaidRequest
	if err := decodeAndValidate(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

type SoftDeleteRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

func ValidateSoftDeleteRequest(r *http.Request) (*SoftDeleteRequest, error) {
	var req SoftDeleteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

type hardDeleteParams struct {
	Kind string `json:"type" validate:"required,oneof=profile pre_generated_account"`
	ID   string `json:"id" validate:"required,max=64"`
}

func validateHardDeleteParams(kind, id string) error {
	if err := validate.Struct(hardDeleteParams{Kind: kind, ID: id}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	return nil
}
