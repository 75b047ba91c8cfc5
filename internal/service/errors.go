package service

import (
	"errors"
	"fmt"
	"strings"

	"gymdesk/internal/repository"
)

var (
	ErrClientNotFound      = errors.New("client not found")
	ErrPlanNotFound        = errors.New("payment plan not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAlreadyCancelled    = errors.New("client is already cancelled")
	ErrNothingToReconcile  = errors.New("no duplicates to reconcile")
	ErrReconcileInProgress = errors.New("reconciliation already running for this client")
	ErrDuplicatePlan       = errors.New("an identical plan was created a few minutes ago")
	ErrInvalidInput        = errors.New("invalid input")
)

// StepError is returned when one step of a multi-step mutation fails.
// Applied lists the steps whose writes remain in place; it is empty when the
// store rolled the whole sequence back.
type StepError struct {
	Op      string
	Step    string
	Applied []string
	Err     error
}

func (e *StepError) Error() string {
	if len(e.Applied) == 0 {
		return fmt.Sprintf("%s: step %q failed: %v", e.Op, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: step %q failed after [%s]: %v", e.Op, e.Step, strings.Join(e.Applied, ", "), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func notFound(err error, sentinel error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return sentinel
	}
	return err
}
