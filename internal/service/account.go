package service

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const (
	AccountKindProfile      = "profile"
	AccountKindPreGenerated = "pre_generated_account"
)

type CleanupInvoker interface {
	Cleanup(ctx context.Context, bearerToken, kind, id string) error
}

// AccountService hard-deletes users and pre-generated license accounts via
// the remote cleanup function. Soft deletion lives in ClientService.
type AccountService struct {
	cleanup CleanupInvoker
}

func NewAccountService(cleanup CleanupInvoker) *AccountService {
	return &AccountService{cleanup: cleanup}
}

func (s *AccountService) HardDelete(ctx context.Context, bearerToken, kind, id string) error {
	kind = strings.TrimSpace(kind)
	if kind != AccountKindProfile && kind != AccountKindPreGenerated {
		return fmt.Errorf("%w: unknown account type %q", ErrInvalidInput, kind)
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if s.cleanup == nil {
		return fmt.Errorf("cleanup function not configured")
	}

	if err := s.cleanup.Cleanup(ctx, bearerToken, kind, id); err != nil {
		return fmt.Errorf("cleanup %s %s: %w", kind, id, err)
	}

	log.Printf("[CLEANUP] removed %s %s", kind, id)
	return nil
}
