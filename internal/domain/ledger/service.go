package ledger

import (
	"context"
	"fmt"

	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/pkg/logger"
)

// Service provides business operations on the chart of accounts.
type Service struct {
	repo Repository
}

// NewService creates a new ledger registry service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create adds a user-defined ledger to the chart of accounts.
func (s *Service) Create(ctx context.Context, name string, group Group, subGroup string) (*Ledger, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	l := NewLedger(biz.ID, name, group, subGroup)
	if err := l.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	logger.Info(ctx, "ledger created", "id", l.ID, "name", l.Name, "group", l.Group)
	return l, nil
}

// Get retrieves a ledger by id.
func (s *Service) Get(ctx context.Context, ledgerID id.ID) (*Ledger, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, biz.ID, ledgerID)
}

// System returns the well-known ledger for a role (Cash, Sales, Output-Tax, ...).
func (s *Service) System(ctx context.Context, kind SystemKind) (*Ledger, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetBySystemKind(ctx, biz.ID, kind)
}

// List returns the full chart of accounts for the business.
func (s *Service) List(ctx context.Context) ([]Ledger, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, biz.ID)
}

// EnsureSystemLedgers creates any missing well-known ledgers for a business.
// Called when a business is provisioned (and by the seeder); idempotent.
func (s *Service) EnsureSystemLedgers(ctx context.Context, businessID id.ID) error {
	for _, def := range systemDefaults {
		existing, err := s.repo.GetBySystemKind(ctx, businessID, def.Kind)
		if err == nil && existing != nil {
			continue
		}

		kind := def.Kind
		l := NewLedger(businessID, def.Name, def.Group, def.SubGroup)
		l.SystemKind = &kind
		if err := s.repo.Create(ctx, l); err != nil {
			return fmt.Errorf("create system ledger %s: %w", def.Kind, err)
		}
	}
	return nil
}
