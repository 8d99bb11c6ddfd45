package service

import (
	"context"
	"fmt"

	"sessiongate/internal/evm"
	"sessiongate/internal/session/domain"
	"sessiongate/internal/session/repository"
)

// RegistryService exposes grant creation and lookup with the
// self-authorization rule: only the owning account may create or replace a
// grant. The caller identity is an explicit, already-authenticated
// parameter, never ambient state.
type RegistryService struct {
	repo  repository.Repository
	locks *KeyLocks
}

// NewRegistryService returns a RegistryService over the given repository.
// Pass the locks shared with the SpendValidator so a grant replacement and
// an in-flight spend for the same pair serialize instead of interleaving.
// Nil locks get a private table.
func NewRegistryService(repo repository.Repository, locks *KeyLocks) *RegistryService {
	if locks == nil {
		locks = NewKeyLocks()
	}
	return &RegistryService{repo: repo, locks: locks}
}

// Create validates and persists a grant on behalf of caller. ErrForbidden
// when caller is not the grant's owning account, or when it tries to
// replace a grant owned by a different account.
func (s *RegistryService) Create(ctx context.Context, caller evm.Address, g *domain.SessionGrant) error {
	if g == nil {
		return domain.ErrInvalidLimit
	}
	if caller != g.Account {
		return ErrForbidden
	}
	if err := g.Validate(); err != nil {
		return err
	}

	unlock := s.locks.lock(g.SessionKey, g.Asset)
	defer unlock()

	existing, err := s.repo.Get(ctx, g.SessionKey, g.Asset)
	if err != nil {
		return fmt.Errorf("session: lookup grant: %w", err)
	}
	if existing != nil && existing.Account != caller {
		return ErrForbidden
	}
	return s.repo.Create(ctx, g)
}

// Get returns the grant for (sessionKey, asset), or nil if none exists.
func (s *RegistryService) Get(ctx context.Context, sessionKey, asset evm.Address) (*domain.SessionGrant, error) {
	return s.repo.Get(ctx, sessionKey, asset)
}
