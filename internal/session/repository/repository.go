// Package repository persists session grants keyed by (session key, asset).
package repository

import (
	"context"
	"math/big"

	"sessiongate/internal/evm"
	"sessiongate/internal/session/domain"
)

// Repository defines persistence for session grants. It is pure data:
// ownership and spend checks live in the service layer.
type Repository interface {
	// Get returns the grant for (sessionKey, asset), or nil if not found.
	// It returns an error only for storage failures, not for missing rows.
	Get(ctx context.Context, sessionKey, asset evm.Address) (*domain.SessionGrant, error)
	// Create persists the grant, replacing an existing one for the same
	// (sessionKey, asset).
	Create(ctx context.Context, g *domain.SessionGrant) error
	// UpdateUsage sets limitUsed and lastUsed for the grant in one write.
	UpdateUsage(ctx context.Context, sessionKey, asset evm.Address, limitUsed *big.Int, lastUsed int64) error
}
