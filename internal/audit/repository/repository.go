package repository

import (
	"context"

	"sessiongate/internal/audit/domain"
)

// Repository defines persistence for decision logs.
type Repository interface {
	Create(ctx context.Context, d *domain.DecisionLog) error
	ListBySessionKey(ctx context.Context, sessionKey string, limit, offset int32) ([]*domain.DecisionLog, error)
}
