package repository

import (
	"context"
	"math/big"
	"sync"

	"sessiongate/internal/evm"
	"sessiongate/internal/session/domain"
)

type grantKey struct {
	sessionKey evm.Address
	asset      evm.Address
}

// MemoryRepository is an in-memory Repository implementation used by tests
// and dev mode. Grants are deep-copied on the way in and out so callers
// never share big.Int state with the store.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[grantKey]*domain.SessionGrant
}

// NewMemoryRepository returns an empty in-memory grant store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[grantKey]*domain.SessionGrant)}
}

// Get returns the grant for (sessionKey, asset), or nil if not found.
func (r *MemoryRepository) Get(ctx context.Context, sessionKey, asset evm.Address) (*domain.SessionGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.m[grantKey{sessionKey, asset}]
	if !ok {
		return nil, nil
	}
	return g.Clone(), nil
}

// Create stores the grant, replacing any existing one for the same key.
func (r *MemoryRepository) Create(ctx context.Context, g *domain.SessionGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[grantKey{g.SessionKey, g.Asset}] = g.Clone()
	return nil
}

// UpdateUsage sets limitUsed and lastUsed for the grant. Missing grants are
// ignored; the validator only updates grants it just read.
func (r *MemoryRepository) UpdateUsage(ctx context.Context, sessionKey, asset evm.Address, limitUsed *big.Int, lastUsed int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.m[grantKey{sessionKey, asset}]
	if !ok {
		return nil
	}
	g.LimitUsed = new(big.Int).Set(limitUsed)
	g.LastUsed = lastUsed
	return nil
}
