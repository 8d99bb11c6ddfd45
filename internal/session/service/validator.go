package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"sessiongate/internal/evm"
	"sessiongate/internal/session/domain"
	"sessiongate/internal/session/repository"
)

// SpendValidator decides whether a session key may spend an amount of an
// asset at a given time, and commits the allowance bookkeeping on ALLOW.
//
// All reads and writes for one (session key, asset) pair are serialized
// behind a per-pair lock, so two concurrent spends against the same grant
// observe a strict total order and never read stale usage. Spends against
// different pairs proceed in parallel.
type SpendValidator struct {
	repo  repository.Repository
	locks *KeyLocks
}

// NewSpendValidator returns a SpendValidator over the given repository.
// Pass the same locks to NewRegistryService so grant replacement cannot
// interleave with an in-flight spend. Nil locks get a private table.
func NewSpendValidator(repo repository.Repository, locks *KeyLocks) *SpendValidator {
	if locks == nil {
		locks = NewKeyLocks()
	}
	return &SpendValidator{repo: repo, locks: locks}
}

// Authorize evaluates a spend of amount against the grant for
// (sessionKey, asset) at unix time now. Checks run in order and the first
// failure wins: grant existence, window start, window end, limit. On
// success the updated usage is persisted before the grant is returned; on
// any failure nothing is written.
//
// A zero amount is a valid spend: it passes the limit check trivially and
// still advances the window anchor.
func (v *SpendValidator) Authorize(ctx context.Context, sessionKey, asset evm.Address, amount *big.Int, now int64) (*domain.SessionGrant, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	unlock := v.locks.lock(sessionKey, asset)
	defer unlock()

	g, err := v.repo.Get(ctx, sessionKey, asset)
	if err != nil {
		return nil, fmt.Errorf("session: lookup grant: %w", err)
	}
	if g == nil {
		return nil, ErrNotAuthorized
	}
	if now < g.ValidAfter {
		return nil, ErrNotYetValid
	}
	if now >= g.ValidUntil {
		return nil, ErrExpired
	}

	used := g.EffectiveUsed(now)
	total := new(big.Int).Add(used, amount)
	if total.Cmp(g.LimitAmount) > 0 {
		return nil, ErrLimitExceeded
	}

	if err := v.repo.UpdateUsage(ctx, sessionKey, asset, total, now); err != nil {
		return nil, fmt.Errorf("session: persist usage: %w", err)
	}
	g.LimitUsed = total
	g.LastUsed = now
	return g, nil
}

// KeyLocks hands out one mutex per (session key, asset) pair. Locks are
// created on first use and kept for the life of the process; the key space
// is bounded by the number of active grants. One instance is shared by the
// validator and the registry so every grant read-modify-write for a pair
// serializes on the same mutex.
type KeyLocks struct {
	mu sync.Mutex
	m  map[grantLockKey]*sync.Mutex
}

// NewKeyLocks returns an empty lock table.
func NewKeyLocks() *KeyLocks {
	return &KeyLocks{m: make(map[grantLockKey]*sync.Mutex)}
}

type grantLockKey struct {
	sessionKey evm.Address
	asset      evm.Address
}

func (l *KeyLocks) lock(sessionKey, asset evm.Address) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[grantLockKey]*sync.Mutex)
	}
	k := grantLockKey{sessionKey, asset}
	m, ok := l.m[k]
	if !ok {
		m = &sync.Mutex{}
		l.m[k] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
