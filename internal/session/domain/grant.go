// Package domain holds the session grant record: the per (session key,
// asset) spending authorization issued by an account.
package domain

import (
	"errors"
	"math/big"

	"sessiongate/internal/evm"
)

var (
	// ErrInvalidWindow is returned when validAfter is after validUntil.
	ErrInvalidWindow = errors.New("session: validAfter must not be after validUntil")
	// ErrInvalidLimit is returned when the limit amounts are missing,
	// negative, or already inconsistent (limitUsed above limitAmount).
	ErrInvalidLimit = errors.New("session: invalid limit amounts")
)

// SessionGrant is one spending authorization, keyed by (SessionKey, Asset).
// Amounts are in the asset's smallest unit; timestamps are unix seconds.
type SessionGrant struct {
	// SessionKey is the address of the delegated signing key.
	SessionKey evm.Address
	// Asset is the token contract, or evm.ZeroAddress for the native asset.
	Asset evm.Address
	// Account is the owning account that issued this grant.
	Account evm.Address
	// ValidAfter is the start of the validity window (inclusive).
	ValidAfter int64
	// ValidUntil is the end of the validity window (exclusive).
	ValidUntil int64
	// LimitAmount is the maximum spendable amount per allowance window.
	LimitAmount *big.Int
	// LimitUsed is the amount already spent in the current window.
	LimitUsed *big.Int
	// LastUsed is the time of the last successful spend, anchoring the
	// allowance window.
	LastUsed int64
	// RefreshInterval is the window length in seconds; 0 disables refresh
	// so an exhausted grant stays exhausted until ValidUntil.
	RefreshInterval int64
}

// Validate checks the grant is well formed at creation time.
func (g *SessionGrant) Validate() error {
	if g.ValidAfter > g.ValidUntil {
		return ErrInvalidWindow
	}
	if g.LimitAmount == nil || g.LimitAmount.Sign() < 0 {
		return ErrInvalidLimit
	}
	if g.LimitUsed == nil {
		g.LimitUsed = new(big.Int)
	}
	if g.LimitUsed.Sign() < 0 || g.LimitUsed.Cmp(g.LimitAmount) > 0 {
		return ErrInvalidLimit
	}
	if g.RefreshInterval < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// EffectiveUsed returns the spent amount that still counts against the
// limit at time now. When a refresh interval is set and at least one full
// interval has passed since the last spend, the window has rolled over and
// nothing counts. The rollover is lazy: it is observed here, on the next
// spend attempt, never by a background timer.
func (g *SessionGrant) EffectiveUsed(now int64) *big.Int {
	if g.RefreshInterval > 0 && now >= g.LastUsed+g.RefreshInterval {
		return new(big.Int)
	}
	if g.LimitUsed == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(g.LimitUsed)
}

// Clone returns a deep copy of the grant.
func (g *SessionGrant) Clone() *SessionGrant {
	if g == nil {
		return nil
	}
	out := *g
	if g.LimitAmount != nil {
		out.LimitAmount = new(big.Int).Set(g.LimitAmount)
	}
	if g.LimitUsed != nil {
		out.LimitUsed = new(big.Int).Set(g.LimitUsed)
	}
	return &out
}
