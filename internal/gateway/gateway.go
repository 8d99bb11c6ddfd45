package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"sessiongate/internal/audit"
	"sessiongate/internal/calldecode"
	"sessiongate/internal/evm"
	"sessiongate/internal/security"
	"sessiongate/internal/session/service"
)

// Stage names the pipeline state an operation has reached.
type Stage string

const (
	StageReceived         Stage = "received"
	StageSignatureChecked Stage = "signature_checked"
	StageDecoded          Stage = "decoded"
	StageAuthorized       Stage = "authorized"
	StageForwarded        Stage = "forwarded"
)

// Rejection reason codes, one per deny exit of the pipeline.
const (
	ReasonBadSignature    = "bad_signature"
	ReasonUnsupportedCall = "unsupported_call"
	ReasonMixedValue      = "mixed_value"
	ReasonNotAuthorized   = "not_authorized"
	ReasonNotYetValid     = "not_yet_valid"
	ReasonExpired         = "expired"
	ReasonLimitExceeded   = "limit_exceeded"
	ReasonExecutionFailed = "execution_failed"
)

// Rejection is a typed deny outcome. It is an expected result for the
// caller, never process-fatal.
type Rejection struct {
	// Stage is the last state the operation reached before the deny exit.
	Stage Stage
	// Reason is the machine-readable rejection code.
	Reason string
	// Err is the underlying check failure.
	Err error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("operation rejected at %s: %s", r.Stage, r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Receipt reports the outcome of one submitted operation.
type Receipt struct {
	ID         string      `json:"id"`
	OpHash     evm.Hash    `json:"opHash"`
	Account    evm.Address `json:"account"`
	SessionKey evm.Address `json:"sessionKey"`
	Asset      evm.Address `json:"asset"`
	Amount     *big.Int    `json:"amount"`
	Stage      Stage       `json:"stage"`
	Success    bool        `json:"success"`
	Reason     string      `json:"reason,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// SignatureVerifier confirms an operation digest was signed by some key and
// reports the signer's address. The gateway treats it as a capability it
// calls but does not implement.
type SignatureVerifier interface {
	RecoverSigner(digest evm.Hash, sig []byte) (evm.Address, error)
}

// PersonalSignVerifier verifies EIP-191 personal-message signatures.
type PersonalSignVerifier struct{}

func (PersonalSignVerifier) RecoverSigner(digest evm.Hash, sig []byte) (evm.Address, error) {
	return security.RecoverSigner(digest, sig)
}

// Gateway evaluates delegated operations exactly once each: verify, decode,
// authorize, forward. A rejected operation is never retried here, and the
// registry is only mutated by an ALLOW decision.
type Gateway struct {
	chainID   *big.Int
	verifier  SignatureVerifier
	decoder   *calldecode.Decoder
	validator *service.SpendValidator
	executor  Executor
	decisions audit.DecisionLogger
	nowFunc   func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithVerifier replaces the default EIP-191 verifier.
func WithVerifier(v SignatureVerifier) Option {
	return func(g *Gateway) { g.verifier = v }
}

// WithDecisionLogger sets the audit logger for decisions. Nil disables
// decision audit.
func WithDecisionLogger(l audit.DecisionLogger) Option {
	return func(g *Gateway) { g.decisions = l }
}

// WithClock injects the time source, so refresh-interval behavior can be
// exercised with simulated clocks.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.nowFunc = now }
}

// New returns a Gateway for the given chain, decoder, validator, and
// executor.
func New(chainID *big.Int, decoder *calldecode.Decoder, validator *service.SpendValidator, executor Executor, opts ...Option) *Gateway {
	g := &Gateway{
		chainID:   chainID,
		verifier:  PersonalSignVerifier{},
		decoder:   decoder,
		validator: validator,
		executor:  executor,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit runs one operation through the pipeline. On a deny exit it returns
// a receipt with Success=false together with a *Rejection; a non-Rejection
// error means the evaluation itself failed (e.g. storage) and no decision
// was made.
func (g *Gateway) Submit(ctx context.Context, op *DelegatedOperation) (*Receipt, error) {
	now := g.nowFunc().UTC()
	receipt := &Receipt{
		ID:         uuid.New().String(),
		OpHash:     op.Hash(g.chainID),
		Account:    op.Account,
		SessionKey: op.SessionKey,
		Stage:      StageReceived,
		Timestamp:  now.Unix(),
	}

	signer, err := g.verifier.RecoverSigner(receipt.OpHash, op.Signature)
	if err != nil || signer != op.SessionKey {
		if err == nil {
			err = security.ErrInvalidSignature
		}
		return g.reject(ctx, receipt, ReasonBadSignature, err)
	}
	receipt.Stage = StageSignatureChecked

	spend, err := g.decoder.Decode(op.Target, op.Value, op.Data)
	if err != nil {
		reason := ReasonUnsupportedCall
		if errors.Is(err, calldecode.ErrMixedValue) {
			reason = ReasonMixedValue
		}
		return g.reject(ctx, receipt, reason, err)
	}
	receipt.Stage = StageDecoded
	receipt.Asset = spend.Asset
	receipt.Amount = spend.Amount

	_, err = g.validator.Authorize(ctx, op.SessionKey, spend.Asset, spend.Amount, now.Unix())
	if err != nil {
		if reason, ok := authReason(err); ok {
			return g.reject(ctx, receipt, reason, err)
		}
		return nil, err
	}
	receipt.Stage = StageAuthorized

	// The call is forwarded exactly as submitted; the gateway gates, it
	// never rewrites. An execution failure does not roll back the
	// allowance, matching on-chain semantics where validation has already
	// been settled.
	if err := g.executor.Execute(ctx, op.Account, op.Target, op.Value, op.Data); err != nil {
		return g.reject(ctx, receipt, ReasonExecutionFailed, err)
	}
	receipt.Stage = StageForwarded
	receipt.Success = true
	g.logDecision(ctx, receipt)
	return receipt, nil
}

func (g *Gateway) reject(ctx context.Context, receipt *Receipt, reason string, err error) (*Receipt, error) {
	receipt.Reason = reason
	g.logDecision(ctx, receipt)
	return receipt, &Rejection{Stage: receipt.Stage, Reason: reason, Err: err}
}

func (g *Gateway) logDecision(ctx context.Context, receipt *Receipt) {
	if g.decisions == nil {
		return
	}
	amount := ""
	if receipt.Amount != nil {
		amount = receipt.Amount.String()
	}
	g.decisions.LogDecision(ctx, audit.Decision{
		OpHash:     receipt.OpHash.Hex(),
		Account:    receipt.Account.Hex(),
		SessionKey: receipt.SessionKey.Hex(),
		Asset:      receipt.Asset.Hex(),
		Amount:     amount,
		Allowed:    receipt.Success,
		Reason:     receipt.Reason,
		Stage:      string(receipt.Stage),
	})
}

func authReason(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrNotAuthorized):
		return ReasonNotAuthorized, true
	case errors.Is(err, service.ErrNotYetValid):
		return ReasonNotYetValid, true
	case errors.Is(err, service.ErrExpired):
		return ReasonExpired, true
	case errors.Is(err, service.ErrLimitExceeded), errors.Is(err, service.ErrInvalidAmount):
		return ReasonLimitExceeded, true
	default:
		return "", false
	}
}
