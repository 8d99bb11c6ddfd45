package gateway

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"sessiongate/internal/audit"
	"sessiongate/internal/calldecode"
	"sessiongate/internal/evm"
	"sessiongate/internal/security"
	"sessiongate/internal/session/domain"
	"sessiongate/internal/session/repository"
	"sessiongate/internal/session/service"
)

var testChainID = big.NewInt(11155111)

type fixture struct {
	gw        *Gateway
	repo      *repository.MemoryRepository
	ledger    *LedgerExecutor
	decisions *recordingLogger
	key       *security.SessionKeypair
	account   evm.Address
	recipient evm.Address
	clock     *fakeClock
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingLogger struct {
	decisions []audit.Decision
}

func (l *recordingLogger) LogDecision(ctx context.Context, d audit.Decision) {
	l.decisions = append(l.decisions, d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := security.GenerateSessionKeypair()
	if err != nil {
		t.Fatalf("GenerateSessionKeypair: %v", err)
	}
	repo := repository.NewMemoryRepository()
	ledger := NewLedgerExecutor()
	decisions := &recordingLogger{}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	gw := New(testChainID, calldecode.NewDecoder(), service.NewSpendValidator(repo, nil), ledger,
		WithDecisionLogger(decisions), WithClock(clock.Now))
	return &fixture{
		gw:        gw,
		repo:      repo,
		ledger:    ledger,
		decisions: decisions,
		key:       key,
		account:   evm.BytesToAddress([]byte{0xac}),
		recipient: evm.BytesToAddress([]byte{0xbe}),
		clock:     clock,
	}
}

func (f *fixture) grant(t *testing.T, asset evm.Address, limit *big.Int, refresh int64) {
	t.Helper()
	now := f.clock.now.Unix()
	g := &domain.SessionGrant{
		SessionKey:      f.key.Address,
		Asset:           asset,
		Account:         f.account,
		ValidAfter:      now - 10,
		ValidUntil:      now + 3600,
		LimitAmount:     limit,
		LimitUsed:       new(big.Int),
		RefreshInterval: refresh,
	}
	if err := f.repo.Create(context.Background(), g); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
}

func (f *fixture) signedOp(t *testing.T, nonce uint64, target evm.Address, value *big.Int, data []byte) *DelegatedOperation {
	t.Helper()
	op := &DelegatedOperation{
		Account:    f.account,
		SessionKey: f.key.Address,
		Nonce:      nonce,
		Target:     target,
		Value:      value,
		Data:       data,
	}
	sig, err := security.SignDigest(f.key.PrivateKey, op.Hash(testChainID))
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}
	op.Signature = sig
	return op
}

func TestSubmit_NativeTransfer(t *testing.T) {
	f := newFixture(t)
	f.grant(t, evm.ZeroAddress, big.NewInt(1000), 0)
	f.ledger.Fund(f.account, big.NewInt(5000))

	op := f.signedOp(t, 1, f.recipient, big.NewInt(300), nil)
	receipt, err := f.gw.Submit(context.Background(), op)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !receipt.Success || receipt.Stage != StageForwarded {
		t.Errorf("receipt = %+v, want forwarded success", receipt)
	}
	if receipt.Amount.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("receipt amount = %s, want 300", receipt.Amount)
	}
	if got := f.ledger.NativeBalance(f.recipient); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("recipient balance = %s, want 300", got)
	}
	if got := f.ledger.NativeBalance(f.account); got.Cmp(big.NewInt(4700)) != 0 {
		t.Errorf("account balance = %s, want 4700", got)
	}
	if len(f.decisions.decisions) != 1 || !f.decisions.decisions[0].Allowed {
		t.Errorf("decisions = %+v, want one allow", f.decisions.decisions)
	}
}

func TestSubmit_TokenTransfer(t *testing.T) {
	f := newFixture(t)
	token := evm.BytesToAddress([]byte{0x70})
	f.grant(t, token, big.NewInt(1000), 0)
	f.ledger.FundToken(token, f.account, big.NewInt(1000))

	data := calldecode.EncodeTransfer(f.recipient, big.NewInt(400))
	op := f.signedOp(t, 1, token, big.NewInt(0), data)

	receipt, err := f.gw.Submit(context.Background(), op)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.Asset != token {
		t.Errorf("receipt asset = %s, want %s", receipt.Asset, token)
	}
	if got := f.ledger.TokenBalance(token, f.recipient); got.Cmp(big.NewInt(400)) != 0 {
		t.Errorf("recipient token balance = %s, want 400", got)
	}
	if got := f.ledger.TokenBalance(token, f.account); got.Cmp(big.NewInt(600)) != 0 {
		t.Errorf("account token balance = %s, want 600", got)
	}
}

func TestSubmit_BadSignature(t *testing.T) {
	f := newFixture(t)
	f.grant(t, evm.ZeroAddress, big.NewInt(1000), 0)
	f.ledger.Fund(f.account, big.NewInt(5000))

	op := f.signedOp(t, 1, f.recipient, big.NewInt(300), nil)
	op.Value = big.NewInt(999) // signed digest no longer matches

	receipt, err := f.gw.Submit(context.Background(), op)
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("Submit = %v, want *Rejection", err)
	}
	if rej.Reason != ReasonBadSignature || receipt.Stage != StageReceived {
		t.Errorf("rejection = %+v at %s, want bad_signature at received", rej, receipt.Stage)
	}
	if got := f.ledger.NativeBalance(f.account); got.Cmp(big.NewInt(5000)) != 0 {
		t.Errorf("account balance = %s, a rejected op must not move funds", got)
	}
	stored, _ := f.repo.Get(context.Background(), f.key.Address, evm.ZeroAddress)
	if stored.LimitUsed.Sign() != 0 {
		t.Errorf("LimitUsed = %s, a rejected op must not consume allowance", stored.LimitUsed)
	}
}

func TestSubmit_SignerMustBeSessionKey(t *testing.T) {
	f := newFixture(t)
	f.grant(t, evm.ZeroAddress, big.NewInt(1000), 0)

	op := f.signedOp(t, 1, f.recipient, big.NewInt(300), nil)
	other, _ := security.GenerateSessionKeypair()
	sig, err := security.SignDigest(other.PrivateKey, op.Hash(testChainID))
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}
	op.Signature = sig

	_, err = f.gw.Submit(context.Background(), op)
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != ReasonBadSignature {
		t.Errorf("Submit = %v, want bad_signature rejection", err)
	}
}

func TestSubmit_UnsupportedCall(t *testing.T) {
	f := newFixture(t)
	f.grant(t, evm.ZeroAddress, big.NewInt(1000), 0)

	op := f.signedOp(t, 1, f.recipient, big.NewInt(0), []byte{0xde, 0xad, 0xbe, 0xef})
	_, err := f.gw.Submit(context.Background(), op)
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("Submit = %v, want *Rejection", err)
	}
	if rej.Reason != ReasonUnsupportedCall {
		t.Errorf("reason = %s, want %s", rej.Reason, ReasonUnsupportedCall)
	}
	if rej.Stage != StageSignatureChecked {
		t.Errorf("stage = %s, want %s", rej.Stage, StageSignatureChecked)
	}
}

func TestSubmit_MixedValue(t *testing.T) {
	f := newFixture(t)
	token := evm.BytesToAddress([]byte{0x70})
	f.grant(t, token, big.NewInt(1000), 0)

	data := calldecode.EncodeTransfer(f.recipient, big.NewInt(100))
	op := f.signedOp(t, 1, token, big.NewInt(5), data)

	_, err := f.gw.Submit(context.Background(), op)
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != ReasonMixedValue {
		t.Errorf("Submit = %v, want mixed_value rejection", err)
	}
}

func TestSubmit_NoGrant(t *testing.T) {
	f := newFixture(t)
	op := f.signedOp(t, 1, f.recipient, big.NewInt(300), nil)

	_, err := f.gw.Submit(context.Background(), op)
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != ReasonNotAuthorized {
		t.Errorf("Submit = %v, want not_authorized rejection", err)
	}
}

func TestSubmit_LimitAcrossOperations(t *testing.T) {
	f := newFixture(t)
	f.grant(t, evm.ZeroAddress, big.NewInt(500), 0)
	f.ledger.Fund(f.account, big.NewInt(10_000))

	if _, err := f.gw.Submit(context.Background(), f.signedOp(t, 1, f.recipient, big.NewInt(300), nil)); err != nil {
		t.Fatalf("first op: %v", err)
	}
	_, err := f.gw.Submit(context.Background(), f.signedOp(t, 2, f.recipient, big.NewInt(300), nil))
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != ReasonLimitExceeded {
		t.Fatalf("second op = %v, want limit_exceeded rejection", err)
	}
	if got := f.ledger.NativeBalance(f.recipient); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("recipient balance = %s, only the first op should settle", got)
	}
}

func TestSubmit_RefreshRestoresAllowance(t *testing.T) {
	f := newFixture(t)
	f.grant(t, evm.ZeroAddress, big.NewInt(500), 60)
	f.ledger.Fund(f.account, big.NewInt(10_000))

	if _, err := f.gw.Submit(context.Background(), f.signedOp(t, 1, f.recipient, big.NewInt(500), nil)); err != nil {
		t.Fatalf("first op: %v", err)
	}
	if _, err := f.gw.Submit(context.Background(), f.signedOp(t, 2, f.recipient, big.NewInt(1), nil)); err == nil {
		t.Fatal("exhausted grant should deny before the interval elapses")
	}

	f.clock.Advance(61 * time.Second)
	receipt, err := f.gw.Submit(context.Background(), f.signedOp(t, 3, f.recipient, big.NewInt(500), nil))
	if err != nil {
		t.Fatalf("op after refresh: %v", err)
	}
	if !receipt.Success {
		t.Errorf("receipt = %+v, want success after refresh", receipt)
	}
	if got := f.ledger.NativeBalance(f.recipient); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("recipient balance = %s, want 1000", got)
	}
}

func TestSubmit_TokenRefreshSettlesBothTransfers(t *testing.T) {
	f := newFixture(t)
	token := evm.BytesToAddress([]byte{0x70})
	f.grant(t, token, big.NewInt(5), 5)
	f.ledger.FundToken(token, f.account, big.NewInt(20))

	first := f.signedOp(t, 1, token, big.NewInt(0), calldecode.EncodeTransfer(f.recipient, big.NewInt(5)))
	if _, err := f.gw.Submit(context.Background(), first); err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	f.clock.Advance(6 * time.Second)
	second := f.signedOp(t, 2, token, big.NewInt(0), calldecode.EncodeTransfer(f.recipient, big.NewInt(5)))
	if _, err := f.gw.Submit(context.Background(), second); err != nil {
		t.Fatalf("second transfer after refresh: %v", err)
	}

	if got := f.ledger.TokenBalance(token, f.recipient); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("recipient balance = %s, want 10 (exactly two transfers)", got)
	}
	if got := f.ledger.TokenBalance(token, f.account); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("account balance = %s, want 10", got)
	}
}

func TestSubmit_ExpiredWindow(t *testing.T) {
	f := newFixture(t)
	f.grant(t, evm.ZeroAddress, big.NewInt(1000), 0)
	f.clock.Advance(2 * time.Hour)

	_, err := f.gw.Submit(context.Background(), f.signedOp(t, 1, f.recipient, big.NewInt(1), nil))
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != ReasonExpired {
		t.Errorf("Submit = %v, want expired rejection", err)
	}
}

func TestSubmit_ExecutionFailureKeepsAllowanceSpent(t *testing.T) {
	f := newFixture(t)
	f.grant(t, evm.ZeroAddress, big.NewInt(1000), 0)
	// Account is unfunded, so the forwarded call fails.

	_, err := f.gw.Submit(context.Background(), f.signedOp(t, 1, f.recipient, big.NewInt(300), nil))
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("Submit = %v, want *Rejection", err)
	}
	if rej.Reason != ReasonExecutionFailed {
		t.Errorf("reason = %s, want %s", rej.Reason, ReasonExecutionFailed)
	}
	if rej.Stage != StageAuthorized {
		t.Errorf("stage = %s, want %s", rej.Stage, StageAuthorized)
	}
	stored, _ := f.repo.Get(context.Background(), f.key.Address, evm.ZeroAddress)
	if stored.LimitUsed.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("LimitUsed = %s, authorization settles before execution", stored.LimitUsed)
	}
}

func TestSubmit_DecisionLoggedOnDeny(t *testing.T) {
	f := newFixture(t)
	op := f.signedOp(t, 1, f.recipient, big.NewInt(300), nil)

	f.gw.Submit(context.Background(), op)
	if len(f.decisions.decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(f.decisions.decisions))
	}
	d := f.decisions.decisions[0]
	if d.Allowed || d.Reason != ReasonNotAuthorized {
		t.Errorf("decision = %+v, want a not_authorized deny", d)
	}
	if d.SessionKey != f.key.Address.Hex() {
		t.Errorf("decision session key = %s, want %s", d.SessionKey, f.key.Address.Hex())
	}
}

func TestOperationHash_Fields(t *testing.T) {
	base := &DelegatedOperation{
		Account:    evm.BytesToAddress([]byte{0x01}),
		SessionKey: evm.BytesToAddress([]byte{0x02}),
		Nonce:      1,
		Target:     evm.BytesToAddress([]byte{0x03}),
		Value:      big.NewInt(100),
		Data:       []byte{0xaa},
	}
	h := base.Hash(testChainID)
	if h != base.Hash(testChainID) {
		t.Error("hash should be deterministic")
	}

	mutations := []func(*DelegatedOperation){
		func(op *DelegatedOperation) { op.Nonce = 2 },
		func(op *DelegatedOperation) { op.Value = big.NewInt(101) },
		func(op *DelegatedOperation) { op.Data = []byte{0xbb} },
		func(op *DelegatedOperation) { op.Target = evm.BytesToAddress([]byte{0x04}) },
	}
	for i, mutate := range mutations {
		op := *base
		mutate(&op)
		if op.Hash(testChainID) == h {
			t.Errorf("mutation %d should change the hash", i)
		}
	}
	if base.Hash(big.NewInt(1)) == h {
		t.Error("chain id should be bound into the hash")
	}
}
