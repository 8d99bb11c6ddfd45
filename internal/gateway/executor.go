package gateway

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"sessiongate/internal/calldecode"
	"sessiongate/internal/evm"
)

// ErrInsufficientBalance is returned by the ledger executor when the
// account cannot cover the transfer.
var ErrInsufficientBalance = errors.New("gateway: insufficient balance")

// Executor executes an authorized call as the owning account. It is an
// external collaborator at this boundary: the gateway hands over target,
// value, and payload exactly as submitted.
type Executor interface {
	Execute(ctx context.Context, account, target evm.Address, value *big.Int, data []byte) error
}

// LedgerExecutor is an in-memory Executor keeping native and token balances
// per account. It serves tests and dev mode, where the effect of a
// forwarded call must be observable without a chain.
type LedgerExecutor struct {
	mu     sync.Mutex
	native map[evm.Address]*big.Int
	// tokens maps token contract -> holder -> balance.
	tokens map[evm.Address]map[evm.Address]*big.Int
}

// NewLedgerExecutor returns an empty ledger.
func NewLedgerExecutor() *LedgerExecutor {
	return &LedgerExecutor{
		native: make(map[evm.Address]*big.Int),
		tokens: make(map[evm.Address]map[evm.Address]*big.Int),
	}
}

// Fund credits native balance to an account.
func (l *LedgerExecutor) Fund(account evm.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.native[account] = new(big.Int).Add(l.nativeOf(account), amount)
}

// FundToken credits token balance to an account.
func (l *LedgerExecutor) FundToken(token, account evm.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	holders := l.holders(token)
	holders[account] = new(big.Int).Add(l.tokenOf(token, account), amount)
}

// NativeBalance returns the native balance of an account.
func (l *LedgerExecutor) NativeBalance(account evm.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.nativeOf(account))
}

// TokenBalance returns the balance of an account for a token.
func (l *LedgerExecutor) TokenBalance(token, account evm.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.tokenOf(token, account))
}

// Execute applies the call to the ledger. An empty payload moves native
// value from account to target; transfer(address,uint256) calldata moves
// token balance held by account at the target contract.
func (l *LedgerExecutor) Execute(ctx context.Context, account, target evm.Address, value *big.Int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(data) == 0 {
		if value == nil {
			value = new(big.Int)
		}
		from := l.nativeOf(account)
		if from.Cmp(value) < 0 {
			return ErrInsufficientBalance
		}
		l.native[account] = new(big.Int).Sub(from, value)
		l.native[target] = new(big.Int).Add(l.nativeOf(target), value)
		return nil
	}

	spend, err := calldecode.NewDecoder().Decode(target, value, data)
	if err != nil {
		return err
	}
	from := l.tokenOf(spend.Asset, account)
	if from.Cmp(spend.Amount) < 0 {
		return ErrInsufficientBalance
	}
	recipient := evm.WordToAddress(data[calldecode.SelectorLength : calldecode.SelectorLength+32])
	holders := l.holders(spend.Asset)
	holders[account] = new(big.Int).Sub(from, spend.Amount)
	holders[recipient] = new(big.Int).Add(l.tokenOf(spend.Asset, recipient), spend.Amount)
	return nil
}

func (l *LedgerExecutor) nativeOf(account evm.Address) *big.Int {
	if b, ok := l.native[account]; ok {
		return b
	}
	return new(big.Int)
}

func (l *LedgerExecutor) holders(token evm.Address) map[evm.Address]*big.Int {
	holders, ok := l.tokens[token]
	if !ok {
		holders = make(map[evm.Address]*big.Int)
		l.tokens[token] = holders
	}
	return holders
}

func (l *LedgerExecutor) tokenOf(token, account evm.Address) *big.Int {
	if b, ok := l.tokens[token][account]; ok {
		return b
	}
	return new(big.Int)
}
