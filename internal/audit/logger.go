// Package audit records gateway decisions. Writes are best-effort: a
// failed audit write is logged and never fails the decision itself.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"sessiongate/internal/audit/domain"
	auditrepo "sessiongate/internal/audit/repository"
)

// Decision is the gateway-facing view of one decision to record.
type Decision struct {
	OpHash     string
	Account    string
	SessionKey string
	Asset      string
	Amount     string
	Allowed    bool
	Reason     string
	Stage      string
}

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// DecisionLogger records one gateway decision. Implementations are
// best-effort and must not block the decision path on failure.
type DecisionLogger interface {
	LogDecision(ctx context.Context, d Decision)
}

// Logger implements DecisionLogger using the decision log repository and an
// optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns a DecisionLogger that persists to repo and uses
// ipExtractor for client IP. ipExtractor may be nil; then IP is recorded as
// "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// LogDecision writes one decision log entry. Best-effort: errors are logged
// and not returned.
func (l *Logger) LogDecision(ctx context.Context, d Decision) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	entry := &domain.DecisionLog{
		ID:         uuid.New().String(),
		OpHash:     d.OpHash,
		Account:    d.Account,
		SessionKey: d.SessionKey,
		Asset:      d.Asset,
		Amount:     d.Amount,
		Allowed:    d.Allowed,
		Reason:     d.Reason,
		Stage:      d.Stage,
		IP:         ip,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log decision %s: %v", d.OpHash, err)
	}
}
