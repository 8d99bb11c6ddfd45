package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"sessiongate/internal/evm"
	"sessiongate/internal/session/domain"
)

// PostgresRepository persists session grants in Postgres. Addresses are
// stored as lowercase 0x hex, amounts as NUMERIC(78,0) so full uint256
// values round-trip.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a grant repository that uses the given db
// for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the grant for (sessionKey, asset), or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, sessionKey, asset evm.Address) (*domain.SessionGrant, error) {
	const q = `
		SELECT account, valid_after, valid_until, limit_amount::text, limit_used::text, last_used, refresh_interval
		FROM session_grants
		WHERE session_key = $1 AND asset = $2`
	var (
		account                string
		limitAmount, limitUsed string
		g                      domain.SessionGrant
	)
	err := r.db.QueryRowContext(ctx, q, sessionKey.Hex(), asset.Hex()).Scan(
		&account, &g.ValidAfter, &g.ValidUntil, &limitAmount, &limitUsed, &g.LastUsed, &g.RefreshInterval,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	g.SessionKey = sessionKey
	g.Asset = asset
	if g.Account, err = evm.HexToAddress(account); err != nil {
		return nil, err
	}
	if g.LimitAmount, err = parseNumeric(limitAmount); err != nil {
		return nil, err
	}
	if g.LimitUsed, err = parseNumeric(limitUsed); err != nil {
		return nil, err
	}
	return &g, nil
}

// Create persists the grant, replacing an existing row for the same
// (sessionKey, asset).
func (r *PostgresRepository) Create(ctx context.Context, g *domain.SessionGrant) error {
	const q = `
		INSERT INTO session_grants
			(session_key, asset, account, valid_after, valid_until, limit_amount, limit_used, last_used, refresh_interval, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $10)
		ON CONFLICT (session_key, asset) DO UPDATE SET
			account = EXCLUDED.account,
			valid_after = EXCLUDED.valid_after,
			valid_until = EXCLUDED.valid_until,
			limit_amount = EXCLUDED.limit_amount,
			limit_used = EXCLUDED.limit_used,
			last_used = EXCLUDED.last_used,
			refresh_interval = EXCLUDED.refresh_interval,
			updated_at = EXCLUDED.updated_at`
	used := g.LimitUsed
	if used == nil {
		used = new(big.Int)
	}
	_, err := r.db.ExecContext(ctx, q,
		g.SessionKey.Hex(), g.Asset.Hex(), g.Account.Hex(),
		g.ValidAfter, g.ValidUntil,
		g.LimitAmount.String(), used.String(),
		g.LastUsed, g.RefreshInterval, time.Now().UTC(),
	)
	return err
}

// UpdateUsage sets limitUsed and lastUsed for the grant in one statement.
func (r *PostgresRepository) UpdateUsage(ctx context.Context, sessionKey, asset evm.Address, limitUsed *big.Int, lastUsed int64) error {
	const q = `
		UPDATE session_grants
		SET limit_used = $3::numeric, last_used = $4, updated_at = $5
		WHERE session_key = $1 AND asset = $2`
	_, err := r.db.ExecContext(ctx, q, sessionKey.Hex(), asset.Hex(), limitUsed.String(), lastUsed, time.Now().UTC())
	return err
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("session: invalid numeric %q", s)
	}
	return v, nil
}
