package repository

import (
	"context"
	"database/sql"

	"sessiongate/internal/audit/domain"
)

// PostgresRepository persists decision logs in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a decision log repository that uses the
// given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the decision log. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.DecisionLog) error {
	const q = `
		INSERT INTO decision_logs
			(id, op_hash, account, session_key, asset, amount, allowed, reason, stage, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, q,
		d.ID, d.OpHash, d.Account, d.SessionKey, d.Asset,
		nullIfEmpty(d.Amount), d.Allowed, nullIfEmpty(d.Reason), d.Stage, d.IP, d.CreatedAt,
	)
	return err
}

// ListBySessionKey returns decision logs for the given session key, newest
// first, paginated by limit and offset. Returns an error only on database
// failures.
func (r *PostgresRepository) ListBySessionKey(ctx context.Context, sessionKey string, limit, offset int32) ([]*domain.DecisionLog, error) {
	const q = `
		SELECT id, op_hash, account, session_key, asset, COALESCE(amount::text, ''), allowed, COALESCE(reason, ''), stage, ip, created_at
		FROM decision_logs
		WHERE session_key = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, sessionKey, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DecisionLog
	for rows.Next() {
		var d domain.DecisionLog
		if err := rows.Scan(&d.ID, &d.OpHash, &d.Account, &d.SessionKey, &d.Asset, &d.Amount, &d.Allowed, &d.Reason, &d.Stage, &d.IP, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
