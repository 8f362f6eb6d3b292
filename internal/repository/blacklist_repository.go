package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MandraVEVO/ecommerce/internal/models"
)

// BlacklistRepository is the durable source of truth for access tokens
// revoked before their natural expiry.
type BlacklistRepository struct {
	pool *pgxpool.Pool
}

func NewBlacklistRepository(pool *pgxpool.Pool) *BlacklistRepository {
	return &BlacklistRepository{pool: pool}
}

const blacklistColumns = `id, token, user_id::text, expires_at, blacklisted_at, reason`

// Insert records entry. Blacklisting an already listed token is a no-op.
func (r *BlacklistRepository) Insert(ctx context.Context, entry models.BlacklistEntry) error {
	const query = `
		INSERT INTO token_blacklist (id, token, user_id, expires_at, blacklisted_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.Token,
		entry.UserID,
		entry.ExpiresAt,
		entry.BlacklistedAt,
		entry.Reason,
	)
	return err
}

func (r *BlacklistRepository) Contains(ctx context.Context, token string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE token = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *BlacklistRepository) Find(ctx context.Context, token string) (models.BlacklistEntry, error) {
	const query = `SELECT ` + blacklistColumns + ` FROM token_blacklist WHERE token = $1`
	entry, err := scanBlacklistEntry(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.BlacklistEntry{}, ErrBlacklistEntryNotFound
		}
		return models.BlacklistEntry{}, err
	}
	return entry, nil
}

// PurgeExpired deletes up to limit entries whose token expired before cutoff
// and returns what it removed.
func (r *BlacklistRepository) PurgeExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.BlacklistEntry, error) {
	const query = `
		DELETE FROM token_blacklist
		WHERE id IN (
			SELECT id FROM token_blacklist
			WHERE expires_at < $1
			ORDER BY expires_at
			LIMIT $2
		)
		RETURNING ` + blacklistColumns

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.BlacklistEntry
	for rows.Next() {
		entry, err := scanBlacklistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanBlacklistEntry(row pgx.Row) (models.BlacklistEntry, error) {
	var entry models.BlacklistEntry
	err := row.Scan(
		&entry.ID,
		&entry.Token,
		&entry.UserID,
		&entry.ExpiresAt,
		&entry.BlacklistedAt,
		&entry.Reason,
	)
	return entry, err
}
