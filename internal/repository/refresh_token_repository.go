package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MandraVEVO/ecommerce/internal/models"
)

// RefreshTokenRepository persists issued refresh tokens. Rows are only ever
// inserted or flagged revoked; they stay behind as the session audit trail.
type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

const refreshTokenColumns = `id, token, user_id::text, expires_at, is_revoked, created_at, user_agent, ip_address`

func (r *RefreshTokenRepository) Save(ctx context.Context, token models.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (
			id, token, user_id, expires_at, is_revoked, created_at, user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, FALSE, $5, $6, $7
		)
	`

	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.Token,
		token.UserID,
		token.ExpiresAt,
		token.CreatedAt,
		token.UserAgent,
		token.IPAddress,
	)
	return err
}

// FindActive returns the non-revoked row for token owned by userID. Expiry is
// not checked here; callers compare ExpiresAt against their clock.
func (r *RefreshTokenRepository) FindActive(ctx context.Context, token string, userID string) (models.RefreshToken, error) {
	const query = `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token = $1 AND user_id = $2 AND is_revoked = FALSE
		LIMIT 1
	`

	row, err := scanRefreshToken(r.pool.QueryRow(ctx, query, token, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return models.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return models.RefreshToken{}, err
	}
	return row, nil
}

// RevokeAllForUser flags every session of userID as revoked. Safe to repeat.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	const query = `UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1 AND is_revoked = FALSE`
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		if isInvalidText(err) {
			return 0, nil
		}
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// RevokeOne revokes sessionID only if it belongs to userID.
func (r *RefreshTokenRepository) RevokeOne(ctx context.Context, userID string, sessionID string) error {
	const query = `UPDATE refresh_tokens SET is_revoked = TRUE WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, sessionID, userID)
	if err != nil {
		if isInvalidText(err) {
			return ErrSessionNotFound
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListActive returns the user's unrevoked, unexpired sessions, newest first.
func (r *RefreshTokenRepository) ListActive(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error) {
	const query = `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, now)
	if err != nil {
		if isInvalidText(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var tokens []models.RefreshToken
	for rows.Next() {
		token, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func scanRefreshToken(row pgx.Row) (models.RefreshToken, error) {
	var token models.RefreshToken
	err := row.Scan(
		&token.ID,
		&token.Token,
		&token.UserID,
		&token.ExpiresAt,
		&token.IsRevoked,
		&token.CreatedAt,
		&token.UserAgent,
		&token.IPAddress,
	)
	return token, err
}
