package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrEmailTaken             = errors.New("email already registered")
	ErrRefreshTokenNotFound   = errors.New("refresh token not found")
	ErrSessionNotFound        = errors.New("session not found")
	ErrBlacklistEntryNotFound = errors.New("blacklist entry not found")
)

const (
	uniqueViolation = "23505"
	invalidTextRepr = "22P02"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isInvalidText reports a malformed identifier (e.g. a non-uuid user id).
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepr
}
