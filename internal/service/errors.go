package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/security"
)

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrWeakPassword           = security.ErrWeakPassword
	ErrUserInactive           = errors.New("user is inactive")
	ErrTokenExpired           = security.ErrTokenExpired
	ErrSignatureInvalid       = security.ErrSignatureInvalid
	ErrRefreshTokenInvalid    = errors.New("refresh token invalid or revoked")
	ErrRefreshTokenExpired    = errors.New("refresh token expired")
	ErrUserNotFoundOrInactive = errors.New("user not found or inactive")
	ErrSessionNotFound        = errors.New("session not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrUnavailable            = errors.New("service unavailable")
	ErrInvalidInput           = errors.New("invalid input")
)

// UnauthorizedError is returned by the request gate. Reason is for logs and
// metrics only; clients see a generic message.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Reason
}

func (e *UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

// ForbiddenError names the caller's role and the roles the route accepts.
type ForbiddenError struct {
	Role    models.UserRole
	Allowed []models.UserRole
}

func (e *ForbiddenError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, r := range e.Allowed {
		allowed[i] = string(r)
	}
	return fmt.Sprintf("role %q is not allowed; requires one of [%s]", e.Role, strings.Join(allowed, ", "))
}

func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}
