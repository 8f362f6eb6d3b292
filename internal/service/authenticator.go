package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/MandraVEVO/ecommerce/internal/metrics"
	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/repository"
	"github.com/MandraVEVO/ecommerce/internal/security"
)

type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, accessToken string) (bool, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Authenticator turns a bearer token into a Principal. It runs on every
// protected request, before any role check or handler.
type Authenticator struct {
	tokens    *security.TokenCodec
	blacklist BlacklistChecker
	users     UserLookup
	metrics   *metrics.Auth
	log       zerolog.Logger
}

func NewAuthenticator(tokens *security.TokenCodec, blacklist BlacklistChecker, users UserLookup, m *metrics.Auth, log zerolog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, blacklist: blacklist, users: users, metrics: m, log: log}
}

// Authenticate verifies the token, rejects blacklisted tokens and inactive
// users, and returns the principal built from the current user record.
// Gate failures are *UnauthorizedError; store failures wrap ErrUnavailable.
func (a *Authenticator) Authenticate(ctx context.Context, accessToken string) (models.Principal, error) {
	if accessToken == "" {
		return models.Principal{}, a.reject("missing token")
	}

	claims, err := a.tokens.Verify(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return models.Principal{}, a.reject("expired")
		}
		return models.Principal{}, a.reject("invalid token")
	}
	if claims.Kind != security.TokenKindAccess {
		return models.Principal{}, a.reject("wrong token type")
	}

	listed, err := a.blacklist.IsBlacklisted(ctx, accessToken)
	if err != nil {
		return models.Principal{}, unavailable("blacklist lookup", err)
	}
	if listed {
		return models.Principal{}, a.reject("revoked")
	}

	user, err := a.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Principal{}, a.reject("user not found")
		}
		return models.Principal{}, unavailable("user lookup", err)
	}
	if !user.IsActive {
		return models.Principal{}, a.reject("inactive")
	}

	return models.PrincipalFromUser(user), nil
}

func (a *Authenticator) reject(reason string) error {
	a.metrics.Rejection(reason)
	a.log.Debug().Str("reason", reason).Msg("request rejected")
	return &UnauthorizedError{Reason: reason}
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
