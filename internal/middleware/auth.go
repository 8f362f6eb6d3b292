package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/service"
)

const (
	principalKey   = "principal"
	accessTokenKey = "access_token"
)

type PrincipalAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Principal, error)
}

// Auth resolves the bearer token into a principal and stores it on the
// context. Every gate failure renders the same generic 401.
func Auth(authn PrincipalAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		principal, err := authn.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUnauthorized):
				abort(c, http.StatusUnauthorized, "unauthorized", "invalid or revoked token")
			case errors.Is(err, service.ErrUnavailable), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
				abort(c, http.StatusServiceUnavailable, "unavailable", "authentication temporarily unavailable")
			default:
				_ = c.Error(err)
				abort(c, http.StatusInternalServerError, "internal_error", "internal server error")
			}
			return
		}

		c.Set(accessTokenKey, tokenStr)
		c.Set(principalKey, principal)

		c.Next()
	}
}

// PrincipalFrom returns the principal attached by Auth.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

func AccessTokenFrom(c *gin.Context) string {
	return c.GetString(accessTokenKey)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}
