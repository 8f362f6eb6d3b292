package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MandraVEVO/ecommerce/internal/security"
	"github.com/MandraVEVO/ecommerce/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters: the first matching target wins. An empty message means the
// error text itself is shown.
var errorMappings = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input", ""},
	{security.ErrWeakPassword, http.StatusBadRequest, "weak_password", ""},
	{service.ErrEmailAlreadyRegistered, http.StatusConflict, "email_already_registered", "email already registered"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid email or password"},
	{service.ErrUserInactive, http.StatusUnauthorized, "user_inactive", "user account is inactive"},
	{service.ErrTokenExpired, http.StatusUnauthorized, "token_expired", "token expired"},
	{service.ErrSignatureInvalid, http.StatusUnauthorized, "signature_invalid", "token signature invalid"},
	{service.ErrRefreshTokenInvalid, http.StatusUnauthorized, "refresh_token_invalid", "refresh token invalid or revoked"},
	{service.ErrRefreshTokenExpired, http.StatusUnauthorized, "refresh_token_expired", "refresh token expired"},
	{service.ErrUserNotFoundOrInactive, http.StatusUnauthorized, "user_not_found_or_inactive", "user not found or inactive"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "invalid or revoked token"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden", ""},
	{service.ErrSessionNotFound, http.StatusNotFound, "session_not_found", "session not found"},
	{service.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "unavailable", "request timed out"},
	{context.Canceled, http.StatusServiceUnavailable, "unavailable", "request cancelled"},
}

func writeError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			c.AbortWithStatusJSON(m.status, errorResponse{Error: m.code, Message: msg})
			return
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "internal server error"})
}

func writeBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid_input", Message: err.Error()})
}
