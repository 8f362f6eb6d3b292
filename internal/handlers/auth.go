package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MandraVEVO/ecommerce/internal/middleware"
	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/service"
)

const tokenType = "Bearer"

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"fullName" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken       string `json:"refresh_token"`
	RefreshTokenCompat string `json:"refreshToken"`
}

func (r refreshRequest) token() string {
	if r.RefreshToken != "" {
		return r.RefreshToken
	}
	return r.RefreshTokenCompat
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

type authResponse struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	TokenType        string       `json:"token_type"`
	ExpiresIn        string       `json:"expires_in"`
	RefreshExpiresIn string       `json:"refresh_expires_in"`
	User             userResponse `json:"user"`
}

type refreshResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   string       `json:"expires_in"`
	User        userResponse `json:"user"`
}

type messageResponse struct {
	Message   string `json:"message"`
	LoggedOut bool   `json:"loggedOut"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserAgent *string   `json:"userAgent"`
	IPAddress *string   `json:"ipAddress"`
}

func (h HandlerSet) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Device:   deviceMeta(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.authResponse(result))
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Device:   deviceMeta(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.authResponse(result))
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	token := strings.TrimSpace(req.token())
	if token == "" {
		writeError(c, fmt.Errorf("%w: refresh_token is required", service.ErrInvalidInput))
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, refreshResponse{
		AccessToken: result.AccessToken,
		TokenType:   tokenType,
		ExpiresIn:   compactDuration(h.authService.AccessTTL()),
		User:        toUserResponse(result.User),
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), p.ID, middleware.AccessTokenFrom(c)); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "logged out successfully", LoggedOut: true})
}

func (h HandlerSet) LogoutAll(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if _, err := h.authService.LogoutAllDevices(c.Request.Context(), p.ID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "logged out on all devices", LoggedOut: true})
}

func (h HandlerSet) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": userResponse{
			ID:       p.ID,
			Email:    p.Email,
			FullName: p.FullName,
			Role:     string(p.Role),
			IsActive: p.IsActive,
		},
	})
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	h.writeSessions(c, p.ID)
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	sessionID := c.Param("sessionId")
	if err := h.authService.RevokeSession(c.Request.Context(), p.ID, sessionID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "session revoked successfully",
		"sessionId": sessionID,
	})
}

func (h HandlerSet) writeSessions(c *gin.Context, userID string) {
	sessions, err := h.authService.ListActiveSessions(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			UserAgent: s.UserAgent,
			IPAddress: s.IPAddress,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h HandlerSet) authResponse(result service.AuthResult) authResponse {
	return authResponse{
		AccessToken:      result.AccessToken,
		RefreshToken:     result.RefreshToken,
		TokenType:        tokenType,
		ExpiresIn:        compactDuration(h.authService.AccessTTL()),
		RefreshExpiresIn: compactDuration(h.authService.RefreshTTL()),
		User:             toUserResponse(result.User),
	}
}

func toUserResponse(u models.PublicUser) userResponse {
	return userResponse{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     string(u.Role),
		IsActive: u.IsActive,
	}
}

func deviceMeta(c *gin.Context) models.DeviceMeta {
	return models.DeviceMeta{
		UserAgent: c.GetHeader("User-Agent"),
		IPAddress: c.ClientIP(),
	}
}

// compactDuration renders a TTL the way clients expect it: "15m", "7d", "1h30m".
func compactDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	const day = 24 * time.Hour
	units := []struct {
		size   time.Duration
		suffix string
	}{
		{day, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}
	var b strings.Builder
	for _, u := range units {
		if n := d / u.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, u.suffix)
			d -= n * u.size
		}
	}
	if b.Len() == 0 {
		return d.String()
	}
	return b.String()
}
