package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminListSessions lists another user's active sessions.
func (h HandlerSet) AdminListSessions(c *gin.Context) {
	h.writeSessions(c, c.Param("userId"))
}

// AdminLogoutAll forces a user out of every device.
func (h HandlerSet) AdminLogoutAll(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	userID := c.Param("userId")
	revoked, err := h.authService.LogoutAllDevices(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	h.log.Info().Str("admin_id", p.ID).Str("user_id", userID).Int64("revoked", revoked).Msg("forced logout")
	c.JSON(http.StatusOK, gin.H{
		"message":   "user logged out on all devices",
		"loggedOut": true,
		"revoked":   revoked,
	})
}
