package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scope/pkg/notify"
	"scope/pkg/theme"
)

// ThemeResponse carries the styling the extension's panels follow.
type ThemeResponse struct {
	PanelBackground any         `json:"panel_background"`
	ActivityBar     theme.Color `json:"activity_bar"`
}

// listNotifications handles GET /api/v1/notifications
func (s *Server) listNotifications(c *gin.Context) {
	active := []notify.Notification{}
	if s.notifications != nil {
		active = s.notifications.Active()
	}
	c.JSON(http.StatusOK, gin.H{"notifications": active, "count": len(active)})
}

// dismissNotification handles POST /api/v1/notifications/:id/dismiss
func (s *Server) dismissNotification(c *gin.Context) {
	if s.notifications == nil || !s.notifications.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification dismissed"})
}

// getTheme handles GET /api/v1/theme
func (s *Server) getTheme(c *gin.Context) {
	value, err := s.theme.PanelBackground(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ThemeResponse{PanelBackground: value, ActivityBar: theme.ActivityBarBackground})
}
