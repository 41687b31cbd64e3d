package handlers

import (
	"net/http"
	"os"
	"time"

	"skyton/internal/logger"
	"skyton/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const livePushInterval = 5 * time.Second

// MiningLive streams the mining overview over a websocket so the mini-app
// can show rewards ticking up without polling. The feed is read-only; claims
// still go through the HTTP endpoint.
func (h *Handler) MiningLive(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}

	userID, err := service.ParseJWT(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	ticker := time.NewTicker(livePushInterval)
	defer ticker.Stop()

	for {
		overview, err := h.Mining.Overview(ctx, userID)
		if err != nil {
			logger.Warn("live feed overview failed", "user_id", userID, "error", err)
			return
		}
		if err := conn.WriteJSON(overview); err != nil {
			return
		}

		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
