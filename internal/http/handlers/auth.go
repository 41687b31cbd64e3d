package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"skyton/internal/domain"
	"skyton/internal/logger"
	"skyton/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	InitData string `json:"init_data"`
}

// Auth validates Telegram init_data, upserts the user and issues a JWT. A
// referral start_param is applied best-effort: a bad or duplicate referral
// never blocks login.
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if len(req.InitData) > 4096 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init_data too long"})
		return
	}

	values, ok := service.ValidateTelegramInitData(req.InitData, h.BotToken)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or stale telegram data"})
		return
	}

	tgUser, ok := service.ParseTelegramUser(values)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user json"})
		return
	}

	ctx := c.Request.Context()
	user := &domain.User{
		ID:        tgUser.ID,
		Username:  tgUser.Username,
		FirstName: tgUser.FirstName,
	}
	if err := h.UserRepo.Upsert(ctx, user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	if param := values.Get("start_param"); param != "" {
		if referrerID := parseReferrerParam(param); referrerID != 0 {
			if err := h.Referral.Register(ctx, referrerID, tgUser.ID); err != nil &&
				!errors.Is(err, service.ErrAlreadyReferred) && !errors.Is(err, service.ErrSelfReferral) {
				logger.Warn("referral registration failed", "referrer_id", referrerID, "referred_id", tgUser.ID, "error", err)
			}
		}
	}

	token, err := service.GenerateJWT(tgUser.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":         tgUser.ID,
			"username":   tgUser.Username,
			"first_name": tgUser.FirstName,
		},
	})
}

// parseReferrerParam accepts both a bare numeric ID and the "ref_<id>" form
// used in share links.
func parseReferrerParam(param string) int64 {
	param = strings.TrimPrefix(param, "ref_")
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
