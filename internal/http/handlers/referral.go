package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"skyton/internal/service"

	"github.com/gin-gonic/gin"
)

// ReferralHandler serves the referral endpoints.
type ReferralHandler struct {
	referral    *service.ReferralService
	botUsername string
}

func NewReferralHandler(referral *service.ReferralService, botUsername string) *ReferralHandler {
	return &ReferralHandler{referral: referral, botUsername: botUsername}
}

// GetReferralLink returns the caller's share link.
func (rh *ReferralHandler) GetReferralLink(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"link": fmt.Sprintf("https://t.me/%s?startapp=ref_%d", rh.botUsername, userID),
	})
}

type applyReferralRequest struct {
	ReferrerID int64 `json:"referrer_id"`
}

// ApplyReferral registers the caller as referred by referrer_id. Duplicate
// and self referrals are business-rule failures, not server errors.
func (rh *ReferralHandler) ApplyReferral(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req applyReferralRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	err := rh.referral.Register(c.Request.Context(), req.ReferrerID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfReferral):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "cannot refer yourself"})
		case errors.Is(err, service.ErrAlreadyReferred):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "already referred"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "referrer not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetReferralStats returns the caller's referral summary.
func (rh *ReferralHandler) GetReferralStats(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, entries, err := rh.referral.Stats(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "history": entries})
}
