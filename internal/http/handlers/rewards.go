package handlers

import (
	"errors"
	"net/http"

	"skyton/internal/service"

	"github.com/gin-gonic/gin"
)

// CompleteTask credits a one-off task reward.
func (h *Handler) CompleteTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	reward, err := h.Rewards.CompleteTask(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownTask):
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown task"})
		case errors.Is(err, service.ErrTaskAlreadyDone):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "task already completed"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "reward": reward})
}

// OpenBox opens one mystery box.
func (h *Handler) OpenBox(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	reward, err := h.Rewards.OpenBox(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoBoxes):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "no boxes to open"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "reward": reward})
}

// Spin consumes one free spin on the wheel.
func (h *Handler) Spin(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.Rewards.Spin(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoFreeSpins):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "no free spins left"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

// ClaimEnergyAd grants the per-ad energy refill.
func (h *Handler) ClaimEnergyAd(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	energy, err := h.Rewards.ClaimEnergyAd(c.Request.Context(), userID)
	if err != nil {
		adClaimError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "energy": energy})
}

// ClaimBoxAd grants one mystery box per watched ad.
func (h *Handler) ClaimBoxAd(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	boxes, err := h.Rewards.ClaimBoxAd(c.Request.Context(), userID)
	if err != nil {
		adClaimError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "mystery_boxes": boxes})
}

func adClaimError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAdLimitReached):
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "ad limit reached"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
