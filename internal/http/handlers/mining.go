package handlers

import (
	"errors"
	"net/http"

	"skyton/internal/oxapay"
	"skyton/internal/service"

	"github.com/gin-gonic/gin"
)

type purchaseRequest struct {
	Tier int `json:"tier"`
}

// PurchaseCard buys or renews a card with purchasable balance.
func (h *Handler) PurchaseCard(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req purchaseRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	card, renewed, err := h.Mining.PurchaseWithBalance(c.Request.Context(), userID, req.Tier)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownTier):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown tier"})
		case errors.Is(err, service.ErrInsufficientFunds):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "insufficient balance"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "card": card, "renewed": renewed})
}

type cryptoPurchaseRequest struct {
	Tier     int    `json:"tier"`
	Currency string `json:"currency"`
}

// PurchaseCardCrypto creates a provider invoice for a card purchase.
func (h *Handler) PurchaseCardCrypto(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req cryptoPurchaseRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	purchase, paymentURL, err := h.Mining.PurchaseWithCrypto(c.Request.Context(), userID, req.Tier, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownTier):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown tier"})
		case errors.Is(err, service.ErrUnsupportedCurrency):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unsupported currency"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"order_id":    purchase.OrderID,
		"track_id":    purchase.TrackID,
		"payment_url": paymentURL,
	})
}

// MiningStats returns derived card stats and pending rewards.
func (h *Handler) MiningStats(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	overview, err := h.Mining.Overview(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, overview)
}

// ClaimMining converts pending mining rewards into balance.
func (h *Handler) ClaimMining(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	claimed, err := h.Mining.Claim(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNothingToClaim):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "nothing to claim"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "claimed": claimed})
}

// PurchaseStatus polls the provider for one order and settles it the same way
// a webhook delivery would. The manual path exists because webhooks can be
// delayed or lost; the terminal-transition guards make the two observers safe
// to race.
func (h *Handler) PurchaseStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	purchase, result, err := h.Reconcile.CheckPurchase(c.Request.Context(), userID, c.Param("order_id"))
	if err != nil {
		var pe *oxapay.ProviderError
		switch {
		case errors.Is(err, service.ErrPurchaseNotFound), errors.Is(err, service.ErrCallbackUnmatched):
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
		case errors.As(err, &pe):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"status":  purchase.Status,
		"applied": result.Applied,
	})
}

// PurchaseHistory returns the caller's crypto purchase records.
func (h *Handler) PurchaseHistory(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	purchases, err := h.PurchaseRepo.GetByUserID(c.Request.Context(), userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}
