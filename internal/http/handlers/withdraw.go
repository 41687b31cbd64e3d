package handlers

import (
	"errors"
	"net/http"

	"skyton/internal/oxapay"
	"skyton/internal/service"

	"github.com/gin-gonic/gin"
)

type walletRequest struct {
	Wallet string `json:"wallet"`
	Memo   string `json:"memo"`
}

// BindWallet sets the withdrawal destination. Wallet and memo travel
// together; clearing both at once unbinds.
func (h *Handler) BindWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req walletRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	if req.Wallet != "" && !oxapay.ValidateAddress("TON", req.Wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid wallet address"})
		return
	}
	if req.Wallet == "" && req.Memo != "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "memo requires a wallet"})
		return
	}

	if err := h.UserRepo.SetWallet(c.Request.Context(), userID, req.Wallet, req.Memo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type withdrawRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

/// RequestWithdrawal creates a payout: optimistic debit, provider call,
// compensating refund on submit failure.
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req withdrawRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	w, err := h.Withdraw.Request(c.Request.Context(), userID, req.Amount, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBelowMinWithdrawal):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "amount below minimum withdrawal"})
		case errors.Is(err, service.ErrInsufficientFunds):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "insufficient balance"})
		case errors.Is(err, service.ErrNoWallet):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "no wallet bound"})
		case errors.Is(err, service.ErrInvalidAddress):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid wallet address"})
		case errors.Is(err, service.ErrWithdrawalInFlight):
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "a withdrawal is already in progress"})
		case errors.Is(err, service.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid amount"})
		case errors.Is(err, service.ErrUnsupportedCurrency):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unsupported currency"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "payout provider unavailable"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "withdrawal": w})
}

// WithdrawalHistory returns the caller's withdrawal records.
func (h *Handler) WithdrawalHistory(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	withdrawals, err := h.WithdrawalRepo.GetByUserID(c.Request.Context(), userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}
