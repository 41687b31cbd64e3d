package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Me returns the caller's user document.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.UserRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":                 user,
		"purchasable_balance":  user.PurchasableBalance(),
		"withdrawable_balance": user.WithdrawableBalance(),
	})
}

// Leaderboard returns the top miners by lifetime mined STON.
func (h *Handler) Leaderboard(c *gin.Context) {
	users, err := h.UserRepo.TopMiners(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	type entry struct {
		ID         int64  `json:"id"`
		Username   string `json:"username"`
		FirstName  string `json:"first_name"`
		TotalMined int64  `json:"total_mined"`
	}
	out := make([]entry, 0, len(users))
	for _, u := range users {
		out = append(out, entry{ID: u.ID, Username: u.Username, FirstName: u.FirstName, TotalMined: u.TotalMined})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}
