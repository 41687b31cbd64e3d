package handlers

import (
	"errors"
	"net/http"

	"skyton/internal/http/middleware"
	"skyton/internal/logger"
	"skyton/internal/oxapay"
	"skyton/internal/service"

	"github.com/gin-gonic/gin"
)

// OxapayWebhook receives provider callbacks for payments and payouts.
// Status mapping drives provider retries: 200 acknowledges (including
// duplicates and unknown statuses), 404 asks for a retry when the record is
// not visible yet, 5xx signals an infrastructure failure.
func (h *Handler) OxapayWebhook(c *gin.Context) {
	var cb oxapay.Callback
	if err := c.BindJSON(&cb); err != nil {
		middleware.WebhookCallbacks.WithLabelValues("unknown", "unknown", "bad_body").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	result, err := h.Reconcile.HandleCallback(c.Request.Context(), &cb)
	if err != nil {
		if errors.Is(err, service.ErrCallbackUnmatched) {
			middleware.WebhookCallbacks.WithLabelValues(cb.Kind(), cb.Outcome(), "unmatched").Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "no matching record"})
			return
		}
		middleware.WebhookCallbacks.WithLabelValues(cb.Kind(), cb.Outcome(), "error").Inc()
		logger.Error("webhook handling failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	handled := "applied"
	if !result.Applied {
		handled = "duplicate"
	}
	middleware.WebhookCallbacks.WithLabelValues(result.Kind, result.Outcome, handled).Inc()

	c.JSON(http.StatusOK, gin.H{"ok": true, "applied": result.Applied})
}
