package oxapay

import (
	"encoding/json"
	"strings"
)

// Callback is the webhook body. Field names are loosely specified by the
// provider: the correlation key can arrive as id, track_id, payment_id or
// order_id, and the type field is often absent.
type Callback struct {
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	ID        json.RawMessage `json:"id"`
	TrackID   json.RawMessage `json:"track_id"`
	PaymentID json.RawMessage `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	Amount    float64         `json:"amount"`
	Currency  string          `json:"currency"`
	TxHash    string          `json:"tx_hash"`
}

// Callback kinds. The provider does not reliably distinguish payment from
// payout callbacks; absent type means payment.
const (
	CallbackPayment = "payment"
	CallbackPayout  = "payout"
)

// Kind normalizes the callback type, defaulting to payment.
func (c *Callback) Kind() string {
	switch strings.ToLower(c.Type) {
	case "payout", "withdraw", "withdrawal":
		return CallbackPayout
	default:
		return CallbackPayment
	}
}

// CorrelationKeys returns the candidate correlation values in matching
// order: track_id, id, payment_id, order_id. Empty extractions are dropped,
// and the first key that matches a local record wins.
func (c *Callback) CorrelationKeys() []string {
	var keys []string
	for _, v := range []string{
		flexString(c.TrackID),
		flexString(c.ID),
		flexString(c.PaymentID),
		c.OrderID,
	} {
		if v != "" {
			keys = append(keys, v)
		}
	}
	return keys
}

// Outcome classes for a callback status.
const (
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeProcessing = "processing"
	OutcomeUnknown    = "unknown"
)

// Outcome folds the provider's status vocabulary into the three transitions
// the reconciler understands. Expired and cancelled payments are failures.
func (c *Callback) Outcome() string {
	switch strings.ToLower(c.Status) {
	case "completed", "confirmed", "paid", "success":
		return OutcomeCompleted
	case "failed", "expired", "cancelled", "canceled", "rejected":
		return OutcomeFailed
	case "processing", "confirming", "waiting", "pending":
		return OutcomeProcessing
	default:
		return OutcomeUnknown
	}
}
