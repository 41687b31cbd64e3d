package domain

import (
	"fmt"
	"time"
)

// Card tiers. Rates, prices and validity are configuration, not code; see
// Settings.CardTiers.
const (
	TierBasic    = 1
	TierAdvanced = 2
	TierPro      = 3
)

// Purchase methods for a card instance.
const (
	MethodBalance = "balance"
	MethodOxapay  = "oxapay"
)

// Card is one purchased mining card instance. A user may hold several
// instances of the same tier; (tier, instance_no) is unique per user.
// Expiration is always the last purchase/renewal time plus validity days.
// An expired card stops accruing but the row is kept for history.
type Card struct {
	ID             int64         `db:"id" json:"id"`
	UserID         int64         `db:"user_id" json:"user_id"`
	Tier           int           `db:"tier" json:"tier"`
	InstanceNo     int           `db:"instance_no" json:"instance_no"`
	PurchaseDate   time.Time     `db:"purchase_date" json:"purchase_date"`
	ExpirationDate time.Time     `db:"expiration_date" json:"expiration_date"`
	ValidityDays   int           `db:"validity_days" json:"validity_days"`
	Quantity       int           `db:"quantity" json:"quantity"`
	PaymentID      string        `db:"payment_id" json:"payment_id,omitempty"`
	Method         string        `db:"method" json:"method"`
	RenewalHistory []CardRenewal `db:"renewal_history" json:"renewal_history,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// CardRenewal is one append-only entry in a card's renewal history.
type CardRenewal struct {
	RenewedAt time.Time `json:"renewed_at"`
	Method    string    `json:"method"`
	PaymentID string    `json:"payment_id,omitempty"`
}

// Key renders the legacy "{tier}_{instance}" identifier the mini-app uses.
func (c *Card) Key() string {
	return fmt.Sprintf("%d_%d", c.Tier, c.InstanceNo)
}

// IsActive reports whether the card still accrues at the given instant.
func (c *Card) IsActive(now time.Time) bool {
	return now.Before(c.ExpirationDate)
}

// TimeUntilExpiry returns the remaining active window, zero if expired.
func (c *Card) TimeUntilExpiry(now time.Time) time.Duration {
	if !c.IsActive(now) {
		return 0
	}
	return c.ExpirationDate.Sub(now)
}
