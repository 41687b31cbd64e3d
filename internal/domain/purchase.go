package domain

import "time"

// PurchaseStatus is the lifecycle of a crypto card purchase. Completed and
// failed are terminal; the reconciler never reapplies side effects once a
// record is terminal.
type PurchaseStatus string

const (
	PurchasePending    PurchaseStatus = "pending"
	PurchaseProcessing PurchaseStatus = "processing"
	PurchaseCompleted  PurchaseStatus = "completed"
	PurchaseFailed     PurchaseStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseCompleted || s == PurchaseFailed
}

// Purchase is a pending-then-settled crypto card order. It is created at
// invoice time and mutated only by the webhook reconciler or a status poll;
// exactly one completed transition grants the card.
type Purchase struct {
	ID           int64                  `db:"id" json:"id"`
	UserID       int64                  `db:"user_id" json:"user_id"`
	OrderID      string                 `db:"order_id" json:"order_id"`
	Tier         int                    `db:"tier" json:"tier"`
	AmountSton   int64                  `db:"amount_ston" json:"amount_ston"`
	CryptoAmount float64                `db:"crypto_amount" json:"crypto_amount"`
	Currency     string                 `db:"currency" json:"currency"`
	Status       PurchaseStatus         `db:"status" json:"status"`
	TrackID      string                 `db:"track_id" json:"track_id,omitempty"`
	ProviderData map[string]interface{} `db:"provider_data" json:"provider_data,omitempty"`
	CreatedAt    time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time              `db:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time             `db:"completed_at" json:"completed_at,omitempty"`
}
