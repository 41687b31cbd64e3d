package domain

import "time"

// WithdrawalStatus mirrors PurchaseStatus for payouts. Cancelled and expired
// provider states map onto failed.
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalFailed
}

// Withdrawal is a cash-out request. The balance is debited optimistically at
// creation (the provider has no hold primitive); a failed payout is
// compensated by refunding DebitBreakdown exactly once, guarded by Refunded.
type Withdrawal struct {
	ID            int64            `db:"id" json:"id"`
	UserID        int64            `db:"user_id" json:"user_id"`
	OrderID       string           `db:"order_id" json:"order_id"`
	AmountSton    int64            `db:"amount_ston" json:"amount_ston"`
	CryptoAmount  float64          `db:"crypto_amount" json:"crypto_amount"`
	Currency      string           `db:"currency" json:"currency"`
	WalletAddress string           `db:"wallet_address" json:"wallet_address"`
	Memo          string           `db:"memo" json:"memo,omitempty"`
	Status        WithdrawalStatus `db:"status" json:"status"`
	TrackID       string           `db:"track_id" json:"track_id,omitempty"`
	Refunded      bool             `db:"refunded" json:"refunded"`
	// DebitBreakdown records how much was taken from each bucket at request
	// time, keyed by BalanceType. A refund credits back exactly this mix so
	// the purchasable/withdrawal-only split survives the round trip.
	DebitBreakdown map[BalanceType]int64 `db:"debit_breakdown" json:"debit_breakdown,omitempty"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time             `db:"updated_at" json:"updated_at"`
}
