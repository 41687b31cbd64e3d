package domain

import "time"

// BalanceType tags which activity produced a STON credit. The type decides
// whether the funds may be spent on cards or only withdrawn.
type BalanceType string

const (
	BalanceTask     BalanceType = "task"
	BalanceBox      BalanceType = "box"
	BalanceReferral BalanceType = "referral"
	BalanceMining   BalanceType = "mining"
)

// ValidBalanceType reports whether t is one of the four ledger buckets.
func ValidBalanceType(t BalanceType) bool {
	switch t {
	case BalanceTask, BalanceBox, BalanceReferral, BalanceMining:
		return true
	}
	return false
}

// User is one row per Telegram user. ID is the Telegram numeric ID.
// Balance is the legacy aggregate and must always equal the sum of the four
// typed buckets; every ledger mutation updates both in the same statement.
type User struct {
	ID        int64  `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	FirstName string `db:"first_name" json:"first_name"`

	Balance         int64 `db:"balance" json:"balance"`
	TaskBalance     int64 `db:"task_balance" json:"task_balance"`
	BoxBalance      int64 `db:"box_balance" json:"box_balance"`
	ReferralBalance int64 `db:"referral_balance" json:"referral_balance"`
	MiningBalance   int64 `db:"mining_balance" json:"mining_balance"`

	Energy       int `db:"energy" json:"energy"`
	MysteryBoxes int `db:"mystery_boxes" json:"mystery_boxes"`

	FreeSpins        int   `db:"free_spins" json:"free_spins"`
	TotalSpinsUsed   int   `db:"total_spins_used" json:"total_spins_used"`
	TotalSpinRewards int64 `db:"total_spin_rewards" json:"total_spin_rewards"`

	Referrals              int        `db:"referrals" json:"referrals"`
	WeeklyReferrals        int        `db:"weekly_referrals" json:"weekly_referrals"`
	WeeklyReferralsResetAt *time.Time `db:"weekly_referrals_reset_at" json:"weekly_referrals_reset_at,omitempty"`
	InvitedBy              *int64     `db:"invited_by" json:"invited_by,omitempty"`

	Wallet  string `db:"wallet" json:"wallet,omitempty"`
	TonMemo string `db:"ton_memo" json:"ton_memo,omitempty"`

	LastClaimTime *time.Time `db:"last_claim_time" json:"last_claim_time,omitempty"`
	TotalMined    int64      `db:"total_mined" json:"total_mined"`
	MiningActive  bool       `db:"mining_active" json:"mining_active"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PurchasableBalance is the part of the balance that may fund card purchases.
// Box and referral funds are withdrawal-only so that ad farming and referral
// rings cannot finance purchases that themselves pay out.
func (u *User) PurchasableBalance() int64 {
	return u.TaskBalance + u.MiningBalance
}

// WithdrawableBalance is the full sum across all four buckets.
func (u *User) WithdrawableBalance() int64 {
	return u.TaskBalance + u.BoxBalance + u.ReferralBalance + u.MiningBalance
}

// BreakdownSum returns the sum of the typed buckets. It must equal Balance;
// a mismatch means the ledger invariant was broken somewhere.
func (u *User) BreakdownSum() int64 {
	return u.TaskBalance + u.BoxBalance + u.ReferralBalance + u.MiningBalance
}

// HasWallet reports whether a withdrawal destination is bound. Wallet and
// memo are required together once set.
func (u *User) HasWallet() bool {
	return u.Wallet != ""
}
