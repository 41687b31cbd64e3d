package domain

import "time"

// ReferralEntry is one append-only edge in the referral graph. ReferredID is
// unique: a user can only ever be credited as a referral once, no matter how
// many entry points invoke the registration.
type ReferralEntry struct {
	ID         int64     `db:"id" json:"id"`
	ReferrerID int64     `db:"referrer_id" json:"referrer_id"`
	ReferredID int64     `db:"referred_id" json:"referred_id"`
	JoinedAt   time.Time `db:"joined_at" json:"joined_at"`
}

// ReferralStats is the referrer-facing summary. InvitedBy comes from the
// referral_history edge, the authoritative record of who referred whom.
type ReferralStats struct {
	Referrals       int   `json:"referrals"`
	WeeklyReferrals int   `json:"weekly_referrals"`
	TotalEarned     int64 `json:"total_earned"`
	InvitedBy       int64 `json:"invited_by,omitempty"`
}
