package domain

import (
	"sort"
	"time"
)

// CardStats is a card annotated with its currently effective rate. The rate
// comes from the settings snapshot at evaluation time, not from the card row.
type CardStats struct {
	Card        Card          `json:"card"`
	Key         string        `json:"key"`
	Active      bool          `json:"active"`
	RatePerHour int64         `json:"rate_per_hour"`
	ExpiresIn   time.Duration `json:"expires_in"`
}

// MiningStats is the derived view of a user's card portfolio at an instant.
type MiningStats struct {
	Active       []CardStats `json:"active"`
	Expired      []CardStats `json:"expired"`
	TotalRate    int64       `json:"total_rate_per_hour"`
	NextToExpire *CardStats  `json:"next_to_expire,omitempty"`
}

// DeriveMiningStats partitions cards into active and expired at now and sums
// the hourly rate over active cards only. Expired cards are kept in the
// output for display but contribute zero rate. Active cards are ordered by
// soonest expiry; NextToExpire is the first of them.
func DeriveMiningStats(cards []Card, cfg *Settings, now time.Time) MiningStats {
	var stats MiningStats

	for _, c := range cards {
		cs := CardStats{Card: c, Key: c.Key()}
		if tier, ok := cfg.Tier(c.Tier); ok {
			cs.RatePerHour = tier.RatePerHour
		}
		if c.IsActive(now) {
			cs.Active = true
			cs.ExpiresIn = c.TimeUntilExpiry(now)
			stats.Active = append(stats.Active, cs)
			stats.TotalRate += cs.RatePerHour
		} else {
			cs.RatePerHour = 0
			stats.Expired = append(stats.Expired, cs)
		}
	}

	sort.SliceStable(stats.Active, func(i, j int) bool {
		return stats.Active[i].ExpiresIn < stats.Active[j].ExpiresIn
	})
	if len(stats.Active) > 0 {
		stats.NextToExpire = &stats.Active[0]
	}

	return stats
}

// PendingRewards is the unclaimed mining yield: floor(totalRate * hours since
// last claim), never negative. The rate is the one effective at now and is
// applied to the whole elapsed window; rate changes inside the window are not
// integrated over.
func PendingRewards(totalRatePerHour int64, lastClaim *time.Time, now time.Time) int64 {
	if totalRatePerHour <= 0 || lastClaim == nil {
		return 0
	}
	elapsed := now.Sub(*lastClaim)
	if elapsed <= 0 {
		return 0
	}
	hours := elapsed.Seconds() / 3600
	return int64(float64(totalRatePerHour) * hours)
}
