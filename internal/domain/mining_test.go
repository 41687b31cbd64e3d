package domain

import (
	"testing"
	"time"
)

func card(tier, instance int, expires time.Time) Card {
	return Card{
		Tier:           tier,
		InstanceNo:     instance,
		ExpirationDate: expires,
		ValidityDays:   7,
	}
}

func TestPendingRewards(t *testing.T) {
	now := time.Now()

	twoHoursAgo := now.Add(-2 * time.Hour)
	if got := PendingRewards(150, &twoHoursAgo, now); got != 300 {
		t.Fatalf("150/h over 2h: got %d, want 300", got)
	}

	halfHourAgo := now.Add(-30 * time.Minute)
	if got := PendingRewards(150, &halfHourAgo, now); got != 75 {
		t.Fatalf("150/h over 30m: got %d, want 75", got)
	}

	// fractions truncate
	if got := PendingRewards(100, &halfHourAgo, now); got != 50 {
		t.Fatalf("100/h over 30m: got %d, want 50", got)
	}

	if got := PendingRewards(0, &twoHoursAgo, now); got != 0 {
		t.Fatalf("zero rate: got %d, want 0", got)
	}
	if got := PendingRewards(150, nil, now); got != 0 {
		t.Fatalf("nil last claim: got %d, want 0", got)
	}

	future := now.Add(time.Hour)
	if got := PendingRewards(150, &future, now); got != 0 {
		t.Fatalf("future last claim: got %d, want 0", got)
	}
}

func TestPendingRewardsMonotonic(t *testing.T) {
	start := time.Now()
	last := start.Add(-10 * time.Minute)

	prev := int64(-1)
	for i := 0; i < 10; i++ {
		now := start.Add(time.Duration(i) * time.Minute)
		got := PendingRewards(1000, &last, now)
		if got < prev {
			t.Fatalf("pending decreased from %d to %d at step %d", prev, got, i)
		}
		prev = got
	}
}

func TestDeriveMiningStats(t *testing.T) {
	cfg := DefaultSettings()
	now := time.Now()

	cards := []Card{
		card(TierBasic, 1, now.Add(48*time.Hour)),
		card(TierPro, 1, now.Add(2*time.Hour)),
		card(TierAdvanced, 1, now.Add(-time.Hour)), // expired
	}

	stats := DeriveMiningStats(cards, cfg, now)

	if len(stats.Active) != 2 {
		t.Fatalf("active: got %d, want 2", len(stats.Active))
	}
	if len(stats.Expired) != 1 {
		t.Fatalf("expired: got %d, want 1", len(stats.Expired))
	}

	// basic 150 + pro 1000; the expired advanced contributes nothing
	if stats.TotalRate != 1150 {
		t.Fatalf("total rate: got %d, want 1150", stats.TotalRate)
	}
	if stats.Expired[0].RatePerHour != 0 {
		t.Fatalf("expired card rate: got %d, want 0", stats.Expired[0].RatePerHour)
	}

	if stats.NextToExpire == nil || stats.NextToExpire.Card.Tier != TierPro {
		t.Fatalf("next to expire should be the pro card, got %+v", stats.NextToExpire)
	}
}

func TestDeriveMiningStatsUnknownTier(t *testing.T) {
	cfg := DefaultSettings()
	now := time.Now()

	stats := DeriveMiningStats([]Card{card(99, 1, now.Add(time.Hour))}, cfg, now)
	if stats.TotalRate != 0 {
		t.Fatalf("unknown tier should contribute zero rate, got %d", stats.TotalRate)
	}
	if len(stats.Active) != 1 {
		t.Fatalf("unknown tier card still listed as active, got %d", len(stats.Active))
	}
}

func TestDeriveMiningStatsEmpty(t *testing.T) {
	stats := DeriveMiningStats(nil, DefaultSettings(), time.Now())
	if stats.TotalRate != 0 || stats.NextToExpire != nil {
		t.Fatalf("empty portfolio: %+v", stats)
	}
}

func TestCardActivity(t *testing.T) {
	now := time.Now()
	c := card(TierBasic, 2, now.Add(time.Minute))

	if got := c.Key(); got != "1_2" {
		t.Fatalf("key: got %q, want 1_2", got)
	}
	if !c.IsActive(now) {
		t.Fatal("card expiring in a minute should be active")
	}
	if c.IsActive(now.Add(2 * time.Minute)) {
		t.Fatal("card should be inactive after expiry")
	}
	if c.TimeUntilExpiry(now.Add(2*time.Minute)) != 0 {
		t.Fatal("expired card should report zero remaining time")
	}
}
