package domain

// CardTier is the admin-tunable configuration of one card tier.
type CardTier struct {
	Name         string  `json:"name"`
	RatePerHour  int64   `json:"rate_per_hour"`
	PriceSton    int64   `json:"price_ston"`
	PriceTon     float64 `json:"price_ton"`
	ValidityDays int     `json:"validity_days"`
}

// SpinSegment is one wheel segment. Exactly one of the reward fields is
// meaningful per kind.
type SpinSegment struct {
	Kind   string `json:"kind"` // "ston", "box", "free_spin", "nothing"
	Amount int64  `json:"amount"`
	Weight uint   `json:"weight"`
}

// AdLimits bounds how many rewarded ads a user may claim per hour and day.
type AdLimits struct {
	PerHour int `json:"per_hour"`
	PerDay  int `json:"per_day"`
}

// Settings is the admin configuration snapshot injected into every core
// operation. It is loaded per request from the admin_settings table with
// compiled defaults for missing keys; rates are therefore evaluated live
// against the snapshot, never frozen into a card instance.
type Settings struct {
	CardTiers map[int]CardTier `json:"card_tiers"`

	StonPerTon    int64 `json:"ston_per_ton"`
	MinWithdrawal int64 `json:"min_withdrawal"`

	MaxEnergy      int      `json:"max_energy"`
	EnergyPerAd    int      `json:"energy_per_ad"`
	EnergyAdLimits AdLimits `json:"energy_ad_limits"`
	BoxAdLimits    AdLimits `json:"box_ad_limits"`

	BoxRewardMin int64 `json:"box_reward_min"`
	BoxRewardMax int64 `json:"box_reward_max"`

	ReferralReward int64 `json:"referral_reward"`

	SpinSegments []SpinSegment `json:"spin_segments"`
}

// DefaultSettings returns the compiled fallback for every tunable. Any key
// present in admin_settings overrides the corresponding field.
func DefaultSettings() *Settings {
	return &Settings{
		CardTiers: map[int]CardTier{
			TierBasic:    {Name: "Basic Miner", RatePerHour: 150, PriceSton: 15_000_000, PriceTon: 0.5, ValidityDays: 7},
			TierAdvanced: {Name: "Advanced Miner", RatePerHour: 400, PriceSton: 35_000_000, PriceTon: 1.2, ValidityDays: 15},
			TierPro:      {Name: "Pro Miner", RatePerHour: 1000, PriceSton: 75_000_000, PriceTon: 2.5, ValidityDays: 30},
		},
		StonPerTon:     30_000_000,
		MinWithdrawal:  100_000_000,
		MaxEnergy:      500,
		EnergyPerAd:    50,
		EnergyAdLimits: AdLimits{PerHour: 3, PerDay: 10},
		BoxAdLimits:    AdLimits{PerHour: 2, PerDay: 5},
		BoxRewardMin:   50_000,
		BoxRewardMax:   500_000,
		ReferralReward: 1_000_000,
		SpinSegments: []SpinSegment{
			{Kind: "ston", Amount: 100_000, Weight: 30},
			{Kind: "ston", Amount: 250_000, Weight: 15},
			{Kind: "ston", Amount: 1_000_000, Weight: 5},
			{Kind: "box", Amount: 1, Weight: 15},
			{Kind: "free_spin", Amount: 1, Weight: 10},
			{Kind: "nothing", Amount: 0, Weight: 25},
		},
	}
}

// Tier returns the configuration for a tier, false when the tier is unknown.
func (s *Settings) Tier(tier int) (CardTier, bool) {
	t, ok := s.CardTiers[tier]
	return t, ok
}
