package repository

import (
	"testing"

	"skyton/internal/domain"
)

func TestApplySettingOverrides(t *testing.T) {
	s := domain.DefaultSettings()

	if err := applySetting(s, "ston_per_ton", []byte(`25000000`)); err != nil {
		t.Fatal(err)
	}
	if s.StonPerTon != 25_000_000 {
		t.Fatalf("ston_per_ton: got %d", s.StonPerTon)
	}

	if err := applySetting(s, "card_tiers", []byte(`{"1":{"name":"Cheap","rate_per_hour":10,"price_ston":100,"price_ton":0.1,"validity_days":1}}`)); err != nil {
		t.Fatal(err)
	}
	tier, ok := s.Tier(domain.TierBasic)
	if !ok || tier.RatePerHour != 10 || tier.Name != "Cheap" {
		t.Fatalf("card_tiers override not applied: %+v", tier)
	}

	if err := applySetting(s, "energy_ad_limits", []byte(`{"per_hour":1,"per_day":2}`)); err != nil {
		t.Fatal(err)
	}
	if s.EnergyAdLimits.PerHour != 1 || s.EnergyAdLimits.PerDay != 2 {
		t.Fatalf("ad limits override not applied: %+v", s.EnergyAdLimits)
	}
}

func TestApplySettingMalformed(t *testing.T) {
	s := domain.DefaultSettings()
	if err := applySetting(s, "min_withdrawal", []byte(`"not-a-number"`)); err == nil {
		t.Fatal("malformed value should error")
	}
	// the default must survive the failed override
	if s.MinWithdrawal != 100_000_000 {
		t.Fatalf("default clobbered: %d", s.MinWithdrawal)
	}
}

func TestApplySettingUnknownKeyIgnored(t *testing.T) {
	s := domain.DefaultSettings()
	if err := applySetting(s, "future_knob", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("unknown key should be ignored, got %v", err)
	}
}
