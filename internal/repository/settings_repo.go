package repository

import (
	"context"
	"encoding/json"

	"skyton/internal/domain"
	"skyton/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SettingsRepository struct {
	db *pgxpool.Pool
}

func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load builds the admin configuration snapshot for one request: compiled
// defaults overridden key by key from admin_settings. A malformed value is
// logged and skipped so one bad row cannot take pricing offline.
func (r *SettingsRepository) Load(ctx context.Context) (*domain.Settings, error) {
	s := domain.DefaultSettings()

	rows, err := r.db.Query(ctx, `SELECT key, value FROM admin_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		if err := applySetting(s, key, raw); err != nil {
			logger.Warn("skipping malformed admin setting", "key", key, "error", err)
		}
	}
	return s, rows.Err()
}

// Set overwrites one admin setting.
func (r *SettingsRepository) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO admin_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()
	`, key, raw)
	return err
}

func applySetting(s *domain.Settings, key string, raw []byte) error {
	switch key {
	case "card_tiers":
		return json.Unmarshal(raw, &s.CardTiers)
	case "ston_per_ton":
		return json.Unmarshal(raw, &s.StonPerTon)
	case "min_withdrawal":
		return json.Unmarshal(raw, &s.MinWithdrawal)
	case "max_energy":
		return json.Unmarshal(raw, &s.MaxEnergy)
	case "energy_per_ad":
		return json.Unmarshal(raw, &s.EnergyPerAd)
	case "energy_ad_limits":
		return json.Unmarshal(raw, &s.EnergyAdLimits)
	case "box_ad_limits":
		return json.Unmarshal(raw, &s.BoxAdLimits)
	case "box_reward_min":
		return json.Unmarshal(raw, &s.BoxRewardMin)
	case "box_reward_max":
		return json.Unmarshal(raw, &s.BoxRewardMax)
	case "referral_reward":
		return json.Unmarshal(raw, &s.ReferralReward)
	case "spin_segments":
		return json.Unmarshal(raw, &s.SpinSegments)
	}
	// Unknown keys are ignored so older binaries tolerate newer settings.
	return nil
}
