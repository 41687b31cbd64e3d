package repository

import (
	"context"
	"errors"

	"skyton/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReferralRepository struct {
	db *pgxpool.Pool
}

func NewReferralRepository(db *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// GetByReferrer returns the referral edges created by a user, newest first.
func (r *ReferralRepository) GetByReferrer(ctx context.Context, referrerID int64, limit int) ([]domain.ReferralEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, referrer_id, referred_id, joined_at
		FROM referral_history
		WHERE referrer_id = $1
		ORDER BY joined_at DESC
		LIMIT $2
	`, referrerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ReferralEntry
	for rows.Next() {
		var e domain.ReferralEntry
		if err := rows.Scan(&e.ID, &e.ReferrerID, &e.ReferredID, &e.JoinedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReferrerOf returns who referred a user, 0 when nobody did.
func (r *ReferralRepository) ReferrerOf(ctx context.Context, userID int64) (int64, error) {
	var referrerID int64
	err := r.db.QueryRow(ctx, `
		SELECT referrer_id FROM referral_history WHERE referred_id = $1
	`, userID).Scan(&referrerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return referrerID, nil
}
