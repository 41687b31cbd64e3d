package repository

import (
	"context"
	"errors"

	"skyton/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, COALESCE(username, ''), COALESCE(first_name, ''),
	balance, task_balance, box_balance, referral_balance, mining_balance,
	energy, mystery_boxes, free_spins, total_spins_used, total_spin_rewards,
	referrals, weekly_referrals, weekly_referrals_reset_at, invited_by,
	wallet, ton_memo, last_claim_time, total_mined, mining_active, created_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by Telegram ID, (nil, nil) when absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Upsert creates the user on first auth and refreshes the profile fields on
// subsequent ones. Balances are never touched here.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, first_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET username = $2, first_name = $3
		RETURNING created_at
	`, u.ID, u.Username, u.FirstName).Scan(&u.CreatedAt)
}

// SetWallet binds the withdrawal destination. Wallet and memo are required
// together; clearing both at once is allowed.
func (r *UserRepository) SetWallet(ctx context.Context, userID int64, wallet, memo string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET wallet = $2, ton_memo = $3 WHERE id = $1
	`, userID, wallet, memo)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// TopMiners returns the leaderboard ordered by lifetime mined STON.
func (r *UserRepository) TopMiners(ctx context.Context, limit int) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY total_mined DESC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID, &u.Username, &u.FirstName,
		&u.Balance, &u.TaskBalance, &u.BoxBalance, &u.ReferralBalance, &u.MiningBalance,
		&u.Energy, &u.MysteryBoxes, &u.FreeSpins, &u.TotalSpinsUsed, &u.TotalSpinRewards,
		&u.Referrals, &u.WeeklyReferrals, &u.WeeklyReferralsResetAt, &u.InvitedBy,
		&u.Wallet, &u.TonMemo, &u.LastClaimTime, &u.TotalMined, &u.MiningActive, &u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
