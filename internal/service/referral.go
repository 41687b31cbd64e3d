package service

import (
	"context"
	"errors"
	"time"

	"skyton/internal/domain"
	"skyton/internal/logger"
	"skyton/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrSelfReferral    = errors.New("cannot refer yourself")
	ErrAlreadyReferred = errors.New("user already has a referrer")
)

// ReferralService credits referrers when an invited user shows up. Rewards
// are fail-closed: any doubt about who referred whom means no credit, since
// an over-credit cannot be clawed back.
type ReferralService struct {
	db        *pgxpool.Pool
	ledger    *LedgerService
	users     *repository.UserRepository
	referrals *repository.ReferralRepository
	settings  *repository.SettingsRepository
	notifier  Notifier
}

func NewReferralService(db *pgxpool.Pool, ledger *LedgerService, notifier Notifier) *ReferralService {
	return &ReferralService{
		db:        db,
		ledger:    ledger,
		users:     repository.NewUserRepository(db),
		referrals: repository.NewReferralRepository(db),
		settings:  repository.NewSettingsRepository(db),
		notifier:  notifier,
	}
}

// Register records that referrerID invited referredID and pays the reward.
// The unique constraint on referred_id makes the whole operation idempotent:
// both the /start deep link and the webapp start_param can call this and
// only the first attempt credits anything.
func (s *ReferralService) Register(ctx context.Context, referrerID, referredID int64) error {
	if referrerID == referredID {
		return ErrSelfReferral
	}
	if referrerID <= 0 || referredID <= 0 {
		return ErrUserNotFound
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.ledger.LockUserTx(ctx, tx, referrerID); err != nil {
		return err
	}

	// ON CONFLICT DO NOTHING plus RowsAffected is the dedup: a second call
	// for the same referred user inserts nothing and ends here.
	tag, err := tx.Exec(ctx, `
		INSERT INTO referral_history (referrer_id, referred_id)
		VALUES ($1, $2)
		ON CONFLICT (referred_id) DO NOTHING
	`, referrerID, referredID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReferred
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET invited_by = COALESCE(invited_by, $2) WHERE id = $1
	`, referredID, referrerID); err != nil {
		return err
	}

	now := time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET referrals = referrals + 1,
		    free_spins = free_spins + 1,
		    weekly_referrals = CASE
		        WHEN weekly_referrals_reset_at IS NULL OR weekly_referrals_reset_at <= $2 THEN 1
		        ELSE weekly_referrals + 1
		    END,
		    weekly_referrals_reset_at = CASE
		        WHEN weekly_referrals_reset_at IS NULL OR weekly_referrals_reset_at <= $2 THEN $3
		        ELSE weekly_referrals_reset_at
		    END
		WHERE id = $1
	`, referrerID, now, now.Add(7*24*time.Hour)); err != nil {
		return err
	}

	if cfg.ReferralReward > 0 {
		if err := s.ledger.CreditByTypeTx(ctx, tx, referrerID, cfg.ReferralReward, domain.BalanceReferral); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info("referral registered", "referrer_id", referrerID, "referred_id", referredID)
	if s.notifier != nil && cfg.ReferralReward > 0 {
		s.notifier.NotifyUser(referrerID, "A friend joined through your link. Referral reward credited!")
	}
	return nil
}

// Stats returns the referrer-facing summary plus recent edges.
func (s *ReferralService) Stats(ctx context.Context, userID int64) (*domain.ReferralStats, []domain.ReferralEntry, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}

	entries, err := s.referrals.GetByReferrer(ctx, userID, 50)
	if err != nil {
		return nil, nil, err
	}
	invitedBy, err := s.referrals.ReferrerOf(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	weekly := user.WeeklyReferrals
	if user.WeeklyReferralsResetAt != nil && user.WeeklyReferralsResetAt.Before(time.Now()) {
		weekly = 0
	}
	return &domain.ReferralStats{
		Referrals:       user.Referrals,
		WeeklyReferrals: weekly,
		TotalEarned:     user.ReferralBalance,
		InvitedBy:       invitedBy,
	}, entries, nil
}
