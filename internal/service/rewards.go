package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"skyton/internal/domain"
	"skyton/internal/logger"
	"skyton/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mroth/weightedrand/v2"
	"github.com/redis/go-redis/v9"
)

var (
	ErrUnknownTask     = errors.New("unknown task")
	ErrTaskAlreadyDone = errors.New("task already completed")
	ErrNoBoxes         = errors.New("no mystery boxes to open")
	ErrNoFreeSpins     = errors.New("no free spins left")
	ErrAdLimitReached  = errors.New("ad reward limit reached")
)

// taskRewards is the server-side task catalog. The client only ever sends a
// task ID; amounts never cross the wire.
var taskRewards = map[string]int64{
	"join_channel":  500_000,
	"join_chat":     300_000,
	"follow_x":      250_000,
	"daily_checkin": 100_000,
}

// RewardsService covers the engagement features around the core ledger:
// one-off tasks, mystery boxes, the spin wheel, and ad-gated refills.
type RewardsService struct {
	db       *pgxpool.Pool
	rdb      *redis.Client
	ledger   *LedgerService
	settings *repository.SettingsRepository
}

func NewRewardsService(db *pgxpool.Pool, rdb *redis.Client, ledger *LedgerService) *RewardsService {
	return &RewardsService{
		db:       db,
		rdb:      rdb,
		ledger:   ledger,
		settings: repository.NewSettingsRepository(db),
	}
}

// CompleteTask credits a one-off task reward into the task bucket. The
// completion marker lives in the transactions log and is checked under the
// user row lock, so double submits cannot double-credit.
func (s *RewardsService) CompleteTask(ctx context.Context, userID int64, taskID string) (int64, error) {
	reward, ok := taskRewards[taskID]
	if !ok {
		return 0, ErrUnknownTask
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.ledger.LockUserTx(ctx, tx, userID); err != nil {
		return 0, err
	}

	var done bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE user_id = $1 AND type = 'task_complete' AND meta->>'task_id' = $2
		)
	`, userID, taskID).Scan(&done); err != nil {
		return 0, err
	}
	if done {
		return 0, ErrTaskAlreadyDone
	}

	if err := s.ledger.CreditByTypeTx(ctx, tx, userID, reward, domain.BalanceTask); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (user_id, type, amount, meta)
		VALUES ($1, 'task_complete', 0, jsonb_build_object('task_id', $2::text))
	`, userID, taskID); err != nil {
		return 0, err
	}
	return reward, tx.Commit(ctx)
}

// OpenBox consumes one mystery box and credits a uniform random reward into
// the box bucket. The decrement guard doubles as the stock check.
func (s *RewardsService) OpenBox(ctx context.Context, userID int64) (int64, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.ledger.LockUserTx(ctx, tx, userID); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users SET mystery_boxes = mystery_boxes - 1
		WHERE id = $1 AND mystery_boxes > 0
	`, userID)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNoBoxes
	}

	reward := cfg.BoxRewardMin
	if spread := cfg.BoxRewardMax - cfg.BoxRewardMin; spread > 0 {
		reward += rand.Int64N(spread + 1)
	}
	if err := s.ledger.CreditByTypeTx(ctx, tx, userID, reward, domain.BalanceBox); err != nil {
		return 0, err
	}
	return reward, tx.Commit(ctx)
}

// SpinResult reports what the wheel landed on.
type SpinResult struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

// Spin consumes one free spin and applies a weighted random segment. STON
// segments credit the box bucket; box and free_spin segments adjust the
// respective counters; nothing just consumes the spin.
func (s *RewardsService) Spin(ctx context.Context, userID int64) (*SpinResult, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	choices := make([]weightedrand.Choice[domain.SpinSegment, uint], 0, len(cfg.SpinSegments))
	for _, seg := range cfg.SpinSegments {
		if seg.Weight == 0 {
			continue
		}
		choices = append(choices, weightedrand.NewChoice(seg, seg.Weight))
	}
	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return nil, fmt.Errorf("bad spin segment config: %w", err)
	}
	seg := chooser.Pick()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.ledger.LockUserTx(ctx, tx, userID); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users SET free_spins = free_spins - 1, total_spins_used = total_spins_used + 1
		WHERE id = $1 AND free_spins > 0
	`, userID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNoFreeSpins
	}

	switch seg.Kind {
	case "ston":
		if seg.Amount > 0 {
			if err := s.ledger.CreditByTypeTx(ctx, tx, userID, seg.Amount, domain.BalanceBox); err != nil {
				return nil, err
			}
			if _, err := tx.Exec(ctx, `
				UPDATE users SET total_spin_rewards = total_spin_rewards + $2 WHERE id = $1
			`, userID, seg.Amount); err != nil {
				return nil, err
			}
		}
	case "box":
		if _, err := tx.Exec(ctx, `
			UPDATE users SET mystery_boxes = mystery_boxes + $2 WHERE id = $1
		`, userID, seg.Amount); err != nil {
			return nil, err
		}
	case "free_spin":
		if _, err := tx.Exec(ctx, `
			UPDATE users SET free_spins = free_spins + $2 WHERE id = $1
		`, userID, seg.Amount); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &SpinResult{Kind: seg.Kind, Amount: seg.Amount}, nil
}

// ClaimEnergyAd grants the per-ad energy refill, capped at max energy, after
// the hour and day ad counters allow it.
func (s *RewardsService) ClaimEnergyAd(ctx context.Context, userID int64) (int, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.checkAdLimit(ctx, userID, "energy", cfg.EnergyAdLimits); err != nil {
		return 0, err
	}

	var energy int
	err = s.db.QueryRow(ctx, `
		UPDATE users SET energy = LEAST(energy + $2, $3)
		WHERE id = $1
		RETURNING energy
	`, userID, cfg.EnergyPerAd, cfg.MaxEnergy).Scan(&energy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return energy, nil
}

// ClaimBoxAd grants one mystery box per watched ad, within the box ad limits.
func (s *RewardsService) ClaimBoxAd(ctx context.Context, userID int64) (int, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.checkAdLimit(ctx, userID, "box", cfg.BoxAdLimits); err != nil {
		return 0, err
	}

	var boxes int
	err = s.db.QueryRow(ctx, `
		UPDATE users SET mystery_boxes = mystery_boxes + 1
		WHERE id = $1
		RETURNING mystery_boxes
	`, userID).Scan(&boxes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return boxes, nil
}

// checkAdLimit enforces the hour and day windows with Redis counters. Redis
// being down fails open, same as the API rate limiter: losing ad limiting is
// cheaper than losing the feature.
func (s *RewardsService) checkAdLimit(ctx context.Context, userID int64, kind string, limits domain.AdLimits) error {
	if s.rdb == nil {
		return nil
	}
	now := time.Now().UTC()
	windows := []struct {
		key   string
		ttl   time.Duration
		limit int
	}{
		{fmt.Sprintf("ads:%s:%d:h:%s", kind, userID, now.Format("2006010215")), time.Hour, limits.PerHour},
		{fmt.Sprintf("ads:%s:%d:d:%s", kind, userID, now.Format("20060102")), 24 * time.Hour, limits.PerDay},
	}
	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		count, err := s.rdb.Incr(ctx, w.key).Result()
		if err != nil {
			logger.Warn("ad limit check failed, allowing claim", "error", err)
			return nil
		}
		if count == 1 {
			s.rdb.Expire(ctx, w.key, w.ttl)
		}
		if count > int64(w.limit) {
			return ErrAdLimitReached
		}
	}
	return nil
}
