package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"skyton/internal/domain"
	"skyton/internal/logger"
	"skyton/internal/oxapay"
	"skyton/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrBelowMinWithdrawal = errors.New("amount below minimum withdrawal")
	ErrNoWallet           = errors.New("no withdrawal wallet bound")
	ErrInvalidAddress     = errors.New("invalid wallet address")
	ErrWithdrawalInFlight = errors.New("a withdrawal is already in progress")
)

// WithdrawService implements the optimistic-debit payout saga: debit and
// record in one transaction, then ask the provider; a provider failure or a
// failed webhook later compensates with exactly one refund.
type WithdrawService struct {
	db          *pgxpool.Pool
	ledger      *LedgerService
	users       *repository.UserRepository
	withdrawals *repository.WithdrawalRepository
	settings    *repository.SettingsRepository
	pay         *oxapay.Client
	notifier    Notifier
}

func NewWithdrawService(db *pgxpool.Pool, ledger *LedgerService, pay *oxapay.Client, notifier Notifier) *WithdrawService {
	return &WithdrawService{
		db:          db,
		ledger:      ledger,
		users:       repository.NewUserRepository(db),
		withdrawals: repository.NewWithdrawalRepository(db),
		settings:    repository.NewSettingsRepository(db),
		pay:         pay,
		notifier:    notifier,
	}
}

// Request creates a withdrawal: validates, debits the full amount across
// buckets (withdrawal-only funds first), records the debited mix, then
// submits the payout. Validation failures happen before any mutation.
func (s *WithdrawService) Request(ctx context.Context, userID int64, amountSton int64, currency string) (*domain.Withdrawal, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if amountSton <= 0 {
		return nil, ErrInvalidAmount
	}
	if amountSton < cfg.MinWithdrawal {
		return nil, ErrBelowMinWithdrawal
	}
	if currency == "" {
		currency = "TON"
	}
	if currency != "TON" {
		return nil, ErrUnsupportedCurrency
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.HasWallet() {
		return nil, ErrNoWallet
	}
	if !oxapay.ValidateAddress(currency, user.Wallet) {
		return nil, ErrInvalidAddress
	}

	cryptoAmount := oxapay.StonToTon(amountSton, cfg.StonPerTon)
	if !oxapay.ValidateAmount(currency, cryptoAmount) {
		return nil, ErrInvalidAmount
	}

	w := &domain.Withdrawal{
		UserID:        userID,
		OrderID:       uuid.NewString(),
		AmountSton:    amountSton,
		CryptoAmount:  cryptoAmount,
		Currency:      currency,
		WalletAddress: user.Wallet,
		Memo:          user.TonMemo,
		Status:        domain.WithdrawalPending,
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The one-in-flight check must run under the row lock: a concurrent
	// request is serialized on the lock and sees the first request's pending
	// row once it gets through.
	if err := s.ledger.LockUserTx(ctx, tx, userID); err != nil {
		return nil, err
	}
	pending, err := repository.HasPendingWithdrawalTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrWithdrawalInFlight
	}

	breakdown, err := s.ledger.DebitForWithdrawalTx(ctx, tx, userID, amountSton)
	if err != nil {
		return nil, err
	}
	w.DebitBreakdown = breakdown

	if err := repository.CreateWithdrawalTx(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	payout, err := s.pay.CreatePayout(ctx, &oxapay.PayoutRequest{
		Amount:   cryptoAmount,
		Currency: currency,
		Address:  user.Wallet,
		Memo:     user.TonMemo,
		OrderID:  w.OrderID,
	})
	if err != nil {
		// The debit already committed; compensate now rather than leaving
		// the saga to a webhook that will never come.
		if refundErr := s.Refund(ctx, w.ID); refundErr != nil {
			logger.Error("payout submit failed and refund failed", "withdrawal_id", w.ID, "error", refundErr)
		}
		return nil, err
	}

	w.TrackID = payout.TrackID
	if err := s.withdrawals.SetTrackID(ctx, w.ID, payout.TrackID); err != nil {
		logger.Error("failed to store payout track id", "withdrawal_id", w.ID, "error", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyAdmins(fmt.Sprintf("Withdrawal requested: user %d, %d STON (%.4f %s) to %s", userID, amountSton, cryptoAmount, currency, user.Wallet))
	}
	return w, nil
}

// Refund settles a withdrawal as failed and credits the debited mix back,
// exactly once. Safe to call from both the saga's failure path and the
// webhook reconciler.
func (s *WithdrawService) Refund(ctx context.Context, withdrawalID int64) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT id, user_id, amount_ston, debit_breakdown, refunded FROM withdrawals
		WHERE id = $1
		FOR UPDATE
	`, withdrawalID)

	var id, userID, amount int64
	var breakdownRaw []byte
	var refunded bool
	if err := row.Scan(&id, &userID, &amount, &breakdownRaw, &refunded); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return err
	}

	if _, err := repository.SettleWithdrawalTx(ctx, tx, id, domain.WithdrawalFailed); err != nil {
		return err
	}

	flipped, err := repository.MarkRefundedTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if flipped {
		if err := s.ledger.LockUserTx(ctx, tx, userID); err != nil {
			return err
		}
		mix := decodeBreakdown(breakdownRaw, amount)
		if err := s.ledger.CreditMixTx(ctx, tx, userID, mix); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// decodeBreakdown falls back to refunding everything into the task bucket
// when the stored mix is missing or does not cover the amount; the sum
// invariant must hold whatever the row looks like.
func decodeBreakdown(raw []byte, amount int64) map[domain.BalanceType]int64 {
	mix := map[domain.BalanceType]int64{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &mix)
	}
	if mixSum(mix) != amount {
		return map[domain.BalanceType]int64{domain.BalanceTask: amount}
	}
	return mix
}
