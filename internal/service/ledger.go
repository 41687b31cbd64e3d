package service

import (
	"context"
	"errors"
	"fmt"

	"skyton/internal/domain"
	"skyton/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient purchasable balance")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidBalanceType = errors.New("invalid balance type")
)

// LedgerService owns every balance movement. All mutations touch the typed
// bucket and the legacy aggregate in the same statement, keeping
// balance == sum(buckets) at all times.
type LedgerService struct {
	db     *pgxpool.Pool
	txRepo *repository.TransactionRepository
}

func NewLedgerService(db *pgxpool.Pool) *LedgerService {
	return &LedgerService{
		db:     db,
		txRepo: repository.NewTransactionRepository(db),
	}
}

func balanceColumn(t domain.BalanceType) string {
	switch t {
	case domain.BalanceTask:
		return "task_balance"
	case domain.BalanceBox:
		return "box_balance"
	case domain.BalanceReferral:
		return "referral_balance"
	case domain.BalanceMining:
		return "mining_balance"
	}
	return ""
}

// CreditByType adds amount to one bucket and the aggregate.
func (s *LedgerService) CreditByType(ctx context.Context, userID int64, amount int64, typ domain.BalanceType) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !domain.ValidBalanceType(typ) {
		return ErrInvalidBalanceType
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.LockUserTx(ctx, tx, userID); err != nil {
		return err
	}
	if err := s.CreditByTypeTx(ctx, tx, userID, amount, typ); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreditByTypeTx is the composition form used by the card engine and the
// reconciler. The caller must hold the user row lock.
func (s *LedgerService) CreditByTypeTx(ctx context.Context, tx pgx.Tx, userID int64, amount int64, typ domain.BalanceType) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	col := balanceColumn(typ)
	if col == "" {
		return ErrInvalidBalanceType
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(
		`UPDATE users SET %s = %s + $1, balance = balance + $1 WHERE id = $2`, col, col,
	), amount, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return s.txRepo.CreateWithTx(ctx, tx, &domain.Transaction{
		UserID: userID,
		Type:   "credit_" + string(typ),
		Amount: amount,
	})
}

// DeductPurchasable debits amount from the purchasable buckets, task first,
// then mining for the remainder, and the aggregate by the full amount. The
// sufficiency check runs against the locked row, so two concurrent purchases
// against a borderline balance cannot both pass.
func (s *LedgerService) DeductPurchasable(ctx context.Context, userID int64, amount int64) (map[domain.BalanceType]int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	breakdown, err := s.DeductPurchasableTx(ctx, tx, userID, amount)
	if err != nil {
		return nil, err
	}
	return breakdown, tx.Commit(ctx)
}

// DeductPurchasableTx locks the user row, materializes legacy balances and
// performs the typed debit. Returns the per-bucket mix actually debited.
func (s *LedgerService) DeductPurchasableTx(ctx context.Context, tx pgx.Tx, userID int64, amount int64) (map[domain.BalanceType]int64, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.LockUserTx(ctx, tx, userID); err != nil {
		return nil, err
	}

	var task, mining int64
	err := tx.QueryRow(ctx,
		`SELECT task_balance, mining_balance FROM users WHERE id = $1`, userID,
	).Scan(&task, &mining)
	if err != nil {
		return nil, err
	}
	if task+mining < amount {
		return nil, ErrInsufficientFunds
	}

	taskDebit := amount
	if taskDebit > task {
		taskDebit = task
	}
	miningDebit := amount - taskDebit

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET task_balance = task_balance - $1,
		    mining_balance = mining_balance - $2,
		    balance = balance - $3
		WHERE id = $4
	`, taskDebit, miningDebit, amount, userID)
	if err != nil {
		return nil, err
	}

	if err := s.txRepo.CreateWithTx(ctx, tx, &domain.Transaction{
		UserID: userID,
		Type:   "purchase_debit",
		Amount: -amount,
		Meta:   map[string]interface{}{"task": taskDebit, "mining": miningDebit},
	}); err != nil {
		return nil, err
	}

	breakdown := map[domain.BalanceType]int64{}
	if taskDebit > 0 {
		breakdown[domain.BalanceTask] = taskDebit
	}
	if miningDebit > 0 {
		breakdown[domain.BalanceMining] = miningDebit
	}
	return breakdown, nil
}

// DebitForWithdrawalTx debits amount across all buckets for a cash-out,
// spending the withdrawal-only funds first (box, referral) so purchasable
// funds are preserved as long as possible. Returns the debited mix, which
// the caller stores for an exact compensating refund.
func (s *LedgerService) DebitForWithdrawalTx(ctx context.Context, tx pgx.Tx, userID int64, amount int64) (map[domain.BalanceType]int64, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.LockUserTx(ctx, tx, userID); err != nil {
		return nil, err
	}

	var task, box, referral, mining int64
	err := tx.QueryRow(ctx,
		`SELECT task_balance, box_balance, referral_balance, mining_balance FROM users WHERE id = $1`,
		userID,
	).Scan(&task, &box, &referral, &mining)
	if err != nil {
		return nil, err
	}
	if task+box+referral+mining < amount {
		return nil, ErrInsufficientFunds
	}

	breakdown := map[domain.BalanceType]int64{}
	remaining := amount
	for _, bucket := range []struct {
		typ     domain.BalanceType
		balance int64
	}{
		{domain.BalanceBox, box},
		{domain.BalanceReferral, referral},
		{domain.BalanceTask, task},
		{domain.BalanceMining, mining},
	} {
		if remaining == 0 {
			break
		}
		debit := remaining
		if debit > bucket.balance {
			debit = bucket.balance
		}
		if debit > 0 {
			breakdown[bucket.typ] = debit
			remaining -= debit
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET box_balance = box_balance - $1,
		    referral_balance = referral_balance - $2,
		    task_balance = task_balance - $3,
		    mining_balance = mining_balance - $4,
		    balance = balance - $5
		WHERE id = $6
	`, breakdown[domain.BalanceBox], breakdown[domain.BalanceReferral],
		breakdown[domain.BalanceTask], breakdown[domain.BalanceMining], amount, userID)
	if err != nil {
		return nil, err
	}

	if err := s.txRepo.CreateWithTx(ctx, tx, &domain.Transaction{
		UserID: userID,
		Type:   "withdrawal_debit",
		Amount: -amount,
	}); err != nil {
		return nil, err
	}
	return breakdown, nil
}

// CreditMixTx credits back an exact per-bucket mix, used by the withdrawal
// refund path so the purchasable split survives the round trip.
func (s *LedgerService) CreditMixTx(ctx context.Context, tx pgx.Tx, userID int64, mix map[domain.BalanceType]int64) error {
	var total int64
	for _, v := range mix {
		if v < 0 {
			return ErrInvalidAmount
		}
		total += v
	}
	if total <= 0 {
		return ErrInvalidAmount
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET box_balance = box_balance + $1,
		    referral_balance = referral_balance + $2,
		    task_balance = task_balance + $3,
		    mining_balance = mining_balance + $4,
		    balance = balance + $5
		WHERE id = $6
	`, mix[domain.BalanceBox], mix[domain.BalanceReferral],
		mix[domain.BalanceTask], mix[domain.BalanceMining], total, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return s.txRepo.CreateWithTx(ctx, tx, &domain.Transaction{
		UserID: userID,
		Type:   "withdrawal_refund",
		Amount: total,
	})
}

// LockUserTx row-locks the user and lazily migrates pre-breakdown rows: a
// legacy balance with four zero buckets becomes task balance, per the
// migration rule.
func (s *LedgerService) LockUserTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT TRUE FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET task_balance = balance
		WHERE id = $1 AND balance > 0
		  AND task_balance + box_balance + referral_balance + mining_balance = 0
	`, userID)
	return err
}
