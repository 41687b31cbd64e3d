package repository

import (
	"context"
	"encoding/json"

	"skyton/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const withdrawalColumns = `id, user_id, order_id, amount_ston, crypto_amount, currency,
	wallet_address, memo, status, track_id, refunded, debit_breakdown, created_at, updated_at`

type WithdrawalRepository struct {
	db *pgxpool.Pool
}

func NewWithdrawalRepository(db *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// GetByUserID returns a user's withdrawal history, newest first.
func (r *WithdrawalRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]domain.Withdrawal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// HasPendingWithdrawalTx checks for an in-flight withdrawal inside the
// caller's transaction. Evaluated under the user row lock it serializes
// requests: one withdrawal at a time per user.
func HasPendingWithdrawalTx(ctx context.Context, tx pgx.Tx, userID int64) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM withdrawals WHERE user_id = $1 AND status IN ('pending', 'processing'))
	`, userID).Scan(&exists)
	return exists, err
}

// CreateWithdrawalTx inserts the request inside the same transaction that
// debits the balance, so a failed insert rolls the debit back.
func CreateWithdrawalTx(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	breakdown, err := json.Marshal(w.DebitBreakdown)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO withdrawals (user_id, order_id, amount_ston, crypto_amount, currency, wallet_address, memo, status, track_id, debit_breakdown)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, w.UserID, w.OrderID, w.AmountSton, w.CryptoAmount, w.Currency, w.WalletAddress, w.Memo, w.Status, w.TrackID, breakdown).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

// SetTrackID stores the provider correlation ID once the payout is accepted.
func (r *WithdrawalRepository) SetTrackID(ctx context.Context, id int64, trackID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE withdrawals SET track_id = $2, updated_at = NOW() WHERE id = $1
	`, id, trackID)
	return err
}

// FindWithdrawalByCorrelationTx locates and row-locks the withdrawal matching
// one correlation value. Returns (nil, nil) when nothing matches.
func FindWithdrawalByCorrelationTx(ctx context.Context, tx pgx.Tx, key string) (*domain.Withdrawal, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE track_id = $1 OR order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, key)
	return scanWithdrawal(row)
}

// SettleWithdrawalTx moves a withdrawal to a terminal status with the same
// in-statement guard as purchases. Reports whether the transition happened.
func SettleWithdrawalTx(ctx context.Context, tx pgx.Tx, id int64, status domain.WithdrawalStatus) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE withdrawals
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRefundedTx flips the refund guard. Affects zero rows if a concurrent
// handler already refunded, which callers must treat as "do not credit".
func MarkRefundedTx(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE withdrawals SET refunded = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT refunded
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	var breakdown []byte
	if err := row.Scan(
		&w.ID, &w.UserID, &w.OrderID, &w.AmountSton, &w.CryptoAmount, &w.Currency,
		&w.WalletAddress, &w.Memo, &w.Status, &w.TrackID, &w.Refunded, &breakdown,
		&w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(breakdown) > 0 {
		_ = json.Unmarshal(breakdown, &w.DebitBreakdown)
	}
	return &w, nil
}
