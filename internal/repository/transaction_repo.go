package repository

import (
	"context"
	"encoding/json"

	"skyton/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateWithTx appends an audit row inside the caller's transaction so the
// ledger movement and its record commit or roll back together.
func (r *TransactionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	meta, err := json.Marshal(t.Meta)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, amount, meta)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, t.UserID, t.Type, t.Amount, meta).Scan(&t.ID, &t.CreatedAt)
}

// GetByUserID returns a user's ledger history, newest first.
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, amount, meta, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var meta []byte
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &meta, &t.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &t.Meta)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
