package repository

import (
	"context"
	"encoding/json"
	"time"

	"skyton/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const purchaseColumns = `id, user_id, order_id, tier, amount_ston, crypto_amount, currency,
	status, track_id, provider_data, created_at, updated_at, completed_at`

type PurchaseRepository struct {
	db *pgxpool.Pool
}

func NewPurchaseRepository(db *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create inserts a pending purchase created at invoice time.
func (r *PurchaseRepository) Create(ctx context.Context, p *domain.Purchase) error {
	data, err := json.Marshal(p.ProviderData)
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO purchases (user_id, order_id, tier, amount_ston, crypto_amount, currency, status, track_id, provider_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, p.UserID, p.OrderID, p.Tier, p.AmountSton, p.CryptoAmount, p.Currency, p.Status, p.TrackID, data).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByOrderID retrieves a purchase by our order ID, (nil, nil) when absent.
func (r *PurchaseRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Purchase, error) {
	row := r.db.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE order_id = $1`, orderID)
	return scanPurchase(row)
}

// GetByUserID returns a user's purchase history, newest first.
func (r *PurchaseRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]domain.Purchase, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

// FindByCorrelationTx locates and row-locks the purchase matching one
// correlation value, trying the stored track_id, then our order_id, then the
// id mirrored inside provider_data. Returns (nil, nil) when nothing matches.
func FindPurchaseByCorrelationTx(ctx context.Context, tx pgx.Tx, key string) (*domain.Purchase, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE track_id = $1 OR order_id = $1 OR provider_data->>'id' = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, key)
	return scanPurchase(row)
}

// MarkProcessingTx advances a non-terminal purchase to processing.
func MarkPurchaseProcessingTx(ctx context.Context, tx pgx.Tx, id int64, providerData []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE purchases
		SET status = 'processing', provider_data = COALESCE($2, provider_data), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, id, providerData)
	return err
}

// SettlePurchaseTx moves a purchase to a terminal status. The status guard is
// part of the same statement so a duplicate or late webhook affects zero rows.
// Reports whether this call performed the transition.
func SettlePurchaseTx(ctx context.Context, tx pgx.Tx, id int64, status domain.PurchaseStatus, providerData []byte) (bool, error) {
	var completedAt *time.Time
	if status == domain.PurchaseCompleted {
		now := time.Now()
		completedAt = &now
	}
	tag, err := tx.Exec(ctx, `
		UPDATE purchases
		SET status = $2, provider_data = COALESCE($3, provider_data), updated_at = NOW(), completed_at = COALESCE($4, completed_at)
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, id, status, providerData, completedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanPurchase(row pgx.Row) (*domain.Purchase, error) {
	var p domain.Purchase
	var data []byte
	if err := row.Scan(
		&p.ID, &p.UserID, &p.OrderID, &p.Tier, &p.AmountSton, &p.CryptoAmount, &p.Currency,
		&p.Status, &p.TrackID, &data, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &p.ProviderData)
	}
	return &p, nil
}
