package repository

import (
	"context"
	"encoding/json"
	"time"

	"skyton/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cardColumns = `id, user_id, tier, instance_no, purchase_date, expiration_date,
	validity_days, quantity, payment_id, method, renewal_history, created_at`

type CardRepository struct {
	db *pgxpool.Pool
}

func NewCardRepository(db *pgxpool.Pool) *CardRepository {
	return &CardRepository{db: db}
}

// GetByUserID returns all card instances a user has ever held, newest first.
func (r *CardRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Card, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+cardColumns+` FROM mining_cards
		WHERE user_id = $1
		ORDER BY tier ASC, instance_no ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCards(rows)
}

// CreateOrRenewTx applies the card lifecycle rule inside an existing
// transaction: repurchasing a tier with a live instance renews that instance
// (expiry reset to now+validity, quantity bumped, history appended);
// otherwise a new instance is created under the next free instance number.
// The user row must already be locked by the caller.
func CreateOrRenewTx(ctx context.Context, tx pgx.Tx, userID int64, tier domain.CardTier, tierNo int, method, paymentID string, now time.Time) (*domain.Card, bool, error) {
	expiry := now.Add(time.Duration(tier.ValidityDays) * 24 * time.Hour)

	// Renewal path: an active instance of this tier gets its clock reset,
	// remaining time is not stacked.
	renewal := domain.CardRenewal{RenewedAt: now, Method: method, PaymentID: paymentID}
	renewalJSON, err := json.Marshal(renewal)
	if err != nil {
		return nil, false, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE mining_cards
		SET purchase_date = $3, expiration_date = $4, validity_days = $5,
		    quantity = quantity + 1, payment_id = $6, method = $7,
		    renewal_history = renewal_history || $8::jsonb
		WHERE id = (
			SELECT id FROM mining_cards
			WHERE user_id = $1 AND tier = $2 AND expiration_date > $3
			ORDER BY instance_no ASC
			LIMIT 1
		)
		RETURNING `+cardColumns,
		userID, tierNo, now, expiry, tier.ValidityDays, paymentID, method, renewalJSON)

	card, err := scanCard(row)
	if err != nil {
		return nil, false, err
	}
	if card != nil {
		return card, true, nil
	}

	// No live instance: allocate the next instance number for this tier.
	row = tx.QueryRow(ctx, `
		INSERT INTO mining_cards (user_id, tier, instance_no, purchase_date, expiration_date, validity_days, quantity, payment_id, method)
		SELECT $1, $2, COALESCE(MAX(instance_no), 0) + 1, $3, $4, $5, 1, $6, $7
		FROM mining_cards WHERE user_id = $1 AND tier = $2
		RETURNING `+cardColumns,
		userID, tierNo, now, expiry, tier.ValidityDays, paymentID, method)

	card, err = scanCard(row)
	if err != nil {
		return nil, false, err
	}
	return card, false, nil
}

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card
	var history []byte
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Tier, &c.InstanceNo, &c.PurchaseDate, &c.ExpirationDate,
		&c.ValidityDays, &c.Quantity, &c.PaymentID, &c.Method, &history, &c.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(history) > 0 {
		_ = json.Unmarshal(history, &c.RenewalHistory)
	}
	return &c, nil
}

func scanCards(rows pgx.Rows) ([]domain.Card, error) {
	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		var history []byte
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Tier, &c.InstanceNo, &c.PurchaseDate, &c.ExpirationDate,
			&c.ValidityDays, &c.Quantity, &c.PaymentID, &c.Method, &history, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(history) > 0 {
			_ = json.Unmarshal(history, &c.RenewalHistory)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
