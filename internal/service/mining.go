package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skyton/internal/domain"
	"skyton/internal/logger"
	"skyton/internal/oxapay"
	"skyton/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUnknownTier         = errors.New("unknown card tier")
	ErrUnsupportedCurrency = errors.New("unsupported invoice currency")
	ErrNothingToClaim      = errors.New("nothing to claim")
)

// Notifier delivers best-effort messages. Failures are logged by the
// implementation and never affect the calling operation.
type Notifier interface {
	NotifyAdmins(msg string)
	NotifyUser(userID int64, msg string)
}

// MiningService is the card engine: purchases, renewals and reward claims.
type MiningService struct {
	db          *pgxpool.Pool
	ledger      *LedgerService
	cards       *repository.CardRepository
	purchases   *repository.PurchaseRepository
	settings    *repository.SettingsRepository
	pay         *oxapay.Client
	notifier    Notifier
	callbackURL string
	returnURL   string
}

func NewMiningService(db *pgxpool.Pool, ledger *LedgerService, pay *oxapay.Client, notifier Notifier, callbackURL, returnURL string) *MiningService {
	return &MiningService{
		db:          db,
		ledger:      ledger,
		cards:       repository.NewCardRepository(db),
		purchases:   repository.NewPurchaseRepository(db),
		settings:    repository.NewSettingsRepository(db),
		pay:         pay,
		notifier:    notifier,
		callbackURL: callbackURL,
		returnURL:   returnURL,
	}
}

// PurchaseWithBalance buys or renews a card with purchasable STON. Debit,
// card mutation and mining-clock initialization land in one transaction so
// the user can never be debited without a card or vice versa.
func (s *MiningService) PurchaseWithBalance(ctx context.Context, userID int64, tierNo int) (*domain.Card, bool, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	tier, ok := cfg.Tier(tierNo)
	if !ok {
		return nil, false, ErrUnknownTier
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := s.ledger.DeductPurchasableTx(ctx, tx, userID, tier.PriceSton); err != nil {
		return nil, false, err
	}

	now := time.Now()
	card, renewed, err := repository.CreateOrRenewTx(ctx, tx, userID, tier, tierNo, domain.MethodBalance, "", now)
	if err != nil {
		return nil, false, err
	}

	// First-ever card starts the mining clock; later purchases leave the
	// accrual baseline alone.
	if _, err := tx.Exec(ctx, `
		UPDATE users SET last_claim_time = COALESCE(last_claim_time, $2), mining_active = TRUE
		WHERE id = $1
	`, userID, now); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	if s.notifier != nil {
		s.notifier.NotifyAdmins(fmt.Sprintf("Card purchase: user %d bought %s (tier %d) for %d STON", userID, tier.Name, tierNo, tier.PriceSton))
	}
	return card, renewed, nil
}

// PurchaseWithCrypto creates a provider invoice and a pending purchase
// record keyed by the provider's track ID. The card is granted only when
// the reconciler sees the payment complete.
func (s *MiningService) PurchaseWithCrypto(ctx context.Context, userID int64, tierNo int, currency string) (*domain.Purchase, string, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, "", err
	}
	tier, ok := cfg.Tier(tierNo)
	if !ok {
		return nil, "", ErrUnknownTier
	}
	if currency == "" {
		currency = "TON"
	}
	// Invoices are denominated in TON; the provider handles what the payer
	// actually sends.
	if currency != "TON" {
		return nil, "", ErrUnsupportedCurrency
	}
	if !oxapay.ValidateAmount(currency, tier.PriceTon) {
		return nil, "", ErrInvalidAmount
	}

	orderID := uuid.NewString()
	invoice, err := s.pay.CreateInvoice(ctx, &oxapay.InvoiceRequest{
		Amount:      tier.PriceTon,
		Currency:    currency,
		OrderID:     orderID,
		CallbackURL: s.callbackURL,
		ReturnURL:   s.returnURL,
		Description: fmt.Sprintf("%s card for user %d", tier.Name, userID),
		Lifetime:    60,
	})
	if err != nil {
		return nil, "", err
	}

	purchase := &domain.Purchase{
		UserID:       userID,
		OrderID:      orderID,
		Tier:         tierNo,
		AmountSton:   tier.PriceSton,
		CryptoAmount: tier.PriceTon,
		Currency:     currency,
		Status:       domain.PurchasePending,
		TrackID:      invoice.TrackID,
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		return nil, "", err
	}

	return purchase, invoice.PaymentURL, nil
}

// ActivateCardTx grants or renews the card for a completed crypto purchase.
// Called by the reconciler inside the transaction that settles the purchase
// record.
func (s *MiningService) ActivateCardTx(ctx context.Context, tx pgx.Tx, p *domain.Purchase, cfg *domain.Settings) (*domain.Card, error) {
	tier, ok := cfg.Tier(p.Tier)
	if !ok {
		return nil, ErrUnknownTier
	}

	if err := s.ledger.LockUserTx(ctx, tx, p.UserID); err != nil {
		return nil, err
	}

	now := time.Now()
	card, _, err := repository.CreateOrRenewTx(ctx, tx, p.UserID, tier, p.Tier, domain.MethodOxapay, p.TrackID, now)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users SET last_claim_time = COALESCE(last_claim_time, $2), mining_active = TRUE
		WHERE id = $1
	`, p.UserID, now); err != nil {
		return nil, err
	}
	return card, nil
}

// MiningOverview is the derived state the mini-app polls.
type MiningOverview struct {
	Stats          domain.MiningStats `json:"stats"`
	PendingRewards int64              `json:"pending_rewards"`
	LastClaimTime  *time.Time         `json:"last_claim_time,omitempty"`
	TotalMined     int64              `json:"total_mined"`
}

// Overview derives card stats and pending rewards against the current
// settings snapshot.
func (s *MiningService) Overview(ctx context.Context, userID int64) (*MiningOverview, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	var lastClaim *time.Time
	var totalMined int64
	err = s.db.QueryRow(ctx,
		`SELECT last_claim_time, total_mined FROM users WHERE id = $1`, userID,
	).Scan(&lastClaim, &totalMined)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	cards, err := s.cards.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	stats := domain.DeriveMiningStats(cards, cfg, now)
	return &MiningOverview{
		Stats:          stats,
		PendingRewards: domain.PendingRewards(stats.TotalRate, lastClaim, now),
		LastClaimTime:  lastClaim,
		TotalMined:     totalMined,
	}, nil
}

// Claim converts pending rewards into mining balance. The pending amount is
// computed from the same locked read that resets the clock, so concurrent
// claims cannot double-credit.
func (s *MiningService) Claim(ctx context.Context, userID int64) (int64, error) {
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

	var lastClaim *time.Time
	if err := tx.QueryRow(ctx,
		`SELECT last_claim_time FROM users WHERE id = $1`, userID,
	).Scan(&lastClaim); err != nil {
		return 0, err
	}

	now := time.Now()
	var totalRate int64
	rows, err := tx.Query(ctx,
		`SELECT tier FROM mining_cards WHERE user_id = $1 AND expiration_date > $2`, userID, now)
	if err != nil {
		return 0, err
	}
	for rows.Next() {
		var tierNo int
		if err := rows.Scan(&tierNo); err != nil {
			rows.Close()
			return 0, err
		}
		if tier, ok := cfg.Tier(tierNo); ok {
			totalRate += tier.RatePerHour
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	pending := domain.PendingRewards(totalRate, lastClaim, now)
	if pending <= 0 {
		return 0, ErrNothingToClaim
	}

	if err := s.ledger.CreditByTypeTx(ctx, tx, userID, pending, domain.BalanceMining); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users SET last_claim_time = $2, total_mined = total_mined + $3 WHERE id = $1
	`, userID, now, pending); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	logger.Debug("mining claim", "user_id", userID, "amount", pending)
	return pending, nil
}
