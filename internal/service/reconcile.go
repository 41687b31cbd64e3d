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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrCallbackUnmatched means no local record matched any correlation key.
	// The handler maps it to 404 so the provider retries later; the record may
	// simply not be committed yet.
	ErrCallbackUnmatched = errors.New("callback matched no local record")

	ErrPurchaseNotFound = errors.New("purchase not found")
)

// ReconcileResult tells the HTTP handler what happened so it can pick a
// response status. Applied is false for duplicate deliveries that found the
// record already terminal; those are acknowledged, not retried.
type ReconcileResult struct {
	Kind    string `json:"kind"`
	Outcome string `json:"outcome"`
	Applied bool   `json:"applied"`
	Record  string `json:"record,omitempty"`
}

// ReconcileService applies provider callbacks to purchases and withdrawals.
// Deliveries are at-least-once and unordered, so every transition is a
// single guarded statement and side effects run only when the transition
// actually happened.
type ReconcileService struct {
	db        *pgxpool.Pool
	ledger    *LedgerService
	mining    *MiningService
	purchases *repository.PurchaseRepository
	settings  *repository.SettingsRepository
	pay       *oxapay.Client
	notifier  Notifier
}

func NewReconcileService(db *pgxpool.Pool, ledger *LedgerService, mining *MiningService, pay *oxapay.Client, notifier Notifier) *ReconcileService {
	return &ReconcileService{
		db:        db,
		ledger:    ledger,
		mining:    mining,
		purchases: repository.NewPurchaseRepository(db),
		settings:  repository.NewSettingsRepository(db),
		pay:       pay,
		notifier:  notifier,
	}
}

// CheckPurchase polls the provider for one order and applies the result
// through the same guarded path the webhook uses, so a poll and a webhook
// observing the same completion cannot both grant the card. Terminal records
// are reported without touching the provider.
func (s *ReconcileService) CheckPurchase(ctx context.Context, userID int64, orderID string) (*domain.Purchase, *ReconcileResult, error) {
	p, err := s.purchases.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil || p.UserID != userID {
		return nil, nil, ErrPurchaseNotFound
	}

	if p.Status.Terminal() || p.TrackID == "" {
		return p, &ReconcileResult{
			Kind:    oxapay.CallbackPayment,
			Outcome: string(p.Status),
			Record:  p.OrderID,
		}, nil
	}

	payment, err := s.pay.GetPaymentStatus(ctx, p.TrackID)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.HandleCallback(ctx, &oxapay.Callback{
		Status:  payment.Status,
		OrderID: p.OrderID,
		TxHash:  payment.TxHash,
	})
	if err != nil {
		return nil, nil, err
	}

	p, err = s.purchases.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return p, result, nil
}

// HandleCallback correlates the callback to a local record and applies the
// status transition atomically. The callback's keys are tried in order
// against the table its kind suggests first, then the other table, because
// the provider does not reliably label payout callbacks.
func (s *ReconcileService) HandleCallback(ctx context.Context, cb *oxapay.Callback) (*ReconcileResult, error) {
	keys := cb.CorrelationKeys()
	if len(keys) == 0 {
		return nil, ErrCallbackUnmatched
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(cb)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var purchase *domain.Purchase
	var withdrawal *domain.Withdrawal

	lookups := []func(string) error{
		func(key string) error {
			p, err := repository.FindPurchaseByCorrelationTx(ctx, tx, key)
			purchase = p
			return err
		},
		func(key string) error {
			w, err := repository.FindWithdrawalByCorrelationTx(ctx, tx, key)
			withdrawal = w
			return err
		},
	}
	if cb.Kind() == oxapay.CallbackPayout {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}
	for _, lookup := range lookups {
		for _, key := range keys {
			if err := lookup(key); err != nil {
				return nil, err
			}
			if purchase != nil || withdrawal != nil {
				break
			}
		}
		if purchase != nil || withdrawal != nil {
			break
		}
	}

	var result *ReconcileResult
	switch {
	case purchase != nil:
		result, err = s.applyToPurchase(ctx, tx, purchase, cb, cfg, raw)
	case withdrawal != nil:
		result, err = s.applyToWithdrawal(ctx, tx, withdrawal, cb)
	default:
		return nil, ErrCallbackUnmatched
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.notify(purchase, withdrawal, result)
	return result, nil
}

func (s *ReconcileService) applyToPurchase(ctx context.Context, tx pgx.Tx, p *domain.Purchase, cb *oxapay.Callback, cfg *domain.Settings, raw []byte) (*ReconcileResult, error) {
	result := &ReconcileResult{
		Kind:    oxapay.CallbackPayment,
		Outcome: cb.Outcome(),
		Record:  p.OrderID,
	}

	switch cb.Outcome() {
	case oxapay.OutcomeCompleted:
		applied, err := repository.SettlePurchaseTx(ctx, tx, p.ID, domain.PurchaseCompleted, raw)
		if err != nil {
			return nil, err
		}
		result.Applied = applied
		if applied {
			if _, err := s.mining.ActivateCardTx(ctx, tx, p, cfg); err != nil {
				return nil, err
			}
		}
	case oxapay.OutcomeFailed:
		applied, err := repository.SettlePurchaseTx(ctx, tx, p.ID, domain.PurchaseFailed, raw)
		if err != nil {
			return nil, err
		}
		result.Applied = applied
	case oxapay.OutcomeProcessing:
		if err := repository.MarkPurchaseProcessingTx(ctx, tx, p.ID, raw); err != nil {
			return nil, err
		}
		result.Applied = true
	default:
		logger.Warn("webhook with unknown payment status acknowledged",
			"order_id", p.OrderID, "status", cb.Status)
	}
	return result, nil
}

func (s *ReconcileService) applyToWithdrawal(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal, cb *oxapay.Callback) (*ReconcileResult, error) {
	result := &ReconcileResult{
		Kind:    oxapay.CallbackPayout,
		Outcome: cb.Outcome(),
		Record:  w.OrderID,
	}

	switch cb.Outcome() {
	case oxapay.OutcomeCompleted:
		applied, err := repository.SettleWithdrawalTx(ctx, tx, w.ID, domain.WithdrawalCompleted)
		if err != nil {
			return nil, err
		}
		result.Applied = applied
	case oxapay.OutcomeFailed:
		applied, err := repository.SettleWithdrawalTx(ctx, tx, w.ID, domain.WithdrawalFailed)
		if err != nil {
			return nil, err
		}
		result.Applied = applied
		// A failed delivery for an already-terminal record must not reach the
		// refund guard. A completed withdrawal stays paid out no matter what
		// arrives afterwards; the route is unauthenticated and a late or
		// forged failure must be a pure no-op.
		if !applied {
			return result, nil
		}
		flipped, err := repository.MarkRefundedTx(ctx, tx, w.ID)
		if err != nil {
			return nil, err
		}
		// The refund guard decides whether money moves. A record the saga
		// already refunded settles without credit.
		if flipped {
			if err := s.ledger.LockUserTx(ctx, tx, w.UserID); err != nil {
				return nil, err
			}
			mix := w.DebitBreakdown
			if mixSum(mix) != w.AmountSton {
				mix = map[domain.BalanceType]int64{domain.BalanceTask: w.AmountSton}
			}
			if err := s.ledger.CreditMixTx(ctx, tx, w.UserID, mix); err != nil {
				return nil, err
			}
		}
	case oxapay.OutcomeProcessing:
		if _, err := tx.Exec(ctx, `
			UPDATE withdrawals SET status = 'processing', updated_at = NOW()
			WHERE id = $1 AND status NOT IN ('completed', 'failed')
		`, w.ID); err != nil {
			return nil, err
		}
		result.Applied = true
	default:
		logger.Warn("webhook with unknown payout status acknowledged",
			"order_id", w.OrderID, "status", cb.Status)
	}
	return result, nil
}

func (s *ReconcileService) notify(p *domain.Purchase, w *domain.Withdrawal, result *ReconcileResult) {
	if s.notifier == nil || !result.Applied {
		return
	}
	switch {
	case p != nil && result.Outcome == oxapay.OutcomeCompleted:
		s.notifier.NotifyUser(p.UserID, "Your mining card payment was confirmed. Happy mining!")
		s.notifier.NotifyAdmins(fmt.Sprintf("Crypto purchase completed: user %d, order %s", p.UserID, p.OrderID))
	case p != nil && result.Outcome == oxapay.OutcomeFailed:
		s.notifier.NotifyUser(p.UserID, "Your mining card payment failed or expired. No funds were taken from your balance.")
	case w != nil && result.Outcome == oxapay.OutcomeCompleted:
		s.notifier.NotifyUser(w.UserID, fmt.Sprintf("Your withdrawal of %d STON was sent.", w.AmountSton))
	case w != nil && result.Outcome == oxapay.OutcomeFailed:
		s.notifier.NotifyUser(w.UserID, fmt.Sprintf("Your withdrawal of %d STON failed and was refunded to your balance.", w.AmountSton))
		s.notifier.NotifyAdmins(fmt.Sprintf("Withdrawal failed and refunded: user %d, order %s", w.UserID, w.OrderID))
	}
}

func mixSum(mix map[domain.BalanceType]int64) int64 {
	var total int64
	for _, v := range mix {
		total += v
	}
	return total
}
