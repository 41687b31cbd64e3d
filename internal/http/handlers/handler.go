package handlers

import (
	"skyton/internal/oxapay"
	"skyton/internal/repository"
	"skyton/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Handler bundles the services behind the API routes.
type Handler struct {
	DB       *pgxpool.Pool
	BotToken string

	UserRepo       *repository.UserRepository
	PurchaseRepo   *repository.PurchaseRepository
	WithdrawalRepo *repository.WithdrawalRepository

	Ledger    *service.LedgerService
	Mining    *service.MiningService
	Withdraw  *service.WithdrawService
	Referral  *service.ReferralService
	Rewards   *service.RewardsService
	Reconcile *service.ReconcileService
}

// HandlerDeps carries the external clients the services need.
type HandlerDeps struct {
	Redis       *redis.Client
	Pay         *oxapay.Client
	Notifier    service.Notifier
	CallbackURL string
	ReturnURL   string
}

func NewHandler(db *pgxpool.Pool, botToken string, deps HandlerDeps) *Handler {
	ledger := service.NewLedgerService(db)
	mining := service.NewMiningService(db, ledger, deps.Pay, deps.Notifier, deps.CallbackURL, deps.ReturnURL)

	return &Handler{
		DB:             db,
		BotToken:       botToken,
		UserRepo:       repository.NewUserRepository(db),
		PurchaseRepo:   repository.NewPurchaseRepository(db),
		WithdrawalRepo: repository.NewWithdrawalRepository(db),
		Ledger:         ledger,
		Mining:         mining,
		Withdraw:       service.NewWithdrawService(db, ledger, deps.Pay, deps.Notifier),
		Referral:       service.NewReferralService(db, ledger, deps.Notifier),
		Rewards:        service.NewRewardsService(db, deps.Redis, ledger),
		Reconcile:      service.NewReconcileService(db, ledger, mining, deps.Pay, deps.Notifier),
	}
}

// getUserID extracts the authenticated user ID set by the JWT middleware.
func getUserID(c interface{ Get(string) (any, bool) }) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
