package http

import (
	"time"

	"skyton/internal/config"
	"skyton/internal/http/handlers"
	"skyton/internal/http/middleware"
	"skyton/internal/oxapay"
	"skyton/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RegisterRoutes wires the full API surface. The webhook route skips JWT and
// the per-IP rate limiter: the provider retries on anything but 2xx and must
// never be throttled into dropping a settlement.
func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, cfg *config.Config, rdb *redis.Client, notifier service.Notifier, version string) {
	pay := oxapay.NewClient(cfg.OxapayBaseURL, cfg.OxapayAPIKey, cfg.OxapayPayoutKey)

	h := handlers.NewHandler(db, cfg.BotToken, handlers.HandlerDeps{
		Redis:       rdb,
		Pay:         pay,
		Notifier:    notifier,
		CallbackURL: cfg.OxapayCallbackURL,
		ReturnURL:   cfg.OxapayReturnURL,
	})
	healthHandler := handlers.NewHealthHandler(db, version)
	referralHandler := handlers.NewReferralHandler(h.Referral, cfg.BotUsername)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	apiRateWindow := time.Duration(cfg.APIRateWindow) * time.Second

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(cfg.APIRateLimit, apiRateWindow))

	// Provider callbacks, no auth
	v1.POST("/oxapay/webhook", h.OxapayWebhook)

	// Auth, tighter window than the rest of the API
	v1.POST("/auth", middleware.RedisRateLimit(5, time.Minute), h.Auth)

	// User profile
	v1.GET("/me", middleware.JWT(), h.Me)
	v1.GET("/leaderboard", h.Leaderboard)

	// Tasks
	v1.POST("/tasks/:id/complete", middleware.JWT(), h.CompleteTask)

	// Mining cards
	mining := v1.Group("/mining")
	{
		mining.POST("/purchase", middleware.JWT(), h.PurchaseCard)
		mining.POST("/purchase/crypto", middleware.JWT(), h.PurchaseCardCrypto)
		mining.GET("/stats", middleware.JWT(), h.MiningStats)
		mining.POST("/claim", middleware.JWT(), h.ClaimMining)
		mining.GET("/live", h.MiningLive)
	}

	// Wallet and payouts
	v1.POST("/wallet", middleware.JWT(), h.BindWallet)
	v1.POST("/withdraw", middleware.JWT(), h.RequestWithdrawal)
	v1.GET("/withdrawals", middleware.JWT(), h.WithdrawalHistory)
	v1.GET("/purchases", middleware.JWT(), h.PurchaseHistory)
	v1.GET("/purchases/:order_id/status", middleware.JWT(), h.PurchaseStatus)

	// Referral system
	referral := v1.Group("/referral")
	referral.Use(middleware.JWT())
	{
		referral.GET("/link", referralHandler.GetReferralLink)
		referral.GET("/stats", referralHandler.GetReferralStats)
		referral.POST("/apply", referralHandler.ApplyReferral)
	}

	// Boxes, spins and ad rewards
	v1.POST("/box/open", middleware.JWT(), h.OpenBox)
	v1.POST("/spin", middleware.JWT(), h.Spin)
	v1.POST("/ads/energy", middleware.JWT(), h.ClaimEnergyAd)
	v1.POST("/ads/box", middleware.JWT(), h.ClaimBoxAd)
}
