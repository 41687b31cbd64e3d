package config

import (
	"os"
	"strconv"
	"strings"

	"skyton/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	BotToken    string
	BotUsername string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OxapayAPIKey      string
	OxapayPayoutKey   string
	OxapayBaseURL     string
	OxapayCallbackURL string
	OxapayReturnURL   string

	AdminTelegramIDs []int64

	// API limits
	APIRateLimit  int
	APIRateWindow int
}

// Load reads configuration from the environment. Required keys are fatal
// when missing; everything tunable at runtime lives in admin_settings, not
// here.
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		logger.Fatal("BOT_TOKEN is not set")
	}

	botUsername := os.Getenv("BOT_USERNAME")
	if botUsername == "" {
		botUsername = "SkyTONBot"
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	oxapayBase := os.Getenv("OXAPAY_BASE_URL")
	if oxapayBase == "" {
		oxapayBase = "https://api.oxapay.com"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	var adminIDs []int64
	if s := os.Getenv("ADMIN_TELEGRAM_IDS"); s != "" {
		for _, idStr := range strings.Split(s, ",") {
			idStr = strings.TrimSpace(idStr)
			if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
				adminIDs = append(adminIDs, id)
			}
		}
	}

	apiRateLimit := 30
	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			apiRateLimit = n
		}
	}

	apiRateWindow := 60
	if v := os.Getenv("API_RATE_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			apiRateWindow = n
		}
	}

	return &Config{
		AppPort:           port,
		DatabaseURL:       dbURL,
		BotToken:          botToken,
		BotUsername:       botUsername,
		JWTSecret:         jwtSecret,
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           redisDB,
		OxapayAPIKey:      os.Getenv("OXAPAY_API_KEY"),
		OxapayPayoutKey:   os.Getenv("OXAPAY_PAYOUT_KEY"),
		OxapayBaseURL:     oxapayBase,
		OxapayCallbackURL: os.Getenv("OXAPAY_CALLBACK_URL"),
		OxapayReturnURL:   os.Getenv("OXAPAY_RETURN_URL"),
		AdminTelegramIDs:  adminIDs,
		APIRateLimit:      apiRateLimit,
		APIRateWindow:     apiRateWindow,
	}
}
