package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/arduino-trader/internal/apperrors"
)

// TradingMode selects between the simulated and the live venue.
type TradingMode string

const (
	ModePaper TradingMode = "PAPER"
	ModeLive  TradingMode = "LIVE"
)

// Config holds application configuration, loaded once at startup.
type Config struct {
	// Server
	Port    int
	DevMode bool

	// Database
	DataDir string // holds market.db, control.db, paper_ledger.json, paper_ledger.replay

	// Trading mode
	TradingMode         TradingMode
	PaperInitialBalance float64

	// Exchange API (LIVE only; missing pair is fatal in LIVE)
	ExchangeAPIKey    string
	ExchangeAPISecret string

	// Watchlist: the symbols the fetch/scan jobs operate on.
	Symbols   []string
	Timeframe string

	// Trading parameters
	MaxPositionSize float64
	KellyFraction   float64
	TakeProfitMin   float64
	TakeProfitMax   float64
	StopLossPercent float64
	PanicThreshold  float64

	// ML
	MLModelPath   string
	MLThreshold   float64

	// Control surface / persistence
	ControlSurfaceTimeout time.Duration
	NetworkTimeout        time.Duration

	// On-chain refresh cadence
	OnchainRefreshEnabled bool
	OnchainRefreshEvery   time.Duration

	// Logging
	LogLevel string

	// Timezone is loaded from TZ but not read anywhere; the scheduler
	// always runs on UTC.
	Timezone string

	// Chat platform (operator webhook + push transport)
	WebhookSecret string
	ChatPushURL   string
	OperatorID    string
}

// Load reads configuration from environment variables, applying the
// same default-then-override pattern as the teacher's getEnv helpers.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:    getEnvAsInt("PORT", 8080),
		DevMode: getEnvAsBool("DEV_MODE", false),

		DataDir: getEnv("DATA_DIR", "./data"),

		Symbols:   strings.Split(getEnv("WATCHLIST", "BTC/USDT,ETH/USDT"), ","),
		Timeframe: getEnv("TIMEFRAME", "1h"),

		TradingMode:         TradingMode(strings.ToUpper(getEnv("TRADING_MODE", "PAPER"))),
		PaperInitialBalance: getEnvAsFloat("PAPER_INITIAL_BALANCE", 10000.0),

		ExchangeAPIKey:    getEnv("EXCHANGE_API_KEY", ""),
		ExchangeAPISecret: getEnv("EXCHANGE_API_SECRET", ""),

		MaxPositionSize: getEnvAsFloat("MAX_POSITION_SIZE", 0.3),
		KellyFraction:   getEnvAsFloat("KELLY_FRACTION", 0.25),
		TakeProfitMin:   getEnvAsFloat("TAKE_PROFIT_MIN", 0.10),
		TakeProfitMax:   getEnvAsFloat("TAKE_PROFIT_MAX", 0.20),
		StopLossPercent: getEnvAsFloat("STOP_LOSS_PERCENT", 0.05),
		PanicThreshold:  getEnvAsFloat("PANIC_THRESHOLD", 0.85),

		MLModelPath: getEnv("ML_MODEL_PATH", "./data/models/signal_filter.gob"),
		MLThreshold: getEnvAsFloat("ML_THRESHOLD", 0.6),

		ControlSurfaceTimeout: getEnvAsDuration("CONTROL_SURFACE_TIMEOUT", 5*time.Second),
		NetworkTimeout:        getEnvAsDuration("NETWORK_TIMEOUT", 30*time.Second),

		OnchainRefreshEnabled: getEnvAsBool("ONCHAIN_REFRESH_ENABLED", false),
		OnchainRefreshEvery:   getEnvAsDuration("ONCHAIN_REFRESH_EVERY", 4*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TZ", "UTC"),

		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		ChatPushURL:   getEnv("CHAT_PUSH_URL", ""),
		OperatorID:    getEnv("OPERATOR_ID", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces the fatal-at-startup rules of spec.md §6/§7:
// an invalid TRADING_MODE or missing LIVE credentials are fatal.
func (c *Config) Validate() error {
	if c.TradingMode != ModePaper && c.TradingMode != ModeLive {
		return &apperrors.ConfigurationError{
			Field:  "TRADING_MODE",
			Reason: "must be PAPER or LIVE, got " + string(c.TradingMode),
		}
	}

	if c.TradingMode == ModeLive {
		if c.ExchangeAPIKey == "" || c.ExchangeAPISecret == "" {
			return &apperrors.ConfigurationError{
				Field:  "EXCHANGE_API_KEY/EXCHANGE_API_SECRET",
				Reason: "required in LIVE mode",
			}
		}
	}

	if c.DataDir == "" {
		return &apperrors.ConfigurationError{Field: "DATA_DIR", Reason: "must not be empty"}
	}

	return nil
}

// IsPaperMode reports whether the bot runs against the simulated venue.
func (c *Config) IsPaperMode() bool { return c.TradingMode == ModePaper }

// IsLiveMode reports whether the bot runs against the live venue.
func (c *Config) IsLiveMode() bool { return c.TradingMode == ModeLive }

// Helper functions, same shape as the teacher's getEnv/getEnvAsInt/getEnvAsBool.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
