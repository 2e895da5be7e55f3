package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	PortfolioName string
	DatabasePath  string
	HistoryDir    string
	JournalPath   string

	Tickers      []string
	StartingCash float64

	BandPeriod  int
	BandSD1     float64
	BandSD2     float64
	BandSD3     float64
	StockPct    float64 // percent of NAV allowed in one ticker's put exposure
	TimeValue   float64 // option time-value fraction of the underlying price
	PollDelay   int     // seconds between polling cycles
	OrderExpiry string  // default time-in-force for strategy orders: GTC or GFD

	LogLevel string
	Port     int
	DevMode  bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		PortfolioName: getEnv("PORTFOLIO_NAME", "wheel"),
		DatabasePath:  getEnv("DATABASE_PATH", "./data/trader.db"),
		HistoryDir:    getEnv("HISTORY_DIR", "./data/history"),
		JournalPath:   getEnv("JOURNAL_PATH", "./data/writes.journal"),
		Tickers:       getEnvAsList("WATCH_TICKERS", "AAPL,MSFT,GOOG"),
		StartingCash:  getEnvAsFloat("STARTING_CASH", 1000000),
		BandPeriod:    getEnvAsInt("BAND_PERIOD", 20),
		BandSD1:       getEnvAsFloat("BAND_SD1", 2.0),
		BandSD2:       getEnvAsFloat("BAND_SD2", 2.5),
		BandSD3:       getEnvAsFloat("BAND_SD3", 3.0),
		StockPct:      getEnvAsFloat("STOCK_PCT_OF_PORTFOLIO", 10),
		TimeValue:     getEnvAsFloat("OPTION_TIME_VALUE_PCT", 0.01),
		PollDelay:     getEnvAsInt("POLL_DELAY_SECONDS", 300),
		OrderExpiry:   getEnv("ORDER_TIF", "GTC"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Port:          getEnvAsInt("PORT", 8001),
		DevMode:       getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present and sane. Bad values
// here are programming or deployment errors and fail fast at startup.
func (c *Config) Validate() error {
	if c.PortfolioName == "" {
		return fmt.Errorf("PORTFOLIO_NAME is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if len(c.Tickers) == 0 {
		return fmt.Errorf("WATCH_TICKERS must list at least one ticker")
	}
	if c.StartingCash <= 0 {
		return fmt.Errorf("STARTING_CASH must be positive, got %v", c.StartingCash)
	}
	if c.BandPeriod <= 1 {
		return fmt.Errorf("BAND_PERIOD must be greater than 1, got %d", c.BandPeriod)
	}
	if c.StockPct <= 0 || c.StockPct > 100 {
		return fmt.Errorf("STOCK_PCT_OF_PORTFOLIO must be in (0, 100], got %v", c.StockPct)
	}
	if c.PollDelay <= 0 {
		return fmt.Errorf("POLL_DELAY_SECONDS must be positive, got %d", c.PollDelay)
	}
	if c.OrderExpiry != "GTC" && c.OrderExpiry != "GFD" {
		return fmt.Errorf("ORDER_TIF must be GTC or GFD, got %q", c.OrderExpiry)
	}
	return nil
}

// Helper functions
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

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.ToUpper(trimmed))
		}
	}
	return out
}
