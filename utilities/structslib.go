package utilities

import (
	"log"
)

// Colors.
const (
	ColorCyan   = "\033[96m" // For Buy signals
	ColorRed    = "\033[91m" // For Sell signals
	ColorReset  = "\033[0m"
	ColorWhite  = "\033[97m" // For Hold signals
	ColorYellow = "\033[93m" // For asset pairs
)

// Logging Level
const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

// --- Types (Alphabetized) ---

// AppConfig is the root configuration structure, holding all other config sections.
type AppConfig struct {
	AppName  string         `mapstructure:"app_name"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	DB       DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	State    StateConfig    `mapstructure:"state"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Version  string         `mapstructure:"version"`
}

// BinanceConfig holds all settings for the Binance exchange integration.
type BinanceConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	APISecret         string  `mapstructure:"api_secret"`
	BaseURL           string  `mapstructure:"base_url"`
	RateBurst         int     `mapstructure:"rate_burst"`
	RateLimitPerSec   float64 `mapstructure:"rate_limit_per_sec"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_sec"`
}

// DatabaseConfig holds settings for database connections.
type DatabaseConfig struct {
	DBPath string `mapstructure:"database_path"`
}

// Logger provides a structured logger with different levels.
type Logger struct {
	Level  LogLevel
	Logger *log.Logger
}

// LoggingConfig holds settings related to logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// LogLevel defines the severity of a log message.
type LogLevel int

// StateConfig holds settings for the persisted trade-state record.
type StateConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// TelegramConfig holds settings for the Telegram control channel.
// An empty token disables notifications and remote commands entirely.
type TelegramConfig struct {
	ChatID         int64  `mapstructure:"chat_id"`
	PollTimeoutSec int    `mapstructure:"poll_timeout_sec"`
	Token          string `mapstructure:"token"`
}

// TradingConfig holds general trading parameters.
type TradingConfig struct {
	AdaptiveClearance bool    `mapstructure:"adaptive_clearance"`
	BaseAsset         string  `mapstructure:"base_asset"`
	BuyClearance      float64 `mapstructure:"buy_clearance"`
	DepthLevels       int     `mapstructure:"depth_levels"`
	DryRun            bool    `mapstructure:"dry_run"`
	FixedNotional     float64 `mapstructure:"fixed_notional"`
	LiquidityBuffer   float64 `mapstructure:"liquidity_buffer"`
	MaxHeldVolume     float64 `mapstructure:"max_held_volume"`
	QuantityPrecision int32   `mapstructure:"quantity_precision"`
	QuoteAsset        string  `mapstructure:"quote_asset"`
	SellClearance     float64 `mapstructure:"sell_clearance"`
	TickIntervalSec   int     `mapstructure:"tick_interval_sec"`
}
