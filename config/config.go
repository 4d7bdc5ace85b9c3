// Package config loads application configuration from an optional JSON
// file with environment variable overrides. Environment values always win.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Engine   EngineConfig   `json:"engine"`
	Risk     RiskConfig     `json:"risk"`
	Binance  BinanceConfig  `json:"binance"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
}

// EngineConfig drives the trading loop.
type EngineConfig struct {
	Instruments  []string      `json:"instruments"`
	Interval     time.Duration `json:"interval"`
	BaseCurrency string        `json:"base_currency"`
	AutoStart    bool          `json:"auto_start"`
}

type RiskConfig struct {
	MaxRiskPerTrade float64 `json:"max_risk_per_trade"` // fraction of balance, e.g. 0.02
	MaxOpenTrades   int     `json:"max_open_trades"`
	Leverage        float64 `json:"leverage"`
}

type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	TestNet   bool   `json:"testnet"`
	MockMode  bool   `json:"mock_mode"` // simulated gateway, no venue calls
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"` // falls back to in-memory storage when off
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ProductionMode bool     `json:"production_mode"`
	AllowOrigins   []string `json:"allow_origins"`
}

type LoggingConfig struct {
	Level      string `json:"level"` // debug, info, warn, error
	JSONFormat bool   `json:"json_format"`
}

// Load reads config.json when present and applies environment overrides.
func Load() (*Config, error) {
	return LoadFile("config.json")
}

// LoadFile reads the named JSON file when present and applies environment
// overrides. A missing file is not an error; a malformed one is.
func LoadFile(filename string) (*Config, error) {
	cfg := &Config{}
	if data, err := os.ReadFile(filename); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", filename, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", filename, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("ENGINE_INSTRUMENTS"); raw != "" {
		cfg.Engine.Instruments = splitList(raw)
	}
	cfg.Engine.Interval = getEnvDurationOrDefault("ENGINE_INTERVAL", cfg.Engine.Interval)
	cfg.Engine.BaseCurrency = getEnvOrDefault("ENGINE_BASE_CURRENCY", cfg.Engine.BaseCurrency)
	cfg.Engine.AutoStart = getEnvBoolOrDefault("ENGINE_AUTO_START", cfg.Engine.AutoStart)

	cfg.Risk.MaxRiskPerTrade = getEnvFloatOrDefault("RISK_MAX_PER_TRADE", cfg.Risk.MaxRiskPerTrade)
	cfg.Risk.MaxOpenTrades = getEnvIntOrDefault("RISK_MAX_OPEN_TRADES", cfg.Risk.MaxOpenTrades)
	cfg.Risk.Leverage = getEnvFloatOrDefault("RISK_LEVERAGE", cfg.Risk.Leverage)

	cfg.Binance.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.Binance.APIKey)
	cfg.Binance.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.Binance.SecretKey)
	cfg.Binance.TestNet = getEnvBoolOrDefault("BINANCE_TESTNET", cfg.Binance.TestNet)
	cfg.Binance.MockMode = getEnvBoolOrDefault("MOCK_MODE", cfg.Binance.MockMode)

	cfg.Database.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnvOrDefault("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)

	cfg.Server.Host = getEnvOrDefault("WEB_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvIntOrDefault("WEB_PORT", cfg.Server.Port)
	cfg.Server.ProductionMode = getEnvBoolOrDefault("PRODUCTION_MODE", cfg.Server.ProductionMode)
	if raw := os.Getenv("SERVER_ALLOW_ORIGINS"); raw != "" {
		cfg.Server.AllowOrigins = splitList(raw)
	}

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.Logging.JSONFormat)
}

func applyDefaults(cfg *Config) {
	if len(cfg.Engine.Instruments) == 0 {
		cfg.Engine.Instruments = []string{"BTCUSDT"}
	}
	if cfg.Engine.Interval <= 0 {
		cfg.Engine.Interval = 5 * time.Minute
	}
	if cfg.Engine.BaseCurrency == "" {
		cfg.Engine.BaseCurrency = "USDT"
	}

	if cfg.Risk.MaxRiskPerTrade <= 0 {
		cfg.Risk.MaxRiskPerTrade = 0.02
	}
	if cfg.Risk.MaxOpenTrades <= 0 {
		cfg.Risk.MaxOpenTrades = 5
	}
	if cfg.Risk.Leverage <= 0 {
		cfg.Risk.Leverage = 10
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "trading_bot"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = "localhost:6379"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(value, "true") || value == "1"
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
