package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"main/pkg/exception"

	"github.com/joho/godotenv"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Config is everything the bot reads from the environment.
type Config struct {
	AccountAddress string
	PrivateKey     string
	UseTestnet     bool

	Strategy string
	Coins    []string

	RequestsPerSecond float64
	BurstLimit        int
	BackoffFactor     float64
	MaxBackoff        time.Duration

	LoopInterval time.Duration
	EnableStream bool
	MetricsAddr  string
	PyroscopeURL string
	DatabaseDSN  string
	ParamsFile   string
}

// Load reads .env when present and builds the configuration from the
// environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logs.Debugf("no .env file loaded: %v", err)
	}

	return Config{
		AccountAddress: os.Getenv("HYPERLIQUID_ACCOUNT_ADDRESS"),
		PrivateKey:     os.Getenv("HYPERLIQUID_PRIVATE_KEY"),
		UseTestnet:     envBool("USE_TESTNET", true),

		Strategy: envString("STRATEGY", "simple_ma"),
		Coins:    envList("COINS", []string{"BTC", "ETH", "SOL"}),

		RequestsPerSecond: envFloat("REQUESTS_PER_SECOND", 2.0),
		BurstLimit:        envInt("BURST_LIMIT", 5),
		BackoffFactor:     envFloat("BACKOFF_FACTOR", 2.0),
		MaxBackoff:        envDuration("MAX_BACKOFF_SECONDS", 60*time.Second),

		LoopInterval: envDuration("LOOP_INTERVAL_SECONDS", 10*time.Second),
		EnableStream: envBool("ENABLE_MARKET_STREAM", false),
		MetricsAddr:  os.Getenv("METRICS_ADDR"),
		PyroscopeURL: os.Getenv("PYROSCOPE_URL"),
		DatabaseDSN:  os.Getenv("DATABASE_DSN"),
		ParamsFile:   os.Getenv("STRATEGY_PARAMS_FILE"),
	}
}

// Validate rejects configurations the bot cannot trade with.
func (c Config) Validate() error {
	if c.AccountAddress == "" {
		return exception.ErrConfigMissingAccount
	}
	if c.PrivateKey == "" {
		return exception.ErrConfigMissingKey
	}
	if len(c.Coins) == 0 {
		return exception.ErrConfigNoSymbols
	}
	if c.RequestsPerSecond <= 0 {
		return errors.Wrap(exception.ErrConfigParamOutOfRange, "REQUESTS_PER_SECOND must be > 0")
	}
	if c.LoopInterval <= 0 {
		return errors.Wrap(exception.ErrConfigParamOutOfRange, "LOOP_INTERVAL_SECONDS must be > 0")
	}
	return nil
}

// APIURL returns the REST endpoint for the selected network.
func (c Config) APIURL() string {
	if c.UseTestnet {
		return "https://api.hyperliquid-testnet.xyz"
	}
	return "https://api.hyperliquid.xyz"
}

// WsURL returns the websocket endpoint for the selected network.
func (c Config) WsURL() string {
	if c.UseTestnet {
		return "wss://api.hyperliquid-testnet.xyz/ws"
	}
	return "wss://api.hyperliquid.xyz/ws"
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logs.Warnf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logs.Warnf("invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logs.Warnf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
