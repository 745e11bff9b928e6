// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        // e.g. "8080"
	Env            string        // "development" | "production"
	ReadTimeout    time.Duration // default 10s
	WriteTimeout   time.Duration // default 10s
	AllowedOrigins []string      // CORS + WS origins; empty = allow all
}

// DBConfig holds PostgreSQL connection settings.  An empty DSN disables
// persistence entirely (dev mode: the engine runs purely in memory).
type DBConfig struct {
	DSN             string
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// Enabled reports whether a database is configured.
func (c DBConfig) Enabled() bool { return c.DSN != "" }

// JWTConfig holds session-token signing settings.
type JWTConfig struct {
	Secret     string        // must be set
	SessionTTL time.Duration // default 12h
}

// PriceConfig holds price feed settings.
type PriceConfig struct {
	Mode          string        // "live" | "synthetic"
	BinanceURL    string        // default "https://api.binance.com"
	BybitURL      string        // default "https://api.bybit.com"
	OKXURL        string        // default "https://www.okx.com"
	FetchTimeout  time.Duration // default 2s
	SyntheticSeed int64         // seed for the synthetic walk, default 1
	// Weight percentages (must sum to 100)
	BinanceWeight int // default 50
	BybitWeight   int // default 30
	OKXWeight     int // default 20
}

// EngineConfig holds the trading engine settings: the instrument set, the
// risk-mode table, the leverage bound, and the tick cadence.
type EngineConfig struct {
	StartingBalance   float64            // demo account opening balance
	Markets           []string           // e.g. ["BTC-USD","ETH-USD","SOL-USD"]
	RiskModes         map[string]float64 // mode name → leverage
	LeverageMin       float64            // inclusive lower bound
	LeverageMax       float64            // inclusive upper bound
	HistoryDepth      int                // most-recent-N price points kept per symbol
	ClosedKeep        int                // most-recent-N settled positions kept for display
	TickInterval      time.Duration      // revaluation cadence
	BroadcastInterval time.Duration      // WS price push cadence
	SnapshotInterval  time.Duration      // persistence cadence
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Price  PriceConfig
	Engine EngineConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}

	switch c.Price.Mode {
	case "live", "synthetic":
	default:
		errs = append(errs, fmt.Errorf("PRICE_FEED_MODE must be live or synthetic, got %q", c.Price.Mode))
	}

	total := c.Price.BinanceWeight + c.Price.BybitWeight + c.Price.OKXWeight
	if total != 100 {
		errs = append(errs, fmt.Errorf(
			"price weights must sum to 100, got %d (Binance=%d Bybit=%d OKX=%d)",
			total, c.Price.BinanceWeight, c.Price.BybitWeight, c.Price.OKXWeight,
		))
	}

	if c.Engine.StartingBalance <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_STARTING_BALANCE must be positive, got %.4f", c.Engine.StartingBalance))
	}
	if len(c.Engine.Markets) == 0 {
		errs = append(errs, errors.New("ENGINE_MARKETS must list at least one market"))
	}
	if c.Engine.LeverageMin <= 0 || c.Engine.LeverageMax < c.Engine.LeverageMin {
		errs = append(errs, fmt.Errorf(
			"leverage range must satisfy 0 < min ≤ max, got [%.2f, %.2f]",
			c.Engine.LeverageMin, c.Engine.LeverageMax,
		))
	}
	if len(c.Engine.RiskModes) == 0 {
		errs = append(errs, errors.New("ENGINE_RISK_MODES must define at least one mode"))
	}
	for name, lev := range c.Engine.RiskModes {
		if lev < c.Engine.LeverageMin || lev > c.Engine.LeverageMax {
			errs = append(errs, fmt.Errorf(
				"risk mode %q leverage %.2f is outside the configured range [%.2f, %.2f]",
				name, lev, c.Engine.LeverageMin, c.Engine.LeverageMax,
			))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins: splitCSV(getEnv("SERVER_ALLOWED_ORIGINS", "")),
	}

	// ── Database (optional) ───────────────────────────────────────────────────
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.DB = DBConfig{
		DSN:             getEnv("DATABASE_DSN", ""),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		Secret:     getEnv("JWT_SECRET", ""),
		SessionTTL: getDuration("JWT_SESSION_TTL", 12*time.Hour),
	}

	// ── Price feed ────────────────────────────────────────────────────────────
	binW, err := getInt("PRICE_BINANCE_WEIGHT", 50)
	if err != nil {
		return nil, fmt.Errorf("PRICE_BINANCE_WEIGHT: %w", err)
	}
	byW, err := getInt("PRICE_BYBIT_WEIGHT", 30)
	if err != nil {
		return nil, fmt.Errorf("PRICE_BYBIT_WEIGHT: %w", err)
	}
	okxW, err := getInt("PRICE_OKX_WEIGHT", 20)
	if err != nil {
		return nil, fmt.Errorf("PRICE_OKX_WEIGHT: %w", err)
	}
	seed, err := getInt("PRICE_SYNTHETIC_SEED", 1)
	if err != nil {
		return nil, fmt.Errorf("PRICE_SYNTHETIC_SEED: %w", err)
	}

	cfg.Price = PriceConfig{
		Mode:          getEnv("PRICE_FEED_MODE", "live"),
		BinanceURL:    getEnv("PRICE_BINANCE_URL", "https://api.binance.com"),
		BybitURL:      getEnv("PRICE_BYBIT_URL", "https://api.bybit.com"),
		OKXURL:        getEnv("PRICE_OKX_URL", "https://www.okx.com"),
		FetchTimeout:  getDuration("PRICE_FETCH_TIMEOUT", 2*time.Second),
		SyntheticSeed: int64(seed),
		BinanceWeight: binW,
		BybitWeight:   byW,
		OKXWeight:     okxW,
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	startBal, err := getFloat("ENGINE_STARTING_BALANCE", 10000)
	if err != nil {
		return nil, fmt.Errorf("ENGINE_STARTING_BALANCE: %w", err)
	}
	levMin, err := getFloat("ENGINE_LEVERAGE_MIN", 1)
	if err != nil {
		return nil, fmt.Errorf("ENGINE_LEVERAGE_MIN: %w", err)
	}
	levMax, err := getFloat("ENGINE_LEVERAGE_MAX", 200)
	if err != nil {
		return nil, fmt.Errorf("ENGINE_LEVERAGE_MAX: %w", err)
	}
	histDepth, err := getInt("ENGINE_HISTORY_DEPTH", 300)
	if err != nil {
		return nil, fmt.Errorf("ENGINE_HISTORY_DEPTH: %w", err)
	}
	closedKeep, err := getInt("ENGINE_CLOSED_KEEP", 100)
	if err != nil {
		return nil, fmt.Errorf("ENGINE_CLOSED_KEEP: %w", err)
	}
	riskModes, err := parseRiskModes(getEnv("ENGINE_RISK_MODES", "conservative:5,balanced:25,aggressive:100"))
	if err != nil {
		return nil, fmt.Errorf("ENGINE_RISK_MODES: %w", err)
	}

	cfg.Engine = EngineConfig{
		StartingBalance:   startBal,
		Markets:           splitCSV(getEnv("ENGINE_MARKETS", "BTC-USD,ETH-USD,SOL-USD")),
		RiskModes:         riskModes,
		LeverageMin:       levMin,
		LeverageMax:       levMax,
		HistoryDepth:      histDepth,
		ClosedKeep:        closedKeep,
		TickInterval:      getDuration("ENGINE_TICK_INTERVAL", 1*time.Second),
		BroadcastInterval: getDuration("ENGINE_BROADCAST_INTERVAL", 1*time.Second),
		SnapshotInterval:  getDuration("ENGINE_SNAPSHOT_INTERVAL", 30*time.Second),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

// parseRiskModes parses "conservative:5,balanced:25,aggressive:100" into a
// mode → leverage table.
func parseRiskModes(raw string) (map[string]float64, error) {
	modes := make(map[string]float64)
	for _, pair := range splitCSV(raw) {
		name, levStr, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid entry %q, want name:leverage", pair)
		}
		lev, err := strconv.ParseFloat(strings.TrimSpace(levStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid leverage in %q", pair)
		}
		modes[strings.TrimSpace(name)] = lev
	}
	return modes, nil
}

// splitCSV splits a comma-separated value, trimming whitespace and dropping
// empty entries.  Returns nil for an empty input.
func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
