package domain

import (
	"fmt"
	"math"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backing-service selection
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Scoring weights and thresholds
	Scoring ScoringConfig `json:"scoring"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-process cache and bus.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS.
	TierPro Tier = "pro"
)

// ScoringConfig holds category weights and calculator thresholds.
// Weights must sum to 1.0; Validate enforces this at configuration load.
type ScoringConfig struct {
	Weights    map[Category]float64 `json:"weights"`
	Thresholds Thresholds           `json:"thresholds"`
}

// Thresholds holds the tunable limits the category calculators and the
// real-time monitor evaluate signals against.
type Thresholds struct {
	// Void
	VoidRate      float64 `json:"voidRate"`      // fraction of transactions
	HighValueVoid float64 `json:"highValueVoid"` // currency units
	LateVoidMin   float64 `json:"lateVoidMin"`   // minutes since order

	// Discount
	DiscountRate     float64 `json:"discountRate"`     // fraction of transactions
	LargeDiscountPct float64 `json:"largeDiscountPct"` // percent of ticket

	// Cash handling
	CashVariance  float64 `json:"cashVariance"`  // currency units
	SmallShortage float64 `json:"smallShortage"` // currency units
	NoSaleLimit   int     `json:"noSaleLimit"`   // opens per period

	// Refund
	RefundRate float64 `json:"refundRate"` // fraction of transactions

	// Time fraud
	OvertimeHours     float64 `json:"overtimeHours"`
	ManualCorrections int     `json:"manualCorrections"`

	// Manager override
	OverridesPerWeek float64 `json:"overridesPerWeek"`

	// Venue operating hours, local clock. Signals outside [Open, Close)
	// count as off-hours activity.
	OpenHour  int `json:"openHour"`
	CloseHour int `json:"closeHour"`
}

// weightTolerance bounds floating-point drift in the convexity check.
const weightTolerance = 1e-6

// DefaultScoringConfig returns the shipped weights and thresholds.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: map[Category]float64{
			CategoryVoid:     0.20,
			CategoryDiscount: 0.15,
			CategoryCash:     0.25,
			CategoryRefund:   0.10,
			CategoryTime:     0.10,
			CategoryPattern:  0.10,
			CategoryOverride: 0.10,
		},
		Thresholds: Thresholds{
			VoidRate:          0.05,
			HighValueVoid:     50,
			LateVoidMin:       30,
			DiscountRate:      0.15,
			LargeDiscountPct:  50,
			CashVariance:      50,
			SmallShortage:     20,
			NoSaleLimit:       10,
			RefundRate:        0.03,
			OvertimeHours:     20,
			ManualCorrections: 5,
			OverridesPerWeek:  10,
			OpenHour:          10,
			CloseHour:         23,
		},
	}
}

// Validate enforces the convexity invariant and threshold domains.
// A failure here is fatal: the engine must not start on a configuration
// that would silently produce out-of-range indexes.
func (c ScoringConfig) Validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("scoring config: no category weights")
	}

	var sum float64
	for _, cat := range Categories() {
		w, ok := c.Weights[cat]
		if !ok {
			return fmt.Errorf("scoring config: missing weight for category %q", cat)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("scoring config: weight for %q out of [0,1]: %v", cat, w)
		}
		sum += w
	}
	if len(c.Weights) != len(Categories()) {
		return fmt.Errorf("scoring config: unknown categories in weight table")
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("scoring config: weights sum to %v, want 1.0", sum)
	}

	t := c.Thresholds
	if t.VoidRate <= 0 || t.VoidRate >= 1 {
		return fmt.Errorf("scoring config: void rate threshold out of (0,1): %v", t.VoidRate)
	}
	if t.DiscountRate <= 0 || t.DiscountRate >= 1 {
		return fmt.Errorf("scoring config: discount rate threshold out of (0,1): %v", t.DiscountRate)
	}
	if t.RefundRate <= 0 || t.RefundRate >= 1 {
		return fmt.Errorf("scoring config: refund rate threshold out of (0,1): %v", t.RefundRate)
	}
	if t.HighValueVoid <= 0 || t.CashVariance <= 0 || t.SmallShortage <= 0 {
		return fmt.Errorf("scoring config: currency thresholds must be positive")
	}
	if t.LargeDiscountPct <= 0 || t.LargeDiscountPct > 100 {
		return fmt.Errorf("scoring config: large discount percent out of (0,100]: %v", t.LargeDiscountPct)
	}
	if t.OpenHour < 0 || t.OpenHour > 23 || t.CloseHour < 0 || t.CloseHour > 24 || t.OpenHour >= t.CloseHour {
		return fmt.Errorf("scoring config: invalid operating hours %d-%d", t.OpenHour, t.CloseHour)
	}
	return nil
}

// DefaultConfig returns a Community-tier configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: DefaultScoringConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a Pro-tier configuration (Postgres + Redis + NATS).
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
