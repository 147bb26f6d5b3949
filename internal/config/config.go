package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a pgx connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Redis stores Redis connection settings for the geo index.
type Redis struct {
	Addr string
}

// Kafka stores broker and topic settings. Empty brokers disable the
// consumer/producer, mirroring how the worker tolerates a missing broker.
type Kafka struct {
	Brokers     []string
	EventsTopic string
	NotifyTopic string
	GroupID     string
}

// Gateway stores pincode resolver settings.
type Gateway struct {
	PincodeBaseURL string
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
}

// Matching stores dispatcher tuning.
type Matching struct {
	RadiusKm      float64
	MaxAttempts   int
	AcceptTTL     time.Duration
	RetryBackoff  time.Duration
	BroadcastSize int
	SweepInterval time.Duration
}

// RateLimit stores per-client HTTP throttle settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pricing stores the default rate card. Values are decimal strings so money
// never round-trips through binary floats.
type Pricing struct {
	PerKmRate string
	PerKgRate string
	MinCharge string
}

// Bidding stores the auction policy.
type Bidding struct {
	WindowMinutes           int
	MaxBidsPerDelivery      int
	MaxActiveBidsPerPartner int
	MinBidPercent           int64
	MaxBidPercent           int64
	AutoSelectLowest        bool
	AutoSelectAfterMinutes  int
	RetryWindowOnNoBids     bool
}

// Config stores all service settings.
type Config struct {
	Port      int
	DB        DB
	Redis     Redis
	Kafka     Kafka
	Gateway   Gateway
	Matching  Matching
	Pricing   Pricing
	Bidding   Bidding
	RateLimit RateLimit
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      DefaultPort(),
		DB:        DefaultDB(),
		Redis:     DefaultRedis(),
		Kafka:     DefaultKafka(),
		Gateway:   DefaultGateway(),
		Matching:  DefaultMatching(),
		Pricing:   DefaultPricing(),
		Bidding:   DefaultBidding(),
		RateLimit: DefaultRateLimit(),
	}

	cfg.Port = envInt("PORT", cfg.Port)

	cfg.DB.Host = envStr("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envStr("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envStr("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = envStr("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = envStr("POSTGRES_DB", cfg.DB.Name)

	cfg.Redis.Addr = envStr("REDIS_ADDR", cfg.Redis.Addr)

	if v := os.Getenv("KAFKA_BROKERS"); strings.TrimSpace(v) != "" {
		cfg.Kafka.Brokers = splitCSV(v)
	}
	cfg.Kafka.EventsTopic = envStr("KAFKA_EVENTS_TOPIC", cfg.Kafka.EventsTopic)
	cfg.Kafka.NotifyTopic = envStr("KAFKA_NOTIFY_TOPIC", cfg.Kafka.NotifyTopic)
	cfg.Kafka.GroupID = envStr("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Gateway.PincodeBaseURL = envStr("PINCODE_BASE_URL", cfg.Gateway.PincodeBaseURL)

	cfg.Matching.RadiusKm = envFloat("MATCHING_RADIUS_KM", cfg.Matching.RadiusKm)
	cfg.Matching.MaxAttempts = envInt("MATCHING_MAX_ATTEMPTS", cfg.Matching.MaxAttempts)
	cfg.Matching.AcceptTTL = envDuration("MATCHING_ACCEPT_TTL", cfg.Matching.AcceptTTL)
	cfg.Matching.RetryBackoff = envDuration("MATCHING_RETRY_BACKOFF", cfg.Matching.RetryBackoff)
	cfg.Matching.BroadcastSize = envInt("MATCHING_BROADCAST_SIZE", cfg.Matching.BroadcastSize)
	cfg.Matching.SweepInterval = envDuration("MATCHING_SWEEP_INTERVAL", cfg.Matching.SweepInterval)

	cfg.Pricing.PerKmRate = envStr("PRICING_PER_KM_RATE", cfg.Pricing.PerKmRate)
	cfg.Pricing.PerKgRate = envStr("PRICING_PER_KG_RATE", cfg.Pricing.PerKgRate)
	cfg.Pricing.MinCharge = envStr("PRICING_MIN_CHARGE", cfg.Pricing.MinCharge)

	cfg.Bidding.WindowMinutes = envInt("BIDDING_WINDOW_MINUTES", cfg.Bidding.WindowMinutes)
	cfg.Bidding.MaxBidsPerDelivery = envInt("BIDDING_MAX_BIDS_PER_DELIVERY", cfg.Bidding.MaxBidsPerDelivery)
	cfg.Bidding.MaxActiveBidsPerPartner = envInt("BIDDING_MAX_ACTIVE_BIDS_PER_PARTNER", cfg.Bidding.MaxActiveBidsPerPartner)
	cfg.Bidding.MinBidPercent = int64(envInt("BIDDING_MIN_BID_PERCENT", int(cfg.Bidding.MinBidPercent)))
	cfg.Bidding.MaxBidPercent = int64(envInt("BIDDING_MAX_BID_PERCENT", int(cfg.Bidding.MaxBidPercent)))
	cfg.Bidding.AutoSelectLowest = envBool("BIDDING_AUTO_SELECT_LOWEST", cfg.Bidding.AutoSelectLowest)
	cfg.Bidding.AutoSelectAfterMinutes = envInt("BIDDING_AUTO_SELECT_AFTER_MINUTES", cfg.Bidding.AutoSelectAfterMinutes)
	cfg.Bidding.RetryWindowOnNoBids = envBool("BIDDING_RETRY_WINDOW_ON_NO_BIDS", cfg.Bidding.RetryWindowOnNoBids)

	cfg.RateLimit.Enabled = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Rate = envFloat("RATE_LIMIT_RATE", cfg.RateLimit.Rate)
	cfg.RateLimit.Burst = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.TTL = envDuration("RATE_LIMIT_TTL", cfg.RateLimit.TTL)
	cfg.RateLimit.MaxBuckets = envInt("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets)

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.Parse()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Matching.RadiusKm <= 0 {
		return fmt.Errorf("invalid matching radius: %f", c.Matching.RadiusKm)
	}
	if c.Matching.MaxAttempts <= 0 {
		return fmt.Errorf("invalid matching max attempts: %d", c.Matching.MaxAttempts)
	}
	for _, raw := range []string{c.Pricing.PerKmRate, c.Pricing.PerKgRate, c.Pricing.MinCharge} {
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("invalid pricing value %q: %w", raw, err)
		}
	}
	if c.Bidding.MinBidPercent <= 0 || c.Bidding.MaxBidPercent < c.Bidding.MinBidPercent {
		return fmt.Errorf("invalid bid percent bounds: [%d, %d]",
			c.Bidding.MinBidPercent, c.Bidding.MaxBidPercent)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
