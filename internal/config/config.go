package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	PaymentVerifierTrusted = "trusted"
	PaymentVerifierStripe  = "stripe"
)

type Config struct {
	ServiceName    string
	Port           int
	GRPCPort       int
	GinMode        string
	EndpointPrefix string

	StoreDriver string
	DatabaseURL string

	JWTSecret string

	FreeShippingThreshold decimal.Decimal
	FlatFreight           decimal.Decimal
	TxTimeout             time.Duration
	PlaceOrderRetries     int

	KafkaBrokers   []string
	RedisAddr      string
	IdempotencyTTL time.Duration
	ConsulAddr     string

	PaymentVerifier string
	StripeSecretKey string
	PaymentCurrency string
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	l := loader{getenv: getenv}
	cfg := Config{
		ServiceName:    l.str("SERVICE_NAME", "shop-service"),
		Port:           l.int("PORT", 8080),
		GRPCPort:       l.int("GRPC_PORT", 5001),
		GinMode:        l.str("GIN_MODE", "debug"),
		EndpointPrefix: l.str("SERVICE_ENDPOINT_PREFIX", "/api"),

		StoreDriver: l.str("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL: l.str("DATABASE_URL", ""),

		JWTSecret: l.str("JWT_SECRET", ""),

		FreeShippingThreshold: l.decimal("FREE_SHIPPING_THRESHOLD", decimal.NewFromInt(99)),
		FlatFreight:           l.decimal("FLAT_FREIGHT", decimal.NewFromInt(10)),
		TxTimeout:             l.duration("ORDER_TX_TIMEOUT", 5*time.Second),
		PlaceOrderRetries:     l.int("PLACE_ORDER_RETRIES", 3),

		KafkaBrokers:   l.list("KAFKA_BROKERS"),
		RedisAddr:      l.str("REDIS_ADDR", ""),
		IdempotencyTTL: l.duration("IDEMPOTENCY_TTL", 24*time.Hour),
		ConsulAddr:     l.str("CONSUL_ADDR", ""),

		PaymentVerifier: l.str("PAYMENT_VERIFIER", PaymentVerifierTrusted),
		StripeSecretKey: l.str("STRIPE_SECRET_KEY", ""),
		PaymentCurrency: strings.ToLower(l.str("PAYMENT_CURRENCY", "cny")),
	}
	if l.err != nil {
		return Config{}, l.err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.FreeShippingThreshold.IsNegative() || c.FlatFreight.IsNegative() {
		return errors.New("freight settings must not be negative")
	}
	if c.TxTimeout <= 0 {
		return errors.New("ORDER_TX_TIMEOUT must be positive")
	}
	if c.PlaceOrderRetries < 0 {
		return errors.New("PLACE_ORDER_RETRIES must not be negative")
	}
	switch c.PaymentVerifier {
	case PaymentVerifierTrusted:
	case PaymentVerifierStripe:
		if c.StripeSecretKey == "" {
			return errors.New("STRIPE_SECRET_KEY is required for the stripe payment verifier")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_VERIFIER %q", c.PaymentVerifier)
	}
	return nil
}

// loader keeps the first parse error so FromEnv can read every key in one pass.
type loader struct {
	getenv func(string) string
	err    error
}

func (l *loader) str(key, def string) string {
	if v := strings.TrimSpace(l.getenv(key)); v != "" {
		return v
	}
	return def
}

func (l *loader) int(key string, def int) int {
	v := l.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return n
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := l.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return d
}

func (l *loader) decimal(key string, def decimal.Decimal) decimal.Decimal {
	v := l.getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return d
}

func (l *loader) list(key string) []string {
	var out []string
	for _, p := range strings.Split(l.getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *loader) fail(key string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
