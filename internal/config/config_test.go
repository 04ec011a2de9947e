package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"STORE_DRIVER": "memory",
		"JWT_SECRET":   "s",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api", cfg.EndpointPrefix)
	assert.True(t, cfg.FreeShippingThreshold.Equal(decimal.NewFromInt(99)))
	assert.True(t, cfg.FlatFreight.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, 3, cfg.PlaceOrderRetries)
	assert.Equal(t, PaymentVerifierTrusted, cfg.PaymentVerifier)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"STORE_DRIVER":            "postgres",
		"DATABASE_URL":            "postgres://localhost/shop",
		"JWT_SECRET":              "s",
		"FREE_SHIPPING_THRESHOLD": "199.50",
		"FLAT_FREIGHT":            "12",
		"ORDER_TX_TIMEOUT":        "250ms",
		"KAFKA_BROKERS":           "k1:9092, k2:9092,",
		"PAYMENT_VERIFIER":        "stripe",
		"STRIPE_SECRET_KEY":       "sk_test",
		"PAYMENT_CURRENCY":        "USD",
	}))
	require.NoError(t, err)

	assert.Equal(t, "199.5", cfg.FreeShippingThreshold.String())
	assert.Equal(t, 250*time.Millisecond, cfg.TxTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "usd", cfg.PaymentCurrency)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database url", env: map[string]string{"JWT_SECRET": "s"}},
		{name: "missing secret", env: map[string]string{"STORE_DRIVER": "memory"}},
		{name: "bad driver", env: map[string]string{"STORE_DRIVER": "mongo", "JWT_SECRET": "s"}},
		{name: "bad timeout", env: map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": "s", "ORDER_TX_TIMEOUT": "soon"}},
		{name: "negative freight", env: map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": "s", "FLAT_FREIGHT": "-1"}},
		{name: "stripe without key", env: map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": "s", "PAYMENT_VERIFIER": "stripe"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromEnv(env(tc.env))
			assert.Error(t, err)
		})
	}
}
