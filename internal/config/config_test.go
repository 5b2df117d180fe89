package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DEFAULT_PAYMENT_PROVIDER", " Stripe ")
	t.Setenv("PENDING_DONATION_TTL", "2h")
	t.Setenv("WEBHOOK_RATE_LIMIT", "12.5")
	t.Setenv("SNOWFLAKE_NODE_ID", "7")
	t.Setenv("SEED_DEMO_DATA", "true")
	t.Setenv("SCHEDULER_INTERVAL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "stripe", cfg.DefaultProvider)
	assert.Equal(t, 2*time.Hour, cfg.PendingDonationTTL)
	assert.Equal(t, 12.5, cfg.WebhookRateLimit)
	assert.Equal(t, int64(7), cfg.NodeID)
	assert.True(t, cfg.SeedDemoData)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval, "invalid durations fall back to the default")
}

func TestIsProduction(t *testing.T) {
	assert.True(t, Config{Environment: " Production "}.IsProduction())
	assert.False(t, Config{Environment: "staging"}.IsProduction())
}

func TestStaticGatewayConfigHolder(t *testing.T) {
	holder := NewStaticGatewayConfigHolder(
		GatewayConfig{Provider: " Razorpay ", Enabled: true, KeyID: "rzp_key", DefaultCurrency: "inr"},
		GatewayConfig{Provider: "stripe", Enabled: false, KeySecret: "sk_test"},
	)

	gw, ok := holder.Get("RAZORPAY")
	require.True(t, ok)
	assert.Equal(t, "razorpay", gw.Provider)
	assert.Equal(t, "INR", gw.DefaultCurrency)
	assert.Equal(t, 5*time.Minute, gw.SignatureTolerance)
	assert.Equal(t, uint32(5), gw.BreakerMaxFailures)
	assert.Equal(t, 120, gw.SubscriptionTotalRuns)

	_, ok = holder.Get("stripe")
	assert.False(t, ok, "disabled providers are hidden")
	assert.Equal(t, []string{"razorpay"}, holder.Providers())

	var nilHolder *GatewayConfigHolder
	_, ok = nilHolder.Get("razorpay")
	assert.False(t, ok)
	assert.Nil(t, nilHolder.Providers())
}

func TestGatewayConfigHolderFromEnvironment(t *testing.T) {
	t.Setenv("RAZORPAY_KEY_ID", "rzp_env_key")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp_env_secret")
	t.Setenv("RAZORPAY_MIN_ONE_OFF_AMOUNT", "500")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	holder, err := NewGatewayConfigHolder(Config{SignatureTolerance: time.Minute}, zap.NewNop())
	require.NoError(t, err)

	gw, ok := holder.Get("razorpay")
	require.True(t, ok)
	assert.Equal(t, "rzp_env_key", gw.KeyID)
	assert.Equal(t, int64(500), gw.MinOneOffAmount)
	assert.Equal(t, int64(10000), gw.MinRecurringAmount)
	assert.Equal(t, time.Minute, gw.SignatureTolerance)

	_, ok = holder.Get("stripe")
	assert.False(t, ok, "stripe stays disabled without credentials")
}

func TestGatewayConfigHolderFromFile(t *testing.T) {
	t.Setenv("RAZORPAY_KEY_ID", "")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "")

	path := filepath.Join(t.TempDir(), "gateways.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateways:
  - provider: Stripe
    enabled: true
    key_secret: sk_file
    webhook_secret: whsec_file
    default_currency: eur
    min_one_off_amount: 100
    signature_tolerance: 2m
  - provider: ""
    enabled: true
`), 0o600))

	holder, err := NewGatewayConfigHolder(Config{GatewayConfigPath: path}, zap.NewNop())
	require.NoError(t, err)

	gw, ok := holder.Get("stripe")
	require.True(t, ok)
	assert.Equal(t, "sk_file", gw.KeySecret)
	assert.Equal(t, "EUR", gw.DefaultCurrency)
	assert.Equal(t, int64(100), gw.MinOneOffAmount)
	assert.Equal(t, 2*time.Minute, gw.SignatureTolerance)

	_, ok = holder.Get("razorpay")
	assert.False(t, ok)
}

func TestGatewayConfigHolderMissingFile(t *testing.T) {
	_, err := NewGatewayConfigHolder(Config{GatewayConfigPath: filepath.Join(t.TempDir(), "missing.yml")}, zap.NewNop())
	assert.Error(t, err)
}
