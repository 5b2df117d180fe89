package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GatewayConfig holds credentials and limits for one payment provider.
type GatewayConfig struct {
	Provider              string        `mapstructure:"provider"`
	Enabled               bool          `mapstructure:"enabled"`
	BaseURL               string        `mapstructure:"base_url"`
	KeyID                 string        `mapstructure:"key_id"`
	KeySecret             string        `mapstructure:"key_secret"`
	PublishableKey        string        `mapstructure:"publishable_key"`
	WebhookSecret         string        `mapstructure:"webhook_secret"`
	MinOneOffAmount       int64         `mapstructure:"min_one_off_amount"`
	MinRecurringAmount    int64         `mapstructure:"min_recurring_amount"`
	DefaultCurrency       string        `mapstructure:"default_currency"`
	SignatureTolerance    time.Duration `mapstructure:"signature_tolerance"`
	BreakerMaxFailures    uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout    time.Duration `mapstructure:"breaker_open_timeout"`
	SubscriptionTotalRuns int           `mapstructure:"subscription_total_runs"`
}

type gatewayFile struct {
	Gateways []GatewayConfig `mapstructure:"gateways"`
}

// GatewayConfigHolder serves the current gateway settings. When a
// gateways.yml file is configured the holder reloads it on change.
type GatewayConfigHolder struct {
	mu       sync.RWMutex
	gateways map[string]GatewayConfig
	v        *viper.Viper
	log      *zap.Logger
}

// NewGatewayConfigHolder loads gateway settings from GATEWAY_CONFIG_PATH,
// falling back to environment variables per provider.
func NewGatewayConfigHolder(cfg Config, log *zap.Logger) (*GatewayConfigHolder, error) {
	holder := &GatewayConfigHolder{
		gateways: defaultGateways(cfg),
		log:      log.Named("config.gateways"),
	}

	path := strings.TrimSpace(cfg.GatewayConfigPath)
	if path == "" {
		return holder, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	holder.v = v
	if err := holder.reload(cfg); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := holder.reload(cfg); err != nil {
			holder.log.Warn("failed to reload gateway config", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.log.Info("gateway config reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticGatewayConfigHolder builds a holder from fixed settings.
func NewStaticGatewayConfigHolder(gateways ...GatewayConfig) *GatewayConfigHolder {
	holder := &GatewayConfigHolder{gateways: map[string]GatewayConfig{}, log: zap.NewNop()}
	for _, gw := range gateways {
		holder.gateways[normalizeProvider(gw.Provider)] = applyGatewayDefaults(gw, Config{})
	}
	return holder
}

// Get returns the settings for provider.
func (h *GatewayConfigHolder) Get(provider string) (GatewayConfig, bool) {
	if h == nil {
		return GatewayConfig{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	gw, ok := h.gateways[normalizeProvider(provider)]
	if !ok || !gw.Enabled {
		return GatewayConfig{}, false
	}
	return gw, true
}

// Providers lists the enabled providers.
func (h *GatewayConfigHolder) Providers() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.gateways))
	for name, gw := range h.gateways {
		if gw.Enabled {
			out = append(out, name)
		}
	}
	return out
}

func (h *GatewayConfigHolder) reload(cfg Config) error {
	var file gatewayFile
	if err := h.v.Unmarshal(&file); err != nil {
		return err
	}

	next := defaultGateways(cfg)
	for _, gw := range file.Gateways {
		name := normalizeProvider(gw.Provider)
		if name == "" {
			continue
		}
		gw.Provider = name
		next[name] = applyGatewayDefaults(gw, cfg)
	}

	h.mu.Lock()
	h.gateways = next
	h.mu.Unlock()
	return nil
}

func defaultGateways(cfg Config) map[string]GatewayConfig {
	out := map[string]GatewayConfig{}
	razorpay := GatewayConfig{
		Provider:           "razorpay",
		BaseURL:            getenv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
		KeyID:              strings.TrimSpace(os.Getenv("RAZORPAY_KEY_ID")),
		KeySecret:          strings.TrimSpace(os.Getenv("RAZORPAY_KEY_SECRET")),
		WebhookSecret:      strings.TrimSpace(os.Getenv("RAZORPAY_WEBHOOK_SECRET")),
		MinOneOffAmount:    int64(getenvInt("RAZORPAY_MIN_ONE_OFF_AMOUNT", 100)),
		MinRecurringAmount: int64(getenvInt("RAZORPAY_MIN_RECURRING_AMOUNT", 10000)),
		DefaultCurrency:    "INR",
	}
	razorpay.Enabled = razorpay.KeyID != "" || razorpay.WebhookSecret != ""
	out["razorpay"] = applyGatewayDefaults(razorpay, cfg)

	stripe := GatewayConfig{
		Provider:           "stripe",
		BaseURL:            getenv("STRIPE_BASE_URL", "https://api.stripe.com/v1"),
		KeySecret:          strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		PublishableKey:     strings.TrimSpace(os.Getenv("STRIPE_PUBLISHABLE_KEY")),
		WebhookSecret:      strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		MinOneOffAmount:    int64(getenvInt("STRIPE_MIN_ONE_OFF_AMOUNT", 50)),
		MinRecurringAmount: int64(getenvInt("STRIPE_MIN_RECURRING_AMOUNT", 500)),
		DefaultCurrency:    "USD",
	}
	stripe.Enabled = stripe.KeySecret != "" || stripe.WebhookSecret != ""
	out["stripe"] = applyGatewayDefaults(stripe, cfg)

	return out
}

func applyGatewayDefaults(gw GatewayConfig, cfg Config) GatewayConfig {
	gw.Provider = normalizeProvider(gw.Provider)
	gw.DefaultCurrency = strings.ToUpper(strings.TrimSpace(gw.DefaultCurrency))
	if gw.SignatureTolerance <= 0 {
		gw.SignatureTolerance = cfg.SignatureTolerance
	}
	if gw.SignatureTolerance <= 0 {
		gw.SignatureTolerance = 5 * time.Minute
	}
	if gw.BreakerMaxFailures == 0 {
		gw.BreakerMaxFailures = 5
	}
	if gw.BreakerOpenTimeout <= 0 {
		gw.BreakerOpenTimeout = 30 * time.Second
	}
	if gw.SubscriptionTotalRuns <= 0 {
		gw.SubscriptionTotalRuns = 120
	}
	return gw
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
