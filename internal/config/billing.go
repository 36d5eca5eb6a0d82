package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries the operational knobs of the billing engine.
// It reloads at runtime when the mounted billing.yml changes.
type BillingConfig struct {
	// DefaultCurrency applies to plans that do not set one.
	DefaultCurrency string `mapstructure:"defaultCurrency"`
	// DueDays is the distance between issue date and due date.
	DueDays int `mapstructure:"dueDays"`
	// StalePaymentAfter is how long a payment may sit in processing
	// before the stale report surfaces it.
	StalePaymentAfter time.Duration `mapstructure:"stalePaymentAfter"`
	// SettlementRetries bounds how often an optimistic-lock conflict is
	// retried before the error reaches the caller.
	SettlementRetries int `mapstructure:"settlementRetries"`
	// DispatchInterval paces the settlement event dispatcher.
	DispatchInterval time.Duration `mapstructure:"dispatchInterval"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DefaultCurrency:   "USD",
		DueDays:           14,
		StalePaymentAfter: 30 * time.Minute,
		SettlementRetries: 3,
		DispatchInterval:  2 * time.Second,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/netbill/config") // Volume-mounted config
	v.AddConfigPath("/etc/netbill")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("NETBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.defaultCurrency", defaults.DefaultCurrency)
	v.SetDefault("billing.dueDays", defaults.DueDays)
	v.SetDefault("billing.stalePaymentAfter", defaults.StalePaymentAfter)
	v.SetDefault("billing.settlementRetries", defaults.SettlementRetries)
	v.SetDefault("billing.dispatchInterval", defaults.DispatchInterval)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// StaticBillingConfig wraps a fixed BillingConfig, mainly for tests.
func StaticBillingConfig(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.DueDays < 0 {
		return errors.New("billing.dueDays cannot be negative")
	}
	if cfg.StalePaymentAfter <= 0 {
		return errors.New("billing.stalePaymentAfter must be positive")
	}
	if cfg.SettlementRetries < 1 {
		return errors.New("billing.settlementRetries must be at least 1")
	}
	if cfg.DispatchInterval <= 0 {
		return errors.New("billing.dispatchInterval must be positive")
	}
	return nil
}
