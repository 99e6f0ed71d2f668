package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultRateLimitMax           = 50
	DefaultRateLimitWindowMinutes = 5
	MinRateLimitMax               = 10
)

// RateLimitPolicy is the fixed-window budget applied to every mutating action.
type RateLimitPolicy struct {
	Max           int `mapstructure:"max"`
	WindowMinutes int `mapstructure:"windowMinutes"`
}

func (p RateLimitPolicy) Normalize() RateLimitPolicy {
	if p.Max <= 0 {
		p.Max = DefaultRateLimitMax
	}
	if p.Max < MinRateLimitMax {
		p.Max = MinRateLimitMax
	}
	if p.WindowMinutes <= 0 {
		p.WindowMinutes = DefaultRateLimitWindowMinutes
	}
	return p
}

func (p RateLimitPolicy) Window() time.Duration {
	return time.Duration(p.WindowMinutes) * time.Minute
}

type RateLimitPolicyHolder struct {
	current atomic.Value // holds RateLimitPolicy
}

// NewStaticRateLimitPolicyHolder returns a holder that never reloads.
func NewStaticRateLimitPolicyHolder(policy RateLimitPolicy) *RateLimitPolicyHolder {
	holder := &RateLimitPolicyHolder{}
	holder.current.Store(policy.Normalize())
	return holder
}

// NewRateLimitPolicyHolder reads ratelimit.yml when present and watches it for changes.
// Without a file the env-derived policy is used.
func NewRateLimitPolicyHolder(cfg Config, log *zap.Logger) (*RateLimitPolicyHolder, error) {
	log = log.Named("config.ratelimit")

	v := viper.New()
	v.SetConfigName("ratelimit")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/teamspace")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TEAMSPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("rateLimit.max", cfg.RateLimit.Max)
	v.SetDefault("rateLimit.windowMinutes", cfg.RateLimit.WindowMinutes)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var policy RateLimitPolicy
	if err := v.UnmarshalKey("rateLimit", &policy); err != nil {
		return nil, err
	}
	if err := validateRateLimitPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticRateLimitPolicyHolder(policy)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RateLimitPolicy
		if err := v.UnmarshalKey("rateLimit", &updated); err != nil {
			log.Warn("rate limit policy reload failed", zap.Error(err))
			return
		}
		if err := validateRateLimitPolicy(updated); err != nil {
			log.Warn("invalid rate limit policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated.Normalize())
		log.Info("rate limit policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *RateLimitPolicyHolder) Get() RateLimitPolicy {
	return h.current.Load().(RateLimitPolicy)
}

func validateRateLimitPolicy(p RateLimitPolicy) error {
	if p.Max < 0 {
		return errors.New("rateLimit.max cannot be negative")
	}
	if p.WindowMinutes < 0 {
		return errors.New("rateLimit.windowMinutes cannot be negative")
	}
	return nil
}
