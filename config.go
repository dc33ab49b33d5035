/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package regulator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-appkit/config"
	"github.com/acronis/go-appkit/retry"
)

// Throttling algorithms.
const (
	ThrottleAlgSlidingLog    = "sliding_log"
	ThrottleAlgLeakyBucket   = "leaky_bucket"
	ThrottleAlgSlidingWindow = "sliding_window"
	ThrottleAlgTokenBucket   = "token_bucket"
)

// Backoff strategies for retries.
const (
	BackoffStrategyExponential = "exponential"
	BackoffStrategyConstant    = "constant"
)

// DefaultRetries is the number of retries NewServiceConfig assigns
// when none are specified explicitly.
const DefaultRetries = 1

// Rate represents value for rate limiting of operation starts:
// at most Count starts per Interval.
type Rate struct {
	Count    int
	Interval time.Duration
}

// String returns a string representation of the rate.
// Implements fmt.Stringer interface.
func (r Rate) String() string {
	if r.Interval == 0 && r.Count == 0 {
		return ""
	}
	var d string
	switch r.Interval {
	case time.Second:
		d = "s"
	case time.Minute:
		d = "m"
	case time.Hour:
		d = "h"
	default:
		d = r.Interval.String()
	}
	return fmt.Sprintf("%d/%s", r.Count, d)
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (r *Rate) UnmarshalText(text []byte) error {
	return r.unmarshal(string(text))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (r *Rate) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	return r.unmarshal(text)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (r *Rate) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	return r.unmarshal(text)
}

func (r *Rate) unmarshal(rate string) error {
	if rate == "" {
		*r = Rate{}
		return nil
	}
	incorrectFormatErr := fmt.Errorf(
		"incorrect format for rate %q, should be N/(s|m|h) or N/duration, for example 10/s, 100/m, 5/500ms", rate)
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		return incorrectFormatErr
	}
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return incorrectFormatErr
	}
	var interval time.Duration
	switch strings.ToLower(parts[1]) {
	case "s":
		interval = time.Second
	case "m":
		interval = time.Minute
	case "h":
		interval = time.Hour
	default:
		interval, err = time.ParseDuration(parts[1])
		if err != nil {
			return incorrectFormatErr
		}
	}
	*r = Rate{Count: count, Interval: interval}
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface.
func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// MarshalJSON implements the json.Marshaler interface.
func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// MarshalYAML implements the yaml.Marshaler interface.
func (r Rate) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// ServiceConfig represents regulation parameters for calls to one service.
type ServiceConfig struct {
	// Concurrency is the maximum number of wrapped calls that may execute
	// at the same time. Should be positive.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`

	// Rate is the maximum number of operation starts per time window.
	// Retried attempts count as new starts.
	Rate Rate `mapstructure:"rate" yaml:"rate" json:"rate"`

	// Retries is the number of additional attempts after a failed one,
	// so a failing call makes Retries+1 attempts in total.
	// Zero disables retries.
	Retries int `mapstructure:"retries" yaml:"retries" json:"retries"`

	// Alg is the throttling algorithm. An empty value selects
	// ThrottleAlgSlidingLog, the only algorithm with exact window
	// accounting; the others trade exactness for constant memory.
	Alg string `mapstructure:"alg" yaml:"alg" json:"alg"`

	// Burst tunes the leaky_bucket and token_bucket algorithms.
	// Ignored by the other algorithms.
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`
}

// NewServiceConfig creates a new ServiceConfig with the given concurrency
// limit and rate, and the default number of retries.
func NewServiceConfig(concurrency int, rate Rate) ServiceConfig {
	return ServiceConfig{Concurrency: concurrency, Rate: rate, Retries: DefaultRetries}
}

// Validate validates service configuration.
func (c *ServiceConfig) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency should be positive, got %d", c.Concurrency)
	}
	if c.Rate.Count <= 0 {
		return fmt.Errorf("rate count should be positive, got %d", c.Rate.Count)
	}
	if c.Rate.Interval <= 0 {
		return fmt.Errorf("rate interval should be positive, got %s", c.Rate.Interval)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries should not be negative, got %d", c.Retries)
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst should not be negative, got %d", c.Burst)
	}
	switch c.Alg {
	case "", ThrottleAlgSlidingLog, ThrottleAlgLeakyBucket, ThrottleAlgSlidingWindow, ThrottleAlgTokenBucket:
	default:
		return fmt.Errorf("unknown throttling algorithm %q, choose one of: [%s, %s, %s, %s]",
			c.Alg, ThrottleAlgSlidingLog, ThrottleAlgLeakyBucket, ThrottleAlgSlidingWindow, ThrottleAlgTokenBucket)
	}
	return nil
}

// BackoffConfig represents configuration options for the backoff policy
// applied between retried attempts.
type BackoffConfig struct {
	// Strategy is a strategy for retry backoff: [exponential, constant].
	// An empty value means the default policy (see DefaultBackoffPolicy).
	Strategy string `mapstructure:"strategy" yaml:"strategy" json:"strategy"`

	// ExponentialInitialInterval is the initial interval for exponential backoff.
	ExponentialInitialInterval config.TimeDuration `mapstructure:"exponentialInitialInterval" yaml:"exponentialInitialInterval" json:"exponentialInitialInterval"` // nolint: lll

	// ExponentialMultiplier is the multiplier for exponential backoff.
	ExponentialMultiplier float64 `mapstructure:"exponentialMultiplier" yaml:"exponentialMultiplier" json:"exponentialMultiplier"`

	// ConstantInterval is the interval for constant backoff.
	ConstantInterval config.TimeDuration `mapstructure:"constantInterval" yaml:"constantInterval" json:"constantInterval"`
}

// Validate validates backoff configuration.
func (c *BackoffConfig) Validate() error {
	switch c.Strategy {
	case "":
	case BackoffStrategyExponential:
		if c.ExponentialInitialInterval < 0 {
			return fmt.Errorf("exponential backoff initial interval should not be negative, got %s",
				c.ExponentialInitialInterval)
		}
		if c.ExponentialMultiplier <= 1 {
			return fmt.Errorf("exponential backoff multiplier should be greater than 1, got %v",
				c.ExponentialMultiplier)
		}
	case BackoffStrategyConstant:
		if c.ConstantInterval < 0 {
			return fmt.Errorf("constant backoff interval should not be negative, got %s", c.ConstantInterval)
		}
	default:
		return fmt.Errorf("backoff strategy must be one of: [%s, %s]",
			BackoffStrategyExponential, BackoffStrategyConstant)
	}
	return nil
}

// Policy returns a retry policy built from the configuration,
// or nil if no strategy is set.
func (c *BackoffConfig) Policy() retry.Policy {
	switch c.Strategy {
	case BackoffStrategyExponential:
		return retry.PolicyFunc(func() backoff.BackOff {
			bf := backoff.NewExponentialBackOff()
			bf.InitialInterval = time.Duration(c.ExponentialInitialInterval)
			bf.Multiplier = c.ExponentialMultiplier
			bf.Reset()
			return bf
		})
	case BackoffStrategyConstant:
		return retry.PolicyFunc(func() backoff.BackOff {
			bf := backoff.NewConstantBackOff(time.Duration(c.ConstantInterval))
			bf.Reset()
			return bf
		})
	}
	return nil
}

// Config represents the full regulator configuration: per-service regulation
// parameters and the backoff policy for retries.
// Configuration can be loaded in different formats (YAML, JSON) using
// config.Loader, viper, or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Services contains regulation parameters for services.
	// Key is a service identifier, and value is its configuration.
	Services map[string]ServiceConfig `mapstructure:"services" yaml:"services" json:"services"`

	// Backoff is a configuration for the backoff policy between retried attempts.
	Backoff BackoffConfig `mapstructure:"backoff" yaml:"backoff" json:"backoff"`

	// keyPrefix is a prefix for configuration parameters.
	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	var opts configOptions
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(_ config.DataProvider) {
}

// Set sets regulator configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	if err := dp.Unmarshal(c, func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.DecodeHook = MapstructureDecodeHook()
	}); err != nil {
		return err
	}
	return c.Validate()
}

// Validate validates configuration.
func (c *Config) Validate() error {
	for name, svc := range c.Services {
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("validate service %q: %w", name, err)
		}
	}
	if err := c.Backoff.Validate(); err != nil {
		return fmt.Errorf("validate backoff: %w", err)
	}
	return nil
}

// MapstructureDecodeHook returns a DecodeHookFunc for mapstructure to handle custom types.
func MapstructureDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}
