/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package regulator

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-appkit/config"
)

const yamlTestConfig = `
services:
  billing:
    concurrency: 10
    rate: 100/m
    retries: 3
    alg: leaky_bucket
    burst: 20
  search:
    concurrency: 5
    rate: 5/500ms
    retries: 1
  storage:
    concurrency: 1
    rate: 1/s
backoff:
  strategy: exponential
  exponentialInitialInterval: 200ms
  exponentialMultiplier: 2.5
`

const jsonTestConfig = `
{
  "services": {
    "billing": {
      "concurrency": 10,
      "rate": "100/m",
      "retries": 3,
      "alg": "leaky_bucket",
      "burst": 20
    },
    "search": {
      "concurrency": 5,
      "rate": "5/500ms",
      "retries": 1
    },
    "storage": {
      "concurrency": 1,
      "rate": "1/s"
    }
  },
  "backoff": {
    "strategy": "exponential",
    "exponentialInitialInterval": "200ms",
    "exponentialMultiplier": 2.5
  }
}
`

func requireTestConfig(t *testing.T, cfg *Config) {
	t.Helper()

	require.Len(t, cfg.Services, 3)
	require.Equal(t, ServiceConfig{
		Concurrency: 10,
		Rate:        Rate{Count: 100, Interval: time.Minute},
		Retries:     3,
		Alg:         ThrottleAlgLeakyBucket,
		Burst:       20,
	}, cfg.Services["billing"])
	require.Equal(t, ServiceConfig{
		Concurrency: 5,
		Rate:        Rate{Count: 5, Interval: time.Millisecond * 500},
		Retries:     1,
	}, cfg.Services["search"])
	require.Equal(t, ServiceConfig{
		Concurrency: 1,
		Rate:        Rate{Count: 1, Interval: time.Second},
	}, cfg.Services["storage"])

	require.Equal(t, BackoffConfig{
		Strategy:                   BackoffStrategyExponential,
		ExponentialInitialInterval: config.TimeDuration(time.Millisecond * 200),
		ExponentialMultiplier:      2.5,
	}, cfg.Backoff)
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgDataType config.DataType
		cfgData     string
	}{
		{
			name:        "yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData:     yamlTestConfig,
		},
		{
			name:        "json config",
			cfgDataType: config.DataTypeJSON,
			cfgData:     jsonTestConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg *Config

			// Load config using config.Loader.
			cfg = NewConfig()
			cfgLoader := config.NewLoader(config.NewViperAdapter())
			err := cfgLoader.LoadFromReader(bytes.NewBuffer([]byte(tt.cfgData)), tt.cfgDataType, cfg)
			require.NoError(t, err)
			requireTestConfig(t, cfg)

			// Load config using viper unmarshal.
			cfg = NewConfig()
			vpr := viper.New()
			vpr.SetConfigType(string(tt.cfgDataType))
			require.NoError(t, vpr.ReadConfig(bytes.NewBuffer([]byte(tt.cfgData))))
			require.NoError(t, vpr.Unmarshal(&cfg, func(decoderConfig *mapstructure.DecoderConfig) {
				decoderConfig.DecodeHook = MapstructureDecodeHook()
			}))
			requireTestConfig(t, cfg)

			// Load config using yaml/json unmarshal.
			cfg = NewConfig()
			switch tt.cfgDataType {
			case config.DataTypeYAML:
				require.NoError(t, yaml.Unmarshal([]byte(tt.cfgData), &cfg))
				requireTestConfig(t, cfg)
			case config.DataTypeJSON:
				require.NoError(t, json.Unmarshal([]byte(tt.cfgData), &cfg))
				requireTestConfig(t, cfg)
			default:
				t.Fatalf("unsupported config data type: %s", tt.cfgDataType)
			}
		})
	}
}

func TestConfigWithKeyPrefix(t *testing.T) {
	cfgData := `
regulation:
  services:
    billing:
      concurrency: 10
      rate: 100/m
      retries: 3
      alg: leaky_bucket
      burst: 20
    search:
      concurrency: 5
      rate: 5/500ms
      retries: 1
    storage:
      concurrency: 1
      rate: 1/s
  backoff:
    strategy: exponential
    exponentialInitialInterval: 200ms
    exponentialMultiplier: 2.5
`
	cfg := NewConfig(WithKeyPrefix("regulation"))
	cfgLoader := config.NewLoader(config.NewViperAdapter())
	err := cfgLoader.LoadFromReader(bytes.NewBuffer([]byte(cfgData)), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	requireTestConfig(t, cfg)
}

func TestConfig_Set_WithErrors(t *testing.T) {
	tests := []struct {
		name             string
		cfgData          string
		wantErrStr       string
		wantErrStrSuffix string
	}{
		{
			name: "non-positive concurrency",
			cfgData: `
services:
  billing:
    concurrency: 0
    rate: 100/m
`,
			wantErrStr: `validate service "billing": concurrency should be positive, got 0`,
		},
		{
			name: "non-positive rate count",
			cfgData: `
services:
  billing:
    concurrency: 1
    rate: 0/m
`,
			wantErrStr: `validate service "billing": rate count should be positive, got 0`,
		},
		{
			name: "negative retries",
			cfgData: `
services:
  billing:
    concurrency: 1
    rate: 100/m
    retries: -1
`,
			wantErrStr: `validate service "billing": retries should not be negative, got -1`,
		},
		{
			name: "unknown throttling algorithm",
			cfgData: `
services:
  billing:
    concurrency: 1
    rate: 100/m
    alg: quick_sort
`,
			wantErrStr: `validate service "billing": unknown throttling algorithm "quick_sort", ` +
				`choose one of: [sliding_log, leaky_bucket, sliding_window, token_bucket]`,
		},
		{
			name: "invalid rate format",
			cfgData: `
services:
  billing:
    concurrency: 1
    rate: 1/f
`,
			wantErrStrSuffix: `incorrect format for rate "1/f", should be N/(s|m|h) or N/duration, ` +
				`for example 10/s, 100/m, 5/500ms`,
		},
		{
			name: "unknown backoff strategy",
			cfgData: `
services:
  billing:
    concurrency: 1
    rate: 100/m
backoff:
  strategy: quadratic
`,
			wantErrStr: `validate backoff: backoff strategy must be one of: [exponential, constant]`,
		},
		{
			name: "too small exponential multiplier",
			cfgData: `
backoff:
  strategy: exponential
  exponentialInitialInterval: 100ms
  exponentialMultiplier: 0.5
`,
			wantErrStr: `validate backoff: exponential backoff multiplier should be greater than 1, got 0.5`,
		},
	}
	cfgLoader := config.NewLoader(config.NewViperAdapter())
	for i := range tests {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := cfgLoader.LoadFromReader(bytes.NewReader([]byte(tt.cfgData)), config.DataTypeYAML, cfg)
			require.Error(t, err)
			if tt.wantErrStr != "" {
				require.EqualError(t, err, tt.wantErrStr)
			} else {
				require.Truef(t, strings.HasSuffix(err.Error(), tt.wantErrStrSuffix),
					"got error %q, want suffix %q", err.Error(), tt.wantErrStrSuffix)
			}
		})
	}
}

func TestRate_UnmarshalText(t *testing.T) {
	tests := []struct {
		text     string
		wantRate Rate
		wantErr  bool
	}{
		{text: "10/s", wantRate: Rate{Count: 10, Interval: time.Second}},
		{text: "100/m", wantRate: Rate{Count: 100, Interval: time.Minute}},
		{text: "1000/h", wantRate: Rate{Count: 1000, Interval: time.Hour}},
		{text: "5/500ms", wantRate: Rate{Count: 5, Interval: time.Millisecond * 500}},
		{text: "7/1m30s", wantRate: Rate{Count: 7, Interval: time.Second * 90}},
		{text: "", wantRate: Rate{}},
		{text: "10", wantErr: true},
		{text: "ten/s", wantErr: true},
		{text: "10/f", wantErr: true},
		{text: "10/s/m", wantErr: true},
	}
	for i := range tests {
		tt := tests[i]
		t.Run(tt.text, func(t *testing.T) {
			var r Rate
			err := r.UnmarshalText([]byte(tt.text))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantRate, r)
		})
	}
}

func TestRate_String(t *testing.T) {
	tests := []struct {
		rate Rate
		want string
	}{
		{rate: Rate{Count: 10, Interval: time.Second}, want: "10/s"},
		{rate: Rate{Count: 100, Interval: time.Minute}, want: "100/m"},
		{rate: Rate{Count: 1000, Interval: time.Hour}, want: "1000/h"},
		{rate: Rate{Count: 5, Interval: time.Millisecond * 500}, want: "5/500ms"},
		{rate: Rate{}, want: ""},
	}
	for i := range tests {
		tt := tests[i]
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.rate.String())
		})
	}
}
