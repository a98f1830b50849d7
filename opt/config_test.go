package opt

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultCacheMaxEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, DefaultMonitorWindow, cfg.Monitor.Window)
	assert.Equal(t, ThresholdRelative, cfg.Monitor.ThresholdMode)
	assert.Equal(t, DefaultRelativeThreshold, cfg.Monitor.RelativeThreshold)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"negative cache size",
			func(c *Config) { c.Cache.MaxEntries = -1 },
			"max_entries",
		},
		{
			"negative cache ttl",
			func(c *Config) { c.Cache.DefaultTTL = Duration(-time.Second) },
			"default_ttl",
		},
		{
			"unknown penalty",
			func(c *Config) { c.Balancer.Penalty = "quadratic" },
			"penalty",
		},
		{
			"negative penalty weight",
			func(c *Config) { c.Balancer.PenaltyWeight = -0.5 },
			"penalty_weight",
		},
		{
			"NaN penalty weight",
			func(c *Config) { c.Balancer.PenaltyWeight = math.NaN() },
			"penalty_weight",
		},
		{
			"negative monitor window",
			func(c *Config) { c.Monitor.Window = -3 },
			"window",
		},
		{
			"unknown threshold mode",
			func(c *Config) { c.Monitor.ThresholdMode = "adaptive" },
			"threshold_mode",
		},
		{
			"negative relative threshold",
			func(c *Config) { c.Monitor.RelativeThreshold = -0.1 },
			"relative_threshold",
		},
		{
			"absolute mode without threshold",
			func(c *Config) {
				c.Monitor.ThresholdMode = ThresholdAbsolute
				c.Monitor.AbsoluteThreshold = 0
			},
			"absolute_threshold",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidation_AbsoluteModeAccepted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Monitor.ThresholdMode = ThresholdAbsolute
	cfg.Monitor.AbsoluteThreshold = Duration(50 * time.Millisecond)
	assert.NoError(t, cfg.Validate())
}

func TestDurationUnmarshalYAML(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{"duration string", `v: 250ms`, 250 * time.Millisecond},
		{"compound string", `v: 1m30s`, 90 * time.Second},
		{"integer nanoseconds", `v: 1000000`, time.Millisecond},
		{"zero", `v: 0`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc struct {
				V Duration `yaml:"v"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tt.yaml), &doc))
			assert.Equal(t, tt.want, time.Duration(doc.V))
		})
	}
}

func TestDurationUnmarshalYAML_Invalid(t *testing.T) {
	var doc struct {
		V Duration `yaml:"v"`
	}
	assert.Error(t, yaml.Unmarshal([]byte(`v: soon`), &doc))
}

func TestConfigRoundTripThroughYAML(t *testing.T) {
	in := `
cache:
  max_entries: 32
  default_ttl: 5m
  context_keys: [user_role, tenant]
balancer:
  penalty: normalized
monitor:
  window: 25
  threshold_mode: absolute
  absolute_threshold: 100ms
`
	cfg := DefaultConfig()
	require.NoError(t, yaml.Unmarshal([]byte(in), &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 32, cfg.Cache.MaxEntries)
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.Cache.DefaultTTL))
	assert.Equal(t, []string{"user_role", "tenant"}, cfg.Cache.ContextKeys)
	assert.Equal(t, "normalized", cfg.Balancer.Penalty)
	assert.Equal(t, 25, cfg.Monitor.Window)
	assert.Equal(t, ThresholdAbsolute, cfg.Monitor.ThresholdMode)
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.Monitor.AbsoluteThreshold))
}
