package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BatchSize int           `env:"TEST_CFG_BATCH_SIZE" envDefault:"100"`
	Index     string        `env:"TEST_CFG_INDEX" envDefault:"products"`
	Brokers   []string      `env:"TEST_CFG_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Timeout   time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"30s"`
	Payload   bool          `env:"TEST_CFG_PAYLOAD" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, "products", cfg.Index)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.False(t, cfg.Payload)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_BATCH_SIZE", "250")
	t.Setenv("TEST_CFG_INDEX", "catalog")
	t.Setenv("TEST_CFG_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TEST_CFG_TIMEOUT", "2m")
	t.Setenv("TEST_CFG_PAYLOAD", "true")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, "catalog", cfg.Index)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.True(t, cfg.Payload)
}

func TestLoadWithOptions_EnvironmentMap(t *testing.T) {
	var cfg testConfig
	err := LoadWithOptions(&cfg, env.Options{
		Environment: map[string]string{"TEST_CFG_INDEX": "from-map"},
	})

	require.NoError(t, err)
	assert.Equal(t, "from-map", cfg.Index)
	assert.Equal(t, 100, cfg.BatchSize)
}

type requiredConfig struct {
	AdminKey string `env:"TEST_CFG_ADMIN_KEY,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_BATCH_SIZE", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
