package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validYAML = `
exchange:
  api_key: key
  secret_key: secret
  fee: -0.0002
  price_precision: 0
  amount_precision: 4
grid_bot:
  pair: btc_jpy
  grid_num: 100
  price_interval: 10000
  balance_threshold: 1
system:
  log_level: INFO
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "bitbank", cfg.Exchange.Name)
	assert.Equal(t, "btc_jpy", cfg.GridBot.Pair)
	assert.Equal(t, 30, cfg.Exchange.MaxOrderCount, "default applied")
	assert.Equal(t, 1, cfg.GridBot.CheckInterval, "default applied")
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("GRID_TEST_API_KEY", "expanded-key")

	yaml := `
exchange:
  api_key: ${GRID_TEST_API_KEY}
  secret_key: secret
grid_bot:
  pair: btc_jpy
  grid_num: 10
  price_interval: 100
system:
  log_level: INFO
`
	cfg, err := LoadConfig(writeConfigFile(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "expanded-key", cfg.Exchange.APIKey)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exchange.APIKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange.api_key")
}

func TestValidateRejectsOddGridNum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GridBot.GridNum = 9
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid_bot.grid_num")
}

func TestValidateRequiresIntervalOrSupport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GridBot.PriceInterval = 0
	cfg.GridBot.Support = 0
	assert.Error(t, cfg.Validate())

	cfg.GridBot.Support = 4000000
	assert.NoError(t, cfg.Validate())
}

func TestValidateUsageBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GridBot.QuoteUsage = 1.5
	assert.Error(t, cfg.Validate())
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exchange.SecretKey = "super-secret-value"
	s := cfg.String()
	assert.NotContains(t, s, "super-secret-value")
}
