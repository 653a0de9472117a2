package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "tradingview", cfg.DataSource.Provider)
	assert.Equal(t, "BITGET", cfg.DataSource.Exchange)
	assert.Equal(t, ".P", cfg.DataSource.ContractSuffix)
	assert.Equal(t, "60", cfg.DataSource.Resolution)
	assert.Equal(t, 5000, cfg.DataSource.Bars)
	assert.Equal(t, 15*time.Second, cfg.DataSource.Timeout)
	assert.Equal(t, DefaultSymbols, cfg.DataSource.Symbols)
	assert.Equal(t, "data/price_list.json", cfg.DataSource.PricesPath)
	assert.Equal(t, "data/cointegrated_pairs.csv", cfg.Screening.ResultsPath)
	assert.Equal(t, "0 0 */6 * * *", cfg.Schedule.PipelineCron)
	assert.False(t, cfg.TelegramEnabled())
	assert.False(t, cfg.EmailEnabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
data_source:
  provider: yahoo
  symbols: [AAPL, MSFT, GOOG]
  timeout: 5s
screening:
  workers: 4
  results_path: out/pairs.csv
email:
  host: smtp.example.com
  from: bot@example.com
  to: [desk@example.com]
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("RESULTS_PATH", "env/pairs.csv")
	t.Setenv("RUN_ON_START", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "yahoo", cfg.DataSource.Provider)
	assert.Equal(t, "https://query1.finance.yahoo.com", cfg.DataSource.Endpoint)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, cfg.DataSource.Symbols)
	assert.Equal(t, 5*time.Second, cfg.DataSource.Timeout)
	assert.Equal(t, 4, cfg.Screening.Workers)
	assert.Equal(t, "env/pairs.csv", cfg.Screening.ResultsPath)
	assert.True(t, cfg.Schedule.RunOnStart)
	assert.True(t, cfg.TelegramEnabled())
	assert.True(t, cfg.EmailEnabled())
	assert.Equal(t, 587, cfg.Email.Port)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad provider":       "data_source:\n  provider: binance\n",
		"single symbol":      "data_source:\n  symbols: [BTCUSDT]\n",
		"bad cron":           "schedule:\n  pipeline_cron: \"every day\"\n",
		"bad level":          "log_level: loud\n",
		"email without from": "email:\n  host: smtp.example.com\n  to: [a@example.com]\n",
		"token without chat": "telegram:\n  bot_token: abc\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, body))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "data_source: [unclosed"))
	assert.Error(t, err)
}
