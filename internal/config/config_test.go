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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "fake", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 20, cfg.Telemetry.Window)
	assert.Equal(t, 1024, cfg.Telemetry.MaxSeries)
	assert.Equal(t, 1024, cfg.Events.MaxTenants)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 30s
  maxAttempts: 5
database:
  driver: mysql
  host: db
  port: 3306
  user: insight
  password: secret
  name: insight
telemetry:
  metrics:
    - name: latency_ms
      start: 120
      min: 20
      max: 900
      step: 35
`)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5, cfg.LLM.MaxAttempts)
	assert.Equal(t, "insight:secret@tcp(db:3306)/insight?parseTime=true&charset=utf8mb4&loc=UTC", cfg.DSN())
	require.Len(t, cfg.Telemetry.Metrics, 1)
	assert.Equal(t, 900.0, cfg.Telemetry.Metrics[0].Max)
}

func TestLoad_DSNEnvWins(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: postgres\n  host: pg\n")
	t.Setenv("DATABASE_DSN", "postgres://u:p@elsewhere/db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@elsewhere/db", cfg.DSN())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown provider": "llm:\n  provider: bard\n",
		"missing key":      "llm:\n  provider: gemini\n",
		"unknown driver":   "database:\n  driver: oracle\n",
		"bad mode":         "llm:\n  mode: xml\n",
		"bad yaml":         "server: [",
		"zero interval":    "telemetry:\n  interval: 0s\n",
		"zero window":      "telemetry:\n  window: 0\n",
		"zero series":      "telemetry:\n  maxSeries: 0\n",
		"zero capacity":    "events:\n  capacity: 0\n",
		"negative tenants": "events:\n  maxTenants: -1\n",
		"zero slots":       "slots:\n  registrySize: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "")
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestValidate_ZeroIntervalNamesKey(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.Interval = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemetry.interval")
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "postgres"
	cfg.Database.User = "u"
	cfg.Database.Password = "p"
	cfg.Database.Host = "pg"
	cfg.Database.Port = 5432
	cfg.Database.Name = "insight"
	assert.Equal(t, "postgres://u:p@pg:5432/insight?sslmode=disable", cfg.DSN())
}
