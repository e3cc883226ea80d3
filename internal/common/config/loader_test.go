package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	t.Setenv("TEST_GENAI_URL", "http://genai.local")

	path := writeConfig(t, `
apis:
  genai:
    base_url: ${TEST_GENAI_URL}
providers:
  base_url: http://providers.local
database:
  redis:
    address: localhost:6379
workers:
  process-banking-message:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://genai.local", cfg.APIs.GenAI.BaseURL)
	assert.Equal(t, "http", cfg.Providers.Backend)
	assert.Equal(t, DefaultSessionIdleTTL, cfg.Assistant.SessionIdleTTL)
	assert.Equal(t, DefaultSummaryCap, cfg.Assistant.SummaryCap)
	assert.Equal(t, DefaultHistoryWindow, cfg.Assistant.HistoryWindow)
	assert.Equal(t, "CURRENT_ACCOUNTS", cfg.Assistant.FallbackDomain)
	assert.Equal(t, "header", cfg.Auth.Mode)
	assert.Equal(t, 5000, cfg.APIs.GenAI.TimeRangeTimeout)
	assert.Equal(t, "30m0s", cfg.Assistant.IdleTTL().String())

	worker := GetWorkerConfig(cfg, "process-banking-message")
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, cfg.Camunda.Timeout, worker.Timeout)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing genai url",
			body: "database:\n  redis:\n    address: localhost:6379\nproviders:\n  base_url: http://p\n",
		},
		{
			name: "elasticsearch backend without addresses",
			body: "apis:\n  genai:\n    base_url: http://g\ndatabase:\n  redis:\n    address: r:6379\nproviders:\n  backend: elasticsearch\n",
		},
		{
			name: "keycloak without realm",
			body: "apis:\n  genai:\n    base_url: http://g\ndatabase:\n  redis:\n    address: r:6379\nproviders:\n  base_url: http://p\nauth:\n  mode: keycloak\n",
		},
		{
			name: "bad timezone",
			body: "apis:\n  genai:\n    base_url: http://g\ndatabase:\n  redis:\n    address: r:6379\nproviders:\n  base_url: http://p\nassistant:\n  default_timezone: Mars/Olympus\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "audit", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=audit sslmode=disable", p.GetDSN())
}
