package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"banking-assistant/internal/api"
	"banking-assistant/internal/common/config"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewTestLogger(t)

	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, 5, time.Millisecond, log, "test dependency")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryWithBackoff(func() error {
		calls++
		return errors.New("connection refused")
	}, 2, time.Millisecond, log, "test dependency")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "test dependency failed after 2 attempts")

	calls = 0
	_ = retryWithBackoff(func() error { calls++; return nil }, 0, time.Millisecond, log, "once")
	assert.Equal(t, 1, calls)
}

func TestNewIdentifier(t *testing.T) {
	var header config.AuthConfig
	header.Mode = "header"
	header.TrustedHeader = "X-Customer-ID"
	assert.Equal(t, api.HeaderIdentifier{Header: "X-Customer-ID"}, newIdentifier(header))

	var kc config.AuthConfig
	kc.Mode = "keycloak"
	kc.Keycloak.URL = "http://keycloak:8080"
	kc.Keycloak.Realm = "bank"
	kc.Keycloak.CustomerAttr = "customer_id"
	id, ok := newIdentifier(kc).(api.KeycloakIdentifier)
	require.True(t, ok)
	assert.Equal(t, "customer_id", id.Claim)
	assert.NotNil(t, id.Introspector)
}

func TestOrchestratorConfig(t *testing.T) {
	cfg := &config.Config{Assistant: config.AssistantConfig{
		WorkingLanguage:    "de",
		ScreeningEnabled:   true,
		TranslationEnabled: true,
	}}
	got := orchestratorConfig(cfg)
	assert.Equal(t, "de", got.WorkingLanguage)
	assert.True(t, got.ScreeningEnabled)
	assert.False(t, got.ScreeningFailOpen)
	assert.True(t, got.TranslationEnabled)
}

func TestWriteReply(t *testing.T) {
	resp := &models.AssistantResponse{
		Answer:        "You have 2 accounts.",
		CorrelationID: "corr-1",
		Exit:          models.ExitCompleted,
		Tables: []models.Table{{
			Title:   "Accounts",
			Columns: []string{"Account", "Balance"},
			Rows:    [][]string{{"Main", "1520.35"}, {"Savings", "200.00"}},
		}},
	}

	var plain bytes.Buffer
	require.NoError(t, writeReply(&plain, resp, false))
	assert.Equal(t, "You have 2 accounts.\n\nAccounts\nAccount | Balance\nMain | 1520.35\nSavings | 200.00\n[completed] corr-1\n", plain.String())

	var js bytes.Buffer
	require.NoError(t, writeReply(&js, resp, true))
	assert.Contains(t, js.String(), `"exit": "completed"`)
	assert.Contains(t, js.String(), `"correlationId": "corr-1"`)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestAskCommand_RequiresCustomer(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"ask", "what is my balance"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer")
}
