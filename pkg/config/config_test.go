// SPDX-License-Identifier: AGPL-3.0-or-later
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"MASKLINK_TRANSPORT_TIMEOUT_MS",
		"MASKLINK_TRANSPORT_MAX_REDIRECTS",
		"MASKLINK_TRANSPORT_ALLOWED_DOMAINS",
		"MASKLINK_DB_DSN",
		"MASKLINK_OAUTH_CLIENT_ID",
		"MASKLINK_OAUTH_CLIENT_SECRET",
		"MASKLINK_OAUTH_COOKIE_SECRET",
		"MASKLINK_MAIL_HOST",
		"MASKLINK_LISTEN_ADDR",
		"MASKLINK_LOG_LEVEL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10_000, cfg.Transport.TimeoutMs)
	assert.Equal(t, 3, cfg.Transport.MaxRedirects)
	assert.Empty(t, cfg.Transport.AllowedDomains)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Mail.Enabled)
	assert.Len(t, cfg.OAuth.CookieSecret, 32)
}

func TestLoadMailEnabledWhenHostSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("MASKLINK_MAIL_HOST", "smtp.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Mail.Enabled)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
}

func TestLoadAllowedDomainsParsed(t *testing.T) {
	clearEnv(t)
	t.Setenv("MASKLINK_TRANSPORT_ALLOWED_DOMAINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Transport.AllowedDomains)
}
