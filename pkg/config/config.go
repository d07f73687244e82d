// SPDX-License-Identifier: AGPL-3.0-or-later
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/gorilla/securecookie"

	"github.com/trellisfw/masklink/pkg/logger"
)

// Config is loaded once at process start from MASKLINK_-prefixed environment
// variables.
type Config struct {
	Transport      TransportConfig
	Database       DatabaseConfig
	OAuth          OAuthConfig
	Mail           MailConfig
	Server         ServerConfig
	Logger         LoggerConfig
	Admin          AdminConfig
	TrustedSigners []string // base64 Ed25519 public keys treated as trusted signers
}

// TransportConfig bounds the connection adapter's HTTP behavior.
type TransportConfig struct {
	TimeoutMs      int
	MaxRedirects   int
	AllowedDomains []string // empty means no allowlist restriction
}

// DatabaseConfig is the DSN for the verification audit store.
type DatabaseConfig struct {
	DSN string
}

// OAuthConfig backs the admin session's login flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	CookieSecret []byte
}

// MailConfig configures the operator alert mailer; disabled unless Host is set.
type MailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
	Enabled    bool
}

// ServerConfig is the HTTP listen address for the presentation API.
type ServerConfig struct {
	ListenAddr string
	BaseURL    string
}

// LoggerConfig selects slog level/format.
type LoggerConfig struct {
	Level string
}

// AdminConfig configures the admin session: cookie name, allowed operator email
// domain, and whether cookies are marked secure.
type AdminConfig struct {
	SessionName   string
	AllowedDomain string
	SecureCookies bool
}

// Load reads configuration from the environment. It returns an error only for
// malformed required values; everything else has a safe default.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Transport.TimeoutMs = getEnvInt("MASKLINK_TRANSPORT_TIMEOUT_MS", 10_000)
	cfg.Transport.MaxRedirects = getEnvInt("MASKLINK_TRANSPORT_MAX_REDIRECTS", 3)
	if allowed := getEnv("MASKLINK_TRANSPORT_ALLOWED_DOMAINS", ""); allowed != "" {
		for _, d := range strings.Split(allowed, ",") {
			if trimmed := strings.TrimSpace(d); trimmed != "" {
				cfg.Transport.AllowedDomains = append(cfg.Transport.AllowedDomains, trimmed)
			}
		}
	}

	cfg.Database.DSN = getEnv("MASKLINK_DB_DSN", "")

	cfg.OAuth.ClientID = getEnv("MASKLINK_OAUTH_CLIENT_ID", "")
	cfg.OAuth.ClientSecret = getEnv("MASKLINK_OAUTH_CLIENT_SECRET", "")
	cfg.OAuth.AuthURL = getEnv("MASKLINK_OAUTH_AUTH_URL", "")
	cfg.OAuth.TokenURL = getEnv("MASKLINK_OAUTH_TOKEN_URL", "")
	cfg.OAuth.UserInfoURL = getEnv("MASKLINK_OAUTH_USERINFO_URL", "")
	if scopes := getEnv("MASKLINK_OAUTH_SCOPES", ""); scopes != "" {
		cfg.OAuth.Scopes = strings.Split(scopes, ",")
	}
	cookieSecret, err := parseCookieSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to parse cookie secret: %w", err)
	}
	cfg.OAuth.CookieSecret = cookieSecret

	mailHost := getEnv("MASKLINK_MAIL_HOST", "")
	cfg.Mail.Enabled = mailHost != ""
	if cfg.Mail.Enabled {
		cfg.Mail.Host = mailHost
		cfg.Mail.Port = getEnvInt("MASKLINK_MAIL_PORT", 587)
		cfg.Mail.Username = getEnv("MASKLINK_MAIL_USERNAME", "")
		cfg.Mail.Password = getEnv("MASKLINK_MAIL_PASSWORD", "")
		cfg.Mail.From = getEnv("MASKLINK_MAIL_FROM", "masklink@localhost")
		if recipients := getEnv("MASKLINK_MAIL_ALERT_RECIPIENTS", ""); recipients != "" {
			for _, to := range strings.Split(recipients, ",") {
				if trimmed := strings.TrimSpace(to); trimmed != "" {
					cfg.Mail.Recipients = append(cfg.Mail.Recipients, trimmed)
				}
			}
		}
	}

	cfg.Server.ListenAddr = getEnv("MASKLINK_LISTEN_ADDR", ":8080")
	cfg.Server.BaseURL = getEnv("MASKLINK_BASE_URL", "http://localhost:8080")
	cfg.Logger.Level = getEnv("MASKLINK_LOG_LEVEL", "info")
	cfg.Admin.SessionName = getEnv("MASKLINK_ADMIN_SESSION_NAME", "masklink_admin")
	cfg.Admin.AllowedDomain = getEnv("MASKLINK_ADMIN_ALLOWED_DOMAIN", "")
	cfg.Admin.SecureCookies = getEnv("MASKLINK_ADMIN_SECURE_COOKIES", "true") != "false"

	if trusted := getEnv("MASKLINK_TRUSTED_SIGNERS", ""); trusted != "" {
		for _, kid := range strings.Split(trusted, ",") {
			if trimmed := strings.TrimSpace(kid); trimmed != "" {
				cfg.TrustedSigners = append(cfg.TrustedSigners, trimmed)
			}
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
		return result
	}
	return defaultValue
}

func parseCookieSecret() ([]byte, error) {
	raw := os.Getenv("MASKLINK_OAUTH_COOKIE_SECRET")
	if raw == "" {
		secret := securecookie.GenerateRandomKey(32)
		logger.Logger.Warn("masklink: admin cookie secret not set, sessions will reset on restart")
		return secret, nil
	}

	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && (len(decoded) == 32 || len(decoded) == 64) {
		return decoded, nil
	}

	return []byte(raw), nil
}
