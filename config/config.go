package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPHost string
	HTTPPort string
	MySQLDSN string

	LogLevel  string
	LogFormat string

	// Stage is one of "local", "development", "production". Cookies are
	// only marked Secure outside the local stage.
	Stage         string
	WebsiteDomain string
	CookieDomain  string

	// SessionEncryptionKey must be exactly 32 bytes (AES-256).
	SessionEncryptionKey string
	StatePassthroughKey  string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SignupWindowTTL time.Duration

	OAuthCallbackPath string
	Google            OAuthClient
	Microsoft         OAuthClient

	PasswordPolicy PasswordPolicy

	OwnerEmails []string
	BotUserID   string
}

type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

type PasswordPolicy struct {
	MinLength int
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must contain at least %d characters", p.MinLength)
	}
	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	sessionKey := os.Getenv("SESSION_ENCRYPTION_KEY")
	if len(sessionKey) != 32 {
		return nil, errors.New("SESSION_ENCRYPTION_KEY must be exactly 32 bytes")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		HTTPHost:             getEnv("HTTP_HOST", ""),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		MySQLDSN:             mysqlDSN,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		Stage:                getEnv("STAGE", "local"),
		WebsiteDomain:        getEnv("WEBSITE_DOMAIN", "http://localhost:8080"),
		CookieDomain:         getEnv("COOKIE_DOMAIN", "localhost"),
		SessionEncryptionKey: sessionKey,
		StatePassthroughKey:  getEnv("URL_STATE_PASSTHROUGH_KEY", ""),
		AccessTokenTTL:       getDurationEnv("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:      getDurationEnv("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		SignupWindowTTL:      getDurationEnv("SIGNUP_WINDOW_TTL", 7*24*time.Hour),
		OAuthCallbackPath:    getEnv("OAUTH_RESPONSE_ROUTE", "oauth/response"),
		Google: OAuthClient{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
		Microsoft: OAuthClient{
			ClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
			ClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
		},
		PasswordPolicy: PasswordPolicy{
			MinLength: getIntEnv("PASSWORD_MIN_LENGTH", 12),
		},
		OwnerEmails: splitEnv("OWNER_EMAILS"),
		BotUserID:   getEnv("BOT_UUID", "00000000-0000-0000-0000-000000000000"),
	}, nil
}

func (c *Config) DSN() string {
	return c.MySQLDSN
}

// CallbackURL is the absolute redirect URI registered with each identity
// provider.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.WebsiteDomain, "/") + "/" + strings.TrimLeft(c.OAuthCallbackPath, "/")
}

func (c *Config) SecureCookies() bool {
	return c.Stage != "local"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
