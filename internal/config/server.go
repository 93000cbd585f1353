// Package config provides configuration management for parkadmin.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// Defaults applied when the corresponding variable is unset or invalid.
const (
	DefaultListenAddr        = ":8080"
	DefaultBackendTimeout    = 30 * time.Second
	DefaultReconcileDelay    = time.Second
	DefaultHistoryCacheTTL   = 5 * time.Minute
	DefaultRefreshSchedule   = "@every 5m"
	DefaultRateLimitRequests = 100
	DefaultRateLimitPeriod   = time.Minute
	DefaultUnassignScope     = "global"
	DefaultShutdownTimeout   = 30 * time.Second
)

// OAuthConfig holds OAuth2 client credentials for the backend.
type OAuthConfig struct {
	TokenURL     string   `yaml:"token_url,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// Enabled reports whether client credentials are configured.
func (o OAuthConfig) Enabled() bool {
	return o.TokenURL != "" || o.ClientID != "" || o.ClientSecret != ""
}

// BackendConfig describes how to reach the parking backend.
type BackendConfig struct {
	URL     string
	Token   string
	OAuth   OAuthConfig
	Timeout time.Duration
	Proxy   ProxyConfig
}

// Validate checks that the backend can be addressed and authenticated.
func (b BackendConfig) Validate() error {
	if b.URL == "" {
		return errors.New("backend URL is required")
	}
	u, err := url.Parse(b.URL)
	if err != nil {
		return fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("backend URL has no host")
	}
	if b.OAuth.Enabled() {
		if b.OAuth.TokenURL == "" || b.OAuth.ClientID == "" || b.OAuth.ClientSecret == "" {
			return errors.New("oauth requires token URL, client ID, and client secret")
		}
	}
	return nil
}

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment Environment
	ListenAddr  string
	LogLevel    string

	Backend BackendConfig

	ReconcileDelay     time.Duration // wait before the post-mutation refetch
	UnassignGuardScope string        // "global" or "tenant"
	HistoryCacheTTL    time.Duration // 0 disables history caching
	RedisURL           string        // history cache and rate limit store; memory when empty
	RefreshSchedule    string        // cron expression for periodic reloads, empty to disable

	RateLimitRequests int
	RateLimitPeriod   time.Duration
	CORSOrigins       []string

	ShutdownTimeout time.Duration // bound on draining mutations and stopping the server
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			listenAddr = ":" + port
		} else {
			listenAddr = DefaultListenAddr
		}
	}

	scope := strings.ToLower(strings.TrimSpace(os.Getenv("UNASSIGN_GUARD_SCOPE")))
	if scope == "" {
		scope = DefaultUnassignScope
	}

	rateLimit := getEnvInt("RATE_LIMIT_REQUESTS", DefaultRateLimitRequests)
	if rateLimit < 0 {
		rateLimit = DefaultRateLimitRequests
	}

	schedule := DefaultRefreshSchedule
	if v, ok := os.LookupEnv("REFRESH_SCHEDULE"); ok {
		schedule = strings.TrimSpace(v)
	}

	return ServerConfig{
		Environment: env,
		ListenAddr:  listenAddr,
		LogLevel:    getEnvString("LOG_LEVEL", "info"),
		Backend: BackendConfig{
			URL:   strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
			Token: os.Getenv("BACKEND_TOKEN"),
			OAuth: OAuthConfig{
				TokenURL:     os.Getenv("BACKEND_OAUTH_TOKEN_URL"),
				ClientID:     os.Getenv("BACKEND_OAUTH_CLIENT_ID"),
				ClientSecret: os.Getenv("BACKEND_OAUTH_CLIENT_SECRET"),
				Scopes:       getEnvList("BACKEND_OAUTH_SCOPES"),
			},
			Timeout: getEnvDuration("BACKEND_TIMEOUT", DefaultBackendTimeout),
			Proxy:   ProxyFromEnv(),
		},
		ReconcileDelay:     getEnvDuration("RECONCILE_DELAY", DefaultReconcileDelay),
		UnassignGuardScope: scope,
		HistoryCacheTTL:    getEnvDuration("HISTORY_CACHE_TTL", DefaultHistoryCacheTTL),
		RedisURL:           os.Getenv("REDIS_URL"),
		RefreshSchedule:    schedule,
		RateLimitRequests:  rateLimit,
		RateLimitPeriod:    getEnvDuration("RATE_LIMIT_PERIOD", DefaultRateLimitPeriod),
		CORSOrigins:        getEnvList("CORS_ORIGINS"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
	}
}

// Validate checks the configuration for values the server cannot start with.
func (c ServerConfig) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if c.UnassignGuardScope != "global" && c.UnassignGuardScope != "tenant" {
		return fmt.Errorf("UNASSIGN_GUARD_SCOPE must be global or tenant, got %q", c.UnassignGuardScope)
	}
	if c.RateLimitRequests > 0 && c.RateLimitPeriod <= 0 {
		return errors.New("RATE_LIMIT_PERIOD must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration reads a Go duration ("1s", "5m"), returning the default if unset,
// invalid, or negative.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
