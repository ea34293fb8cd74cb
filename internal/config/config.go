// Package config provides configuration management for the items API server.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key when read from the
// environment, e.g. server_port is APP_SERVER_PORT.
const EnvPrefix = "APP"

// EnvConfigFile names an optional YAML, JSON or TOML file read before the
// environment. Environment variables override file values.
const EnvConfigFile = "APP_CONFIG_FILE"

// Configuration keys.
const (
	KeyServerPort          = "server_port"
	KeyLogLevel            = "log_level"
	KeyShutdownTimeout     = "shutdown_timeout"
	KeyMetricsEnabled      = "metrics_enabled"
	KeyDebug               = "debug"
	KeyStoreDriver         = "store_driver"
	KeyStoreDSN            = "store_dsn"
	KeySeedFile            = "seed_file"
	KeyTokenVerifier       = "token_verifier"
	KeyJWTSecret           = "jwt_secret"
	KeyJWTIssuer           = "jwt_issuer"
	KeyAccessTokenLifetime = "access_token_lifetime"
	KeyAuthUsers           = "auth_users"
	KeyCookieSecure        = "cookie_secure"
	KeyCookieSameSite      = "cookie_samesite"
	KeyCookieDomain        = "cookie_domain"
	KeyCookieHTTPOnly      = "cookie_http_only"
	KeyOIDCIssuerURL       = "oidc_issuer_url"
	KeyOIDCAudience        = "oidc_audience"
	KeyCORSAllowedOrigins  = "cors_allowed_origins"
)

// Default configuration values.
const (
	DefaultServerPort          = 8080
	DefaultLogLevel            = "info"
	DefaultShutdownTimeout     = 30 * time.Second
	DefaultMetricsEnabled      = true
	DefaultStoreDriver         = "memory"
	DefaultTokenVerifier       = VerifierLocal
	DefaultJWTIssuer           = "items-api"
	DefaultAccessTokenLifetime = 5 * time.Minute
	DefaultCookieSameSite      = "Lax"
	DefaultCORSAllowedOrigins  = "*"

	// MinJWTSecretLength mirrors the HS256 key size.
	MinJWTSecretLength = 32
)

// Token verifier kinds.
const (
	VerifierLocal = "local"
	VerifierOIDC  = "oidc"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int           `mapstructure:"server_port"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
	Debug           bool          `mapstructure:"debug"`

	// Storage: memory, sqlite or mysql.
	StoreDriver string `mapstructure:"store_driver"`
	StoreDSN    string `mapstructure:"store_dsn"`
	SeedFile    string `mapstructure:"seed_file"`

	// Token verification: local (HS256) or oidc.
	TokenVerifier       string        `mapstructure:"token_verifier"`
	JWTSecret           string        `mapstructure:"jwt_secret"`
	JWTIssuer           string        `mapstructure:"jwt_issuer"`
	AccessTokenLifetime time.Duration `mapstructure:"access_token_lifetime"`

	// Login users (format: "user1:bcrypt_hash,user2:bcrypt_hash").
	AuthUsers string `mapstructure:"auth_users"`

	// access_token cookie attributes.
	CookieSecure   bool   `mapstructure:"cookie_secure"`
	CookieSameSite string `mapstructure:"cookie_samesite"`
	CookieDomain   string `mapstructure:"cookie_domain"`
	CookieHTTPOnly bool   `mapstructure:"cookie_http_only"`

	// OIDC settings.
	OIDCIssuerURL string `mapstructure:"oidc_issuer_url"`
	OIDCAudience  string `mapstructure:"oidc_audience"`

	// Comma-separated list, "*" allows any origin.
	CORSAllowedOrigins string `mapstructure:"cors_allowed_origins"`
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidStoreDriver     = errors.New("store driver must be one of: memory, sqlite, mysql")
	ErrStoreDSNRequired       = errors.New("store DSN must be set for sqlite and mysql drivers")
	ErrInvalidTokenVerifier   = errors.New("token verifier must be one of: local, oidc")
	ErrWeakJWTSecret          = fmt.Errorf(
		"JWT secret must be at least %d bytes when token verifier is local", MinJWTSecretLength,
	)
	ErrInvalidTokenLifetime = errors.New("access token lifetime must be positive")
	ErrInvalidOIDCConfig    = errors.New(
		"OIDC issuer URL must be set when token verifier is oidc",
	)
	ErrInvalidCookieSameSite = errors.New("cookie SameSite must be one of: Lax, Strict, None")
	ErrInsecureSameSiteNone  = errors.New("cookie SameSite=None requires cookie_secure")
)

// Load reads configuration from an optional file and the environment,
// applies defaults and validates the result.
func Load() (*Config, error) {
	v := newViper()

	if path := os.Getenv(EnvConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyServerPort, DefaultServerPort)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)
	v.SetDefault(KeyMetricsEnabled, DefaultMetricsEnabled)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyStoreDriver, DefaultStoreDriver)
	v.SetDefault(KeyStoreDSN, "")
	v.SetDefault(KeySeedFile, "")
	v.SetDefault(KeyTokenVerifier, DefaultTokenVerifier)
	v.SetDefault(KeyJWTSecret, "")
	v.SetDefault(KeyJWTIssuer, DefaultJWTIssuer)
	v.SetDefault(KeyAccessTokenLifetime, DefaultAccessTokenLifetime)
	v.SetDefault(KeyAuthUsers, "")
	v.SetDefault(KeyCookieSecure, false)
	v.SetDefault(KeyCookieSameSite, DefaultCookieSameSite)
	v.SetDefault(KeyCookieDomain, "")
	v.SetDefault(KeyCookieHTTPOnly, true)
	v.SetDefault(KeyOIDCIssuerURL, "")
	v.SetDefault(KeyOIDCAudience, "")
	v.SetDefault(KeyCORSAllowedOrigins, DefaultCORSAllowedOrigins)

	return v
}

func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

func (c *Config) validateStore() error {
	switch c.StoreDriver {
	case "memory":
		return nil
	case "sqlite", "mysql":
		if c.StoreDSN == "" {
			return ErrStoreDSNRequired
		}
		return nil
	default:
		return ErrInvalidStoreDriver
	}
}

// validateAuth validates token verification and cookie settings.
func (c *Config) validateAuth() error {
	switch c.TokenVerifier {
	case VerifierLocal:
		if len(c.JWTSecret) < MinJWTSecretLength {
			return ErrWeakJWTSecret
		}
		if c.AccessTokenLifetime <= 0 {
			return ErrInvalidTokenLifetime
		}
	case VerifierOIDC:
		if c.OIDCIssuerURL == "" {
			return ErrInvalidOIDCConfig
		}
	default:
		return ErrInvalidTokenVerifier
	}

	if _, ok := parseSameSite(c.CookieSameSite); !ok {
		return ErrInvalidCookieSameSite
	}

	if strings.EqualFold(c.CookieSameSite, "none") && !c.CookieSecure {
		return ErrInsecureSameSiteNone
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// SameSite returns the configured cookie SameSite mode.
func (c *Config) SameSite() http.SameSite {
	mode, _ := parseSameSite(c.CookieSameSite)
	return mode
}

// AllowedOrigins splits CORSAllowedOrigins into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func parseSameSite(s string) (http.SameSite, bool) {
	switch strings.ToLower(s) {
	case "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return http.SameSiteDefaultMode, false
	}
}
