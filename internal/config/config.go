// Package config provides configuration management for the API client.
// It loads settings from environment variables with sensible defaults and
// validates them so the client fails fast on a bad setup.
//
// Environment Variables:
//
// OAuth2 Settings:
//   - OAUTH_CLIENT_ID: Client identifier (required)
//   - OAUTH_CLIENT_SECRET: Client secret (required)
//   - OAUTH_AUTH_URL: Authorization server URL (required)
//   - OAUTH_TOKEN_URL: Token server URL (required)
//   - OAUTH_SCOPES: Scopes separated by spaces or commas
//   - OAUTH_USER_ID: Key the token is stored under (default: default)
//   - OAUTH_REDIRECT_HOST: Loopback address of the redirect receiver (default: 127.0.0.1:0)
//   - ACCESS_METHOD: "header" or "query" (default: header)
//
// Token Store:
//   - TOKEN_STORE_TYPE: memory, file, redis, sqlite or postgres (default: file)
//   - TOKEN_STORE_PATH: Directory of the file store (default: $XDG_CONFIG_HOME/api-client/tokens)
//   - TOKEN_STORE_DSN: Database DSN (required for sqlite and postgres)
//   - TOKEN_ENCRYPTION_KEY: Passphrase encrypting stored tokens, at least 16 characters
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// API Settings:
//   - API_NAME: Service name used in logs and errors (default: api)
//   - API_BASE_URI: Service root URI (required)
//   - API_BASE_PATH: Path appended to the base URI
//   - API_FEATURES: Comma separated service features, e.g. dataWrapper
//   - APPLICATION_NAME: Sent in the User-Agent header (default: api-client)
//   - MAX_URL_LENGTH: Longest GET URL before it is sent as POST, 0 disables (default: 2048)
//   - GZIP_ENABLED: Negotiate compressed responses (default: true)
//   - REQUESTS_PER_SECOND: Outbound rate limit per host, 0 disables (default: 0)
//   - RESPONSE_CACHE_TYPE: none, local, redis or two_tier ETag cache of GET responses (default: none)
//   - RESPONSE_CACHE_TTL: How long a cached response is kept, e.g. 30m or 7d (default: 1h)
//
// HTTP Transport:
//   - HTTP_TIMEOUT: Overall timeout of one HTTP attempt (default: 100s)
//   - HTTP_MAX_IDLE_CONNS: Idle connections kept across all hosts (default: 100)
//   - HTTP_IDLE_CONN_TIMEOUT: How long an idle connection is kept (default: 90s)
//   - HTTP_KEEPALIVES: Reuse connections between requests (default: true)
//   - HTTP_INSECURE_SKIP_VERIFY: Skip TLS certificate verification, for test servers only (default: false)
//
// Background Refresh:
//   - REFRESH_SCHEDULE: Cron schedule of proactive token refresh (default: @every 1m)
//
// Logging:
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_FILE: Log file path; stderr when unset
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"api-client/internal/common/errors"
	commonhttp "api-client/internal/common/http"
	"api-client/internal/common/utils"
	"api-client/internal/common/validation"

	"github.com/samber/lo"
)

// Config holds all configuration values of the API client. Numeric settings
// are kept as strings and checked by Validate.
type Config struct {
	// OAuth2 settings
	ClientID     string `json:"OAUTH_CLIENT_ID" validate:"required"`
	ClientSecret string `json:"OAUTH_CLIENT_SECRET" validate:"required"`
	AuthURL      string `json:"OAUTH_AUTH_URL" validate:"required,absolute_url"`
	TokenURL     string `json:"OAUTH_TOKEN_URL" validate:"required,absolute_url"`
	Scopes       string `json:"OAUTH_SCOPES"`
	UserID       string `json:"OAUTH_USER_ID" validate:"required"`
	RedirectHost string `json:"OAUTH_REDIRECT_HOST" validate:"required"`
	AccessMethod string `json:"ACCESS_METHOD" validate:"oneof=header query"`

	// Token store
	TokenStoreType     string `json:"TOKEN_STORE_TYPE" validate:"oneof=memory file redis sqlite postgres"`
	TokenStorePath     string `json:"TOKEN_STORE_PATH"`
	TokenStoreDSN      string `json:"TOKEN_STORE_DSN"`
	TokenEncryptionKey string `json:"TOKEN_ENCRYPTION_KEY" validate:"omitempty,min=16"`

	// Redis configuration
	RedisAddress  string `json:"REDIS_ADDRESS"`
	RedisPassword string `json:"REDIS_PASSWORD"`
	RedisDB       string `json:"REDIS_DB"`
	RedisPoolSize string `json:"REDIS_POOL_SIZE"`

	// API settings
	APIName           string `json:"API_NAME" validate:"required"`
	APIBaseURI        string `json:"API_BASE_URI" validate:"required,absolute_url"`
	APIBasePath       string `json:"API_BASE_PATH"`
	APIFeatures       string `json:"API_FEATURES"`
	ApplicationName   string `json:"APPLICATION_NAME"`
	MaxURLLength      string `json:"MAX_URL_LENGTH"`
	GZipEnabled       bool   `json:"GZIP_ENABLED"`
	RequestsPerSecond string `json:"REQUESTS_PER_SECOND"`
	ResponseCacheType string `json:"RESPONSE_CACHE_TYPE" validate:"oneof=none local redis two_tier"`
	ResponseCacheTTL  string `json:"RESPONSE_CACHE_TTL"`

	// HTTP transport
	HTTPTimeout            string `json:"HTTP_TIMEOUT"`
	HTTPMaxIdleConns       string `json:"HTTP_MAX_IDLE_CONNS"`
	HTTPIdleConnTimeout    string `json:"HTTP_IDLE_CONN_TIMEOUT"`
	HTTPKeepAlives         bool   `json:"HTTP_KEEPALIVES"`
	HTTPInsecureSkipVerify bool   `json:"HTTP_INSECURE_SKIP_VERIFY"`

	RefreshSchedule string `json:"REFRESH_SCHEDULE" validate:"required,cron_expression"`

	// Logging
	LogLevel string `json:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFile  string `json:"LOG_FILE"`
}

// Load creates a Config from environment variables, using defaults for
// anything unset. It does not validate; call Validate on the result.
func Load() *Config {
	return &Config{
		ClientID:     getEnv("OAUTH_CLIENT_ID", ""),
		ClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
		AuthURL:      getEnv("OAUTH_AUTH_URL", ""),
		TokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
		Scopes:       getEnv("OAUTH_SCOPES", ""),
		UserID:       getEnv("OAUTH_USER_ID", "default"),
		RedirectHost: getEnv("OAUTH_REDIRECT_HOST", "127.0.0.1:0"),
		AccessMethod: strings.ToLower(getEnv("ACCESS_METHOD", "header")),

		TokenStoreType:     strings.ToLower(getEnv("TOKEN_STORE_TYPE", "file")),
		TokenStorePath:     getEnv("TOKEN_STORE_PATH", ""),
		TokenStoreDSN:      getEnv("TOKEN_STORE_DSN", ""),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		APIName:           getEnv("API_NAME", "api"),
		APIBaseURI:        getEnv("API_BASE_URI", ""),
		APIBasePath:       getEnv("API_BASE_PATH", ""),
		APIFeatures:       getEnv("API_FEATURES", ""),
		ApplicationName:   getEnv("APPLICATION_NAME", "api-client"),
		MaxURLLength:      getEnv("MAX_URL_LENGTH", "2048"),
		GZipEnabled:       getBoolEnv("GZIP_ENABLED", true),
		RequestsPerSecond: getEnv("REQUESTS_PER_SECOND", "0"),
		ResponseCacheType: strings.ToLower(getEnv("RESPONSE_CACHE_TYPE", "none")),
		ResponseCacheTTL:  getEnv("RESPONSE_CACHE_TTL", "1h"),

		HTTPTimeout:            getEnv("HTTP_TIMEOUT", "100s"),
		HTTPMaxIdleConns:       getEnv("HTTP_MAX_IDLE_CONNS", "100"),
		HTTPIdleConnTimeout:    getEnv("HTTP_IDLE_CONN_TIMEOUT", "90s"),
		HTTPKeepAlives:         getBoolEnv("HTTP_KEEPALIVES", true),
		HTTPInsecureSkipVerify: getBoolEnv("HTTP_INSECURE_SKIP_VERIFY", false),

		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 1m"),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// getEnv retrieves an environment variable or defaultValue when unset or empty
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the values strconv.ParseBool does and falls back to
// defaultValue for anything else.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields and formats, then the settings that
// depend on each other. Errors name the environment variable at fault.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return errors.ConfigError(appErr.Message)
		}
		return errors.ConfigError(err.Error())
	}

	if _, _, err := net.SplitHostPort(c.RedirectHost); err != nil {
		return errors.ConfigError("OAUTH_REDIRECT_HOST must be host:port, e.g. 127.0.0.1:8080")
	}

	switch c.TokenStoreType {
	case "sqlite", "postgres":
		if c.TokenStoreDSN == "" {
			return errors.ConfigError(fmt.Sprintf("TOKEN_STORE_DSN is required when TOKEN_STORE_TYPE is %s", c.TokenStoreType))
		}
	case "redis":
		if c.RedisAddress == "" {
			return errors.ConfigError("REDIS_ADDRESS is required when TOKEN_STORE_TYPE is redis")
		}
	}

	if c.ResponseCacheType == "redis" || c.ResponseCacheType == "two_tier" {
		if c.RedisAddress == "" {
			return errors.ConfigError(fmt.Sprintf("REDIS_ADDRESS is required when RESPONSE_CACHE_TYPE is %s", c.ResponseCacheType))
		}
	}
	if ttl, err := utils.ParseDuration(c.ResponseCacheTTL); err != nil || ttl <= 0 {
		return errors.ConfigError("RESPONSE_CACHE_TTL must be a positive duration, e.g. 30m or 1d")
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return errors.ConfigError("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return errors.ConfigError("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if length, err := strconv.Atoi(c.MaxURLLength); err != nil || length < 0 {
		return errors.ConfigError("MAX_URL_LENGTH must be zero or a positive number")
	}

	if rps, err := strconv.ParseFloat(c.RequestsPerSecond, 64); err != nil || rps < 0 {
		return errors.ConfigError("REQUESTS_PER_SECOND must be zero or a positive number")
	}

	if timeout, err := utils.ParseDuration(c.HTTPTimeout); err != nil || timeout <= 0 {
		return errors.ConfigError("HTTP_TIMEOUT must be a positive duration, e.g. 30s")
	}
	if conns, err := strconv.Atoi(c.HTTPMaxIdleConns); err != nil || conns < 0 {
		return errors.ConfigError("HTTP_MAX_IDLE_CONNS must be zero or a positive number")
	}
	if idle, err := utils.ParseDuration(c.HTTPIdleConnTimeout); err != nil || idle < 0 {
		return errors.ConfigError("HTTP_IDLE_CONN_TIMEOUT must be a duration, e.g. 90s; 0 keeps idle connections forever")
	}

	return nil
}

// ScopeList splits OAUTH_SCOPES on spaces and commas, dropping repeats
func (c *Config) ScopeList() []string {
	return lo.Uniq(splitList(c.Scopes))
}

// FeatureList splits API_FEATURES on spaces and commas, dropping repeats
func (c *Config) FeatureList() []string {
	return lo.Uniq(splitList(c.APIFeatures))
}

// MaxURLLengthValue returns MAX_URL_LENGTH; call after Validate
func (c *Config) MaxURLLengthValue() int {
	length, _ := strconv.Atoi(c.MaxURLLength)
	return length
}

// RequestsPerSecondValue returns REQUESTS_PER_SECOND; call after Validate
func (c *Config) RequestsPerSecondValue() float64 {
	rps, _ := strconv.ParseFloat(c.RequestsPerSecond, 64)
	return rps
}

// ResponseCacheTTLValue returns RESPONSE_CACHE_TTL; call after Validate
func (c *Config) ResponseCacheTTLValue() time.Duration {
	ttl, _ := utils.ParseDuration(c.ResponseCacheTTL)
	return ttl
}

// HTTPClientOptions returns the transport settings every HTTP client is
// built with; call after Validate
func (c *Config) HTTPClientOptions() []commonhttp.ClientOption {
	timeout, _ := utils.ParseDuration(c.HTTPTimeout)
	conns, _ := strconv.Atoi(c.HTTPMaxIdleConns)
	idle, _ := utils.ParseDuration(c.HTTPIdleConnTimeout)

	opts := []commonhttp.ClientOption{
		commonhttp.WithTimeout(timeout),
		commonhttp.WithMaxIdleConns(conns),
		commonhttp.WithIdleConnTimeout(idle),
	}
	if !c.HTTPKeepAlives {
		opts = append(opts, commonhttp.WithoutKeepAlives())
	}
	if c.HTTPInsecureSkipVerify {
		opts = append(opts, commonhttp.WithInsecureSkipVerify())
	}
	return opts
}

// UsesRedis reports whether the token store or the response cache needs Redis
func (c *Config) UsesRedis() bool {
	return c.TokenStoreType == "redis" || c.ResponseCacheType == "redis" || c.ResponseCacheType == "two_tier"
}

// RedisDBValue returns REDIS_DB; call after Validate
func (c *Config) RedisDBValue() int {
	db, _ := strconv.Atoi(c.RedisDB)
	return db
}

// RedisPoolSizeValue returns REDIS_POOL_SIZE; call after Validate
func (c *Config) RedisPoolSizeValue() int {
	size, _ := strconv.Atoi(c.RedisPoolSize)
	return size
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
