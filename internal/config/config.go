package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName        = "OneBills"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultAccessTTL      = time.Hour
	defaultRefreshTTL     = 30 * 24 * time.Hour
	defaultOTPTTL         = 5 * time.Minute
	defaultCatalogTTL     = 10 * time.Minute
	defaultBcryptCost     = 12
	devJWTSecret          = "onebills-development-secret"
)

// Config captures application runtime configuration loaded from environment variables.
// The KYC outcome callback is only served when KYCWebhookSecret is set.
type Config struct {
	AppName          string        `mapstructure:"APP_NAME"`
	AppEnv           string        `mapstructure:"APP_ENV"`
	Port             string        `mapstructure:"PORT"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	ShutdownPeriod   time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	IdempotencyTTL   time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL   time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	OTPTTL           time.Duration `mapstructure:"OTP_TTL"`
	OTPMaxPerWindow  int           `mapstructure:"OTP_MAX_PER_WINDOW"`
	SignInPerMinute  int           `mapstructure:"SIGNIN_MAX_PER_MINUTE"`
	BcryptCost       int           `mapstructure:"BCRYPT_COST"`
	CatalogCacheTTL  time.Duration `mapstructure:"CATALOG_CACHE_TTL"`
	DeviceID         string        `mapstructure:"DEVICE_ID"`
	KYCWebhookSecret string        `mapstructure:"KYC_WEBHOOK_SECRET"`
}

// Load reads .env (if present) and the environment into a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !missingConfig(err) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	v.AutomaticEnv()

	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay)
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", defaultAccessTTL)
	v.SetDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL)
	v.SetDefault("OTP_TTL", defaultOTPTTL)
	v.SetDefault("OTP_MAX_PER_WINDOW", 3)
	v.SetDefault("SIGNIN_MAX_PER_MINUTE", 5)
	v.SetDefault("BCRYPT_COST", defaultBcryptCost)
	v.SetDefault("CATALOG_CACHE_TTL", defaultCatalogTTL)
	v.SetDefault("DEVICE_ID", "default")
	v.SetDefault("KYC_WEBHOOK_SECRET", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
		cfg.JWTSecret = devJWTSecret
	}
	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if cfg.OTPTTL <= 0 || cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return Config{}, fmt.Errorf("token and OTP lifetimes must be positive")
	}

	return cfg, nil
}

func missingConfig(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// IsDev reports whether the app runs in a development environment, where
// Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether diagnostics should be suppressed.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
