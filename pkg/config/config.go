package config

import (
	"fmt"
	"time"
)

// Config is the root runtime configuration for the astroline bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Bot          BotConfig          `mapstructure:"bot" validate:"required"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Database     DatabaseConfig     `mapstructure:"database" validate:"required"`
	Redis        RedisConfig        `mapstructure:"redis" validate:"required"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Referral     ReferralConfig     `mapstructure:"referral"`
	Delivery     DeliveryConfig     `mapstructure:"delivery"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
}

// BotConfig holds Telegram transport settings.
type BotConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// Username is the bot account name without @, used to build referral
	// deep links.
	Username      string        `mapstructure:"username" validate:"required"`
	ProviderToken string        `mapstructure:"provider_token"`
	AdminIDs      []int64       `mapstructure:"admin_ids"`
	PollTimeout   time.Duration `mapstructure:"poll_timeout"`
}

// IsAdmin reports whether userID is in the configured admin list.
func (c BotConfig) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HTTPConfig configures the operational HTTP server (health, metrics).
type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            string        `mapstructure:"port" validate:"required"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password" validate:"required"`
	Name            string        `mapstructure:"name" validate:"required"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string `mapstructure:"addr" validate:"required"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables rotated file output alongside stdout.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SentryConfig controls error reporting.
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// SubscriptionConfig describes the paid subscription offering.
type SubscriptionConfig struct {
	// PriceAmount is in the smallest currency unit (kopecks for RUB).
	PriceAmount int64  `mapstructure:"price_amount" validate:"gt=0"`
	Currency    string `mapstructure:"currency" validate:"required"`
	PeriodDays  int    `mapstructure:"period_days" validate:"gt=0"`
}

// Period returns the subscription length as a duration.
func (c SubscriptionConfig) Period() time.Duration {
	return time.Duration(c.PeriodDays) * 24 * time.Hour
}

// ReferralConfig describes the referral reward.
type ReferralConfig struct {
	BonusPoints int64 `mapstructure:"bonus_points" validate:"gte=0"`
}

// DeliveryConfig controls daily forecast delivery.
type DeliveryConfig struct {
	// DefaultMessageTime is used when a registering user asks for the
	// default slot, HH:MM in 24h format.
	DefaultMessageTime string `mapstructure:"default_message_time" validate:"required"`
}

// RateLimitConfig controls per-user message throttling.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerUser   RateLimitRule `mapstructure:"per_user"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

// RateLimitRule is a limit over a time window; Window uses Go duration syntax.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}
