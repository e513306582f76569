package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	OTP       OTPConfig       `mapstructure:"otp"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// OTPConfig controls challenge issuance and verification.
type OTPConfig struct {
	Secret       string        `mapstructure:"secret"`        // HMAC key for code hashing
	CodeLength   int           `mapstructure:"code_length"`   // numeric digits
	TTL          time.Duration `mapstructure:"ttl"`           // challenge lifetime
	MaxAttempts  int           `mapstructure:"max_attempts"`  // verification attempts per challenge
	SingleActive bool          `mapstructure:"single_active"` // issuing invalidates the prior pending challenge
}

// WalletConfig controls ledger locking behavior.
type WalletConfig struct {
	LockTimeout time.Duration `mapstructure:"lock_timeout"` // bounded row-lock wait
}

// RateLimitConfig holds per-scope fixed-window limits.
type RateLimitConfig struct {
	OTPGeneration      ScopeRule `mapstructure:"otp_generation"`
	OTPVerification    ScopeRule `mapstructure:"otp_verification"`
	WalletAccess       ScopeRule `mapstructure:"wallet_access"`
	SensitiveOperation ScopeRule `mapstructure:"sensitive_operations"`
}

type ScopeRule struct {
	Limit  int64         `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: IBET_.
// Nested keys use underscore: IBET_DATABASE_HOST, IBET_OTP_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "ibet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "ibet")
	v.SetDefault("otp.secret", "")
	v.SetDefault("otp.code_length", 6)
	v.SetDefault("otp.ttl", "10m")
	v.SetDefault("otp.max_attempts", 3)
	v.SetDefault("otp.single_active", false)
	v.SetDefault("wallet.lock_timeout", "3s")
	v.SetDefault("ratelimit.otp_generation.limit", 5)
	v.SetDefault("ratelimit.otp_generation.window", "1h")
	v.SetDefault("ratelimit.otp_verification.limit", 3)
	v.SetDefault("ratelimit.otp_verification.window", "1m")
	v.SetDefault("ratelimit.wallet_access.limit", 10)
	v.SetDefault("ratelimit.wallet_access.window", "1m")
	v.SetDefault("ratelimit.sensitive_operations.limit", 20)
	v.SetDefault("ratelimit.sensitive_operations.window", "1h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: IBET_DATABASE_HOST -> database.host
	v.SetEnvPrefix("IBET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
