package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultJWTSecret   = "change-me-jwt-secret"
	defaultDatabaseURL = "bookingcore.db"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Rating   RatingConfig   `mapstructure:"rating"`
	Otel     OtelConfig     `mapstructure:"otel"`
	Log      LogConfig      `mapstructure:"log"`
}

type AppConfig struct {
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// RedisConfig with an empty Addr disables the rating cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RabbitMQConfig with an empty URL disables the payment signal.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type BookingConfig struct {
	Attempts    int     `mapstructure:"attempts"`
	TaxRate     float64 `mapstructure:"tax_rate"`
	DepositRate float64 `mapstructure:"deposit_rate"`
	Currency    string  `mapstructure:"currency"`
}

type RatingConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// OtelConfig with an empty Endpoint keeps the no-op tracer.
type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env (if present), an optional config/config.yaml and the
// environment. Env keys are upper-cased with dots as underscores, e.g.
// DATABASE_URL or RATING_RECONCILE_INTERVAL.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.App.Env = strings.ToLower(strings.TrimSpace(cfg.App.Env))
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "0.1.0")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("database.url", defaultDatabaseURL)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "bookings")

	v.SetDefault("booking.attempts", 3)
	v.SetDefault("booking.tax_rate", 0.0)
	v.SetDefault("booking.deposit_rate", 0.0)
	v.SetDefault("booking.currency", "USD")

	v.SetDefault("rating.reconcile_interval", time.Hour)
	v.SetDefault("rating.cache_ttl", 10*time.Minute)

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service_name", "bookingcore")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.Booking.Attempts < 1 {
		return fmt.Errorf("BOOKING_ATTEMPTS must be >= 1")
	}
	if cfg.Booking.TaxRate < 0 || cfg.Booking.TaxRate > 1 {
		return fmt.Errorf("BOOKING_TAX_RATE must be within [0, 1]")
	}
	if cfg.Booking.DepositRate < 0 || cfg.Booking.DepositRate > 1 {
		return fmt.Errorf("BOOKING_DEPOSIT_RATE must be within [0, 1]")
	}
	if len(cfg.Booking.Currency) != 3 {
		return fmt.Errorf("BOOKING_CURRENCY must be a 3-letter code")
	}
	if cfg.Rating.ReconcileInterval < 0 {
		return fmt.Errorf("RATING_RECONCILE_INTERVAL must be >= 0")
	}
	if cfg.Rating.CacheTTL <= 0 {
		return fmt.Errorf("RATING_CACHE_TTL must be > 0")
	}

	if cfg.IsProdLike() {
		if isEmptyOrDefault(cfg.JWT.Secret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.Database.URL, defaultDatabaseURL) {
			return fmt.Errorf("in prod/release DATABASE_URL must point at PostgreSQL")
		}
	}

	return nil
}

func (c *Config) IsProdLike() bool {
	return isProdLike(c.App.Env)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

// splitList accepts both yaml lists and a comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
