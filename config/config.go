package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/clinicore/scheduling-api/internal/service/appointment"
	"github.com/clinicore/scheduling-api/pkg/logger"
	"github.com/clinicore/scheduling-api/pkg/messaging/redis"
	"github.com/clinicore/scheduling-api/pkg/worker"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Availability AvailabilityConfig `mapstructure:"availability"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	Mode           string `mapstructure:"mode"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig connects either through URL or through the discrete
// fields; URL wins when both are set.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url"`
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	Name                   string `mapstructure:"name"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

func (c RedisConfig) BrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

type OutboxConfig struct {
	Channel         string        `mapstructure:"channel"`
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

func (c OutboxConfig) ProcessorConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		Channel:      c.Channel,
		BatchSize:    c.BatchSize,
		PollInterval: c.PollInterval,
		MaxRetries:   c.MaxRetries,
		RetryDelay:   c.RetryDelay,
	}
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type AvailabilityConfig struct {
	DayStartHour int `mapstructure:"day_start_hour"`
	DayEndHour   int `mapstructure:"day_end_hour"`
}

func (c AvailabilityConfig) ServiceConfig() appointment.AvailabilityConfig {
	return appointment.AvailabilityConfig{
		DayStartHour: c.DayStartHour,
		DayEndHour:   c.DayEndHour,
	}
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (c LogConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:  logger.ParseLevel(c.Level),
		Pretty: c.Pretty,
	}
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.timeout_seconds", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.name", "scheduling")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 25)
	viper.SetDefault("database.conn_max_lifetime_minutes", 5)

	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", "100ms")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)

	viper.SetDefault("outbox.channel", "appointments")
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.poll_interval", "5s")
	viper.SetDefault("outbox.max_retries", 3)
	viper.SetDefault("outbox.retry_delay", "1m")
	viper.SetDefault("outbox.retention_days", 7)
	viper.SetDefault("outbox.cleanup_interval", "1h")

	viper.SetDefault("rate_limit.rps", 50)
	viper.SetDefault("rate_limit.burst", 100)

	viper.SetDefault("cache.ttl", "5m")
	viper.SetDefault("cache.cleanup_interval", "10m")

	viper.SetDefault("availability.day_start_hour", 8)
	viper.SetDefault("availability.day_end_hour", 18)

	viper.SetDefault("cors.allowed_origins", []string{"*"})

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", false)
}

// LoadConfig reads config.yaml, falling back to defaults when no file
// is present, then applies environment overrides (DATABASE_URL,
// REDIS_URL, SERVER_PORT and so on).
func LoadConfig() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return &config, nil
}
