package config

import (
	"time"

	pkgconfig "github.com/flenzi/company-service/pkg/config"
	"github.com/flenzi/company-service/pkg/database"
	"github.com/flenzi/company-service/pkg/log"
	"github.com/flenzi/company-service/pkg/middleware"
	"github.com/flenzi/company-service/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig `mapstructure:"grpc"`
	Database  database.Config
	Redis     RedisConfig
	Cache     CacheConfig
	Events    pubsub.Config
	RateLimit middleware.RateLimitConfig `mapstructure:"rate_limit"`
	IDs       IDsConfig                  `mapstructure:"ids"`
	Metrics   MetricsConfig
	Log       log.Config
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig controls the read-through entity cache. The cache is skipped
// entirely when disabled.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Prefix  string        `mapstructure:"prefix"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// IDsConfig tunes the id toolbox schemes.
type IDsConfig struct {
	NanoIDSize     int    `mapstructure:"nanoid_size"`
	NanoIDAlphabet string `mapstructure:"nanoid_alphabet"`
	CUID2Length    int    `mapstructure:"cuid2_length"`
	MaxBatch       int    `mapstructure:"max_batch"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Load reads ./config/config.yaml (optional) and the environment.
func Load() (*Config, error) {
	return LoadFrom("./config")
}

// LoadFrom is Load with an explicit config directory.
func LoadFrom(path string) (*Config, error) {
	v, err := pkgconfig.Load(path, "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.port", 9090)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "company")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.time_zone", "UTC")
	v.SetDefault("database.file_path", "./data/company.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.prefix", "company")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("events.driver", pubsub.DriverNone)
	v.SetDefault("events.redis.address", "localhost:6379")
	v.SetDefault("events.redis.pool_size", 10)
	v.SetDefault("events.redis.read_timeout", "3s")
	v.SetDefault("events.redis.write_timeout", "3s")
	v.SetDefault("events.kafka.brokers", "localhost:9092")
	v.SetDefault("events.kafka.group_id", "company-service")
	v.SetDefault("events.kafka.partitions", 4)
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.idle_ttl", "5m")
	v.SetDefault("ids.nanoid_size", 21)
	v.SetDefault("ids.nanoid_alphabet", "")
	v.SetDefault("ids.cuid2_length", 24)
	v.SetDefault("ids.max_batch", 1000)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "company")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "company-service")

	// Bind environment variables
	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":                "PORT",
		"grpc.enabled":               "GRPC_ENABLED",
		"grpc.port":                  "GRPC_PORT",
		"database.driver":            "DB_DRIVER",
		"database.host":              "DB_HOST",
		"database.port":              "DB_PORT",
		"database.user":              "DB_USER",
		"database.password":          "DB_PASSWORD",
		"database.dbname":            "DB_NAME",
		"database.sslmode":           "DB_SSLMODE",
		"database.file_path":         "DB_FILE_PATH",
		"database.max_idle_conns":    "DB_MAX_IDLE_CONNS",
		"database.max_open_conns":    "DB_MAX_OPEN_CONNS",
		"database.conn_max_lifetime": "DB_CONN_MAX_LIFETIME",
		"redis.address":              "REDIS_ADDRESS",
		"redis.password":             "REDIS_PASSWORD",
		"cache.enabled":              "CACHE_ENABLED",
		"events.driver":              "EVENTS_DRIVER",
		"events.redis.address":       "EVENTS_REDIS_ADDRESS",
		"events.kafka.brokers":       "KAFKA_BROKERS",
		"rate_limit.enabled":         "RATE_LIMIT_ENABLED",
		"rate_limit.rps":             "RATE_LIMIT_RPS",
		"rate_limit.burst":           "RATE_LIMIT_BURST",
		"log.level":                  "LOG_LEVEL",
		"log.pretty":                 "LOG_PRETTY",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
