package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full application configuration, loaded from the environment.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Jobx     JobxConfig
}

type AppConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port int    `env:"PORT" envDefault:"8080"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"meridian"`
	Password        string        `env:"DB_PASSWORD"`
	Name            string        `env:"DB_NAME" envDefault:"meridian"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	MigrationsDir   string        `env:"DB_MIGRATIONS_DIR" envDefault:"migrations"`
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JobxConfig configures the background job queue worker.
type JobxConfig struct {
	AutoStart      bool          `env:"JOBX_AUTOSTART" envDefault:"true"`
	PollInterval   time.Duration `env:"JOBX_POLL_INTERVAL" envDefault:"5s"`
	RetryBackoff   time.Duration `env:"JOBX_RETRY_BACKOFF" envDefault:"30s"`
	JobTimeout     time.Duration `env:"JOBX_JOB_TIMEOUT" envDefault:"2m"`
	MaxJobsPerTick int           `env:"JOBX_MAX_JOBS_PER_TICK" envDefault:"1"`
	StuckAfter     time.Duration `env:"JOBX_STUCK_AFTER" envDefault:"10m"`
	LeaderLockTTL  time.Duration `env:"JOBX_LEADER_LOCK_TTL" envDefault:"30s"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
