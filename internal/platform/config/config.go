// Package config loads process configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const maxJobInterval = 24 * time.Hour

type Config struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Addr      string `env:"FLEETDOCS_ADDR" envDefault:":8080"`
	AppName   string `env:"APP_NAME" envDefault:"FleetDocs"`
	AppURL    string `env:"APP_URL" envDefault:"http://localhost:8080"`
	SentryDSN string `env:"SENTRY_DSN"`
	// Timezone decides where "today" starts for classification.
	Timezone string `env:"FLEETDOCS_TIMEZONE" envDefault:"UTC"`

	Database  DatabaseConfig `envPrefix:"DATABASE_"`
	Redis     RedisConfig    `envPrefix:"REDIS_"`
	S3        S3Config       `envPrefix:"S3_"`
	Email     EmailConfig    `envPrefix:"EMAIL_"`
	Kafka     KafkaConfig    `envPrefix:"KAFKA_"`
	Tracing   TracingConfig  `envPrefix:"OTEL_"`
	Schedule  ScheduleConfig `envPrefix:"SCHEDULE_"`
	Reminders ReminderConfig `envPrefix:"REMINDERS_"`
	Breaker   BreakerConfig  `envPrefix:"NOTIFY_BREAKER_"`
	Entities  EntitiesConfig `envPrefix:"ENTITY_"`
}

// DatabaseConfig leaves URL empty to run on in-memory stores.
type DatabaseConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"MIGRATE" envDefault:"true"`
}

// RedisConfig leaves URL empty to use in-process leases.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// S3Config leaves Bucket empty to keep files in memory.
type S3Config struct {
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Bucket    string `env:"BUCKET"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Endpoint  string `env:"ENDPOINT"`
	Prefix    string `env:"PREFIX"`
}

type EmailConfig struct {
	ResendAPIKey string `env:"RESEND_API_KEY"`
	From         string `env:"FROM" envDefault:"compliance@fleetdocs.local"`
	// Recipients receive every reminder; per-entity lists add to them.
	Recipients        []string `env:"RECIPIENTS" envSeparator:","`
	VehicleRecipients []string `env:"VEHICLE_RECIPIENTS" envSeparator:","`
	DriverRecipients  []string `env:"DRIVER_RECIPIENTS" envSeparator:","`
	CompanyRecipients []string `env:"COMPANY_RECIPIENTS" envSeparator:","`
}

// KafkaConfig leaves Brokers empty to keep events in the outbox only.
type KafkaConfig struct {
	Brokers       []string      `env:"BROKERS" envSeparator:","`
	Topic         string        `env:"TOPIC" envDefault:"fleetdocs.document-events"`
	Partitions    int32         `env:"PARTITIONS" envDefault:"3"`
	Replication   int16         `env:"REPLICATION" envDefault:"1"`
	RelayInterval time.Duration `env:"RELAY_INTERVAL" envDefault:"2s"`
	RelayBatch    int           `env:"RELAY_BATCH" envDefault:"100"`
}

type TracingConfig struct {
	Endpoint    string `env:"ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"fleetdocs"`
}

type ScheduleConfig struct {
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	ReminderInterval  time.Duration `env:"REMINDER_INTERVAL" envDefault:"6h"`
	BatchSize         int           `env:"BATCH_SIZE" envDefault:"100"`
	StaleRenewalAfter time.Duration `env:"STALE_RENEWAL_AFTER" envDefault:"336h"`
}

type ReminderConfig struct {
	OnExpired   bool `env:"ON_EXPIRED" envDefault:"true"`
	Concurrency int  `env:"CONCURRENCY" envDefault:"4"`
}

type BreakerConfig struct {
	FailureThreshold int           `env:"FAILURES" envDefault:"5"`
	Cooldown         time.Duration `env:"COOLDOWN" envDefault:"1m"`
}

type EntitiesConfig struct {
	// Directory holds "TYPE:id=Name" entries separated by semicolons.
	Directory string `env:"DIRECTORY"`
}

// Load reads .env when present, then the environment, then validates.
func Load() (Config, error) {
	// a missing .env is the normal case outside development
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment without touching .env.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Location resolves Timezone. Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("FLEETDOCS_TIMEZONE: %w", err))
	}
	for name, d := range map[string]time.Duration{
		"SCHEDULE_SWEEP_INTERVAL":    c.Schedule.SweepInterval,
		"SCHEDULE_REMINDER_INTERVAL": c.Schedule.ReminderInterval,
	} {
		if d <= 0 || d > maxJobInterval {
			errs = append(errs, fmt.Errorf("%s must be between 0 and %s, got %s", name, maxJobInterval, d))
		}
	}
	if c.Schedule.BatchSize <= 0 {
		errs = append(errs, errors.New("SCHEDULE_BATCH_SIZE must be positive"))
	}
	if c.Reminders.Concurrency <= 0 {
		errs = append(errs, errors.New("REMINDERS_CONCURRENCY must be positive"))
	}
	if !c.IsDevelopment() && c.Email.ResendAPIKey == "" {
		errs = append(errs, errors.New("EMAIL_RESEND_API_KEY is required outside development"))
	}
	return errors.Join(errs...)
}
