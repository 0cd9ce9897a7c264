package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// App holds the service configuration read from the environment.
type App struct {
	// DB
	DatabaseURL string `envconfig:"DATABASE_URL"`
	PGDSN       string `envconfig:"PG_DSN"`

	// Network
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":8080"`
	MaxImportBytes int64  `envconfig:"MAX_IMPORT_BYTES" default:"10485760"`

	// Redis fast path for the duplicate guard; empty disables it.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Email; empty AMQP_URL logs messages instead of publishing them.
	AMQPURL             string        `envconfig:"AMQP_URL"`
	EmailQueue          string        `envconfig:"EMAIL_QUEUE" default:"email.outbound"`
	EmailFrom           string        `envconfig:"EMAIL_FROM" default:"registrations@chirhoevents.org"`
	NotifyTimeout       time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	NotifyRatePerSecond float64       `envconfig:"NOTIFY_RATE_PER_SECOND" default:"5"`

	// Ledger
	DuplicateWindow time.Duration `envconfig:"DUPLICATE_WINDOW" default:"30s"`

	// Imports
	ImportMappingFile      string `envconfig:"IMPORT_MAPPING_FILE"`
	DefaultSectionCapacity int    `envconfig:"DEFAULT_SECTION_CAPACITY" default:"0"`

	// Reconcile job; empty schedule disables it.
	ReconcileSchedule string   `envconfig:"RECONCILE_SCHEDULE"`
	ReconcileEvents   []string `envconfig:"RECONCILE_EVENTS"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (App, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return App{}, err
		}
	}

	var c App
	if err := envconfig.Process("", &c); err != nil {
		return App{}, err
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = c.PGDSN
	}
	if c.DatabaseURL == "" {
		return App{}, errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if c.DuplicateWindow <= 0 {
		return App{}, errors.New("config: DUPLICATE_WINDOW must be positive")
	}
	if c.DefaultSectionCapacity < 0 {
		return App{}, errors.New("config: DEFAULT_SECTION_CAPACITY must not be negative")
	}
	c.ReconcileEvents = compact(c.ReconcileEvents)
	return c, nil
}

func compact(values []string) []string {
	out := values[:0]
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
