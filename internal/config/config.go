package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresAddress  string
	PostgresPort     string
	PostgresDB       string
	PostgresUsername string
	PostgresPassword string

	HTTPPort string

	// SchedulerPassInterval is how often the background loop triggers a
	// scheduling pass.
	SchedulerPassInterval time.Duration
	// SchedulerCatchUpCap bounds how many occurrences a single rule may
	// materialize in one pass.
	SchedulerCatchUpCap int
	// SchedulerCatchUpWindow is how far back of "now" a truncated rule
	// resumes; occurrences older than the window are skipped.
	SchedulerCatchUpWindow time.Duration
}

func ProcessEnvironmentVariables() (*Config, error) {
	// .env file is optional; the docker compose setup provides defaults.
	_ = godotenv.Load()

	env := Config{
		PostgresAddress:  "localhost",
		PostgresPort:     "5433",
		PostgresDB:       "postgres",
		PostgresUsername: "postgres",
		PostgresPassword: "testpassword",

		HTTPPort: "9447",

		SchedulerPassInterval:  15 * time.Minute,
		SchedulerCatchUpCap:    366,
		SchedulerCatchUpWindow: 30 * 24 * time.Hour,
	}

	if v := os.Getenv("POSTGRES_ADDRESS"); v != "" {
		env.PostgresAddress = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		env.PostgresPort = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		env.PostgresDB = v
	}
	if v := os.Getenv("POSTGRES_USERNAME"); v != "" {
		env.PostgresUsername = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		env.PostgresPassword = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		env.HTTPPort = v
	}

	if v := os.Getenv("SCHEDULER_PASS_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SCHEDULER_PASS_INTERVAL: %w", err)
		}
		env.SchedulerPassInterval = interval
	}
	if v := os.Getenv("SCHEDULER_CATCHUP_CAP"); v != "" {
		capValue, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SCHEDULER_CATCHUP_CAP: %w", err)
		}
		if capValue < 1 {
			return nil, fmt.Errorf("SCHEDULER_CATCHUP_CAP: must be >= 1, got %d", capValue)
		}
		env.SchedulerCatchUpCap = capValue
	}
	if v := os.Getenv("SCHEDULER_CATCHUP_WINDOW"); v != "" {
		window, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SCHEDULER_CATCHUP_WINDOW: %w", err)
		}
		env.SchedulerCatchUpWindow = window
	}

	return &env, nil
}
