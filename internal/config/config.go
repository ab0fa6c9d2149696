package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by COGCORE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("COGCORE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// APIKey returns the static API key required on /v1 routes.
// Empty means auth is disabled (local development).
func APIKey() string {
	return os.Getenv("API_KEY")
}

// BindingCapacity overrides the default working-set size.
// Zero means the service default.
func BindingCapacity() int {
	k, err := strconv.Atoi(os.Getenv("BINDING_CAPACITY"))
	if err != nil || k <= 0 {
		return 0
	}
	return k
}

// MaxNestingDepth returns the particle nesting cap.
// Defaults to 5 if not set.
func MaxNestingDepth() int {
	d, err := strconv.Atoi(os.Getenv("MAX_NESTING_DEPTH"))
	if err != nil || d <= 0 {
		return 5
	}
	return d
}

// ForecastDeadline returns the hard deadline for precision forecasting.
// Defaults to 100ms if not set.
func ForecastDeadline() time.Duration {
	d, err := time.ParseDuration(os.Getenv("FORECAST_DEADLINE"))
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
