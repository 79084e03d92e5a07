package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Profile backends.
const (
	ProfileBackendREST     = "rest"
	ProfileBackendPostgres = "postgres"
)

// State backends.
const (
	StateBackendMemory = "memory"
	StateBackendRedis  = "redis"
)

const devCookieSecret = "burgerhero-dev-cookie-secret-change-me"

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Device state
	DeviceTTL     time.Duration
	StateBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	ProfileBackend     string
	DatabaseURL        string

	// Device cookie
	CookieSecret string
	CookieSecure bool

	CORSOrigins []string

	// Dev mode
	DevAuth bool // DEV_AUTH=true serves identities and profiles from memory
}

// LoadDotEnv reads a .env file without overriding the real environment.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		DeviceTTL:     getEnvDuration("DEVICE_TTL", 30*time.Minute),
		StateBackend:  strings.ToLower(getEnv("STATE_BACKEND", StateBackendMemory)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		ProfileBackend:     strings.ToLower(getEnv("PROFILE_BACKEND", ProfileBackendREST)),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		CookieSecret: getEnv("COOKIE_SECRET", devCookieSecret),
		CookieSecure: getEnv("COOKIE_SECURE", "false") == "true",

		CORSOrigins: getEnvList("CORS_ORIGINS"),

		DevAuth: getEnv("DEV_AUTH", "false") == "true",
	}
}

// Validate reports settings that cannot start the server.
func (c *Config) Validate() error {
	var errs []error
	if !c.DevAuth && (c.SupabaseURL == "" || c.SupabaseAnonKey == "") {
		errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required unless DEV_AUTH=true"))
	}
	switch c.ProfileBackend {
	case ProfileBackendREST:
	case ProfileBackendPostgres:
		if c.DatabaseURL == "" && !c.DevAuth {
			errs = append(errs, errors.New("DATABASE_URL is required when PROFILE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, errors.New("PROFILE_BACKEND must be rest or postgres"))
	}
	switch c.StateBackend {
	case StateBackendMemory, StateBackendRedis:
	default:
		errs = append(errs, errors.New("STATE_BACKEND must be memory or redis"))
	}
	if c.DeviceTTL <= 0 {
		errs = append(errs, errors.New("DEVICE_TTL must be positive"))
	}
	if c.CookieSecure && c.CookieSecret == devCookieSecret {
		errs = append(errs, errors.New("COOKIE_SECRET must be set when COOKIE_SECURE=true"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
