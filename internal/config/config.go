// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database selection, story quotas, rate
// limiting, authentication, and observability.
//
// Parsing is delegated to caarlos0/env using struct tags; normalization and
// validation happen in Load so that callers always receive a usable Config.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOriginsRaw string   `env:"CORS_ALLOWED_ORIGINS"`
	AllowedOrigins    []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS" envDefault:"false"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE" envDefault:"4320h"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"bottles-tavern"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"` // [0..1]
}

// StoryLimits holds the daily quotas and content rules for stories.
type StoryLimits struct {
	MinWord        int `env:"STORY_MIN_WORD" envDefault:"10"`        // minimum content length in runes
	MaxPublish     int `env:"STORY_MAX_PUBLISH" envDefault:"3"`      // stories a user may publish per day
	MaxFetch       int `env:"STORY_MAX_FETCH" envDefault:"5"`        // stories delivered to a user per day
	MaxWhiskey     int `env:"STORY_MAX_WHISKEY" envDefault:"10"`     // whiskey points a user may send per day
	InitialWhiskey int `env:"STORY_INITIAL_WHISKEY" envDefault:"10"` // daily whiskey grant
	FetchAttempts  int `env:"STORY_FETCH_MAX_ATTEMPTS" envDefault:"50"`
}

// AuthConfig defines wallet login and session token settings.
type AuthConfig struct {
	JWTSecret          string        `env:"JWT_SECRET"`
	TokenTTL           time.Duration `env:"JWT_TTL" envDefault:"168h"`
	ChallengeTTL       time.Duration `env:"AUTH_CHALLENGE_TTL" envDefault:"5m"`
	ChallengeCapacity  int           `env:"AUTH_CHALLENGE_CAPACITY" envDefault:"10000"`
	InsecureSkipVerify bool          `env:"AUTH_INSECURE_SKIP_VERIFY" envDefault:"false"`
	Required           bool          `env:"AUTH_REQUIRED" envDefault:"false"`
}

// RedisConfig selects the Redis backend for login challenges. An empty Addr
// keeps challenges in process memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `env:"PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"20s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES" envDefault:"1048576"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"` // debug|release|test

	// Logging / Docs
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED" envDefault:"false"`
	APIBasePath    string `env:"API_BASE_PATH" envDefault:"/api/v1"`

	// Storage
	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"` // sqlite|postgres
	DBPath   string `env:"DB_PATH" envDefault:"tavern.db"`
	DBDSN    string `env:"DATABASE_URL"`

	// Stories
	Story StoryLimits

	// Rate limiting
	RateRPS   float64 `env:"RATE_RPS" envDefault:"5.0"`
	RateBurst int     `env:"RATE_BURST" envDefault:"10"`

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	PurgeSchedule  string        `env:"PURGE_SCHEDULE" envDefault:"@every 1h"`

	// Auth
	Auth  AuthConfig
	Redis RedisConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}

	// --- normalization ---
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.APIBasePath = normalizeBasePath(cfg.APIBasePath)
	cfg.CORS.AllowedOrigins = splitCSV(cfg.CORS.AllowedOriginsRaw)

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DBDSN) == "" {
			return cfg, errors.New("DATABASE_URL is required for DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Story.MinWord < 0 {
		return cfg, errors.New("STORY_MIN_WORD must be >= 0")
	}
	if cfg.Story.MaxPublish < 0 || cfg.Story.MaxFetch < 0 || cfg.Story.MaxWhiskey < 0 {
		return cfg, errors.New("STORY_MAX_* limits must be >= 0")
	}
	if cfg.Story.InitialWhiskey < 0 {
		return cfg, errors.New("STORY_INITIAL_WHISKEY must be >= 0")
	}
	if cfg.Story.FetchAttempts < 1 {
		return cfg, errors.New("STORY_FETCH_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.Auth.ChallengeTTL <= 0 || cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("AUTH_CHALLENGE_TTL and JWT_TTL must be > 0")
	}
	if cfg.Auth.ChallengeCapacity < 1 {
		return cfg, errors.New("AUTH_CHALLENGE_CAPACITY must be >= 1")
	}
	if cfg.Auth.Required && strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return cfg, errors.New("JWT_SECRET is required when AUTH_REQUIRED is set")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}
