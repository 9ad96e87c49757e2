package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("server defaults unexpected: %+v", cfg)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("API_BASE_PATH default expected '/api/v1', got %q", cfg.APIBasePath)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBPath != "tavern.db" {
		t.Fatalf("storage defaults unexpected: driver=%q path=%q", cfg.DBDriver, cfg.DBPath)
	}
	want := StoryLimits{MinWord: 10, MaxPublish: 3, MaxFetch: 5, MaxWhiskey: 10, InitialWhiskey: 10, FetchAttempts: 50}
	if cfg.Story != want {
		t.Fatalf("story limits default: got %+v want %+v", cfg.Story, want)
	}
	if cfg.Auth.ChallengeTTL != 5*time.Minute || cfg.Auth.TokenTTL != 168*time.Hour {
		t.Fatalf("auth defaults unexpected: %+v", cfg.Auth)
	}
	if cfg.CORS.AllowedOrigins != nil {
		t.Fatalf("expected nil origins by default, got %#v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_Success_Overrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	t.Setenv("LOG_LEVEL", "WARNING") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("SWAGGER_ENABLED", "1")
	t.Setenv("API_BASE_PATH", "api/v2/")

	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/tavern")

	t.Setenv("STORY_MIN_WORD", "20")
	t.Setenv("STORY_MAX_PUBLISH", "1")
	t.Setenv("STORY_MAX_FETCH", "7")
	t.Setenv("STORY_MAX_WHISKEY", "2")
	t.Setenv("STORY_INITIAL_WHISKEY", "5")
	t.Setenv("STORY_FETCH_MAX_ATTEMPTS", "9")

	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("RATE_BURST", "3")

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("IDEMPOTENCY_TTL", "48h")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DBDriver != "postgres" || cfg.DBDSN != "postgres://u:p@localhost/tavern" {
		t.Fatalf("storage unexpected: %q %q", cfg.DBDriver, cfg.DBDSN)
	}
	want := StoryLimits{MinWord: 20, MaxPublish: 1, MaxFetch: 7, MaxWhiskey: 2, InitialWhiskey: 5, FetchAttempts: 9}
	if cfg.Story != want {
		t.Fatalf("story limits: got %+v want %+v", cfg.Story, want)
	}
	if cfg.RateRPS != 2.5 || cfg.RateBurst != 3 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}
	if cfg.Auth.JWTSecret != "s3cret" || !cfg.Auth.Required || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("auth/redis unexpected: %+v %+v", cfg.Auth, cfg.Redis)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("RATE_BURST", "nope")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error for non-numeric RATE_BURST")
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes <= 0", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"postgres without dsn", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"DB_DRIVER": "oracle"}, "DB_DRIVER"},
		{"negative min word", map[string]string{"STORY_MIN_WORD": "-1"}, "STORY_MIN_WORD"},
		{"negative max fetch", map[string]string{"STORY_MAX_FETCH": "-1"}, "STORY_MAX_*"},
		{"negative initial whiskey", map[string]string{"STORY_INITIAL_WHISKEY": "-3"}, "STORY_INITIAL_WHISKEY"},
		{"zero fetch attempts", map[string]string{"STORY_FETCH_MAX_ATTEMPTS": "0"}, "STORY_FETCH_MAX_ATTEMPTS"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl non-positive", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"challenge ttl non-positive", map[string]string{"AUTH_CHALLENGE_TTL": "0s"}, "AUTH_CHALLENGE_TTL"},
		{"challenge capacity zero", map[string]string{"AUTH_CHALLENGE_CAPACITY": "0"}, "AUTH_CHALLENGE_CAPACITY"},
		{"auth required without secret", map[string]string{"AUTH_REQUIRED": "true"}, "JWT_SECRET"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if out := splitCSV(" , ,"); out != nil {
		t.Fatalf("splitCSV of separators only should return nil, got %#v", out)
	}
	in := " a, ,b ,  c  ,"
	want := []string{"a", "b", "c"}
	if got := splitCSV(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV mismatch: got %#v want %#v", got, want)
	}

	for in, want := range map[string]string{
		"":     "/",
		"v1":   "/v1",
		"/v1/": "/v1",
		" / ":  "/",
		"//":   "/",
	} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DATABASE_URL", "JWT_SECRET", "AUTH_REQUIRED", "LOG_LEVEL"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
