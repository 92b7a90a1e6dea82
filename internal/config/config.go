// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	RequestTimeout      time.Duration // Bounds one whole chat turn, model calls included.
	MaxRequestBodyBytes int64
	StreamChunkRunes    int

	// Storage settings.
	Store       string // "memory", "postgres" or "sqlite"
	DatabaseURL string // PgBouncer or direct Postgres URL for queries.
	NotifyURL   string // Direct Postgres URL for LISTEN/NOTIFY. Empty disables cross-instance events.
	SQLitePath  string
	SaveTimeout time.Duration

	// Model settings.
	LLMProvider   string // "openai" or "gemini"
	LLMModel      string
	LLMStream     bool
	OpenAIAPIKey  string
	OpenAIBaseURL string // Any OpenAI-compatible endpoint.
	GeminiAPIKey  string

	// Input limits.
	MaxMessages        int
	MaxMessageLength   int
	MaxTotalLength     int
	Blocklist          []string // Appended to the built-in phrases.
	AllowedClientTools []string

	// Orchestrator limits.
	MaxChatRounds      int
	MaxGameRounds      int
	MaxToolResultChars int

	// Rate limiting on the chat endpoints.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// JWT settings.
	JWTPrivateKeyPath string // Path to Ed25519 private key PEM file.
	JWTPublicKeyPath  string // Path to Ed25519 public key PEM file.
	JWTExpiration     time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	str := func(key, def string) string { return envStr(key, def) }
	num := func(key string, def int) int {
		v, err := envInt(key, def)
		errs = append(errs, err)
		return v
	}
	flt := func(key string, def float64) float64 {
		v, err := envFloat(key, def)
		errs = append(errs, err)
		return v
	}
	boolean := func(key string, def bool) bool {
		v, err := envBool(key, def)
		errs = append(errs, err)
		return v
	}
	dur := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		errs = append(errs, err)
		return v
	}

	cfg := Config{
		Port:                num("WYRMGATE_PORT", 8080),
		ReadTimeout:         dur("WYRMGATE_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        dur("WYRMGATE_WRITE_TIMEOUT", 120*time.Second),
		RequestTimeout:      dur("WYRMGATE_REQUEST_TIMEOUT", 90*time.Second),
		MaxRequestBodyBytes: int64(num("WYRMGATE_MAX_REQUEST_BODY_BYTES", 256*1024)),
		StreamChunkRunes:    num("WYRMGATE_STREAM_CHUNK_RUNES", 48),

		Store:       str("WYRMGATE_STORE", StoreMemory),
		DatabaseURL: str("DATABASE_URL", ""),
		NotifyURL:   str("NOTIFY_URL", ""),
		SQLitePath:  str("WYRMGATE_SQLITE_PATH", "wyrmgate.db"),
		SaveTimeout: dur("WYRMGATE_SAVE_TIMEOUT", 5*time.Second),

		LLMProvider:   str("WYRMGATE_LLM_PROVIDER", ProviderOpenAI),
		LLMModel:      str("WYRMGATE_LLM_MODEL", ""),
		LLMStream:     boolean("WYRMGATE_LLM_STREAM", false),
		OpenAIAPIKey:  str("OPENAI_API_KEY", ""),
		OpenAIBaseURL: str("OPENAI_BASE_URL", ""),
		GeminiAPIKey:  str("GEMINI_API_KEY", ""),

		MaxMessages:        num("WYRMGATE_MAX_MESSAGES", 50),
		MaxMessageLength:   num("WYRMGATE_MAX_MESSAGE_LENGTH", 4000),
		MaxTotalLength:     num("WYRMGATE_MAX_TOTAL_LENGTH", 32000),
		Blocklist:          envList("WYRMGATE_BLOCKLIST"),
		AllowedClientTools: envList("WYRMGATE_ALLOWED_CLIENT_TOOLS"),

		MaxChatRounds:      num("WYRMGATE_MAX_CHAT_ROUNDS", 3),
		MaxGameRounds:      num("WYRMGATE_MAX_GAME_ROUNDS", 8),
		MaxToolResultChars: num("WYRMGATE_MAX_TOOL_RESULT_CHARS", 2000),

		RateLimitEnabled: boolean("WYRMGATE_RATE_LIMIT_ENABLED", true),
		RateLimitRPS:     flt("WYRMGATE_RATE_LIMIT_RPS", 0.5),
		RateLimitBurst:   num("WYRMGATE_RATE_LIMIT_BURST", 5),

		JWTPrivateKeyPath: str("WYRMGATE_JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPath:  str("WYRMGATE_JWT_PUBLIC_KEY", ""),
		JWTExpiration:     dur("WYRMGATE_JWT_EXPIRATION", 24*time.Hour),

		OTELEndpoint: str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure: boolean("WYRMGATE_OTEL_INSECURE", false),
		ServiceName:  str("OTEL_SERVICE_NAME", "wyrmgate"),

		LogLevel: str("WYRMGATE_LOG_LEVEL", "info"),
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when WYRMGATE_STORE=postgres"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("WYRMGATE_SQLITE_PATH is required when WYRMGATE_STORE=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("WYRMGATE_STORE=%q must be one of memory, postgres, sqlite", c.Store))
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY or OPENAI_BASE_URL is required for the openai provider"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("WYRMGATE_LLM_PROVIDER=%q must be openai or gemini", c.LLMProvider))
	}

	if (c.JWTPrivateKeyPath == "") != (c.JWTPublicKeyPath == "") {
		errs = append(errs, errors.New("WYRMGATE_JWT_PRIVATE_KEY and WYRMGATE_JWT_PUBLIC_KEY must be set together"))
	}

	for _, p := range []struct {
		name string
		v    int64
	}{
		{"WYRMGATE_MAX_REQUEST_BODY_BYTES", c.MaxRequestBodyBytes},
		{"WYRMGATE_MAX_MESSAGES", int64(c.MaxMessages)},
		{"WYRMGATE_MAX_MESSAGE_LENGTH", int64(c.MaxMessageLength)},
		{"WYRMGATE_MAX_TOTAL_LENGTH", int64(c.MaxTotalLength)},
		{"WYRMGATE_MAX_CHAT_ROUNDS", int64(c.MaxChatRounds)},
		{"WYRMGATE_MAX_GAME_ROUNDS", int64(c.MaxGameRounds)},
		{"WYRMGATE_MAX_TOOL_RESULT_CHARS", int64(c.MaxToolResultChars)},
		{"WYRMGATE_STREAM_CHUNK_RUNES", int64(c.StreamChunkRunes)},
	} {
		if p.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}
	if c.RequestTimeout <= 0 || c.SaveTimeout <= 0 {
		errs = append(errs, errors.New("WYRMGATE_REQUEST_TIMEOUT and WYRMGATE_SAVE_TIMEOUT must be positive"))
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		errs = append(errs, errors.New("WYRMGATE_RATE_LIMIT_RPS and WYRMGATE_RATE_LIMIT_BURST must be positive when rate limiting is enabled"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
