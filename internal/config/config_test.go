package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setProvider satisfies the provider rule so tests can focus on one key.
func setProvider(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestEnvIntFallback(t *testing.T) {
	v, err := envInt("TEST_INT_MISSING", 99)
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	require.Error(t, err)
	assert.Equal(t, `TEST_INT_BAD="abc" is not a valid integer`, err.Error())
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	v, err := envBool("TEST_BOOL", false)
	require.NoError(t, err)
	assert.True(t, v)

	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err = envBool("TEST_BOOL_BAD", false)
	require.Error(t, err)
	assert.Equal(t, `TEST_BOOL_BAD="maybe" is not a valid boolean`, err.Error())
}

func TestEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.25")
	v, err := envFloat("TEST_FLOAT", 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v, 1e-9)

	t.Setenv("TEST_FLOAT_BAD", "fast")
	_, err = envFloat("TEST_FLOAT_BAD", 1)
	assert.EqualError(t, err, `TEST_FLOAT_BAD="fast" is not a valid number`)
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	v, err := envDuration("TEST_DUR", 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, v)

	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err = envDuration("TEST_DUR_BAD", 0)
	assert.EqualError(t, err, `TEST_DUR_BAD="five-seconds" is not a valid duration`)
}

func TestEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " roll_dice, ,lookup_creature ,")
	assert.Equal(t, []string{"roll_dice", "lookup_creature"}, envList("TEST_LIST"))
	assert.Nil(t, envList("TEST_LIST_MISSING"))
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	setProvider(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, 3, cfg.MaxChatRounds)
	assert.Equal(t, 8, cfg.MaxGameRounds)
	assert.Equal(t, 2000, cfg.MaxToolResultChars)
	assert.True(t, cfg.RateLimitEnabled)
}

func TestLoadFailsOnInvalidPort(t *testing.T) {
	setProvider(t)
	t.Setenv("WYRMGATE_PORT", "abc")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WYRMGATE_PORT")
	assert.Contains(t, err.Error(), "abc")
}

func TestLoadReportsEveryInvalidVar(t *testing.T) {
	setProvider(t)
	t.Setenv("WYRMGATE_PORT", "abc")
	t.Setenv("WYRMGATE_REQUEST_TIMEOUT", "soon")
	t.Setenv("WYRMGATE_RATE_LIMIT_ENABLED", "perhaps")
	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"WYRMGATE_PORT", "WYRMGATE_REQUEST_TIMEOUT", "WYRMGATE_RATE_LIMIT_ENABLED"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate(t *testing.T) {
	setProvider(t)
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown store", func(c *Config) { c.Store = "etcd" }, "WYRMGATE_STORE"},
		{"postgres needs url", func(c *Config) { c.Store = StorePostgres }, "DATABASE_URL"},
		{"sqlite needs path", func(c *Config) { c.Store = StoreSQLite; c.SQLitePath = "" }, "WYRMGATE_SQLITE_PATH"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "llama" }, "WYRMGATE_LLM_PROVIDER"},
		{"openai needs key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"gemini needs key", func(c *Config) { c.LLMProvider = ProviderGemini }, "GEMINI_API_KEY"},
		{"half a key pair", func(c *Config) { c.JWTPrivateKeyPath = "priv.pem" }, "must be set together"},
		{"zero rounds", func(c *Config) { c.MaxGameRounds = 0 }, "WYRMGATE_MAX_GAME_ROUNDS"},
		{"zero body", func(c *Config) { c.MaxRequestBodyBytes = 0 }, "WYRMGATE_MAX_REQUEST_BODY_BYTES"},
		{"rate limit burst", func(c *Config) { c.RateLimitBurst = 0 }, "WYRMGATE_RATE_LIMIT_BURST"},
		{"timeouts", func(c *Config) { c.SaveTimeout = 0 }, "WYRMGATE_SAVE_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("self-hosted openai endpoint without key", func(t *testing.T) {
		cfg := base
		cfg.OpenAIAPIKey = ""
		cfg.OpenAIBaseURL = "http://localhost:11434/v1"
		assert.NoError(t, cfg.Validate())
	})
	t.Run("rate limit disabled ignores its numbers", func(t *testing.T) {
		cfg := base
		cfg.RateLimitEnabled = false
		cfg.RateLimitRPS = 0
		assert.NoError(t, cfg.Validate())
	})
}
