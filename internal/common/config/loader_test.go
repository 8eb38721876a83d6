package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("SYSTEM_RULES_PATH", "/custom/rules.md")
	t.Setenv("OPENAI_MAX_RETRIES", "5")
	t.Setenv("OPENAI_TIMEOUT", "45s")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test-key-123", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "/custom/rules.md", cfg.Rules.Path)
	assert.Equal(t, 5, cfg.OpenAI.MaxRetries)
	assert.Equal(t, 45*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DefaultsWhenOptionalVarsMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("SYSTEM_RULES_PATH", "")
	os.Unsetenv("OPENAI_MODEL")
	os.Unsetenv("SYSTEM_RULES_PATH")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "/app/rules/HEX-5112.md", cfg.Rules.Path)
	assert.Equal(t, 3, cfg.OpenAI.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.Timeout)
	assert.InDelta(t, 0.1, cfg.OpenAI.Temperature, 1e-9)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "X-API-Key", cfg.Server.APIKeyHeader)
	assert.Empty(t, cfg.Server.APIKeys)
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Regexp(t, "OPENAI_API_KEY.*required", err.Error())
}

func TestLoad_RejectsRateLimitWithoutRedis(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("REDIS_ADDRESS", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.address")
}

func TestLoad_ResponseFormat(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "json_schema", cfg.OpenAI.ResponseFormat)

	t.Setenv("OPENAI_RESPONSE_FORMAT", "TEXT")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.OpenAI.ResponseFormat)

	t.Setenv("OPENAI_RESPONSE_FORMAT", "xml")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_RejectsZeroRetries(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123")
	t.Setenv("OPENAI_MAX_RETRIES", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("TEST_ZONING_KEY", "sk-from-placeholder")
	os.Unsetenv("OPENAI_API_KEY")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "openai:\n  api_key: ${TEST_ZONING_KEY}\n  model: gpt-4.1\nserver:\n  port: 9090\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-placeholder", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.OpenAI.Model)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, ParseOrigins("*"))
	assert.Equal(t, []string{"*"}, ParseOrigins(""))
	assert.Equal(t,
		[]string{"http://localhost:3000", "https://app.example.com", "https://staging.example.com"},
		ParseOrigins("http://localhost:3000,https://app.example.com,https://staging.example.com"))
	assert.Equal(t,
		[]string{"http://localhost:3000", "https://app.example.com"},
		ParseOrigins(" http://localhost:3000 , https://app.example.com , "))
}

func TestParseList_APIKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123")
	t.Setenv("API_KEYS", "key-a, key-b,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Server.APIKeys)
}

func TestLoad_RedisTimeouts(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key-123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.Timeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)

	t.Setenv("REDIS_TIMEOUT", "1s")
	t.Setenv("REDIS_POOL_SIZE", "32")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Redis.Timeout)
	assert.Equal(t, 32, cfg.Redis.PoolSize)
}
