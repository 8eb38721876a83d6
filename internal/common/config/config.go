// internal/common/config/config.go
package config

import (
	"strings"
	"time"
)

// Config is the main application configuration struct.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Prompts   PromptsConfig   `mapstructure:"prompts"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CORSOriginsRaw  string        `mapstructure:"cors_origins"`
	APIKeysRaw      string        `mapstructure:"api_keys"`
	APIKeyHeader    string        `mapstructure:"api_key_header"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Parsed from the raw comma-separated values during Load.
	CORSOrigins []string `mapstructure:"-"`
	APIKeys     []string `mapstructure:"-"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Temperature float64       `mapstructure:"temperature"`
	// ResponseFormat is json_schema (send the summary contract) or text.
	ResponseFormat string `mapstructure:"response_format"`
}

type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// PromptsConfig optionally replaces the embedded prompt templates.
type PromptsConfig struct {
	PolicyPath     string `mapstructure:"policy_path"`
	FormattingPath string `mapstructure:"formatting_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Timeout bounds each limiter round trip; the limiter sits on the request path.
	Timeout  time.Duration `mapstructure:"timeout"`
	PoolSize int           `mapstructure:"pool_size"`
}

type AlertsConfig struct {
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
	Region      string `mapstructure:"region"`
}

// AlertsEnabled reports whether gating-violation alerts should be published.
func (c AlertsConfig) AlertsEnabled() bool {
	return c.SNSTopicARN != ""
}

// ParseOrigins parses CORS_ORIGINS. "*" (or empty) allows any origin.
func ParseOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return []string{"*"}
	}
	return ParseList(raw)
}

// ParseList splits a comma-separated value, trimming entries and dropping empty ones.
func ParseList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
