// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "brand-zoning/internal/common/errors"
)

// envBindings maps config keys to the environment variables operators set.
var envBindings = map[string]string{
	"app.environment":         "APP_ENVIRONMENT",
	"server.port":             "SERVER_PORT",
	"server.cors_origins":     "CORS_ORIGINS",
	"server.api_keys":         "API_KEYS",
	"server.api_key_header":   "API_KEY_HEADER",
	"server.shutdown_timeout": "SERVER_SHUTDOWN_TIMEOUT",
	"openai.api_key":          "OPENAI_API_KEY",
	"openai.model":            "OPENAI_MODEL",
	"openai.base_url":         "OPENAI_BASE_URL",
	"openai.timeout":          "OPENAI_TIMEOUT",
	"openai.max_retries":      "OPENAI_MAX_RETRIES",
	"openai.temperature":      "OPENAI_TEMPERATURE",
	"openai.response_format":  "OPENAI_RESPONSE_FORMAT",
	"rules.path":              "SYSTEM_RULES_PATH",
	"prompts.policy_path":     "PROMPTS_POLICY_PATH",
	"prompts.formatting_path": "PROMPTS_FORMATTING_PATH",
	"logging.level":           "LOG_LEVEL",
	"logging.format":          "LOG_FORMAT",
	"rate_limit.enabled":      "RATE_LIMIT_ENABLED",
	"rate_limit.requests":     "RATE_LIMIT_REQUESTS",
	"rate_limit.window":       "RATE_LIMIT_WINDOW",
	"redis.address":           "REDIS_ADDRESS",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"redis.timeout":           "REDIS_TIMEOUT",
	"redis.pool_size":         "REDIS_POOL_SIZE",
	"alerts.sns_topic_arn":    "ALERTS_SNS_TOPIC_ARN",
	"alerts.region":           "ALERTS_REGION",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Brand Zoning API")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("server.api_keys", "")
	v.SetDefault("server.api_key_header", "X-API-Key")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.timeout", 30*time.Second)
	v.SetDefault("openai.max_retries", 3)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.response_format", "json_schema")

	v.SetDefault("rules.path", "/app/rules/HEX-5112.md")
	v.SetDefault("prompts.policy_path", "")
	v.SetDefault("prompts.formatting_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests", 60)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", 250*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("alerts.sns_topic_arn", "")
	v.SetDefault("alerts.region", "us-east-1")
}

// Load reads .env, optional config.yaml / config.<env>.yaml, then the environment.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional per-environment overlay

	return fromViper(v)
}

// LoadFromFile loads configuration from a specific YAML file, still honouring the environment.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load .env from the working directory or the project root
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders found in YAML string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults fills derived fields and repairs zero values
func applyDefaults(cfg *Config) {
	cfg.Server.CORSOrigins = ParseOrigins(cfg.Server.CORSOriginsRaw)
	cfg.Server.APIKeys = ParseList(cfg.Server.APIKeysRaw)

	if cfg.Server.APIKeyHeader == "" {
		cfg.Server.APIKeyHeader = "X-API-Key"
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o"
	}
	cfg.OpenAI.BaseURL = strings.TrimRight(cfg.OpenAI.BaseURL, "/")
	cfg.OpenAI.ResponseFormat = strings.ToLower(strings.TrimSpace(cfg.OpenAI.ResponseFormat))
	if cfg.OpenAI.ResponseFormat == "" {
		cfg.OpenAI.ResponseFormat = "json_schema"
	}
	if cfg.Redis.Timeout <= 0 {
		cfg.Redis.Timeout = 250 * time.Millisecond
	}
	if cfg.Redis.PoolSize < 1 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.OpenAI.APIKey == "" {
		return apperrors.NewConfigInvalidError("OPENAI_API_KEY environment variable is required but not set")
	}
	if cfg.OpenAI.MaxRetries < 1 {
		return apperrors.NewConfigInvalidError("openai.max_retries must be at least 1")
	}
	if cfg.OpenAI.Timeout <= 0 {
		return apperrors.NewConfigInvalidError("openai.timeout must be positive")
	}
	if cfg.OpenAI.Temperature < 0 || cfg.OpenAI.Temperature > 2 {
		return apperrors.NewConfigInvalidError("openai.temperature must be between 0 and 2")
	}
	if cfg.OpenAI.BaseURL == "" {
		return apperrors.NewConfigInvalidError("openai.base_url is required")
	}
	if cfg.OpenAI.ResponseFormat != "json_schema" && cfg.OpenAI.ResponseFormat != "text" {
		return apperrors.NewConfigInvalidError(fmt.Sprintf("openai.response_format must be json_schema or text, got %q", cfg.OpenAI.ResponseFormat))
	}
	if cfg.RateLimit.Enabled {
		if cfg.Redis.Address == "" {
			return apperrors.NewConfigInvalidError("redis.address is required when rate limiting is enabled")
		}
		if cfg.RateLimit.Requests < 1 || cfg.RateLimit.Window <= 0 {
			return apperrors.NewConfigInvalidError("rate_limit.requests and rate_limit.window must be positive")
		}
	}
	return nil
}
