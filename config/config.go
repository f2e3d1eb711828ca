package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider names accepted for llm.primary and llm.fallback.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Session store kinds accepted for session.store.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config is the complete runtime configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Server     ServerConfig     `mapstructure:"server"`
	KB         KBConfig         `mapstructure:"kb"`
	Session    SessionConfig    `mapstructure:"session"`
	Validation ValidationConfig `mapstructure:"validation"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
}

// LLMConfig configures the generation providers.
type LLMConfig struct {
	Primary  string `mapstructure:"primary"`
	Fallback string `mapstructure:"fallback"`

	GroqAPIKey  string `mapstructure:"groq_api_key"`
	GroqModel   string `mapstructure:"groq_model"`
	GroqBaseURL string `mapstructure:"groq_base_url"`

	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	GeminiModel  string `mapstructure:"gemini_model"`

	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIModel   string `mapstructure:"openai_model"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	ClaudeAPIKey string `mapstructure:"claude_api_key"`
	ClaudeModel  string `mapstructure:"claude_model"`

	Timeout            time.Duration `mapstructure:"timeout"`
	AttemptTimeout     time.Duration `mapstructure:"attempt_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	MaxTokens          int           `mapstructure:"max_tokens"`
	DefaultTemperature float64       `mapstructure:"default_temperature"`
	ChatTemperature    float64       `mapstructure:"chat_temperature"`
	HistoryTokenBudget int           `mapstructure:"history_token_budget"`
	TokenizerModel     string        `mapstructure:"tokenizer_model"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	MaxRequestsPerMinute int    `mapstructure:"max_requests_per_minute"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// KBConfig configures the knowledge base.
type KBConfig struct {
	Path           string `mapstructure:"path"`
	MaxContextDocs int    `mapstructure:"max_context_docs"`
	Watch          bool   `mapstructure:"watch"`
	UpdatesLog     string `mapstructure:"updates_log"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
}

// SessionConfig configures conversation state.
type SessionConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxSessions  int           `mapstructure:"max_sessions"`
	HistoryLimit int           `mapstructure:"history_limit"`
	Store        string        `mapstructure:"store"`
	Redis        RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the optional Redis session store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ValidationConfig tunes the grounding and claim checks.
type ValidationConfig struct {
	MaxContextLength int `mapstructure:"max_context_length"`
	MaxFacts         int `mapstructure:"max_facts"`
	ClaimTopK        int `mapstructure:"claim_top_k"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Disable     bool   `mapstructure:"disable"`
	Environment string `mapstructure:"environment"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// legacyEnv maps config keys onto the bare environment names older
// deployments export.
var legacyEnv = map[string]string{
	"llm.groq_api_key":               "GROQ_API_KEY",
	"llm.gemini_api_key":             "GEMINI_API_KEY",
	"llm.openai_api_key":             "OPENAI_API_KEY",
	"llm.claude_api_key":             "ANTHROPIC_API_KEY",
	"llm.primary":                    "PRIMARY_LLM",
	"llm.groq_model":                 "GROQ_MODEL",
	"llm.gemini_model":               "GEMINI_MODEL",
	"kb.webhook_secret":              "WEBHOOK_SECRET",
	"kb.path":                        "KNOWLEDGE_BASE_PATH",
	"server.host":                    "API_HOST",
	"server.port":                    "API_PORT",
	"session.redis.addr":             "REDIS_ADDR",
	"session.redis.password":         "REDIS_PASSWORD",
	"log.level":                      "LOG_LEVEL",
	"telemetry.environment":          "APP_ENVIRONMENT",
	"session.max_sessions":           "MAX_SESSIONS_IN_MEMORY",
	"server.max_requests_per_minute": "MAX_REQUESTS_PER_MINUTE",
}

// Load reads configuration from .env files, an optional YAML file and the
// environment, applies defaults and validates the result. An empty path
// searches for wanderai.yaml in the working directory and ./configs.
func Load(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wanderai")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("WANDERAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		envKey := "WANDERAI_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(key, envKey, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.primary", ProviderGroq)
	v.SetDefault("llm.fallback", ProviderGemini)
	v.SetDefault("llm.groq_api_key", "")
	v.SetDefault("llm.groq_model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.groq_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.gemini_model", "gemini-flash-latest")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.openai_model", "gpt-4o-mini")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.claude_api_key", "")
	v.SetDefault("llm.claude_model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.attempt_timeout", 10*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_backoff", 500*time.Millisecond)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.default_temperature", 0.7)
	v.SetDefault("llm.chat_temperature", 0.3)
	v.SetDefault("llm.history_token_budget", 1500)
	v.SetDefault("llm.tokenizer_model", "gpt-4o")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_requests_per_minute", 30)

	v.SetDefault("kb.path", "knowledge_base")
	v.SetDefault("kb.max_context_docs", 3)
	v.SetDefault("kb.watch", true)
	v.SetDefault("kb.updates_log", filepath.Join("knowledge_base", "updates_log.json"))
	v.SetDefault("kb.webhook_secret", "")

	v.SetDefault("session.timeout", 60*time.Minute)
	v.SetDefault("session.max_sessions", 100)
	v.SetDefault("session.history_limit", 20)
	v.SetDefault("session.store", SessionStoreMemory)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.prefix", "wanderai:session:")
	v.SetDefault("session.redis.ttl", 24*time.Hour)

	v.SetDefault("validation.max_context_length", 3000)
	v.SetDefault("validation.max_facts", 10)
	v.SetDefault("validation.claim_top_k", 3)

	v.SetDefault("telemetry.disable", true)
	v.SetDefault("telemetry.environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}

// Validate checks the configuration for values the system cannot run with.
func (c *Config) Validate() error {
	v := NewValidator()
	providers := []string{ProviderGroq, ProviderGemini, ProviderOpenAI, ProviderClaude}

	v.ValidateOneOf("llm.primary", c.LLM.Primary, providers...)
	if c.LLM.Fallback != "" {
		v.ValidateOneOf("llm.fallback", c.LLM.Fallback, providers...)
	}
	v.RequirePositiveDuration("llm.timeout", c.LLM.Timeout)
	v.RequirePositiveDuration("llm.attempt_timeout", c.LLM.AttemptTimeout)
	v.ValidateRange("llm.max_retries", c.LLM.MaxRetries, 0, 10)
	v.RequirePositive("llm.max_tokens", c.LLM.MaxTokens)
	v.ValidateFloatRange("llm.default_temperature", c.LLM.DefaultTemperature, 0, 2)
	v.ValidateFloatRange("llm.chat_temperature", c.LLM.ChatTemperature, 0, 2)

	v.ValidatePort("server.port", c.Server.Port)
	v.RequirePositive("server.max_requests_per_minute", c.Server.MaxRequestsPerMinute)

	v.RequireNonEmpty("kb.path", c.KB.Path)
	v.RequirePositive("kb.max_context_docs", c.KB.MaxContextDocs)

	v.RequirePositiveDuration("session.timeout", c.Session.Timeout)
	v.RequirePositive("session.max_sessions", c.Session.MaxSessions)
	v.RequirePositive("session.history_limit", c.Session.HistoryLimit)
	v.ValidateOneOf("session.store", c.Session.Store, SessionStoreMemory, SessionStoreRedis)
	if c.Session.Store == SessionStoreRedis {
		if err := ValidateRedisConfig(c.Session.Redis.Addr, c.Session.Redis.DB, c.Session.Redis.Prefix); err != nil {
			v.errors = append(v.errors, ValidationError{Field: "session.redis", Message: err.Error()})
		}
	}

	v.RequirePositive("validation.max_context_length", c.Validation.MaxContextLength)
	v.RequirePositive("validation.max_facts", c.Validation.MaxFacts)
	v.RequirePositive("validation.claim_top_k", c.Validation.ClaimTopK)

	return v.Error()
}

// loadEnvFile loads the first .env found walking up from the working directory.
func loadEnvFile() {
	candidates := []string{".env", filepath.Join("..", ".env")}
	if root := findProjectRoot(); root != "" {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

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
			return ""
		}
		dir = parent
	}
}
