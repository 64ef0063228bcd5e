package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. Secrets
// (API keys, signing keys, passwords) must only come from environment
// variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                     // Set at load time, not from config

	// AllowedOrigins is a comma-separated list of CORS origins.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"http://localhost:5173"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (AI response cache)
	Redis RedisConfig `yaml:"redis"`

	// AI provider configuration
	AI AIConfig `yaml:"ai"`

	// Session / identity configuration
	Session SessionConfig `yaml:"session"`

	// Plan limits
	Limits LimitsConfig `yaml:"limits"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"schemasketch"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"schemasketch"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"2"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds the AI response cache settings. The cache is optional;
// an empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:""`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTLHours int    `yaml:"ttl_hours" env:"REDIS_TTL_HOURS" env-default:"24"`
}

// Enabled reports whether a cache backend is configured.
func (c *RedisConfig) Enabled() bool { return c.Addr != "" }

// TTL returns the cache entry lifetime.
func (c *RedisConfig) TTL() time.Duration { return time.Duration(c.TTLHours) * time.Hour }

// AIConfig holds provider endpoints and keys. Gemini models are served
// through the OpenAI-compatible endpoint, so both OpenAI and Gemini use
// base-URL + key pairs.
type AIConfig struct {
	OpenAIBaseURL   string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	OpenAIAPIKey    string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
	GeminiBaseURL   string `yaml:"gemini_base_url" env:"GEMINI_BASE_URL" env-default:"https://generativelanguage.googleapis.com/v1beta/openai"`
	GeminiAPIKey    string `yaml:"-" env:"GEMINI_API_KEY"`

	// DefaultModel is used when a diagram does not carry a model id.
	DefaultModel string `yaml:"default_model" env:"AI_DEFAULT_MODEL" env-default:"gpt-4o-mini"`

	// TimeoutSeconds is the hard deadline on one generation call,
	// covering all retry attempts together.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"AI_TIMEOUT_SECONDS" env-default:"180"`

	// CatalogPath points at the models.yaml catalog file.
	CatalogPath string `yaml:"catalog_path" env:"AI_CATALOG_PATH" env-default:"models.yaml"`
}

// Timeout returns the generation deadline.
func (c *AIConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

// SessionConfig holds identity-related settings: the JWT verification key
// for authenticated users and the cookie store key for guest identities.
type SessionConfig struct {
	JWTSecret    string `yaml:"-" env:"JWT_SECRET"`    // Secret - not in YAML
	CookieSecret string `yaml:"-" env:"COOKIE_SECRET"` // Secret - not in YAML
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`
	CookieSecure bool   `yaml:"cookie_secure" env:"COOKIE_SECURE" env-default:"false"`
}

// LimitsConfig holds plan limits.
type LimitsConfig struct {
	// FreePlanDiagramCap is the maximum diagrams per unauthenticated plan.
	FreePlanDiagramCap int `yaml:"free_plan_diagram_cap" env:"FREE_PLAN_DIAGRAM_CAP" env-default:"10"`

	// ChatHistoryTurns is how many trailing chat messages go into prompts.
	ChatHistoryTurns int `yaml:"chat_history_turns" env:"CHAT_HISTORY_TURNS" env-default:"6"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. A .env file in the working directory is loaded first when
// present. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	// Best effort; absence of .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}
