package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Anthropic    AnthropicConfig
	Facebook     FacebookConfig
	Intake       IntakeConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN switches case
// persistence to the file-backed store under Intake.DataDirectory.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AnthropicConfig defines the AI provider connection.
type AnthropicConfig struct {
	APIKey         string
	Model          string
	MaxTokens      int
	TimeoutSeconds int
	MaxRetries     int
	MaxInputChars  int
}

// FacebookConfig defines the Messenger platform connection.
type FacebookConfig struct {
	PageAccessToken string
	VerifyToken     string
	AppSecret       string
	GraphVersion    string
	TimeoutSeconds  int
	SendMaxRetries  int
}

// IntakeConfig defines conversation and case handling policy.
type IntakeConfig struct {
	DataDirectory            string
	CriteriaFile             string
	InactivityTimeoutMinutes int
	ReapIntervalMinutes      int
	DedupWindowSeconds       int
	FallbackReply            string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	OpsWebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "messenger-intake"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Anthropic: AnthropicConfig{
			APIKey:         os.Getenv("ANTHROPIC_API_KEY"),
			Model:          getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			MaxTokens:      getEnvAsInt("ANTHROPIC_MAX_TOKENS", 150),
			TimeoutSeconds: getEnvAsInt("API_TIMEOUT", 30),
			MaxRetries:     getEnvAsInt("MAX_RETRIES", 3),
			MaxInputChars:  getEnvAsInt("MAX_RESPONSE_LENGTH", 5000),
		},
		Facebook: FacebookConfig{
			PageAccessToken: os.Getenv("PAGE_ACCESS_TOKEN"),
			VerifyToken:     os.Getenv("MESSENGER_VERIFY_TOKEN"),
			AppSecret:       os.Getenv("APP_SECRET"),
			GraphVersion:    getEnv("FACEBOOK_GRAPH_VERSION", "v22.0"),
			TimeoutSeconds:  getEnvAsInt("API_TIMEOUT", 30),
			SendMaxRetries:  getEnvAsInt("MAX_RETRIES", 3),
		},
		Intake: IntakeConfig{
			DataDirectory:            getEnv("DATA_DIRECTORY", "./case_data"),
			CriteriaFile:             getEnv("CRITERIA_FILE", "./criteria.json"),
			InactivityTimeoutMinutes: getEnvAsInt("SESSION_INACTIVITY_TIMEOUT_MINUTES", 60),
			ReapIntervalMinutes:      getEnvAsInt("SESSION_REAP_INTERVAL_MINUTES", 15),
			DedupWindowSeconds:       getEnvAsInt("MESSAGE_DEDUP_WINDOW_SECONDS", 3600),
			FallbackReply:            os.Getenv("INTAKE_FALLBACK_REPLY"),
		},
		Notification: NotificationConfig{
			OpsWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout bounds a single AI call.
func (a AnthropicConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Timeout bounds a single Graph API call.
func (f FacebookConfig) Timeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// InactivityTimeout is the idle duration after which a conversation is archived.
func (i IntakeConfig) InactivityTimeout() time.Duration {
	return time.Duration(i.InactivityTimeoutMinutes) * time.Minute
}

// ReapInterval is how often idle conversations are swept.
func (i IntakeConfig) ReapInterval() time.Duration {
	return time.Duration(i.ReapIntervalMinutes) * time.Minute
}

// DedupWindow is how long a processed message id is remembered.
func (i IntakeConfig) DedupWindow() time.Duration {
	return time.Duration(i.DedupWindowSeconds) * time.Second
}

// AnthropicConfigured reports whether the AI integration has usable credentials.
// Absence is a degraded state, never a startup failure.
func (c *Config) AnthropicConfigured() bool {
	return secretPresent(c.Anthropic.APIKey)
}

// FacebookConfigured reports whether the Messenger integration has usable credentials.
func (c *Config) FacebookConfigured() bool {
	return secretPresent(c.Facebook.PageAccessToken) && secretPresent(c.Facebook.VerifyToken)
}

func secretPresent(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	lower := strings.ToLower(v)
	if strings.HasPrefix(lower, "your-") || strings.Contains(lower, "placeholder") || lower == "changeme" {
		return false
	}
	return true
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
