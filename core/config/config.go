package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/imranmit2020/pro-login-flow-sub000/core/db"
)

// DefaultInstagramBusinessAccountID is the practice's Instagram Business Account.
const DefaultInstagramBusinessAccountID = "17841475533389585"

type Config struct {
	OTel      OTelConfig
	Facebook  FacebookConfig
	Instagram InstagramConfig
	Gmail     GmailConfig
	AutoReply AutoReplyConfig
	OpenAI    OpenAIConfig
	Sync      SyncConfig
	Pipeline  PipelineConfig
	HTTP      HTTPConfig
	Env       string
	Port      string
	// LogLevel overrides the env-derived default (debug in development, info elsewhere).
	LogLevel  string
	DB        db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	Environment    string
	// SampleRatio is the fraction of new traces kept; remote parents decide for their children.
	SampleRatio float64
}

// PageConfig is one Facebook page the practice manages.
type PageConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	AccessToken string `yaml:"access_token"`
}

type FacebookConfig struct {
	AppID      string
	AppSecret  string
	APIVersion string
	Pages      []PageConfig
	// WebhookVerifyToken answers Meta's subscription handshake. Empty disables the webhook.
	WebhookVerifyToken string
	HTTPTimeout        time.Duration
}

type InstagramConfig struct {
	BusinessAccountID string
	DisplayName       string
	AccessToken       string
}

type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	UserEmail    string
	Query        string
}

type AutoReplyConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
	EnabledDefault bool
	FallbackReply  string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type SyncConfig struct {
	Interval  time.Duration
	AutoStart bool
}

type PipelineConfig struct {
	RedisURL        string
	RedisStream     string
	RedisGroup      string
	RedisDLQStream  string
	RedisConsumer   string
	TraceHeaderName string
}

// HTTPConfig limits the routes that send messages on the practice's behalf.
type HTTPConfig struct {
	SendRPS   float64
	SendBurst int
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.worker for the background worker
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("INBOX_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:      getEnv("INBOX_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		DB: db.Config{
			DSN:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvInt32("DB_MIN_CONNS", 2),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
			SimpleProtocol:  getEnvBool("DB_SIMPLE_PROTOCOL", false),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 0),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "inbox"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_RATIO", 1),
		},
		Facebook: FacebookConfig{
			AppID:              getEnv("FACEBOOK_APP_ID", ""),
			AppSecret:          getEnv("FACEBOOK_APP_SECRET", ""),
			APIVersion:         getEnv("FACEBOOK_API_VERSION", "v19.0"),
			WebhookVerifyToken: getEnv("META_WEBHOOK_VERIFY_TOKEN", ""),
			HTTPTimeout:        getEnvDuration("PLATFORM_HTTP_TIMEOUT", 30*time.Second),
		},
		Instagram: InstagramConfig{
			BusinessAccountID: getEnv("INSTAGRAM_BUSINESS_ACCOUNT_ID", DefaultInstagramBusinessAccountID),
			DisplayName:       getEnv("INSTAGRAM_DISPLAY_NAME", "Practice"),
			AccessToken:       getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
		},
		Gmail: GmailConfig{
			ClientID:     getEnv("GMAIL_CLIENT_ID", ""),
			ClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
			RefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
			UserEmail:    getEnv("GMAIL_USER_EMAIL", "me"),
			Query:        getEnv("GMAIL_QUERY", "in:inbox"),
		},
		AutoReply: AutoReplyConfig{
			WebhookURL:     getEnv("N8N_WEBHOOK_URL", ""),
			WebhookTimeout: getEnvDuration("N8N_WEBHOOK_TIMEOUT", 30*time.Second),
			EnabledDefault: getEnvBool("AI_AUTO_REPLY_ENABLED", false),
			FallbackReply:  getEnv("AI_FALLBACK_REPLY", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Sync: SyncConfig{
			Interval:  getEnvDuration("SYNC_INTERVAL", 60*time.Second),
			AutoStart: getEnvBool("SYNC_AUTO_START", true),
		},
		Pipeline: PipelineConfig{
			RedisURL:        getEnv("REDIS_URL", ""),
			RedisStream:     getEnv("REDIS_STREAM", "inbox_auto_reply"),
			RedisGroup:      getEnv("REDIS_CONSUMER_GROUP", "inbox_group"),
			RedisDLQStream:  getEnv("REDIS_DLQ_STREAM", "inbox_auto_reply_dlq"),
			RedisConsumer:   getEnv("REDIS_CONSUMER_NAME", string(serviceType)),
			TraceHeaderName: getEnv("TRACE_HEADER_NAME", "X-Trace-Id"),
		},
		HTTP: HTTPConfig{
			SendRPS:   getEnvFloat("SEND_RATE_LIMIT_RPS", 2),
			SendBurst: int(getEnvInt32("SEND_RATE_LIMIT_BURST", 5)),
		},
	}

	cfg.OTel.Environment = cfg.Env

	pages, err := loadPages()
	if err != nil {
		return Config{}, err
	}
	cfg.Facebook.Pages = pages

	if cfg.Instagram.BusinessAccountID == "" {
		return Config{}, fmt.Errorf("INSTAGRAM_BUSINESS_ACCOUNT_ID must not be empty")
	}

	if serviceType == ServiceTypeWorker && cfg.Pipeline.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL is required for the worker")
	}

	return cfg, nil
}

// loadPages reads Facebook pages from PAGES_CONFIG_FILE when set, otherwise
// from FACEBOOK_PAGES ("id:name:token,id:name:token").
func loadPages() ([]PageConfig, error) {
	if path := getEnv("PAGES_CONFIG_FILE", ""); path != "" {
		return LoadPagesFile(path)
	}
	return ParsePages(getEnv("FACEBOOK_PAGES", ""))
}

// ParsePages parses the FACEBOOK_PAGES env format.
func ParsePages(s string) ([]PageConfig, error) {
	var pages []PageConfig
	if strings.TrimSpace(s) == "" {
		return pages, nil
	}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid FACEBOOK_PAGES entry %q: want id:name:token", entry)
		}
		page := PageConfig{
			ID:          strings.TrimSpace(parts[0]),
			Name:        strings.TrimSpace(parts[1]),
			AccessToken: strings.TrimSpace(parts[2]),
		}
		if page.ID == "" || page.AccessToken == "" {
			return nil, fmt.Errorf("invalid FACEBOOK_PAGES entry %q: id and token are required", entry)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c FacebookConfig) Enabled() bool {
	return len(c.Pages) > 0
}

func (c InstagramConfig) Enabled() bool {
	return c.AccessToken != ""
}

func (c GmailConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

func (c AutoReplyConfig) Enabled() bool {
	return c.WebhookURL != ""
}

func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c PipelineConfig) Enabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
