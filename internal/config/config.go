package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
}

type AppConfig struct {
	Port    string
	BaseURL string // используется для сборки short_url в ответах
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> name/description
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// WebhookConfig политика доставки webhook-уведомлений
type WebhookConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Timeout     time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.App.BaseURL = viper.GetString("APP_BASE_URL")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	// Auth config - parse API keys from comma-separated string
	// Format: key1:name1,key2:name2
	apiKeysRaw := viper.GetString("API_KEYS")
	cfg.Auth.APIKeys = parseAPIKeys(apiKeysRaw)

	// Rate limit config
	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	// Webhook config
	cfg.Webhook = WebhookConfig{
		Workers:     viper.GetInt("WEBHOOK_WORKERS"),
		QueueSize:   viper.GetInt("WEBHOOK_QUEUE_SIZE"),
		MaxAttempts: viper.GetInt("WEBHOOK_MAX_ATTEMPTS"),
		BackoffBase: viper.GetDuration("WEBHOOK_BACKOFF_BASE"),
		BackoffMax:  viper.GetDuration("WEBHOOK_BACKOFF_MAX"),
		Timeout:     viper.GetDuration("WEBHOOK_TIMEOUT"),
	}
	cfg.Webhook.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults подставляет политику доставки по умолчанию
func (w *WebhookConfig) ApplyDefaults() {
	if w.Workers <= 0 {
		w.Workers = 3
	}
	if w.QueueSize <= 0 {
		w.QueueSize = 1000
	}
	if w.MaxAttempts <= 0 {
		w.MaxAttempts = 5
	}
	if w.BackoffBase <= 0 {
		w.BackoffBase = time.Second
	}
	if w.BackoffMax <= 0 {
		w.BackoffMax = 10 * time.Minute
	}
	if w.Timeout <= 0 {
		w.Timeout = 5 * time.Second
	}
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
