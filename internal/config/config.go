package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      QueueConfig      `yaml:"queue"`
	Sentiment  SentimentConfig  `yaml:"sentiment"`
	Trust      TrustConfig      `yaml:"trust"`
	SMTP       SMTPConfig       `yaml:"smtp"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// ClassifierConfig selects the external sentiment classification provider.
type ClassifierConfig struct {
	Provider       string        `yaml:"provider"` // openai, azure, anthropic, ollama, gemini
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst"`
	MaxInputLength int           `yaml:"max_input_length"`
}

// RedisConfig for optional async task queue and distributed bucket locks
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Workers    int `yaml:"workers"`     // local queue workers / asynq concurrency
	BufferSize int `yaml:"buffer_size"` // local queue capacity
	MaxRetry   int `yaml:"max_retry"`   // asynq retries for classify tasks
	EmailRetry int `yaml:"email_retry"` // asynq retries for email tasks
}

type SentimentConfig struct {
	RecomputeDebounce   time.Duration `yaml:"recompute_debounce"`
	BucketLockTTL       time.Duration `yaml:"bucket_lock_ttl"`
	BackfillCron        string        `yaml:"backfill_cron"`
	BackfillBatchSize   int           `yaml:"backfill_batch_size"`
	BackfillConcurrency int           `yaml:"backfill_concurrency"`
	BackfillLockTTL     time.Duration `yaml:"backfill_lock_ttl"`
	BackfillWindow      time.Duration `yaml:"backfill_window"` // scheduled runs only look this far back; 0 scans all history
	LogRetentionDays    int           `yaml:"log_retention_days"`
}

type TrustConfig struct {
	Damping          float64 `yaml:"damping"`
	Prior            float64 `yaml:"prior"`
	UsePlatformPrior bool    `yaml:"use_platform_prior"`
}

type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	cfg.applyDefaults()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "brandsentry.db",
		},
		Classifier: ClassifierConfig{
			Provider:       "openai",
			BaseURL:        "",
			Model:          "gpt-4o-mini",
			MaxTokens:      1024,
			Temperature:    0.1,
			Timeout:        30 * time.Second,
			RatePerSecond:  5,
			RateBurst:      10,
			MaxInputLength: 8000,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Queue: QueueConfig{
			Workers:    4,
			BufferSize: 256,
			MaxRetry:   5,
			EmailRetry: 3,
		},
		Sentiment: SentimentConfig{
			RecomputeDebounce:   0,
			BucketLockTTL:       30 * time.Second,
			BackfillCron:        "",
			BackfillBatchSize:   100,
			BackfillConcurrency: 4,
			BackfillLockTTL:     2 * time.Hour,
			BackfillWindow:      7 * 24 * time.Hour,
			LogRetentionDays:    30,
		},
		Trust: TrustConfig{
			Damping: 10,
			Prior:   3.5,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
	}
}

// applyDefaults fills zero values a partial YAML file may have cleared.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = def.Classifier.Timeout
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = def.Queue.Workers
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = def.Queue.BufferSize
	}
	if c.Sentiment.BackfillBatchSize <= 0 {
		c.Sentiment.BackfillBatchSize = def.Sentiment.BackfillBatchSize
	}
	if c.Sentiment.BackfillConcurrency <= 0 {
		c.Sentiment.BackfillConcurrency = def.Sentiment.BackfillConcurrency
	}
	if c.Sentiment.BucketLockTTL <= 0 {
		c.Sentiment.BucketLockTTL = def.Sentiment.BucketLockTTL
	}
	if c.Sentiment.BackfillLockTTL <= 0 {
		c.Sentiment.BackfillLockTTL = def.Sentiment.BackfillLockTTL
	}
	if c.Trust.Damping <= 0 {
		c.Trust.Damping = def.Trust.Damping
	}
	if c.Trust.Prior <= 0 {
		c.Trust.Prior = def.Trust.Prior
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if provider := os.Getenv("CLASSIFIER_PROVIDER"); provider != "" {
		c.Classifier.Provider = provider
	}
	if baseURL := os.Getenv("CLASSIFIER_BASE_URL"); baseURL != "" {
		c.Classifier.BaseURL = baseURL
	}
	if apiKey := os.Getenv("CLASSIFIER_API_KEY"); apiKey != "" {
		c.Classifier.APIKey = apiKey
	}
	if model := os.Getenv("CLASSIFIER_MODEL"); model != "" {
		c.Classifier.Model = model
	}
	if timeout := os.Getenv("CLASSIFIER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Classifier.Timeout = d
		}
	}
	if cron := os.Getenv("SENTIMENT_BACKFILL_CRON"); cron != "" {
		c.Sentiment.BackfillCron = cron
	}
	if window := os.Getenv("SENTIMENT_BACKFILL_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			c.Sentiment.BackfillWindow = d
		}
	}
	if debounce := os.Getenv("SENTIMENT_RECOMPUTE_DEBOUNCE"); debounce != "" {
		if d, err := time.ParseDuration(debounce); err == nil {
			c.Sentiment.RecomputeDebounce = d
		}
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.SMTP.Enabled = true
		c.SMTP.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.SMTP.Port = p
		}
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		c.SMTP.Username = user
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		c.SMTP.Password = pass
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		c.SMTP.From = from
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
