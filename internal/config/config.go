package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "JOB_SCANNER_CONFIG"
	databaseDSNEnv     = "DATABASE_DSN"
	redisAddrEnv       = "REDIS_ADDR"
	kafkaBrokersEnv    = "KAFKA_BROKERS"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	maxRetriesEnv      = "MAX_RETRIES"
	requestTimeoutEnv  = "REQUEST_TIMEOUT"
	userAgentRotateEnv = "USER_AGENT_ROTATE"
	intervalHoursEnv   = "SCRAPER_INTERVAL_HOURS"
	enableSchedulerEnv = "ENABLE_SCHEDULER"
	logLevelEnv        = "LOG_LEVEL"
	httpAddrEnv        = "HTTP_ADDR"

	defaultMaxRetries      = 3
	defaultRequestTimeout  = 10 * time.Second
	defaultTelegramTimeout = 5 * time.Second
	defaultBackoffBase     = time.Second
	defaultIntervalHours   = 6
	defaultMaxPages        = 3
	defaultListLimit       = 100
	defaultMaxListLimit    = 500
)

// Config holds high-level settings required across the application.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Kafka         KafkaConfig        `yaml:"kafka"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Fetcher       FetcherConfig      `yaml:"fetcher"`
	Scraper       ScraperConfig      `yaml:"scraper"`
	API           APIConfig          `yaml:"api"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig enables the stats cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	StatsTTL time.Duration `yaml:"statsTTL"`
}

// KafkaConfig enables posting-created events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// SchedulerConfig defines how often the ingestion pass runs.
type SchedulerConfig struct {
	Enabled       *bool `yaml:"enabled"`
	IntervalHours int   `yaml:"intervalHours"`
	RunOnStart    bool  `yaml:"runOnStart"`
}

// IsEnabled defaults to true when the flag was never set.
func (s SchedulerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Interval converts IntervalHours to a duration.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalHours) * time.Hour
}

// FetcherConfig controls the resilient page fetcher.
type FetcherConfig struct {
	MaxRetries      int           `yaml:"maxRetries"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	BackoffBase     time.Duration `yaml:"backoffBase"`
	RotateUserAgent *bool         `yaml:"rotateUserAgent"`
}

// Rotate defaults to true when the flag was never set.
func (f FetcherConfig) Rotate() bool {
	return f.RotateUserAgent == nil || *f.RotateUserAgent
}

// ScraperConfig controls the orchestration pass.
type ScraperConfig struct {
	MaxPages    int `yaml:"maxPages"`
	Concurrency int `yaml:"concurrency"`
}

// APIConfig bounds listing pagination.
type APIConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string        `yaml:"botToken"`
	ChatID   string        `yaml:"chatId"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig controls slog level and output format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SiteConfig describes a single job source with its scanner strategy.
type SiteConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	BaseURL string            `yaml:"baseUrl"`
	Options map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(kafkaBrokersEnv); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(maxRetriesEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Fetcher.MaxRetries = n
		}
	}
	if v := os.Getenv(requestTimeoutEnv); v != "" {
		c.Fetcher.RequestTimeout = parseSecondsOrDuration(v, c.Fetcher.RequestTimeout)
	}
	if v := os.Getenv(userAgentRotateEnv); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Fetcher.RotateUserAgent = &b
		}
	}
	if v := os.Getenv(intervalHoursEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scheduler.IntervalHours = n
		}
	}
	if v := os.Getenv(enableSchedulerEnv); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Scheduler.Enabled = &b
		}
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}
}

// normalize enforces the invariants the rest of the application relies on.
func (c *Config) normalize() {
	if c.Fetcher.MaxRetries < 1 {
		log.Printf("config: maxRetries %d is below 1, using %d", c.Fetcher.MaxRetries, defaultMaxRetries)
		c.Fetcher.MaxRetries = defaultMaxRetries
	}
	if c.Fetcher.RequestTimeout <= 0 {
		c.Fetcher.RequestTimeout = defaultRequestTimeout
	}
	if c.Fetcher.BackoffBase <= 0 {
		c.Fetcher.BackoffBase = defaultBackoffBase
	}
	if c.Notifications.Telegram.Timeout <= 0 {
		c.Notifications.Telegram.Timeout = defaultTelegramTimeout
	}
	if c.Scheduler.IntervalHours < 1 {
		c.Scheduler.IntervalHours = defaultIntervalHours
	}
	if c.Scraper.MaxPages < 1 {
		c.Scraper.MaxPages = defaultMaxPages
	}
	if c.Scraper.Concurrency < 1 {
		c.Scraper.Concurrency = 1
	}
	if c.API.MaxLimit < 1 {
		c.API.MaxLimit = defaultMaxListLimit
	}
	if c.API.DefaultLimit < 1 || c.API.DefaultLimit > c.API.MaxLimit {
		c.API.DefaultLimit = min(defaultListLimit, c.API.MaxLimit)
	}
}

func parseSecondsOrDuration(value string, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return fallback
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.ReadTimeout > 0 {
		base.Server.ReadTimeout = override.Server.ReadTimeout
	}
	if override.Server.WriteTimeout > 0 {
		base.Server.WriteTimeout = override.Server.WriteTimeout
	}
	if override.Server.ShutdownTimeout > 0 {
		base.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.MaxOpenConns > 0 {
		base.Database.MaxOpenConns = override.Database.MaxOpenConns
	}
	if override.Database.MaxIdleConns > 0 {
		base.Database.MaxIdleConns = override.Database.MaxIdleConns
	}
	if override.Database.ConnMaxLifetime > 0 {
		base.Database.ConnMaxLifetime = override.Database.ConnMaxLifetime
	}

	if override.Redis.Addr != "" {
		base.Redis = override.Redis
		if base.Redis.StatsTTL <= 0 {
			base.Redis.StatsTTL = defaultConfig().Redis.StatsTTL
		}
	}

	if len(override.Kafka.Brokers) > 0 {
		base.Kafka.Brokers = override.Kafka.Brokers
	}
	if override.Kafka.Topic != "" {
		base.Kafka.Topic = override.Kafka.Topic
	}

	if override.Scheduler.Enabled != nil {
		base.Scheduler.Enabled = override.Scheduler.Enabled
	}
	if override.Scheduler.IntervalHours != 0 {
		base.Scheduler.IntervalHours = override.Scheduler.IntervalHours
	}
	if override.Scheduler.RunOnStart {
		base.Scheduler.RunOnStart = true
	}

	if override.Fetcher.MaxRetries != 0 {
		base.Fetcher.MaxRetries = override.Fetcher.MaxRetries
	}
	if override.Fetcher.RequestTimeout > 0 {
		base.Fetcher.RequestTimeout = override.Fetcher.RequestTimeout
	}
	if override.Fetcher.BackoffBase > 0 {
		base.Fetcher.BackoffBase = override.Fetcher.BackoffBase
	}
	if override.Fetcher.RotateUserAgent != nil {
		base.Fetcher.RotateUserAgent = override.Fetcher.RotateUserAgent
	}

	if override.Scraper.MaxPages != 0 {
		base.Scraper.MaxPages = override.Scraper.MaxPages
	}
	if override.Scraper.Concurrency != 0 {
		base.Scraper.Concurrency = override.Scraper.Concurrency
	}

	if override.API.DefaultLimit != 0 {
		base.API.DefaultLimit = override.API.DefaultLimit
	}
	if override.API.MaxLimit != 0 {
		base.API.MaxLimit = override.API.MaxLimit
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.Timeout > 0 {
		base.Notifications.Telegram.Timeout = override.Notifications.Telegram.Timeout
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{StatsTTL: time.Minute},
		Kafka: KafkaConfig{Topic: "jobs.created"},
		Scheduler: SchedulerConfig{
			IntervalHours: defaultIntervalHours,
		},
		Fetcher: FetcherConfig{
			MaxRetries:     defaultMaxRetries,
			RequestTimeout: defaultRequestTimeout,
			BackoffBase:    defaultBackoffBase,
		},
		Scraper: ScraperConfig{MaxPages: defaultMaxPages, Concurrency: 1},
		API:     APIConfig{DefaultLimit: defaultListLimit, MaxLimit: defaultMaxListLimit},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Sites: []SiteConfig{
			{
				Name:    "ExampleJobs",
				Scanner: "demo",
				BaseURL: "https://example-job-board.com",
			},
		},
	}
}
