package model

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the full bot configuration.
// Loaded from defaults, then the config file, then environment, then flags.
type Config struct {
	Pipeline     PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Source       SourceConfig    `mapstructure:"source" yaml:"source"`
	History      HistoryConfig   `mapstructure:"history" yaml:"history"`
	Annotator    AnnotatorConfig `mapstructure:"annotator" yaml:"annotator"`
	Publisher    PublisherConfig `mapstructure:"publisher" yaml:"publisher"`
	Cache        CacheConfig     `mapstructure:"cache" yaml:"cache"`
	HTTP         HTTPConfig      `mapstructure:"http" yaml:"http"`
	RateLimiting RateLimitConfig `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Events       EventsConfig    `mapstructure:"events" yaml:"events"`
	Archive      ArchiveConfig   `mapstructure:"archive" yaml:"archive"`
	Server       ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging      LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// PipelineConfig controls the selection/annotation/publish loop
type PipelineConfig struct {
	Categories         []string      `mapstructure:"categories" yaml:"categories"`                     // Categories sampled uniformly per selection
	FetchLimit         int           `mapstructure:"fetch_limit" yaml:"fetch_limit"`                   // Items requested per listing
	FilterExplicit     bool          `mapstructure:"filter_explicit" yaml:"filter_explicit"`           // Reject explicit annotations
	RetryDelay         time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`                   // Wait after a history/source failure
	MaxPublishAttempts int           `mapstructure:"max_publish_attempts" yaml:"max_publish_attempts"` // Candidates tried before giving up on publish
	PublishBackoff     time.Duration `mapstructure:"publish_backoff" yaml:"publish_backoff"`           // First delay after a failed publish, doubled per attempt
	CallTimeout        time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`                 // Per collaborator call
}

// SourceConfig selects and configures the content source
type SourceConfig struct {
	Backend string       `mapstructure:"backend" yaml:"backend"` // reddit, rss
	Reddit  RedditConfig `mapstructure:"reddit" yaml:"reddit"`
	RSS     RSSConfig    `mapstructure:"rss" yaml:"rss"`
}

// RedditConfig holds reddit API credentials. Without a client id the public JSON listing is used.
type RedditConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	Username     string `mapstructure:"username" yaml:"username"`
	Password     string `mapstructure:"password" yaml:"password"`
	UserAgent    string `mapstructure:"user_agent" yaml:"user_agent"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	TokenURL     string `mapstructure:"token_url" yaml:"token_url,omitempty"`
}

// RSSConfig configures the feed-backed content source
type RSSConfig struct {
	FeedURLTemplate string `mapstructure:"feed_url_template" yaml:"feed_url_template"` // %s is replaced by the category
}

// HistoryConfig selects where prior publications are read from
type HistoryConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"` // twitter, redis, postgres, none
	Actor    string         `mapstructure:"actor" yaml:"actor"`     // Account whose posts form the history
	Count    int            `mapstructure:"count" yaml:"count"`     // Recent posts to scan
	Twitter  TwitterConfig  `mapstructure:"twitter" yaml:"twitter"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// TwitterConfig holds X/Twitter API v2 credentials
type TwitterConfig struct {
	BearerToken  string `mapstructure:"bearer_token" yaml:"bearer_token"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	AccessToken  string `mapstructure:"access_token" yaml:"access_token"`
	RefreshToken string `mapstructure:"refresh_token" yaml:"refresh_token"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	UploadURL    string `mapstructure:"upload_url" yaml:"upload_url,omitempty"`
}

// RedisConfig configures the redis publication ledger
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Key      string `mapstructure:"key" yaml:"key"`
}

// PostgresConfig configures the SQL publication ledger
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn" yaml:"dsn"`
	Table string `mapstructure:"table" yaml:"table"`
}

// AnnotatorConfig selects the annotation provider
type AnnotatorConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"` // azure, openai, anthropic, ollama
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"` // Base URL override
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Language    string        `mapstructure:"language" yaml:"language"`
	AdultFilter bool          `mapstructure:"adult_filter" yaml:"adult_filter"` // Request the adult facet; implied by pipeline.filter_explicit
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PublisherConfig selects the publisher
type PublisherConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"` // twitter, telegram, dryrun
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	MaxImage int64          `mapstructure:"max_image_bytes" yaml:"max_image_bytes"`
	Robots   bool           `mapstructure:"respect_robots" yaml:"respect_robots"` // Check robots.txt before downloading images
}

// TelegramConfig holds bot API credentials
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// CacheConfig configures the annotation cache
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir       string        `mapstructure:"dir" yaml:"dir"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
}

// HTTPConfig holds shared HTTP client settings
type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent  string        `mapstructure:"user_agent" yaml:"user_agent"`
	HTTPProxy  string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy    string        `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// RateLimitConfig throttles outbound requests per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`
}

// EventsConfig configures the optional kafka publication announcer
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

// ArchiveConfig configures the optional S3 publication archive
type ArchiveConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	Region       string `mapstructure:"region" yaml:"region"`
	Profile      string `mapstructure:"profile" yaml:"profile"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// ServerConfig configures the serve command
type ServerConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"` // Cron expression; empty disables scheduled runs
}

// LoggingConfig configures slog output
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Categories:         []string{"itookapicture", "albumartporn", "photocritique"},
			FetchLimit:         50,
			FilterExplicit:     true,
			RetryDelay:         60 * time.Second,
			MaxPublishAttempts: 5,
			PublishBackoff:     5 * time.Second,
			CallTimeout:        30 * time.Second,
		},
		Source: SourceConfig{
			Backend: "reddit",
			Reddit: RedditConfig{
				UserAgent: "artcaptionbot/1.0 (by /u/artcaptionbot)",
			},
			RSS: RSSConfig{
				FeedURLTemplate: "https://www.reddit.com/r/%s/hot/.rss",
			},
		},
		History: HistoryConfig{
			Backend: "twitter",
			Actor:   "ArtCaptionBot",
			Count:   50,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "artcaptionbot:publications",
			},
			Postgres: PostgresConfig{
				Table: "publications",
			},
		},
		Annotator: AnnotatorConfig{
			Provider:    "azure",
			Endpoint:    "https://westus.api.cognitive.microsoft.com",
			Language:    "en",
			AdultFilter: true,
			Timeout:     30 * time.Second,
		},
		Publisher: PublisherConfig{
			Backend:  "twitter",
			MaxImage: 5 << 20,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "ArtCaptionBot/1.0 (+https://github.com/danielorf/ArtCaptionBot)",
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         5,
		},
		Events: EventsConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "artcaptionbot.publications",
		},
		Archive: ArchiveConfig{
			Prefix: "publications/",
		},
		Server: ServerConfig{
			Addr:     ":8080",
			Schedule: "0 */4 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".artcaptionbot/cache"
	}
	return home + "/.artcaptionbot/cache"
}

// ApplyEnv overrides secrets and endpoints from well-known environment variables
func (c *Config) ApplyEnv() {
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := strings.TrimSpace(os.Getenv(key)); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.Source.Reddit.ClientID, "REDDIT_CLIENT_ID")
	set(&c.Source.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	set(&c.Source.Reddit.Username, "REDDIT_USERNAME")
	set(&c.Source.Reddit.Password, "REDDIT_PASSWORD")

	set(&c.History.Twitter.BearerToken, "TWITTER_BEARER_TOKEN")
	set(&c.History.Twitter.ClientID, "TWITTER_CLIENT_ID")
	set(&c.History.Twitter.ClientSecret, "TWITTER_CLIENT_SECRET")
	set(&c.History.Twitter.AccessToken, "TWITTER_ACCESS_TOKEN")
	set(&c.History.Twitter.RefreshToken, "TWITTER_REFRESH_TOKEN")
	set(&c.History.Redis.Addr, "REDIS_ADDR")
	set(&c.History.Redis.Password, "REDIS_PASS")
	set(&c.History.Postgres.DSN, "DATABASE_URL")

	switch strings.ToLower(c.Annotator.Provider) {
	case "azure":
		set(&c.Annotator.APIKey, "AZURE_VISION_KEY")
		set(&c.Annotator.Endpoint, "AZURE_VISION_ENDPOINT")
	case "openai":
		set(&c.Annotator.APIKey, "OPENAI_API_KEY")
	case "anthropic", "claude":
		set(&c.Annotator.APIKey, "ANTHROPIC_API_KEY")
	case "ollama":
		set(&c.Annotator.Endpoint, "OLLAMA_BASE_URL")
	}

	set(&c.Publisher.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	set(&c.Publisher.Telegram.ChatID, "TELEGRAM_CHAT_ID")

	if v := strings.TrimSpace(os.Getenv("KAFKA_BOOTSTRAP_SERVERS")); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}
	set(&c.Archive.Bucket, "S3_BUCKET")
	set(&c.Archive.Region, "S3_REGION")
	set(&c.Archive.Profile, "S3_PROFILE")
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if len(c.Pipeline.Categories) == 0 {
		return fmt.Errorf("pipeline.categories must not be empty")
	}
	if c.Pipeline.FetchLimit <= 0 {
		return fmt.Errorf("pipeline.fetch_limit must be positive, got %d", c.Pipeline.FetchLimit)
	}
	if c.Pipeline.MaxPublishAttempts <= 0 {
		return fmt.Errorf("pipeline.max_publish_attempts must be positive, got %d", c.Pipeline.MaxPublishAttempts)
	}
	if c.Pipeline.RetryDelay < 0 || c.Pipeline.PublishBackoff < 0 {
		return fmt.Errorf("pipeline delays must not be negative")
	}

	if err := oneOf("source.backend", c.Source.Backend, "reddit", "rss"); err != nil {
		return err
	}
	if err := oneOf("history.backend", c.History.Backend, "twitter", "redis", "postgres", "none"); err != nil {
		return err
	}
	if err := oneOf("annotator.provider", c.Annotator.Provider, "azure", "openai", "anthropic", "claude", "ollama"); err != nil {
		return err
	}
	if err := oneOf("publisher.backend", c.Publisher.Backend, "twitter", "telegram", "dryrun"); err != nil {
		return err
	}
	if c.Source.Backend == "rss" && !strings.Contains(c.Source.RSS.FeedURLTemplate, "%s") {
		return fmt.Errorf("source.rss.feed_url_template must contain %%s")
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("unknown %s: %q (supported: %s)", field, value, strings.Join(allowed, ", "))
}

// Redacted returns a copy with credentials masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&out.Source.Reddit.ClientSecret)
	mask(&out.Source.Reddit.Password)
	mask(&out.History.Twitter.BearerToken)
	mask(&out.History.Twitter.ClientSecret)
	mask(&out.History.Twitter.AccessToken)
	mask(&out.History.Twitter.RefreshToken)
	mask(&out.History.Redis.Password)
	mask(&out.History.Postgres.DSN)
	mask(&out.Annotator.APIKey)
	mask(&out.Publisher.Telegram.BotToken)
	return &out
}
