package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	AuthProviderLocal  = "local"
	AuthProviderRemote = "remote"

	LimiterStoreMemory = "memory"
	LimiterStoreRedis  = "redis"
)

// Duration lets TOML files carry durations as strings, e.g. "15m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Environment string `toml:"-"`

	Host string `toml:"host"`
	Port int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`
	AutoMigrate    bool   `toml:"auto_migrate"`
	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// auth
	AuthProvider          string   `toml:"auth_provider"`
	RemoteAuthURL         string   `toml:"remote_auth_url"`
	SessionTTL            Duration `toml:"session_ttl"`
	TokenTTL              Duration `toml:"token_ttl"`
	TokenIssuer           string   `toml:"token_issuer"`
	LoginRateLimitStore   string   `toml:"login_rate_limit_store"`
	LoginRateLimitLimit   int      `toml:"login_rate_limit_limit"`
	LoginRateLimitWindow  Duration `toml:"login_rate_limit_window"`
	LoginRateLimitMaxKeys int      `toml:"login_rate_limit_max_keys"`
	// public endpoints
	MessagesRateLimitPerMin int      `toml:"messages_rate_limit_per_min"`
	RequestsRateLimitPerMin int      `toml:"requests_rate_limit_per_min"`
	AllowedOrigins          []string `toml:"allowed_origins"`
	ContentCacheSizeMB      int      `toml:"content_cache_size_mb"`
	ContentCacheTTL         Duration `toml:"content_cache_ttl"`
	// files
	FilesRootPath   string `toml:"files_root_path"`
	MaxUploadSizeMB int64  `toml:"max_upload_size_mb"`
}

type Toml struct {
	Development *Config
	Production  *Config
	Test        *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	case "test":
		cfg = t.Test
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] not found", env)
	}

	cfg.Environment = strings.ToLower(env)
	cfg.applyDefaults()

	return cfg, cfg.Validate()
}

func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode toml config [%s]: %w", path, err)
	}
	return t.Get(env)
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.AuthProvider == "" {
		c.AuthProvider = AuthProviderLocal
	}
	if c.SessionTTL.Duration == 0 {
		c.SessionTTL.Duration = 7 * 24 * time.Hour
	}
	if c.TokenTTL.Duration == 0 {
		c.TokenTTL.Duration = 24 * time.Hour
	}
	if c.TokenIssuer == "" {
		c.TokenIssuer = "portfolio-backend"
	}
	if c.LoginRateLimitStore == "" {
		c.LoginRateLimitStore = LimiterStoreMemory
	}
	if c.LoginRateLimitLimit == 0 {
		c.LoginRateLimitLimit = 5
	}
	if c.LoginRateLimitWindow.Duration == 0 {
		c.LoginRateLimitWindow.Duration = 15 * time.Minute
	}
	if c.LoginRateLimitMaxKeys == 0 {
		c.LoginRateLimitMaxKeys = 10_000
	}
	if c.MessagesRateLimitPerMin == 0 {
		c.MessagesRateLimitPerMin = 5
	}
	if c.RequestsRateLimitPerMin == 0 {
		c.RequestsRateLimitPerMin = 300
	}
	if c.ContentCacheSizeMB == 0 {
		c.ContentCacheSizeMB = 10
	}
	if c.ContentCacheTTL.Duration == 0 {
		c.ContentCacheTTL.Duration = 10 * time.Minute
	}
	if c.MaxUploadSizeMB == 0 {
		c.MaxUploadSizeMB = 10
	}
}

func (c *Config) Validate() error {
	switch c.AuthProvider {
	case AuthProviderLocal:
	case AuthProviderRemote:
		if c.RemoteAuthURL == "" {
			return fmt.Errorf("auth provider [%s] requires remote_auth_url", c.AuthProvider)
		}
	default:
		return fmt.Errorf("unknown auth provider: %s", c.AuthProvider)
	}

	switch c.LoginRateLimitStore {
	case LimiterStoreMemory, LimiterStoreRedis:
	default:
		return fmt.Errorf("unknown login rate limit store: %s", c.LoginRateLimitStore)
	}

	if c.FilesRootPath == "" {
		return fmt.Errorf("files_root_path not set")
	}

	return nil
}
