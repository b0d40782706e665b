package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Domains   DomainsConfig   `mapstructure:"domains"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Global GlobalDBConfig `mapstructure:"global"`
	Tenant TenantDBConfig `mapstructure:"tenant"`
}

type GlobalDBConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type TenantDBConfig struct {
	BasePath             string `mapstructure:"base_path"`
	MaxConnectionsPerOrg int    `mapstructure:"max_connections_per_org"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	APIReadPerMinute  int `mapstructure:"api_read_per_minute"`
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
}

// WebhooksConfig drives the inbound receive route.
type WebhooksConfig struct {
	MaxBodyBytes     int64  `mapstructure:"max_body_bytes"`
	RequireSignature bool   `mapstructure:"require_signature"`
	SecretKey        string `mapstructure:"secret_key"`
	DefaultTagColor  string `mapstructure:"default_tag_color"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type DomainsConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.global.url", "file:./data/global.db")
	v.SetDefault("database.global.max_connections", 10)
	v.SetDefault("database.tenant.base_path", "./data/tenants")
	v.SetDefault("database.tenant.max_connections_per_org", 5)

	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 720*time.Hour)

	v.SetDefault("rate_limit.api_read_per_minute", 1000)
	v.SetDefault("rate_limit.api_write_per_minute", 100)

	v.SetDefault("webhooks.max_body_bytes", 1<<20)
	v.SetDefault("webhooks.require_signature", false)
	v.SetDefault("webhooks.default_tag_color", "#6B7280")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("domains.api_base_url", "http://localhost:8080")
}

// Load reads the YAML file at path, layering .env and process environment on top.
// A missing .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
