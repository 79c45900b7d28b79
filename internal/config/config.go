// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Env      string
	GitHub   GitHubConfig
	Bot      BotConfig
	Server   ServerConfig
	Redis    RedisConfig
	SPDX     SPDXConfig
	OTel     OTelConfig
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Domain string
	Token  string

	AppID          int64
	PrivateKey     string
	PrivateKeyPath string
	WebhookSecret  string
}

// BotConfig identifies the app inside repositories: the account that opens
// compliance issues and the token maintainers mention to address it.
type BotConfig struct {
	Login   string
	Mention string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string
	WebhookPath string
}

// RedisConfig configures the distributed dedup guard. An empty URL disables it.
type RedisConfig struct {
	URL      string
	DedupTTL time.Duration
}

// SPDXConfig points at an alternative license catalog file.
type SPDXConfig struct {
	CatalogPath string
}

// OTelConfig holds OpenTelemetry exporter configuration.
type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

// Enabled reports whether an OTLP endpoint is configured.
func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// IsProduction reports whether the app runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment reports whether the app runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// APIURL returns the REST API base URL for the configured GitHub domain.
func (c GitHubConfig) APIURL() string {
	if c.Domain == "" || c.Domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", c.Domain)
}

// LoadConfig initializes and loads configuration from environment variables.
// In development a .env file in the working directory is loaded first.
func LoadConfig() (*Config, error) {
	env := os.Getenv("CODEFAIR_ENV")
	if env == "" || env == "development" {
		_ = godotenv.Load(".env")
	}

	// Initialize Viper for environment variables
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("env", "development")
	v.SetDefault("github.domain", "github.com")
	v.SetDefault("bot.login", "codefair-app[bot]")
	v.SetDefault("bot.mention", "@codefair-app")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.webhook_path", "/api/github/webhooks")
	v.SetDefault("redis.dedup_ttl", 30*time.Second)
	v.SetDefault("otel.service_name", "codefair")
	v.SetDefault("otel.service_version", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Map specific environment variables
	v.BindEnv("env", "CODEFAIR_ENV")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.app_id", "GITHUB_APP_ID")
	v.BindEnv("github.private_key", "GITHUB_PRIVATE_KEY")
	v.BindEnv("github.private_key_path", "GITHUB_PRIVATE_KEY_PATH")
	v.BindEnv("github.webhook_secret", "GITHUB_WEBHOOK_SECRET")
	v.BindEnv("bot.login", "CODEFAIR_BOT_LOGIN")
	v.BindEnv("bot.mention", "CODEFAIR_MENTION")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.webhook_path", "CODEFAIR_WEBHOOK_PATH")
	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("redis.dedup_ttl", "CODEFAIR_DEDUP_TTL")
	v.BindEnv("spdx.catalog_path", "SPDX_CATALOG_PATH")
	v.BindEnv("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("otel.headers", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("otel.service_name", "OTEL_SERVICE_NAME")
	v.BindEnv("otel.service_version", "OTEL_SERVICE_VERSION")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")

	domain := v.GetString("github.domain")
	if domain == "" {
		domain = "github.com"
	}

	// Create config structure
	config := &Config{
		Env: v.GetString("env"),
		GitHub: GitHubConfig{
			Domain:         domain,
			Token:          v.GetString("github.token"),
			AppID:          v.GetInt64("github.app_id"),
			PrivateKey:     v.GetString("github.private_key"),
			PrivateKeyPath: v.GetString("github.private_key_path"),
			WebhookSecret:  v.GetString("github.webhook_secret"),
		},
		Bot: BotConfig{
			Login:   v.GetString("bot.login"),
			Mention: v.GetString("bot.mention"),
		},
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			WebhookPath: v.GetString("server.webhook_path"),
		},
		Redis: RedisConfig{
			URL:      v.GetString("redis.url"),
			DedupTTL: v.GetDuration("redis.dedup_ttl"),
		},
		SPDX: SPDXConfig{
			CatalogPath: v.GetString("spdx.catalog_path"),
		},
		OTel: OTelConfig{
			Endpoint:       v.GetString("otel.endpoint"),
			Headers:        v.GetString("otel.headers"),
			ServiceName:    v.GetString("otel.service_name"),
			ServiceVersion: v.GetString("otel.service_version"),
		},
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig ensures that the values every command depends on are usable.
func validateConfig(config *Config) error {
	var problems []string

	if config.Env != "development" && config.Env != "production" {
		problems = append(problems, fmt.Sprintf("CODEFAIR_ENV must be development or production, got %q", config.Env))
	}
	if config.Bot.Login == "" {
		problems = append(problems, "CODEFAIR_BOT_LOGIN must not be empty")
	}
	if config.Bot.Mention == "" || strings.ContainsAny(config.Bot.Mention, " \t\n") {
		problems = append(problems, "CODEFAIR_MENTION must be a single non-empty token")
	}
	if config.Redis.DedupTTL <= 0 {
		problems = append(problems, "CODEFAIR_DEDUP_TTL must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateTokenConfig validates the configuration used by token-authenticated
// commands.
func ValidateTokenConfig(config *Config) error {
	if config.GitHub.Token == "" {
		return fmt.Errorf("missing required environment variables: %v", []string{"GITHUB_TOKEN"})
	}
	return nil
}

// ValidateAppConfig validates GitHub App specific configuration.
func ValidateAppConfig(config *Config) error {
	var missingVars []string

	if config.GitHub.AppID == 0 {
		missingVars = append(missingVars, "GITHUB_APP_ID")
	}
	if config.GitHub.PrivateKey == "" && config.GitHub.PrivateKeyPath == "" {
		missingVars = append(missingVars, "GITHUB_PRIVATE_KEY or GITHUB_PRIVATE_KEY_PATH")
	}
	if config.GitHub.WebhookSecret == "" {
		missingVars = append(missingVars, "GITHUB_WEBHOOK_SECRET")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// PrivateKeyPEM returns the app private key, reading it from
// PrivateKeyPath when it was not given inline.
func (c GitHubConfig) PrivateKeyPEM() ([]byte, error) {
	if c.PrivateKey != "" {
		// Some deployment platforms store multi-line secrets with literal \n.
		return []byte(strings.ReplaceAll(c.PrivateKey, `\n`, "\n")), nil
	}
	data, err := os.ReadFile(c.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	return data, nil
}
