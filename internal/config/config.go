// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// Config captures all service configuration knobs loaded via Viper.
// It is assembled once at startup, validated eagerly, and read-only
// thereafter.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Auth      AuthConfig                `mapstructure:"auth"`
	DB        DBConfig                  `mapstructure:"db"`
	Reader    ReaderConfig              `mapstructure:"reader"`
	Tokenizer TokenizerConfig           `mapstructure:"tokenizer"`
	Billing   BillingConfig             `mapstructure:"billing"`
	Site      SiteConfig                `mapstructure:"site"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Tiers     map[string]TierDefinition `mapstructure:"tiers"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	RequestTimeout int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines bearer-token authentication settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ReaderConfig configures the external markdown extraction service.
type ReaderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// TokenizerConfig names the token encoding used for token counts.
type TokenizerConfig struct {
	Encoding string `mapstructure:"encoding"`
}

// BillingConfig holds the webhook shared secret.
type BillingConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// SiteConfig carries the public-facing base URL used in permanent links.
type SiteConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Production bool   `mapstructure:"production"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TierDefinition describes one subscription tier. DailyLimit <= 0 means
// unlimited.
type TierDefinition struct {
	Name         string   `mapstructure:"name"`
	DailyLimit   int      `mapstructure:"daily_limit"`
	Features     []string `mapstructure:"features"`
	PriceMonthly int      `mapstructure:"price_monthly"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CTXT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("reader.timeout_seconds", 30)
	v.SetDefault("reader.max_retries", 2)
	v.SetDefault("tokenizer.encoding", "cl100k_base")
	v.SetDefault("site.base_url", "https://ctxt.help")
	v.SetDefault("site.production", false)
	v.SetDefault("logging.development", true)

	v.SetDefault("tiers.free.name", "Free")
	v.SetDefault("tiers.free.daily_limit", 5)
	v.SetDefault("tiers.free.features", []string{
		"client_side_conversion",
		"copy_to_clipboard",
		"chatgpt_export",
		"claude_export",
		"seo_pages_access",
	})
	v.SetDefault("tiers.free.price_monthly", 0)

	v.SetDefault("tiers.power.name", "Power User")
	v.SetDefault("tiers.power.daily_limit", 0)
	v.SetDefault("tiers.power.features", []string{
		"unlimited_conversions",
		"conversion_library",
		"advanced_export",
		"context_templates",
		"browser_extension",
		"priority_conversion",
	})
	v.SetDefault("tiers.power.price_monthly", 5)

	v.SetDefault("tiers.pro.name", "Pro")
	v.SetDefault("tiers.pro.daily_limit", 0)
	v.SetDefault("tiers.pro.features", []string{
		"mcp_server_access",
		"api_access",
		"advanced_context_tools",
		"team_sharing",
		"analytics_dashboard",
		"priority_support",
	})
	v.SetDefault("tiers.pro.price_monthly", 15)

	v.SetDefault("tiers.enterprise.name", "Enterprise")
	v.SetDefault("tiers.enterprise.daily_limit", 0)
	v.SetDefault("tiers.enterprise.features", []string{
		"self_hosted_mcp",
		"custom_rate_limits",
		"sso_integration",
		"custom_features",
		"sla_guarantees",
		"dedicated_support",
	})
	v.SetDefault("tiers.enterprise.price_monthly", 0)
}

// Validate enforces required values and reasonable limits. Failures are
// fatal at startup, never per-request.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return &core.ConfigurationError{Key: "server.port", Detail: "must be > 0"}
	}
	if c.DB.DSN == "" {
		return &core.ConfigurationError{Key: "db.dsn", Detail: "is required"}
	}
	if c.Auth.JWTSecret == "" {
		return &core.ConfigurationError{Key: "auth.jwt_secret", Detail: "is required"}
	}
	if c.Reader.BaseURL == "" {
		return &core.ConfigurationError{Key: "reader.base_url", Detail: "is required"}
	}
	if c.Reader.TimeoutSeconds <= 0 {
		return &core.ConfigurationError{Key: "reader.timeout_seconds", Detail: "must be > 0"}
	}
	if _, ok := c.Tiers[string(core.TierFree)]; !ok {
		return &core.ConfigurationError{Key: "tiers.free", Detail: "definition is required"}
	}
	return nil
}

// ReaderTimeout converts the reader timeout into a duration.
func (c Config) ReaderTimeout() time.Duration {
	return time.Duration(c.Reader.TimeoutSeconds) * time.Second
}

// RequestTimeout converts the server request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}
