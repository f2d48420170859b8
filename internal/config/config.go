package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Every key maps to an environment
// variable by upper-casing it and replacing dots with underscores
// (db.host -> DB_HOST).
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	DB       DBConfig       `mapstructure:"db"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Mail     MailConfig     `mapstructure:"mail"`
	Matching MatchingConfig `mapstructure:"matching"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	URL      string `mapstructure:"url"`

	// AdminBootstrapSecret enables POST /auth/bootstrap-admin when set.
	AdminBootstrapSecret string `mapstructure:"admin_bootstrap_secret"`
}

type DBConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	TTL      time.Duration `mapstructure:"ttl"`
	ResetTTL time.Duration `mapstructure:"reset_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AlertsConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

type MailConfig struct {
	Provider     string `mapstructure:"provider"` // smtp|plunk|log
	From         string `mapstructure:"from"`
	ReplyTo      string `mapstructure:"reply_to"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     string `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	PlunkAPIKey  string `mapstructure:"plunk_api_key"`
	PlunkAPIURL  string `mapstructure:"plunk_api_url"`
}

type MatchingConfig struct {
	Specialty bool `mapstructure:"specialty"`
	Radius    bool `mapstructure:"radius"`
}

var defaults = map[string]any{
	"app.env":                    "dev",
	"app.port":                   "8080",
	"app.log_level":              "info",
	"app.url":                    "http://localhost:3000",
	"app.admin_bootstrap_secret": "",
	"db.url":                     "",
	"db.host":                    "",
	"db.port":                    "5432",
	"db.user":                    "",
	"db.password":                "",
	"db.name":                    "",
	"db.sslmode":                 "disable",
	"jwt.secret":                 "",
	"jwt.ttl":                    "72h",
	"jwt.reset_ttl":              "30m",
	"redis.addr":                 "",
	"redis.password":             "",
	"redis.db":                   0,
	"alerts.enabled":             false,
	"alerts.concurrency":         5,
	"mail.provider":              "log",
	"mail.from":                  "no-reply@meujardineiro.com.br",
	"mail.reply_to":              "",
	"mail.smtp_host":             "",
	"mail.smtp_port":             "587",
	"mail.smtp_username":         "",
	"mail.smtp_password":         "",
	"mail.plunk_api_key":         "",
	"mail.plunk_api_url":         "https://api.useplunk.com/v1/send",
	"matching.specialty":         false,
	"matching.radius":            false,
}

// Load reads the given .env files (missing files are ignored) and then the
// process environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required (JWT_SECRET)")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("jwt ttl must be positive")
	}
	if c.Alerts.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when alerts are enabled")
	}
	switch c.Mail.Provider {
	case "log", "smtp", "plunk":
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}
	return nil
}

// DSN builds the Postgres connection string. An explicit DB_URL wins; an
// empty result means no database is configured.
func (d DBConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}
