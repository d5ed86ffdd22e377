package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/sushihentaime/devlog/internal/common"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Environment    string   `mapstructure:"ENVIRONMENT"`
	Version        string   `mapstructure:"VERSION"`
	TrustedOrigins []string `mapstructure:"TRUSTED_ORIGINS"`
	SiteURL        string   `mapstructure:"SITE_URL"`
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	ContentDir      string        `mapstructure:"CONTENT_DIR"`
	ContentCacheTTL time.Duration `mapstructure:"CONTENT_CACHE_TTL"`
	ContentWatch    bool          `mapstructure:"CONTENT_WATCH"`

	NewsletterBackend string `mapstructure:"NEWSLETTER_BACKEND"`
	NewsletterFile    string `mapstructure:"NEWSLETTER_FILE"`
	NewsletterName    string `mapstructure:"NEWSLETTER_NAME"`

	DBHost     string `mapstructure:"POSTGRES_HOST"`
	DBPort     string `mapstructure:"POSTGRES_PORT"`
	DBUser     string `mapstructure:"POSTGRES_USER"`
	DBPassword string `mapstructure:"POSTGRES_PASSWORD"`
	DBName     string `mapstructure:"POSTGRES_DB"`

	DBMaxOpenConns int           `mapstructure:"POSTGRES_MAX_OPEN_CONNS"`
	DBMaxIdleConns int           `mapstructure:"POSTGRES_MAX_IDLE_CONNS"`
	DBMaxIdleTime  time.Duration `mapstructure:"POSTGRES_MAX_IDLE_TIME"`
	DBMigrations   string        `mapstructure:"POSTGRES_MIGRATIONS"`

	MailHost     string `mapstructure:"MAIL_HOST"`
	MailPort     int    `mapstructure:"MAIL_PORT"`
	MailUser     string `mapstructure:"MAIL_USER"`
	MailPassword string `mapstructure:"MAIL_PASSWORD"`
	MailSender   string `mapstructure:"MAIL_SENDER"`
	ContactEmail string `mapstructure:"CONTACT_EMAIL"`

	MQHost     string `mapstructure:"RABBITMQ_HOST"`
	MQPort     string `mapstructure:"RABBITMQ_PORT"`
	MQUser     string `mapstructure:"RABBITMQ_USER"`
	MQPassword string `mapstructure:"RABBITMQ_PASSWORD"`

	RateLimitRPS     float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int     `mapstructure:"RATE_LIMIT_BURST"`
	RateLimitEnabled bool    `mapstructure:"RATE_LIMIT_ENABLED"`

	AdminUser         string `mapstructure:"ADMIN_USER"`
	AdminPasswordHash string `mapstructure:"ADMIN_PASSWORD_HASH"`
}

const (
	backendFile     = "file"
	backendPostgres = "postgres"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "4000")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("VERSION", "dev")
	v.SetDefault("TRUSTED_ORIGINS", []string{})
	v.SetDefault("SITE_URL", "http://localhost:3000")
	v.SetDefault("TRUSTED_PROXIES", []string{})

	v.SetDefault("CONTENT_DIR", "content")
	v.SetDefault("CONTENT_CACHE_TTL", 5*time.Minute)
	v.SetDefault("CONTENT_WATCH", false)

	v.SetDefault("NEWSLETTER_BACKEND", backendFile)
	v.SetDefault("NEWSLETTER_FILE", "content/newsletter/subscribers.json")
	v.SetDefault("NEWSLETTER_NAME", "The Upkeep")

	v.SetDefault("POSTGRES_HOST", "")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_DB", "")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 10)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 5)
	v.SetDefault("POSTGRES_MAX_IDLE_TIME", 15*time.Minute)
	v.SetDefault("POSTGRES_MIGRATIONS", "file://migrations")

	v.SetDefault("MAIL_HOST", "localhost")
	v.SetDefault("MAIL_PORT", 25)
	v.SetDefault("MAIL_USER", "")
	v.SetDefault("MAIL_PASSWORD", "")
	v.SetDefault("MAIL_SENDER", "")
	v.SetDefault("CONTACT_EMAIL", "")

	v.SetDefault("RABBITMQ_HOST", "")
	v.SetDefault("RABBITMQ_PORT", "5672")
	v.SetDefault("RABBITMQ_USER", "guest")
	v.SetDefault("RABBITMQ_PASSWORD", "guest")

	v.SetDefault("RATE_LIMIT_RPS", 2)
	v.SetDefault("RATE_LIMIT_BURST", 4)
	v.SetDefault("RATE_LIMIT_ENABLED", true)

	v.SetDefault("ADMIN_USER", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
}

// loadConfig reads an env file and lets environment variables override it.
// An empty path reads ./.env when it exists.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(".env"); err == nil {
			path = ".env"
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	v := common.NewValidator()

	v.Check(c.Port != "", "PORT", "must be provided")
	v.Check(common.PermittedValue(c.Environment, "development", "staging", "production"), "ENVIRONMENT", "must be one of development, staging or production")
	v.Check(common.IsURL(c.SiteURL), "SITE_URL", "must be a URL")
	_, err := parseProxies(c.TrustedProxies)
	v.Check(err == nil, "TRUSTED_PROXIES", "must be a list of IP addresses or CIDR ranges")
	v.Check(c.ContentDir != "", "CONTENT_DIR", "must be provided")
	v.Check(c.ContentCacheTTL >= 0, "CONTENT_CACHE_TTL", "must not be negative")

	v.Check(common.PermittedValue(c.NewsletterBackend, backendFile, backendPostgres), "NEWSLETTER_BACKEND", "must be file or postgres")
	if c.NewsletterBackend == backendFile {
		v.Check(c.NewsletterFile != "", "NEWSLETTER_FILE", "must be provided")
	}
	if c.NewsletterBackend == backendPostgres {
		v.Check(c.DBHost != "", "POSTGRES_HOST", "must be provided")
		v.Check(c.DBName != "", "POSTGRES_DB", "must be provided")
	}

	if c.RateLimitEnabled {
		v.Check(c.RateLimitRPS > 0, "RATE_LIMIT_RPS", "must be greater than zero")
		v.Check(c.RateLimitBurst > 0, "RATE_LIMIT_BURST", "must be greater than zero")
	}

	if !v.Valid() {
		return fmt.Errorf("invalid configuration: %w", v.ValidationError())
	}

	return nil
}

// validateServe checks the settings only the HTTP server needs, so that
// `check` runs without mail credentials.
func (c *Config) validateServe() error {
	v := common.NewValidator()

	v.Check(c.ContactEmail != "", "CONTACT_EMAIL", "must be provided")
	v.Check(c.ContactEmail == "" || common.EmailRX.MatchString(c.ContactEmail), "CONTACT_EMAIL", "must be a valid email address")

	if !v.Valid() {
		return fmt.Errorf("invalid configuration: %w", v.ValidationError())
	}

	return nil
}

func (c *Config) dbConfig() common.DBConfig {
	return common.DBConfig{
		Host:         c.DBHost,
		Port:         c.DBPort,
		User:         c.DBUser,
		Password:     c.DBPassword,
		Name:         c.DBName,
		MaxOpenConns: c.DBMaxOpenConns,
		MaxIdleConns: c.DBMaxIdleConns,
		MaxIdleTime:  c.DBMaxIdleTime,
	}
}

func (c *Config) brokerURI() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.MQUser, c.MQPassword, c.MQHost, c.MQPort)
}
