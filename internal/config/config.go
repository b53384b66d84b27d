package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"ticket-intake-go/internal/model"
	"ticket-intake-go/internal/pipeline"
)

const (
	ProviderIMAP  = "imap"
	ProviderGmail = "gmail"

	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	TransportGmail = "gmail"
	TransportSMTP  = "smtp"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Mailbox       MailboxConfig      `mapstructure:"mailbox"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Tickets       TicketsConfig      `mapstructure:"tickets"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Log           LogConfig          `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the sqlite file, ":memory:" for a throwaway database.
	Path string `mapstructure:"path"`
}

// MailboxConfig selects the support mailbox and the account-level ingest defaults.
type MailboxConfig struct {
	Provider          string `mapstructure:"provider"`
	AccountID         string `mapstructure:"account_id"`
	AutoCreateTickets bool   `mapstructure:"auto_create_tickets"`
	DefaultPriority   string `mapstructure:"default_priority"`
	DefaultCategory   string `mapstructure:"default_category"`

	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	IMAPUser     string `mapstructure:"imap_user"`
	IMAPPassword string `mapstructure:"imap_password"`
	IMAPFolder   string `mapstructure:"imap_folder"`

	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	IntervalMinutes    int  `mapstructure:"interval_minutes"`
	AssignSweepMinutes int  `mapstructure:"assign_sweep_minutes"`
	AutoStart          bool `mapstructure:"auto_start"`
}

// TicketsConfig holds the assignment settings.
type TicketsConfig struct {
	AutoAssignEnabled bool `mapstructure:"auto_assign_enabled"`
	MatchAreaKeywords bool `mapstructure:"match_area_keywords"`
}

// NotificationConfig controls the acknowledgement mail sent to requesters.
type NotificationConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Transport    string `mapstructure:"transport"`
	From         string `mapstructure:"from"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
}

// RedisConfig enables the shared lock used when several replicas run.
type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig loads configuration from .env, the config file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.driver", DriverMySQL)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "ticket-intake.db")

	v.SetDefault("mailbox.provider", ProviderIMAP)
	v.SetDefault("mailbox.account_id", "support")
	v.SetDefault("mailbox.auto_create_tickets", true)
	v.SetDefault("mailbox.default_priority", string(model.PriorityMedium))
	v.SetDefault("mailbox.default_category", "general")
	v.SetDefault("mailbox.imap_host", "imap.gmail.com")
	v.SetDefault("mailbox.imap_port", 993)
	v.SetDefault("mailbox.imap_folder", "INBOX")

	v.SetDefault("scheduler.interval_minutes", 5)
	v.SetDefault("scheduler.assign_sweep_minutes", 10)
	v.SetDefault("scheduler.auto_start", true)

	v.SetDefault("tickets.auto_assign_enabled", true)
	v.SetDefault("tickets.match_area_keywords", false)

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.transport", TransportSMTP)
	v.SetDefault("notifications.smtp_port", 587)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.lock_ttl", "30s")

	v.SetDefault("log.level", "info")
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.path", "DB_PATH")

	// Mailbox
	v.BindEnv("mailbox.provider", "MAILBOX_PROVIDER")
	v.BindEnv("mailbox.account_id", "MAILBOX_ACCOUNT_ID")
	v.BindEnv("mailbox.auto_create_tickets", "MAILBOX_AUTO_CREATE_TICKETS")
	v.BindEnv("mailbox.default_priority", "MAILBOX_DEFAULT_PRIORITY")
	v.BindEnv("mailbox.default_category", "MAILBOX_DEFAULT_CATEGORY")
	v.BindEnv("mailbox.imap_host", "IMAP_HOST")
	v.BindEnv("mailbox.imap_port", "IMAP_PORT")
	v.BindEnv("mailbox.imap_user", "IMAP_USER")
	v.BindEnv("mailbox.imap_password", "IMAP_PASSWORD")
	v.BindEnv("mailbox.imap_folder", "IMAP_FOLDER")
	v.BindEnv("mailbox.client_id", "GMAIL_CLIENT_ID")
	v.BindEnv("mailbox.client_secret", "GMAIL_CLIENT_SECRET")
	v.BindEnv("mailbox.refresh_token", "GMAIL_REFRESH_TOKEN")
	v.BindEnv("mailbox.user_email", "GMAIL_USER_EMAIL")

	// Scheduler
	v.BindEnv("scheduler.interval_minutes", "SCHEDULER_INTERVAL_MINUTES")
	v.BindEnv("scheduler.assign_sweep_minutes", "SCHEDULER_ASSIGN_SWEEP_MINUTES")
	v.BindEnv("scheduler.auto_start", "SCHEDULER_AUTO_START")

	// Tickets
	v.BindEnv("tickets.auto_assign_enabled", "TICKETS_AUTO_ASSIGN")
	v.BindEnv("tickets.match_area_keywords", "TICKETS_MATCH_AREA_KEYWORDS")

	// Notifications
	v.BindEnv("notifications.enabled", "NOTIFY_ENABLED")
	v.BindEnv("notifications.transport", "NOTIFY_TRANSPORT")
	v.BindEnv("notifications.from", "NOTIFY_FROM")
	v.BindEnv("notifications.smtp_host", "SMTP_HOST")
	v.BindEnv("notifications.smtp_port", "SMTP_PORT")
	v.BindEnv("notifications.smtp_user", "SMTP_USER")
	v.BindEnv("notifications.smtp_password", "SMTP_PASSWORD")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("redis.lock_ttl", "REDIS_LOCK_TTL")

	v.BindEnv("log.level", "LOG_LEVEL")
}

// GetDSN returns the database connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	case DriverSQLite:
		return c.Path
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	}
}

// Settings returns the per-ingest settings derived from the mailbox and ticket sections.
func (c *Config) Settings() pipeline.Settings {
	priority, err := model.ParsePriority(c.Mailbox.DefaultPriority)
	if err != nil {
		priority = model.PriorityMedium
	}
	return pipeline.Settings{
		AutoCreateTickets: c.Mailbox.AutoCreateTickets,
		DefaultPriority:   priority,
		DefaultCategory:   c.Mailbox.DefaultCategory,
		AutoAssign:        c.Tickets.AutoAssignEnabled,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Mailbox.Provider {
	case ProviderGmail:
		if c.Mailbox.ClientID == "" || c.Mailbox.ClientSecret == "" || c.Mailbox.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required for the gmail provider")
		}
	case ProviderIMAP:
		if c.Mailbox.IMAPUser == "" || c.Mailbox.IMAPPassword == "" {
			return fmt.Errorf("IMAP credentials are required when using IMAP")
		}
	default:
		return fmt.Errorf("unsupported mailbox provider %q", c.Mailbox.Provider)
	}

	if c.Mailbox.DefaultPriority != "" {
		if _, err := model.ParsePriority(c.Mailbox.DefaultPriority); err != nil {
			return fmt.Errorf("invalid default priority: %w", err)
		}
	}

	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}
	if c.Scheduler.AssignSweepMinutes < 0 {
		return fmt.Errorf("assignment sweep interval must not be negative")
	}

	if c.Notifications.Enabled {
		switch strings.ToLower(c.Notifications.Transport) {
		case TransportSMTP:
			if c.Notifications.SMTPHost == "" || c.Notifications.From == "" {
				return fmt.Errorf("smtp host and from address are required for notifications")
			}
		case TransportGmail:
			if c.Mailbox.Provider != ProviderGmail {
				return fmt.Errorf("gmail notifications require the gmail mailbox provider")
			}
		default:
			return fmt.Errorf("unsupported notification transport %q", c.Notifications.Transport)
		}
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis url is required when redis is enabled")
	}

	return nil
}
