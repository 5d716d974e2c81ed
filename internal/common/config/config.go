// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Dispatch      DispatchConfig     `mapstructure:"dispatch"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Booking       BookingConfig      `mapstructure:"booking"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Events        EventsConfig       `mapstructure:"events"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	ListenAddress  string `mapstructure:"listen_address"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	AdminToken     string `mapstructure:"admin_token"`
	RateLimitRPS   int    `mapstructure:"rate_limit_rps"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	EventIndex string   `mapstructure:"event_index"`
	Enabled    bool     `mapstructure:"enabled"`
}

// GetURL returns the first configured address.
func (e ElasticsearchConfig) GetURL() string {
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// --- Domain Configuration Sections ---

// DispatchConfig holds settings for the call-next controller.
type DispatchConfig struct {
	CASRetries    int `mapstructure:"cas_retries"`    // extra selection attempts after a lost race
	NotifyTimeout int `mapstructure:"notify_timeout"` // milliseconds
}

// SchedulerConfig holds settings for the reminder sweep loop.
type SchedulerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	SweepInterval int  `mapstructure:"sweep_interval"` // milliseconds
	NotifyTimeout int  `mapstructure:"notify_timeout"` // milliseconds
}

// BookingConfig holds settings applied when tickets are created.
type BookingConfig struct {
	DailyTicketLimit int `mapstructure:"daily_ticket_limit"`
}

// NotificationConfig holds settings for the outbound notification channels.
type NotificationConfig struct {
	Telegram struct {
		Enabled  bool   `mapstructure:"enabled"`
		BotToken string `mapstructure:"bot_token"`
		APIBase  string `mapstructure:"api_base"`
	} `mapstructure:"telegram"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	DirectoryTTL int `mapstructure:"directory_ttl"` // seconds, recipient binding lifetime
	CodeTTL      int `mapstructure:"code_ttl"`      // seconds, verification code lifetime
}

// EventsConfig controls the best-effort audit trail indexer.
type EventsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
