// Package config defines the TOML configuration for inboxd and its defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/inboxd/inboxd/helpers"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Output string `toml:"output"` // Log output: "stderr", "stdout", "syslog", or file path
	Format string `toml:"format"` // Log format: "json" or "console"
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", "error"
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string      `toml:"host"`
	Port            interface{} `toml:"port"` // Database port (default: "5432"), can be string or integer
	User            string      `toml:"user"`
	Password        string      `toml:"password"`
	Name            string      `toml:"name"`
	TLSMode         bool        `toml:"tls"`
	LogQueries      bool        `toml:"log_queries"`
	MaxConns        int         `toml:"max_conns"`
	MinConns        int         `toml:"min_conns"`
	MaxConnLifetime string      `toml:"max_conn_lifetime"`
	MaxConnIdleTime string      `toml:"max_conn_idle_time"`
}

// GetPort normalizes the port value, which TOML may decode as a string or an integer.
func (d *DatabaseConfig) GetPort() (string, error) {
	switch v := d.Port.(type) {
	case nil:
		return "5432", nil
	case string:
		if v == "" {
			return "5432", nil
		}
		if _, err := strconv.Atoi(v); err != nil {
			return "", fmt.Errorf("invalid database port %q: %v", v, err)
		}
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64: // TOML parsers often use int64 for numbers
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("invalid type for database port: %T", v)
	}
}

// GetMaxConnLifetime parses the max connection lifetime duration.
func (d *DatabaseConfig) GetMaxConnLifetime() (time.Duration, error) {
	if d.MaxConnLifetime == "" {
		return time.Hour, nil
	}
	return helpers.ParseDuration(d.MaxConnLifetime)
}

// GetMaxConnIdleTime parses the max connection idle time duration.
func (d *DatabaseConfig) GetMaxConnIdleTime() (time.Duration, error) {
	if d.MaxConnIdleTime == "" {
		return 30 * time.Minute, nil
	}
	return helpers.ParseDuration(d.MaxConnIdleTime)
}

// IMAPSourceConfig holds the connection settings for the upstream mailbox
// that all disposable-domain mail is funneled into.
type IMAPSourceConfig struct {
	Start              bool   `toml:"start"`
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	User               string `toml:"user"`
	Password           string `toml:"password"`
	TLS                bool   `toml:"tls"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"` // Accept self-signed upstream certificates
	Mailbox            string `toml:"mailbox"`
	AuthTimeout        string `toml:"auth_timeout"`        // Bound on dial+login before the attempt counts as failed
	ReconnectDelay     string `toml:"reconnect_delay"`     // Fixed delay before reconnecting after a dropped session
	ConnectRetryDelay  string `toml:"connect_retry_delay"` // Fixed delay before retrying a failed connection attempt
	PollInterval       string `toml:"poll_interval"`       // Fetch interval when the server does not support IDLE
}

// Address returns the host:port dial address for the upstream server.
func (c *IMAPSourceConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = 993
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// GetAuthTimeout parses the authentication timeout.
func (c *IMAPSourceConfig) GetAuthTimeout() (time.Duration, error) {
	if c.AuthTimeout == "" {
		return 3 * time.Second, nil
	}
	return helpers.ParseDuration(c.AuthTimeout)
}

// GetReconnectDelay parses the reconnect delay.
func (c *IMAPSourceConfig) GetReconnectDelay() (time.Duration, error) {
	if c.ReconnectDelay == "" {
		return 5 * time.Second, nil
	}
	return helpers.ParseDuration(c.ReconnectDelay)
}

// GetConnectRetryDelay parses the initial connection retry delay.
func (c *IMAPSourceConfig) GetConnectRetryDelay() (time.Duration, error) {
	if c.ConnectRetryDelay == "" {
		return 10 * time.Second, nil
	}
	return helpers.ParseDuration(c.ConnectRetryDelay)
}

// GetPollInterval parses the fallback polling interval.
func (c *IMAPSourceConfig) GetPollInterval() (time.Duration, error) {
	if c.PollInterval == "" {
		return time.Minute, nil
	}
	return helpers.ParseDuration(c.PollInterval)
}

// SMTPSinkConfig holds the optional direct SMTP ingestion endpoint.
// It is disabled by default; the IMAP source is the primary ingestion path.
type SMTPSinkConfig struct {
	Start          bool   `toml:"start"`
	Addr           string `toml:"addr"`
	Hostname       string `toml:"hostname"`
	MaxMessageSize int64  `toml:"max_message_size"`
}

// HTTPConfig holds the HTTP API server configuration.
type HTTPConfig struct {
	Start        bool     `toml:"start"`
	Addr         string   `toml:"addr"`
	APIKey       string   `toml:"api_key"` // Bearer token required for /api/admin routes; empty disables the check
	AllowedHosts []string `toml:"allowed_hosts"`
}

// IngestConfig holds the addressing policy for ingested mail.
type IngestConfig struct {
	// Domains is the set of disposable domains this installation serves.
	// A forwarding header is only trusted when its address belongs to one
	// of these domains.
	Domains []string `toml:"domains"`
	// ExcludedSender is the system mailbox's own address; mail from it is
	// hidden from every inbox view.
	ExcludedSender string `toml:"excluded_sender"`
}

// RetentionConfig holds the retention policy for stored messages.
type RetentionConfig struct {
	Window       string `toml:"window"`        // Maximum age of a stored message
	WakeInterval string `toml:"wake_interval"` // How often the enforcer runs
	StartupDelay string `toml:"startup_delay"` // Delay before the first run after process start
}

// GetWindow parses the retention window.
func (r *RetentionConfig) GetWindow() (time.Duration, error) {
	if r.Window == "" {
		return 24 * time.Hour, nil
	}
	return helpers.ParseDuration(r.Window)
}

// GetWakeInterval parses the enforcer wake interval.
func (r *RetentionConfig) GetWakeInterval() (time.Duration, error) {
	if r.WakeInterval == "" {
		return time.Hour, nil
	}
	return helpers.ParseDuration(r.WakeInterval)
}

// GetStartupDelay parses the delay before the first retention run.
func (r *RetentionConfig) GetStartupDelay() (time.Duration, error) {
	if r.StartupDelay == "" {
		return 5 * time.Second, nil
	}
	return helpers.ParseDuration(r.StartupDelay)
}

// Config holds all configuration for the application.
type Config struct {
	Logging   LoggingConfig    `toml:"logging"`
	Database  DatabaseConfig   `toml:"database"`
	IMAP      IMAPSourceConfig `toml:"imap"`
	SMTP      SMTPSinkConfig   `toml:"smtp"`
	HTTP      HTTPConfig       `toml:"http"`
	Ingest    IngestConfig     `toml:"ingest"`
	Retention RetentionConfig  `toml:"retention"`
}

// NewDefaultConfig creates a Config struct with default values.
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "inboxd",
			MaxConns:        25,
			MinConns:        2,
			MaxConnLifetime: "1h",
			MaxConnIdleTime: "30m",
		},
		IMAP: IMAPSourceConfig{
			Start:             true,
			Port:              993,
			TLS:               true,
			Mailbox:           "INBOX",
			AuthTimeout:       "3s",
			ReconnectDelay:    "5s",
			ConnectRetryDelay: "10s",
			PollInterval:      "1m",
		},
		SMTP: SMTPSinkConfig{
			Start:          false,
			Addr:           ":2525",
			MaxMessageSize: 10 * 1024 * 1024,
		},
		HTTP: HTTPConfig{
			Start: true,
			Addr:  ":3001",
		},
		Retention: RetentionConfig{
			Window:       "24h",
			WakeInterval: "1h",
			StartupDelay: "5s",
		},
	}
}

// Load decodes the TOML file at path over cfg. A missing file is not an
// error; compiled-in defaults (plus flag overrides) apply.
func Load(path string, cfg *Config) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// Validate checks cross-field constraints that the TOML decoder cannot.
func (c *Config) Validate() error {
	if c.IMAP.Start {
		if c.IMAP.Host == "" {
			return fmt.Errorf("imap.host is required when the IMAP source is enabled")
		}
		if c.IMAP.User == "" {
			return fmt.Errorf("imap.user is required when the IMAP source is enabled")
		}
	}
	if (c.IMAP.Start || c.SMTP.Start || c.HTTP.Start) && len(c.Ingest.Domains) == 0 {
		return fmt.Errorf("ingest.domains must list at least one served domain")
	}
	for _, field := range []struct {
		name  string
		parse func() (time.Duration, error)
	}{
		{"imap.auth_timeout", c.IMAP.GetAuthTimeout},
		{"imap.reconnect_delay", c.IMAP.GetReconnectDelay},
		{"imap.connect_retry_delay", c.IMAP.GetConnectRetryDelay},
		{"imap.poll_interval", c.IMAP.GetPollInterval},
		{"retention.window", c.Retention.GetWindow},
		{"retention.wake_interval", c.Retention.GetWakeInterval},
		{"retention.startup_delay", c.Retention.GetStartupDelay},
		{"database.max_conn_lifetime", c.Database.GetMaxConnLifetime},
		{"database.max_conn_idle_time", c.Database.GetMaxConnIdleTime},
	} {
		if _, err := field.parse(); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	if _, err := c.Database.GetPort(); err != nil {
		return err
	}
	return nil
}
