// Package config loads relay configuration from the environment.
//
// All behavior switches live in one explicit Config value that is passed
// into the poller, relay and injector at construction. Nothing else reads
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var (
	// ErrMissingField indicates a required config field is empty.
	ErrMissingField = errors.New("missing required field")
)

// Config holds all switchboard configuration loaded from environment variables.
type Config struct {
	LogLevel string `envconfig:"SWB_LOG_LEVEL" default:"info"`

	// IMAP message store (inbound replies)
	IMAPHost   string        `envconfig:"SWB_IMAP_HOST"`
	IMAPPort   int           `envconfig:"SWB_IMAP_PORT" default:"993"`
	IMAPUser   string        `envconfig:"SWB_IMAP_USER"`
	IMAPPass   string        `envconfig:"SWB_IMAP_PASS"`
	IMAPSecure bool          `envconfig:"SWB_IMAP_SECURE" default:"true"`
	Mailbox    string        `envconfig:"SWB_IMAP_MAILBOX" default:"INBOX"`
	DialTimeout time.Duration `envconfig:"SWB_IMAP_DIAL_TIMEOUT" default:"60s"`
	AuthTimeout time.Duration `envconfig:"SWB_IMAP_AUTH_TIMEOUT" default:"30s"`

	// SMTP (outbound notifications)
	SMTPHost string `envconfig:"SWB_SMTP_HOST"`
	SMTPPort int    `envconfig:"SWB_SMTP_PORT" default:"587"`
	SMTPUser string `envconfig:"SWB_SMTP_USER"`
	SMTPPass string `envconfig:"SWB_SMTP_PASS"`
	NotifyTo string `envconfig:"SWB_NOTIFY_TO"`

	// Relay policy
	AllowedSenders []string `envconfig:"SWB_ALLOWED_SENDERS"` // comma-separated address substrings
	DefaultSession string   `envconfig:"SWB_DEFAULT_SESSION" default:"switchboard"`

	// Polling
	PollInterval     time.Duration `envconfig:"SWB_POLL_INTERVAL" default:"2m"`
	ReconnectBackoff time.Duration `envconfig:"SWB_RECONNECT_BACKOFF" default:"10s"`

	// Durable state: three flat JSON stores under StateDir.
	StateDir string `envconfig:"SWB_STATE_DIR" default:"~/.switchboard"`

	// Retention windows for the two identifier ledgers.
	SentRetention      time.Duration `envconfig:"SWB_SENT_RETENTION" default:"24h"`
	ProcessedRetention time.Duration `envconfig:"SWB_PROCESSED_RETENTION" default:"168h"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize cleans up list fields and expands the state dir.
func (c *Config) normalize() {
	if strings.HasPrefix(c.StateDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(home, c.StateDir[2:])
		}
	}
	senders := make([]string, 0, len(c.AllowedSenders))
	for _, s := range c.AllowedSenders {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			senders = append(senders, s)
		}
	}
	c.AllowedSenders = senders
}

// ValidateRelay checks the fields the relay daemon needs.
func (c *Config) ValidateRelay() error {
	if c.IMAPHost == "" {
		return fmt.Errorf("%w: SWB_IMAP_HOST", ErrMissingField)
	}
	if c.IMAPUser == "" {
		return fmt.Errorf("%w: SWB_IMAP_USER", ErrMissingField)
	}
	if c.IMAPPass == "" {
		return fmt.Errorf("%w: SWB_IMAP_PASS", ErrMissingField)
	}
	if len(c.AllowedSenders) == 0 {
		return fmt.Errorf("%w: SWB_ALLOWED_SENDERS", ErrMissingField)
	}
	return nil
}

// ValidateNotify checks the fields the outbound notifier needs.
func (c *Config) ValidateNotify() error {
	if c.SMTPHost == "" {
		return fmt.Errorf("%w: SWB_SMTP_HOST", ErrMissingField)
	}
	if c.SMTPUser == "" {
		return fmt.Errorf("%w: SWB_SMTP_USER", ErrMissingField)
	}
	if c.SMTPPass == "" {
		return fmt.Errorf("%w: SWB_SMTP_PASS", ErrMissingField)
	}
	if c.NotifyTo == "" {
		return fmt.Errorf("%w: SWB_NOTIFY_TO", ErrMissingField)
	}
	return nil
}

// IMAPAddr returns the host:port dial address for the message store.
func (c *Config) IMAPAddr() string {
	return fmt.Sprintf("%s:%d", c.IMAPHost, c.IMAPPort)
}

// SenderAllowed reports whether a from-address matches the allow-list.
// Matching is case-insensitive substring, so entries may be bare addresses
// or whole domains.
func (c *Config) SenderAllowed(from string) bool {
	if from == "" {
		return false
	}
	addr := strings.ToLower(from)
	for _, allowed := range c.AllowedSenders {
		if strings.Contains(addr, allowed) {
			return true
		}
	}
	return false
}

// RegistryPath returns the session registry file path.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.StateDir, "session-map.json")
}

// SentLedgerPath returns the sent-message ledger file path.
func (c *Config) SentLedgerPath() string {
	return filepath.Join(c.StateDir, "sent-messages.json")
}

// ProcessedLedgerPath returns the processed-message ledger file path.
func (c *Config) ProcessedLedgerPath() string {
	return filepath.Join(c.StateDir, "processed-messages.json")
}
