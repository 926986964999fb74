package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SWB_IMAP_HOST", "imap.example.com")
	t.Setenv("SWB_IMAP_USER", "bot@example.com")
	t.Setenv("SWB_IMAP_PASS", "secret")
	t.Setenv("SWB_ALLOWED_SENDERS", "Alice@Example.com, example.org ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 993, cfg.IMAPPort)
	assert.Equal(t, "INBOX", cfg.Mailbox)
	assert.Equal(t, "imap.example.com:993", cfg.IMAPAddr())
	// Allow-list entries are trimmed, lowercased, and empties dropped.
	assert.Equal(t, []string{"alice@example.com", "example.org"}, cfg.AllowedSenders)
	require.NoError(t, cfg.ValidateRelay())
}

func TestValidateRelayMissingFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateRelay()
	require.ErrorIs(t, err, ErrMissingField)
}

func TestSenderAllowed(t *testing.T) {
	cfg := &Config{AllowedSenders: []string{"alice@example.com", "ops.example.org"}}

	assert.True(t, cfg.SenderAllowed("Alice Smith <ALICE@example.com>"))
	assert.True(t, cfg.SenderAllowed("bob@ops.example.org"))
	assert.False(t, cfg.SenderAllowed("mallory@evil.test"))
	assert.False(t, cfg.SenderAllowed(""))
}

func TestStorePaths(t *testing.T) {
	cfg := &Config{StateDir: "/var/lib/switchboard"}
	assert.Equal(t, "/var/lib/switchboard/session-map.json", cfg.RegistryPath())
	assert.Equal(t, "/var/lib/switchboard/sent-messages.json", cfg.SentLedgerPath())
	assert.Equal(t, "/var/lib/switchboard/processed-messages.json", cfg.ProcessedLedgerPath())
}
