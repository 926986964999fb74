// Package cmd implements the switchboard CLI.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/steveyegge/switchboard/internal/config"
)

// Command groups for help output.
const (
	GroupRelay    = "relay"
	GroupSessions = "sessions"
)

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Email relay for tmux terminal sessions",
	Long: `Switchboard relays email replies into tmux terminal sessions.

Outbound, it mails you when a long-running session has something to
report. Inbound, it watches a mailbox and turns your replies back into
keystrokes in the session that sent the notification.

The relay daemon ("switchboard serve") is the inbound half. "switchboard
notify" is the outbound half, typically run from a hook or script inside
the session being watched.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupRelay, Title: "Relay:"},
		&cobra.Group{ID: GroupSessions, Title: "Sessions:"},
	)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statusCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and builds the process logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return cfg, log, nil
}
