package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/switchboard/internal/store"
	"github.com/steveyegge/switchboard/internal/tmux"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: GroupSessions,
	Short:   "Show relay configuration and state",
	Long: `Show relay configuration and durable state.

Reports the configured mailbox, the tmux server, and the sizes of the
three state files under the state directory. Secrets are not printed.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("Mailbox:     %s on %s (user %s)\n", cfg.Mailbox, cfg.IMAPAddr(), cfg.IMAPUser)
	fmt.Printf("Notify to:   %s via %s:%d\n", cfg.NotifyTo, cfg.SMTPHost, cfg.SMTPPort)
	fmt.Printf("State dir:   %s\n", cfg.StateDir)
	fmt.Printf("Senders:     %d allowed pattern(s)\n", len(cfg.AllowedSenders))

	term := tmux.NewTmux()
	if !term.IsAvailable() {
		fmt.Println("tmux:        not found on PATH")
	} else if sessions, err := term.ListSessions(); err != nil {
		fmt.Printf("tmux:        error: %v\n", err)
	} else {
		fmt.Printf("tmux:        %d session(s)\n", len(sessions))
	}

	registry, err := store.OpenRegistry(cfg.RegistryPath())
	if err != nil {
		return err
	}
	sent, err := store.OpenSentLedger(cfg.SentLedgerPath(), cfg.SentRetention)
	if err != nil {
		return err
	}
	processed, err := store.OpenProcessedLedger(cfg.ProcessedLedgerPath(), cfg.ProcessedRetention)
	if err != nil {
		return err
	}
	fmt.Printf("Routes:      %d registered\n", len(registry.All()))
	fmt.Printf("Sent:        %d message(s) in suppression window\n", sent.Len())
	fmt.Printf("Processed:   %d message(s) remembered\n", processed.Len())
	return nil
}
