package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/switchboard/internal/extract"
	"github.com/steveyegge/switchboard/internal/inject"
	"github.com/steveyegge/switchboard/internal/poller"
	"github.com/steveyegge/switchboard/internal/relay"
	"github.com/steveyegge/switchboard/internal/store"
	"github.com/steveyegge/switchboard/internal/tmux"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"daemon"},
	GroupID: GroupRelay,
	Short:   "Run the inbound relay daemon",
	Long: `Run the inbound relay daemon.

Connects to the configured IMAP mailbox, sweeps everything currently
unseen, then waits for new mail. Each reply that carries a session
marker is turned into a command and injected into the matching tmux
session. Runs until interrupted; connection drops reconnect forever.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateRelay(); err != nil {
		return err
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

	term := tmux.NewTmux()
	if !term.IsAvailable() {
		log.Warn().Msg("tmux not found on PATH, direct injection will fail over to clipboard")
	}

	injector := inject.New(registry, term, cfg.DefaultSession, log)
	pipeline := relay.New(cfg, sent, processed, extract.NewExtractor(cfg.SMTPUser), injector, log)
	p := poller.New(cfg, pipeline, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("mailbox", cfg.Mailbox).
		Str("host", cfg.IMAPHost).
		Msg("relay starting")
	err = p.Run(ctx)
	log.Info().Msg("relay stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}
