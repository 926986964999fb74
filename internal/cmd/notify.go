package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/switchboard/internal/notify"
	"github.com/steveyegge/switchboard/internal/store"
	"github.com/steveyegge/switchboard/internal/tmux"
)

var (
	notifySession string
	notifySummary string
	notifyCapture int
)

var notifyCmd = &cobra.Command{
	Use:     "notify",
	GroupID: GroupRelay,
	Short:   "Send a notification email for a session",
	Long: `Send a notification email for a tmux session.

Mails the configured recipient, registers a reply route for the session
and prints the reply token. With --capture, the last N lines of the
session's pane are included in the message body.

Typically run from inside the session being watched:

  switchboard notify --summary "tests finished"

When --session is omitted the surrounding tmux session is used.`,
	RunE: runNotify,
}

func init() {
	notifyCmd.Flags().StringVarP(&notifySession, "session", "s", "", "tmux session to register (default: current session)")
	notifyCmd.Flags().StringVarP(&notifySummary, "summary", "m", "", "one-line summary for the subject")
	notifyCmd.Flags().IntVar(&notifyCapture, "capture", 0, "include the last N lines of pane output")
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateNotify(); err != nil {
		return err
	}

	term := tmux.NewTmux()
	session := notifySession
	if session == "" {
		session = currentTmuxSession()
	}
	if session == "" {
		return fmt.Errorf("no --session given and not inside a tmux session")
	}

	note := notify.Notification{
		SessionName: session,
		Summary:     notifySummary,
	}
	if wd, err := os.Getwd(); err == nil {
		note.WorkingDirectory = wd
	}
	if notifyCapture > 0 {
		out, err := term.CapturePane(session, notifyCapture)
		if err != nil {
			log.Warn().Err(err).Str("session", session).Msg("pane capture failed, sending without output")
		} else {
			note.Output = out
		}
	}

	registry, err := store.OpenRegistry(cfg.RegistryPath())
	if err != nil {
		return err
	}
	sent, err := store.OpenSentLedger(cfg.SentLedgerPath(), cfg.SentRetention)
	if err != nil {
		return err
	}

	n := notify.New(cfg, registry, sent, log)
	token, err := n.Send(cmd.Context(), note)
	if err != nil {
		return err
	}
	fmt.Printf("Sent. Reply token: %s\n", token)
	return nil
}

// currentTmuxSession returns the surrounding session name, if any. tmux
// sets TMUX for every client; the display-message call resolves which
// session this process belongs to.
func currentTmuxSession() string {
	if os.Getenv("TMUX") == "" {
		return ""
	}
	name, err := tmux.NewTmux().CurrentSession()
	if err != nil {
		return ""
	}
	return name
}
