package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/switchboard/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	GroupID: GroupSessions,
	Short:   "List registered reply routes",
	Long: `List registered reply routes.

Each route maps a reply token from a sent notification to a tmux
session, with its remaining command budget and expiry.`,
	RunE: runSessions,
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired and exhausted routes",
	RunE:  runSessionsPrune,
}

func init() {
	sessionsCmd.AddCommand(sessionsPruneCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := store.OpenRegistry(cfg.RegistryPath())
	if err != nil {
		return err
	}

	records := registry.All()
	if len(records) == 0 {
		fmt.Println("No reply routes registered.")
		return nil
	}

	fmt.Printf("%-10s %-20s %-8s %-6s %s\n", "TOKEN", "SESSION", "STATUS", "USED", "EXPIRES")
	for _, rec := range records {
		fmt.Printf("%-10s %-20s %-8s %d/%-4d %s\n",
			rec.Token, rec.SessionName, rec.Status,
			rec.CommandCount, rec.MaxCommands,
			formatExpiry(rec.ExpiresAt))
	}
	return nil
}

func runSessionsPrune(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := store.OpenRegistry(cfg.RegistryPath())
	if err != nil {
		return err
	}
	removed, err := registry.Prune()
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d route(s).\n", removed)
	return nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	remaining := time.Until(t)
	if remaining <= 0 {
		return "expired"
	}
	return remaining.Round(time.Minute).String()
}
