package cmd

import (
	"testing"
	"time"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"serve", "notify", "sessions", "status"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Fatalf("Find(%q): %v", name, err)
		}
		if cmd.Name() != name {
			t.Errorf("Find(%q) resolved to %q", name, cmd.Name())
		}
	}
}

func TestSessionsPruneRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"sessions", "prune"})
	if err != nil {
		t.Fatalf("Find(sessions prune): %v", err)
	}
	if cmd.Name() != "prune" {
		t.Errorf("resolved to %q", cmd.Name())
	}
}

func TestFormatExpiry(t *testing.T) {
	if got := formatExpiry(time.Time{}); got != "never" {
		t.Errorf("zero time = %q, want never", got)
	}
	if got := formatExpiry(time.Now().Add(-time.Hour)); got != "expired" {
		t.Errorf("past time = %q, want expired", got)
	}
}
