package tmux

import (
	"os/exec"
	"testing"
)

func hasTmux() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

func TestValidateSessionName(t *testing.T) {
	valid := []string{"demo", "build-session", "gt_crew_1", "A1"}
	for _, name := range valid {
		if err := validateSessionName(name); err != nil {
			t.Errorf("validateSessionName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "has space", "semi;colon", "dot.name", "a:b", "$(rm -rf)"}
	for _, name := range invalid {
		if err := validateSessionName(name); err == nil {
			t.Errorf("validateSessionName(%q) = nil, want error", name)
		}
	}
}

func TestHasSessionRejectsInvalidName(t *testing.T) {
	tm := NewTmux()
	if _, err := tm.HasSession("bad name"); err == nil {
		t.Error("expected error for invalid session name")
	}
}

func TestListSessionsNoServer(t *testing.T) {
	if !hasTmux() {
		t.Skip("tmux not installed")
	}

	tm := NewTmux()
	// Should not error even if no server running
	if _, err := tm.ListSessions(); err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
}

func TestHasSessionMissing(t *testing.T) {
	if !hasTmux() {
		t.Skip("tmux not installed")
	}

	tm := NewTmux()
	has, err := tm.HasSession("switchboard-test-nonexistent")
	if err != nil {
		t.Fatalf("HasSession: %v", err)
	}
	if has {
		t.Error("expected session to not exist")
	}
}

func TestFindMatchingNoServer(t *testing.T) {
	if !hasTmux() {
		t.Skip("tmux not installed")
	}

	tm := NewTmux()
	if _, err := tm.FindMatching("anything"); err != nil {
		t.Fatalf("FindMatching: %v", err)
	}
}
