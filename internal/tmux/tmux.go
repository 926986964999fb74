// Package tmux provides a wrapper for tmux session operations via subprocess.
//
// The relay only addresses existing sessions: it submits text and discovers
// sessions by name. It never creates or destroys them.
package tmux

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Common errors
var (
	ErrNoServer           = errors.New("no tmux server running")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidSessionName = errors.New("invalid session name")
)

// validSessionNameRe validates session names to prevent shell injection.
var validSessionNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// submitDebounce is how long to wait between pasting text and sending
// Enter. Sending Enter in the same command races the paste and drops it.
const submitDebounce = 100 * time.Millisecond

// validateSessionName checks that a session name contains only safe characters.
func validateSessionName(name string) error {
	if name == "" || !validSessionNameRe.MatchString(name) {
		return fmt.Errorf("%w %q: must match %s", ErrInvalidSessionName, name, validSessionNameRe.String())
	}
	return nil
}

// Tmux wraps tmux operations.
type Tmux struct{}

// NewTmux creates a new Tmux wrapper.
func NewTmux() *Tmux {
	return &Tmux{}
}

// run executes a tmux command and returns stdout. All commands include the
// -u flag for UTF-8 support regardless of locale settings.
func (t *Tmux) run(args ...string) (string, error) {
	allArgs := append([]string{"-u"}, args...)
	cmd := exec.Command("tmux", allArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", t.wrapError(err, stderr.String(), args)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// wrapError wraps tmux errors with context.
func (t *Tmux) wrapError(err error, stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)

	if strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to") ||
		strings.Contains(stderr, "no current target") ||
		strings.Contains(stderr, "server exited unexpectedly") {
		return ErrNoServer
	}
	if strings.Contains(stderr, "session not found") ||
		strings.Contains(stderr, "can't find session") {
		return ErrSessionNotFound
	}

	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: %w", args[0], err)
}

// IsAvailable checks if tmux is installed and can be invoked.
func (t *Tmux) IsAvailable() bool {
	cmd := exec.Command("tmux", "-V")
	return cmd.Run() == nil
}

// HasSession checks if a session exists (exact match). Uses "=" prefix for
// exact matching, preventing prefix matches.
func (t *Tmux) HasSession(name string) (bool, error) {
	if err := validateSessionName(name); err != nil {
		return false, err
	}
	_, err := t.run("has-session", "-t", "="+name)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListSessions returns all session names.
func (t *Tmux) ListSessions() ([]string, error) {
	out, err := t.run("list-sessions", "-F", "#{session_name}")
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil // No server = no sessions
		}
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Submit sends command text to a session and presses Enter. The text goes
// in literal mode (-l) so special characters survive, with a short debounce
// before the separate Enter so the paste is processed first.
func (t *Tmux) Submit(session, text string) error {
	if err := validateSessionName(session); err != nil {
		return err
	}
	if _, err := t.run("send-keys", "-t", session, "-l", text); err != nil {
		return err
	}
	time.Sleep(submitDebounce)
	_, err := t.run("send-keys", "-t", session, "Enter")
	return err
}

// FindMatching discovers sessions whose name plausibly matches target,
// best match first: case-insensitive exact, then prefix, then substring.
// Used when the addressed session is gone and the relay falls back to
// heuristic discovery.
func (t *Tmux) FindMatching(target string) ([]string, error) {
	sessions, err := t.ListSessions()
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(target)
	type scored struct {
		name string
		rank int
	}
	var matches []scored
	for _, s := range sessions {
		name := strings.ToLower(s)
		switch {
		case name == want:
			matches = append(matches, scored{s, 0})
		case strings.HasPrefix(name, want) || strings.HasPrefix(want, name):
			matches = append(matches, scored{s, 1})
		case strings.Contains(name, want) || strings.Contains(want, name):
			matches = append(matches, scored{s, 2})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].rank < matches[j].rank })

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.name)
	}
	return names, nil
}

// CapturePane captures the last lines of visible pane content. Used for
// delivery diagnostics in status output.
func (t *Tmux) CapturePane(session string, lines int) (string, error) {
	return t.run("capture-pane", "-p", "-t", session, "-S", fmt.Sprintf("-%d", lines))
}

// CurrentSession returns the session the calling process is attached to.
// Only meaningful when run inside a tmux client.
func (t *Tmux) CurrentSession() (string, error) {
	return t.run("display-message", "-p", "#{session_name}")
}
