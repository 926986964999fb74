package inject

import (
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// plausibleSessionNameRe mirrors the tmux wrapper's session-name rule.
var plausibleSessionNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// plausibleSessionName reports whether token could be a tmux session name.
// Legacy short tokens pass this too; the direct tier's existence check
// sorts them out.
func plausibleSessionName(token string) bool {
	return token != "" && plausibleSessionNameRe.MatchString(token)
}

// clipboardTools lists clipboard writers in preference order per platform.
var clipboardTools = map[string][][]string{
	"darwin": {{"pbcopy"}},
	"linux": {
		{"wl-copy"},
		{"xclip", "-selection", "clipboard"},
		{"xsel", "--clipboard", "--input"},
	},
}

// systemClipboard writes text to the shared clipboard using the first
// available platform tool.
func systemClipboard(text string) error {
	tools := clipboardTools[runtime.GOOS]
	if tools == nil {
		tools = clipboardTools["linux"]
	}

	for _, tool := range tools {
		if _, err := exec.LookPath(tool[0]); err != nil {
			continue
		}
		cmd := exec.Command(tool[0], tool[1:]...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s: %w", tool[0], err)
		}
		return nil
	}
	return fmt.Errorf("no clipboard tool available")
}

// alertTitleCaser renders session names into alert titles.
var alertTitleCaser = cases.Title(language.English)

// systemAlert raises an attention-grabbing local notification telling the
// operator to paste and confirm the command manually.
func systemAlert(sessionName, command string) error {
	short := command
	if len(short) > 30 {
		short = short[:30] + "..."
	}
	title := fmt.Sprintf("Switchboard: %s Needs You", alertTitleCaser.String(strings.ReplaceAll(sessionName, "-", " ")))
	body := fmt.Sprintf("Reply command copied to clipboard. Paste into session %q and press Enter: %s", sessionName, short)

	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf("display notification %q with title %q sound name \"Basso\"", body, title)
		return exec.Command("osascript", "-e", script).Run()
	}
	if _, err := exec.LookPath("notify-send"); err == nil {
		return exec.Command("notify-send", "--urgency=critical", title, body).Run()
	}
	return fmt.Errorf("no notifier available")
}
