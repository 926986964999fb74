package extract

import (
	"regexp"
	"strings"
)

// MaxCommandLength bounds the injection payload handed to the terminal.
const MaxCommandLength = 8192

// Footer is the trailer the outbound notifier appends to every
// notification body. Seeing it in a reply means everything below is quoted
// notification text.
const Footer = "Switchboard Notification System"

// cutoff is one quoted-reply boilerplate detector. The first cutoff that
// fires stops the line scan; everything below it is quoted history.
type cutoff struct {
	name  string
	match func(line string) bool
}

func contains(substr string) func(string) bool {
	return func(line string) bool { return strings.Contains(line, substr) }
}

func containsAll(a, b string) func(string) bool {
	return func(line string) bool {
		return strings.Contains(line, a) && strings.Contains(line, b)
	}
}

var quoteLineRe = regexp.MustCompile(`^\s*>`)

// cutoffs are evaluated top to bottom against each line. Extend this list
// to teach the extractor a new client's quoting style; the scan logic never
// changes.
var cutoffs = []cutoff{
	{"original-message", contains("-----Original Message-----")},
	{"original-message-alt", contains("--- Original Message ---")},
	{"on-wrote", containsAll("On", "wrote:")},
	{"at-wrote", containsAll("at", "wrote:")},
	{"quote-prefix", func(line string) bool { return quoteLineRe.MatchString(line) }},
	{"from-echo", containsAll("From:", "@")},
	{"to-echo", containsAll("To:", "@")},
	{"subject-echo", contains("Subject:")},
	{"sent-echo", contains("Sent:")},
	{"date-echo", contains("Date:")},
	{"signature-dashes", func(line string) bool {
		return strings.TrimRight(line, " \t") == "--"
	}},
	{"sent-from", contains("Sent from")},
	{"best-regards", contains("Best regards")},
	{"sincerely", contains("Sincerely")},
	{"notification-footer", contains(Footer)},
	{"session-echo", contains("Session ID:")},
}

// greetingRe matches standalone greeting and acknowledgement lines. These
// are filtered per line, not treated as a scan cutoff: a greeting above the
// command must not swallow the command.
var greetingRe = regexp.MustCompile(`(?i)^(hi|hello|hey|thank you|thanks|ok|okay|yes)[.!]?$`)

// Extractor turns a raw reply body into a normalized command.
type Extractor struct {
	// senderAddress is the relay's own mail address. A line quoting it is
	// part of the echoed notification, not the command.
	senderAddress string
}

// NewExtractor creates an extractor. senderAddress may be empty.
func NewExtractor(senderAddress string) *Extractor {
	return &Extractor{senderAddress: strings.TrimSpace(senderAddress)}
}

// Command extracts the command text from a reply body. Returns "" when the
// body holds no usable command.
func (e *Extractor) Command(body string) string {
	lines := strings.Split(body, "\n")

	// Pass 1: cut the body off at the first sign of quoted boilerplate.
	var kept []string
scan:
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if e.senderAddress != "" && strings.Contains(line, "<"+e.senderAddress+">") {
			break scan
		}
		for _, c := range cutoffs {
			if c.match(line) {
				break scan
			}
		}
		kept = append(kept, line)
	}

	// Pass 2: drop blank and standalone greeting lines individually.
	var command []string
	for _, line := range kept {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if greetingRe.MatchString(trimmed) {
			continue
		}
		command = append(command, trimmed)
	}
	if len(command) == 0 {
		return ""
	}

	joined := strings.Join(command, "\n")
	if len(joined) > MaxCommandLength {
		joined = joined[:MaxCommandLength]
	}
	return collapseRepeats(joined)
}

// Reply is the classifier's output: which session a reply addresses and the
// normalized command to deliver there.
type Reply struct {
	SessionToken string
	Command      string
}

// Classify combines token recovery and command extraction. Returns nil when
// either the token or the command is missing.
func (e *Extractor) Classify(subject, body string) *Reply {
	token := SessionFromSubject(subject)
	if token == "" {
		return nil
	}
	command := e.Command(body)
	if command == "" {
		return nil
	}
	return &Reply{SessionToken: token, Command: command}
}
