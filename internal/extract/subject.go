// Package extract recovers a session token and a clean command from a noisy
// human-authored reply.
//
// The subject-line markers here are a bidirectional contract with the
// outbound notifier: Subject and LegacySubject build what
// SessionFromSubject parses, so the two sides cannot drift apart.
package extract

import (
	"fmt"
	"regexp"
)

// subjectMarkers is the ordered set of recognized subject patterns. The
// first match wins. The legacy short-token form predates session-name
// addressing and is kept so old notification threads keep working.
var subjectMarkers = []*regexp.Regexp{
	regexp.MustCompile(`\[Switchboard\s+#([A-Z0-9]+)\]`),
	regexp.MustCompile(`(?i)re:\s*\[Switchboard\s+#([A-Z0-9]+)\]`),
	regexp.MustCompile(`\[Switchboard\s+Session:\s+([a-zA-Z0-9_-]+)\]`),
	regexp.MustCompile(`(?i)re:\s*\[Switchboard\s+Session:\s+([a-zA-Z0-9_-]+)\]`),
}

// SessionFromSubject extracts the session token or session name from a
// subject line. Returns "" when no recognized marker is present; the caller
// logs and drops the message, it is not an error.
func SessionFromSubject(subject string) string {
	for _, re := range subjectMarkers {
		if m := re.FindStringSubmatch(subject); m != nil {
			return m[1]
		}
	}
	return ""
}

// Subject builds the subject line for an outbound notification addressed to
// a terminal session.
func Subject(sessionName, summary string) string {
	if summary == "" {
		return fmt.Sprintf("[Switchboard Session: %s]", sessionName)
	}
	return fmt.Sprintf("[Switchboard Session: %s] %s", sessionName, summary)
}

// LegacySubject builds the old short-token subject form.
func LegacySubject(token, summary string) string {
	if summary == "" {
		return fmt.Sprintf("[Switchboard #%s]", token)
	}
	return fmt.Sprintf("[Switchboard #%s] %s", token, summary)
}
