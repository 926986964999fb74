package store

import (
	"strings"
	"time"
)

// SentMessageRecord tracks one notification the system itself sent, so the
// poller can recognize it if the mail server delivers it back to the inbox.
type SentMessageRecord struct {
	MessageID    string    `json:"message_id"`
	SessionToken string    `json:"session_token"`
	SentAt       time.Time `json:"sent_at"`
}

// sentFile is the on-disk shape of the sent-message ledger.
type sentFile struct {
	Messages []SentMessageRecord `json:"messages"`
}

// SentLedger records identifiers of outbound notifications on a rolling
// retention window. Loop prevention: an inbound message whose id appears
// here is the system's own mail and must never trigger injection.
type SentLedger struct {
	path      string
	retention time.Duration
	messages  []SentMessageRecord
	now       func() time.Time
}

// OpenSentLedger loads the ledger and prunes entries older than retention.
func OpenSentLedger(path string, retention time.Duration) (*SentLedger, error) {
	l := &SentLedger{
		path:      path,
		retention: retention,
		now:       time.Now,
	}
	var f sentFile
	if err := loadJSON(path, &f); err != nil {
		return nil, err
	}
	l.messages = f.Messages
	l.prune()
	return l, nil
}

// normalizeMessageID folds case and strips the angle brackets some servers
// add or remove when rewriting ids.
func normalizeMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return strings.ToLower(id)
}

// IsSelfSent reports whether messageID belongs to a notification the system
// sent. Comparison is on normalized ids because mail transports rewrite and
// fold them.
func (l *SentLedger) IsSelfSent(messageID string) bool {
	if messageID == "" {
		return false
	}
	want := normalizeMessageID(messageID)
	for _, m := range l.messages {
		if normalizeMessageID(m.MessageID) == want {
			return true
		}
	}
	return false
}

// Append records an outbound notification and persists immediately.
func (l *SentLedger) Append(rec SentMessageRecord) error {
	if rec.SentAt.IsZero() {
		rec.SentAt = l.now()
	}
	l.messages = append(l.messages, rec)
	l.prune()
	return l.save()
}

// Remove drops messageID from the ledger. Called after a self-sent message
// has been suppressed once, which keeps the ledger from growing without
// bound on servers that echo sent mail into the inbox.
func (l *SentLedger) Remove(messageID string) error {
	want := normalizeMessageID(messageID)
	kept := l.messages[:0]
	for _, m := range l.messages {
		if normalizeMessageID(m.MessageID) != want {
			kept = append(kept, m)
		}
	}
	l.messages = kept
	l.prune()
	return l.save()
}

// Len returns the number of tracked messages.
func (l *SentLedger) Len() int {
	return len(l.messages)
}

// prune drops entries older than the retention window.
func (l *SentLedger) prune() {
	cutoff := l.now().Add(-l.retention)
	kept := l.messages[:0]
	for _, m := range l.messages {
		if m.SentAt.After(cutoff) {
			kept = append(kept, m)
		}
	}
	l.messages = kept
}

func (l *SentLedger) save() error {
	return saveJSON(l.path, sentFile{Messages: l.messages})
}
