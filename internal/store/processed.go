package store

import (
	"time"
)

// ProcessedMessageRecord marks one inbound message as already acted on.
type ProcessedMessageRecord struct {
	Identifier string    `json:"id"`
	SeenAt     time.Time `json:"seen_at"`
}

// ProcessedLedger records identifiers of inbound messages that already drove
// an injection. It must be fully loaded before the poller starts, and every
// mark persists immediately so a restart never replays history.
type ProcessedLedger struct {
	path      string
	retention time.Duration
	seen      map[string]time.Time
	now       func() time.Time
}

// OpenProcessedLedger loads the ledger and prunes entries older than
// retention. Pruning runs on every load to cap file and memory growth.
func OpenProcessedLedger(path string, retention time.Duration) (*ProcessedLedger, error) {
	l := &ProcessedLedger{
		path:      path,
		retention: retention,
		seen:      make(map[string]time.Time),
		now:       time.Now,
	}
	var records []ProcessedMessageRecord
	if err := loadJSON(path, &records); err != nil {
		return nil, err
	}
	cutoff := l.now().Add(-retention)
	for _, rec := range records {
		if rec.SeenAt.After(cutoff) {
			l.seen[rec.Identifier] = rec.SeenAt
		}
	}
	if len(l.seen) != len(records) {
		// Rewrite so expired entries do not survive on disk.
		if err := l.save(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Has reports whether identifier has already been processed.
func (l *ProcessedLedger) Has(identifier string) bool {
	if identifier == "" {
		return false
	}
	_, ok := l.seen[identifier]
	return ok
}

// Mark records identifier as processed and persists immediately.
func (l *ProcessedLedger) Mark(identifier string) error {
	if identifier == "" {
		return nil
	}
	l.seen[identifier] = l.now()
	return l.save()
}

// Unmark rolls back a mark, re-enabling retry for a message whose parse
// failed after it was tentatively recorded.
func (l *ProcessedLedger) Unmark(identifier string) error {
	if _, ok := l.seen[identifier]; !ok {
		return nil
	}
	delete(l.seen, identifier)
	return l.save()
}

// Prune drops entries older than cutoff and persists if anything changed.
func (l *ProcessedLedger) Prune(olderThan time.Time) error {
	changed := false
	for id, seenAt := range l.seen {
		if !seenAt.After(olderThan) {
			delete(l.seen, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.save()
}

// Len returns the number of remembered identifiers.
func (l *ProcessedLedger) Len() int {
	return len(l.seen)
}

func (l *ProcessedLedger) save() error {
	records := make([]ProcessedMessageRecord, 0, len(l.seen))
	for id, seenAt := range l.seen {
		records = append(records, ProcessedMessageRecord{Identifier: id, SeenAt: seenAt})
	}
	return saveJSON(l.path, records)
}
