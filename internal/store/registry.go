package store

import (
	"errors"
	"fmt"
	"time"
)

// Session status values.
const (
	StatusWaiting = "waiting"
	StatusActive  = "active"
	StatusExpired = "expired"
)

// DefaultMaxCommands bounds how many replies one token may drive.
const DefaultMaxCommands = 10

// SessionTTL is how long a token stays addressable after the notification
// that minted it was sent.
const SessionTTL = 24 * time.Hour

var (
	// ErrNotFound indicates the token has no usable session record.
	ErrNotFound = errors.New("session not found")

	// ErrExpired indicates the record exists but is past its TTL or
	// command budget.
	ErrExpired = errors.New("session expired")
)

// SessionRecord identifies one addressable execution context. Records are
// minted by the outbound notifier and consumed by the injector.
type SessionRecord struct {
	Token            string    `json:"token"`
	SessionName      string    `json:"session_name"`
	WorkingDirectory string    `json:"working_directory"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	Status           string    `json:"status"`
	CommandCount     int       `json:"command_count"`
	MaxCommands      int       `json:"max_commands"`
}

// usable reports whether the record may still be addressed.
func (r *SessionRecord) usable(now time.Time) bool {
	if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
		return false
	}
	if r.MaxCommands > 0 && r.CommandCount >= r.MaxCommands {
		return false
	}
	return r.Status != StatusExpired
}

// Registry is the durable token → session mapping. A record past its TTL or
// command budget is treated as absent even before garbage collection.
type Registry struct {
	path     string
	sessions map[string]*SessionRecord
	now      func() time.Time
}

// OpenRegistry loads the registry file, creating an empty registry if the
// file does not exist yet.
func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:     path,
		sessions: make(map[string]*SessionRecord),
		now:      time.Now,
	}
	if err := loadJSON(path, &r.sessions); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the usable record for token, or ErrNotFound. Expired and
// exhausted records count as not found.
func (r *Registry) Lookup(token string) (*SessionRecord, error) {
	rec, ok := r.sessions[token]
	if !ok || !rec.usable(r.now()) {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Touch increments the command counter for token and persists the updated
// record before returning, so a crash cannot lose the charge.
func (r *Registry) Touch(token string) error {
	rec, ok := r.sessions[token]
	if !ok {
		return ErrNotFound
	}
	if !rec.usable(r.now()) {
		return ErrExpired
	}
	rec.CommandCount++
	rec.Status = StatusActive
	if err := r.save(); err != nil {
		rec.CommandCount--
		return fmt.Errorf("persisting session %s: %w", token, err)
	}
	return nil
}

// Put stores a record, filling in TTL and command-budget defaults. Called by
// the outbound notifier when a notification is sent.
func (r *Registry) Put(rec *SessionRecord) error {
	if rec.Token == "" {
		return fmt.Errorf("session record has no token")
	}
	now := r.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(SessionTTL)
	}
	if rec.MaxCommands == 0 {
		rec.MaxCommands = DefaultMaxCommands
	}
	if rec.Status == "" {
		rec.Status = StatusWaiting
	}
	cp := *rec
	r.sessions[rec.Token] = &cp
	return r.save()
}

// Delete removes a record. Used to roll back a session whose notification
// failed to send.
func (r *Registry) Delete(token string) error {
	if _, ok := r.sessions[token]; !ok {
		return nil
	}
	delete(r.sessions, token)
	return r.save()
}

// Prune drops records that are no longer usable. Returns how many were
// removed.
func (r *Registry) Prune() (int, error) {
	now := r.now()
	removed := 0
	for token, rec := range r.sessions {
		if !rec.usable(now) {
			delete(r.sessions, token)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, r.save()
}

// All returns a snapshot of every record, usable or not.
func (r *Registry) All() []SessionRecord {
	out := make([]SessionRecord, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, *rec)
	}
	return out
}

func (r *Registry) save() error {
	return saveJSON(r.path, r.sessions)
}
