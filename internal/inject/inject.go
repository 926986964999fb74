// Package inject delivers a normalized command into a terminal session.
//
// Delivery is a tiered chain: direct tmux injection, then heuristic session
// discovery, then a manual clipboard-and-alert fallback. Each tier is an
// interface value so tests can swap in a failing double; only exhaustion of
// every tier is a delivery failure.
package inject

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/steveyegge/switchboard/internal/store"
)

// ErrDeliveryExhausted indicates every tier failed. The caller must leave
// the message unmarked so a later poll cycle can retry.
var ErrDeliveryExhausted = errors.New("all delivery tiers failed")

// Terminal is the slice of the tmux surface the tiers need.
type Terminal interface {
	HasSession(name string) (bool, error)
	Submit(session, text string) error
	FindMatching(target string) ([]string, error)
}

// SessionResolver resolves tokens to session records and charges use
// against their command budget.
type SessionResolver interface {
	Lookup(token string) (*store.SessionRecord, error)
	Touch(token string) error
}

// Target is the resolved destination handed to each tier.
type Target struct {
	// Token is the raw addressing token from the subject line.
	Token string
	// SessionName is the terminal session the command should land in.
	SessionName string
	// Command is the normalized text to type.
	Command string
}

// Tier attempts one delivery strategy. verified reports whether the tier
// can vouch that the command actually reached a terminal; the manual
// fallback succeeds procedurally but cannot verify execution.
type Tier interface {
	Name() string
	Deliver(target Target) (verified bool, err error)
}

// Result describes how a delivery ended.
type Result struct {
	// Tier is the name of the tier that ended the chain.
	Tier string
	// Verified is true when the command demonstrably reached a session.
	// Unverified delivery (clipboard fallback) must not mark the message
	// processed.
	Verified bool
}

// Injector resolves the target session and walks the tier chain.
type Injector struct {
	registry       SessionResolver
	tiers          []Tier
	defaultSession string
	log            zerolog.Logger
}

// New creates an injector with the standard tier chain.
func New(registry SessionResolver, term Terminal, defaultSession string, log zerolog.Logger) *Injector {
	return NewWithTiers(registry, defaultSession, log,
		&DirectTier{Term: term},
		&DiscoveryTier{Term: term},
		&ManualTier{Clipboard: systemClipboard, Alert: systemAlert, Log: log},
	)
}

// NewWithTiers creates an injector with an explicit tier chain. Tests use
// this to inject failing tiers.
func NewWithTiers(registry SessionResolver, defaultSession string, log zerolog.Logger, tiers ...Tier) *Injector {
	return &Injector{
		registry:       registry,
		tiers:          tiers,
		defaultSession: defaultSession,
		log:            log,
	}
}

// Deliver resolves token to a session and walks the tiers until one
// succeeds. Returns ErrDeliveryExhausted when none did.
func (in *Injector) Deliver(token, command string) (*Result, error) {
	target := in.resolve(token)
	target.Command = command

	var lastErr error
	for _, tier := range in.tiers {
		verified, err := tier.Deliver(target)
		if err != nil {
			in.log.Warn().
				Str("tier", tier.Name()).
				Str("session", target.SessionName).
				Err(err).
				Msg("delivery tier failed")
			lastErr = err
			continue
		}
		in.log.Info().
			Str("tier", tier.Name()).
			Str("session", target.SessionName).
			Bool("verified", verified).
			Msg("command delivered")
		return &Result{Tier: tier.Name(), Verified: verified}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrDeliveryExhausted, lastErr)
}

// resolve maps the subject-line token onto a terminal session name. A
// registry hit charges the record's command budget before any tier runs;
// persisting the counter first is what keeps a reused token from being
// double-charged across a crash. A miss means the token is itself a session
// name (current addressing scheme), falling back to the configured default
// when it is not a plausible one.
func (in *Injector) resolve(token string) Target {
	if rec, err := in.registry.Lookup(token); err == nil {
		if err := in.registry.Touch(token); err != nil {
			in.log.Warn().Str("token", token).Err(err).Msg("charging session budget failed")
		}
		return Target{Token: token, SessionName: rec.SessionName}
	}

	name := token
	if !plausibleSessionName(name) {
		name = in.defaultSession
	}
	return Target{Token: token, SessionName: name}
}

// DirectTier submits straight to the addressed session.
type DirectTier struct {
	Term Terminal
}

func (t *DirectTier) Name() string { return "direct" }

func (t *DirectTier) Deliver(target Target) (bool, error) {
	ok, err := t.Term.HasSession(target.SessionName)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: %s", store.ErrNotFound, target.SessionName)
	}
	if err := t.Term.Submit(target.SessionName, target.Command); err != nil {
		return false, err
	}
	return true, nil
}

// DiscoveryTier hunts for any plausibly-matching running session by fuzzy
// name match and submits there. Only reached when direct injection failed.
type DiscoveryTier struct {
	Term Terminal
}

func (t *DiscoveryTier) Name() string { return "discovery" }

func (t *DiscoveryTier) Deliver(target Target) (bool, error) {
	matches, err := t.Term.FindMatching(target.SessionName)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 && target.Token != target.SessionName {
		matches, err = t.Term.FindMatching(target.Token)
		if err != nil {
			return false, err
		}
	}
	if len(matches) == 0 {
		return false, fmt.Errorf("no session matching %q", target.SessionName)
	}
	if err := t.Term.Submit(matches[0], target.Command); err != nil {
		return false, err
	}
	return true, nil
}

// ManualTier places the command on the clipboard and raises a loud local
// alert so the operator can paste and confirm by hand. It always succeeds
// procedurally but cannot verify execution, so it reports unverified and
// the message stays eligible for retry.
type ManualTier struct {
	Clipboard func(text string) error
	Alert     func(sessionName, command string) error
	Log       zerolog.Logger
}

func (t *ManualTier) Name() string { return "manual" }

func (t *ManualTier) Deliver(target Target) (bool, error) {
	if err := t.Clipboard(target.Command); err != nil {
		return false, fmt.Errorf("copying command to clipboard: %w", err)
	}
	if err := t.Alert(target.SessionName, target.Command); err != nil {
		// The command is on the clipboard; a missing notifier binary
		// should not fail the terminal tier.
		t.Log.Warn().Err(err).Msg("manual fallback alert failed")
	}
	return false, nil
}
