// Package relay runs the per-message pipeline: self-echo suppression,
// duplicate and policy checks, classification, injection, and the
// processed-ledger commit.
package relay

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/steveyegge/switchboard/internal/config"
	"github.com/steveyegge/switchboard/internal/extract"
	"github.com/steveyegge/switchboard/internal/inject"
	"github.com/steveyegge/switchboard/internal/store"
)

// Message is one fully-fetched inbound message. The poller hands these to
// Handle one at a time; partial or still-streaming messages never get here.
type Message struct {
	// StoreID is the store-assigned identifier (UIDVALIDITY-scoped UID),
	// empty when the store did not provide one.
	StoreID   string
	MessageID string
	From      string
	Subject   string
	Date      time.Time
	Body      string
}

// Identifier returns the deduplication identifier for the message: the
// store-assigned id when present, else the message id, else a
// subject+timestamp fingerprint. The fingerprint cannot tell apart two
// distinct replies with the same subject in the same instant; store ids
// and message ids avoid that collision.
func (m *Message) Identifier() string {
	if m.StoreID != "" {
		return m.StoreID
	}
	if m.MessageID != "" {
		return m.MessageID
	}
	return fmt.Sprintf("%s_%d", m.Subject, m.Date.UnixMilli())
}

// Deliverer is the injector surface the relay drives.
type Deliverer interface {
	Deliver(token, command string) (*inject.Result, error)
}

// Relay wires the ledgers, classifier and injector into one pipeline.
type Relay struct {
	cfg       *config.Config
	sent      *store.SentLedger
	processed *store.ProcessedLedger
	extractor *extract.Extractor
	injector  Deliverer
	log       zerolog.Logger
}

// New creates a relay pipeline.
func New(cfg *config.Config, sent *store.SentLedger, processed *store.ProcessedLedger, extractor *extract.Extractor, injector Deliverer, log zerolog.Logger) *Relay {
	return &Relay{
		cfg:       cfg,
		sent:      sent,
		processed: processed,
		extractor: extractor,
		injector:  injector,
		log:       log,
	}
}

// Seen reports whether the message was already acted on. The poller calls
// this on bare UIDs before fetching bodies; Handle rechecks it before
// classifying.
func (r *Relay) Seen(identifier string) bool {
	return r.processed.Has(identifier)
}

// Handle runs one message through the pipeline. Errors never escalate past
// this function: a bad message is logged and dropped (or left for retry),
// and the poller moves on.
func (r *Relay) Handle(msg *Message) {
	log := r.log.With().Str("message_id", msg.MessageID).Logger()

	// Self-echo: our own notification delivered back into the inbox.
	// Suppress once and forget the ledger entry.
	if r.sent.IsSelfSent(msg.MessageID) {
		log.Info().Msg("skipping self-sent message")
		if err := r.sent.Remove(msg.MessageID); err != nil {
			log.Error().Err(err).Msg("pruning sent ledger failed")
		}
		return
	}

	id := msg.Identifier()
	if r.processed.Has(id) {
		log.Debug().Str("identifier", id).Msg("message already processed")
		return
	}

	// Policy: only allow-listed humans may drive terminals.
	if !r.cfg.SenderAllowed(msg.From) {
		log.Warn().Str("from", msg.From).Msg("sender not in allow-list, dropping")
		return
	}

	reply := r.extractor.Classify(msg.Subject, msg.Body)
	if reply == nil {
		log.Info().Str("subject", msg.Subject).Msg("no session marker or command, dropping")
		return
	}

	log.Info().
		Str("session", reply.SessionToken).
		Int("command_len", len(reply.Command)).
		Msg("processing reply command")

	res, err := r.injector.Deliver(reply.SessionToken, reply.Command)
	if err != nil {
		// Delivery exhaustion: leave the message unmarked so a later
		// poll cycle retries once the operator fixes the target.
		log.Error().Err(err).Str("session", reply.SessionToken).Msg("delivery failed, will retry on a later cycle")
		return
	}
	if !res.Verified {
		// Manual fallback: procedurally done, but nothing confirmed the
		// command executed. Keep the message eligible for retry.
		log.Info().Str("tier", res.Tier).Msg("unverified delivery, message left unmarked")
		return
	}

	if err := r.processed.Mark(id); err != nil {
		log.Error().Err(err).Str("identifier", id).Msg("committing processed ledger failed")
		return
	}
	log.Info().Str("session", reply.SessionToken).Str("tier", res.Tier).Msg("command injected")
}

// Rollback clears the processed marker for a message whose parse failed
// after tentative recording, so a future re-fetch can retry it.
func (r *Relay) Rollback(identifier string) {
	if err := r.processed.Unmark(identifier); err != nil {
		r.log.Error().Err(err).Str("identifier", identifier).Msg("rolling back processed marker failed")
	}
}
