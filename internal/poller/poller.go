// Package poller maintains the connection to the mail store and streams
// fully-fetched inbound messages to the relay pipeline.
//
// Lifecycle: connect, select the mailbox, sweep all currently-unseen mail
// once, then alternate between IDLE (store-level new-mail events) and a
// fixed-interval re-poll that backstops missed events. Any connection
// error tears the session down and reconnects after a fixed backoff,
// forever. One message is processed at a time; the relay's identifier
// checks make an overlapping pass on the same message a no-op.
package poller

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"github.com/steveyegge/switchboard/internal/config"
	"github.com/steveyegge/switchboard/internal/relay"
)

// eventSweepWindow bounds the date-filtered search run after a new-mail
// event. The periodic backstop sweep has no window and catches anything
// this misses.
const eventSweepWindow = 5 * time.Minute

// Poller owns the IMAP session and the reconnect loop.
type Poller struct {
	cfg   *config.Config
	relay *relay.Relay
	log   zerolog.Logger
}

// New creates a poller. The relay's ledgers must already be loaded.
func New(cfg *config.Config, r *relay.Relay, log zerolog.Logger) *Poller {
	return &Poller{cfg: cfg, relay: r, log: log}
}

// Run drives the poller until ctx is cancelled. Connection failures are
// transient by definition: log, back off a fixed delay, reconnect.
func (p *Poller) Run(ctx context.Context) error {
	for {
		err := p.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Warn().
			Err(err).
			Dur("backoff", p.cfg.ReconnectBackoff).
			Msg("mail store connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.ReconnectBackoff):
		}
	}
}

// session runs one connected IMAP session until an error or cancellation.
func (p *Poller) session(ctx context.Context) error {
	c, err := p.connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Logout() }()

	mbox, err := c.Select(p.cfg.Mailbox, false)
	if err != nil {
		return fmt.Errorf("selecting %s: %w", p.cfg.Mailbox, err)
	}
	p.log.Info().
		Str("mailbox", p.cfg.Mailbox).
		Uint32("messages", mbox.Messages).
		Msg("mailbox opened")

	// Commands from here on are long-lived (IDLE); drop the auth timeout.
	c.Timeout = 0

	// Startup sweep: everything currently unseen, exactly once.
	if err := p.sweep(c, mbox.UidValidity, time.Time{}); err != nil {
		return err
	}

	updates := make(chan client.Update, 64)
	c.Updates = updates

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		stop := make(chan struct{})
		idleDone := make(chan error, 1)
		go func() { idleDone <- c.Idle(stop, nil) }()

		var since time.Time
		select {
		case <-ctx.Done():
			close(stop)
			<-idleDone
			return ctx.Err()
		case <-updates:
			// Store-level event: narrow, date-bounded sweep.
			since = time.Now().Add(-eventSweepWindow)
		case <-ticker.C:
			// Backstop: full unseen sweep, no window.
		}
		close(stop)
		if err := <-idleDone; err != nil {
			return fmt.Errorf("idle: %w", err)
		}
		drainUpdates(updates)

		if err := p.sweep(c, mbox.UidValidity, since); err != nil {
			return err
		}
		drainUpdates(updates)
	}
}

// connect dials and authenticates with fixed timeouts.
func (p *Poller) connect() (*client.Client, error) {
	dialer := &net.Dialer{Timeout: p.cfg.DialTimeout}

	var c *client.Client
	var err error
	if p.cfg.IMAPSecure {
		c, err = client.DialWithDialerTLS(dialer, p.cfg.IMAPAddr(), &tls.Config{ServerName: p.cfg.IMAPHost})
	} else {
		c, err = client.DialWithDialer(dialer, p.cfg.IMAPAddr())
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", p.cfg.IMAPAddr(), err)
	}

	c.Timeout = p.cfg.AuthTimeout
	if err := c.Login(p.cfg.IMAPUser, p.cfg.IMAPPass); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("authenticating %s: %w", p.cfg.IMAPUser, err)
	}
	p.log.Info().Str("host", p.cfg.IMAPHost).Msg("connected to mail store")
	return c, nil
}

// sweep searches for unseen messages (optionally date-bounded), fetches
// each in full and hands them to the relay one at a time, in store order.
func (p *Poller) sweep(c *client.Client, uidValidity uint32, since time.Time) error {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if !since.IsZero() {
		criteria.Since = since
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("searching unseen: %w", err)
	}

	// Drop UIDs the ledger already committed before fetching bodies.
	var pending []uint32
	for _, uid := range uids {
		if p.relay.Seen(storeID(uidValidity, uid)) {
			continue
		}
		pending = append(pending, uid)
	}
	if len(pending) == 0 {
		return nil
	}
	p.log.Info().Int("count", len(pending)).Msg("fetching unseen messages")

	seqset := new(imap.SeqSet)
	seqset.AddNum(pending...)
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 8)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seqset, items, messages) }()

	for msg := range messages {
		p.handleFetched(uidValidity, msg, section)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("fetching messages: %w", err)
	}
	return nil
}

// handleFetched converts one fetched message and runs it through the
// relay. Parse failures are malformed-message territory: roll back any
// processed marker and drop; the pipeline never aborts the sweep.
func (p *Poller) handleFetched(uidValidity uint32, msg *imap.Message, section *imap.BodySectionName) {
	id := storeID(uidValidity, msg.Uid)

	// Recheck after the fetch: another sweep may have committed this UID
	// while this one was in flight.
	if p.relay.Seen(id) {
		return
	}

	body := msg.GetBody(section)
	if body == nil {
		p.log.Warn().Str("store_id", id).Msg("message fetched without body, skipping")
		return
	}

	text, err := extractText(body)
	if err != nil {
		p.log.Error().Err(err).Str("store_id", id).Msg("malformed message, rolling back and dropping")
		p.relay.Rollback(id)
		return
	}

	m := &relay.Message{StoreID: id, Body: text}
	if env := msg.Envelope; env != nil {
		m.MessageID = env.MessageId
		m.Subject = env.Subject
		m.Date = env.Date
		if len(env.From) > 0 {
			m.From = env.From[0].Address()
		}
	}

	p.relay.Handle(m)
}

// storeID scopes a UID with the mailbox's UIDVALIDITY so identifiers stay
// stable across mailbox resets.
func storeID(uidValidity, uid uint32) string {
	return fmt.Sprintf("uid:%d:%d", uidValidity, uid)
}

// drainUpdates clears buffered unilateral updates so a burst of events
// collapses into one sweep instead of one sweep each.
func drainUpdates(updates chan client.Update) {
	for {
		select {
		case <-updates:
		default:
			return
		}
	}
}
