// Package notify sends outbound notification mail and registers the
// reply route for each message.
//
// Every notification carries a subject marker that the inbound side can
// map back to a terminal session, and is recorded in the sent ledger so
// the poller recognizes the message if it bounces back into the
// monitored inbox. The session registry entry is written before the
// send and rolled back if the send fails, so a reply can never arrive
// for a route that was never registered.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"

	"github.com/steveyegge/switchboard/internal/config"
	"github.com/steveyegge/switchboard/internal/extract"
	"github.com/steveyegge/switchboard/internal/store"
)

// tokenLength is the number of characters kept from the generated token.
// Tokens appear in mail subjects, so they stay short and uppercase.
const tokenLength = 8

// outputTailLines caps how much captured terminal output a notification
// carries.
const outputTailLines = 20

// Notification describes one outbound message about a terminal session.
type Notification struct {
	SessionName      string
	WorkingDirectory string
	Summary          string
	Output           string // recent terminal output, may be empty
}

// Notifier builds and sends notification mail.
type Notifier struct {
	cfg      *config.Config
	registry *store.Registry
	sent     *store.SentLedger
	log      zerolog.Logger

	send     func(ctx context.Context, msg *gomail.Msg) error
	newToken func() string
	now      func() time.Time
}

// New creates a notifier that delivers over SMTP.
func New(cfg *config.Config, registry *store.Registry, sent *store.SentLedger, log zerolog.Logger) *Notifier {
	n := &Notifier{
		cfg:      cfg,
		registry: registry,
		sent:     sent,
		log:      log,
		newToken: newToken,
		now:      time.Now,
	}
	n.send = n.smtpSend
	return n
}

// Send registers a reply route for the session, records the message in
// the sent ledger and delivers it. It returns the reply token. On a
// failed send both the route and the ledger entry are rolled back.
func (n *Notifier) Send(ctx context.Context, note Notification) (string, error) {
	if note.SessionName == "" {
		return "", fmt.Errorf("%w: session name", config.ErrMissingField)
	}

	token := n.newToken()
	messageID := fmt.Sprintf("%s@switchboard", uuid.NewString())

	rec := &store.SessionRecord{
		Token:            token,
		SessionName:      note.SessionName,
		WorkingDirectory: note.WorkingDirectory,
	}
	if err := n.registry.Put(rec); err != nil {
		return "", fmt.Errorf("registering reply route: %w", err)
	}
	if err := n.sent.Append(store.SentMessageRecord{
		MessageID:    messageID,
		SessionToken: token,
		SentAt:       n.now(),
	}); err != nil {
		_ = n.registry.Delete(token)
		return "", fmt.Errorf("recording sent message: %w", err)
	}

	msg, err := n.buildMessage(messageID, token, note)
	if err != nil {
		_ = n.sent.Remove(messageID)
		_ = n.registry.Delete(token)
		return "", err
	}

	if err := n.send(ctx, msg); err != nil {
		_ = n.sent.Remove(messageID)
		_ = n.registry.Delete(token)
		return "", fmt.Errorf("sending notification: %w", err)
	}

	n.log.Info().
		Str("session", note.SessionName).
		Str("token", token).
		Str("to", n.cfg.NotifyTo).
		Msg("notification sent")
	return token, nil
}

// buildMessage assembles the outbound mail.
func (n *Notifier) buildMessage(messageID, token string, note Notification) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(n.cfg.SMTPUser); err != nil {
		return nil, fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(n.cfg.NotifyTo); err != nil {
		return nil, fmt.Errorf("setting recipient: %w", err)
	}
	msg.SetMessageIDWithValue(messageID)
	msg.Subject(extract.Subject(note.SessionName, note.Summary))
	msg.SetBodyString(gomail.TypeTextPlain, buildBody(token, note))
	return msg, nil
}

// buildBody renders the plain-text notification body. The trailing
// marker lines double as reply cutoffs, so a quoted notification never
// leaks back into a command.
func buildBody(token string, note Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %q has an update.\n\n", note.SessionName)
	if note.Summary != "" {
		b.WriteString(note.Summary)
		b.WriteString("\n\n")
	}
	if note.WorkingDirectory != "" {
		fmt.Fprintf(&b, "Working directory: %s\n\n", note.WorkingDirectory)
	}
	if tail := outputTail(note.Output); tail != "" {
		b.WriteString("Recent output:\n")
		b.WriteString(tail)
		b.WriteString("\n\n")
	}
	b.WriteString("Reply to this email to send a command to the session.\n\n")
	b.WriteString("--\n")
	b.WriteString(extract.Footer)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Session ID: %s\n", token)
	return b.String()
}

// outputTail keeps the last outputTailLines non-empty-trimmed lines.
func outputTail(output string) string {
	output = strings.TrimRight(output, " \t\n")
	if output == "" {
		return ""
	}
	lines := strings.Split(output, "\n")
	if len(lines) > outputTailLines {
		lines = lines[len(lines)-outputTailLines:]
	}
	return strings.Join(lines, "\n")
}

// smtpSend delivers one message over the configured SMTP relay.
func (n *Notifier) smtpSend(ctx context.Context, msg *gomail.Msg) error {
	c, err := gomail.NewClient(n.cfg.SMTPHost,
		gomail.WithPort(n.cfg.SMTPPort),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(n.cfg.SMTPUser),
		gomail.WithPassword(n.cfg.SMTPPass),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	return c.DialAndSendWithContext(ctx, msg)
}

// newToken returns a short uppercase reply token.
func newToken() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return raw[:tokenLength]
}
