package relay

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/switchboard/internal/config"
	"github.com/steveyegge/switchboard/internal/extract"
	"github.com/steveyegge/switchboard/internal/inject"
	"github.com/steveyegge/switchboard/internal/store"
)

// fakeInjector records deliveries and simulates verified, unverified or
// failed outcomes.
type fakeInjector struct {
	result   *inject.Result
	err      error
	tokens   []string
	commands []string
}

func (f *fakeInjector) Deliver(token, command string) (*inject.Result, error) {
	f.tokens = append(f.tokens, token)
	f.commands = append(f.commands, command)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fixture struct {
	relay     *Relay
	injector  *fakeInjector
	sent      *store.SentLedger
	processed *store.ProcessedLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	sent, err := store.OpenSentLedger(filepath.Join(dir, "sent.json"), 24*time.Hour)
	require.NoError(t, err)
	processed, err := store.OpenProcessedLedger(filepath.Join(dir, "processed.json"), 7*24*time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{AllowedSenders: []string{"alice@example.com"}}
	injector := &fakeInjector{result: &inject.Result{Tier: "direct", Verified: true}}
	r := New(cfg, sent, processed, extract.NewExtractor("bot@example.com"), injector, zerolog.Nop())
	return &fixture{relay: r, injector: injector, sent: sent, processed: processed}
}

func replyMessage() *Message {
	return &Message{
		StoreID:   "uid:7:42",
		MessageID: "<reply-1@mail.example.com>",
		From:      "Alice <alice@example.com>",
		Subject:   "Re: [Switchboard Session: demo]",
		Date:      time.Now(),
		Body:      "please run the tests\n\nOn Jan 1, X wrote:\n> original",
	}
}

func TestHappyPathInjectsAndMarks(t *testing.T) {
	f := newFixture(t)

	f.relay.Handle(replyMessage())

	require.Equal(t, []string{"demo"}, f.injector.tokens)
	assert.Equal(t, []string{"please run the tests"}, f.injector.commands)
	assert.True(t, f.processed.Has("uid:7:42"))
}

func TestDuplicateDeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)

	msg := replyMessage()
	f.relay.Handle(msg)
	f.relay.Handle(msg)

	assert.Len(t, f.injector.tokens, 1, "second delivery of a marked message must not inject")
}

func TestSelfSentSuppressedAndRemoved(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sent.Append(store.SentMessageRecord{MessageID: "<reply-1@mail.example.com>"}))

	f.relay.Handle(replyMessage())

	assert.Empty(t, f.injector.tokens, "self-sent message must not be classified or injected")
	assert.False(t, f.sent.IsSelfSent("<reply-1@mail.example.com>"), "one-shot suppression removes the ledger entry")
	assert.False(t, f.processed.Has("uid:7:42"))
}

func TestDisallowedSenderDropped(t *testing.T) {
	f := newFixture(t)
	msg := replyMessage()
	msg.From = "mallory@evil.test"

	f.relay.Handle(msg)

	assert.Empty(t, f.injector.tokens)
	assert.False(t, f.processed.Has(msg.Identifier()), "policy rejections are dropped, not marked")
}

func TestNoMarkerDroppedWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	msg := replyMessage()
	msg.Subject = "lunch on friday?"

	f.relay.Handle(msg)

	assert.Empty(t, f.injector.tokens)
	assert.False(t, f.processed.Has(msg.Identifier()))
}

func TestDeliveryExhaustionLeavesRetryEligible(t *testing.T) {
	f := newFixture(t)
	f.injector.err = inject.ErrDeliveryExhausted

	msg := replyMessage()
	f.relay.Handle(msg)

	assert.False(t, f.processed.Has(msg.Identifier()), "failed delivery must stay eligible for retry")

	// Once the environment recovers, a later cycle injects and commits.
	f.injector.err = nil
	f.relay.Handle(msg)
	assert.Len(t, f.injector.tokens, 2)
	assert.True(t, f.processed.Has(msg.Identifier()))
}

func TestUnverifiedManualDeliveryNotMarked(t *testing.T) {
	f := newFixture(t)
	f.injector.result = &inject.Result{Tier: "manual", Verified: false}

	msg := replyMessage()
	f.relay.Handle(msg)

	assert.Len(t, f.injector.tokens, 1, "manual fallback still runs")
	assert.False(t, f.processed.Has(msg.Identifier()), "clipboard fallback cannot verify execution")
}

func TestIdentifierPriority(t *testing.T) {
	withUID := &Message{StoreID: "uid:1:2", MessageID: "<m@x>", Subject: "s", Date: time.Unix(10, 0)}
	assert.Equal(t, "uid:1:2", withUID.Identifier())

	withMsgID := &Message{MessageID: "<m@x>", Subject: "s", Date: time.Unix(10, 0)}
	assert.Equal(t, "<m@x>", withMsgID.Identifier())

	fingerprint := &Message{Subject: "s", Date: time.Unix(10, 0)}
	assert.Equal(t, "s_10000", fingerprint.Identifier())
}

func TestRollbackReenablesRetry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.processed.Mark("uid:9:9"))

	f.relay.Rollback("uid:9:9")
	assert.False(t, f.relay.Seen("uid:9:9"))
}

func TestHandleSurvivesInjectorError(t *testing.T) {
	f := newFixture(t)
	f.injector.err = errors.New("tmux exploded")

	assert.NotPanics(t, func() { f.relay.Handle(replyMessage()) })
}
