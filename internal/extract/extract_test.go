package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionFromSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"session marker", "[Switchboard Session: build-session] task done", "build-session"},
		{"reply session marker", "Re: [Switchboard Session: build-session]", "build-session"},
		{"nested reply prefix", "RE: Re: [Switchboard Session: demo]", "demo"},
		{"legacy token", "[Switchboard #AB12CD34] waiting for input", "AB12CD34"},
		{"reply legacy token", "Re: [Switchboard #AB12CD34]", "AB12CD34"},
		{"no marker", "lunch on friday?", ""},
		{"empty subject", "", ""},
		{"marker-ish but wrong brand", "[Othertool Session: demo]", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionFromSubject(tt.subject))
		})
	}
}

func TestSubjectRoundTrip(t *testing.T) {
	// The outbound builder and the inbound parser are two halves of one
	// contract; a subject we emit must parse back to the same session.
	assert.Equal(t, "demo", SessionFromSubject(Subject("demo", "Task completed")))
	assert.Equal(t, "demo", SessionFromSubject("Re: "+Subject("demo", "")))
	assert.Equal(t, "AB12CD34", SessionFromSubject(LegacySubject("AB12CD34", "waiting")))
}

func TestCommandQuoteCutoff(t *testing.T) {
	e := NewExtractor("bot@example.com")

	body := "please run the tests\n\n-----Original Message-----\nsecret quoted text\nmore quoted"
	got := e.Command(body)
	assert.Equal(t, "please run the tests", got)
	assert.NotContains(t, got, "quoted")
}

func TestCommandOnWroteCutoff(t *testing.T) {
	e := NewExtractor("")
	body := "please run the tests\n\nOn Jan 1, X wrote:\n> original"
	assert.Equal(t, "please run the tests", e.Command(body))
}

func TestCommandCutoffVariants(t *testing.T) {
	e := NewExtractor("bot@example.com")
	tests := []struct {
		name string
		tail string
	}{
		{"quote prefix", "> earlier text"},
		{"from echo", "From: someone@example.com"},
		{"signature dashes", "-- "},
		{"sent from", "Sent from my phone"},
		{"footer", "Powered by the " + Footer},
		{"own address", "Switchboard <bot@example.com> wrote this"},
		{"session echo", "Session ID: 1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "do the thing", e.Command("do the thing\n"+tt.tail+"\nleftover"))
		})
	}
}

func TestCommandGreetingsFilteredPerLine(t *testing.T) {
	e := NewExtractor("")

	// A greeting above the command must not swallow the command, unlike a
	// quote cutoff which stops the whole scan.
	body := "hi\nplease run the tests\nthanks\n"
	assert.Equal(t, "please run the tests", e.Command(body))

	// A body that is nothing but greetings yields no command.
	assert.Equal(t, "", e.Command("hi\nok\nThanks!\n"))
}

func TestCommandMultiLinePreserved(t *testing.T) {
	e := NewExtractor("")
	body := "first step\nsecond step\n\nthird step"
	assert.Equal(t, "first step\nsecond step\nthird step", e.Command(body))
}

func TestCommandLengthCap(t *testing.T) {
	e := NewExtractor("")
	long := strings.Repeat("x", 3*MaxCommandLength)
	got := e.Command(long)
	assert.LessOrEqual(t, len(got), MaxCommandLength)
	assert.NotEmpty(t, got)
}

func TestCollapseRepeats(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"doubled phrase", "drink cola okay drink cola okay", "drink cola okay"},
		{"exact concatenation", "run testsrun tests", "run tests"},
		{"triple", "ok ok ok", "ok"},
		{"newline separated echo", "make build\nmake build", "make build"},
		{"no repetition", "please run the tests", "please run the tests"},
		{"near repetition unchanged", "aba", "aba"},
		{"single char", "x", "x"},
		{"empty", "", ""},
		{"half-matching tail unchanged", "deploy nowdeploy later", "deploy nowdeploy later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collapseRepeats(tt.in))
		})
	}
}

func TestClassify(t *testing.T) {
	e := NewExtractor("bot@example.com")

	r := e.Classify("Re: [Switchboard Session: demo]", "please run the tests\n\nOn Jan 1, X wrote:\n> original")
	if assert.NotNil(t, r) {
		assert.Equal(t, "demo", r.SessionToken)
		assert.Equal(t, "please run the tests", r.Command)
	}

	assert.Nil(t, e.Classify("no marker here", "please run the tests"))
	assert.Nil(t, e.Classify("[Switchboard Session: demo]", "hi\nthanks\n"))
}
