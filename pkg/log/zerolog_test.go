package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestZerologAdapter_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf))

	l.Info("connected", WalletID("io.metamask"), Int("attempt", 2), Err(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{`"wallet_id":"io.metamask"`, `"attempt":2`, `"error":"boom"`, `"message":"connected"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestWith_PrependsFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewZerologAdapterWithLogger(zerolog.New(&buf))

	l := With(With(base, String("component", "discovery")), Origin("https://app.example"))
	l.Warn("dropped")

	out := buf.String()
	if !strings.Contains(out, `"component":"discovery"`) || !strings.Contains(out, `"origin":"https://app.example"`) {
		t.Errorf("scoped fields missing from %q", out)
	}
}

func TestWith_NilLogger(t *testing.T) {
	l := With(nil, String("k", "v"))
	l.Error("must not panic")
	OrNoop(nil).Info("must not panic")
}

func TestWith_NoopStaysUnscoped(t *testing.T) {
	for _, base := range []Logger{nil, NoopLogger{}, NewNoopLogger()} {
		if _, ok := With(base, String("k", "v")).(NoopLogger); !ok {
			t.Errorf("With(%T) did not return a NoopLogger", base)
		}
	}
}
