package log

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(level Level, formatter Formatter) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := NewLogger(
		WithLevel(level),
		WithFormatter(formatter),
		WithOutput(&WriterOutput{W: buf}),
	)
	return l, buf
}

func TestLevelGate(t *testing.T) {
	l, buf := newTestLogger(WarnLevel, &TextFormatter{})
	l.Info("hidden")
	l.Warn("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info leaked through warn gate: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn entry missing: %q", out)
	}
}

func TestFieldsAndWith(t *testing.T) {
	l, buf := newTestLogger(DebugLevel, &TextFormatter{})
	l = l.With(Component("registry"))
	l.Info("connected", Str("connection_id", "123456"), Int("subs", 2))
	out := buf.String()
	for _, want := range []string{"component=registry", "connection_id=123456", "subs=2", "connected"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	l, buf := newTestLogger(DebugLevel, &JSONFormatter{})
	l.Error("boom", Str("graph_id", "g1"))
	out := buf.String()
	for _, want := range []string{`"level":"ERROR"`, `"msg":"boom"`, `"graph_id":"g1"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("debug"); err != nil || lvl != DebugLevel {
		t.Fatalf("debug: %v %v", lvl, err)
	}
	if _, err := ParseLevel("nope"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
