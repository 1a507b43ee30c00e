package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		opts Options
		want slog.Level
	}{
		{Options{}, slog.LevelInfo},
		{Options{Verbose: true}, slog.LevelDebug},
		{Options{Quiet: true}, slog.LevelWarn},
		{Options{Verbose: true, Quiet: true}, slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := tt.opts.Level(); got != tt.want {
			t.Errorf("%+v.Level() = %v, want %v", tt.opts, got, tt.want)
		}
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{})
	log.Debug("hidden")
	log.Info("ledger saved", "path", "/tmp/var/ledger.json")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
	if !strings.Contains(out, "msg=\"ledger saved\"") || !strings.Contains(out, "path=/tmp/var/ledger.json") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{JSON: true, Verbose: true}).Debug("gate", "decision", "skip")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "gate" || rec["decision"] != "skip" || rec["level"] != "DEBUG" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestDiscard(t *testing.T) {
	New(nil, Options{}).Error("dropped")
	OrDiscard(nil).Error("dropped")
	if l := Discard(); OrDiscard(l) != l {
		t.Error("OrDiscard replaced a non-nil logger")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]bool{"": false, "text": false, "JSON": true, " json ": true} {
		got, ok := ParseFormat(in)
		if !ok || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseFormat("yaml"); ok {
		t.Error("ParseFormat(yaml) accepted")
	}
}
