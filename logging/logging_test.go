package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyJSONHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelDebug, FormatPretty)
	log.With("episode", "e1").WithGroup("step").Info("tick", "n", 3, "err", errors.New("boom"))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not one JSON object: %v\n%s", err, buf.String())
	}
	if got["msg"] != "tick" || got["episode"] != "e1" {
		t.Fatalf("unexpected payload: %v", got)
	}
	step, ok := got["step"].(map[string]any)
	if !ok {
		t.Fatalf("missing step group: %v", got)
	}
	if step["n"] != float64(3) || step["err"] != "boom" {
		t.Fatalf("unexpected group: %v", step)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Fatalf("output is not indented:\n%s", buf.String())
	}
}

func TestPrettyJSONHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn, FormatPretty)
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
	log.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn not logged")
	}
}

func TestParse(t *testing.T) {
	if lvl, err := ParseLevel("DEBUG"); err != nil || lvl != slog.LevelDebug {
		t.Fatalf("ParseLevel(DEBUG)=%v,%v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for bad level")
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Fatalf("ParseFormat(\"\")=%v,%v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for bad format")
	}
}
