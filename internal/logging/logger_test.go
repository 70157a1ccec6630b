package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestNewCachesPerComponent(t *testing.T) {
	a := New("cache-test")
	b := New("cache-test")
	if a != b {
		t.Fatalf("expected the same entry for one component")
	}
	if a.Data["component"] != "cache-test" {
		t.Fatalf("missing component field: %v", a.Data)
	}
}

func TestConfigureJSONAndLevel(t *testing.T) {
	t.Setenv(LevelEnv, "")
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Format: "json"}, &buf)
	t.Cleanup(func() { Configure(Config{}, os.Stderr) })

	log := New("json-test")
	log.Info("hidden")
	log.Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected a single warn line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if entry["msg"] != "shown" || entry["component"] != "json-test" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestEnvOverridesLevel(t *testing.T) {
	t.Setenv(LevelEnv, "debug")
	var buf bytes.Buffer
	Configure(Config{Level: "error"}, &buf)
	t.Cleanup(func() { Configure(Config{}, os.Stderr) })

	New("env-test").Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatalf("expected a logger")
	}
	l := Discard()
	if OrDiscard(l) != l {
		t.Fatalf("expected passthrough")
	}
}
