package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{" TRACE ", zerolog.TraceLevel, false},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("Expected json format, got %q (%v)", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatConsole {
		t.Errorf("Expected console default, got %q (%v)", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Errorf("Expected error for unknown format")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("simpit-host", Config{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "test").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if entry["app"] != "simpit-host" || entry["message"] != "shown" {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv(EnvLevel, "error")
	t.Setenv(EnvFormat, "json")

	cfg := ApplyEnv(DefaultConfig())
	if cfg.Level != "error" || cfg.Format != "json" {
		t.Errorf("Expected env overrides, got %+v", cfg)
	}

	var buf bytes.Buffer
	logger, err := New("simpit-host", DefaultConfig(), &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Warn().Msg("suppressed")
	if buf.Len() != 0 {
		t.Errorf("Expected warn suppressed at error level, got %q", buf.String())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("simpit-host", Config{Level: "nope"}, nil); err == nil {
		t.Errorf("Expected error for invalid level")
	}
}
