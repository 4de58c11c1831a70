package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(lookupFrom(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if diff := cmp.Diff(Defaults(), s); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}
	if s.DisplayWidth != 400 || s.DisplayHeight != 300 || s.FontSize != 16 {
		t.Errorf("Expected 400x300 at 16px, got %dx%d at %v", s.DisplayWidth, s.DisplayHeight, s.FontSize)
	}
	if s.Addr() != "0.0.0.0:8000" {
		t.Errorf("Expected 0.0.0.0:8000, got %s", s.Addr())
	}
}

func TestLoadOverrides(t *testing.T) {
	s, err := Load(lookupFrom(map[string]string{
		"KAVITA_BASE_URL":   "https://kavita.example.com",
		"KAVITA_API_KEY":    "abc",
		"KAVITA_TIMEOUT":    "10s",
		"KAVITA_RATE_LIMIT": "2.5",
		"DISPLAY_WIDTH":     "296",
		"DISPLAY_HEIGHT":    "128",
		"FONT_SIZE":         "12",
		"PAGE_MARGIN":       "4",
		"SERVER_PORT":       "9000",
		"LOG_LEVEL":         "debug",
		"LOG_FORMAT":        "json",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if s.KavitaBaseURL != "https://kavita.example.com" || s.KavitaAPIKey != "abc" {
		t.Errorf("Kavita settings not applied: %+v", s)
	}
	if s.KavitaTimeout != 10*time.Second || s.KavitaRateLimit != 2.5 {
		t.Errorf("Expected 10s timeout and 2.5 rps, got %v and %v", s.KavitaTimeout, s.KavitaRateLimit)
	}
	if s.DisplayWidth != 296 || s.DisplayHeight != 128 || s.FontSize != 12 || s.PageMargin != 4 {
		t.Errorf("Display settings not applied: %+v", s)
	}
	if s.ServerPort != 9000 {
		t.Errorf("Expected port 9000, got %d", s.ServerPort)
	}

	cfg := s.KavitaConfig()
	if cfg.BaseURL != s.KavitaBaseURL || cfg.RateLimit != 2.5 || cfg.PluginName != "ESP32Reader" {
		t.Errorf("Unexpected kavita config: %+v", cfg)
	}
}

func TestLoadLayoutSwitches(t *testing.T) {
	s, err := Load(lookupFrom(map[string]string{
		"BREAK_LONG_WORDS": "true",
		"PARAGRAPH_BREAKS": "1",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !s.BreakLongWords || !s.ParagraphBreaks {
		t.Errorf("Expected both layout switches on, got %+v", s)
	}
	if !s.CleanOptions().KeepParagraphBreaks {
		t.Error("Expected the cleaner to keep paragraph breaks")
	}

	if _, err := Load(lookupFrom(map[string]string{"BREAK_LONG_WORDS": "sometimes"})); err == nil || !strings.Contains(err.Error(), "BREAK_LONG_WORDS") {
		t.Errorf("Expected error mentioning BREAK_LONG_WORDS, got %v", err)
	}
}

func TestLoadProfileThenOverride(t *testing.T) {
	s, err := Load(lookupFrom(map[string]string{
		"DISPLAY_PROFILE": "waveshare-7.5",
		"FONT_SIZE":       "18",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.DisplayWidth != 800 || s.DisplayHeight != 480 {
		t.Errorf("Expected profile size 800x480, got %dx%d", s.DisplayWidth, s.DisplayHeight)
	}
	if s.FontSize != 18 {
		t.Errorf("Expected FONT_SIZE to override the profile, got %v", s.FontSize)
	}
}

func TestLoadTimeoutSeconds(t *testing.T) {
	s, err := Load(lookupFrom(map[string]string{"KAVITA_TIMEOUT": "45"}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.KavitaTimeout != 45*time.Second {
		t.Errorf("Expected 45s, got %v", s.KavitaTimeout)
	}
}

func TestLoadBlankValuesIgnored(t *testing.T) {
	s, err := Load(lookupFrom(map[string]string{"DISPLAY_WIDTH": "  ", "FONT_PATH": ""}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.DisplayWidth != 400 {
		t.Errorf("Expected blank value to keep default, got %d", s.DisplayWidth)
	}
}

func TestLoadReportsAllErrors(t *testing.T) {
	_, err := Load(lookupFrom(map[string]string{
		"DISPLAY_WIDTH":   "wide",
		"SERVER_PORT":     "http",
		"DISPLAY_PROFILE": "kindle",
	}))
	if err == nil {
		t.Fatal("Expected error")
	}
	for _, key := range []string{"DISPLAY_WIDTH", "SERVER_PORT", "DISPLAY_PROFILE"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Expected error to mention %s, got: %v", key, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{"bad url", func(s *Settings) { s.KavitaBaseURL = "localhost" }, "KAVITA_BASE_URL"},
		{"zero width", func(s *Settings) { s.DisplayWidth = 0 }, "display size"},
		{"negative font", func(s *Settings) { s.FontSize = -1 }, "FONT_SIZE"},
		{"huge margin", func(s *Settings) { s.PageMargin = 200 }, "PAGE_MARGIN"},
		{"missing font file", func(s *Settings) { s.FontPath = "/nonexistent.ttf" }, "FONT_PATH"},
		{"bad port", func(s *Settings) { s.ServerPort = 70000 }, "SERVER_PORT"},
		{"bad level", func(s *Settings) { s.LogLevel = "chatty" }, "LOG_LEVEL"},
		{"bad format", func(s *Settings) { s.LogFormat = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			err := s.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Expected error mentioning %s, got %v", tt.field, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for input, want := range tests {
		got, err := ParseLevel(input)
		if err != nil {
			t.Errorf("ParseLevel(%q): unexpected error %v", input, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", input, got, want)
		}
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "chapter", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON log line: %v", err)
	}
	if entry["msg"] != "shown" || entry["chapter"] != float64(7) {
		t.Errorf("Unexpected log entry: %v", entry)
	}
}

func TestNewLoggerRejectsUnknownFormat(t *testing.T) {
	if _, err := NewLogger(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}
