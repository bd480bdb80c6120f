package transcribe

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Processing.SoftLimit != DefaultSoftLimit || cfg.Processing.HardLimit != DefaultHardLimit {
		t.Errorf("unexpected limits %d/%d", cfg.Processing.SoftLimit, cfg.Processing.HardLimit)
	}
	if cfg.Whisper.URL != DefaultWhisperURL {
		t.Errorf("expected whisper URL %q, got %q", DefaultWhisperURL, cfg.Whisper.URL)
	}
	if !cfg.Calendar.GroupEventsOnly {
		t.Error("expected group_events_only to default to true")
	}
	if cfg.Notes.Model != notes.DefaultModel {
		t.Errorf("expected model %q, got %q", notes.DefaultModel, cfg.Notes.Model)
	}
	if cfg.PollInterval() != time.Second {
		t.Errorf("expected 1s poll interval, got %v", cfg.PollInterval())
	}
	if cfg.MatchTolerance() != 30*time.Minute {
		t.Errorf("expected 30m tolerance, got %v", cfg.MatchTolerance())
	}
	if cfg.MaxBytes() != 500*1024*1024 {
		t.Errorf("unexpected max bytes %d", cfg.MaxBytes())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), `
[paths]
input_dir = "/mnt/recordings"
output_dir = "/srv/notes/inbox"

[processing]
soft_limit = 3
hard_limit = 8
default_modes = "qe"

[watcher]
poll_interval_seconds = 0.5
stable_seconds = 10

[calendar]
enabled = true
group_events_only = false
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Paths.InputDir != "/mnt/recordings" || cfg.Paths.OutputDir != "/srv/notes/inbox" {
		t.Errorf("unexpected paths %+v", cfg.Paths)
	}
	if cfg.Processing.SoftLimit != 3 || cfg.Processing.HardLimit != 8 {
		t.Errorf("unexpected limits %+v", cfg.Processing)
	}
	if got := cfg.DefaultModes().String(); got != "EQ" {
		t.Errorf("expected default modes EQ, got %q", got)
	}
	if cfg.PollInterval() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.PollInterval())
	}
	if cfg.StableWindow() != 10*time.Second {
		t.Errorf("expected 10s, got %v", cfg.StableWindow())
	}
	if !cfg.Calendar.Enabled || cfg.Calendar.GroupEventsOnly {
		t.Errorf("unexpected calendar %+v", cfg.Calendar)
	}
	// Untouched sections keep their defaults.
	if cfg.Whisper.URL != DefaultWhisperURL || cfg.Calendar.CalendarID != DefaultCalendarID {
		t.Errorf("expected defaults for unset keys, got %q %q", cfg.Whisper.URL, cfg.Calendar.CalendarID)
	}
}

func TestLoad_LocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), `
[paths]
input_dir = "/base/in"
output_dir = "/base/out"

[whisper]
url = "http://base:9000"
language = "en"
`)
	writeFile(t, filepath.Join(dir, LocalConfigFileName), `
[whisper]
url = "http://local:9000"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Whisper.URL != "http://local:9000" {
		t.Errorf("expected local override, got %q", cfg.Whisper.URL)
	}
	if cfg.Whisper.Language != "en" {
		t.Errorf("expected sibling key to survive merge, got %q", cfg.Whisper.Language)
	}
	if cfg.Paths.InputDir != "/base/in" {
		t.Errorf("expected base section kept, got %q", cfg.Paths.InputDir)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), "[paths]\ninptu_dir = \"/x\"\n")

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "inptu_dir") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), "[paths\n")

	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetscribe.yaml")
	writeFile(t, path, `
paths:
  input_dir: /yaml/in
  output_dir: /yaml/out
notes:
  api_keys: [k1, k2]
  docx: true
  prompts:
    w: "Summarise everything."
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Paths.InputDir != "/yaml/in" {
		t.Errorf("unexpected input dir %q", cfg.Paths.InputDir)
	}
	if len(cfg.Notes.APIKeys) != 2 || !cfg.Notes.Docx {
		t.Errorf("unexpected notes %+v", cfg.Notes)
	}
	if cfg.NotesPrompts()[notes.Holistic] != "Summarise everything." {
		t.Errorf("unexpected W prompt %q", cfg.NotesPrompts()[notes.Holistic])
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), `
[paths]
input_dir = "/file/in"

[notes]
api_keys = ["file-key"]
`)

	t.Setenv("MEETSCRIBE_INPUT_DIR", "/env/in")
	t.Setenv("MEETSCRIBE_REPROCESS", "true")
	t.Setenv("MEETSCRIBE_LOG_LEVEL", "debug")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("GEMINI_API_KEYS", "env-key,second-key")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.InputDir != "/env/in" {
		t.Errorf("expected env input dir, got %q", cfg.Paths.InputDir)
	}
	if !cfg.Processing.Reprocess {
		t.Error("expected reprocess from env")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug, got %q", cfg.Logging.Level)
	}
	want := []string{"env-key", "second-key", "file-key"}
	if strings.Join(cfg.Notes.APIKeys, ",") != strings.Join(want, ",") {
		t.Errorf("expected keys %v, got %v", want, cfg.Notes.APIKeys)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	const key = "MEETSCRIBE_WHISPER_URL"
	if _, set := os.LookupEnv(key); set {
		t.Skipf("%s already set in environment", key)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), "[paths]\ninput_dir = \"/in\"\n")
	writeFile(t, filepath.Join(dir, EnvFileName), key+"=http://dotenv:9000\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Whisper.URL != "http://dotenv:9000" {
		t.Errorf("expected .env whisper URL, got %q", cfg.Whisper.URL)
	}
}

func TestLoad_ExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), `
[paths]
input_dir = "~/Recordings"
archive_dir = "~/Archive"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.InputDir != filepath.Join(home, "Recordings") {
		t.Errorf("expected expanded input dir, got %q", cfg.Paths.InputDir)
	}
	if cfg.Paths.ArchiveDir != filepath.Join(home, "Archive") {
		t.Errorf("expected expanded archive dir, got %q", cfg.Paths.ArchiveDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"empty input", func(c *Config) { c.Paths.InputDir = " " }, ErrMissingInputDir},
		{"empty output", func(c *Config) { c.Paths.OutputDir = "" }, ErrMissingOutputDir},
		{"soft above hard", func(c *Config) { c.Processing.SoftLimit = 30 }, ErrInvalidLimits},
		{"negative soft", func(c *Config) { c.Processing.SoftLimit = -1 }, ErrInvalidLimits},
		{"zero workers", func(c *Config) { c.Processing.Workers = 0 }, ErrInvalidWorkers},
		{"bad modes", func(c *Config) { c.Processing.DefaultModes = "Q1" }, ErrInvalidModes},
		{"zero poll", func(c *Config) { c.Watcher.PollIntervalSeconds = 0 }, ErrInvalidPollInterval},
		{"negative stable", func(c *Config) { c.Watcher.StableSeconds = -1 }, ErrInvalidStableWindow},
		{"bad whisper scheme", func(c *Config) { c.Whisper.URL = "ftp://x" }, ErrInvalidWhisperURL},
		{"whisper without host", func(c *Config) { c.Whisper.URL = "http://" }, ErrInvalidWhisperURL},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncode_MasksKeys(t *testing.T) {
	cfg := Default()
	cfg.Notes.APIKeys = []string{"AIzaSyVerySecretKey1234", "short"}

	for _, format := range []string{"toml", "yaml"} {
		var buf bytes.Buffer
		if err := cfg.Encode(&buf, format); err != nil {
			t.Fatalf("%s: Encode failed: %v", format, err)
		}
		out := buf.String()
		if strings.Contains(out, "VerySecret") || strings.Contains(out, "short") {
			t.Errorf("%s: key leaked:\n%s", format, out)
		}
		if !strings.Contains(out, "AIza...1234") {
			t.Errorf("%s: expected masked key in output:\n%s", format, out)
		}
	}
	if cfg.Notes.APIKeys[0] != "AIzaSyVerySecretKey1234" {
		t.Error("Encode must not modify the config")
	}
}

func TestDefaultTOML_RoundTrip(t *testing.T) {
	data, err := DefaultTOML()
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), string(data))

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("default config does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
	if cfg.Processing.HardLimit != DefaultHardLimit {
		t.Errorf("unexpected hard limit %d", cfg.Processing.HardLimit)
	}
}
