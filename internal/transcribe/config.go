// Package transcribe loads configuration and wires the transcription
// pipeline together.
package transcribe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/processor"
)

// File names inside the workspace directory.
const (
	ConfigFileName      = "config.toml"
	LocalConfigFileName = "config.local.toml"
	EnvFileName         = ".env"
)

// Defaults for optional fields.
const (
	DefaultInputDir              = "~/Audio"
	DefaultOutputDir             = "~/Documents/Meetscribe"
	DefaultSoftLimit             = 10
	DefaultHardLimit             = 25
	DefaultOutputExt             = "md"
	DefaultWorkers               = 1
	DefaultPollIntervalSeconds   = 1.0
	DefaultStableSeconds         = 5
	DefaultMaxFilesizeMB         = 500
	DefaultWhisperURL            = "http://localhost:9000"
	DefaultWhisperTimeoutSeconds = 600
	DefaultWhisperRetries        = 3
	DefaultCalendarID            = "primary"
	DefaultMatchToleranceMinutes = 30
	DefaultMaxResults            = 50
	DefaultLogLevel              = "info"
	DefaultRetentionDays         = 7
)

// Validation errors
var (
	ErrConfigNotFound      = errors.New("config file not found")
	ErrMissingInputDir     = errors.New("paths.input_dir is required")
	ErrMissingOutputDir    = errors.New("paths.output_dir is required")
	ErrInvalidLimits       = errors.New("processing.soft_limit must be between 0 and processing.hard_limit")
	ErrInvalidWorkers      = errors.New("processing.workers must be at least 1")
	ErrInvalidModes        = errors.New("processing.default_modes is invalid")
	ErrInvalidPollInterval = errors.New("watcher.poll_interval_seconds must be positive")
	ErrInvalidStableWindow = errors.New("watcher.stable_seconds must not be negative")
	ErrInvalidWhisperURL   = errors.New("whisper.url must be an absolute http(s) URL")
	ErrInvalidLogLevel     = errors.New("logging.level must be debug, info, warn or error")
)

// Config is the full meetscribe configuration.
type Config struct {
	Paths      PathsConfig      `toml:"paths" yaml:"paths"`
	Processing ProcessingConfig `toml:"processing" yaml:"processing"`
	Watcher    WatcherConfig    `toml:"watcher" yaml:"watcher"`
	Whisper    WhisperConfig    `toml:"whisper" yaml:"whisper"`
	Notes      NotesConfig      `toml:"notes" yaml:"notes"`
	Calendar   CalendarConfig   `toml:"calendar" yaml:"calendar"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics" yaml:"metrics"`
}

type PathsConfig struct {
	InputDir   string `toml:"input_dir" yaml:"input_dir"`
	OutputDir  string `toml:"output_dir" yaml:"output_dir"`
	ArchiveDir string `toml:"archive_dir" yaml:"archive_dir"`
}

type ProcessingConfig struct {
	Reprocess    bool   `toml:"reprocess" yaml:"reprocess"`
	SoftLimit    int    `toml:"soft_limit" yaml:"soft_limit"`
	HardLimit    int    `toml:"hard_limit" yaml:"hard_limit"`
	OutputExt    string `toml:"output_ext" yaml:"output_ext"`
	Workers      int    `toml:"workers" yaml:"workers"`
	DefaultModes string `toml:"default_modes" yaml:"default_modes"`
	// QueueSize > 0 lets the watcher keep detecting files while earlier
	// ones are still being processed.
	QueueSize int `toml:"queue_size" yaml:"queue_size"`
}

type WatcherConfig struct {
	PollIntervalSeconds float64 `toml:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	StableSeconds       int     `toml:"stable_seconds" yaml:"stable_seconds"`
	MaxFilesizeMB       int     `toml:"max_filesize_mb" yaml:"max_filesize_mb"`
}

type WhisperConfig struct {
	URL            string `toml:"url" yaml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	OutputFormat   string `toml:"output_format" yaml:"output_format"`
	Language       string `toml:"language" yaml:"language"`
	Retries        int    `toml:"retries" yaml:"retries"`
}

type PromptsConfig struct {
	Q string `toml:"q" yaml:"q"`
	W string `toml:"w" yaml:"w"`
	E string `toml:"e" yaml:"e"`
}

type NotesConfig struct {
	Model       string        `toml:"model" yaml:"model"`
	APIKeys     []string      `toml:"api_keys" yaml:"api_keys"`
	Temperature float32       `toml:"temperature" yaml:"temperature"`
	Prompts     PromptsConfig `toml:"prompts" yaml:"prompts"`
	QOutputDir  string        `toml:"q_output_dir" yaml:"q_output_dir"`
	WOutputDir  string        `toml:"w_output_dir" yaml:"w_output_dir"`
	EOutputDir  string        `toml:"e_output_dir" yaml:"e_output_dir"`
	Docx        bool          `toml:"docx" yaml:"docx"`
}

type CalendarConfig struct {
	Enabled               bool   `toml:"enabled" yaml:"enabled"`
	CredentialsFile       string `toml:"credentials_file" yaml:"credentials_file"`
	TokenFile             string `toml:"token_file" yaml:"token_file"`
	CalendarID            string `toml:"calendar_id" yaml:"calendar_id"`
	MatchToleranceMinutes int    `toml:"match_tolerance_minutes" yaml:"match_tolerance_minutes"`
	MaxResults            int    `toml:"max_results" yaml:"max_results"`
	GroupEventsOnly       bool   `toml:"group_events_only" yaml:"group_events_only"`
	SelectInteractively   bool   `toml:"select_interactively" yaml:"select_interactively"`
}

type LoggingConfig struct {
	Level         string `toml:"level" yaml:"level"`
	// Dir defaults to the logs folder of the workspace.
	Dir           string `toml:"dir" yaml:"dir"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

type MetricsConfig struct {
	// Listen is the address for /metrics. Empty disables the endpoint.
	Listen string `toml:"listen" yaml:"listen"`
}

// envOverrides are applied after the config files.
type envOverrides struct {
	InputDir     string   `env:"MEETSCRIBE_INPUT_DIR"`
	OutputDir    string   `env:"MEETSCRIBE_OUTPUT_DIR"`
	Reprocess    *bool    `env:"MEETSCRIBE_REPROCESS"`
	LogLevel     string   `env:"MEETSCRIBE_LOG_LEVEL"`
	WhisperURL   string   `env:"MEETSCRIBE_WHISPER_URL"`
	MetricsAddr  string   `env:"MEETSCRIBE_METRICS_ADDR"`
	GeminiAPIKey string   `env:"GEMINI_API_KEY"`
	GeminiKeys   []string `env:"GEMINI_API_KEYS" envSeparator:","`
}

// Default returns a Config with every default filled in. Files are decoded
// on top of it, so booleans that default to true stay true unless set.
func Default() *Config {
	cfg := &Config{}
	cfg.Calendar.GroupEventsOnly = true
	// Zero is a valid window, so it is only defaulted here.
	cfg.Watcher.StableSeconds = DefaultStableSeconds
	cfg.ApplyDefaults()
	return cfg
}

// Load reads dir/config.toml, overlays dir/config.local.toml if present,
// then dir/.env and the environment. Paths have ~ expanded.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg := Default()
	if err := cfg.decodeFile(path); err != nil {
		return nil, err
	}

	local := filepath.Join(dir, LocalConfigFileName)
	if _, err := os.Stat(local); err == nil {
		if err := cfg.decodeFile(local); err != nil {
			return nil, err
		}
	}

	if err := loadEnvFile(filepath.Join(dir, EnvFileName)); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	cfg.expandPaths()
	return cfg, nil
}

// LoadFile reads a single config file, TOML or YAML by extension, and
// applies the environment on top.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg := Default()
	if err := cfg.decodeFile(path); err != nil {
		return nil, err
	}
	if err := loadEnvFile(filepath.Join(filepath.Dir(path), EnvFileName)); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	cfg.expandPaths()
	return cfg, nil
}

// decodeFile overlays path onto c. Keys absent from the file keep their
// current values, which is what makes the local override a deep merge.
func (c *Config) decodeFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("parse %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	return nil
}

// loadEnvFile loads a .env file without overriding variables already set.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if ov.InputDir != "" {
		c.Paths.InputDir = ov.InputDir
	}
	if ov.OutputDir != "" {
		c.Paths.OutputDir = ov.OutputDir
	}
	if ov.Reprocess != nil {
		c.Processing.Reprocess = *ov.Reprocess
	}
	if ov.LogLevel != "" {
		c.Logging.Level = ov.LogLevel
	}
	if ov.WhisperURL != "" {
		c.Whisper.URL = ov.WhisperURL
	}
	if ov.MetricsAddr != "" {
		c.Metrics.Listen = ov.MetricsAddr
	}

	// Environment keys go first so they are tried before file keys.
	var keys []string
	if ov.GeminiAPIKey != "" {
		keys = append(keys, ov.GeminiAPIKey)
	}
	keys = append(keys, ov.GeminiKeys...)
	if len(keys) > 0 {
		c.Notes.APIKeys = dedupe(append(keys, c.Notes.APIKeys...))
	}
	return nil
}

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	if c.Paths.InputDir == "" {
		c.Paths.InputDir = DefaultInputDir
	}
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = DefaultOutputDir
	}
	if c.Processing.SoftLimit == 0 {
		c.Processing.SoftLimit = DefaultSoftLimit
	}
	if c.Processing.HardLimit == 0 {
		c.Processing.HardLimit = DefaultHardLimit
	}
	if c.Processing.OutputExt == "" {
		c.Processing.OutputExt = DefaultOutputExt
	}
	if c.Processing.Workers == 0 {
		c.Processing.Workers = DefaultWorkers
	}
	if c.Watcher.PollIntervalSeconds == 0 {
		c.Watcher.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.Watcher.MaxFilesizeMB == 0 {
		c.Watcher.MaxFilesizeMB = DefaultMaxFilesizeMB
	}
	if c.Whisper.URL == "" {
		c.Whisper.URL = DefaultWhisperURL
	}
	if c.Whisper.TimeoutSeconds == 0 {
		c.Whisper.TimeoutSeconds = DefaultWhisperTimeoutSeconds
	}
	if c.Whisper.OutputFormat == "" {
		c.Whisper.OutputFormat = "txt"
	}
	if c.Whisper.Retries == 0 {
		c.Whisper.Retries = DefaultWhisperRetries
	}
	if c.Notes.Model == "" {
		c.Notes.Model = notes.DefaultModel
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = DefaultCalendarID
	}
	if c.Calendar.MatchToleranceMinutes == 0 {
		c.Calendar.MatchToleranceMinutes = DefaultMatchToleranceMinutes
	}
	if c.Calendar.MaxResults == 0 {
		c.Calendar.MaxResults = DefaultMaxResults
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = DefaultRetentionDays
	}
}

// Validate checks field ranges. It does not touch the filesystem.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		return ErrMissingInputDir
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return ErrMissingOutputDir
	}
	if c.Processing.SoftLimit < 0 || c.Processing.SoftLimit > c.Processing.HardLimit {
		return fmt.Errorf("%w (soft=%d, hard=%d)", ErrInvalidLimits, c.Processing.SoftLimit, c.Processing.HardLimit)
	}
	if c.Processing.Workers < 1 {
		return ErrInvalidWorkers
	}
	if _, err := notes.ParseModes(c.Processing.DefaultModes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModes, err)
	}
	if c.Watcher.PollIntervalSeconds <= 0 {
		return ErrInvalidPollInterval
	}
	if c.Watcher.StableSeconds < 0 {
		return ErrInvalidStableWindow
	}
	u, err := url.Parse(c.Whisper.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidWhisperURL, c.Whisper.URL)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	return nil
}

// DefaultModes parses processing.default_modes.
func (c *Config) DefaultModes() notes.ModeSet {
	modes, err := notes.ParseModes(c.Processing.DefaultModes)
	if err != nil {
		return notes.ModeSet{}
	}
	return modes
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watcher.PollIntervalSeconds * float64(time.Second))
}

func (c *Config) StableWindow() time.Duration {
	return time.Duration(c.Watcher.StableSeconds) * time.Second
}

func (c *Config) MaxBytes() int64 {
	return int64(c.Watcher.MaxFilesizeMB) * 1024 * 1024
}

func (c *Config) MatchTolerance() time.Duration {
	return time.Duration(c.Calendar.MatchToleranceMinutes) * time.Minute
}

func (c *Config) WhisperTimeout() time.Duration {
	return time.Duration(c.Whisper.TimeoutSeconds) * time.Second
}

// NotesPrompts returns configured prompts keyed by mode.
func (c *Config) NotesPrompts() map[notes.Mode]string {
	return map[notes.Mode]string{
		notes.Executive: c.Notes.Prompts.Q,
		notes.Holistic:  c.Notes.Prompts.W,
		notes.Tasks:     c.Notes.Prompts.E,
	}
}

// NotesOutputDirs returns the per-mode output folders.
func (c *Config) NotesOutputDirs() map[notes.Mode]string {
	return map[notes.Mode]string{
		notes.Executive: c.Notes.QOutputDir,
		notes.Holistic:  c.Notes.WOutputDir,
		notes.Tasks:     c.Notes.EOutputDir,
	}
}

// Encode writes c as TOML, or YAML when format is "yaml". API keys are
// masked.
func (c *Config) Encode(w io.Writer, format string) error {
	masked := *c
	masked.Notes.APIKeys = make([]string, len(c.Notes.APIKeys))
	for i, k := range c.Notes.APIKeys {
		masked.Notes.APIKeys[i] = maskKey(k)
	}

	if format == "yaml" || format == "yml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(&masked)
	}
	return toml.NewEncoder(w).Encode(&masked)
}

// DefaultTOML renders the default configuration written by init.
func DefaultTOML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# meetscribe configuration. Values in config.local.toml override these.\n\n")
	if err := toml.NewEncoder(&buf).Encode(Default()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) expandPaths() {
	c.Paths.InputDir = processor.ExpandHome(c.Paths.InputDir)
	c.Paths.OutputDir = processor.ExpandHome(c.Paths.OutputDir)
	c.Paths.ArchiveDir = processor.ExpandHome(c.Paths.ArchiveDir)
	c.Logging.Dir = processor.ExpandHome(c.Logging.Dir)
	c.Calendar.CredentialsFile = processor.ExpandHome(c.Calendar.CredentialsFile)
	c.Calendar.TokenFile = processor.ExpandHome(c.Calendar.TokenFile)
	c.Notes.QOutputDir = processor.ExpandHome(c.Notes.QOutputDir)
	c.Notes.WOutputDir = processor.ExpandHome(c.Notes.WOutputDir)
	c.Notes.EOutputDir = processor.ExpandHome(c.Notes.EOutputDir)
}

func maskKey(k string) string {
	if len(k) <= 8 {
		return "***"
	}
	return k[:4] + "..." + k[len(k)-4:]
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
