package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents a log severity level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a config string (debug, info, warn, error) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Logger handles structured logging
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	Debug(msg string, fields ...Field)
}

// Config configures the logger
type Config struct {
	// LogDir is the directory where log files are stored (default: ~/.meetscribe/logs)
	LogDir string
	// Prefix is the log file prefix (e.g., "meetscribe" produces meetscribe-YYYY-MM-DD.log)
	Prefix string
	// RetentionDays is the number of days to retain old log files (default: 7)
	RetentionDays int
	// Component is attached to every entry as the "component" field
	Component string
	// MinLevel is the minimum log level to write (default: LevelInfo)
	MinLevel Level
	// Console receives human-readable output in addition to the file. Nil disables it.
	Console io.Writer
	// minLevelSet tracks whether MinLevel was explicitly configured
	minLevelSet bool
}

// WithMinLevel returns a copy of Config with the specified minimum log level
func (c Config) WithMinLevel(level Level) Config {
	c.MinLevel = level
	c.minLevelSet = true
	return c
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		LogDir:        filepath.Join(homeDir, ".meetscribe", "logs"),
		Prefix:        "meetscribe",
		RetentionDays: 7,
		MinLevel:      LevelInfo,
		Console:       os.Stderr,
	}
}

// FileLogger writes JSON lines to a daily-rotated file and, optionally,
// console-formatted lines to a terminal.
type FileLogger struct {
	config Config
	out    *dailyFile
	zl     zerolog.Logger
}

// New creates a new FileLogger with the given configuration
func New(config Config) (*FileLogger, error) {
	if config.LogDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		config.LogDir = filepath.Join(homeDir, ".meetscribe", "logs")
	}
	if config.Prefix == "" {
		config.Prefix = "meetscribe"
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 7
	}
	if !config.minLevelSet {
		config.MinLevel = LevelInfo
	}

	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	out := &dailyFile{dir: config.LogDir, prefix: config.Prefix}
	if err := out.rotateIfNeeded(); err != nil {
		return nil, err
	}

	writers := []io.Writer{out}
	if config.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        config.Console,
			TimeFormat: "15:04:05",
			NoColor:    config.Console != os.Stderr && config.Console != os.Stdout,
		})
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(config.MinLevel.zerolog()).
		With().Timestamp().Logger()
	if config.Component != "" {
		zl = zl.With().Str("component", config.Component).Logger()
	}

	logger := &FileLogger{config: config, out: out, zl: zl}

	if err := out.cleanOldLogs(config.RetentionDays); err != nil {
		// Cleanup errors don't fail initialization
		logger.Error("failed to clean old logs", err)
	}

	return logger, nil
}

// Info logs an informational message
func (l *FileLogger) Info(msg string, fields ...Field) {
	emit(l.zl.Info(), msg, fields)
}

// Warn logs a warning
func (l *FileLogger) Warn(msg string, fields ...Field) {
	emit(l.zl.Warn(), msg, fields)
}

// Error logs an error message
func (l *FileLogger) Error(msg string, err error, fields ...Field) {
	emit(l.zl.Error().Err(err), msg, fields)
}

// Debug logs a debug message
func (l *FileLogger) Debug(msg string, fields ...Field) {
	emit(l.zl.Debug(), msg, fields)
}

// Close closes the logger and its underlying file
func (l *FileLogger) Close() error {
	return l.out.Close()
}

// WithComponent returns a logger sharing the same outputs that tags
// entries with the given component name.
func (l *FileLogger) WithComponent(component string) *FileLogger {
	newConfig := l.config
	newConfig.Component = component
	return &FileLogger{
		config: newConfig,
		out:    l.out,
		zl:     l.zl.With().Str("component", component).Logger(),
	}
}

// LogPath returns the path to the current log file
func (l *FileLogger) LogPath() string {
	return l.out.path()
}

func emit(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ev = ev.Str(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case int64:
			ev = ev.Int64(f.Key, v)
		case float64:
			ev = ev.Float64(f.Key, v)
		case bool:
			ev = ev.Bool(f.Key, v)
		case time.Duration:
			ev = ev.Str(f.Key, v.String())
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}

// dailyFile is an io.Writer that reopens prefix-YYYY-MM-DD.log when the
// UTC date changes.
type dailyFile struct {
	dir    string
	prefix string

	mu          sync.Mutex
	file        *os.File
	currentDate string
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotateLocked(); err != nil {
		fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		return 0, err
	}
	return d.file.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

func (d *dailyFile) rotateIfNeeded() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotateLocked()
}

func (d *dailyFile) rotateLocked() error {
	today := time.Now().UTC().Format("2006-01-02")

	if d.currentDate == today && d.file != nil {
		return nil
	}

	if d.file != nil {
		d.file.Close()
		d.file = nil
	}

	name := filepath.Join(d.dir, FileName(d.prefix, today))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	d.file = file
	d.currentDate = today
	return nil
}

func (d *dailyFile) path() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		return d.file.Name()
	}
	return filepath.Join(d.dir, FileName(d.prefix, time.Now().UTC().Format("2006-01-02")))
}

func (d *dailyFile) cleanOldLogs(retentionDays int) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	prefix := d.prefix + "-"
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var toDelete []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}

		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".log")
		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		if logDate.Before(cutoff) {
			toDelete = append(toDelete, filepath.Join(d.dir, name))
		}
	}

	sort.Strings(toDelete)

	for _, path := range toDelete {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove old log file %s: %w", path, err)
		}
	}

	return nil
}

// FileName returns the log file name for a prefix and a YYYY-MM-DD date.
func FileName(prefix, date string) string {
	return fmt.Sprintf("%s-%s.log", prefix, date)
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...Field)         {}
func (nopLogger) Warn(string, ...Field)         {}
func (nopLogger) Error(string, error, ...Field) {}
func (nopLogger) Debug(string, ...Field)        {}
