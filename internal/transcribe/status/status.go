// Package status summarises watcher activity from the pidfile and today's
// JSON log.
package status

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/pidfile"
)

// Log messages counted by the parser.
const (
	msgTranscriptSaved = "transcript saved"
	msgNotesSaved      = "notes saved"
	msgWatcherStarted  = "directory watcher started"
)

// Stats are counts from one log file.
type Stats struct {
	FilesProcessed int
	NotesWritten   int
	Errors         int
	WatcherStarted time.Time
	LastProcessed  *ProcessedFile
}

// ProcessedFile is the most recent saved transcript.
type ProcessedFile struct {
	Timestamp time.Time
	File      string
	Output    string
}

// Report combines process state with today's stats.
type Report struct {
	Running bool
	PID     int
	LogPath string
	Stats   *Stats
}

type logLine struct {
	Level   string    `json:"level"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	File    string    `json:"file"`
	Output  string    `json:"output"`
}

// TodayLogPath is the log file the watcher is writing to today.
func TodayLogPath(logDir, prefix string) string {
	return filepath.Join(logDir, logging.FileName(prefix, time.Now().UTC().Format("2006-01-02")))
}

// Collect builds a Report from the pidfile and today's log.
func Collect(pf *pidfile.File, logDir, prefix string) (*Report, error) {
	running, pid, err := pf.IsRunning()
	if err != nil {
		return nil, err
	}

	logPath := TodayLogPath(logDir, prefix)
	stats, err := ParseLogFile(logPath)
	if err != nil {
		return nil, err
	}

	return &Report{Running: running, PID: pid, LogPath: logPath, Stats: stats}, nil
}

// ParseLogFile reads JSON log lines from path. A missing file gives empty
// stats; lines that are not JSON are ignored.
func ParseLogFile(path string) (*Stats, error) {
	stats := &Stats{}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line logLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}

		switch {
		case line.Level == "error":
			stats.Errors++
		case line.Message == msgTranscriptSaved:
			stats.FilesProcessed++
			stats.LastProcessed = &ProcessedFile{
				Timestamp: line.Time,
				File:      line.File,
				Output:    line.Output,
			}
		case line.Message == msgNotesSaved:
			stats.NotesWritten++
		case line.Message == msgWatcherStarted:
			stats.WatcherStarted = line.Time
		}
	}

	return stats, scanner.Err()
}

// FormatTimestamp formats a timestamp for display.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
