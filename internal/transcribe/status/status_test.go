package status

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/pidfile"
)

func TestParseLogFile_Missing(t *testing.T) {
	stats, err := ParseLogFile("/nonexistent/path/meetscribe.log")
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if stats.FilesProcessed != 0 || stats.Errors != 0 || stats.LastProcessed != nil {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

func TestParseLogFile_Counts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetscribe-2026-03-04.log")
	lines := []string{
		`{"level":"info","time":"2026-03-04T09:00:00Z","message":"directory watcher started","dir":"/in"}`,
		`{"level":"info","time":"2026-03-04T09:10:00Z","message":"transcript saved","file":"a.wav","output":"/out/a.md"}`,
		`{"level":"info","time":"2026-03-04T09:11:00Z","message":"notes saved","mode":"Q","output":"/out/a.Q.md"}`,
		`{"level":"error","time":"2026-03-04T09:20:00Z","message":"transcription failed","error":"boom","file":"b.wav"}`,
		`{"level":"info","time":"2026-03-04T09:21:00Z","message":"transcript saved","file":"b.wav","output":"/out/b.md"}`,
		`not json at all`,
	}
	os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)

	stats, err := ParseLogFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesProcessed != 2 || stats.NotesWritten != 1 || stats.Errors != 1 {
		t.Errorf("unexpected counts %+v", stats)
	}
	if stats.LastProcessed == nil || stats.LastProcessed.File != "b.wav" || stats.LastProcessed.Output != "/out/b.md" {
		t.Fatalf("unexpected last processed %+v", stats.LastProcessed)
	}
	want := time.Date(2026, 3, 4, 9, 21, 0, 0, time.UTC)
	if !stats.LastProcessed.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", stats.LastProcessed.Timestamp, want)
	}
	if !stats.WatcherStarted.Equal(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected watcher start %v", stats.WatcherStarted)
	}
}

func TestParseLogFile_FromLogger(t *testing.T) {
	dir := t.TempDir()
	l, err := logging.New(logging.Config{LogDir: dir, Prefix: "meetscribe"})
	if err != nil {
		t.Fatal(err)
	}
	l.Info(msgTranscriptSaved, logging.String("file", "c.m4a"), logging.String("output", "/out/c.md"))
	l.Error("failed to write transcript", errors.New("disk full"))
	l.Close()

	stats, err := ParseLogFile(TodayLogPath(dir, "meetscribe"))
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesProcessed != 1 || stats.Errors != 1 {
		t.Errorf("unexpected counts from real logger output %+v", stats)
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	pf := pidfile.New(dir)
	pf.Write(os.Getpid())

	report, err := Collect(pf, dir, "meetscribe")
	if err != nil {
		t.Fatal(err)
	}
	if !report.Running || report.PID != os.Getpid() {
		t.Errorf("expected running with own pid, got %+v", report)
	}
	if report.Stats == nil || report.Stats.FilesProcessed != 0 {
		t.Errorf("expected empty stats, got %+v", report.Stats)
	}
}
