package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/audio"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/calendar"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/output"
)

// mockTranscriber returns canned text, or err for paths in fail.
type mockTranscriber struct {
	mu     sync.Mutex
	calls  map[string]int
	fail   map[string]error
	before func(path string)
}

func newMockTranscriber() *mockTranscriber {
	return &mockTranscriber{calls: map[string]int{}, fail: map[string]error{}}
}

func (m *mockTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	if m.before != nil {
		m.before(path)
	}
	m.mu.Lock()
	m.calls[path]++
	err := m.fail[path]
	m.mu.Unlock()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return "# Transcript\n\nhello from " + filepath.Base(path), nil
}

func (m *mockTranscriber) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// mockNotes writes {stem}.{MODE}.md next to the transcript.
type mockNotes struct {
	mu        sync.Mutex
	fail      notes.ModeSet
	generated []string
}

func (m *mockNotes) ArtifactPath(mode notes.Mode, stem, baseDir string) string {
	return output.ModeArtifactPath(baseDir, stem, string(mode), "md")
}

func (m *mockNotes) GenerateForModes(ctx context.Context, content string, modes notes.ModeSet, stem, baseDir string, reprocess bool) map[notes.Mode]string {
	out := map[notes.Mode]string{}
	for _, mode := range modes.Sorted() {
		path := m.ArtifactPath(mode, stem, baseDir)
		if !reprocess && output.Exists(path) {
			out[mode] = path
			continue
		}
		if m.fail.Has(mode) {
			continue
		}
		if err := output.Write(ctx, path, fmt.Sprintf("%s notes\n\n%s", mode, content)); err != nil {
			continue
		}
		m.mu.Lock()
		m.generated = append(m.generated, filepath.Base(path))
		m.mu.Unlock()
		out[mode] = path
	}
	return out
}

func (m *mockNotes) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.generated...)
}

// mockLinker returns the same match for every file.
type mockLinker struct {
	match calendar.Match
	calls int
}

func (m *mockLinker) MatchFile(ctx context.Context, path string) calendar.Match {
	m.calls++
	return m.match
}

func (m *mockLinker) TargetStem(ev calendar.Event) string {
	return calendar.TargetStem(ev)
}

func (m *mockLinker) FormatMetadata(ev calendar.Event, source string) string {
	return calendar.FormatMetadata(ev, source)
}

func sampleEvent() calendar.Event {
	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local)
	return calendar.Event{
		Title:     "Weekly Sync",
		Start:     start,
		End:       start.Add(30 * time.Minute),
		Attendees: []calendar.Attendee{{Name: "Ana"}, {Name: "Bo"}},
	}
}

func writeAudio(t *testing.T, dir, name string, age time.Duration) audio.File {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("RIFF...."), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	f, err := audio.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
	return string(data)
}

func setupDirs(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "in")
	out := filepath.Join(root, "out")
	if err := os.MkdirAll(in, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatal(err)
	}
	return in, out
}
