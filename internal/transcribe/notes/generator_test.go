package notes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeCompleter echoes a marker from the prompt, or fails for prompts
// containing any of failOn.
type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	failOn  []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	for _, s := range f.failOn {
		if strings.Contains(prompt, s) {
			return "", errors.New("model unavailable")
		}
	}
	return "  notes for prompt of length " + string(rune('0'+len(prompt)%10)) + "  ", nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func TestGenerateForModes_WritesEachMode(t *testing.T) {
	dir := t.TempDir()
	fc := &fakeCompleter{}
	g := NewGenerator(fc, Config{}, nil)

	got := g.GenerateForModes(context.Background(), "we agreed to ship", NewModeSet(Tasks, Executive), "sync", dir, false)

	if len(got) != 2 {
		t.Fatalf("expected 2 artifacts, got %v", got)
	}
	for _, name := range []string{"sync.Q.md", "sync.E.md"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
		if !strings.HasPrefix(string(data), "notes for prompt") || !strings.HasSuffix(string(data), "\n") {
			t.Errorf("unexpected content in %s: %q", name, data)
		}
	}

	// Sorted order: E before Q.
	if !strings.Contains(fc.prompts[0], DefaultPrompts[Tasks]) || !strings.Contains(fc.prompts[1], DefaultPrompts[Executive]) {
		t.Errorf("expected modes in sorted order")
	}
	if !strings.Contains(fc.prompts[0], "---\nwe agreed to ship\n---") {
		t.Errorf("expected content in prompt, got %q", fc.prompts[0])
	}
}

func TestGenerateForModes_SkipsExistingUnlessReprocess(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "sync.Q.md")
	os.WriteFile(existing, []byte("keep me"), 0644)

	fc := &fakeCompleter{}
	g := NewGenerator(fc, Config{}, nil)

	got := g.GenerateForModes(context.Background(), "content", NewModeSet(Executive), "sync", dir, false)
	if got[Executive] != existing {
		t.Errorf("expected existing path reported, got %v", got)
	}
	if fc.calls() != 0 {
		t.Errorf("expected no model call, got %d", fc.calls())
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "keep me" {
		t.Errorf("expected artifact untouched")
	}

	g.GenerateForModes(context.Background(), "content", NewModeSet(Executive), "sync", dir, true)
	if fc.calls() != 1 {
		t.Errorf("expected reprocess to call the model once, got %d", fc.calls())
	}
	data, _ = os.ReadFile(existing)
	if string(data) == "keep me" {
		t.Errorf("expected artifact regenerated")
	}
}

func TestGenerateForModes_FailureIsolated(t *testing.T) {
	dir := t.TempDir()
	fc := &fakeCompleter{failOn: []string{"holistic"}}
	g := NewGenerator(fc, Config{}, nil)

	got := g.GenerateForModes(context.Background(), "content", NewModeSet(Executive, Holistic, Tasks), "sync", dir, false)

	if _, ok := got[Holistic]; ok {
		t.Errorf("expected W missing from results")
	}
	if len(got) != 2 {
		t.Errorf("expected Q and E to succeed, got %v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "sync.W.md")); !os.IsNotExist(err) {
		t.Errorf("expected no W artifact")
	}
}

func TestGenerateForModes_UnknownMode(t *testing.T) {
	dir := t.TempDir()
	fc := &fakeCompleter{}
	g := NewGenerator(fc, Config{}, nil)

	got := g.GenerateForModes(context.Background(), "content", NewModeSet("X", Executive), "sync", dir, false)
	if len(got) != 1 || got[Executive] == "" {
		t.Errorf("expected only Q, got %v", got)
	}

	if _, err := g.Prompt("X"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestGenerator_CustomPromptAndExt(t *testing.T) {
	dir := t.TempDir()
	fc := &fakeCompleter{}
	g := NewGenerator(fc, Config{
		Prompts: map[Mode]string{Executive: "Summarise for the board."},
		Ext:     ".txt",
	}, nil)

	g.GenerateForModes(context.Background(), "content", NewModeSet(Executive), "sync", dir, false)

	if !strings.Contains(fc.prompts[0], "Summarise for the board.") {
		t.Errorf("expected custom prompt, got %q", fc.prompts[0])
	}
	if _, err := os.Stat(filepath.Join(dir, "sync.Q.txt")); err != nil {
		t.Errorf("expected txt artifact: %v", err)
	}
}

func TestGenerator_OutputDirs(t *testing.T) {
	base := t.TempDir()
	abs := t.TempDir()
	g := NewGenerator(&fakeCompleter{}, Config{
		OutputDirs: map[Mode]string{
			Executive: "summaries",
			Tasks:     abs,
		},
	}, nil)

	tests := []struct {
		mode Mode
		want string
	}{
		{Executive, filepath.Join(base, "summaries", "sync.Q.md")},
		{Holistic, filepath.Join(base, "sync.W.md")},
		{Tasks, filepath.Join(abs, "sync.E.md")},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := g.ArtifactPath(tt.mode, "sync", base); got != tt.want {
				t.Errorf("ArtifactPath = %s, want %s", got, tt.want)
			}
		})
	}

	g.GenerateForModes(context.Background(), "content", NewModeSet(Executive), "sync", base, false)
	if _, err := os.Stat(filepath.Join(base, "summaries", "sync.Q.md")); err != nil {
		t.Errorf("expected artifact in relative mode dir: %v", err)
	}
}

func TestGenerator_DocxExport(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(&fakeCompleter{}, Config{Docx: true}, nil)

	g.GenerateForModes(context.Background(), "content", NewModeSet(Tasks), "sync", dir, false)

	if _, err := os.Stat(filepath.Join(dir, "sync.E.docx")); err != nil {
		t.Errorf("expected docx copy: %v", err)
	}
}

func TestGenerateForModes_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fc := &fakeCompleter{}
	g := NewGenerator(fc, Config{}, nil)
	got := g.GenerateForModes(ctx, "content", NewModeSet(Executive, Tasks), "sync", t.TempDir(), false)

	if len(got) != 0 || fc.calls() != 0 {
		t.Errorf("expected nothing generated after cancel, got %v", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("List tasks.", "transcript text")
	want := "You are an expert meeting assistant.\n\nList tasks.\n\nUse the meeting content below:\n---\ntranscript text\n---\nReturn only the notes."
	if got != want {
		t.Errorf("BuildPrompt = %q, want %q", got, want)
	}
}
