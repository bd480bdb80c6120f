package cmd

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// testWorkspace is a config file with its input and output folders.
type testWorkspace struct {
	dir        string
	configPath string
	inputDir   string
	outputDir  string
}

// newTestWorkspace writes a config pointing at whisperURL. extra is
// appended to the file verbatim.
func newTestWorkspace(t *testing.T, whisperURL, extra string) *testWorkspace {
	t.Helper()
	clearKeyEnv(t)

	dir := t.TempDir()
	ws := &testWorkspace{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		inputDir:   filepath.Join(dir, "in"),
		outputDir:  filepath.Join(dir, "out"),
	}
	if err := os.MkdirAll(ws.inputDir, 0755); err != nil {
		t.Fatal(err)
	}

	config := fmt.Sprintf(`[paths]
input_dir = %q
output_dir = %q

[whisper]
url = %q
retries = 1
`, ws.inputDir, ws.outputDir, whisperURL) + extra

	if err := os.WriteFile(ws.configPath, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}
	return ws
}

func (ws *testWorkspace) addRecordings(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(ws.inputDir, name), []byte("audio"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// clearKeyEnv keeps notes disabled whatever the developer's shell holds.
func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GEMINI_API_KEY", "GEMINI_API_KEYS", "MEETSCRIBE_INPUT_DIR", "MEETSCRIBE_OUTPUT_DIR", "MEETSCRIBE_WHISPER_URL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// whisperServer answers /asr with a fixed transcript and counts uploads.
type whisperServer struct {
	*httptest.Server
	mu      sync.Mutex
	uploads []string
}

func newWhisperServer(t *testing.T) *whisperServer {
	t.Helper()
	ws := &whisperServer{}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio_file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		io.Copy(io.Discard, file)
		ws.mu.Lock()
		ws.uploads = append(ws.uploads, header.Filename)
		ws.mu.Unlock()
		io.WriteString(w, "transcribed text")
	}))
	t.Cleanup(ws.Close)
	return ws
}

func (ws *whisperServer) count() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.uploads)
}

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
