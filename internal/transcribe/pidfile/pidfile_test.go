package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

// deadPID is above the default Linux pid_max.
const deadPID = 4194304 + 1

func TestWriteAndRead(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "nested"))

	if err := f.Write(12345); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	pid, err := f.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if pid != 12345 {
		t.Errorf("expected 12345, got %d", pid)
	}
	if filepath.Base(f.Path) != FileName {
		t.Errorf("unexpected path %s", f.Path)
	}
}

func TestRead_Errors(t *testing.T) {
	f := New(t.TempDir())
	if _, err := f.Read(); !errors.Is(err, ErrNoPIDFile) {
		t.Errorf("expected ErrNoPIDFile, got %v", err)
	}

	for _, content := range []string{"abc", "-5", "0", ""} {
		os.WriteFile(f.Path, []byte(content), 0644)
		if _, err := f.Read(); !errors.Is(err, ErrInvalidPID) {
			t.Errorf("content %q: expected ErrInvalidPID, got %v", content, err)
		}
	}
}

func TestRemove(t *testing.T) {
	f := New(t.TempDir())
	if err := f.Remove(); err != nil {
		t.Errorf("removing a missing file should succeed: %v", err)
	}
	f.Write(1)
	if err := f.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(f.Path); !os.IsNotExist(err) {
		t.Error("expected file removed")
	}
}

func TestIsRunning(t *testing.T) {
	f := New(t.TempDir())

	running, pid, err := f.IsRunning()
	if err != nil || running || pid != 0 {
		t.Errorf("no file: got (%v, %d, %v)", running, pid, err)
	}

	f.Write(os.Getpid())
	running, pid, err = f.IsRunning()
	if err != nil || !running || pid != os.Getpid() {
		t.Errorf("own pid: got (%v, %d, %v)", running, pid, err)
	}

	f.Write(deadPID)
	running, pid, err = f.IsRunning()
	if err != nil || running || pid != deadPID {
		t.Errorf("stale pid: got (%v, %d, %v)", running, pid, err)
	}
}

func TestAcquire(t *testing.T) {
	f := New(t.TempDir())

	if err := f.Acquire(); err != nil {
		t.Fatalf("Acquire on empty dir failed: %v", err)
	}
	if pid, _ := f.Read(); pid != os.Getpid() {
		t.Errorf("expected own pid written, got %d", pid)
	}

	f.Write(deadPID)
	if err := f.Acquire(); err != nil {
		t.Errorf("stale pidfile should be replaced: %v", err)
	}

	// pid 1 is always alive.
	f.Write(1)
	if err := f.Acquire(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestSignal_NotRunning(t *testing.T) {
	f := New(t.TempDir())

	if _, err := f.Signal(unix.SIGTERM); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning without a file, got %v", err)
	}

	f.Write(deadPID)
	if _, err := f.Signal(unix.SIGTERM); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning for a stale pid, got %v", err)
	}
	if _, err := os.Stat(f.Path); !os.IsNotExist(err) {
		t.Error("expected stale pidfile cleaned up")
	}
}
