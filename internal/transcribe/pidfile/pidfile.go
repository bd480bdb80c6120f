// Package pidfile keeps a single watcher per workspace.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	ErrNoPIDFile      = errors.New("no PID file found")
	ErrInvalidPID     = errors.New("invalid PID in file")
	ErrAlreadyRunning = errors.New("watcher already running")
	ErrNotRunning     = errors.New("watcher not running")
)

// FileName is the pidfile name inside the workspace directory.
const FileName = "watch.pid"

// File is a pidfile at Path.
type File struct {
	Path string
}

// New returns the pidfile inside dir.
func New(dir string) *File {
	return &File{Path: filepath.Join(dir, FileName)}
}

// Write stores pid, creating parent directories.
func (f *File) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Read returns the stored pid.
func (f *File) Read() (int, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoPIDFile
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, ErrInvalidPID
	}
	return pid, nil
}

// Remove deletes the pidfile. A missing file is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the stored pid is alive. A missing pidfile is
// (false, 0, nil); a stale one is (false, pid, nil).
func (f *File) IsRunning() (bool, int, error) {
	pid, err := f.Read()
	if err != nil {
		if errors.Is(err, ErrNoPIDFile) {
			return false, 0, nil
		}
		return false, 0, err
	}

	switch err := unix.Kill(pid, 0); {
	case err == nil, errors.Is(err, unix.EPERM):
		return true, pid, nil
	case errors.Is(err, unix.ESRCH):
		return false, pid, nil
	default:
		return false, pid, fmt.Errorf("check process: %w", err)
	}
}

// Acquire writes the current pid unless another live process holds the
// file. A stale file is replaced.
func (f *File) Acquire() error {
	running, pid, err := f.IsRunning()
	if err != nil && !errors.Is(err, ErrInvalidPID) {
		return err
	}
	if running && pid != os.Getpid() {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}
	return f.Write(os.Getpid())
}

// Signal sends sig to the recorded process.
func (f *File) Signal(sig unix.Signal) (int, error) {
	running, pid, err := f.IsRunning()
	if err != nil {
		return 0, err
	}
	if !running {
		if pid != 0 {
			f.Remove()
		}
		return pid, ErrNotRunning
	}
	if err := unix.Kill(pid, sig); err != nil {
		return pid, fmt.Errorf("signal %d: %w", pid, err)
	}
	return pid, nil
}
