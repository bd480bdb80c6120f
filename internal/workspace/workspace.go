// Package workspace locates and creates the meetscribe state directory.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no workspace can be located.
var ErrNotFound = errors.New("no meetscribe workspace found")

// MarkerDir is the directory that marks a workspace root.
const MarkerDir = ".meetscribe"

// ConfigFile is the configuration file within the marker directory.
const ConfigFile = "config.toml"

// EnvHome overrides workspace detection.
const EnvHome = "MEETSCRIBE_HOME"

// Workspace is a root directory holding a MarkerDir.
type Workspace struct {
	Root string
}

// Dir is the marker directory holding config, logs and the pidfile.
func (w *Workspace) Dir() string {
	return filepath.Join(w.Root, MarkerDir)
}

// ConfigPath is the main config file.
func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.Dir(), ConfigFile)
}

// LogDir is where daily logs are written unless configured otherwise.
func (w *Workspace) LogDir() string {
	return filepath.Join(w.Dir(), "logs")
}

// IsWorkspace reports whether root has a marker directory with a config file.
func IsWorkspace(root string) bool {
	info, err := os.Stat(filepath.Join(root, MarkerDir, ConfigFile))
	return err == nil && info.Mode().IsRegular()
}

// Find locates the active workspace. MEETSCRIBE_HOME wins when set; next
// the current directory and its parents are searched; last the home
// directory is tried.
func Find() (*Workspace, error) {
	if env := os.Getenv(EnvHome); env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return nil, ErrNotFound
		}
		if !IsWorkspace(abs) {
			return nil, fmt.Errorf("%w: %s=%s", ErrNotFound, EnvHome, env)
		}
		return &Workspace{Root: abs}, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if ws, err := FindFrom(cwd); err == nil {
		return ws, nil
	}

	home, err := os.UserHomeDir()
	if err == nil && IsWorkspace(home) {
		return &Workspace{Root: home}, nil
	}
	return nil, ErrNotFound
}

// FindFrom walks up from start looking for a workspace root.
func FindFrom(start string) (*Workspace, error) {
	current, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}

	for {
		if IsWorkspace(current) {
			return &Workspace{Root: current}, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil, ErrNotFound
		}
		current = parent
	}
}

// Default is the workspace rooted at MEETSCRIBE_HOME, or the home directory.
func Default() (*Workspace, error) {
	if env := os.Getenv(EnvHome); env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return nil, err
		}
		return &Workspace{Root: abs}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Workspace{Root: home}, nil
}
