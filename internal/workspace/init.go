package workspace

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrExists is returned by Init when a config file is already present.
var ErrExists = errors.New("workspace already exists")

// gitignore keeps secrets and runtime state out of version control when
// the workspace lives inside a repository.
const gitignore = "config.local.toml\n.env\nlogs/\nwatch.pid\n"

// InitResult describes what Init changed.
type InitResult struct {
	Workspace      *Workspace
	ConfigWritten  bool
	AlreadyExisted bool
}

// Init creates the marker directory under root with config as its
// config file and an empty logs folder. An existing config is kept
// unless force is set, in which case it is replaced.
func Init(root string, config []byte, force bool) (*InitResult, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ws := &Workspace{Root: abs}
	result := &InitResult{Workspace: ws, AlreadyExisted: IsWorkspace(abs)}

	if result.AlreadyExisted && !force {
		return result, ErrExists
	}

	if err := os.MkdirAll(ws.LogDir(), 0755); err != nil {
		return nil, err
	}

	if err := os.WriteFile(ws.ConfigPath(), config, 0644); err != nil {
		return nil, err
	}
	result.ConfigWritten = true

	ignorePath := filepath.Join(ws.Dir(), ".gitignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte(gitignore), 0644); err != nil {
			return nil, err
		}
	}
	return result, nil
}
