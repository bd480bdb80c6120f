package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveInputDir prefers an explicit override over the configured folder.
func ResolveInputDir(override, configured string) (string, error) {
	dir := configured
	if strings.TrimSpace(override) != "" {
		dir = override
	}
	if dir == "" {
		return "", fmt.Errorf("no input directory configured")
	}
	return filepath.Abs(ExpandHome(dir))
}

// EnsureOutputDir creates the output folder if needed and returns its absolute path.
func EnsureOutputDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("no output directory configured")
	}
	abs, err := filepath.Abs(ExpandHome(dir))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return abs, nil
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
