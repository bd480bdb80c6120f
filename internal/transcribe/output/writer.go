// Package output writes transcript and note artifacts to disk.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExt is the artifact extension used when none is configured.
const DefaultExt = "md"

// maxDisambiguator bounds the " (N)" search in FreePath.
const maxDisambiguator = 1000

// ErrNoFreePath is returned when every disambiguated name is taken.
var ErrNoFreePath = errors.New("no free output path")

// NormalizeExt strips a leading dot and falls back to DefaultExt.
func NormalizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return DefaultExt
	}
	return ext
}

// ArtifactPath returns dir/stem.ext, the primary transcript path.
func ArtifactPath(dir, stem, ext string) string {
	return filepath.Join(dir, stem+"."+NormalizeExt(ext))
}

// ModeArtifactPath returns dir/stem.MODE.ext.
func ModeArtifactPath(dir, stem, mode, ext string) string {
	return filepath.Join(dir, stem+"."+strings.ToUpper(mode)+"."+NormalizeExt(ext))
}

// Exists reports whether a regular file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadText reads an artifact as a string.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write stores content at path through a temp file in the same directory
// followed by a rename, so readers see either the old file or the full new one.
func Write(ctx context.Context, path, content string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.WriteString(content); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Prepend puts block in front of content unless content already starts
// with the block's header line. An empty block returns content unchanged.
func Prepend(block, content string) string {
	block = strings.TrimRight(block, "\n")
	if block == "" {
		return content
	}
	header, _, _ := strings.Cut(block, "\n")
	if strings.HasPrefix(strings.TrimLeft(content, "\n"), header) {
		return content
	}
	return block + "\n\n" + content
}

// FreePath returns dir/stem.ext, or the first dir/stem (N).ext that is
// free. A taken path for which reuse returns true is handed back as is.
func FreePath(dir, stem, ext string, reuse func(path string) bool) (string, error) {
	candidate := ArtifactPath(dir, stem, ext)
	if !Exists(candidate) || (reuse != nil && reuse(candidate)) {
		return candidate, nil
	}

	for i := 1; i <= maxDisambiguator; i++ {
		candidate = ArtifactPath(dir, fmt.Sprintf("%s (%d)", stem, i), ext)
		if !Exists(candidate) || (reuse != nil && reuse(candidate)) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w for %s", ErrNoFreePath, stem)
}

// StemOf returns the stem of an artifact path produced by ArtifactPath.
func StemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
