// Package audio discovers recordings on disk.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotADirectory is returned when a discovery root is not a directory.
var ErrNotADirectory = errors.New("not a directory")

// SupportedExtensions lists the recognised audio extensions (lowercase, with dot).
var SupportedExtensions = []string{".wav", ".mp3", ".m4a", ".aac"}

// File is a discovered recording. Path is absolute and identifies the file.
type File struct {
	Path    string
	Name    string
	ModTime time.Time
	Size    int64
	Ext     string
}

// Stem returns the file name without its extension.
func (f File) Stem() string {
	return strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
}

// IsSupported reports whether name carries a supported audio extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Stat builds a File for a single path.
func Stat(path string) (File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s: is a directory", abs)
	}
	return fromInfo(abs, info), nil
}

func fromInfo(abs string, info os.FileInfo) File {
	return File{
		Path:    abs,
		Name:    info.Name(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Ext:     strings.ToLower(filepath.Ext(info.Name())),
	}
}

// Discover lists supported audio files directly inside dir, newest first.
func Discover(dir string) ([]File, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotADirectory, abs)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, abs)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", abs, err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name()) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, fromInfo(filepath.Join(abs, entry.Name()), fi))
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}
