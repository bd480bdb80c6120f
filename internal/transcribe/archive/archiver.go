// Package archive moves transcribed recordings out of the input directory.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrSourceNotFound is returned when the source file does not exist.
var ErrSourceNotFound = errors.New("source file not found")

// FileArchiver moves recordings into Dir/YYYY/MM/DD.
type FileArchiver struct {
	Dir string
	now func() time.Time
}

// NewFileArchiver creates an archiver rooted at dir.
func NewFileArchiver(dir string) *FileArchiver {
	return &FileArchiver{Dir: dir, now: time.Now}
}

// Archive moves sourcePath into today's folder and returns the new path.
// A name collision gets a time suffix. Across devices the file is copied
// and the original removed only after the copy is synced.
func (a *FileArchiver) Archive(ctx context.Context, sourcePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}
		return "", err
	}

	now := a.now()
	dateDir := filepath.Join(a.Dir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	base := filepath.Base(sourcePath)
	dest := filepath.Join(dateDir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		dest = filepath.Join(dateDir, fmt.Sprintf("%s-%s%s", strings.TrimSuffix(base, ext), now.Format("150405"), ext))
	}

	if err := os.Rename(sourcePath, dest); err == nil {
		return dest, nil
	}

	if err := copyFile(sourcePath, dest, srcInfo.Mode()); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("archive file: %w", err)
	}
	if err := os.Remove(sourcePath); err != nil {
		return dest, fmt.Errorf("remove source file: %w", err)
	}
	return dest, nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	return dstFile.Sync()
}
