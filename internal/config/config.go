// Package config resolves the database location from the .gpv pointer file.
// The pointer is a single line naming the SQLite database path; everything
// else about configuration is an error, never a default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PointerFile is the per-directory file naming the database path.
const PointerFile = ".gpv"

var (
	ErrPointerMissing = errors.New(".gpv file not found")
	ErrPointerEmpty   = errors.New(".gpv file is empty")
	ErrNotAFile       = errors.New("database path exists but is not a regular file")
)

// DBPath reads and validates the database path from the .gpv pointer in dir.
// Relative paths resolve against dir. The database's parent directory is
// created when absent so the store can create the file itself.
func DBPath(dir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, PointerFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w in %s", ErrPointerMissing, dir)
		}
		return "", fmt.Errorf("read %s: %w", PointerFile, err)
	}

	path := strings.TrimSpace(string(raw))
	if path == "" {
		return "", ErrPointerEmpty
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create database directory: %w", err)
	}
	if info, err := os.Stat(path); err == nil && !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	return path, nil
}
