// Package scan is the working-file collaborator: it locates sub-prompt
// template files in a directory, derives their type and ordering from the
// <prefix>_<type>.j2 filename convention, and rebuilds filenames when a
// master prompt is extracted back to disk.
package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Suffix is the template file extension gpv manages.
const Suffix = ".j2"

// ErrFilename marks a working-set filename that violates the
// <prefix>_<type>.j2 convention or its prefix ordering rules.
var ErrFilename = errors.New("invalid sub-prompt filename")

// File is one working-directory template file.
type File struct {
	Path     string
	Name     string
	Prefix   string
	Type     string
	Contents string
}

// ParseFilename splits <prefix>_<type>.j2 into its prefix (text before the
// first underscore) and type (text between the first underscore and the
// trailing suffix).
func ParseFilename(name string) (prefix, typ string, err error) {
	if !strings.HasSuffix(name, Suffix) {
		return "", "", fmt.Errorf("%w: %s must end with %s", ErrFilename, name, Suffix)
	}
	stem := strings.TrimSuffix(name, Suffix)
	prefix, typ, ok := strings.Cut(stem, "_")
	if !ok || prefix == "" || typ == "" {
		return "", "", fmt.Errorf("%w: %s must be <prefix>_<type>%s", ErrFilename, name, Suffix)
	}
	return prefix, typ, nil
}

// Load reads a single template file and parses its name. Relative paths
// resolve against dir.
func Load(dir, path string) (File, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	path = filepath.Clean(path)
	name := filepath.Base(path)
	prefix, typ, err := ParseFilename(name)
	if err != nil {
		return File{}, err
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return File{Path: path, Name: name, Prefix: prefix, Type: typ, Contents: string(contents)}, nil
}

// Dir returns every parseable *.j2 file in dir, sorted by name so that files
// follow their numeric prefix order. Files without the suffix or without an
// underscore are excluded.
func Dir(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Suffix) {
			continue
		}
		if _, _, err := ParseFilename(entry.Name()); err != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	files := make([]File, 0, len(names))
	for _, name := range names {
		f, err := Load(dir, name)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// ValidatePrefixes enforces the ordering contract over a working set: every
// prefix must be numeric, all prefixes must share the same width, and the
// values must be unique and consecutive starting at 1.
func ValidatePrefixes(files []File) error {
	if len(files) == 0 {
		return nil
	}
	width := len(files[0].Prefix)
	values := make([]int, 0, len(files))
	byValue := make(map[int]string, len(files))
	for _, f := range files {
		n, err := strconv.Atoi(f.Prefix)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: non-numeric prefix %q in %s", ErrFilename, f.Prefix, f.Name)
		}
		if len(f.Prefix) != width {
			return fmt.Errorf("%w: inconsistent prefix format in %s (expected width %d)", ErrFilename, f.Name, width)
		}
		if other, ok := byValue[n]; ok {
			return fmt.Errorf("%w: duplicate prefix %q in %s and %s", ErrFilename, f.Prefix, other, f.Name)
		}
		byValue[n] = f.Name
		values = append(values, n)
	}
	sort.Ints(values)
	for i, n := range values {
		if n != i+1 {
			return fmt.Errorf("%w: prefixes must be consecutive starting at 1, missing %d", ErrFilename, i+1)
		}
	}
	return nil
}

// Filename rebuilds the working filename for a sub-prompt type at a given
// position, the inverse of ParseFilename. The prefix is zero-padded to at
// least two digits, widening when the master has 100 or more members.
func Filename(typ string, index, total int) string {
	width := len(strconv.Itoa(total))
	if width < 2 {
		width = 2
	}
	return fmt.Sprintf("%0*d_%s%s", width, index+1, typ, Suffix)
}
