// Package pathutil confines file operations to known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutside is returned when a path escapes every allowed directory.
var ErrOutside = errors.New("outside allowed directories")

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/home/user/project/corpus/graph.json" becomes ".../corpus/graph.json".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Resolve returns the absolute, symlink-resolved form of path after checking
// it lies inside one of allowedDirs. The file itself need not exist: only
// its deepest existing ancestor is resolved.
func Resolve(path string, allowedDirs []string) (string, error) {
	switch {
	case path == "":
		return "", fmt.Errorf("path validation failed: path is empty")
	case len(allowedDirs) == 0:
		return "", fmt.Errorf("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return "", fmt.Errorf("path validation failed: path contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}
	dir, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolved := filepath.Join(dir, filepath.Base(abs))

	for _, allowed := range allowedDirs {
		base, err := filepath.Abs(filepath.Clean(allowed))
		if err != nil {
			continue
		}
		if base, err = resolveExisting(base); err != nil {
			continue
		}
		if within(resolved, base) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("path validation failed: %q is %w", RedactPath(abs), ErrOutside)
}

// ValidatePath checks that path is within one of allowedDirs.
func ValidatePath(path string, allowedDirs []string) error {
	_, err := Resolve(path, allowedDirs)
	return err
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of dir
// and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}
	head, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(head, filepath.Base(dir)), nil
}

// within reports whether path is base or below it.
func within(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}

// AllowedBackupDirs returns the directories backups may be written to or
// restored from: ~/.corpusgraph/backups and <corpusRoot>/backups.
func AllowedBackupDirs(corpusRoot string) ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dirs := []string{filepath.Join(homeDir, ".corpusgraph", "backups")}
	if corpusRoot != "" {
		dirs = append(dirs, filepath.Join(corpusRoot, "backups"))
	}
	return dirs, nil
}
