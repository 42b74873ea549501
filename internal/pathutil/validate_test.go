package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	nodesDir := t.TempDir()
	otherDir := t.TempDir()

	decisions := filepath.Join(nodesDir, "decisions")
	if err := os.MkdirAll(decisions, 0700); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		allowedDirs []string
		errContains string
	}{
		{"file inside allowed dir", filepath.Join(nodesDir, "ADR-001.yml"), []string{nodesDir}, ""},
		{"file in subdirectory", filepath.Join(decisions, "ADR-001.yml"), []string{nodesDir}, ""},
		{"missing subdirectories", filepath.Join(nodesDir, "new", "deeper", "x.yml"), []string{nodesDir}, ""},
		{"the allowed dir itself", nodesDir, []string{nodesDir}, ""},
		{"dot-dot traversal", filepath.Join(nodesDir, "..", "etc", "passwd"), []string{nodesDir}, "outside allowed directories"},
		{"embedded dot-dot traversal", filepath.Join(decisions, "..", "..", "etc", "passwd"), []string{nodesDir}, "outside allowed directories"},
		{"sibling dir", filepath.Join(otherDir, "x.yml"), []string{nodesDir}, "outside allowed directories"},
		{"prefix is not containment", nodesDir + "-evil/x.yml", []string{nodesDir}, "outside allowed directories"},
		{"null byte", filepath.Join(nodesDir, "a\x00b.yml"), []string{nodesDir}, "null byte"},
		{"empty path", "", []string{nodesDir}, "empty"},
		{"no allowed dirs", filepath.Join(nodesDir, "x.yml"), nil, "no allowed directories"},
		{"second allowed dir matches", filepath.Join(otherDir, "x.yml"), []string{nodesDir, otherDir}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.allowedDirs)
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("ValidatePath() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidatePath() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestResolve_ReturnsCanonicalPath(t *testing.T) {
	dir := t.TempDir()
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Resolve(filepath.Join(dir, "sub", "..", "x.yml"), []string{dir})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := filepath.Join(resolvedDir, "x.yml"); got != want {
		t.Errorf("Resolve() = %s, want %s", got, want)
	}
}

func TestResolve_ErrOutside(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "x.yml"), []string{t.TempDir()})
	if !errors.Is(err, ErrOutside) {
		t.Errorf("Resolve() error = %v, want ErrOutside", err)
	}
}

func TestValidatePath_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on Windows")
	}

	allowedDir := t.TempDir()
	outsideDir := t.TempDir()
	realSub := filepath.Join(allowedDir, "real")
	if err := os.MkdirAll(realSub, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outsideDir, filepath.Join(allowedDir, "escape")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	if err := os.Symlink(realSub, filepath.Join(allowedDir, "link")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	if err := ValidatePath(filepath.Join(allowedDir, "escape", "x.yml"), []string{allowedDir}); err == nil {
		t.Error("ValidatePath() should reject a symlink pointing outside the allowed dir")
	}
	if err := ValidatePath(filepath.Join(allowedDir, "link", "x.yml"), []string{allowedDir}); err != nil {
		t.Errorf("ValidatePath() should accept a symlink staying inside, got: %v", err)
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"/home/user/project/corpus/graph.json", ".../corpus/graph.json"},
		{"/a/b/c/d/e.txt", ".../d/e.txt"},
		{"/file.txt", "file.txt"},
		{"dir/file.txt", ".../dir/file.txt"},
		{"file.txt", "file.txt"},
		{"/home/user/corpus/", ".../user/corpus"},
	}
	for _, tt := range tests {
		if got := RedactPath(tt.input); got != tt.want {
			t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAllowedBackupDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	corpus := filepath.Join(t.TempDir(), "corpus")

	dirs, err := AllowedBackupDirs(corpus)
	if err != nil {
		t.Fatalf("AllowedBackupDirs() error = %v", err)
	}
	want := []string{filepath.Join(home, ".corpusgraph", "backups"), filepath.Join(corpus, "backups")}
	if len(dirs) != 2 || dirs[0] != want[0] || dirs[1] != want[1] {
		t.Errorf("AllowedBackupDirs() = %v, want %v", dirs, want)
	}

	dirs, _ = AllowedBackupDirs("")
	if len(dirs) != 1 {
		t.Errorf("AllowedBackupDirs(\"\") = %v, want only the user dir", dirs)
	}
}
