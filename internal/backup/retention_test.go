package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func paths(backups []BackupInfo) []string {
	out := make([]string, len(backups))
	for i, b := range backups {
		out[i] = filepath.Base(b.Path)
	}
	return out
}

func TestRetentionPolicies(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	backups := []BackupInfo{
		{Path: "/b/5.cgb", CreatedAt: now, Size: 500},
		{Path: "/b/4.cgb", CreatedAt: now.Add(-1 * time.Hour), Size: 500},
		{Path: "/b/3.cgb", CreatedAt: now.Add(-48 * time.Hour), Size: 500},
		{Path: "/b/2.cgb", CreatedAt: now.Add(-72 * time.Hour), Size: 500},
		{Path: "/b/1.cgb", CreatedAt: now.Add(-720 * time.Hour), Size: 500},
	}
	clock := func() time.Time { return now }

	tests := []struct {
		name   string
		policy RetentionPolicy
		want   []string
	}{
		{"count keeps newest", &CountPolicy{MaxCount: 3}, []string{"5.cgb", "4.cgb", "3.cgb"}},
		{"count above total", &CountPolicy{MaxCount: 10}, []string{"5.cgb", "4.cgb", "3.cgb", "2.cgb", "1.cgb"}},
		{"count zero keeps all", &CountPolicy{}, []string{"5.cgb", "4.cgb", "3.cgb", "2.cgb", "1.cgb"}},
		{"age", &AgePolicy{MaxAge: 24 * time.Hour, Now: clock}, []string{"5.cgb", "4.cgb"}},
		{"size", &SizePolicy{MaxTotalBytes: 1200}, []string{"5.cgb", "4.cgb"}},
		{"size keeps newest", &SizePolicy{MaxTotalBytes: 10}, []string{"5.cgb"}},
		{"composite intersects", &CompositePolicy{Policies: []RetentionPolicy{
			&CountPolicy{MaxCount: 4},
			&AgePolicy{MaxAge: 50 * time.Hour, Now: clock},
		}}, []string{"5.cgb", "4.cgb", "3.cgb"}},
		{"composite empty keeps all", &CompositePolicy{}, []string{"5.cgb", "4.cgb", "3.cgb", "2.cgb", "1.cgb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paths(tt.policy.Apply(backups))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListBackups_HeaderAndNames(t *testing.T) {
	dir := t.TempDir()

	created := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	valid := filepath.Join(dir, "corpusgraph-backup-20260203-120000.cgb")
	if _, err := Write(valid, &BackupFormat{CreatedAt: created, Nodes: sampleNodes()}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	files := map[string]string{
		"corpusgraph-backup-20260201-120000.cgb": "not a header",
		"corpusgraph-backup-20260202-120000.cgb": "garbage",
		"corpusgraph-backup-20260204.json":       "wrong extension",
		"not-a-backup.txt":                       "ignore this",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}

	backups, err := ListBackups(dir)
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("ListBackups() found %d, want 3", len(backups))
	}
	if backups[0].Path != valid {
		t.Errorf("first backup = %s, want %s", filepath.Base(backups[0].Path), filepath.Base(valid))
	}
	if !backups[0].CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want header time %v", backups[0].CreatedAt, created)
	}
	if backups[0].Version != FormatVersion || backups[0].NodeCount != 2 {
		t.Errorf("header info = v%d/%d nodes, want v%d/2", backups[0].Version, backups[0].NodeCount, FormatVersion)
	}
	if backups[1].Version != 0 {
		t.Errorf("unreadable header should leave Version 0, got %d", backups[1].Version)
	}
}

func TestListBackups_MissingDir(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("ListBackups() = %d entries, want 0", len(backups))
	}
}

func TestApplyRetention_DeletesCorrectFiles(t *testing.T) {
	dir := t.TempDir()

	for i := 1; i <= 5; i++ {
		name := filepath.Join(dir, "corpusgraph-backup-2026020"+string(rune('0'+i))+"-120000.cgb")
		if err := os.WriteFile(name, []byte("data"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := ApplyRetention(dir, &CountPolicy{MaxCount: 2})
	if err != nil {
		t.Fatalf("ApplyRetention() error = %v", err)
	}
	if len(deleted) != 3 {
		t.Errorf("deleted %d files, want 3", len(deleted))
	}

	remaining, _ := ListBackups(dir)
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2", len(remaining))
	}
	if filepath.Base(remaining[0].Path) != "corpusgraph-backup-20260205-120000.cgb" {
		t.Errorf("newest remaining = %s", filepath.Base(remaining[0].Path))
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"720h", 720 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0d", 0, false},
		{" 3w ", 21 * 24 * time.Hour, false},
		{"-2d", 0, true},
		{"5y", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"100MB", 100 * 1024 * 1024, false},
		{"1GB", 1024 * 1024 * 1024, false},
		{"500KB", 500 * 1024, false},
		{"1024B", 1024, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0MB", 0, false},
		{"2gb", 2 * 1024 * 1024 * 1024, false},
		{"10 KB", 10 * 1024, false},
		{"-1MB", 0, true},
		{"MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
