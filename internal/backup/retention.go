package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// BackupInfo describes one backup file in a backup directory.
type BackupInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Version   int       `json:"version,omitempty"`
	NodeCount int       `json:"node_count,omitempty"`
}

// RetentionPolicy selects the backups to keep from a newest-first list.
// The result preserves the input order.
type RetentionPolicy interface {
	Apply(backups []BackupInfo) (keep []BackupInfo)
}

// CountPolicy keeps the MaxCount newest backups. MaxCount <= 0 keeps all.
type CountPolicy struct {
	MaxCount int
}

func (p *CountPolicy) Apply(backups []BackupInfo) []BackupInfo {
	if p.MaxCount <= 0 || len(backups) <= p.MaxCount {
		return backups
	}
	return backups[:p.MaxCount]
}

// AgePolicy keeps backups created within MaxAge. Now defaults to time.Now.
type AgePolicy struct {
	MaxAge time.Duration
	Now    func() time.Time
}

func (p *AgePolicy) Apply(backups []BackupInfo) []BackupInfo {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff := now().Add(-p.MaxAge)
	return filterBackups(backups, func(b BackupInfo) bool { return b.CreatedAt.After(cutoff) })
}

// SizePolicy keeps the newest backups whose combined size fits in
// MaxTotalBytes. The newest backup is always kept.
type SizePolicy struct {
	MaxTotalBytes int64
}

func (p *SizePolicy) Apply(backups []BackupInfo) []BackupInfo {
	var total int64
	for i, b := range backups {
		total += b.Size
		if total > p.MaxTotalBytes && i > 0 {
			return backups[:i]
		}
	}
	return backups
}

// CompositePolicy keeps a backup only when every policy keeps it.
type CompositePolicy struct {
	Policies []RetentionPolicy
}

func (p *CompositePolicy) Apply(backups []BackupInfo) []BackupInfo {
	keep := backups
	for _, policy := range p.Policies {
		kept := make(map[string]bool)
		for _, b := range policy.Apply(backups) {
			kept[b.Path] = true
		}
		keep = filterBackups(keep, func(b BackupInfo) bool { return kept[b.Path] })
	}
	return keep
}

func filterBackups(backups []BackupInfo, keep func(BackupInfo) bool) []BackupInfo {
	var out []BackupInfo
	for _, b := range backups {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

const (
	filePrefix = "corpusgraph-backup-"
	fileExt    = ".cgb"
)

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt)
}

// ListBackups returns the backups in dir, newest first by the timestamp in
// their names. CreatedAt and NodeCount come from the header; a file whose
// header cannot be read is still listed, dated by its modification time.
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		b := BackupInfo{Path: filepath.Join(dir, e.Name()), Size: info.Size(), CreatedAt: info.ModTime()}
		if header, err := ReadHeader(b.Path); err == nil {
			b.Version, b.NodeCount = header.Version, header.NodeCount
			if !header.CreatedAt.IsZero() {
				b.CreatedAt = header.CreatedAt
			}
		}
		backups = append(backups, b)
	}

	slices.SortFunc(backups, func(x, y BackupInfo) int {
		return strings.Compare(filepath.Base(y.Path), filepath.Base(x.Path))
	})
	return backups, nil
}

// ApplyRetention removes every backup in dir the policy does not keep and
// returns the removed paths.
func ApplyRetention(dir string, policy RetentionPolicy) ([]string, error) {
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]bool)
	for _, b := range policy.Apply(backups) {
		kept[b.Path] = true
	}

	var deleted []string
	for _, b := range backups {
		if kept[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseDuration accepts Go durations ("720h") and whole days or weeks
// ("30d", "2w").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	unit := map[byte]time.Duration{'d': 24 * time.Hour, 'w': 7 * 24 * time.Hour}[s[len(s)-1]]
	n, err := strconv.Atoi(s[:len(s)-1])
	if unit == 0 || err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q (use e.g. 720h, 30d or 2w)", s)
	}
	return time.Duration(n) * unit, nil
}

// sizeUnits is ordered longest suffix first.
var sizeUnits = []struct {
	suffix string
	bytes  int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseSize parses sizes like "500KB", "100MB" or "1gb" into bytes.
func ParseSize(s string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for _, u := range sizeUnits {
		num, ok := strings.CutSuffix(upper, u.suffix)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil || n < 0 {
			break
		}
		return n * u.bytes, nil
	}
	return 0, fmt.Errorf("invalid size %q (use e.g. 500KB, 100MB or 1GB)", s)
}
