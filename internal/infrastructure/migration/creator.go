package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MigrationFile describes a freshly created up/down pair.
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// CreateMigration writes an empty up/down pair into dir. The version
// prefix is the creation time as YYYYMMDDHHMMSS, which keeps files in
// apply order under a plain lexical sort.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create migrations dir %s: %w", dir, err)
	}

	now := time.Now()
	base := now.Format("20060102150405") + "_" + sanitizeName(name)

	mf := &MigrationFile{
		Version:     now.Format("20060102150405"),
		Name:        name,
		Description: description,
		Timestamp:   now.Format(time.RFC3339),
		UpPath:      filepath.Join(dir, base+".up.sql"),
		DownPath:    filepath.Join(dir, base+".down.sql"),
	}

	if err := os.WriteFile(mf.UpPath, []byte(mf.upStub()), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", mf.UpPath, err)
	}
	if err := os.WriteFile(mf.DownPath, []byte(mf.downStub()), 0644); err != nil {
		// Never leave a half pair behind; migrate refuses to run on one.
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("write %s: %w", mf.DownPath, err)
	}

	return mf, nil
}

func (mf *MigrationFile) upStub() string {
	return fmt.Sprintf("-- %s\n-- created %s\n-- %s\n\n-- forward schema change\n\n",
		mf.Name, mf.Timestamp, mf.Description)
}

func (mf *MigrationFile) downStub() string {
	return fmt.Sprintf("-- %s: revert\n-- created %s\n\n-- undo the forward change\n\n",
		mf.Name, mf.Timestamp)
}

// sanitizeName lowercases a human migration name into a file-safe slug:
// words joined by single underscores, anything outside [a-z0-9] dropped.
func sanitizeName(name string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sep = true
		}
	}
	return b.String()
}

// ListMigrations returns the base names of every migration pair in dir,
// sorted in apply order. A missing directory is an empty list, not an
// error, so `migrate list` works before the first create.
func ListMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".up.sql"))
	}
	sort.Strings(names)
	return names, nil
}
