// Package backup creates rotating copies of the civita database.
//
// A backup is taken on serve startup when the newest existing backup is older
// than the configured interval. Files are named civita.db.bak.1,
// civita.db.bak.2, ..., with 1 the most recent.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/akorkmaz/civita/internal/config"
)

// Prefix names backup files.
const Prefix = "civita.db.bak."

// Manager rotates database backups.
type Manager struct {
	dbPath string
	dir    string
	cfg    config.BackupConfig
}

// NewManager creates a backup manager for the database at dbPath. Backups go
// to cfg.Path, or next to the database when unset.
func NewManager(dbPath string, cfg config.BackupConfig) *Manager {
	dir := cfg.Path
	if dir == "" {
		dir = filepath.Dir(dbPath)
	}
	return &Manager{dbPath: dbPath, dir: dir, cfg: cfg}
}

// RunIfDue takes a backup when one is due. It returns the new backup path, or
// an empty string when no backup was needed.
func (m *Manager) RunIfDue() (string, error) {
	if !m.cfg.Enabled {
		return "", nil
	}
	if _, err := os.Stat(m.dbPath); os.IsNotExist(err) {
		return "", nil
	}

	due, err := m.isDue()
	if err != nil {
		return "", fmt.Errorf("checking backup age: %w", err)
	}
	if !due {
		return "", nil
	}

	path, err := m.create()
	if err != nil {
		return "", fmt.Errorf("creating backup: %w", err)
	}
	return path, nil
}

func (m *Manager) isDue() (bool, error) {
	backups, err := m.list()
	if err != nil {
		return false, err
	}
	if len(backups) == 0 {
		return true, nil
	}

	info, err := os.Stat(backups[0])
	if err != nil {
		return false, fmt.Errorf("stat newest backup: %w", err)
	}
	minAge := time.Duration(m.cfg.MinIntervalMinutes) * time.Minute
	return time.Since(info.ModTime()) > minAge, nil
}

// list returns existing backup paths, newest first.
func (m *Manager) list() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	type numbered struct {
		path string
		n    int
	}
	var found []numbered
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), Prefix))
		if err != nil {
			continue
		}
		found = append(found, numbered{path: filepath.Join(m.dir, entry.Name()), n: n})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

func (m *Manager) create() (string, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	if err := m.rotate(); err != nil {
		return "", fmt.Errorf("rotating backups: %w", err)
	}

	path := filepath.Join(m.dir, Prefix+"1")
	if err := copyFile(m.dbPath, path); err != nil {
		return "", fmt.Errorf("copying database: %w", err)
	}
	return path, nil
}

// rotate shifts every backup one slot down, oldest first so nothing is
// overwritten, and drops the ones past the retention count.
func (m *Manager) rotate() error {
	backups, err := m.list()
	if err != nil {
		return err
	}

	for i := len(backups) - 1; i >= 0; i-- {
		path := backups[i]
		n, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), Prefix))

		next := n + 1
		if next > m.cfg.Keep {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("deleting old backup %s: %w", path, err)
			}
			continue
		}
		nextPath := filepath.Join(m.dir, fmt.Sprintf("%s%d", Prefix, next))
		if err := os.Rename(path, nextPath); err != nil {
			return fmt.Errorf("renaming backup %s: %w", path, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return dstFile.Sync()
}

// List returns existing backup paths, newest first.
func (m *Manager) List() ([]string, error) {
	return m.list()
}

// Dir returns the backup directory.
func (m *Manager) Dir() string {
	return m.dir
}
