package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const backupTimeLayout = "20060102-150405"

// backupPattern matches backup filenames: tinygems-YYYYMMDD-HHMMSS.db
var backupPattern = regexp.MustCompile(`^tinygems-\d{8}-\d{6}\.db$`)

// ErrInvalidBackupName is returned for names that are not backup files.
var ErrInvalidBackupName = errors.New("invalid backup filename")

// BackupInfo describes a backup file.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Backup writes a consistent snapshot of the live database with VACUUM INTO.
func (s *Service) Backup(ctx context.Context) (*BackupInfo, error) {
	if err := os.MkdirAll(s.opts.BackupDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	now := time.Now().UTC()
	filename := "tinygems-" + now.Format(backupTimeLayout) + ".db"
	dest := filepath.Join(s.opts.BackupDir, filename)

	// VACUUM INTO refuses to overwrite, so a second backup in the same second fails.
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}

	s.logger.Info("backup complete",
		slog.String("filename", filename),
		slog.Int64("size", info.Size()))
	return &BackupInfo{Filename: filename, Size: info.Size(), CreatedAt: now}, nil
}

// ListBackups returns all backup files, newest first.
func (s *Service) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.opts.BackupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !backupPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "tinygems-"), ".db")
		ts, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			ts = info.ModTime().UTC()
		}
		backups = append(backups, BackupInfo{Filename: entry.Name(), Size: info.Size(), CreatedAt: ts})
	}

	slices.SortFunc(backups, func(a, b BackupInfo) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return backups, nil
}

// DeleteBackup removes a single backup file by name.
func (s *Service) DeleteBackup(filename string) error {
	if !IsValidBackupFilename(filename) {
		return fmt.Errorf("%w: %q", ErrInvalidBackupName, filename)
	}
	if err := os.Remove(filepath.Join(s.opts.BackupDir, filename)); err != nil { //nolint:gosec // name validated above
		return fmt.Errorf("removing backup: %w", err)
	}
	s.logger.Info("backup deleted", slog.String("filename", filename))
	return nil
}

// Prune deletes the oldest backups beyond the retention count.
func (s *Service) Prune() error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) <= s.opts.Retention {
		return nil
	}
	var errs []error
	for _, b := range backups[s.opts.Retention:] {
		if err := s.DeleteBackup(b.Filename); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsValidBackupFilename reports whether filename is a bare backup file name.
func IsValidBackupFilename(filename string) bool {
	if strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return false
	}
	return backupPattern.MatchString(filename)
}
