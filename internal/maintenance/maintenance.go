// Package maintenance keeps the profile database healthy: it reports
// storage statistics, optimizes on a schedule and takes online backups.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Status describes the profile database on disk.
type Status struct {
	DBFileSize     int64     `json:"db_file_size"`
	WALFileSize    int64     `json:"wal_file_size"`
	PageCount      int64     `json:"page_count"`
	PageSize       int64     `json:"page_size"`
	Artists        int       `json:"artists"`
	PlatformLinks  int       `json:"platform_links"`
	LastOptimizeAt time.Time `json:"last_optimize_at,omitzero"`
}

// Options configures a Service.
type Options struct {
	DBPath    string
	BackupDir string
	// Retention is the number of backups kept by Prune.
	Retention int
}

// Service provides database maintenance operations.
type Service struct {
	db   *sql.DB
	opts Options

	mu           sync.Mutex
	lastOptimize time.Time

	logger *slog.Logger
}

// NewService creates a maintenance service.
func NewService(db *sql.DB, opts Options, logger *slog.Logger) *Service {
	if opts.Retention < 1 {
		opts.Retention = 1
	}
	return &Service{
		db:     db,
		opts:   opts,
		logger: logger.With(slog.String("component", "maintenance")),
	}
}

// Status returns current database statistics.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{}

	if info, err := os.Stat(s.opts.DBPath); err == nil {
		st.DBFileSize = info.Size()
	}
	if info, err := os.Stat(s.opts.DBPath + "-wal"); err == nil {
		st.WALFileSize = info.Size()
	}

	queries := []struct {
		sql  string
		dest any
	}{
		{"PRAGMA page_count", &st.PageCount},
		{"PRAGMA page_size", &st.PageSize},
		{"SELECT COUNT(*) FROM artists", &st.Artists},
		{"SELECT COUNT(*) FROM artist_platforms", &st.PlatformLinks},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("%s: %w", q.sql, err)
		}
	}

	s.mu.Lock()
	st.LastOptimizeAt = s.lastOptimize
	s.mu.Unlock()
	return st, nil
}

// Optimize runs PRAGMA optimize followed by a WAL checkpoint.
func (s *Service) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}

	s.mu.Lock()
	s.lastOptimize = time.Now().UTC()
	s.mu.Unlock()
	s.logger.Info("optimize complete")
	return nil
}

// Vacuum rebuilds the database file.
func (s *Service) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM: %w", err)
	}
	s.logger.Info("vacuum complete")
	return nil
}

// Run optimizes on every tick and takes a pruned backup once a day, until
// ctx is canceled. A non-positive interval returns immediately.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.logger.Info("maintenance scheduler started",
		slog.String("interval", interval.String()),
		slog.Int("retention", s.opts.Retention))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastBackup time.Time
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler stopped")
			return
		case now := <-ticker.C:
			if err := s.Optimize(ctx); err != nil {
				s.logger.Error("scheduled optimize failed", slog.String("error", err.Error()))
			}
			if now.Sub(lastBackup) < 24*time.Hour {
				continue
			}
			if _, err := s.Backup(ctx); err != nil {
				s.logger.Error("scheduled backup failed", slog.String("error", err.Error()))
				continue
			}
			lastBackup = now
			if err := s.Prune(); err != nil {
				s.logger.Error("backup prune failed", slog.String("error", err.Error()))
			}
		}
	}
}
