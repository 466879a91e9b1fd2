package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Backup writes a consistent copy of the database to dest.
func (db *DB) Backup(dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := db.Exec(`VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return nil
}

// CleanupBackups removes *.db files in dir older than retention.
func (db *DB) CleanupBackups(dir string, retention time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-retention)
	deleted := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}

// BackupService periodically backs up the database and prunes old copies.
type BackupService struct {
	db        *DB
	dir       string
	interval  time.Duration
	retention time.Duration
	logger    *zerolog.Logger
}

func NewBackupService(db *DB, dir string, interval, retention time.Duration, logger *zerolog.Logger) *BackupService {
	if dir == "" {
		dir = "backups"
	}
	return &BackupService{db: db, dir: dir, interval: interval, retention: retention, logger: logger}
}

// Start runs until ctx is done. The first backup runs after a short delay.
func (s *BackupService) Start(ctx context.Context) {
	s.logger.Info().Str("dir", s.dir).Dur("interval", s.interval).Msg("backup service started")

	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Minute):
		s.RunOnce()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce performs one backup and cleanup cycle.
func (s *BackupService) RunOnce() {
	dest := filepath.Join(s.dir, fmt.Sprintf("marketbook_%s.db", time.Now().Format("20060102_150405")))

	s.logger.Info().Str("path", dest).Msg("starting database backup")
	if err := s.db.Backup(dest); err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
	} else {
		s.logger.Info().Msg("backup completed successfully")
	}

	deleted, err := s.db.CleanupBackups(s.dir, s.retention)
	if err != nil {
		s.logger.Error().Err(err).Msg("backup cleanup failed")
		return
	}
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
}
