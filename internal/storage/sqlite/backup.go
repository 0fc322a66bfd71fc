package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/worldlines/backend/pkg/logger"
)

// Backup writes a consistent snapshot of the database into dir using
// VACUUM INTO, then removes snapshots older than the retention window.
// Returns the path of the new snapshot.
func (s *Store) Backup(ctx context.Context, dir string, retentionDays int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("worldlines-%s.db", time.Now().UTC().Format("2006-01-02"))
	path := filepath.Join(dir, name)

	// VACUUM INTO refuses to overwrite; replace the same-day snapshot.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove stale backup: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}

	logger.Info("Backup created", zap.String("path", path))

	if retentionDays > 0 {
		s.sweepBackups(dir, retentionDays)
	}

	return path, nil
}

func (s *Store) sweepBackups(dir string, retentionDays int) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	matches, err := filepath.Glob(filepath.Join(dir, "worldlines-*.db"))
	if err != nil {
		logger.Warn("Backup sweep glob failed", zap.Error(err))
		return
	}

	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				logger.Warn("Could not remove old backup", zap.String("path", path), zap.Error(err))
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		logger.Info("Old backups removed", zap.Int("count", removed))
	}
}
