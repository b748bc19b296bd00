package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"powerx/internal/config"
	"powerx/internal/models"
	"powerx/internal/repository"
)

// BackupService writes marker archives to the backup directory and records
// them. The archive itself is a manifest, not a database dump; real dumps are
// delegated to pg_dump tooling outside the process.
type BackupService struct {
	Repo   repository.Repository
	Config config.BackupConfig
	Logger *zap.Logger
}

func (s *BackupService) Run(ctx context.Context, trigger string) (*models.BackupRecord, error) {
	if s == nil || !s.Config.Enabled {
		return nil, fmt.Errorf("backups disabled")
	}
	dir := s.Config.Dir
	if dir == "" {
		dir = "backups"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	now := time.Now().UTC()
	backupID := uuid.NewString()
	path := filepath.Join(dir, fmt.Sprintf("powerx-%s-%s.manifest", now.Format("20060102T150405"), backupID[:8]))

	record := &models.BackupRecord{
		BackupID:  backupID,
		Path:      path,
		Status:    "running",
		Trigger:   trigger,
		StartedAt: now,
	}
	if err := s.Repo.InsertBackupRecord(ctx, record); err != nil {
		return nil, err
	}

	manifest := fmt.Sprintf("backup_id: %s\nstarted_at: %s\ntrigger: %s\n", backupID, now.Format(time.RFC3339), trigger)
	finished := time.Now().UTC()
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		_ = s.Repo.UpdateBackupRecord(ctx, record.ID, map[string]any{
			"status":      "failed",
			"error":       err.Error(),
			"finished_at": finished,
		})
		return record, fmt.Errorf("write backup manifest: %w", err)
	}
	if err := s.Repo.UpdateBackupRecord(ctx, record.ID, map[string]any{
		"status":      "done",
		"size_bytes":  int64(len(manifest)),
		"finished_at": finished,
	}); err != nil {
		return record, err
	}

	if err := s.prune(dir); err != nil && s.Logger != nil {
		s.Logger.Warn("backup prune failed", zap.Error(err))
	}
	if s.Logger != nil {
		s.Logger.Info("backup completed", zap.String("backup_id", backupID), zap.String("path", path))
	}
	record.Status = "done"
	record.SizeBytes = int64(len(manifest))
	record.FinishedAt = &finished
	return record, nil
}

// prune keeps the newest Keep manifests on disk.
func (s *BackupService) prune(dir string) error {
	keep := s.Config.Keep
	if keep <= 0 {
		return nil
	}
	entries, err := filepath.Glob(filepath.Join(dir, "powerx-*.manifest"))
	if err != nil {
		return err
	}
	if len(entries) <= keep {
		return nil
	}
	sort.Strings(entries)
	for _, stale := range entries[:len(entries)-keep] {
		if err := os.Remove(stale); err != nil {
			return err
		}
	}
	return nil
}
