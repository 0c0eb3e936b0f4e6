package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/internal/repository"
	"github.com/tiza/library-service/internal/storage"
	"github.com/tiza/library-service/internal/transfer"
)

const (
	backupPrefix    = "backups/"
	exportPrefix    = "exports/"
	timestampLayout = "20060102_150405"

	msgBackupMissing = "Selected backup file does not exist"
	msgFileMissing   = "Selected file does not exist"
)

type MaintenanceService interface {
	Backup(ctx context.Context) (*models.BackupResult, error)
	Restore(ctx context.Context, key string) (*models.RestoreResult, error)
	Export(ctx context.Context, req *models.ExportRequest) (*models.BackupResult, error)
	Import(ctx context.Context, req *models.ImportRequest) (*models.RestoreResult, error)
	ListBackups(ctx context.Context) ([]string, error)
	// PruneBackups deletes all but the newest keep backups and returns the removed keys.
	PruneBackups(ctx context.Context, keep int) ([]string, error)
}

type maintenanceService struct {
	snapshotRepo repository.SnapshotRepository
	store        storage.Storage
	now          func() time.Time
	logger       zerolog.Logger
}

func NewMaintenanceService(
	snapshotRepo repository.SnapshotRepository,
	store storage.Storage,
	now func() time.Time,
	logger zerolog.Logger,
) MaintenanceService {
	return &maintenanceService{
		snapshotRepo: snapshotRepo,
		store:        store,
		now:          now,
		logger:       logger,
	}
}

func (s *maintenanceService) Backup(ctx context.Context) (*models.BackupResult, error) {
	key := backupPrefix + "library_backup_" + s.stamp() + ".json"
	if err := s.backupTo(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info().Str("path", key).Msg("Database backed up")
	return &models.BackupResult{
		Success: true,
		Message: "Database backed up successfully",
		Path:    &key,
	}, nil
}

func (s *maintenanceService) backupTo(ctx context.Context, key string) error {
	snapshot, err := s.snapshotRepo.Dump(ctx)
	if err != nil {
		return fmt.Errorf("failed to dump database: %w", err)
	}
	return s.putSnapshot(ctx, key, snapshot)
}

func (s *maintenanceService) Restore(ctx context.Context, key string) (*models.RestoreResult, error) {
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check backup: %w", err)
	}
	if !exists {
		return &models.RestoreResult{Success: false, Message: msgBackupMissing}, nil
	}

	if format, err := transfer.FormatFromPath(key); err != nil || format != models.ExportFormatJSON {
		return nil, fmt.Errorf("%w: backups are json snapshots", ErrUnsupportedFormat)
	}

	snapshot, err := s.readSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}

	preRestore := backupPrefix + "library_pre_restore_" + s.stamp() + ".json"
	if err := s.backupTo(ctx, preRestore); err != nil {
		return nil, fmt.Errorf("failed to write pre-restore backup: %w", err)
	}

	if err := s.snapshotRepo.Replace(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to restore database: %w", err)
	}

	counts := countsOf(snapshot)
	s.logger.Info().
		Str("path", key).
		Str("pre_restore", preRestore).
		Int("records", counts.Total()).
		Msg("Database restored")

	return &models.RestoreResult{
		Success: true,
		Message: "Database restored successfully",
		Counts:  &counts,
	}, nil
}

func (s *maintenanceService) Export(ctx context.Context, req *models.ExportRequest) (*models.BackupResult, error) {
	format := req.ExportType
	if format == "" {
		format = models.ExportFormatCSV
	}
	entity := req.Entity
	if entity == "" {
		entity = models.EntityAll
	}

	snapshot, err := s.snapshotRepo.Dump(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to dump database: %w", err)
	}
	snapshot = transfer.Filter(snapshot, entity)

	base := exportPrefix + "library_data_" + s.stamp()
	var target string

	switch format {
	case models.ExportFormatJSON:
		target = base + ".json"
		if err := s.putSnapshot(ctx, target, snapshot); err != nil {
			return nil, err
		}
	case models.ExportFormatCSV:
		target = base + "/"
		for _, e := range models.Entities {
			if entity != models.EntityAll && entity != e {
				continue
			}
			var buf bytes.Buffer
			if err := transfer.EncodeCSV(&buf, snapshot, e); err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", e, err)
			}
			key := target + string(e) + ".csv"
			if err := s.store.Put(ctx, key, &buf, int64(buf.Len()), "text/csv"); err != nil {
				return nil, fmt.Errorf("failed to store %s: %w", key, err)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	s.logger.Info().
		Str("path", target).
		Str("format", string(format)).
		Str("entity", string(entity)).
		Msg("Data exported")

	return &models.BackupResult{
		Success: true,
		Message: "Data exported successfully",
		Path:    &target,
	}, nil
}

func (s *maintenanceService) Import(ctx context.Context, req *models.ImportRequest) (*models.RestoreResult, error) {
	format, err := transfer.FormatFromPath(req.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Path)
	}

	exists, err := s.store.Exists(ctx, req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to check import file: %w", err)
	}
	if !exists {
		return &models.RestoreResult{Success: false, Message: msgFileMissing}, nil
	}

	var snapshot *models.Snapshot
	switch format {
	case models.ExportFormatJSON:
		if snapshot, err = s.readSnapshot(ctx, req.Path); err != nil {
			return nil, err
		}
		snapshot = transfer.Filter(snapshot, req.Entity)
	case models.ExportFormatCSV:
		entity := req.Entity
		if entity == "" || entity == models.EntityAll {
			guessed, ok := transfer.EntityFromPath(req.Path)
			if !ok {
				return nil, ErrEntityRequired
			}
			entity = guessed
		}
		if snapshot, err = s.readCSV(ctx, req.Path, entity); err != nil {
			return nil, err
		}
	}

	counts, err := s.snapshotRepo.Import(ctx, snapshot)
	if errors.Is(err, repository.ErrNoStock) {
		s.logger.Warn().Err(err).Str("path", req.Path).Msg("Import rejected, lending without stock")
		return nil, ErrBookUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to import data: %w", err)
	}

	s.logger.Info().
		Str("path", req.Path).
		Int("books", counts.Books).
		Int("students", counts.Students).
		Int("lendings", counts.Lendings).
		Msg("Data imported")

	return &models.RestoreResult{
		Success: true,
		Message: fmt.Sprintf("Imported %d records", counts.Total()),
		Counts:  &counts,
	}, nil
}

// ListBackups returns backup keys, newest first.
func (s *maintenanceService) ListBackups(ctx context.Context) ([]string, error) {
	keys, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			backups = append(backups, k)
		}
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backupStamp(backups[i]) > backupStamp(backups[j])
	})
	return backups, nil
}

func (s *maintenanceService) PruneBackups(ctx context.Context, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	removed := make([]string, 0, len(backups)-keep)
	for _, key := range backups[keep:] {
		if err := s.store.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("failed to delete backup %s: %w", key, err)
		}
		removed = append(removed, key)
	}

	s.logger.Info().Int("kept", keep).Strs("removed", removed).Msg("Old backups pruned")
	return removed, nil
}

// backupStamp extracts the YYYYMMDD_HHMMSS suffix of a backup key.
func backupStamp(key string) string {
	name := strings.TrimSuffix(path.Base(key), ".json")
	if len(name) < len(timestampLayout) {
		return name
	}
	return name[len(name)-len(timestampLayout):]
}

func (s *maintenanceService) stamp() string {
	return s.now().Format(timestampLayout)
}

func (s *maintenanceService) putSnapshot(ctx context.Context, key string, snapshot *models.Snapshot) error {
	var buf bytes.Buffer
	if err := transfer.EncodeSnapshot(&buf, snapshot); err != nil {
		return err
	}
	if err := s.store.Put(ctx, key, &buf, int64(buf.Len()), "application/json"); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *maintenanceService) readSnapshot(ctx context.Context, key string) (*models.Snapshot, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer rc.Close()

	snapshot, err := transfer.DecodeSnapshot(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, errors.Join(ErrUnsupportedFormat, err))
	}
	return snapshot, nil
}

func (s *maintenanceService) readCSV(ctx context.Context, key string, entity models.Entity) (*models.Snapshot, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer rc.Close()

	snapshot, err := transfer.DecodeCSV(rc, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, errors.Join(ErrUnsupportedFormat, err))
	}
	return snapshot, nil
}

func countsOf(snapshot *models.Snapshot) models.ImportCounts {
	return models.ImportCounts{
		Books:    len(snapshot.Books),
		Students: len(snapshot.Students),
		Lendings: len(snapshot.Lendings),
	}
}
