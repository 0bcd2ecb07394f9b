package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// SyncStateRepository — интерфейс для таблицы sync_state (одна строка).
type SyncStateRepository interface {
	// Get возвращает текущее состояние синхронизации.
	Get(ctx context.Context) (*model.SyncState, error)
	// Mark записывает время завершения этапа синхронизации.
	Mark(ctx context.Context, stage model.SyncStage, t time.Time) error
}

// syncStateRepo — реализация SyncStateRepository.
type syncStateRepo struct {
	db DBTX
}

// NewSyncStateRepository создаёт репозиторий состояния синхронизации.
func NewSyncStateRepository(db DBTX) SyncStateRepository {
	return &syncStateRepo{db: db}
}

// stageColumns — колонка sync_state для каждого этапа.
var stageColumns = map[model.SyncStage]string{
	model.StageFetch:           "last_fetch_at",
	model.StageReferenceImport: "last_reference_import_at",
	model.StageFormImport:      "last_form_import_at",
	model.StageUserImport:      "last_user_import_at",
}

func (r *syncStateRepo) Get(ctx context.Context) (*model.SyncState, error) {
	query := `
		SELECT id, last_fetch_at, last_reference_import_at, last_form_import_at,
			last_user_import_at, created_at, updated_at
		FROM sync_state
		WHERE id = 1`

	s := &model.SyncState{}
	err := r.db.QueryRow(ctx, query).Scan(
		&s.ID, &s.LastFetchAt, &s.LastReferenceImportAt, &s.LastFormImportAt,
		&s.LastUserImportAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения sync_state: %w", err)
	}
	return s, nil
}

func (r *syncStateRepo) Mark(ctx context.Context, stage model.SyncStage, t time.Time) error {
	column, ok := stageColumns[stage]
	if !ok {
		return fmt.Errorf("неизвестный этап синхронизации: %q", stage)
	}

	query := fmt.Sprintf(`UPDATE sync_state SET %s = $1, updated_at = NOW() WHERE id = 1`, column)
	if _, err := r.db.Exec(ctx, query, t); err != nil {
		return fmt.Errorf("ошибка обновления %s: %w", column, err)
	}
	return nil
}
