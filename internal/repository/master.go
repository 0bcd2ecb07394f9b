package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MasterRepository — выборка строк произвольной таблицы для мастер-эндпоинтов.
// Имена таблиц и колонок приходят из фиксированного списка сервиса,
// но всё равно экранируются.
type MasterRepository interface {
	// List возвращает все строки таблицы, отсортированные по orderColumn.
	List(ctx context.Context, table, orderColumn string) ([]map[string]any, error)
}

// masterRepo — реализация MasterRepository.
type masterRepo struct {
	db DBTX
}

// NewMasterRepository создаёт репозиторий мастер-выборок.
func NewMasterRepository(db DBTX) MasterRepository {
	return &masterRepo{db: db}
}

func (r *masterRepo) List(ctx context.Context, table, orderColumn string) ([]map[string]any, error) {
	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s ASC`,
		pgx.Identifier{table}.Sanitize(),
		pgx.Identifier{orderColumn}.Sanitize(),
	)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки %s: %w", table, err)
	}

	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", table, err)
	}

	for _, row := range result {
		for k, v := range row {
			row[k] = jsonValue(v)
		}
	}
	if result == nil {
		result = []map[string]any{}
	}
	return result, nil
}

// jsonValue приводит значения pgx к виду, пригодному для JSON.
// UUID приходит как [16]byte и превращается в строку.
func jsonValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}
