package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// ReferenceTable — расположение справочника в БД.
type ReferenceTable struct {
	// Name — имя таблицы (cofunders, funder, address, ...)
	Name string
	// PKColumn — колонка суррогатного UUID-ключа (cof_pk_uuid, ...)
	PKColumn string
}

// ReferenceRepository — доступ к 13 справочным таблицам TRIUP.
// Все таблицы устроены одинаково: UUID-ключ, id из TRIUP (может быть NULL)
// и одна-две текстовые колонки.
type ReferenceRepository interface {
	// FindByUpstreamID возвращает UUID первой строки с данным id.
	FindByUpstreamID(ctx context.Context, table ReferenceTable, id int64) (string, error)
	// Insert вставляет запись с новым UUID и возвращает его.
	Insert(ctx context.Context, table ReferenceTable, rec *model.ReferenceRecord) (string, error)
	// Update перезаписывает id и текстовые колонки строки с данным UUID.
	Update(ctx context.Context, table ReferenceTable, pk string, rec *model.ReferenceRecord) error
	// Count возвращает количество строк в таблице.
	Count(ctx context.Context, table ReferenceTable) (int, error)
}

// referenceRepo — реализация ReferenceRepository.
type referenceRepo struct {
	db DBTX
}

// NewReferenceRepository создаёт репозиторий справочников.
func NewReferenceRepository(db DBTX) ReferenceRepository {
	return &referenceRepo{db: db}
}

func (r *referenceRepo) FindByUpstreamID(ctx context.Context, table ReferenceTable, id int64) (string, error) {
	query := fmt.Sprintf(`SELECT %s::text FROM %s WHERE id = $1 ORDER BY created_at LIMIT 1`,
		pgx.Identifier{table.PKColumn}.Sanitize(),
		pgx.Identifier{table.Name}.Sanitize(),
	)

	var pk string
	if err := r.db.QueryRow(ctx, query, id).Scan(&pk); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка поиска в %s по id=%d: %w", table.Name, id, err)
	}
	return pk, nil
}

func (r *referenceRepo) Insert(ctx context.Context, table ReferenceTable, rec *model.ReferenceRecord) (string, error) {
	pk := uuid.New().String()

	cs := referenceColumns(rec)
	cs.names = append([]string{table.PKColumn}, cs.names...)
	cs.values = append([]any{pk}, cs.values...)

	if _, err := r.db.Exec(ctx, cs.insertSQL(table.Name, ""), cs.values...); err != nil {
		return "", fmt.Errorf("ошибка вставки в %s: %w", table.Name, err)
	}
	return pk, nil
}

func (r *referenceRepo) Update(ctx context.Context, table ReferenceTable, pk string, rec *model.ReferenceRecord) error {
	cs := referenceColumns(rec)
	return execUpdate(ctx, r.db, table.Name, table.PKColumn, pk, cs)
}

func (r *referenceRepo) Count(ctx context.Context, table ReferenceTable) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pgx.Identifier{table.Name}.Sanitize())
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта %s: %w", table.Name, err)
	}
	return count, nil
}

// referenceColumns собирает колонки id + текстовые поля записи.
func referenceColumns(rec *model.ReferenceRecord) *columnSet {
	cs := &columnSet{}
	cs.add("id", rec.UpstreamID)
	for _, v := range rec.Values {
		cs.add(v.Column, v.Value)
	}
	return cs
}
