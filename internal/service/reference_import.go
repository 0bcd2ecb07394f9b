// reference_import.go — импорт справочников TRIUP из снимков (import-server-fix).
//
// Каждый справочник описан декларативно (ReferenceTable): файл снимка,
// таблица, колонка первичного ключа, поле с id TRIUP и отображение полей.
// Все 13 справочников обрабатываются одной процедурой upsertReference:
//   - id отсутствует или null → всегда новая строка;
//   - строка с таким id есть → обновление на месте;
//   - иначе → новая строка с новым UUID.
//
// Первый же ошибочный файл прерывает импорт остальных.
//
// Prometheus-метрики:
//   - tg_reference_records_total — обработанные записи справочников (по таблице и операции)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/normalize"
	"github.com/bigkaa/triup-gateway/internal/repository"
	"github.com/bigkaa/triup-gateway/internal/snapshot"
)

var referenceRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tg_reference_records_total",
	Help: "Количество обработанных записей справочников",
}, []string{"table", "operation"}) // operation: inserted, updated

// referenceTextMax — максимальная длина текстовых колонок справочников.
const referenceTextMax = 255

// SnapshotShape — ожидаемая структура данных снимка после разворачивания.
type SnapshotShape int

const (
	// ShapeArray — массив записей.
	ShapeArray SnapshotShape = iota
	// ShapeObject — объект, значения которого являются записями.
	ShapeObject
)

// FieldMapping — отображение поля записи снимка на колонку таблицы.
type FieldMapping struct {
	Source string
	Column string
}

// ReferenceTable — описание одного справочника.
type ReferenceTable struct {
	// Key — ключ в сводке импорта
	Key string
	// File — имя файла снимка
	File string
	// Table — таблица PostgreSQL
	Table string
	// PKColumn — колонка UUID первичного ключа
	PKColumn string
	// IDField — поле записи с id TRIUP
	IDField string
	// Shape — структура данных снимка
	Shape SnapshotShape
	// Fields — текстовые поля (обрезаются до 255 символов)
	Fields []FieldMapping
}

// target возвращает описание таблицы для репозитория.
func (t ReferenceTable) target() repository.ReferenceTable {
	return repository.ReferenceTable{Name: t.Table, PKColumn: t.PKColumn}
}

// refTable — справочник с массивом записей и одним текстовым полем.
func refTable(key, file, table, pk, field, column string) ReferenceTable {
	return ReferenceTable{
		Key:      key,
		File:     file,
		Table:    table,
		PKColumn: pk,
		IDField:  "id",
		Shape:    ShapeArray,
		Fields:   []FieldMapping{{Source: field, Column: column}},
	}
}

// ReferenceTables — справочники в порядке импорта.
var ReferenceTables = []ReferenceTable{
	refTable("cofunders", "cofunders.json", "cofunders", "cof_pk_uuid", "name", "name"),
	refTable("departments", "departments.json", "departments", "dep_pk_uuid", "name", "name"),
	refTable("educationlevels", "educationlevels.json", "educationlevels", "ecl_pk_uuid", "title", "title"),
	refTable("findingdetaillists", "findingdetaillists.json", "findingdetaillists", "fdl_pk_uuid", "title", "title"),
	{
		Key:      "funder",
		File:     "funders.json",
		Table:    "funder",
		PKColumn: "fun_pk_uuid",
		IDField:  "id",
		Shape:    ShapeObject,
		Fields:   []FieldMapping{{Source: "title", Column: "title"}},
	},
	refTable("address", "province.json", "address", "ad_pk_uuid", "name", "title"),
	refTable("groupstudies", "groupstudies.json", "groupstudies", "group_pk_uuid", "title", "title"),
	refTable("mainstudies", "mainstudies.json", "mainstudies", "main_pk_uuid", "title", "title"),
	refTable("substudies", "substudies.json", "substudies", "sub_pk_uuid", "title", "title"),
	refTable("target_audiences", "target_audiences.json", "target_audiences", "target_aud_pk_uuid", "title", "title"),
	refTable("time_settings", "time_settings.json", "time_settings", "ts_pk_uuid", "title", "title"),
	refTable("roles", "roles.json", "roles", "roles_pk_uuid", "name_th", "name_th"),
	refTable("prefixs", "prefixs.json", "prefixs", "prefixs_pk_uuid", "prefix_name", "prefix_name"),
}

// ReferenceImporter — сервис импорта справочников.
type ReferenceImporter struct {
	store         *snapshot.Store
	refRepo       repository.ReferenceRepository
	syncStateRepo repository.SyncStateRepository
	tables        []ReferenceTable
	now           func() time.Time
	logger        *slog.Logger
}

// NewReferenceImporter создаёт сервис импорта справочников.
func NewReferenceImporter(
	store *snapshot.Store,
	refRepo repository.ReferenceRepository,
	syncStateRepo repository.SyncStateRepository,
	logger *slog.Logger,
) *ReferenceImporter {
	return &ReferenceImporter{
		store:         store,
		refRepo:       refRepo,
		syncStateRepo: syncStateRepo,
		tables:        ReferenceTables,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "reference_import")),
	}
}

// ImportAll импортирует все справочники по порядку.
// Возвращает количество обработанных записей по ключу справочника.
func (s *ReferenceImporter) ImportAll(ctx context.Context) (*model.ReferenceImportResult, error) {
	result := &model.ReferenceImportResult{
		StartedAt: s.now().UTC(),
		Counts:    make(map[string]int, len(s.tables)),
	}

	for _, t := range s.tables {
		count, err := s.importTable(ctx, t)
		if err != nil {
			return nil, err
		}
		result.Counts[t.Key] = count
	}

	result.FinishedAt = s.now().UTC()
	if err := s.syncStateRepo.Mark(ctx, model.StageReferenceImport, result.FinishedAt); err != nil {
		s.logger.Warn("Ошибка обновления last_reference_import_at", slog.String("error", err.Error()))
	}

	s.logger.Info("Импорт справочников завершён", slog.Any("counts", result.Counts))
	return result, nil
}

// importTable читает снимок справочника и применяет upsert к каждой записи.
func (s *ReferenceImporter) importTable(ctx context.Context, t ReferenceTable) (int, error) {
	items, err := s.readItems(ctx, t)
	if err != nil {
		return 0, snapshotError(err)
	}

	count := 0
	for i, item := range items {
		rec, ok := normalize.AsRecord(item)
		if !ok {
			s.logger.Warn("Запись справочника не является объектом, пропущена",
				slog.String("table", t.Table),
				slog.Int("index", i),
			)
			referenceRecordsTotal.WithLabelValues(t.Table, "skipped").Inc()
			continue
		}
		// id есть, но не приводится к целому: такую запись нельзя найти повторно
		if rec.Has(t.IDField) && rec.Int(t.IDField) == nil {
			s.logger.Warn("Некорректный id записи справочника, запись пропущена",
				slog.String("table", t.Table),
				slog.Int("index", i),
				slog.Any("id", rec.Value(t.IDField)),
			)
			referenceRecordsTotal.WithLabelValues(t.Table, "skipped").Inc()
			continue
		}
		if err := s.upsertReference(ctx, t, rec); err != nil {
			return count, fmt.Errorf("%s: запись %d: %w", t.Table, i, err)
		}
		count++
	}
	return count, nil
}

// readItems возвращает записи снимка в порядке обработки.
func (s *ReferenceImporter) readItems(ctx context.Context, t ReferenceTable) ([]any, error) {
	if t.Shape == ShapeArray {
		return s.store.ReadArray(ctx, t.File)
	}

	obj, err := s.store.ReadObject(ctx, t.File)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sortObjectKeys(keys)

	items := make([]any, len(keys))
	for i, k := range keys {
		items[i] = obj[k]
	}
	return items, nil
}

// sortObjectKeys упорядочивает ключи объекта: сначала целые неотрицательные
// по возрастанию значения, затем остальные лексикографически.
func sortObjectKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ni, errI := strconv.ParseUint(keys[i], 10, 32)
		nj, errJ := strconv.ParseUint(keys[j], 10, 32)
		switch {
		case errI == nil && errJ == nil:
			return ni < nj
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}

// upsertReference — общая процедура upsert записи справочника по nullable id.
func (s *ReferenceImporter) upsertReference(ctx context.Context, t ReferenceTable, rec *normalize.Record) error {
	ref := &model.ReferenceRecord{
		UpstreamID: rec.Int(t.IDField),
		Values:     make([]model.ColumnValue, len(t.Fields)),
	}
	for i, f := range t.Fields {
		ref.Values[i] = model.ColumnValue{Column: f.Column, Value: rec.Text(f.Source, referenceTextMax)}
	}
	s.logTruncated(t, rec, ref.UpstreamID)

	target := t.target()

	if ref.UpstreamID != nil {
		pk, err := s.refRepo.FindByUpstreamID(ctx, target, *ref.UpstreamID)
		switch {
		case err == nil:
			if err := s.refRepo.Update(ctx, target, pk, ref); err != nil {
				return err
			}
			referenceRecordsTotal.WithLabelValues(t.Table, "updated").Inc()
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
	}

	if _, err := s.refRepo.Insert(ctx, target, ref); err != nil {
		return err
	}
	referenceRecordsTotal.WithLabelValues(t.Table, "inserted").Inc()
	return nil
}

// logTruncated логирует каждое обрезанное поле записи.
func (s *ReferenceImporter) logTruncated(t ReferenceTable, rec *normalize.Record, id *int64) {
	for _, source := range rec.Truncated() {
		column := source
		for _, f := range t.Fields {
			if f.Source == source {
				column = f.Column
			}
		}
		attrs := []any{
			slog.String("table", t.Table),
			slog.String("column", column),
			slog.Int("max_len", referenceTextMax),
		}
		if id != nil {
			attrs = append(attrs, slog.Int64("id", *id))
		}
		s.logger.Warn("Значение обрезано", attrs...)
	}
}
