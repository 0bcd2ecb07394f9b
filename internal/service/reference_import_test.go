package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/snapshot"
)

// writeReferenceSnapshots записывает пустые снимки всех справочников,
// затем снимки из overrides (ключ — имя снимка без .json).
func writeReferenceSnapshots(t *testing.T, store *snapshot.Store, overrides map[string]any) {
	t.Helper()
	for _, table := range ReferenceTables {
		key := strings.TrimSuffix(table.File, ".json")
		if data, ok := overrides[key]; ok {
			writeSnapshot(t, store, key, data)
			continue
		}
		if table.Shape == ShapeObject {
			writeSnapshot(t, store, key, map[string]any{})
		} else {
			writeSnapshot(t, store, key, []any{})
		}
	}
}

func newTestReferenceImporter(t *testing.T, db *memDB) (*ReferenceImporter, *snapshot.Store) {
	t.Helper()
	store := newMemSnapshots(t)
	st := db.store()
	return NewReferenceImporter(store, st.References, st.SyncState, discardLogger()), store
}

// refValue возвращает значение колонки строки справочника.
func refValue(row *memRef, column string) *string {
	for _, v := range row.values {
		if v.Column == column {
			return v.Value
		}
	}
	return nil
}

// TestReferenceTables проверяет состав справочников.
func TestReferenceTables(t *testing.T) {
	if len(ReferenceTables) != 13 {
		t.Fatalf("len(ReferenceTables) = %d, ожидалось 13", len(ReferenceTables))
	}
	tables := make(map[string]ReferenceTable)
	for _, rt := range ReferenceTables {
		tables[rt.Table] = rt
	}

	if rt := tables["address"]; rt.File != "province.json" || rt.Fields[0].Source != "name" || rt.Fields[0].Column != "title" {
		t.Errorf("address: %+v", rt)
	}
	if rt := tables["funder"]; rt.File != "funders.json" || rt.Shape != ShapeObject {
		t.Errorf("funder: %+v", rt)
	}
	if rt := tables["roles"]; rt.Fields[0].Column != "name_th" {
		t.Errorf("roles: %+v", rt)
	}
}

// TestSortObjectKeys проверяет порядок ключей объекта funders.
func TestSortObjectKeys(t *testing.T) {
	keys := []string{"b", "10", "a", "2", "1"}
	sortObjectKeys(keys)
	if got := strings.Join(keys, ","); got != "1,2,10,a,b" {
		t.Errorf("sortObjectKeys = %s, ожидалось 1,2,10,a,b", got)
	}
}

// TestReferenceImporter_Upsert проверяет upsert по nullable id.
func TestReferenceImporter_Upsert(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	imp, store := newTestReferenceImporter(t, db)

	// В таблице уже есть строка с id = 5
	existingPK, err := db.store().References.Insert(ctx, ReferenceTables[0].target(), &model.ReferenceRecord{
		UpstreamID: ptr(int64(5)),
		Values:     []model.ColumnValue{{Column: "name", Value: ptr("Alpha")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	writeReferenceSnapshots(t, store, map[string]any{
		"cofunders": map[string]any{"data": []any{
			map[string]any{"id": 5, "name": "Beta"},
			map[string]any{"name": "без id"},
			map[string]any{"id": nil, "name": "null id"},
			map[string]any{"id": "7", "name": 123},
		}},
	})

	result, err := imp.ImportAll(ctx)
	if err != nil {
		t.Fatalf("Ошибка ImportAll: %v", err)
	}
	if result.Counts["cofunders"] != 4 {
		t.Errorf("counts[cofunders] = %d, ожидалось 4", result.Counts["cofunders"])
	}
	if len(result.Counts) != 13 {
		t.Errorf("В counts %d ключей, ожидалось 13", len(result.Counts))
	}
	if result.FinishedAt.Before(result.StartedAt) {
		t.Error("FinishedAt раньше StartedAt")
	}

	rows := db.refs["cofunders"]
	if len(rows) != 4 {
		t.Fatalf("Строк cofunders: %d, ожидалось 4", len(rows))
	}
	if rows[0].pk != existingPK || *refValue(rows[0], "name") != "Beta" {
		t.Errorf("Строка id=5 не обновлена на месте: pk=%s name=%v", rows[0].pk, refValue(rows[0], "name"))
	}
	if rows[3].id == nil || *rows[3].id != 7 || *refValue(rows[3], "name") != "123" {
		t.Errorf("Строка id=7: id=%v name=%v", rows[3].id, refValue(rows[3], "name"))
	}

	// Повторный импорт: строки с id обновляются, без id — вставляются снова
	if _, err := imp.ImportAll(ctx); err != nil {
		t.Fatalf("Ошибка повторного ImportAll: %v", err)
	}
	if n := len(db.refs["cofunders"]); n != 6 {
		t.Errorf("Строк cofunders после повторного импорта: %d, ожидалось 6", n)
	}

	if _, ok := db.syncState[model.StageReferenceImport]; !ok {
		t.Error("Время импорта справочников не записано в sync_state")
	}
}

// TestReferenceImporter_SkipsInvalidItems проверяет пропуск записей
// с нецелым id и элементов, не являющихся объектами.
func TestReferenceImporter_SkipsInvalidItems(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	imp, store := newTestReferenceImporter(t, db)

	writeReferenceSnapshots(t, store, map[string]any{
		"cofunders": []any{
			map[string]any{"id": "12a", "name": "буквы"},
			map[string]any{"id": 1.5, "name": "дробь"},
			"строка",
			42,
			map[string]any{"id": 8, "name": "ok"},
		},
	})

	for range 2 {
		result, err := imp.ImportAll(ctx)
		if err != nil {
			t.Fatalf("Ошибка ImportAll: %v", err)
		}
		if result.Counts["cofunders"] != 1 {
			t.Errorf("counts[cofunders] = %d, ожидалось 1", result.Counts["cofunders"])
		}
	}

	rows := db.refs["cofunders"]
	if len(rows) != 1 {
		t.Fatalf("Строк cofunders: %d, ожидалась 1", len(rows))
	}
	if rows[0].id == nil || *rows[0].id != 8 {
		t.Errorf("Сохранена строка id=%v, ожидалась 8", rows[0].id)
	}
}

// TestReferenceImporter_FundersObject проверяет импорт funders из объекта.
func TestReferenceImporter_FundersObject(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	imp, store := newTestReferenceImporter(t, db)

	writeReferenceSnapshots(t, store, map[string]any{
		"funders": map[string]any{"data": map[string]any{
			"10":    map[string]any{"id": 10, "title": "десятый"},
			"2":     map[string]any{"id": 2, "title": "второй"},
			"extra": map[string]any{"title": "без id"},
		}},
		"province": []any{
			map[string]any{"id": 1, "name": "Bangkok"},
		},
	})

	result, err := imp.ImportAll(ctx)
	if err != nil {
		t.Fatalf("Ошибка ImportAll: %v", err)
	}
	if result.Counts["funder"] != 3 {
		t.Errorf("counts[funder] = %d, ожидалось 3", result.Counts["funder"])
	}

	rows := db.refs["funder"]
	titles := make([]string, len(rows))
	for i, row := range rows {
		titles[i] = *refValue(row, "title")
	}
	if got := strings.Join(titles, ","); got != "второй,десятый,без id" {
		t.Errorf("Порядок funders: %s", got)
	}

	address := db.refs["address"]
	if len(address) != 1 || *refValue(address[0], "title") != "Bangkok" {
		t.Errorf("address: name не перенесён в title")
	}
}

// TestReferenceImporter_Truncation проверяет обрезку текстов до 255 символов.
func TestReferenceImporter_Truncation(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	imp, store := newTestReferenceImporter(t, db)

	long := strings.Repeat("ก", 300)
	writeReferenceSnapshots(t, store, map[string]any{
		"roles": []any{map[string]any{"id": 1, "name_th": long}},
	})

	if _, err := imp.ImportAll(ctx); err != nil {
		t.Fatalf("Ошибка ImportAll: %v", err)
	}

	value := refValue(db.refs["roles"][0], "name_th")
	if value == nil || *value != strings.Repeat("ก", 255) {
		t.Errorf("name_th не обрезан до 255 символов")
	}
}

// TestReferenceImporter_SnapshotErrors проверяет прерывание импорта на первом
// отсутствующем или некорректном снимке.
func TestReferenceImporter_SnapshotErrors(t *testing.T) {
	t.Run("снимок отсутствует", func(t *testing.T) {
		db := newMemDB()
		imp, store := newTestReferenceImporter(t, db)
		writeSnapshot(t, store, "cofunders", []any{map[string]any{"id": 1, "name": "a"}})

		_, err := imp.ImportAll(context.Background())
		if !errors.Is(err, ErrSnapshotShape) || !errors.Is(err, snapshot.ErrNotFound) {
			t.Fatalf("Ожидалась ErrSnapshotShape + ErrNotFound, получено: %v", err)
		}
		if !strings.Contains(err.Error(), "departments.json") {
			t.Errorf("Текст ошибки не содержит имя файла: %v", err)
		}
		// Справочники до ошибки уже записаны
		if len(db.refs["cofunders"]) != 1 {
			t.Errorf("cofunders: %d строк, ожидалась 1", len(db.refs["cofunders"]))
		}
		if _, ok := db.syncState[model.StageReferenceImport]; ok {
			t.Error("sync_state не должен обновляться при ошибке")
		}
	})

	t.Run("данные не массив", func(t *testing.T) {
		db := newMemDB()
		imp, store := newTestReferenceImporter(t, db)
		writeReferenceSnapshots(t, store, map[string]any{
			"cofunders": map[string]any{"data": "oops"},
		})

		_, err := imp.ImportAll(context.Background())
		if !errors.Is(err, ErrSnapshotShape) || !errors.Is(err, snapshot.ErrNotArray) {
			t.Fatalf("Ожидалась ErrSnapshotShape + ErrNotArray, получено: %v", err)
		}
		if err.Error() != "cofunders.json: data is not array" {
			t.Errorf("Текст ошибки: %q", err.Error())
		}
	})

	t.Run("funders не объект", func(t *testing.T) {
		db := newMemDB()
		imp, store := newTestReferenceImporter(t, db)
		writeReferenceSnapshots(t, store, map[string]any{
			"funders": []any{map[string]any{"id": 1}},
		})

		_, err := imp.ImportAll(context.Background())
		if !errors.Is(err, snapshot.ErrNotObject) {
			t.Fatalf("Ожидалась ErrNotObject, получено: %v", err)
		}
	})
}
