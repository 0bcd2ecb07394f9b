package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/snapshot"
)

func newTestDirectoryImporter(t *testing.T, db *memDB) (*DirectoryImporter, *snapshot.Store) {
	t.Helper()
	store := newMemSnapshots(t)
	return NewDirectoryImporter(store, db, db.store().SyncState, discardLogger()), store
}

// TestDirectoryImporter_Replace проверяет полную перезаливку users и researcher.
func TestDirectoryImporter_Replace(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	imp, store := newTestDirectoryImporter(t, db)

	db.users = []*model.DirectoryUser{{PkUUID: "old-user"}}
	db.researchers = []*model.Researcher{{PkUUID: "old-researcher"}}

	writeSnapshot(t, store, "users", []any{
		map[string]any{"user_id": "u1", "email": "u1@psu.ac.th", "default_role_id": "3000", "fullname": strings.Repeat("я", 1300)},
		map[string]any{"user_id": 2},
	})
	writeSnapshot(t, store, "researcher", map[string]any{"data": []any{
		map[string]any{"user_id": "r1", "department_id": 15, "department_name": "วิศวกรรม"},
	}})

	counts, err := imp.ImportAll(ctx)
	if err != nil {
		t.Fatalf("Ошибка ImportAll: %v", err)
	}
	if counts.Users != 2 || counts.Researcher != 1 {
		t.Errorf("counts = %+v, ожидалось users=2 researcher=1", counts)
	}

	if len(db.users) != 2 || db.users[0].PkUUID == "old-user" {
		t.Fatalf("users не перезалиты: %d строк", len(db.users))
	}
	u := db.users[0]
	if *u.UserID != "u1" || *u.DefaultRoleID != 3000 {
		t.Errorf("users[0]: %+v", u)
	}
	if got := len([]rune(*u.Fullname)); got != 1255 {
		t.Errorf("fullname: %d символов, ожидалось 1255", got)
	}
	if *db.users[1].UserID != "2" {
		t.Errorf("users[1].user_id = %q", *db.users[1].UserID)
	}

	if len(db.researchers) != 1 || *db.researchers[0].DepartmentID != "15" {
		t.Errorf("researcher: %+v", db.researchers)
	}

	if _, ok := db.syncState[model.StageUserImport]; !ok {
		t.Error("Время перезаливки не записано в sync_state")
	}
}

// TestDirectoryImporter_Rollback проверяет, что ошибка вставки оставляет таблицы без изменений.
func TestDirectoryImporter_Rollback(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	imp, store := newTestDirectoryImporter(t, db)

	db.users = []*model.DirectoryUser{{PkUUID: "old-user"}}
	db.researchers = []*model.Researcher{{PkUUID: "old-researcher"}}

	errInsert := errors.New("нарушение ограничения")
	db.failInsertResearcher = func(r *model.Researcher) error {
		if r.UserID != nil && *r.UserID == "bad" {
			return errInsert
		}
		return nil
	}

	writeSnapshot(t, store, "users", []any{map[string]any{"user_id": "u1"}})
	writeSnapshot(t, store, "researcher", []any{
		map[string]any{"user_id": "r1"},
		map[string]any{"user_id": "bad"},
	})

	_, err := imp.ImportAll(ctx)
	if !errors.Is(err, errInsert) {
		t.Fatalf("Ожидалась ошибка вставки, получено: %v", err)
	}
	if !strings.Contains(err.Error(), "researcher: запись 1") {
		t.Errorf("Текст ошибки: %v", err)
	}

	if len(db.users) != 1 || db.users[0].PkUUID != "old-user" {
		t.Error("users должны остаться в прежнем состоянии")
	}
	if len(db.researchers) != 1 || db.researchers[0].PkUUID != "old-researcher" {
		t.Error("researcher должны остаться в прежнем состоянии")
	}
	if _, ok := db.syncState[model.StageUserImport]; ok {
		t.Error("sync_state не должен обновляться при ошибке")
	}
}

// TestDirectoryImporter_MissingSnapshot проверяет, что без снимка таблицы не очищаются.
func TestDirectoryImporter_MissingSnapshot(t *testing.T) {
	db := newMemDB()
	imp, store := newTestDirectoryImporter(t, db)
	db.users = []*model.DirectoryUser{{PkUUID: "old-user"}}

	writeSnapshot(t, store, "users", []any{})

	_, err := imp.ImportAll(context.Background())
	if !errors.Is(err, ErrSnapshotShape) {
		t.Fatalf("Ожидалась ErrSnapshotShape, получено: %v", err)
	}
	if db.txCount != 0 {
		t.Errorf("Транзакция не должна начинаться, начато %d", db.txCount)
	}
	if len(db.users) != 1 {
		t.Error("users не должны очищаться")
	}
}
