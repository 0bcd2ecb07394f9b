package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

func newTestAdminUserService(db *memDB) *AdminUserService {
	st := db.store()
	return NewAdminUserService(db, st.PSUUsers, st.RoleLog, discardLogger())
}

// TestAdminUserService_UpdateRole проверяет смену роли с записью в журнал.
func TestAdminUserService_UpdateRole(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc := newTestAdminUserService(db)
	user := db.addPSUUser("somchai", model.RoleGeneral)

	updated, err := svc.UpdateRole(ctx, user.UUID, model.RoleResearchStaff, "admin")
	if err != nil {
		t.Fatalf("Ошибка UpdateRole: %v", err)
	}
	if updated.RolesID != model.RoleResearchStaff {
		t.Errorf("RolesID = %d, ожидалось %d", updated.RolesID, model.RoleResearchStaff)
	}

	if len(db.roleLog) != 1 {
		t.Fatalf("Записей журнала: %d, ожидалась 1", len(db.roleLog))
	}
	entry := db.roleLog[0]
	if entry.UserID != "somchai" || *entry.OldRole != "3000" || entry.NewRole != "2000" || entry.ChangedBy != "admin" {
		t.Errorf("Запись журнала: %+v", entry)
	}

	// Автор по умолчанию
	if _, err := svc.UpdateRole(ctx, user.UUID, model.RoleExternal, ""); err != nil {
		t.Fatal(err)
	}
	log, err := svc.RoleLog(ctx, user.UUID)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 || log[0].ChangedBy != "unknown" || log[0].NewRole != "4000" {
		t.Errorf("Журнал (новые первыми): %+v", log)
	}
}

// TestAdminUserService_UpdateRoleCEO проверяет запрет смены роли CEO.
func TestAdminUserService_UpdateRoleCEO(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc := newTestAdminUserService(db)
	ceo := db.addPSUUser("ceo", model.RoleCEO)

	if _, err := svc.UpdateRole(ctx, ceo.UUID, model.RoleAdmin, "admin"); !errors.Is(err, ErrForbiddenRole) {
		t.Fatalf("Ожидалась ErrForbiddenRole, получено: %v", err)
	}

	got, err := svc.GetUser(ctx, ceo.UUID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RolesID != model.RoleCEO {
		t.Errorf("Роль CEO изменена на %d", got.RolesID)
	}
	if len(db.roleLog) != 0 {
		t.Errorf("Журнал не должен пополняться, записей: %d", len(db.roleLog))
	}
}

// TestAdminUserService_UpdateRoleRollback проверяет, что ошибка журнала отменяет смену роли.
func TestAdminUserService_UpdateRoleRollback(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc := newTestAdminUserService(db)
	user := db.addPSUUser("somchai", model.RoleGeneral)

	errLog := errors.New("журнал недоступен")
	db.failRoleLog = errLog

	if _, err := svc.UpdateRole(ctx, user.UUID, model.RoleAdmin, "admin"); !errors.Is(err, errLog) {
		t.Fatalf("Ожидалась ошибка журнала, получено: %v", err)
	}
	got, _ := svc.GetUser(ctx, user.UUID)
	if got.RolesID != model.RoleGeneral {
		t.Errorf("Роль изменена несмотря на ошибку: %d", got.RolesID)
	}
}

// TestAdminUserService_NotFound проверяет неизвестного пользователя.
func TestAdminUserService_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestAdminUserService(newMemDB())

	if _, err := svc.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser: ожидалась ErrNotFound, получено: %v", err)
	}
	if _, err := svc.UpdateRole(ctx, "missing", model.RoleAdmin, "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRole: ожидалась ErrNotFound, получено: %v", err)
	}

	log, err := svc.RoleLog(ctx, "missing")
	if err != nil || log == nil || len(log) != 0 {
		t.Errorf("RoleLog: ожидался пустой журнал, получено %v, %v", log, err)
	}

	users, err := svc.ListUsers(ctx)
	if err != nil || users == nil || len(users) != 0 {
		t.Errorf("ListUsers: ожидался пустой список, получено %v, %v", users, err)
	}
}
