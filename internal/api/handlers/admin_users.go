// admin_users.go — обработчики /api/admin/users endpoints.
// Пользователи PSU: список, получение, журнал ролей, смена роли.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/bigkaa/triup-gateway/internal/api/errors"
	"github.com/bigkaa/triup-gateway/internal/api/generated"
	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/service"
)

// noRoleName — название неизвестной роли.
const noRoleName = "-"

type psuProfileBody struct {
	UserID     string  `json:"user_id"`
	Fullname   *string `json:"fullname"`
	Email      *string `json:"email"`
	Department *string `json:"department"`
	Position   *string `json:"position"`
}

type psuUserBody struct {
	UserID     int64           `json:"user_id"`
	UserPkUUID string          `json:"user_pk_uuid"`
	Username   string          `json:"username"`
	RolesID    int             `json:"roles_id"`
	RoleName   string          `json:"role_name"`
	LastLogin  *time.Time      `json:"last_login"`
	CreatedAt  time.Time       `json:"created_at"`
	Profile    *psuProfileBody `json:"profile"`
}

type roleLogBody struct {
	LogID       string    `json:"log_id"`
	UserID      string    `json:"user_id"`
	OldRole     *string   `json:"old_role"`
	NewRole     string    `json:"new_role"`
	OldRoleName string    `json:"old_role_name"`
	NewRoleName string    `json:"new_role_name"`
	ChangedBy   string    `json:"changed_by"`
	ChangedAt   time.Time `json:"changed_at"`
}

// ListAdminUsers — GET /api/admin/users.
// Возвращает пользователей PSU с названием роли и профилем.
func (h *APIHandler) ListAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminUsers.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка пользователей", slog.String("error", err.Error()))
		apierrors.InternalError(w, err.Error())
		return
	}

	items := make([]psuUserBody, len(users))
	for i, u := range users {
		items[i] = mapPSUUser(u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

// GetAdminUser — GET /api/admin/users/{uuid}.
func (h *APIHandler) GetAdminUser(w http.ResponseWriter, r *http.Request, userUUID generated.UserUuid) {
	id := userUUID.String()

	user, err := h.adminUsers.GetUser(r.Context(), id)
	if err != nil {
		h.writeAdminUserError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": mapPSUUser(user)})
}

// GetRoleLog — GET /api/admin/users/{uuid}/role-log.
// Журнал смены ролей, новые записи первыми; для неизвестного пользователя — пустой.
func (h *APIHandler) GetRoleLog(w http.ResponseWriter, r *http.Request, userUUID generated.UserUuid) {
	id := userUUID.String()

	entries, err := h.adminUsers.RoleLog(r.Context(), id)
	if err != nil {
		h.writeAdminUserError(w, id, err)
		return
	}

	items := make([]roleLogBody, len(entries))
	for i, e := range entries {
		items[i] = mapRoleLogEntry(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

// UpdateUserRole — PUT /api/admin/users/{uuid}/role.
// Тело: {roles_id, changed_by}. Роль CEO изменить нельзя (403).
func (h *APIHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request, userUUID generated.UserUuid) {
	id := userUUID.String()

	body, err := decodeBody(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	rolesID, err := strconv.Atoi(strings.TrimSpace(bodyString(body, "roles_id")))
	if err != nil {
		apierrors.ValidationError(w, "roles_id required")
		return
	}

	updated, err := h.adminUsers.UpdateRole(r.Context(), id, rolesID, bodyString(body, "changed_by"))
	if err != nil {
		h.writeAdminUserError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": mapPSUUser(updated)})
}

// writeAdminUserError сопоставляет ошибку сервиса пользователей с HTTP-ответом.
func (h *APIHandler) writeAdminUserError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "user not found")
	case errors.Is(err, service.ErrForbiddenRole):
		apierrors.Forbidden(w, err.Error())
	default:
		h.logger.Error("Ошибка операции с пользователем",
			slog.String("user_uuid", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, err.Error())
	}
}

// roleName возвращает название роли или "-".
func roleName(id int) string {
	if name := model.RoleName(id); name != nil {
		return *name
	}
	return noRoleName
}

// roleNameOf разбирает роль, сохранённую в журнале строкой.
func roleNameOf(role *string) string {
	if role == nil {
		return noRoleName
	}
	id, err := strconv.Atoi(*role)
	if err != nil {
		return noRoleName
	}
	return roleName(id)
}

// mapPSUUser конвертирует доменную модель в ответ API.
func mapPSUUser(u *model.PSUUser) psuUserBody {
	body := psuUserBody{
		UserID:     u.ID,
		UserPkUUID: u.UUID,
		Username:   u.Username,
		RolesID:    u.RolesID,
		RoleName:   roleName(u.RolesID),
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
	}
	if u.Profile != nil {
		body.Profile = &psuProfileBody{
			UserID:     u.Profile.UserID,
			Fullname:   u.Profile.Fullname,
			Email:      u.Profile.Email,
			Department: u.Profile.Department,
			Position:   u.Profile.Position,
		}
	}
	return body
}

func mapRoleLogEntry(e *model.RoleLogEntry) roleLogBody {
	return roleLogBody{
		LogID:       e.LogID,
		UserID:      e.UserID,
		OldRole:     e.OldRole,
		NewRole:     e.NewRole,
		OldRoleName: roleNameOf(e.OldRole),
		NewRoleName: roleNameOf(&e.NewRole),
		ChangedBy:   e.ChangedBy,
		ChangedAt:   e.ChangedAt,
	}
}
