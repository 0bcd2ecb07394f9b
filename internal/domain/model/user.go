// Пакет model — доменные модели TRIUP Gateway.
package model

import "time"

// Идентификаторы ролей PSU.
const (
	// RoleCEO — роль руководителя; назначенную роль CEO сменить нельзя
	RoleCEO = 900
	// RoleAdmin — администратор системы; выдаётся сессиям логина TRIUP
	RoleAdmin = 1000
	// RoleResearchStaff — сотрудник отдела исследований
	RoleResearchStaff = 2000
	// RoleGeneral — обычный пользователь; выдаётся новым пользователям PSU
	RoleGeneral = 3000
	// RoleExternal — внешний соисследователь
	RoleExternal = 4000
	// RoleIncubator — инкубатор данных
	RoleIncubator = 5000
	// RoleOther — прочие
	RoleOther = 6000
)

// roleNames — отображаемые названия ролей (тайский язык, как в интерфейсе TRIUP).
var roleNames = map[int]string{
	RoleCEO:           "CEO",
	RoleAdmin:         "ผู้ดูแลระบบ",
	RoleResearchStaff: "เจ้าหน้าที่วิจัย",
	RoleGeneral:       "ผู้ใช้งานทั่วไป",
	RoleExternal:      "ผู้ร่วมวิจัยภายนอก",
	RoleIncubator:     "ผู้บ่มข้อมูล",
	RoleOther:         "อื่นๆ",
}

// RoleName возвращает название роли или nil для неизвестного id.
func RoleName(id int) *string {
	name, ok := roleNames[id]
	if !ok {
		return nil
	}
	return &name
}

// PSUUser — пользователь институционального логина (psu_user_login)
// с присоединённым профилем (psu_user_profile, связь по username).
type PSUUser struct {
	// ID — локальный id (psu_user_login.user_id)
	ID int64
	// UUID — публичный идентификатор (user_pk_uuid)
	UUID string
	// Username — логин
	Username string
	// RolesID — текущая роль
	RolesID int
	// LastLogin — время последнего входа
	LastLogin *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// Profile — профиль, nil если не найден
	Profile *PSUProfile
}

// PSUProfile — профиль пользователя PSU.
type PSUProfile struct {
	UserID     string
	Fullname   *string
	Email      *string
	Department *string
	Position   *string
}

// RoleLogEntry — запись журнала смены ролей (psu_user_role_log).
type RoleLogEntry struct {
	// LogID — UUID записи
	LogID string
	// UserID — username пользователя
	UserID string
	// OldRole — прежняя роль (строкой)
	OldRole *string
	// NewRole — новая роль (строкой)
	NewRole string
	// ChangedBy — кто изменил роль
	ChangedBy string
	// ChangedAt — время изменения
	ChangedAt time.Time
}

// DirectoryUser — запись таблицы users (перезаливается из users.json).
type DirectoryUser struct {
	PkUUID        string
	UserID        *string
	Email         *string
	CardID        *string
	DefaultRoleID *int64
	Fullname      *string
}

// Researcher — запись таблицы researcher (перезаливается из researcher.json).
type Researcher struct {
	PkUUID         string
	UserID         *string
	Email          *string
	CardID         *string
	DefaultRoleID  *int64
	DepartmentID   *string
	Fullname       *string
	DepartmentName *string
}
