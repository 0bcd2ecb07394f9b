package model

import "time"

// SessionTTL — время жизни сессии от момента создания.
const SessionTTL = time.Hour

// Session — локальная сессия, выданная после успешного логина в TRIUP.
// Хранится в таблице session; истечение проверяется лениво при чтении.
type Session struct {
	// ID — локальный id
	ID int64
	// UUID — session_pk_uuid
	UUID string
	// Username — идентификатор, с которым выполнен вход
	Username string
	// Token — строка токена (служит id сессии для клиента)
	Token string
	// RolesID — роль, выданная сессии
	RolesID int
	// ExpiresAt — момент истечения
	ExpiresAt time.Time
	// CreatedAt — момент создания
	CreatedAt time.Time
}

// Expired сообщает, истекла ли сессия к моменту now.
// Граница включительная: при ExpiresAt == now сессия уже недействительна.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
