// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrNoSession — нет ни одной сессии, токен для запросов к TRIUP взять неоткуда.
	ErrNoSession = errors.New("no session token login found")
	// ErrUpstreamAuth — TRIUP отклонил логин (ответ не 2xx).
	ErrUpstreamAuth = errors.New("login failed")
	// ErrTokenNotFound — TRIUP ответил успешно, но без access_token.
	ErrTokenNotFound = errors.New("token not found")
	// ErrSessionInvalid — токен отсутствует или не соответствует ни одной сессии.
	ErrSessionInvalid = errors.New("invalid token")
	// ErrSessionExpired — срок действия сессии истёк.
	ErrSessionExpired = errors.New("expired")
	// ErrForbiddenRole — роль CEO изменить нельзя.
	ErrForbiddenRole = errors.New("CEO role cannot be changed")
	// ErrSnapshotShape — снимок отсутствует или имеет неожиданную структуру.
	ErrSnapshotShape = errors.New("некорректный снимок")
)

// snapshotErr — ошибка чтения снимка; сохраняет исходный текст
// (например, "cofunders.json: data is not array") и сопоставляется с ErrSnapshotShape.
type snapshotErr struct {
	err error
}

func (e *snapshotErr) Error() string { return e.err.Error() }

func (e *snapshotErr) Unwrap() []error { return []error{ErrSnapshotShape, e.err} }

// snapshotError помечает ошибку чтения снимка как ErrSnapshotShape.
func snapshotError(err error) error {
	if err == nil {
		return nil
	}
	return &snapshotErr{err: err}
}
