// auth.go — обработчики логина и проверки сессии.
// POST /api/login-api-triup/login — логин через TRIUP, создание сессии
// GET  /api/login-api-triup/me — проверка сессии по заголовку Authorization
// POST /api/psu_auth/login — институциональный логин PSU
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/triup-gateway/internal/api/errors"
	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/service"
)

// Сообщения ответов, на которые опирается фронтенд.
const (
	msgCredentialsRequired = "email/username and password required"
	msgNoToken             = "no token"
	msgLoginInternal       = "internal error 01"
	msgMeInternal          = "internal error 02"
)

type sessionBody struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
	RolesID   int       `json:"roles_id"`
}

type sessionUserBody struct {
	Username   string `json:"username"`
	RolesID    *int   `json:"roles_id,omitempty"`
	UserPkUUID string `json:"user_pk_uuid,omitempty"`
}

type loginResponse struct {
	Success bool            `json:"success"`
	Session sessionBody     `json:"session"`
	User    sessionUserBody `json:"user"`
}

type meResponse struct {
	Success   bool            `json:"success"`
	User      sessionUserBody `json:"user"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Login — POST /api/login-api-triup/login.
// Тело: {email | username, password} в JSON, urlencoded или multipart.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	identifier, password, ok := readCredentials(w, r)
	if !ok {
		return
	}

	sess, err := h.auth.Login(r.Context(), identifier, password)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Session: newSessionBody(sess),
		User:    sessionUserBody{Username: sess.Username},
	})
}

// PSULogin — POST /api/psu_auth/login.
// Контракт совпадает с Login; в ответе дополнительно роль и UUID пользователя PSU.
func (h *APIHandler) PSULogin(w http.ResponseWriter, r *http.Request) {
	identifier, password, ok := readCredentials(w, r)
	if !ok {
		return
	}

	sess, user, err := h.auth.PSULogin(r.Context(), identifier, password)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	rolesID := user.RolesID
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Session: newSessionBody(sess),
		User: sessionUserBody{
			Username:   user.Username,
			RolesID:    &rolesID,
			UserPkUUID: user.UUID,
		},
	})
}

// Me — GET /api/login-api-triup/me.
// Заголовок Authorization: "Bearer <token>" или сам токен.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if header == "" {
		apierrors.Unauthorized(w, msgNoToken)
		return
	}

	sess, err := h.auth.Me(r.Context(), service.StripBearer(header))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionInvalid), errors.Is(err, service.ErrSessionExpired):
			apierrors.Unauthorized(w, err.Error())
		default:
			h.logger.Error("Ошибка проверки сессии", slog.String("error", err.Error()))
			apierrors.InternalError(w, msgMeInternal)
		}
		return
	}

	rolesID := sess.RolesID
	writeJSON(w, http.StatusOK, meResponse{
		Success:   true,
		User:      sessionUserBody{Username: sess.Username, RolesID: &rolesID},
		ExpiresAt: sess.ExpiresAt,
	})
}

// readCredentials извлекает логин и пароль из тела запроса.
// При отсутствии любого из них пишет 400 и возвращает ok = false.
func readCredentials(w http.ResponseWriter, r *http.Request) (identifier, password string, ok bool) {
	body, err := decodeBody(r)
	if err != nil {
		apierrors.ValidationError(w, msgCredentialsRequired)
		return "", "", false
	}

	identifier = strings.TrimSpace(bodyString(body, "email", "username"))
	password = strings.TrimSpace(bodyString(body, "password"))
	if identifier == "" || password == "" {
		apierrors.ValidationError(w, msgCredentialsRequired)
		return "", "", false
	}
	return identifier, password, true
}

// writeLoginError сопоставляет ошибку логина с HTTP-ответом.
func (h *APIHandler) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, msgCredentialsRequired)
	case errors.Is(err, service.ErrUpstreamAuth):
		apierrors.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrTokenNotFound):
		apierrors.InternalError(w, err.Error())
	default:
		h.logger.Error("Ошибка логина", slog.String("error", err.Error()))
		apierrors.InternalError(w, msgLoginInternal)
	}
}

func newSessionBody(sess *model.Session) sessionBody {
	return sessionBody{
		ID:        sess.Token,
		ExpiresAt: sess.ExpiresAt,
		RolesID:   sess.RolesID,
	}
}
