package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/triupclient"
)

// newMockLoginServer создаёт сервер логина TRIUP.
// admin/secret — успешный вход, nobody/secret — 2xx без токена, остальные — 401.
func newMockLoginServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/service/api/login" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		email, password := r.FormValue("email"), r.FormValue("password")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case password != "secret":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthorized"}`))
		case email == "nobody":
			_, _ = w.Write([]byte(`{}`))
		default:
			_, _ = w.Write([]byte(`{"access_token":"tok-` + email + `","token_type":"bearer"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fixedClock — управляемые часы для проверки срока действия сессий.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func newTestAuthService(t *testing.T, db *memDB) (*AuthService, *fixedClock) {
	t.Helper()
	srv := newMockLoginServer(t)
	client := triupclient.New(srv.URL+"/service/api", 5*time.Second, discardLogger())
	st := db.store()
	svc := NewAuthService(client, st.Sessions, st.PSUUsers, "", 100, discardLogger())
	clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc.now = clock.now
	return svc, clock
}

// TestAuthService_Login проверяет создание сессии после входа в TRIUP.
func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc, clock := newTestAuthService(t, db)

	sess, err := svc.Login(ctx, " admin ", "secret")
	if err != nil {
		t.Fatalf("Ошибка Login: %v", err)
	}
	if sess.Token != "tok-admin" || sess.Username != "admin" {
		t.Errorf("Сессия: token=%q username=%q", sess.Token, sess.Username)
	}
	if sess.RolesID != model.RoleAdmin {
		t.Errorf("RolesID = %d, ожидалось %d", sess.RolesID, model.RoleAdmin)
	}
	if !sess.ExpiresAt.Equal(clock.t.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, ожидалось %v", sess.ExpiresAt, clock.t.Add(time.Hour))
	}
	if len(db.sessions) != 1 {
		t.Errorf("Сессий в БД: %d, ожидалась 1", len(db.sessions))
	}
}

// TestAuthService_LoginErrors проверяет ошибки входа.
func TestAuthService_LoginErrors(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc, _ := newTestAuthService(t, db)

	tests := []struct {
		name     string
		user     string
		password string
		wantErr  error
		wantText string
	}{
		{"пустой пароль", "admin", "", ErrValidation, ""},
		{"пустой логин", "  ", "secret", ErrValidation, ""},
		{"TRIUP отклонил", "admin", "wrong", ErrUpstreamAuth, "login failed: 401"},
		{"нет токена", "nobody", "secret", ErrTokenNotFound, "token not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.user, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Ожидалась %v, получено: %v", tt.wantErr, err)
			}
			if tt.wantText != "" && err.Error() != tt.wantText {
				t.Errorf("Текст ошибки %q, ожидалось %q", err.Error(), tt.wantText)
			}
		})
	}

	if len(db.sessions) != 0 {
		t.Errorf("Сессий в БД: %d, ожидалось 0", len(db.sessions))
	}
}

// TestAuthService_MeExpiry проверяет ленивое истечение сессии.
func TestAuthService_MeExpiry(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc, clock := newTestAuthService(t, db)

	sess, err := svc.Login(ctx, "admin", "secret")
	if err != nil {
		t.Fatal(err)
	}
	start := clock.t

	clock.t = start.Add(59 * time.Minute)
	got, err := svc.Me(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Через 59 минут сессия должна быть действительна: %v", err)
	}
	if got.Username != "admin" || got.RolesID != model.RoleAdmin {
		t.Errorf("Me: %+v", got)
	}

	clock.t = start.Add(time.Hour)
	if _, err := svc.Me(ctx, sess.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Ровно через час ожидалась ErrSessionExpired, получено: %v", err)
	}

	clock.t = start.Add(61 * time.Minute)
	if _, err := svc.Me(ctx, sess.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Через 61 минуту ожидалась ErrSessionExpired, получено: %v", err)
	}
}

// TestAuthService_MeInvalid проверяет неизвестный и пустой токен.
func TestAuthService_MeInvalid(t *testing.T) {
	db := newMemDB()
	svc, _ := newTestAuthService(t, db)

	for _, token := range []string{"", "unknown"} {
		if _, err := svc.Me(context.Background(), token); !errors.Is(err, ErrSessionInvalid) {
			t.Errorf("Me(%q): ожидалась ErrSessionInvalid, получено: %v", token, err)
		}
	}
}

// TestAuthService_MeFromRepository проверяет чтение сессии из БД при промахе кэша.
func TestAuthService_MeFromRepository(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc, clock := newTestAuthService(t, db)

	if err := db.store().Sessions.Create(ctx, &model.Session{
		Username:  "other-replica",
		Token:     "tok-db",
		RolesID:   model.RoleAdmin,
		ExpiresAt: clock.t.Add(30 * time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Me(ctx, "tok-db")
	if err != nil {
		t.Fatalf("Ошибка Me: %v", err)
	}
	if got.Username != "other-replica" {
		t.Errorf("Username = %q", got.Username)
	}
	if svc.cache.Len() != 1 {
		t.Errorf("Сессия должна попасть в кэш, в кэше %d", svc.cache.Len())
	}
}

// TestAuthService_PSULogin проверяет институциональный вход.
func TestAuthService_PSULogin(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc, clock := newTestAuthService(t, db)

	t.Run("первый вход создаёт пользователя", func(t *testing.T) {
		sess, user, err := svc.PSULogin(ctx, "somchai", "secret")
		if err != nil {
			t.Fatalf("Ошибка PSULogin: %v", err)
		}
		if user.RolesID != model.RoleGeneral || sess.RolesID != model.RoleGeneral {
			t.Errorf("Роль нового пользователя: user=%d session=%d", user.RolesID, sess.RolesID)
		}
		if user.LastLogin == nil || !user.LastLogin.Equal(clock.t) {
			t.Errorf("LastLogin = %v", user.LastLogin)
		}
		if len(db.psuUsers) != 1 {
			t.Errorf("Пользователей PSU: %d", len(db.psuUsers))
		}
	})

	t.Run("сессия получает текущую роль", func(t *testing.T) {
		db.addPSUUser("ceo", model.RoleCEO)
		sess, _, err := svc.PSULogin(ctx, "ceo", "secret")
		if err != nil {
			t.Fatalf("Ошибка PSULogin: %v", err)
		}
		if sess.RolesID != model.RoleCEO {
			t.Errorf("RolesID = %d, ожидалось %d", sess.RolesID, model.RoleCEO)
		}
	})

	t.Run("отказ TRIUP не создаёт пользователя", func(t *testing.T) {
		before := len(db.psuUsers)
		if _, _, err := svc.PSULogin(ctx, "stranger", "wrong"); !errors.Is(err, ErrUpstreamAuth) {
			t.Fatalf("Ожидалась ErrUpstreamAuth, получено: %v", err)
		}
		if len(db.psuUsers) != before {
			t.Error("Пользователь не должен создаваться")
		}
	})
}
