package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bigkaa/triup-gateway/internal/api/handlers"
	"github.com/bigkaa/triup-gateway/internal/config"
)

// newTestRouter собирает роутер без сервисов: проверяются только маршрутизация
// и middleware, до обработчиков с зависимостями запросы не доходят.
func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := handlers.NewAPIHandler(handlers.NewHealthHandler(nil, nil),
		nil, nil, nil, nil, nil, nil, nil, nil, logger)
	router, err := NewRouter(cfg, logger, api)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, &config.Config{CORSOrigins: []string{"*"}, CORSCredentials: true})

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{"корень", http.MethodGet, "/", http.StatusOK},
		{"liveness", http.MethodGet, "/health/live", http.StatusOK},
		{"readiness без зависимостей", http.MethodGet, "/health/ready", http.StatusServiceUnavailable},
		{"метрики", http.MethodGet, "/metrics", http.StatusOK},
		{"список пользователей без токена", http.MethodGet, "/api/admin/users", http.StatusUnauthorized},
		{"смена роли без токена", http.MethodPut, "/api/admin/users/5f0c1c2e-0000-4000-8000-000000000001/role", http.StatusUnauthorized},
		{"неизвестный маршрут", http.MethodGet, "/api/unknown", http.StatusNotFound},
		{"неверный метод", http.MethodGet, "/api/login-api-triup/login", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.wantCode {
				t.Errorf("%s %s: код = %d, ожидался %d", tt.method, tt.path, rr.Code, tt.wantCode)
			}
		})
	}
}

func TestRouter_RequestValidation(t *testing.T) {
	router := newTestRouter(t, &config.Config{CORSOrigins: []string{"*"}})
	const userPath = "/api/admin/users/5f0c1c2e-0000-4000-8000-000000000001"

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		token       string
		wantCode    int
		wantErr     string
	}{
		{"uuid не UUID", http.MethodGet, "/api/admin/users/u-1", "", "", "t", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"uuid не UUID без токена", http.MethodGet, "/api/admin/users/u-1/role-log", "", "", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"пароль числом", http.MethodPost, "/api/login-api-triup/login", "application/json", `{"email":"a@psu.ac.th","password":123}`, "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"вход text/plain", http.MethodPost, "/api/psu_auth/login", "text/plain", "password", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"roles_id не число", http.MethodPut, userPath + "/role", "application/json", `{"roles_id":"abc"}`, "t", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"смена роли без тела", http.MethodPut, userPath + "/role", "", "", "t", http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.token != "" {
				req.Header.Set("X-PSU-Token", tt.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("код = %d, ожидался %d (%s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			var body struct {
				Success bool   `json:"success"`
				Code    string `json:"code"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("Некорректный JSON: %v", err)
			}
			if body.Success || body.Code != tt.wantErr {
				t.Errorf("тело ответа: %+v, ожидался code %s", body, tt.wantErr)
			}
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	t.Run("любой origin с credentials", func(t *testing.T) {
		router := newTestRouter(t, &config.Config{CORSOrigins: []string{"*"}, CORSCredentials: true})
		req := httptest.NewRequest(http.MethodOptions, "/api/admin/users", nil)
		req.Header.Set("Origin", "https://app.example.org")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		req.Header.Set("Access-Control-Request-Headers", "X-PSU-Token")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.org" {
			t.Errorf("Allow-Origin = %q", got)
		}
		if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("Allow-Credentials = %q", got)
		}
	})

	t.Run("origin не из списка", func(t *testing.T) {
		router := newTestRouter(t, &config.Config{CORSOrigins: []string{"https://triup.psu.ac.th"}})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.org")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, ожидался пустой", got)
		}
	})
}
