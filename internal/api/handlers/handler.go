// handler.go — основной обработчик API TRIUP Gateway.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bigkaa/triup-gateway/internal/api/generated"
	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// Зависимости обработчиков из сервисного слоя.
type (
	authService interface {
		Login(ctx context.Context, identifier, password string) (*model.Session, error)
		PSULogin(ctx context.Context, identifier, password string) (*model.Session, *model.PSUUser, error)
		Me(ctx context.Context, token string) (*model.Session, error)
	}
	snapshotFetcher interface {
		FetchAll(ctx context.Context) (*model.FetchSummary, error)
	}
	referenceImporter interface {
		ImportAll(ctx context.Context) (*model.ReferenceImportResult, error)
	}
	formImporter interface {
		ImportAll(ctx context.Context) (*model.FormImportResult, error)
	}
	directoryImporter interface {
		ImportAll(ctx context.Context) (*model.DirectoryImportCounts, error)
	}
	syncStatusProvider interface {
		Status(ctx context.Context) (*model.SyncState, error)
	}
	masterLister interface {
		List(ctx context.Context, slug string) ([]map[string]any, error)
	}
	adminUserService interface {
		ListUsers(ctx context.Context) ([]*model.PSUUser, error)
		GetUser(ctx context.Context, id string) (*model.PSUUser, error)
		RoleLog(ctx context.Context, id string) ([]*model.RoleLogEntry, error)
		UpdateRole(ctx context.Context, id string, rolesID int, changedBy string) (*model.PSUUser, error)
	}
)

// Проверка соответствия APIHandler интерфейсу контракта.
var _ generated.ServerInterface = (*APIHandler)(nil)

// APIHandler — основной обработчик API TRIUP Gateway.
type APIHandler struct {
	health     *HealthHandler
	auth       authService
	fetcher    snapshotFetcher
	references referenceImporter
	forms      formImporter
	directory  directoryImporter
	sync       syncStatusProvider
	master     masterLister
	adminUsers adminUserService
	logger     *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	auth authService,
	fetcher snapshotFetcher,
	references referenceImporter,
	forms formImporter,
	directory directoryImporter,
	sync syncStatusProvider,
	master masterLister,
	adminUsers adminUserService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:     health,
		auth:       auth,
		fetcher:    fetcher,
		references: references,
		forms:      forms,
		directory:  directory,
		sync:       sync,
		master:     master,
		adminUsers: adminUsers,
		logger:     logger.With(slog.String("component", "api_handler")),
	}
}

// Root — GET / (делегируется в HealthHandler).
func (h *APIHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.health.Root(w, r)
}

// HealthLive — проверка живости (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — проверка готовности (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeBody разбирает тело запроса: JSON по Content-Type application/json,
// иначе urlencoded или multipart форма. Значения формы собираются в map по первому значению.
func decodeBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return body, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for key, values := range r.PostForm {
		if len(values) > 0 {
			body[key] = values[0]
		}
	}
	return body, nil
}

// bodyString возвращает строковое значение первого непустого ключа.
// Числа приводятся к строке.
func bodyString(body map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := body[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
