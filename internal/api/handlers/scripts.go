// scripts.go — обработчики /api/scripts: загрузка снимков TRIUP и импорт в БД.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/triup-gateway/internal/api/errors"
	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/service"
)

// Сообщения успешного импорта.
const (
	msgReferenceImported = "Imported/updated master tables successfully (upsert by id, from JSON files of fetch-all)."
	msgFormsImported     = "Imported form_new_findings, form_research_plan, form_research_owner successfully (with upsert + relations)"
	msgUsersImported     = "Imported users & researcher successfully"
	msgFetchInternal     = "internal error fetch-all"
)

type referenceImportResponse struct {
	Success    bool           `json:"success"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Message    string         `json:"message"`
	Counts     map[string]int `json:"counts"`
}

type formImportResponse struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Counts   model.FormImportCounts `json:"counts"`
	Failures []model.RecordFailure  `json:"failures,omitempty"`
}

type directoryImportResponse struct {
	Success bool                        `json:"success"`
	Message string                      `json:"message"`
	Counts  model.DirectoryImportCounts `json:"counts"`
}

type syncStateBody struct {
	LastFetchAt           *time.Time `json:"last_fetch_at"`
	LastReferenceImportAt *time.Time `json:"last_reference_import_at"`
	LastFormImportAt      *time.Time `json:"last_form_import_at"`
	LastUserImportAt      *time.Time `json:"last_user_import_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// FetchAll — GET /api/scripts/fetch-all.
// Загружает все снимки TRIUP. Частичный отказ — 200 с success=false и сводкой.
func (h *APIHandler) FetchAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.fetcher.FetchAll(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoSession) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка fetch-all", slog.String("error", err.Error()))
		apierrors.InternalError(w, msgFetchInternal)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ImportServerFix — GET /api/scripts/import-server-fix.
// Upsert 13 справочников из снимков.
func (h *APIHandler) ImportServerFix(w http.ResponseWriter, r *http.Request) {
	result, err := h.references.ImportAll(r.Context())
	if err != nil {
		h.writeImportError(w, "import-server-fix", err)
		return
	}

	writeJSON(w, http.StatusOK, referenceImportResponse{
		Success:    true,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Message:    msgReferenceImported,
		Counts:     result.Counts,
	})
}

// ImportServerForm — GET /api/scripts/import-server-form.
// Импорт форм с вложениями; записи с ошибкой перечислены в failures,
// при наличии таких записей success = false.
func (h *APIHandler) ImportServerForm(w http.ResponseWriter, r *http.Request) {
	result, err := h.forms.ImportAll(r.Context())
	if err != nil {
		h.writeImportError(w, "import-server-form", err)
		return
	}

	writeJSON(w, http.StatusOK, formImportResponse{
		Success:  len(result.Failures) == 0,
		Message:  msgFormsImported,
		Counts:   result.Counts,
		Failures: result.Failures,
	})
}

// ImportServerUser — GET /api/scripts/import-server-user.
// Перезаливка users и researcher в одной транзакции.
func (h *APIHandler) ImportServerUser(w http.ResponseWriter, r *http.Request) {
	counts, err := h.directory.ImportAll(r.Context())
	if err != nil {
		h.writeImportError(w, "import-server-user", err)
		return
	}

	writeJSON(w, http.StatusOK, directoryImportResponse{
		Success: true,
		Message: msgUsersImported,
		Counts:  *counts,
	})
}

// SyncStatus — GET /api/scripts/status.
// Время последних загрузки и импортов.
func (h *APIHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.sync.Status(r.Context())
	if err != nil {
		h.logger.Error("Ошибка чтения состояния синхронизации", slog.String("error", err.Error()))
		apierrors.InternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": syncStateBody{
			LastFetchAt:           state.LastFetchAt,
			LastReferenceImportAt: state.LastReferenceImportAt,
			LastFormImportAt:      state.LastFormImportAt,
			LastUserImportAt:      state.LastUserImportAt,
			UpdatedAt:             state.UpdatedAt,
		},
	})
}

// writeImportError пишет 500 с текстом ошибки импорта.
// Текст ошибки снимка сохраняется как есть ("cofunders.json: data is not array").
func (h *APIHandler) writeImportError(w http.ResponseWriter, script string, err error) {
	h.logger.Error("Ошибка импорта",
		slog.String("script", script),
		slog.Bool("snapshot", errors.Is(err, service.ErrSnapshotShape)),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, err.Error())
}
