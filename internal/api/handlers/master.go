// master.go — GET /api/master/{entity}: выборки справочников и форм.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/triup-gateway/internal/api/errors"
	"github.com/bigkaa/triup-gateway/internal/api/generated"
	"github.com/bigkaa/triup-gateway/internal/service"
)

// ListMaster — GET /api/master/{entity}.
// Все строки таблицы сущности в порядке колонки сортировки.
func (h *APIHandler) ListMaster(w http.ResponseWriter, r *http.Request, entity generated.Entity) {
	slug := string(entity)

	rows, err := h.master.List(r.Context(), slug)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "unknown entity: "+slug)
			return
		}
		h.logger.Error("Ошибка выборки мастер-таблицы",
			slog.String("entity", slug),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "internal error master")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rows})
}
