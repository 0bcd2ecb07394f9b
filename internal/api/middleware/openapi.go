// openapi.go — валидация входящих запросов по контракту openapi.yaml.
// Проверяются схема безопасности psuToken, path-параметры и тела запросов.
// Запросы к маршрутам вне контракта пропускаются дальше (404/405 отдаёт chi).
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/bigkaa/triup-gateway/internal/api/errors"
)

// OpenAPIValidator создаёт middleware валидации запросов по документу doc.
func OpenAPIValidator(doc *openapi3.T, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения маршрутизатора OpenAPI: %w", err)
	}
	opts := &openapi3filter.Options{
		AuthenticationFunc: AuthenticatePSUToken,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				var secErr *openapi3filter.SecurityRequirementsError
				if errors.As(err, &secErr) {
					apierrors.Unauthorized(w, ErrPSUTokenRequired.Error())
					return
				}
				logger.Debug("Запрос не прошёл валидацию OpenAPI",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
