// Package generated — chi-сервер по контракту openapi.yaml в раскладке
// oapi-codegen (chi-server): ServerInterface, обёртка с привязкой
// path-параметров и регистрация маршрутов через HandlerFromMux.
// При изменении openapi.yaml интерфейс и маршруты обновляются вместе с ним.
package generated

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Entity defines model for Entity.
type Entity = string

// UserUuid defines model for UserUuid.
type UserUuid = openapi_types.UUID

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Проверка доступности
	// (GET /)
	Root(w http.ResponseWriter, r *http.Request)
	// Проверка живости
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// Проверка готовности (PostgreSQL и хранилище снимков)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// Метрики Prometheus
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// Вход через TRIUP
	// (POST /api/login-api-triup/login)
	Login(w http.ResponseWriter, r *http.Request)
	// Текущая сессия по заголовку Authorization
	// (GET /api/login-api-triup/me)
	Me(w http.ResponseWriter, r *http.Request)
	// Институциональный вход PSU
	// (POST /api/psu_auth/login)
	PSULogin(w http.ResponseWriter, r *http.Request)
	// Загрузка снимков всех эндпоинтов TRIUP
	// (GET /api/scripts/fetch-all)
	FetchAll(w http.ResponseWriter, r *http.Request)
	// Импорт 13 справочников из снимков
	// (GET /api/scripts/import-server-fix)
	ImportServerFix(w http.ResponseWriter, r *http.Request)
	// Импорт форм с вложениями
	// (GET /api/scripts/import-server-form)
	ImportServerForm(w http.ResponseWriter, r *http.Request)
	// Перезаливка users и researcher
	// (GET /api/scripts/import-server-user)
	ImportServerUser(w http.ResponseWriter, r *http.Request)
	// Время последних загрузки и импортов
	// (GET /api/scripts/status)
	SyncStatus(w http.ResponseWriter, r *http.Request)
	// Все строки справочника или формы
	// (GET /api/master/{entity})
	ListMaster(w http.ResponseWriter, r *http.Request, entity Entity)
	// Пользователи PSU с ролями
	// (GET /api/admin/users)
	ListAdminUsers(w http.ResponseWriter, r *http.Request)
	// Пользователь PSU с профилем
	// (GET /api/admin/users/{uuid})
	GetAdminUser(w http.ResponseWriter, r *http.Request, uuid UserUuid)
	// Смена роли пользователя PSU
	// (PUT /api/admin/users/{uuid}/role)
	UpdateUserRole(w http.ResponseWriter, r *http.Request, uuid UserUuid)
	// Журнал смены ролей пользователя
	// (GET /api/admin/users/{uuid}/role-log)
	GetRoleLog(w http.ResponseWriter, r *http.Request, uuid UserUuid)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// serve прогоняет обработчик операции через HandlerMiddlewares.
func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// Root operation middleware
func (siw *ServerInterfaceWrapper) Root(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Root)
}

// HealthLive operation middleware
func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthLive)
}

// HealthReady operation middleware
func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthReady)
}

// GetMetrics operation middleware
func (siw *ServerInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetMetrics)
}

// Login operation middleware
func (siw *ServerInterfaceWrapper) Login(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Login)
}

// Me operation middleware
func (siw *ServerInterfaceWrapper) Me(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Me)
}

// PSULogin operation middleware
func (siw *ServerInterfaceWrapper) PSULogin(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.PSULogin)
}

// FetchAll operation middleware
func (siw *ServerInterfaceWrapper) FetchAll(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.FetchAll)
}

// ImportServerFix operation middleware
func (siw *ServerInterfaceWrapper) ImportServerFix(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ImportServerFix)
}

// ImportServerForm operation middleware
func (siw *ServerInterfaceWrapper) ImportServerForm(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ImportServerForm)
}

// ImportServerUser operation middleware
func (siw *ServerInterfaceWrapper) ImportServerUser(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ImportServerUser)
}

// SyncStatus operation middleware
func (siw *ServerInterfaceWrapper) SyncStatus(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.SyncStatus)
}

// ListMaster operation middleware
func (siw *ServerInterfaceWrapper) ListMaster(w http.ResponseWriter, r *http.Request) {
	var entity Entity

	err := runtime.BindStyledParameterWithOptions("simple", "entity", chi.URLParam(r, "entity"), &entity,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "entity", Err: err})
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListMaster(w, r, entity)
	})
}

// ListAdminUsers operation middleware
func (siw *ServerInterfaceWrapper) ListAdminUsers(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ListAdminUsers)
}

// GetAdminUser operation middleware
func (siw *ServerInterfaceWrapper) GetAdminUser(w http.ResponseWriter, r *http.Request) {
	uuid, ok := siw.bindUserUuid(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetAdminUser(w, r, uuid)
	})
}

// UpdateUserRole operation middleware
func (siw *ServerInterfaceWrapper) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	uuid, ok := siw.bindUserUuid(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateUserRole(w, r, uuid)
	})
}

// GetRoleLog operation middleware
func (siw *ServerInterfaceWrapper) GetRoleLog(w http.ResponseWriter, r *http.Request) {
	uuid, ok := siw.bindUserUuid(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetRoleLog(w, r, uuid)
	})
}

// bindUserUuid привязывает path-параметр uuid; при ошибке ответ уже записан.
func (siw *ServerInterfaceWrapper) bindUserUuid(w http.ResponseWriter, r *http.Request) (UserUuid, bool) {
	var uuid UserUuid

	err := runtime.BindStyledParameterWithOptions("simple", "uuid", chi.URLParam(r, "uuid"), &uuid,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "uuid", Err: err})
		return uuid, false
	}
	return uuid, true
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// Handler creates http.Handler with routing matching OpenAPI spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux creates http.Handler with routing matching OpenAPI spec based on the provided mux.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/", wrapper.Root)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/live", wrapper.HealthLive)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/ready", wrapper.HealthReady)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/metrics", wrapper.GetMetrics)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/login-api-triup/login", wrapper.Login)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/login-api-triup/me", wrapper.Me)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/psu_auth/login", wrapper.PSULogin)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/scripts/fetch-all", wrapper.FetchAll)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/scripts/import-server-fix", wrapper.ImportServerFix)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/scripts/import-server-form", wrapper.ImportServerForm)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/scripts/import-server-user", wrapper.ImportServerUser)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/scripts/status", wrapper.SyncStatus)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/master/{entity}", wrapper.ListMaster)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/admin/users", wrapper.ListAdminUsers)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/admin/users/{uuid}", wrapper.GetAdminUser)
	})
	r.Group(func(r chi.Router) {
		r.Put(options.BaseURL+"/api/admin/users/{uuid}/role", wrapper.UpdateUserRole)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/api/admin/users/{uuid}/role-log", wrapper.GetRoleLog)
	})

	return r
}
