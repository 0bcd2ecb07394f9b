// psu_token.go — проверка наличия токена PSU для административных маршрутов.
// Токен не валидируется: достаточно непустого заголовка X-PSU-Token.
// Маршруты с этим требованием помечены в openapi.yaml схемой безопасности psuToken.
package middleware

import (
	"context"
	"errors"

	"github.com/getkin/kin-openapi/openapi3filter"
)

// HeaderPSUToken — заголовок с токеном PSU.
const HeaderPSUToken = "X-PSU-Token"

// psuTokenScheme — имя схемы безопасности в OpenAPI-документе.
const psuTokenScheme = "psuToken"

// ErrPSUTokenRequired — в запросе нет заголовка X-PSU-Token.
var ErrPSUTokenRequired = errors.New("Token required")

// AuthenticatePSUToken — AuthenticationFunc для openapi3filter.
// Схема psuToken выполнена, если заголовок X-PSU-Token не пуст.
func AuthenticatePSUToken(_ context.Context, input *openapi3filter.AuthenticationInput) error {
	if input.SecuritySchemeName != psuTokenScheme {
		return input.NewError(errors.New("неизвестная схема безопасности"))
	}
	if input.RequestValidationInput.Request.Header.Get(HeaderPSUToken) == "" {
		return ErrPSUTokenRequired
	}
	return nil
}
