// Пакет triupclient — HTTP-клиент внешней платформы TRIUP.
// Операции: Login (multipart POST /login) и Fetch (GET произвольного эндпоинта
// с Bearer-токеном). Ответы Fetch возвращаются как сырой JSON.
package triupclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody — сколько байт тела ответа сохраняется в StatusError.
const maxErrorBody = 4096

// TokenResponse — ответ TRIUP на логин.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SessionToken собирает строку токена для локальной сессии.
// При token_type = bearer (без учёта регистра) возвращается сам токен,
// при другом типе — "<тип> <токен>", без типа — "Bearer <токен>".
// Пустой access_token даёт пустую строку.
func (t *TokenResponse) SessionToken() string {
	if t == nil || t.AccessToken == "" {
		return ""
	}
	switch {
	case strings.EqualFold(t.TokenType, "bearer"):
		return t.AccessToken
	case t.TokenType == "":
		return "Bearer " + t.AccessToken
	default:
		return t.TokenType + " " + t.AccessToken
	}
}

// StatusError — TRIUP ответил статусом вне 2xx.
type StatusError struct {
	// Code — HTTP-код ответа
	Code int
	// Status — строка статуса ("404 Not Found")
	Status string
	// Body — начало тела ответа
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return e.Status + " " + e.Body
}

// Client — HTTP-клиент TRIUP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент TRIUP.
// baseURL — корень API (https://triup.tsri.or.th/service/api), timeout — таймаут запроса.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With(slog.String("component", "triup_client")),
	}
}

// BaseURL возвращает корень API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL строит полный адрес эндпоинта по относительному пути.
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Login отправляет учётные данные на loginURL как multipart/form-data
// (поля email и password). Ответ вне 2xx — *StatusError.
// Тело успешного ответа, которое не удалось разобрать, даёт пустой TokenResponse.
func (c *Client) Login(ctx context.Context, loginURL, identifier, password string) (*TokenResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("email", identifier); err != nil {
		return nil, fmt.Errorf("формирование запроса логина: %w", err)
	}
	if err := mw.WriteField("password", password); err != nil {
		return nil, fmt.Errorf("формирование запроса логина: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("формирование запроса логина: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, &body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса логина: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос логина к %s: %w", loginURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readStatusError(resp)
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		c.logger.Warn("Ответ логина TRIUP не является JSON",
			slog.String("url", loginURL),
			slog.String("error", err.Error()),
		)
		return &TokenResponse{}, nil
	}
	return &tok, nil
}

// Fetch выполняет GET по url с заголовком Authorization: Bearer <token>
// и возвращает тело ответа. Тело должно быть валидным JSON.
func (c *Client) Fetch(ctx context.Context, url, token string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readStatusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа %s: %w", url, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("ответ %s не является JSON", url)
	}

	c.logger.Debug("Ответ TRIUP получен",
		slog.String("url", url),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)),
	)
	return json.RawMessage(data), nil
}

// readStatusError формирует StatusError из ответа с ошибочным статусом.
func readStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(body)),
	}
}
