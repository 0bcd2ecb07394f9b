// auth.go — логин через TRIUP и проверка локальных сессий.
//
// Login пересылает учётные данные в TRIUP (multipart/form-data), по успешному
// ответу создаёт сессию с ролью 1000 и сроком действия 1 час.
// PSULogin делает то же для институционального логина, но роль сессии
// берётся из psu_user_login (новый пользователь получает роль 3000).
// Me проверяет токен: истечение определяется лениво при каждом вызове.
//
// Prometheus-метрики:
//   - tg_auth_logins_total — попытки входа (по виду логина и результату)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/repository"
	"github.com/bigkaa/triup-gateway/internal/triupclient"
)

var authLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tg_auth_logins_total",
	Help: "Количество попыток входа",
}, []string{"kind", "result"}) // kind: triup, psu; result: ok, rejected, error

// AuthService — сервис логина и сессий.
type AuthService struct {
	client      *triupclient.Client
	sessionRepo repository.SessionRepository
	psuUserRepo repository.PSUUserRepository
	cache       *SessionCache
	loginURL    string
	psuLoginURL string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuthService создаёт сервис логина.
// psuLoginURL — адрес институционального логина; пустой — логин TRIUP.
func NewAuthService(
	client *triupclient.Client,
	sessionRepo repository.SessionRepository,
	psuUserRepo repository.PSUUserRepository,
	psuLoginURL string,
	cacheSize int,
	logger *slog.Logger,
) *AuthService {
	loginURL := client.URL("login")
	if psuLoginURL == "" {
		psuLoginURL = loginURL
	}
	return &AuthService{
		client:      client,
		sessionRepo: sessionRepo,
		psuUserRepo: psuUserRepo,
		cache:       NewSessionCache(cacheSize, sessionCacheTTL),
		loginURL:    loginURL,
		psuLoginURL: psuLoginURL,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "auth")),
	}
}

// Login выполняет вход в TRIUP и создаёт локальную сессию.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*model.Session, error) {
	identifier, password = strings.TrimSpace(identifier), strings.TrimSpace(password)
	token, err := s.upstreamLogin(ctx, "triup", s.loginURL, identifier, password)
	if err != nil {
		return nil, err
	}

	sess, err := s.createSession(ctx, identifier, token, model.RoleAdmin)
	if err != nil {
		authLoginsTotal.WithLabelValues("triup", "error").Inc()
		return nil, err
	}
	authLoginsTotal.WithLabelValues("triup", "ok").Inc()
	s.logger.Info("Вход выполнен", slog.String("username", identifier))
	return sess, nil
}

// PSULogin выполняет институциональный вход. Пользователь создаётся
// в psu_user_login при первом входе; сессия получает его текущую роль.
func (s *AuthService) PSULogin(ctx context.Context, identifier, password string) (*model.Session, *model.PSUUser, error) {
	identifier, password = strings.TrimSpace(identifier), strings.TrimSpace(password)
	token, err := s.upstreamLogin(ctx, "psu", s.psuLoginURL, identifier, password)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.ensurePSUUser(ctx, identifier)
	if err != nil {
		authLoginsTotal.WithLabelValues("psu", "error").Inc()
		return nil, nil, err
	}

	now := s.now().UTC()
	if err := s.psuUserRepo.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("Ошибка обновления last_login",
			slog.String("username", identifier),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastLogin = &now
	}

	sess, err := s.createSession(ctx, identifier, token, user.RolesID)
	if err != nil {
		authLoginsTotal.WithLabelValues("psu", "error").Inc()
		return nil, nil, err
	}
	authLoginsTotal.WithLabelValues("psu", "ok").Inc()
	s.logger.Info("Институциональный вход выполнен",
		slog.String("username", identifier),
		slog.Int("roles_id", user.RolesID),
	)
	return sess, user, nil
}

// Me возвращает сессию по токену.
// Пустой или неизвестный токен — ErrSessionInvalid, истёкшая сессия — ErrSessionExpired.
func (s *AuthService) Me(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	sess, ok := s.cache.Get(token)
	if !ok {
		var err error
		sess, err = s.sessionRepo.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrSessionInvalid
			}
			return nil, fmt.Errorf("получение сессии: %w", err)
		}
		s.cache.Set(token, sess)
	}

	if sess.Expired(s.now()) {
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// upstreamLogin проверяет учётные данные в TRIUP и возвращает строку токена сессии.
func (s *AuthService) upstreamLogin(ctx context.Context, kind, loginURL, identifier, password string) (string, error) {
	if identifier == "" || password == "" {
		return "", fmt.Errorf("%w: email/username and password required", ErrValidation)
	}

	resp, err := s.client.Login(ctx, loginURL, identifier, password)
	if err != nil {
		var statusErr *triupclient.StatusError
		if errors.As(err, &statusErr) {
			authLoginsTotal.WithLabelValues(kind, "rejected").Inc()
			s.logger.Info("TRIUP отклонил вход",
				slog.String("username", identifier),
				slog.Int("status", statusErr.Code),
			)
			return "", fmt.Errorf("%w: %d", ErrUpstreamAuth, statusErr.Code)
		}
		authLoginsTotal.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("запрос логина TRIUP: %w", err)
	}

	token := resp.SessionToken()
	if token == "" {
		authLoginsTotal.WithLabelValues(kind, "error").Inc()
		return "", ErrTokenNotFound
	}
	return token, nil
}

// createSession сохраняет сессию со сроком действия model.SessionTTL.
func (s *AuthService) createSession(ctx context.Context, username, token string, rolesID int) (*model.Session, error) {
	sess := &model.Session{
		Username:  username,
		Token:     token,
		RolesID:   rolesID,
		ExpiresAt: s.now().UTC().Add(model.SessionTTL),
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("создание сессии: %w", err)
	}
	s.cache.Set(token, sess)
	return sess, nil
}

// ensurePSUUser возвращает пользователя PSU, создавая его с ролью 3000 при первом входе.
func (s *AuthService) ensurePSUUser(ctx context.Context, username string) (*model.PSUUser, error) {
	user, err := s.psuUserRepo.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("получение пользователя PSU: %w", err)
	}

	user = &model.PSUUser{Username: username, RolesID: model.RoleGeneral}
	if err := s.psuUserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Параллельный первый вход того же пользователя
			return s.psuUserRepo.GetByUsername(ctx, username)
		}
		return nil, err
	}
	s.logger.Info("Создан пользователь PSU", slog.String("username", username))
	return user, nil
}
