package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// SessionRepository — доступ к таблице session.
// Сессии только добавляются; удаление не предусмотрено.
type SessionRepository interface {
	// Create сохраняет сессию; заполняет ID, UUID и CreatedAt.
	Create(ctx context.Context, s *model.Session) error
	// GetByToken возвращает самую свежую сессию с данным токеном.
	GetByToken(ctx context.Context, token string) (*model.Session, error)
	// Latest возвращает последнюю созданную сессию.
	Latest(ctx context.Context) (*model.Session, error)
}

// sessionRepo — реализация SessionRepository.
type sessionRepo struct {
	db DBTX
}

// NewSessionRepository создаёт репозиторий сессий.
func NewSessionRepository(db DBTX) SessionRepository {
	return &sessionRepo{db: db}
}

const sessionColumns = `session_id, session_pk_uuid::text, username, token, roles_id, expires_at, created_at`

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO session (session_pk_uuid, username, token, roles_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING session_id, created_at`

	s.UUID = uuid.New().String()
	err := r.db.QueryRow(ctx, query,
		s.UUID, s.Username, s.Token, s.RolesID, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM session
		WHERE token = $1
		ORDER BY created_at DESC, session_id DESC
		LIMIT 1`, sessionColumns)

	return r.scanOne(r.db.QueryRow(ctx, query, token))
}

func (r *sessionRepo) Latest(ctx context.Context) (*model.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM session
		ORDER BY created_at DESC, session_id DESC
		LIMIT 1`, sessionColumns)

	return r.scanOne(r.db.QueryRow(ctx, query))
}

func (r *sessionRepo) scanOne(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(&s.ID, &s.UUID, &s.Username, &s.Token, &s.RolesID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}
	return s, nil
}
