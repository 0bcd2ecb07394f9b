package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// PSUUserRepository — пользователи институционального логина (psu_user_login)
// с профилем из psu_user_profile (связь по username).
type PSUUserRepository interface {
	// List возвращает всех пользователей с профилями.
	List(ctx context.Context) ([]*model.PSUUser, error)
	// GetByUUID возвращает пользователя по user_pk_uuid.
	GetByUUID(ctx context.Context, id string) (*model.PSUUser, error)
	// GetByUsername возвращает пользователя по логину.
	GetByUsername(ctx context.Context, username string) (*model.PSUUser, error)
	// Create создаёт пользователя; заполняет ID, UUID и CreatedAt.
	Create(ctx context.Context, u *model.PSUUser) error
	// UpdateRole меняет роль пользователя и возвращает обновлённую запись.
	UpdateRole(ctx context.Context, id string, rolesID int) (*model.PSUUser, error)
	// TouchLogin записывает время последнего входа.
	TouchLogin(ctx context.Context, userID int64, at time.Time) error
}

// psuUserRepo — реализация PSUUserRepository.
type psuUserRepo struct {
	db DBTX
}

// NewPSUUserRepository создаёт репозиторий пользователей PSU.
func NewPSUUserRepository(db DBTX) PSUUserRepository {
	return &psuUserRepo{db: db}
}

const psuUserSelect = `
	SELECT l.user_id, l.user_pk_uuid::text, l.username, l.roles_id, l.last_login, l.created_at,
		p.user_id, p.fullname, p.email, p.department, p.position
	FROM psu_user_login l
	LEFT JOIN psu_user_profile p ON p.user_id = l.username`

func (r *psuUserRepo) List(ctx context.Context) ([]*model.PSUUser, error) {
	rows, err := r.db.Query(ctx, psuUserSelect+` ORDER BY l.user_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей PSU: %w", err)
	}
	defer rows.Close()

	var result []*model.PSUUser
	for rows.Next() {
		u, err := scanPSUUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *psuUserRepo) GetByUUID(ctx context.Context, id string) (*model.PSUUser, error) {
	if _, err := uuid.Parse(id); err != nil {
		// Некорректный UUID не может совпасть ни с одной строкой
		return nil, ErrNotFound
	}
	return scanPSUUser(r.db.QueryRow(ctx, psuUserSelect+` WHERE l.user_pk_uuid = $1`, id))
}

func (r *psuUserRepo) GetByUsername(ctx context.Context, username string) (*model.PSUUser, error) {
	return scanPSUUser(r.db.QueryRow(ctx, psuUserSelect+` WHERE l.username = $1`, username))
}

func (r *psuUserRepo) Create(ctx context.Context, u *model.PSUUser) error {
	query := `
		INSERT INTO psu_user_login (user_pk_uuid, username, roles_id, last_login)
		VALUES ($1, $2, $3, $4)
		RETURNING user_id, created_at`

	u.UUID = uuid.New().String()
	err := r.db.QueryRow(ctx, query, u.UUID, u.Username, u.RolesID, u.LastLogin).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь %s уже существует", ErrConflict, u.Username)
		}
		return fmt.Errorf("ошибка создания пользователя PSU: %w", err)
	}
	return nil
}

func (r *psuUserRepo) UpdateRole(ctx context.Context, id string, rolesID int) (*model.PSUUser, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE psu_user_login SET roles_id = $2, updated_at = NOW() WHERE user_pk_uuid = $1`,
		id, rolesID,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления роли пользователя %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByUUID(ctx, id)
}

func (r *psuUserRepo) TouchLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE psu_user_login SET last_login = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, at,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления last_login: %w", err)
	}
	return nil
}

// scanPSUUser сканирует строку psuUserSelect.
func scanPSUUser(row pgx.Row) (*model.PSUUser, error) {
	u := &model.PSUUser{}
	var profileUserID, fullname, email, department, position *string
	err := row.Scan(
		&u.ID, &u.UUID, &u.Username, &u.RolesID, &u.LastLogin, &u.CreatedAt,
		&profileUserID, &fullname, &email, &department, &position,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования пользователя PSU: %w", err)
	}
	if profileUserID != nil {
		u.Profile = &model.PSUProfile{
			UserID:     *profileUserID,
			Fullname:   fullname,
			Email:      email,
			Department: department,
			Position:   position,
		}
	}
	return u, nil
}
