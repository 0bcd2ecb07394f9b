package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// DirectoryRepository — таблицы users и researcher.
// Обе перезаливаются целиком при импорте: удаление всех строк и вставка заново.
type DirectoryRepository interface {
	// DeleteAllUsers удаляет все строки users.
	DeleteAllUsers(ctx context.Context) (int64, error)
	// InsertUser вставляет пользователя; заполняет PkUUID.
	InsertUser(ctx context.Context, u *model.DirectoryUser) error
	// DeleteAllResearchers удаляет все строки researcher.
	DeleteAllResearchers(ctx context.Context) (int64, error)
	// InsertResearcher вставляет исследователя; заполняет PkUUID.
	InsertResearcher(ctx context.Context, res *model.Researcher) error
}

// directoryRepo — реализация DirectoryRepository.
type directoryRepo struct {
	db DBTX
}

// NewDirectoryRepository создаёт репозиторий users/researcher.
func NewDirectoryRepository(db DBTX) DirectoryRepository {
	return &directoryRepo{db: db}
}

func (r *directoryRepo) DeleteAllUsers(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки users: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *directoryRepo) InsertUser(ctx context.Context, u *model.DirectoryUser) error {
	query := `
		INSERT INTO users (user_pk_uuid, user_id, email, card_id, default_role_id, fullname)
		VALUES ($1, $2, $3, $4, $5, $6)`

	pk := uuid.New().String()
	if _, err := r.db.Exec(ctx, query, pk, u.UserID, u.Email, u.CardID, u.DefaultRoleID, u.Fullname); err != nil {
		return fmt.Errorf("ошибка вставки users: %w", err)
	}
	u.PkUUID = pk
	return nil
}

func (r *directoryRepo) DeleteAllResearchers(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM researcher`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки researcher: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *directoryRepo) InsertResearcher(ctx context.Context, res *model.Researcher) error {
	query := `
		INSERT INTO researcher (researcher_pk_uuid, user_id, email, card_id, default_role_id,
			department_id, fullname, department_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	pk := uuid.New().String()
	_, err := r.db.Exec(ctx, query,
		pk, res.UserID, res.Email, res.CardID, res.DefaultRoleID,
		res.DepartmentID, res.Fullname, res.DepartmentName,
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки researcher: %w", err)
	}
	res.PkUUID = pk
	return nil
}
