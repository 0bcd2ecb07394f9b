package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// RoleLogRepository — журнал смены ролей psu_user_role_log (только добавление).
type RoleLogRepository interface {
	// Create добавляет запись; заполняет LogID.
	Create(ctx context.Context, e *model.RoleLogEntry) error
	// ListByUser возвращает записи пользователя, новые первыми.
	ListByUser(ctx context.Context, username string) ([]*model.RoleLogEntry, error)
}

// roleLogRepo — реализация RoleLogRepository.
type roleLogRepo struct {
	db DBTX
}

// NewRoleLogRepository создаёт репозиторий журнала ролей.
func NewRoleLogRepository(db DBTX) RoleLogRepository {
	return &roleLogRepo{db: db}
}

func (r *roleLogRepo) Create(ctx context.Context, e *model.RoleLogEntry) error {
	query := `
		INSERT INTO psu_user_role_log (log_id, user_id, old_role, new_role, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	e.LogID = uuid.New().String()
	if _, err := r.db.Exec(ctx, query, e.LogID, e.UserID, e.OldRole, e.NewRole, e.ChangedBy, e.ChangedAt); err != nil {
		return fmt.Errorf("ошибка записи в журнал ролей: %w", err)
	}
	return nil
}

func (r *roleLogRepo) ListByUser(ctx context.Context, username string) ([]*model.RoleLogEntry, error) {
	query := `
		SELECT log_id::text, user_id, old_role, new_role, changed_by, changed_at
		FROM psu_user_role_log
		WHERE user_id = $1
		ORDER BY changed_at DESC`

	rows, err := r.db.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала ролей: %w", err)
	}
	defer rows.Close()

	var result []*model.RoleLogEntry
	for rows.Next() {
		e := &model.RoleLogEntry{}
		if err := rows.Scan(&e.LogID, &e.UserID, &e.OldRole, &e.NewRole, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования журнала ролей: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
