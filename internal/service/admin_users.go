// admin_users.go — сервис управления пользователями PSU (список, карточка,
// журнал смены ролей, смена роли).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/repository"
)

// unknownChanger — значение changed_by, если автор изменения не указан.
const unknownChanger = "unknown"

// AdminUserService — сервис управления пользователями PSU.
type AdminUserService struct {
	tx          Transactor
	psuUserRepo repository.PSUUserRepository
	roleLogRepo repository.RoleLogRepository
	now         func() time.Time
	logger      *slog.Logger
}

// NewAdminUserService создаёт сервис управления пользователями.
func NewAdminUserService(
	tx Transactor,
	psuUserRepo repository.PSUUserRepository,
	roleLogRepo repository.RoleLogRepository,
	logger *slog.Logger,
) *AdminUserService {
	return &AdminUserService{
		tx:          tx,
		psuUserRepo: psuUserRepo,
		roleLogRepo: roleLogRepo,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "admin_users_service")),
	}
}

// ListUsers возвращает всех пользователей с профилями.
func (s *AdminUserService) ListUsers(ctx context.Context) ([]*model.PSUUser, error) {
	users, err := s.psuUserRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка пользователей: %w", err)
	}
	if users == nil {
		users = []*model.PSUUser{}
	}
	return users, nil
}

// GetUser возвращает пользователя по UUID.
func (s *AdminUserService) GetUser(ctx context.Context, id string) (*model.PSUUser, error) {
	user, err := s.psuUserRepo.GetByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return user, nil
}

// RoleLog возвращает журнал смены ролей пользователя, новые записи первыми.
// Для неизвестного пользователя возвращается пустой журнал.
func (s *AdminUserService) RoleLog(ctx context.Context, id string) ([]*model.RoleLogEntry, error) {
	user, err := s.psuUserRepo.GetByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []*model.RoleLogEntry{}, nil
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	entries, err := s.roleLogRepo.ListByUser(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("получение журнала ролей: %w", err)
	}
	if entries == nil {
		entries = []*model.RoleLogEntry{}
	}
	return entries, nil
}

// UpdateRole меняет роль пользователя. Запись в журнал и смена роли
// выполняются в одной транзакции. Роль CEO (900) изменить нельзя:
// возвращается ErrForbiddenRole, журнал не пишется.
func (s *AdminUserService) UpdateRole(ctx context.Context, id string, rolesID int, changedBy string) (*model.PSUUser, error) {
	if changedBy == "" {
		changedBy = unknownChanger
	}

	var updated *model.PSUUser
	err := s.tx.InTx(ctx, func(st *repository.Store) error {
		user, err := st.PSUUsers.GetByUUID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("получение пользователя: %w", err)
		}

		if user.RolesID == model.RoleCEO {
			return ErrForbiddenRole
		}

		oldRole := strconv.Itoa(user.RolesID)
		entry := &model.RoleLogEntry{
			UserID:    user.Username,
			OldRole:   &oldRole,
			NewRole:   strconv.Itoa(rolesID),
			ChangedBy: changedBy,
			ChangedAt: s.now().UTC(),
		}
		if err := st.RoleLog.Create(ctx, entry); err != nil {
			return err
		}

		updated, err = st.PSUUsers.UpdateRole(ctx, id, rolesID)
		if err != nil {
			return fmt.Errorf("обновление роли: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrForbiddenRole) {
			s.logger.Warn("Попытка изменить роль CEO",
				slog.String("user_uuid", id),
				slog.String("changed_by", changedBy),
			)
		}
		return nil, err
	}

	s.logger.Info("Роль пользователя изменена",
		slog.String("username", updated.Username),
		slog.Int("roles_id", rolesID),
		slog.String("changed_by", changedBy),
	)
	return updated, nil
}
