// directory_import.go — полная перезаливка users и researcher из снимков (import-server-user).
//
// Оба снимка читаются до начала записи; удаление и вставка выполняются
// в одной транзакции, поэтому ошибка любой записи оставляет таблицы
// в прежнем состоянии.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/normalize"
	"github.com/bigkaa/triup-gateway/internal/repository"
	"github.com/bigkaa/triup-gateway/internal/snapshot"
)

// Файлы снимков справочника пользователей.
const (
	fileUsers      = "users.json"
	fileResearcher = "researcher.json"
)

// Максимальные длины колонок users / researcher.
const (
	directoryShortMax = 255
	directoryLongMax  = 1255
)

// DirectoryImporter — сервис перезаливки пользователей TRIUP.
type DirectoryImporter struct {
	store         *snapshot.Store
	tx            Transactor
	syncStateRepo repository.SyncStateRepository
	now           func() time.Time
	logger        *slog.Logger
}

// NewDirectoryImporter создаёт сервис перезаливки пользователей.
func NewDirectoryImporter(
	store *snapshot.Store,
	tx Transactor,
	syncStateRepo repository.SyncStateRepository,
	logger *slog.Logger,
) *DirectoryImporter {
	return &DirectoryImporter{
		store:         store,
		tx:            tx,
		syncStateRepo: syncStateRepo,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "directory_import")),
	}
}

// ImportAll удаляет все строки users и researcher и вставляет их заново из снимков.
func (s *DirectoryImporter) ImportAll(ctx context.Context) (*model.DirectoryImportCounts, error) {
	users, err := s.store.ReadArray(ctx, fileUsers)
	if err != nil {
		return nil, snapshotError(err)
	}
	researchers, err := s.store.ReadArray(ctx, fileResearcher)
	if err != nil {
		return nil, snapshotError(err)
	}

	counts := &model.DirectoryImportCounts{}
	err = s.tx.InTx(ctx, func(st *repository.Store) error {
		deleted, err := st.Directory.DeleteAllUsers(ctx)
		if err != nil {
			return err
		}
		s.logger.Debug("Таблица users очищена", slog.Int64("deleted", deleted))

		for i, item := range users {
			if err := st.Directory.InsertUser(ctx, s.userFromItem(i, item)); err != nil {
				return fmt.Errorf("users: запись %d: %w", i, err)
			}
			counts.Users++
		}

		deleted, err = st.Directory.DeleteAllResearchers(ctx)
		if err != nil {
			return err
		}
		s.logger.Debug("Таблица researcher очищена", slog.Int64("deleted", deleted))

		for i, item := range researchers {
			if err := st.Directory.InsertResearcher(ctx, s.researcherFromItem(i, item)); err != nil {
				return fmt.Errorf("researcher: запись %d: %w", i, err)
			}
			counts.Researcher++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.syncStateRepo.Mark(ctx, model.StageUserImport, s.now().UTC()); err != nil {
		s.logger.Warn("Ошибка обновления last_user_import_at", slog.String("error", err.Error()))
	}

	s.logger.Info("Перезаливка пользователей завершена",
		slog.Int("users", counts.Users),
		slog.Int("researcher", counts.Researcher),
	)
	return counts, nil
}

func (s *DirectoryImporter) userFromItem(index int, item any) *model.DirectoryUser {
	rec := s.record("users", index, item)
	u := &model.DirectoryUser{
		UserID:        rec.Text("user_id", directoryShortMax),
		Email:         rec.Text("email", directoryShortMax),
		CardID:        rec.Text("card_id", directoryShortMax),
		DefaultRoleID: rec.Int("default_role_id"),
		Fullname:      rec.Text("fullname", directoryLongMax),
	}
	s.logTruncated("users", index, rec)
	return u
}

func (s *DirectoryImporter) researcherFromItem(index int, item any) *model.Researcher {
	rec := s.record("researcher", index, item)
	r := &model.Researcher{
		UserID:         rec.Text("user_id", directoryShortMax),
		Email:          rec.Text("email", directoryShortMax),
		CardID:         rec.Text("card_id", directoryShortMax),
		DefaultRoleID:  rec.Int("default_role_id"),
		DepartmentID:   rec.Text("department_id", directoryShortMax),
		Fullname:       rec.Text("fullname", directoryLongMax),
		DepartmentName: rec.Text("department_name", directoryLongMax),
	}
	s.logTruncated("researcher", index, rec)
	return r
}

// record оборачивает запись снимка; не-объект превращается в пустую запись.
func (s *DirectoryImporter) record(table string, index int, item any) *normalize.Record {
	rec, ok := normalize.AsRecord(item)
	if !ok {
		s.logger.Warn("Запись не является объектом",
			slog.String("table", table),
			slog.Int("index", index),
		)
		return normalize.NewRecord(nil)
	}
	return rec
}

func (s *DirectoryImporter) logTruncated(table string, index int, rec *normalize.Record) {
	for _, field := range rec.Truncated() {
		s.logger.Warn("Значение обрезано",
			slog.String("table", table),
			slog.String("column", field),
			slog.Int("index", index),
		)
	}
}
