// attachments.go — пересоздание вложений (file_uploads + pivot) записи формы.
//
// Вложения не сливаются: при каждом импорте записи все вложения слота
// удаляются и создаются заново из снимка. Обе операции выполняются
// внутри транзакции записи формы (репозиторий передаёт вызывающий код).
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/normalize"
	"github.com/bigkaa/triup-gateway/internal/repository"
)

// Максимальные длины колонок file_uploads.
const (
	fileNameMax = 255
	filePathMax = 255
	fileExtMax  = 50
	fileMimeMax = 100
	fileURLMax  = 255
)

// AttachmentReconciler — удаление и создание вложений владельца.
type AttachmentReconciler struct {
	logger *slog.Logger
}

// NewAttachmentReconciler создаёт сервис вложений.
func NewAttachmentReconciler(logger *slog.Logger) *AttachmentReconciler {
	return &AttachmentReconciler{
		logger: logger.With(slog.String("component", "attachments")),
	}
}

// DeleteAttachments удаляет все связи pivot владельца и вложения, на которые
// они ссылались. Владелец без id — no-op.
func (a *AttachmentReconciler) DeleteAttachments(ctx context.Context, repo repository.AttachmentRepository, owner model.AttachmentOwner) error {
	if owner.ID == 0 {
		return nil
	}
	if owner.Slot.IsZero() {
		return fmt.Errorf("%w: не задан слот владельца вложений", ErrValidation)
	}

	pivots, err := repo.ListPivots(ctx, owner)
	if err != nil {
		return err
	}
	if len(pivots) == 0 {
		return nil
	}

	// Уникальные fu_id собираются до удаления связей
	seen := make(map[int64]struct{}, len(pivots))
	fuIDs := make([]int64, 0, len(pivots))
	for _, p := range pivots {
		if p.FuID == nil {
			continue
		}
		if _, dup := seen[*p.FuID]; dup {
			continue
		}
		seen[*p.FuID] = struct{}{}
		fuIDs = append(fuIDs, *p.FuID)
	}

	if _, err := repo.DeletePivots(ctx, owner); err != nil {
		return err
	}
	if _, err := repo.DeleteFiles(ctx, fuIDs); err != nil {
		return err
	}

	a.logger.Debug("Вложения удалены",
		slog.String("slot", owner.Slot.Tag()),
		slog.Int64("owner_id", owner.ID),
		slog.Int("files", len(fuIDs)),
	)
	return nil
}

// CreateAttachments создаёт вложения из записей снимка и связывает их
// с владельцем. Возвращает созданные вложения в порядке входного списка.
// Пустой список или владелец без id — no-op.
func (a *AttachmentReconciler) CreateAttachments(ctx context.Context, repo repository.AttachmentRepository, files []any, owner model.AttachmentOwner) ([]*model.FileUpload, error) {
	if len(files) == 0 || owner.ID == 0 {
		return nil, nil
	}
	if owner.Slot.IsZero() {
		return nil, fmt.Errorf("%w: не задан слот владельца вложений", ErrValidation)
	}

	created := make([]*model.FileUpload, 0, len(files))
	for i, item := range files {
		rec, ok := normalize.AsRecord(item)
		if !ok {
			a.logger.Warn("Вложение не является объектом, пропущено",
				slog.String("slot", owner.Slot.Tag()),
				slog.Int64("owner_id", owner.ID),
				slog.Int("index", i),
			)
			continue
		}

		fu := a.fileFromRecord(rec, owner)
		if err := repo.CreateFile(ctx, fu); err != nil {
			return nil, err
		}

		fuID := fu.FuID
		pivot := &model.Pivot{
			UploadableID:   owner.ID,
			UploadableType: owner.Slot.Tag(),
			FuID:           &fuID,
		}
		if err := repo.CreatePivot(ctx, pivot); err != nil {
			return nil, err
		}
		created = append(created, fu)
	}
	return created, nil
}

// fileFromRecord переводит запись вложения из снимка в file_uploads,
// принимая обе схемы именования полей (fu_name / name и т.д.).
func (a *AttachmentReconciler) fileFromRecord(rec *normalize.Record, owner model.AttachmentOwner) *model.FileUpload {
	fu := &model.FileUpload{
		Name: rec.TextOf(fileNameMax, "fu_name", "name"),
		Path: rec.TextOf(filePathMax, "fu_path", "path"),
		Ext:  rec.TextOf(fileExtMax, "fu_ext", "ext"),
		Mime: rec.TextOf(fileMimeMax, "fu_mime", "mime", "mimetype"),
		URL:  rec.TextOf(fileURLMax, "url", "fu_url"),
	}

	rawSize, sizeField := rec.First("fu_size", "size")
	if rawSize != nil {
		fu.Size = normalize.Int(rawSize)
		if fu.Size == nil {
			a.logger.Warn("Некорректный размер вложения, записан NULL",
				slog.String("slot", owner.Slot.Tag()),
				slog.Int64("owner_id", owner.ID),
				slog.String("field", sizeField),
				slog.Any("value", rawSize),
			)
		}
	}

	for _, field := range rec.Truncated() {
		a.logger.Warn("Значение обрезано",
			slog.String("table", "file_uploads"),
			slog.String("field", field),
			slog.String("slot", owner.Slot.Tag()),
			slog.Int64("owner_id", owner.ID),
		)
	}
	return fu
}
