package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// AttachmentRepository — доступ к file_uploads и полиморфной связи pivot.
type AttachmentRepository interface {
	// ListPivots возвращает связи владельца в порядке создания.
	ListPivots(ctx context.Context, owner model.AttachmentOwner) ([]*model.Pivot, error)
	// DeletePivots удаляет все связи владельца, возвращает количество удалённых.
	DeletePivots(ctx context.Context, owner model.AttachmentOwner) (int64, error)
	// DeleteFiles удаляет вложения по списку fu_id.
	DeleteFiles(ctx context.Context, fuIDs []int64) (int64, error)
	// CreateFile вставляет вложение; заполняет FuID и FuPkUUID.
	CreateFile(ctx context.Context, f *model.FileUpload) error
	// CreatePivot вставляет связь; заполняет PivotID и PivotPkUUID.
	CreatePivot(ctx context.Context, p *model.Pivot) error
}

// attachmentRepo — реализация AttachmentRepository.
type attachmentRepo struct {
	db DBTX
}

// NewAttachmentRepository создаёт репозиторий вложений.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepo{db: db}
}

func (r *attachmentRepo) ListPivots(ctx context.Context, owner model.AttachmentOwner) ([]*model.Pivot, error) {
	query := `
		SELECT pivot_id, pivot_pk_uuid::text, uploadable_id, uploadable_type, fu_id
		FROM pivot
		WHERE uploadable_type = $1 AND uploadable_id = $2
		ORDER BY pivot_id`

	rows, err := r.db.Query(ctx, query, owner.Slot.Tag(), owner.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения pivot для %s/%d: %w", owner.Slot, owner.ID, err)
	}
	defer rows.Close()

	var result []*model.Pivot
	for rows.Next() {
		p := &model.Pivot{}
		if err := rows.Scan(&p.PivotID, &p.PivotPkUUID, &p.UploadableID, &p.UploadableType, &p.FuID); err != nil {
			return nil, fmt.Errorf("ошибка сканирования pivot: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *attachmentRepo) DeletePivots(ctx context.Context, owner model.AttachmentOwner) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM pivot WHERE uploadable_type = $1 AND uploadable_id = $2`,
		owner.Slot.Tag(), owner.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления pivot для %s/%d: %w", owner.Slot, owner.ID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *attachmentRepo) DeleteFiles(ctx context.Context, fuIDs []int64) (int64, error) {
	if len(fuIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM file_uploads WHERE fu_id = ANY($1)`, fuIDs)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления file_uploads: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *attachmentRepo) CreateFile(ctx context.Context, f *model.FileUpload) error {
	query := `
		INSERT INTO file_uploads (fu_pk_uuid, fu_name, fu_path, fu_ext, fu_mime, fu_size, url, create_by, pivot_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL)
		RETURNING fu_id`

	pk := uuid.New().String()
	err := r.db.QueryRow(ctx, query,
		pk, f.Name, f.Path, f.Ext, f.Mime, f.Size, f.URL,
	).Scan(&f.FuID)
	if err != nil {
		return fmt.Errorf("ошибка создания file_uploads: %w", err)
	}
	f.FuPkUUID = pk
	return nil
}

func (r *attachmentRepo) CreatePivot(ctx context.Context, p *model.Pivot) error {
	query := `
		INSERT INTO pivot (pivot_pk_uuid, uploadable_id, uploadable_type, fu_id)
		VALUES ($1, $2, $3, $4)
		RETURNING pivot_id`

	pk := uuid.New().String()
	if err := r.db.QueryRow(ctx, query, pk, p.UploadableID, p.UploadableType, p.FuID).Scan(&p.PivotID); err != nil {
		return fmt.Errorf("ошибка создания pivot: %w", err)
	}
	p.PivotPkUUID = pk
	return nil
}
