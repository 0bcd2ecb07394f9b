package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// Таблицы форм.
const (
	tableNewFindings   = "form_new_findings"
	tableResearchPlan  = "form_research_plan"
	tableResearchOwner = "form_research_owner"
)

// FindingRepository — доступ к form_new_findings.
type FindingRepository interface {
	// FindByFormNewID ищет строку по form_new_id.
	FindByFormNewID(ctx context.Context, formNewID int64) (*model.RowRef, error)
	// Insert вставляет запись; заполняет PkID и PkUUID.
	Insert(ctx context.Context, f *model.NewFinding) error
	// Update перезаписывает запись с f.PkUUID.
	Update(ctx context.Context, f *model.NewFinding) error
}

// ResearchPlanRepository — доступ к form_research_plan.
type ResearchPlanRepository interface {
	// FindByFormNewID ищет строку по form_plan_form_new_id.
	FindByFormNewID(ctx context.Context, formNewID int64) (*model.RowRef, error)
	// FindByFormPlanID ищет строку по form_plan_id.
	FindByFormPlanID(ctx context.Context, formPlanID int64) (*model.RowRef, error)
	// Insert вставляет запись; заполняет PkID и PkUUID.
	Insert(ctx context.Context, p *model.ResearchPlan) error
	// Update перезаписывает запись с p.PkUUID.
	Update(ctx context.Context, p *model.ResearchPlan) error
	// SetFileUploads записывает ссылку на первое вложение.
	SetFileUploads(ctx context.Context, pkID int64, fuID *int64) error
}

// ResearchOwnerRepository — доступ к form_research_owner.
type ResearchOwnerRepository interface {
	// FindByFormNewID ищет строку по form_new_id.
	FindByFormNewID(ctx context.Context, formNewID int64) (*model.RowRef, error)
	// FindByFormOwnID ищет строку по form_own_id.
	FindByFormOwnID(ctx context.Context, formOwnID int64) (*model.RowRef, error)
	// Insert вставляет запись; заполняет PkID и PkUUID.
	Insert(ctx context.Context, o *model.ResearchOwner) error
	// Update перезаписывает запись с o.PkUUID.
	Update(ctx context.Context, o *model.ResearchOwner) error
	// SetFileUploads записывает ссылки на первые вложения слотов plan/contract/other.
	SetFileUploads(ctx context.Context, pkID int64, plan, contract, other *int64) error
}

// findRowRef выполняет поиск первой строки таблицы по значению колонки.
func findRowRef(ctx context.Context, db DBTX, table, idCol, uuidCol, keyCol string, key int64) (*model.RowRef, error) {
	query := fmt.Sprintf(`SELECT %s, %s::text FROM %s WHERE %s = $1 ORDER BY %s LIMIT 1`,
		pgx.Identifier{idCol}.Sanitize(),
		pgx.Identifier{uuidCol}.Sanitize(),
		pgx.Identifier{table}.Sanitize(),
		pgx.Identifier{keyCol}.Sanitize(),
		pgx.Identifier{idCol}.Sanitize(),
	)

	ref := &model.RowRef{}
	if err := db.QueryRow(ctx, query, key).Scan(&ref.ID, &ref.UUID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска в %s по %s=%d: %w", table, keyCol, key, err)
	}
	return ref, nil
}

// insertForm вставляет строку формы с новым UUID и возвращает локальный id.
func insertForm(ctx context.Context, db DBTX, table, idCol, uuidCol string, cs *columnSet) (int64, string, error) {
	pk := uuid.New().String()
	cs.names = append([]string{uuidCol}, cs.names...)
	cs.values = append([]any{pk}, cs.values...)

	var id int64
	if err := db.QueryRow(ctx, cs.insertSQL(table, pgx.Identifier{idCol}.Sanitize()), cs.values...).Scan(&id); err != nil {
		return 0, "", fmt.Errorf("ошибка вставки в %s: %w", table, err)
	}
	return id, pk, nil
}

// --- form_new_findings ---

// findingRepo — реализация FindingRepository.
type findingRepo struct {
	db DBTX
}

// NewFindingRepository создаёт репозиторий form_new_findings.
func NewFindingRepository(db DBTX) FindingRepository {
	return &findingRepo{db: db}
}

func (r *findingRepo) FindByFormNewID(ctx context.Context, formNewID int64) (*model.RowRef, error) {
	return findRowRef(ctx, r.db, tableNewFindings, "findings_pk_id", "findings_pk_uuid", "form_new_id", formNewID)
}

func (r *findingRepo) Insert(ctx context.Context, f *model.NewFinding) error {
	id, pk, err := insertForm(ctx, r.db, tableNewFindings, "findings_pk_id", "findings_pk_uuid", findingColumns(f))
	if err != nil {
		return err
	}
	f.PkID, f.PkUUID = id, pk
	return nil
}

func (r *findingRepo) Update(ctx context.Context, f *model.NewFinding) error {
	return execUpdate(ctx, r.db, tableNewFindings, "findings_pk_uuid", f.PkUUID, findingColumns(f))
}

func findingColumns(f *model.NewFinding) *columnSet {
	cs := &columnSet{}
	cs.add("form_new_id", f.FormNewID)
	cs.add("report_code", f.ReportCode)
	cs.add("report_title_th", f.ReportTitleTH)
	cs.add("report_title_en", f.ReportTitleEN)
	cs.add("createby", f.CreateBy)
	cs.add("form_status_id", f.FormStatusID)
	cs.add("sla_at", f.SLAAt)
	cs.add("sla_by", f.SLABy)
	cs.add("status", f.Status)
	return cs
}

// --- form_research_plan ---

// planRepo — реализация ResearchPlanRepository.
type planRepo struct {
	db DBTX
}

// NewResearchPlanRepository создаёт репозиторий form_research_plan.
func NewResearchPlanRepository(db DBTX) ResearchPlanRepository {
	return &planRepo{db: db}
}

func (r *planRepo) FindByFormNewID(ctx context.Context, formNewID int64) (*model.RowRef, error) {
	return findRowRef(ctx, r.db, tableResearchPlan, "plan_pk_id", "plan_pk_uuid", "form_plan_form_new_id", formNewID)
}

func (r *planRepo) FindByFormPlanID(ctx context.Context, formPlanID int64) (*model.RowRef, error) {
	return findRowRef(ctx, r.db, tableResearchPlan, "plan_pk_id", "plan_pk_uuid", "form_plan_id", formPlanID)
}

func (r *planRepo) Insert(ctx context.Context, p *model.ResearchPlan) error {
	id, pk, err := insertForm(ctx, r.db, tableResearchPlan, "plan_pk_id", "plan_pk_uuid", planColumns(p))
	if err != nil {
		return err
	}
	p.PkID, p.PkUUID = id, pk
	return nil
}

func (r *planRepo) Update(ctx context.Context, p *model.ResearchPlan) error {
	cs := planColumns(p)
	err := r.db.QueryRow(ctx,
		cs.updateSQL(tableResearchPlan, "plan_pk_uuid")+" RETURNING plan_pk_id",
		cs.updateArgs(p.PkUUID)...,
	).Scan(&p.PkID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления %s: %w", tableResearchPlan, err)
	}
	return nil
}

func (r *planRepo) SetFileUploads(ctx context.Context, pkID int64, fuID *int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE form_research_plan SET file_uploads = $2, updated_at = NOW() WHERE plan_pk_id = $1`,
		pkID, fuID,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления file_uploads плана %d: %w", pkID, err)
	}
	return nil
}

func planColumns(p *model.ResearchPlan) *columnSet {
	cs := &columnSet{}
	cs.add("form_plan_id", p.FormPlanID)
	cs.add("form_plan_form_new_id", p.FormPlanFormNewID)
	cs.add("form_plan_code", p.FormPlanCode)
	cs.add("form_plan_fullname", p.FormPlanFullname)
	cs.add("form_plan_lastname", p.FormPlanLastname)
	cs.add("form_plan_prefix", p.FormPlanPrefix)
	cs.add("form_plan_idcard", p.FormPlanIDCard)
	cs.add("form_plan_department", p.FormPlanDepartment)
	cs.add("form_plan_position", p.FormPlanPosition)
	cs.add("form_plan_tel", p.FormPlanTel)
	cs.add("form_plan_email", p.FormPlanEmail)
	cs.add("form_plan_type_status", p.FormPlanTypeStatus)
	cs.add("form_plan_type_status_other", p.FormPlanTypeStatusOther)
	cs.add("form_plan_period", p.FormPlanPeriod)
	cs.add("form_plan_start_date", p.FormPlanStartDate)
	cs.add("form_plan_usage_value", p.FormPlanUsageValue)
	cs.add("form_plan_target", p.FormPlanTarget)
	cs.add("form_plan_target_check", p.FormPlanTargetCheck)
	cs.add("form_plan_target_other", p.FormPlanTargetOther)
	cs.add("form_plan_user_target", p.FormPlanUserTarget)
	cs.add("form_plan_result", p.FormPlanResult)
	cs.add("form_plan_result_check", p.FormPlanResultCheck)
	cs.add("form_plan_result_other", p.FormPlanResultOther)
	cs.add("form_plan_user_result", p.FormPlanUserResult)
	cs.add("form_plan_status", p.FormPlanStatus)
	cs.add("form_plan_checked_by", p.FormPlanCheckedBy)
	cs.add("form_plan_checked_date", p.FormPlanCheckedDate)
	cs.add("form_plan_form_own_id", p.FormPlanFormOwnID)
	cs.add("form_plan_form_plan_id", p.FormPlanFormPlanID)
	cs.add("form_plan_type", p.FormPlanType)
	cs.add("form_plan_reason", p.FormPlanReason)
	cs.add("form_plan_condition", p.FormPlanCondition)
	cs.add("form_plan_create_by", p.FormPlanCreateBy)
	cs.add("form_plan_created_at", p.FormPlanCreatedAt)
	cs.add("form_plan_update_by", p.FormPlanUpdateBy)
	cs.add("form_plan_updated_at", p.FormPlanUpdatedAt)
	cs.add("form_plan_deleted_at", p.FormPlanDeletedAt)
	cs.add("fullname", p.Fullname)
	cs.add("objective", p.Objective)
	cs.add("period", p.Period)
	cs.add("file_uploads", p.FileUploads)
	return cs
}

// --- form_research_owner ---

// ownerRepo — реализация ResearchOwnerRepository.
type ownerRepo struct {
	db DBTX
}

// NewResearchOwnerRepository создаёт репозиторий form_research_owner.
func NewResearchOwnerRepository(db DBTX) ResearchOwnerRepository {
	return &ownerRepo{db: db}
}

func (r *ownerRepo) FindByFormNewID(ctx context.Context, formNewID int64) (*model.RowRef, error) {
	return findRowRef(ctx, r.db, tableResearchOwner, "owner_pk_id", "owner_pk_uuid", "form_new_id", formNewID)
}

func (r *ownerRepo) FindByFormOwnID(ctx context.Context, formOwnID int64) (*model.RowRef, error) {
	return findRowRef(ctx, r.db, tableResearchOwner, "owner_pk_id", "owner_pk_uuid", "form_own_id", formOwnID)
}

func (r *ownerRepo) Insert(ctx context.Context, o *model.ResearchOwner) error {
	id, pk, err := insertForm(ctx, r.db, tableResearchOwner, "owner_pk_id", "owner_pk_uuid", ownerColumns(o))
	if err != nil {
		return err
	}
	o.PkID, o.PkUUID = id, pk
	return nil
}

func (r *ownerRepo) Update(ctx context.Context, o *model.ResearchOwner) error {
	cs := ownerColumns(o)
	err := r.db.QueryRow(ctx,
		cs.updateSQL(tableResearchOwner, "owner_pk_uuid")+" RETURNING owner_pk_id",
		cs.updateArgs(o.PkUUID)...,
	).Scan(&o.PkID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления %s: %w", tableResearchOwner, err)
	}
	return nil
}

func (r *ownerRepo) SetFileUploads(ctx context.Context, pkID int64, plan, contract, other *int64) error {
	query := `
		UPDATE form_research_owner
		SET file_uploads_plan = $2, file_uploads_contract = $3, file_uploads_other = $4,
			updated_at = NOW()
		WHERE owner_pk_id = $1`

	if _, err := r.db.Exec(ctx, query, pkID, plan, contract, other); err != nil {
		return fmt.Errorf("ошибка обновления вложений формы собственности %d: %w", pkID, err)
	}
	return nil
}

func ownerColumns(o *model.ResearchOwner) *columnSet {
	cs := &columnSet{}
	cs.add("form_own_id", o.FormOwnID)
	cs.add("form_own_code", o.FormOwnCode)
	cs.add("form_own_form_id", o.FormOwnFormID)
	cs.add("form_own_prefix", o.FormOwnPrefix)
	cs.add("form_own_fullname", o.FormOwnFullname)
	cs.add("form_own_lastname", o.FormOwnLastname)
	cs.add("form_own_co_owner", o.FormOwnCoOwner)
	cs.add("form_own_co_owner_type", o.FormOwnCoOwnerType)
	cs.add("form_own_ownertype", o.FormOwnOwnerType)
	cs.add("form_own_co_prefix", o.FormOwnCoPrefix)
	cs.add("form_own_co_name", o.FormOwnCoName)
	cs.add("form_own_co_lastname", o.FormOwnCoLastname)
	cs.add("form_own_co_idcard_no", o.FormOwnCoIDCardNo)
	cs.add("form_own_co_department", o.FormOwnCoDepartment)
	cs.add("form_own_co_position", o.FormOwnCoPosition)
	cs.add("form_own_co_tel", o.FormOwnCoTel)
	cs.add("form_own_co_mail", o.FormOwnCoMail)
	cs.add("form_own_status", o.FormOwnStatus)
	cs.add("form_own_checked_by", o.FormOwnCheckedBy)
	cs.add("form_own_checked_date", o.FormOwnCheckedDate)
	cs.add("form_own_date_approve", o.FormOwnDateApprove)
	cs.add("form_own_form_plan_id", o.FormOwnFormPlanID)
	cs.add("is_ownership", o.IsOwnership)
	cs.add("form_own_create_by", o.FormOwnCreateBy)
	cs.add("form_own_created_at", o.FormOwnCreatedAt)
	cs.add("form_own_update_by", o.FormOwnUpdateBy)
	cs.add("form_own_updated_at", o.FormOwnUpdatedAt)
	cs.add("form_own_deleted_at", o.FormOwnDeletedAt)
	cs.add("form_new_id", o.FormNewID)
	cs.add("form_own_form_name", o.FormOwnFormName)
	cs.add("form_owner_name", o.FormOwnerName)
	cs.add("status", o.Status)
	cs.add("fullname", o.Fullname)
	cs.add("form_own_department", o.FormOwnDepartment)
	cs.add("is_ownership_status", o.IsOwnershipStatus)
	cs.add("objective", o.Objective)
	cs.add("period", o.Period)
	cs.add("file_uploads_plan", o.FileUploadsPlan)
	cs.add("file_uploads_contract", o.FileUploadsContract)
	cs.add("file_uploads_other", o.FileUploadsOther)
	return cs
}
