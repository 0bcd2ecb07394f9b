// form_import.go — импорт форм TRIUP из снимков (import-server-form).
//
// Порядок: form_new_findings → form_research_plan → form_research_owner.
// Каждая запись плана и формы собственности обрабатывается в отдельной
// транзакции: upsert строки, пересоздание вложений по всем слотам
// и запись fu_id первого вложения слота в строку формы.
//
// Ошибка отдельной записи откатывает только её, логируется и попадает
// в Failures; обработка продолжается. Ошибка чтения снимка прерывает вызов.
//
// Prometheus-метрики:
//   - tg_form_records_total — обработанные записи форм (по таблице и результату)
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/normalize"
	"github.com/bigkaa/triup-gateway/internal/repository"
	"github.com/bigkaa/triup-gateway/internal/snapshot"
)

var formRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tg_form_records_total",
	Help: "Количество обработанных записей форм",
}, []string{"table", "result"}) // result: ok, error

// formTextMax — максимальная длина текстовых колонок форм.
const formTextMax = 1255

// Файлы снимков форм.
const (
	fileNewFindings   = "form_new_findings.json"
	fileResearchPlan  = "form_research_plan.json"
	fileResearchOwner = "form_research_owner.json"
)

// Transactor выполняет функцию с набором репозиториев внутри одной транзакции.
type Transactor interface {
	InTx(ctx context.Context, fn func(s *repository.Store) error) error
}

// FormImporter — сервис импорта форм.
type FormImporter struct {
	store         *snapshot.Store
	tx            Transactor
	findingRepo   repository.FindingRepository
	syncStateRepo repository.SyncStateRepository
	attachments   *AttachmentReconciler
	now           func() time.Time
	logger        *slog.Logger
}

// NewFormImporter создаёт сервис импорта форм.
func NewFormImporter(
	store *snapshot.Store,
	tx Transactor,
	findingRepo repository.FindingRepository,
	syncStateRepo repository.SyncStateRepository,
	attachments *AttachmentReconciler,
	logger *slog.Logger,
) *FormImporter {
	return &FormImporter{
		store:         store,
		tx:            tx,
		findingRepo:   findingRepo,
		syncStateRepo: syncStateRepo,
		attachments:   attachments,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "form_import")),
	}
}

// ImportAll импортирует все три вида форм.
func (s *FormImporter) ImportAll(ctx context.Context) (*model.FormImportResult, error) {
	result := &model.FormImportResult{}

	findings, err := s.store.ReadArray(ctx, fileNewFindings)
	if err != nil {
		return nil, snapshotError(err)
	}
	result.Counts.NewFindings = s.each(ctx, result, "form_new_findings", findings, s.upsertFinding)

	plans, err := s.store.ReadArray(ctx, fileResearchPlan)
	if err != nil {
		return nil, snapshotError(err)
	}
	result.Counts.ResearchPlan = s.each(ctx, result, "form_research_plan", plans, s.upsertPlan)

	owners, err := s.store.ReadArray(ctx, fileResearchOwner)
	if err != nil {
		return nil, snapshotError(err)
	}
	result.Counts.ResearchOwner = s.each(ctx, result, "form_research_owner", owners, s.upsertOwner)

	if err := s.syncStateRepo.Mark(ctx, model.StageFormImport, s.now().UTC()); err != nil {
		s.logger.Warn("Ошибка обновления last_form_import_at", slog.String("error", err.Error()))
	}

	s.logger.Info("Импорт форм завершён",
		slog.Int("form_new_findings", result.Counts.NewFindings),
		slog.Int("form_research_plan", result.Counts.ResearchPlan),
		slog.Int("form_research_owner", result.Counts.ResearchOwner),
		slog.Int("failed", len(result.Failures)),
	)
	return result, nil
}

// upsertFunc импортирует одну запись и возвращает её ключ TRIUP (для отчёта об ошибке).
type upsertFunc func(ctx context.Context, rec *normalize.Record) (*int64, error)

// each применяет upsert к каждой записи, собирая ошибки в result.Failures.
// Возвращает количество успешно обработанных записей.
func (s *FormImporter) each(ctx context.Context, result *model.FormImportResult, entity string, items []any, upsert upsertFunc) int {
	count := 0
	for i, item := range items {
		rec, ok := normalize.AsRecord(item)
		if !ok {
			rec = normalize.NewRecord(nil)
		}

		key, err := upsert(ctx, rec)
		s.logTruncated(entity, i, rec)
		if err != nil {
			formRecordsTotal.WithLabelValues(entity, "error").Inc()
			s.logger.Error("Ошибка импорта записи формы",
				slog.String("entity", entity),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			result.Failures = append(result.Failures, model.RecordFailure{
				Entity: entity,
				Index:  i,
				Key:    key,
				Error:  err.Error(),
			})
			continue
		}
		formRecordsTotal.WithLabelValues(entity, "ok").Inc()
		count++
	}
	return count
}

// logTruncated логирует поля записи, обрезанные до 1255 символов.
func (s *FormImporter) logTruncated(entity string, index int, rec *normalize.Record) {
	for _, field := range rec.Truncated() {
		s.logger.Warn("Значение обрезано",
			slog.String("table", entity),
			slog.String("column", field),
			slog.Int("index", index),
		)
	}
}

// --- form_new_findings ---

func (s *FormImporter) upsertFinding(ctx context.Context, rec *normalize.Record) (*int64, error) {
	f := findingFromRecord(rec)

	if f.FormNewID != nil {
		ref, err := s.findingRepo.FindByFormNewID(ctx, *f.FormNewID)
		switch {
		case err == nil:
			f.PkID, f.PkUUID = ref.ID, ref.UUID
			return f.FormNewID, s.findingRepo.Update(ctx, f)
		case !errors.Is(err, repository.ErrNotFound):
			return f.FormNewID, err
		}
	}
	return f.FormNewID, s.findingRepo.Insert(ctx, f)
}

func findingFromRecord(rec *normalize.Record) *model.NewFinding {
	return &model.NewFinding{
		FormNewID:     rec.Int("form_new_id"),
		ReportCode:    rec.Text("report_code", formTextMax),
		ReportTitleTH: rec.Text("report_title_th", formTextMax),
		ReportTitleEN: rec.Text("report_title_en", formTextMax),
		CreateBy:      rec.Int("createBy"),
		FormStatusID:  rec.Int("form_status_id"),
		SLAAt:         rec.Time("sla_at"),
		SLABy:         rec.Int("sla_by"),
		Status:        rec.Text("status", formTextMax),
	}
}

// --- form_research_plan ---

func (s *FormImporter) upsertPlan(ctx context.Context, rec *normalize.Record) (*int64, error) {
	p := planFromRecord(rec)
	key := p.FormPlanFormNewID
	if key == nil {
		key = p.FormPlanID
	}

	err := s.tx.InTx(ctx, func(st *repository.Store) error {
		ref, err := resolveRowRef(ctx,
			lookup(p.FormPlanFormNewID, st.Plans.FindByFormNewID),
			lookup(p.FormPlanID, st.Plans.FindByFormPlanID),
		)
		if err != nil {
			return err
		}

		if ref != nil {
			p.PkID, p.PkUUID = ref.ID, ref.UUID
			if err := st.Plans.Update(ctx, p); err != nil {
				return err
			}
		} else if err := st.Plans.Insert(ctx, p); err != nil {
			return err
		}

		owner := model.AttachmentOwner{Slot: model.SlotResearchPlan, ID: p.PkID}
		if err := s.attachments.DeleteAttachments(ctx, st.Attachments, owner); err != nil {
			return err
		}
		files, err := s.attachments.CreateAttachments(ctx, st.Attachments, rec.List("file_uploads"), owner)
		if err != nil {
			return err
		}
		if len(files) > 0 {
			return st.Plans.SetFileUploads(ctx, p.PkID, &files[0].FuID)
		}
		return nil
	})
	return key, err
}

func planFromRecord(rec *normalize.Record) *model.ResearchPlan {
	return &model.ResearchPlan{
		FormPlanID:              rec.Int("form_plan_id"),
		FormPlanFormNewID:       rec.Int("form_plan_form_new_id"),
		FormPlanCode:            rec.Text("form_plan_code", formTextMax),
		FormPlanFullname:        rec.Text("form_plan_fullname", formTextMax),
		FormPlanLastname:        rec.Text("form_plan_lastname", formTextMax),
		FormPlanPrefix:          rec.Int("form_plan_prefix"),
		FormPlanIDCard:          rec.Text("form_plan_idcard", formTextMax),
		FormPlanDepartment:      rec.Text("form_plan_department", formTextMax),
		FormPlanPosition:        rec.Text("form_plan_position", formTextMax),
		FormPlanTel:             rec.Text("form_plan_tel", formTextMax),
		FormPlanEmail:           rec.Text("form_plan_email", formTextMax),
		FormPlanTypeStatus:      rec.Text("form_plan_type_status", formTextMax),
		FormPlanTypeStatusOther: rec.Text("form_plan_type_status_other", formTextMax),
		FormPlanPeriod:          rec.Int("form_plan_period"),
		FormPlanStartDate:       rec.Time("form_plan_start_date"),
		FormPlanUsageValue:      rec.Text("form_plan_usage_value", 0),
		FormPlanTarget:          rec.TextOrJSON("form_plan_target"),
		FormPlanTargetCheck:     rec.Text("form_plan_target_check", formTextMax),
		FormPlanTargetOther:     rec.Text("form_plan_target_other", formTextMax),
		FormPlanUserTarget:      rec.Text("form_plan_user_target", formTextMax),
		FormPlanResult:          rec.TextOrJSON("form_plan_result"),
		FormPlanResultCheck:     rec.Text("form_plan_result_check", formTextMax),
		FormPlanResultOther:     rec.Text("form_plan_result_other", formTextMax),
		FormPlanUserResult:      rec.Text("form_plan_user_result", formTextMax),
		FormPlanStatus:          rec.Text("form_plan_status", formTextMax),
		FormPlanCheckedBy:       rec.Int("form_plan_checked_by"),
		FormPlanCheckedDate:     rec.Time("form_plan_checked_date"),
		FormPlanFormOwnID:       rec.Int("form_plan_form_own_id"),
		FormPlanFormPlanID:      rec.Int("form_plan_form_plan_id"),
		FormPlanType:            rec.Text("form_plan_type", formTextMax),
		FormPlanReason:          rec.TextOrJSON("form_plan_reason"),
		FormPlanCondition:       rec.Int("form_plan_condition"),
		FormPlanCreateBy:        rec.Int("form_plan_create_by"),
		FormPlanCreatedAt:       rec.Time("form_plan_created_at"),
		FormPlanUpdateBy:        rec.Int("form_plan_update_by"),
		FormPlanUpdatedAt:       rec.Time("form_plan_updated_at"),
		FormPlanDeletedAt:       rec.Time("form_plan_deleted_at"),
		Fullname:                rec.Text("fullname", formTextMax),
		Objective:               rec.JSON("objective", 0),
		Period:                  rec.JSON("period", formTextMax),
	}
}

// --- form_research_owner ---

// ownerSlots — слоты вложений формы собственности и поля снимка с файлами.
var ownerSlots = []struct {
	slot  model.OwnerSlot
	field string
}{
	{model.SlotOwnerPlan, "file_uploads_plan"},
	{model.SlotOwnerContract, "file_uploads_contract"},
	{model.SlotOwnerOther, "file_uploads_other"},
}

func (s *FormImporter) upsertOwner(ctx context.Context, rec *normalize.Record) (*int64, error) {
	o := ownerFromRecord(rec)
	key := o.FormNewID
	if key == nil {
		key = o.FormOwnID
	}

	err := s.tx.InTx(ctx, func(st *repository.Store) error {
		ref, err := resolveRowRef(ctx,
			lookup(o.FormNewID, st.Owners.FindByFormNewID),
			lookup(o.FormOwnID, st.Owners.FindByFormOwnID),
		)
		if err != nil {
			return err
		}

		if ref != nil {
			o.PkID, o.PkUUID = ref.ID, ref.UUID
			if err := st.Owners.Update(ctx, o); err != nil {
				return err
			}
		} else if err := st.Owners.Insert(ctx, o); err != nil {
			return err
		}

		for _, entry := range ownerSlots {
			owner := model.AttachmentOwner{Slot: entry.slot, ID: o.PkID}
			if err := s.attachments.DeleteAttachments(ctx, st.Attachments, owner); err != nil {
				return err
			}
		}

		// fu_id первого вложения каждого слота
		first := make([]*int64, len(ownerSlots))
		created := false
		for i, entry := range ownerSlots {
			owner := model.AttachmentOwner{Slot: entry.slot, ID: o.PkID}
			files, err := s.attachments.CreateAttachments(ctx, st.Attachments, rec.List(entry.field), owner)
			if err != nil {
				return err
			}
			if len(files) > 0 {
				first[i] = &files[0].FuID
				created = true
			}
		}

		if created {
			return st.Owners.SetFileUploads(ctx, o.PkID, first[0], first[1], first[2])
		}
		return nil
	})
	return key, err
}

func ownerFromRecord(rec *normalize.Record) *model.ResearchOwner {
	return &model.ResearchOwner{
		FormOwnID:           rec.Int("form_own_id"),
		FormOwnCode:         rec.Text("form_own_code", formTextMax),
		FormOwnFormID:       rec.Int("form_own_form_id"),
		FormOwnPrefix:       rec.Int("form_own_prefix"),
		FormOwnFullname:     rec.Text("form_own_fullname", formTextMax),
		FormOwnLastname:     rec.Text("form_own_lastname", formTextMax),
		FormOwnCoOwner:      rec.Text("form_own_co_owner", formTextMax),
		FormOwnCoOwnerType:  rec.Text("form_own_co_owner_type", formTextMax),
		FormOwnOwnerType:    rec.Text("form_own_ownertype", formTextMax),
		FormOwnCoPrefix:     rec.Int("form_own_co_prefix"),
		FormOwnCoName:       rec.Text("form_own_co_name", formTextMax),
		FormOwnCoLastname:   rec.Text("form_own_co_lastname", formTextMax),
		FormOwnCoIDCardNo:   rec.Text("form_own_co_idcard_no", formTextMax),
		FormOwnCoDepartment: rec.Text("form_own_co_department", formTextMax),
		FormOwnCoPosition:   rec.Text("form_own_co_position", formTextMax),
		FormOwnCoTel:        rec.Text("form_own_co_tel", formTextMax),
		FormOwnCoMail:       rec.Text("form_own_co_mail", formTextMax),
		FormOwnStatus:       rec.Text("form_own_status", formTextMax),
		FormOwnCheckedBy:    rec.Int("form_own_checked_by"),
		FormOwnCheckedDate:  rec.Time("form_own_checked_date"),
		FormOwnDateApprove:  rec.Time("form_own_date_approve"),
		FormOwnFormPlanID:   rec.Int("form_own_form_plan_id"),
		IsOwnership:         rec.Bool("is_ownership"),
		FormOwnCreateBy:     rec.Int("form_own_create_by"),
		FormOwnCreatedAt:    rec.Time("form_own_created_at"),
		FormOwnUpdateBy:     rec.Int("form_own_update_by"),
		FormOwnUpdatedAt:    rec.Time("form_own_updated_at"),
		FormOwnDeletedAt:    rec.Time("form_own_deleted_at"),
		FormNewID:           rec.Int("form_new_id"),
		FormOwnFormName:     rec.Text("form_own_form_name", formTextMax),
		FormOwnerName:       rec.Text("form_owner_name", formTextMax),
		Status:              rec.Text("status", formTextMax),
		Fullname:            rec.Text("fullname", formTextMax),
		FormOwnDepartment:   rec.Text("form_own_department", formTextMax),
		IsOwnershipStatus:   rec.Text("is_ownership_status", formTextMax),
		Objective:           rec.JSON("objective", 0),
		Period:              rec.JSON("period", formTextMax),
	}
}

// --- разрешение естественного ключа ---

// rowLookup — поиск строки формы по одному из ключей; nil — ключ отсутствует в записи.
type rowLookup func(ctx context.Context) (*model.RowRef, error)

// lookup связывает ключ записи с функцией поиска. Отсутствующий ключ даёт nil.
func lookup(key *int64, find func(ctx context.Context, id int64) (*model.RowRef, error)) rowLookup {
	if key == nil {
		return nil
	}
	return func(ctx context.Context) (*model.RowRef, error) {
		return find(ctx, *key)
	}
}

// resolveRowRef пробует ключи по порядку; первый найденный решает,
// обновлять ли существующую строку. Ничего не найдено — (nil, nil).
func resolveRowRef(ctx context.Context, lookups ...rowLookup) (*model.RowRef, error) {
	for _, l := range lookups {
		if l == nil {
			continue
		}
		ref, err := l(ctx)
		if err == nil {
			return ref, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}
