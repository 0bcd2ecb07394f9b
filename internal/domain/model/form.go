package model

import "time"

// NewFinding — запись form_new_findings (отчёт о новой находке).
// Ключ сопоставления с TRIUP — FormNewID.
type NewFinding struct {
	PkID          int64
	PkUUID        string
	FormNewID     *int64
	ReportCode    *string
	ReportTitleTH *string
	ReportTitleEN *string
	CreateBy      *int64
	FormStatusID  *int64
	SLAAt         *time.Time
	SLABy         *int64
	Status        *string
}

// ResearchPlan — запись form_research_plan (план использования результатов).
// Ключи сопоставления: FormPlanFormNewID, затем FormPlanID.
type ResearchPlan struct {
	PkID   int64
	PkUUID string

	FormPlanID              *int64
	FormPlanFormNewID       *int64
	FormPlanCode            *string
	FormPlanFullname        *string
	FormPlanLastname        *string
	FormPlanPrefix          *int64
	FormPlanIDCard          *string
	FormPlanDepartment      *string
	FormPlanPosition        *string
	FormPlanTel             *string
	FormPlanEmail           *string
	FormPlanTypeStatus      *string
	FormPlanTypeStatusOther *string
	FormPlanPeriod          *int64
	FormPlanStartDate       *time.Time
	FormPlanUsageValue      *string
	FormPlanTarget          *string
	FormPlanTargetCheck     *string
	FormPlanTargetOther     *string
	FormPlanUserTarget      *string
	FormPlanResult          *string
	FormPlanResultCheck     *string
	FormPlanResultOther     *string
	FormPlanUserResult      *string
	FormPlanStatus          *string
	FormPlanCheckedBy       *int64
	FormPlanCheckedDate     *time.Time
	FormPlanFormOwnID       *int64
	FormPlanFormPlanID      *int64
	FormPlanType            *string
	FormPlanReason          *string
	FormPlanCondition       *int64
	FormPlanCreateBy        *int64
	FormPlanCreatedAt       *time.Time
	FormPlanUpdateBy        *int64
	FormPlanUpdatedAt       *time.Time
	FormPlanDeletedAt       *time.Time
	Fullname                *string
	Objective               *string
	Period                  *string

	// FileUploads — fu_id первого вложения (денормализованная ссылка)
	FileUploads *int64
}

// ResearchOwner — запись form_research_owner (права собственности).
// Ключи сопоставления: FormNewID, затем FormOwnID.
type ResearchOwner struct {
	PkID   int64
	PkUUID string

	FormOwnID           *int64
	FormOwnCode         *string
	FormOwnFormID       *int64
	FormOwnPrefix       *int64
	FormOwnFullname     *string
	FormOwnLastname     *string
	FormOwnCoOwner      *string
	FormOwnCoOwnerType  *string
	FormOwnOwnerType    *string
	FormOwnCoPrefix     *int64
	FormOwnCoName       *string
	FormOwnCoLastname   *string
	FormOwnCoIDCardNo   *string
	FormOwnCoDepartment *string
	FormOwnCoPosition   *string
	FormOwnCoTel        *string
	FormOwnCoMail       *string
	FormOwnStatus       *string
	FormOwnCheckedBy    *int64
	FormOwnCheckedDate  *time.Time
	FormOwnDateApprove  *time.Time
	FormOwnFormPlanID   *int64
	IsOwnership         *bool
	FormOwnCreateBy     *int64
	FormOwnCreatedAt    *time.Time
	FormOwnUpdateBy     *int64
	FormOwnUpdatedAt    *time.Time
	FormOwnDeletedAt    *time.Time
	FormNewID           *int64
	FormOwnFormName     *string
	FormOwnerName       *string
	Status              *string
	Fullname            *string
	FormOwnDepartment   *string
	IsOwnershipStatus   *string
	Objective           *string
	Period              *string

	// fu_id первого вложения в каждом слоте
	FileUploadsPlan     *int64
	FileUploadsContract *int64
	FileUploadsOther    *int64
}

// FormImportCounts — количество обработанных записей форм.
type FormImportCounts struct {
	NewFindings   int `json:"form_new_findings"`
	ResearchPlan  int `json:"form_research_plan"`
	ResearchOwner int `json:"form_research_owner"`
}

// RecordFailure — запись, не прошедшая импорт (транзакция откачена).
type RecordFailure struct {
	// Entity — имя таблицы (form_research_plan, form_research_owner, ...)
	Entity string `json:"entity"`
	// Index — позиция записи в снимке
	Index int `json:"index"`
	// Key — ключ записи из TRIUP (если был)
	Key *int64 `json:"key"`
	// Error — текст ошибки
	Error string `json:"error"`
}

// FormImportResult — итог импорта форм.
type FormImportResult struct {
	Counts   FormImportCounts
	Failures []RecordFailure
}

// RowRef — ссылка на существующую строку формы: локальный id и UUID.
type RowRef struct {
	ID   int64
	UUID string
}
