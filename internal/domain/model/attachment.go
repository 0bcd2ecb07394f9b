package model

// OwnerSlot — тип владельца вложения (uploadable_type в pivot).
// Набор значений закрыт: создать слот вне пакета нельзя, нулевое значение невалидно.
type OwnerSlot struct {
	tag string
}

// Слоты владельцев вложений.
var (
	// SlotResearchPlan — вложения плана использования
	SlotResearchPlan = OwnerSlot{tag: "form_research_plan"}
	// SlotOwnerPlan — план в форме прав собственности
	SlotOwnerPlan = OwnerSlot{tag: "form_research_owner_plan"}
	// SlotOwnerContract — договор в форме прав собственности
	SlotOwnerContract = OwnerSlot{tag: "form_research_owner_contract"}
	// SlotOwnerOther — прочие документы формы прав собственности
	SlotOwnerOther = OwnerSlot{tag: "form_research_owner_other"}
)

// Tag возвращает значение uploadable_type.
func (s OwnerSlot) Tag() string { return s.tag }

// IsZero сообщает, что слот не задан.
func (s OwnerSlot) IsZero() bool { return s.tag == "" }

func (s OwnerSlot) String() string { return s.tag }

// AttachmentOwner — владелец набора вложений: слот + локальный id записи формы.
type AttachmentOwner struct {
	Slot OwnerSlot
	ID   int64
}

// FileUpload — запись file_uploads.
type FileUpload struct {
	FuID     int64
	FuPkUUID string
	Name     *string
	Path     *string
	Ext      *string
	Mime     *string
	Size     *int64
	URL      *string
}

// Pivot — связь вложения с владельцем.
type Pivot struct {
	PivotID        int64
	PivotPkUUID    string
	UploadableID   int64
	UploadableType string
	FuID           *int64
}
