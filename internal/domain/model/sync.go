package model

import "time"

// SyncState — состояние синхронизации (одна строка в БД).
// Хранится в таблице sync_state (id = 1, всегда одна запись).
type SyncState struct {
	// ID — всегда 1
	ID int
	// LastFetchAt — время последней загрузки снимков из TRIUP
	LastFetchAt *time.Time
	// LastReferenceImportAt — время последнего импорта справочников
	LastReferenceImportAt *time.Time
	// LastFormImportAt — время последнего импорта форм
	LastFormImportAt *time.Time
	// LastUserImportAt — время последней перезаливки users/researcher
	LastUserImportAt *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// SyncStage — этап синхронизации, время которого фиксируется в sync_state.
type SyncStage string

// Этапы синхронизации.
const (
	StageFetch           SyncStage = "fetch"
	StageReferenceImport SyncStage = "reference_import"
	StageFormImport      SyncStage = "form_import"
	StageUserImport      SyncStage = "user_import"
)

// Endpoint — один источник снимка в TRIUP: ключ (имя файла) и относительный путь API.
type Endpoint struct {
	Key  string
	Path string
}

// Статусы элемента сводки загрузки.
const (
	FetchStatusOK    = "ok"
	FetchStatusError = "error"
)

// FetchItem — результат загрузки одного снимка.
type FetchItem struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// FetchSummary — сводка загрузки всех снимков.
type FetchSummary struct {
	Success   bool        `json:"success"`
	FetchedAt time.Time   `json:"fetchedAt"`
	OutputDir string      `json:"outputDir"`
	Total     int         `json:"total"`
	OK        int         `json:"ok"`
	Failed    int         `json:"failed"`
	Items     []FetchItem `json:"items"`
}

// ReferenceImportResult — итог импорта справочников.
type ReferenceImportResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	// Counts — количество обработанных записей по ключу справочника
	Counts map[string]int
}

// DirectoryImportCounts — количество записей после перезаливки.
type DirectoryImportCounts struct {
	Users      int `json:"users"`
	Researcher int `json:"researcher"`
}
