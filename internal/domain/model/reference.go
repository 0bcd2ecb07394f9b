package model

// ColumnValue — значение одной колонки справочной таблицы.
type ColumnValue struct {
	Column string
	Value  *string
}

// ReferenceRecord — запись справочника, подготовленная к upsert.
type ReferenceRecord struct {
	// UpstreamID — id записи в TRIUP; nil — запись всегда вставляется заново
	UpstreamID *int64
	// Values — отображаемые поля в порядке объявления
	Values []ColumnValue
}
