package normalize

import "time"

// Record — обёртка над объектом из снимка с типизированными геттерами.
// Запоминает поля, значения которых были обрезаны, чтобы вызывающий код
// мог залогировать потерю данных.
type Record struct {
	fields    map[string]any
	truncated []string
}

// NewRecord оборачивает объект снимка. nil допускается.
func NewRecord(fields map[string]any) *Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Record{fields: fields}
}

// AsRecord оборачивает произвольное значение; не-объект даёт ok = false.
func AsRecord(v any) (*Record, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return NewRecord(m), true
}

// Value возвращает сырое значение поля (nil, если поля нет).
func (r *Record) Value(key string) any {
	return r.fields[key]
}

// Has сообщает, что поле присутствует и не равно null.
func (r *Record) Has(key string) bool {
	return r.fields[key] != nil
}

// First возвращает первое непустое (не null) значение из перечисленных полей
// и имя поля, из которого оно взято.
func (r *Record) First(keys ...string) (any, string) {
	for _, k := range keys {
		if v := r.fields[k]; v != nil {
			return v, k
		}
	}
	return nil, ""
}

// Text возвращает строковое значение, обрезанное до max символов.
func (r *Record) Text(key string, max int) *string {
	return r.TextOf(max, key)
}

// TextOf возвращает строку из первого непустого поля среди keys,
// обрезанную до max символов (max <= 0 — без ограничения).
func (r *Record) TextOf(max int, keys ...string) *string {
	v, key := r.First(keys...)
	s, ok := Text(v)
	if !ok {
		return nil
	}
	s, cut := Truncate(s, max)
	if cut {
		r.truncated = append(r.truncated, key)
	}
	return &s
}

// Int возвращает целое значение поля.
func (r *Record) Int(key string) *int64 {
	return Int(r.fields[key])
}

// Time возвращает дату из поля.
func (r *Record) Time(key string) *time.Time {
	return Time(r.fields[key])
}

// Bool возвращает логическое значение поля.
func (r *Record) Bool(key string) *bool {
	return Bool(r.fields[key])
}

// JSON возвращает JSON-представление поля, обрезанное до max символов.
func (r *Record) JSON(key string, max int) *string {
	s := JSON(r.fields[key])
	if s == nil {
		return nil
	}
	cut, truncated := Truncate(*s, max)
	if truncated {
		r.truncated = append(r.truncated, key)
	}
	return &cut
}

// TextOrJSON возвращает строку как есть или JSON для составных значений.
func (r *Record) TextOrJSON(key string) *string {
	return TextOrJSON(r.fields[key])
}

// List возвращает массив из поля; отсутствие поля или не-массив дают nil.
func (r *Record) List(key string) []any {
	list, _ := r.fields[key].([]any)
	return list
}

// Truncated возвращает имена полей, значения которых были обрезаны.
func (r *Record) Truncated() []string {
	return r.truncated
}
