// Пакет normalize — мягкое приведение значений из JSON-снимков TRIUP
// к типам колонок PostgreSQL.
//
// Снимки содержат слабо типизированные данные: числа приходят строками,
// даты — в формате "YYYY-MM-DD HH:MM:SS", логические значения — как 0/1.
// Функции пакета никогда не возвращают ошибку: непригодное значение
// превращается в nil (NULL в БД).
//
// Числа ожидаются в виде json.Number (декодирование с UseNumber),
// float64 поддерживается для значений, собранных вручную.
package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Text приводит значение к строке так же, как это делает TRIUP-фронтенд (String(v)):
// числа без лишних нулей, массивы через запятую, объекты — "[object Object]".
// ok = false для nil.
func Text(v any) (s string, ok bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return formatNumber(f), true
		}
		return val.String(), true
	case float64:
		return formatNumber(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i], _ = Text(item)
		}
		return strings.Join(parts, ","), true
	default:
		return "[object Object]", true
	}
}

// formatNumber форматирует число в кратчайшей десятичной записи.
func formatNumber(f float64) string {
	switch {
	case f == 0:
		return "0"
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.Abs(f) < 1e21 && math.Abs(f) >= 1e-6:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// Truncate обрезает строку до max символов (рун).
// truncated = true, если строка была укорочена.
func Truncate(s string, max int) (result string, truncated bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// Number приводит значение к числу по правилам Number(v).
// ok = false соответствует NaN.
func Number(v any) (f float64, ok bool) {
	switch val := v.(type) {
	case nil:
		return 0, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case json.Number:
		return parseNumber(val.String())
	case float64:
		return val, !math.IsNaN(val)
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		return parseNumber(val)
	default:
		s, _ := Text(val)
		return parseNumber(s)
	}
}

// parseNumber разбирает строку как число; пустая строка — ноль.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Int приводит значение к целому. nil, пустая строка, NaN,
// дробные и бесконечные значения дают nil.
func Int(v any) *int64 {
	if v == nil {
		return nil
	}
	if s, isStr := v.(string); isStr && s == "" {
		return nil
	}
	f, ok := Number(v)
	if !ok || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

// Форматы дат, встречающиеся в снимках TRIUP.
// Значения без часового пояса трактуются как UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Time разбирает дату. Первый пробел заменяется на 'T'
// ("2024-01-31 10:00:00" → "2024-01-31T10:00:00"). Неразборчивое значение — nil.
func Time(v any) *time.Time {
	if !Truthy(v) {
		return nil
	}
	s, _ := Text(v)
	s = strings.Replace(strings.TrimSpace(s), " ", "T", 1)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Truthy возвращает истинность значения: nil, false, 0, "" — ложны.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, ok := Number(val)
		return ok && f != 0
	case float64:
		return val != 0 && !math.IsNaN(val)
	case int:
		return val != 0
	case int64:
		return val != 0
	default:
		return true
	}
}

// Bool приводит значение к логическому через числовое представление:
// "1", 1, true → true; "0", "abc", 0 → false. nil → nil.
func Bool(v any) *bool {
	if v == nil {
		return nil
	}
	f, ok := Number(v)
	b := ok && f != 0
	return &b
}

// JSON сериализует истинное значение в JSON-строку; ложное даёт nil.
func JSON(v any) *string {
	if !Truthy(v) {
		return nil
	}
	s, ok := marshal(v)
	if !ok {
		return nil
	}
	return &s
}

// TextOrJSON возвращает строку как есть, прочие значения — в виде JSON. nil → nil.
func TextOrJSON(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &val
	default:
		s, ok := marshal(val)
		if !ok {
			return nil
		}
		return &s
	}
}

// marshal кодирует значение без HTML-экранирования.
func marshal(v any) (string, bool) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", false
	}
	return strings.TrimSuffix(buf.String(), "\n"), true
}
