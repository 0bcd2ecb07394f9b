// Пакет snapshot — JSON-снимки ответов TRIUP: конверт {fetchedAt, key, url, data},
// разворачивание вложенных data и хранилище снимков (gocloud.dev/blob).
package snapshot

import (
	"encoding/json"
	"time"
)

// Document — конверт снимка, записываемый при загрузке из TRIUP.
type Document struct {
	FetchedAt time.Time       `json:"fetchedAt"`
	Key       string          `json:"key"`
	URL       string          `json:"url"`
	Data      json.RawMessage `json:"data"`
}

// Unwrap снимает до двух уровней обёртки data:
//
//	{data: X}           → X
//	{data: {data: Y}}   → Y
//	X (не объект или без data) → X
//
// Поле data учитывается, даже если его значение null.
func Unwrap(doc any) any {
	obj, ok := doc.(map[string]any)
	if !ok {
		return doc
	}
	inner, has := obj["data"]
	if !has {
		return doc
	}
	if innerObj, ok := inner.(map[string]any); ok {
		if nested, has := innerObj["data"]; has {
			return nested
		}
	}
	return inner
}
