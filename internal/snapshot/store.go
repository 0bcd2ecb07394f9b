package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob" // mem:// — тесты и запуск без диска
	_ "gocloud.dev/blob/s3blob"  // s3:// — общий бакет для нескольких реплик
	"gocloud.dev/gcerrors"
)

// Ошибки чтения снимков.
var (
	// ErrNotFound — снимок отсутствует в хранилище.
	ErrNotFound = errors.New("snapshot not found")
	// ErrNotArray — после разворачивания конверта данные не являются массивом.
	ErrNotArray = errors.New("data is not array")
	// ErrNotObject — после разворачивания конверта данные не являются объектом.
	ErrNotObject = errors.New("data is not object")
)

// Store — хранилище JSON-снимков поверх gocloud.dev/blob.
// Каждый снимок — отдельный объект {key}.json; повторная запись перезаписывает его.
type Store struct {
	bucket   *blob.Bucket
	location string
}

// Open открывает хранилище по URL.
// file://<dir> — локальный каталог (создаётся при отсутствии),
// mem:// — память процесса, s3://<bucket>?region=... — S3-совместимое хранилище.
func Open(ctx context.Context, rawURL string) (*Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("некорректный URL хранилища снимков %q: %w", rawURL, err)
	}

	if u.Scheme == "file" {
		dir, err := filepath.Abs(u.Host + u.Path)
		if err != nil {
			return nil, fmt.Errorf("определение каталога снимков: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("создание каталога снимков %s: %w", dir, err)
		}
		bucket, err := fileblob.OpenBucket(dir, nil)
		if err != nil {
			return nil, fmt.Errorf("открытие каталога снимков %s: %w", dir, err)
		}
		return NewStore(bucket, dir), nil
	}

	bucket, err := blob.OpenBucket(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("открытие хранилища снимков %q: %w", rawURL, err)
	}
	return NewStore(bucket, u.Scheme+"://"+u.Host+u.Path), nil
}

// NewStore создаёт хранилище поверх открытого бакета.
// location — человекочитаемое расположение (возвращается клиентам как outputDir).
func NewStore(bucket *blob.Bucket, location string) *Store {
	return &Store{bucket: bucket, location: strings.TrimRight(location, "/")}
}

// Location возвращает расположение хранилища.
func (s *Store) Location() string {
	return s.location
}

// Path возвращает полный путь объекта снимка.
func (s *Store) Path(name string) string {
	return s.location + "/" + name
}

// FileName возвращает имя объекта снимка для ключа эндпоинта.
func FileName(key string) string {
	return key + ".json"
}

// Write сохраняет снимок в {key}.json (JSON с отступами) и возвращает путь.
func (s *Store) Write(ctx context.Context, doc *Document) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("сериализация снимка %s: %w", doc.Key, err)
	}

	name := FileName(doc.Key)
	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := s.bucket.WriteAll(ctx, name, data, opts); err != nil {
		return "", fmt.Errorf("запись снимка %s: %w", name, err)
	}
	return s.Path(name), nil
}

// Read читает и декодирует снимок целиком. Числа декодируются как json.Number.
func (s *Store) Read(ctx context.Context, name string) (any, error) {
	data, err := s.bucket.ReadAll(ctx, name)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("чтение снимка %s: %w", name, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: некорректный JSON: %w", name, err)
	}
	return doc, nil
}

// ReadArray читает снимок и возвращает развёрнутый массив записей.
func (s *Store) ReadArray(ctx context.Context, name string) ([]any, error) {
	doc, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	items, ok := Unwrap(doc).([]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotArray)
	}
	return items, nil
}

// ReadObject читает снимок и возвращает развёрнутый объект (например, funders:
// словарь записей по id).
func (s *Store) ReadObject(ctx context.Context, name string) (map[string]any, error) {
	doc, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	obj, ok := Unwrap(doc).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotObject)
	}
	return obj, nil
}

// CheckReady проверяет доступность хранилища снимков.
// Недоступное хранилище не мешает выборкам из БД, поэтому статус — degraded.
func (s *Store) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ok, err := s.bucket.IsAccessible(ctx)
	if err != nil {
		return "degraded", fmt.Sprintf("хранилище снимков недоступно: %v", err)
	}
	if !ok {
		return "degraded", "хранилище снимков недоступно"
	}
	return "ok", s.location
}

// Close закрывает бакет.
func (s *Store) Close() error {
	return s.bucket.Close()
}
