// fetcher.go — загрузка JSON-снимков всех эндпоинтов TRIUP в хранилище снимков.
//
// FetchAll берёт токен последней созданной сессии, параллельно запрашивает
// фиксированный список эндпоинтов и записывает каждый успешный ответ
// в {key}.json. Ошибка одного эндпоинта не влияет на остальные.
//
// Prometheus-метрики:
//   - tg_snapshot_fetch_total — количество загрузок снимков (по ключу и статусу)
//   - tg_snapshot_fetch_duration_seconds — длительность загрузки одного снимка
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/repository"
	"github.com/bigkaa/triup-gateway/internal/snapshot"
	"github.com/bigkaa/triup-gateway/internal/triupclient"
)

// Prometheus-метрики загрузки снимков.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tg_snapshot_fetch_total",
		Help: "Количество загрузок снимков TRIUP",
	}, []string{"key", "status"}) // status: ok, error

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tg_snapshot_fetch_duration_seconds",
		Help:    "Длительность загрузки одного снимка TRIUP",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 0.05s … ~25s
	}, []string{"key"})
)

// Endpoints — эндпоинты TRIUP, снимки которых сохраняются при FetchAll.
// Key совпадает с именем файла снимка без расширения.
var Endpoints = []model.Endpoint{
	{Key: "province", Path: "address/province"},
	{Key: "cofunders", Path: "cofunders"},
	{Key: "departments", Path: "departments"},
	{Key: "educationlevels", Path: "educationlevels"},
	{Key: "findingdetaillists", Path: "findingdetaillists"},
	{Key: "form_allocate", Path: "form_allocate"},
	{Key: "form_extend", Path: "form_extend"},
	{Key: "form_new_findings", Path: "form_new_findings"},
	{Key: "form_research_owner", Path: "form_research_owner"},
	{Key: "form_research_plan", Path: "form_research_plan"},
	{Key: "funders", Path: "funders"},
	{Key: "groupstudies", Path: "groupstudies"},
	{Key: "mainstudies", Path: "mainstudies"},
	{Key: "prefixs", Path: "prefixs"},
	{Key: "researcher", Path: "users/researcher"},
	{Key: "roles", Path: "roles"},
	{Key: "substudies", Path: "substudies"},
	{Key: "target_audiences", Path: "target_audiences"},
	{Key: "time_settings", Path: "time_settings"},
	{Key: "users", Path: "users"},
}

// bearerPrefix — префикс "Bearer " в сохранённом токене сессии.
var bearerPrefix = regexp.MustCompile(`(?i)^Bearer\s+`)

// StripBearer убирает ведущий "Bearer " (без учёта регистра) из токена.
func StripBearer(token string) string {
	return bearerPrefix.ReplaceAllString(token, "")
}

// SnapshotFetcher — сервис загрузки снимков TRIUP.
type SnapshotFetcher struct {
	client        *triupclient.Client
	sessionRepo   repository.SessionRepository
	syncStateRepo repository.SyncStateRepository
	store         *snapshot.Store
	concurrency   int
	now           func() time.Time
	logger        *slog.Logger
}

// NewSnapshotFetcher создаёт сервис загрузки снимков.
// concurrency ограничивает число одновременных запросов к TRIUP.
func NewSnapshotFetcher(
	client *triupclient.Client,
	sessionRepo repository.SessionRepository,
	syncStateRepo repository.SyncStateRepository,
	store *snapshot.Store,
	concurrency int,
	logger *slog.Logger,
) *SnapshotFetcher {
	if concurrency < 1 {
		concurrency = len(Endpoints)
	}
	return &SnapshotFetcher{
		client:        client,
		sessionRepo:   sessionRepo,
		syncStateRepo: syncStateRepo,
		store:         store,
		concurrency:   concurrency,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "snapshot_fetcher")),
	}
}

// FetchAll загружает снимки всех эндпоинтов и возвращает сводку.
// Без сессии возвращает ErrNoSession; ошибки отдельных эндпоинтов
// попадают в сводку, а не в error.
func (f *SnapshotFetcher) FetchAll(ctx context.Context) (*model.FetchSummary, error) {
	latest, err := f.sessionRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("получение последней сессии: %w", err)
	}

	token := StripBearer(latest.Token)
	if token == "" {
		return nil, ErrNoSession
	}

	fetchedAt := f.now().UTC()
	items := make([]model.FetchItem, len(Endpoints))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, ep := range Endpoints {
		g.Go(func() error {
			items[i] = f.fetchOne(ctx, ep, token, fetchedAt)
			return nil
		})
	}
	_ = g.Wait() // горутины не возвращают ошибок, результат в items

	summary := &model.FetchSummary{
		FetchedAt: fetchedAt,
		OutputDir: f.store.Location(),
		Total:     len(items),
		Items:     items,
	}
	for _, item := range items {
		if item.Status == model.FetchStatusOK {
			summary.OK++
		} else {
			summary.Failed++
		}
	}
	summary.Success = summary.Failed == 0

	if err := f.syncStateRepo.Mark(ctx, model.StageFetch, fetchedAt); err != nil {
		f.logger.Warn("Ошибка обновления last_fetch_at", slog.String("error", err.Error()))
	}

	f.logger.Info("Загрузка снимков завершена",
		slog.Int("total", summary.Total),
		slog.Int("ok", summary.OK),
		slog.Int("failed", summary.Failed),
	)
	return summary, nil
}

// fetchOne загружает и сохраняет один снимок.
func (f *SnapshotFetcher) fetchOne(ctx context.Context, ep model.Endpoint, token string, fetchedAt time.Time) model.FetchItem {
	start := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(ep.Key).Observe(time.Since(start).Seconds())
	}()

	url := f.client.URL(ep.Path)
	fail := func(err error) model.FetchItem {
		fetchTotal.WithLabelValues(ep.Key, model.FetchStatusError).Inc()
		f.logger.Warn("Ошибка загрузки снимка",
			slog.String("key", ep.Key),
			slog.String("error", err.Error()),
		)
		return model.FetchItem{Key: ep.Key, Status: model.FetchStatusError, Error: err.Error()}
	}

	data, err := f.client.Fetch(ctx, url, token)
	if err != nil {
		return fail(fmt.Errorf("%s failed: %w", ep.Key, err))
	}

	path, err := f.store.Write(ctx, &snapshot.Document{
		FetchedAt: fetchedAt,
		Key:       ep.Key,
		URL:       url,
		Data:      data,
	})
	if err != nil {
		return fail(err)
	}

	fetchTotal.WithLabelValues(ep.Key, model.FetchStatusOK).Inc()
	f.logger.Debug("Снимок сохранён",
		slog.String("key", ep.Key),
		slog.String("path", path),
	)
	return model.FetchItem{Key: ep.Key, Status: model.FetchStatusOK, Path: path}
}
