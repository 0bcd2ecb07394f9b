// sync.go — периодическая синхронизация с TRIUP.
//
// SyncScheduler запускает фоновую горутину с ticker (TG_SYNC_INTERVAL),
// которая выполняет по очереди:
//  1. загрузку снимков (fetch-all)
//  2. импорт справочников (import-server-fix)
//  3. импорт форм (import-server-form)
//
// Ошибка этапа логируется и прерывает текущий цикл; следующий тик
// начинает цикл заново.
//
// Prometheus-метрики:
//   - tg_sync_duration_seconds — длительность цикла синхронизации
//   - tg_sync_runs_total — количество циклов (по результату)
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
	"github.com/bigkaa/triup-gateway/internal/repository"
)

// Prometheus-метрики периодической синхронизации.
var (
	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tg_sync_duration_seconds",
		Help:    "Длительность цикла синхронизации с TRIUP",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s … ~17m
	})

	syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tg_sync_runs_total",
		Help: "Количество циклов синхронизации с TRIUP",
	}, []string{"result"}) // result: ok, error
)

// Этапы цикла синхронизации.
type (
	snapshotFetchRunner interface {
		FetchAll(ctx context.Context) (*model.FetchSummary, error)
	}
	referenceImportRunner interface {
		ImportAll(ctx context.Context) (*model.ReferenceImportResult, error)
	}
	formImportRunner interface {
		ImportAll(ctx context.Context) (*model.FormImportResult, error)
	}
)

// SyncScheduler — фоновый сервис синхронизации.
type SyncScheduler struct {
	fetcher       snapshotFetchRunner
	references    referenceImportRunner
	forms         formImportRunner
	syncStateRepo repository.SyncStateRepository
	interval      time.Duration
	logger        *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSyncScheduler создаёт сервис синхронизации. interval <= 0 — Start ничего не делает.
func NewSyncScheduler(
	fetcher snapshotFetchRunner,
	references referenceImportRunner,
	forms formImportRunner,
	syncStateRepo repository.SyncStateRepository,
	interval time.Duration,
	logger *slog.Logger,
) *SyncScheduler {
	return &SyncScheduler{
		fetcher:       fetcher,
		references:    references,
		forms:         forms,
		syncStateRepo: syncStateRepo,
		interval:      interval,
		logger:        logger.With(slog.String("component", "sync_scheduler")),
	}
}

// Start запускает фоновую горутину с периодической синхронизацией.
// Вызывается один раз при старте приложения.
func (s *SyncScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Периодическая синхронизация отключена")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Периодическая синхронизация запущена",
			slog.String("interval", s.interval.String()),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Периодическая синхронизация остановлена")
				return
			case <-ticker.C:
				if err := s.RunOnce(ctx); err != nil {
					s.logger.Error("Ошибка периодической синхронизации", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (s *SyncScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// RunOnce выполняет один цикл синхронизации.
func (s *SyncScheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	defer func() {
		syncDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.run(ctx); err != nil {
		syncRunsTotal.WithLabelValues("error").Inc()
		return err
	}
	syncRunsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *SyncScheduler) run(ctx context.Context) error {
	summary, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("загрузка снимков: %w", err)
	}
	if !summary.Success {
		s.logger.Warn("Часть снимков не загружена",
			slog.Int("failed", summary.Failed),
			slog.Int("total", summary.Total),
		)
	}

	if _, err := s.references.ImportAll(ctx); err != nil {
		return fmt.Errorf("импорт справочников: %w", err)
	}

	forms, err := s.forms.ImportAll(ctx)
	if err != nil {
		return fmt.Errorf("импорт форм: %w", err)
	}

	s.logger.Info("Цикл синхронизации завершён",
		slog.Int("snapshots_ok", summary.OK),
		slog.Int("form_failures", len(forms.Failures)),
	)
	return nil
}

// Status возвращает время последнего выполнения каждого этапа.
func (s *SyncScheduler) Status(ctx context.Context) (*model.SyncState, error) {
	state, err := s.syncStateRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение состояния синхронизации: %w", err)
	}
	return state, nil
}
