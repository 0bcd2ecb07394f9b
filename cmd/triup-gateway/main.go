// Точка входа TRIUP Gateway — шлюз между фронтендом PSU и REST API TRIUP.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// открывает хранилище снимков, создаёт сервисный слой и API handlers,
// запускает фоновые задачи (периодическая синхронизация, topologymetrics)
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/triup-gateway/internal/api/handlers"
	"github.com/bigkaa/triup-gateway/internal/config"
	"github.com/bigkaa/triup-gateway/internal/database"
	"github.com/bigkaa/triup-gateway/internal/repository"
	"github.com/bigkaa/triup-gateway/internal/server"
	"github.com/bigkaa/triup-gateway/internal/service"
	"github.com/bigkaa/triup-gateway/internal/snapshot"
	"github.com/bigkaa/triup-gateway/internal/triupclient"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("TRIUP Gateway запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("upstream", cfg.UpstreamURL),
		slog.String("database", cfg.RedactedDatabaseURL()),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище JSON-снимков TRIUP
	snapshots, err := snapshot.Open(ctx, cfg.SnapshotURL)
	if err != nil {
		logger.Error("Ошибка открытия хранилища снимков", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer snapshots.Close()
	logger.Info("Хранилище снимков открыто", slog.String("location", snapshots.Location()))

	// 6. HTTP-клиент TRIUP
	triup := triupclient.New(cfg.UpstreamURL, cfg.HTTPTimeout, logger)

	// 7. Repositories
	store := repository.NewStore(pool)
	txRunner := repository.NewTxRunner(pool)

	// 8. Services
	authSvc := service.NewAuthService(
		triup, store.Sessions, store.PSUUsers,
		cfg.PSUAuthURL, cfg.SessionCacheSize,
		logger,
	)
	fetcher := service.NewSnapshotFetcher(
		triup, store.Sessions, store.SyncState, snapshots,
		cfg.FetchConcurrency,
		logger,
	)
	referenceImporter := service.NewReferenceImporter(snapshots, store.References, store.SyncState, logger)
	formImporter := service.NewFormImporter(
		snapshots, txRunner, store.Findings, store.SyncState,
		service.NewAttachmentReconciler(logger),
		logger,
	)
	directoryImporter := service.NewDirectoryImporter(snapshots, txRunner, store.SyncState, logger)
	masterSvc := service.NewMasterService(store.Master)
	adminUsersSvc := service.NewAdminUserService(txRunner, store.PSUUsers, store.RoleLog, logger)

	// 9. Периодическая синхронизация (TG_SYNC_INTERVAL=0 — отключена)
	syncScheduler := service.NewSyncScheduler(
		fetcher, referenceImporter, formImporter, store.SyncState,
		cfg.SyncInterval,
		logger,
	)

	// 10. Readiness checkers (PostgreSQL + хранилище снимков)
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), snapshots)

	// 11. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		authSvc,
		fetcher,
		referenceImporter,
		formImporter,
		directoryImporter,
		syncScheduler,
		masterSvc,
		adminUsersSvc,
		logger,
	)

	// 12. Запуск фоновых задач
	syncScheduler.Start(ctx)

	// 12.1 topologymetrics — мониторинг зависимостей (PostgreSQL + TRIUP)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"triup-gateway",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL,
		cfg.UpstreamURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 13. Создание и запуск HTTP-сервера
	srv, err := server.New(cfg, logger, apiHandler)
	if err != nil {
		logger.Error("Ошибка создания HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	syncScheduler.Stop()

	logger.Info("TRIUP Gateway остановлен")
}
