// don-worker — процесс воркера: один профиль, одна сессия запуска.
//
// Запускается супервизором (don start); руками — только для отладки:
//
//	don-worker --profile-id <uuid> --group-id <group> --run-id <uuid>
//
// Коды выхода: 0 — нет задач или мягкая остановка; 1 — временный сбой
// (перезапуск с backoff); 3 — профиль терминально отклонён, не
// перезапускать; 4 — ошибка конфигурации.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Stepan2222000/don/internal/config"
	"github.com/Stepan2222000/don/internal/events"
	"github.com/Stepan2222000/don/internal/proxy"
	"github.com/Stepan2222000/don/internal/queue"
	"github.com/Stepan2222000/don/internal/repo"
	"github.com/Stepan2222000/don/internal/telemetry"
	"github.com/Stepan2222000/don/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var profileID, groupID, runID, configPath string
	flag.StringVar(&profileID, "profile-id", "", "profile id")
	flag.StringVar(&groupID, "group-id", "", "campaign group id")
	flag.StringVar(&runID, "run-id", "", "supervisor run id")
	flag.StringVar(&configPath, "config", config.DefaultPath, "path to config.yaml")
	flag.Parse()

	logger := telemetry.SetupLogger()

	if profileID == "" || groupID == "" || runID == "" {
		logger.Error("profile-id, group-id and run-id are required")
		return worker.ExitConfig
	}

	logger = logger.With("profile_id", profileID, "group_id", groupID, "run_id", runID)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return worker.ExitConfig
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := repo.Open(ctx, cfg.Database.URL())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return worker.ExitTransient
	}
	defer store.Close()

	profile, err := repo.NewProfileRepo().GetByID(ctx, store.Pool(), profileID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Error("profile not found")
			return worker.ExitConfig
		}
		logger.Error("failed to load profile", "error", err)
		return worker.ExitTransient
	}

	tq := queue.New(queue.Config{
		Store:                  store,
		MaxMessagesPerHour:     cfg.Limits.MaxMessagesPerHour,
		CycleDelay:             time.Duration(cfg.Limits.CycleDelayMinutes) * time.Minute,
		MaxAttemptsBeforeBlock: cfg.Retry.MaxAttemptsBeforeBlock,
		Logger:                 logger,
	})

	registry := proxy.New(proxy.Config{
		Store:                 store,
		ChatNotFoundThreshold: cfg.Proxy.ChatNotFoundThreshold,
		MinAttemptsForCheck:   cfg.Proxy.MinAttemptsForCheck,
		UnblockTasksOnRotate:  cfg.Proxy.UnblockTasksOnRotate,
		Logger:                logger,
	})

	driver, err := worker.NewDriver(cfg.Driver.Kind)
	if err != nil {
		logger.Error("failed to create driver", "error", err)
		return worker.ExitConfig
	}

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		var conn *events.Connection
		publisher, conn = events.Connect(cfg.Events.BrokerURL(), logger)
		if conn != nil {
			defer conn.Close()
		}
	}

	// Метрики воркера поднимаются только при заданном DON_WORKER_PORT:
	// несколько процессов на одной машине не могут делить порт.
	if port := os.Getenv("DON_WORKER_PORT"); port != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(fmt.Sprintf(":%s", port), mux); err != nil {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	w := worker.New(worker.Config{
		Profile:   profile,
		GroupID:   groupID,
		RunID:     runID,
		Queue:     tq,
		Proxies:   registry,
		Driver:    driver,
		Pacer:     queue.NewPacer(cfg.Limits.MaxMessagesPerHour, cfg.Limits.DelayRandomness),
		SendBound: cfg.Timeouts.SendBound(),
		Publisher: publisher,
		Logger:    logger,
	})

	return w.Run(ctx)
}
