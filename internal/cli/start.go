package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Stepan2222000/don/internal/events"
	"github.com/Stepan2222000/don/internal/maintenance"
	"github.com/Stepan2222000/don/internal/proxy"
	"github.com/Stepan2222000/don/internal/queue"
	"github.com/Stepan2222000/don/internal/repo"
	"github.com/Stepan2222000/don/internal/supervisor"
	"github.com/Stepan2222000/don/internal/telemetry"
)

func newStartCmd(app *App) *cobra.Command {
	var group string
	var workers int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the supervisor for a campaign group",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}

			logger := telemetry.SetupLogger()
			logger = telemetry.WithGroupID(logger, group)
			logger.Info("starting don supervisor")

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := repo.Migrate(cfg.Database.MigrateURL()); err != nil {
				return err
			}

			store, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			logger.Info("database connected")

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

			// Свежие прокси из резервного пула подтягиваются на каждом старте.
			if urls, err := readListFile(cfg.Proxy.PoolFile); err == nil && len(urls) > 0 {
				added, err := registry.Sync(ctx, urls)
				if err != nil {
					return fmt.Errorf("sync proxies: %w", err)
				}
				if added > 0 {
					logger.Info("synced reserve proxies", "added", added)
				}
			}

			var publisher *events.Publisher
			if cfg.Events.Enabled {
				var conn *events.Connection
				publisher, conn = events.Connect(cfg.Events.BrokerURL(), logger)
				if conn != nil {
					defer conn.Close()
				}
			}

			sup := supervisor.New(supervisor.Config{
				Store:        store,
				Queue:        tq,
				GroupID:      group,
				WorkerCount:  workers,
				WorkerBinary: cfg.Supervisor.WorkerBinary,
				Policy: supervisor.RestartPolicy{
					Base:        time.Duration(cfg.Supervisor.RestartBaseSeconds) * time.Second,
					Cap:         time.Duration(cfg.Supervisor.RestartCapSeconds) * time.Second,
					MaxAttempts: cfg.Supervisor.MaxRestartAttempts,
					Cooldown:    time.Duration(cfg.Supervisor.RestartCooldownSeconds) * time.Second,
				},
				ShutdownGrace: cfg.Supervisor.ShutdownGrace(),
				StaleAfter:    time.Duration(cfg.Supervisor.StaleTaskMinutes) * time.Minute,
				Publisher:     publisher,
				Logger:        logger,
			})

			jobs, err := maintenance.New(maintenance.Config{
				Queue:            tq,
				Registry:         registry,
				GroupID:          group,
				StaleAfter:       time.Duration(cfg.Supervisor.StaleTaskMinutes) * time.Minute,
				HealthResetHours: cfg.Proxy.HealthResetHours,
				Logger:           logger,
			})
			if err != nil {
				return err
			}
			jobs.Start()
			defer jobs.Stop()

			// HTTP mux: /healthz + /metrics
			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			mux.Handle("/metrics", promhttp.Handler())

			go func() {
				addr := fmt.Sprintf(":%d", cfg.Supervisor.MetricsPort)
				logger.Info("listening", "addr", addr)
				if err := http.ListenAndServe(addr, mux); err != nil {
					logger.Error("http server error", "error", err)
				}
			}()

			if err := supervisor.WritePidFile(cfg.Supervisor.PidFile); err != nil {
				return err
			}
			defer supervisor.RemovePidFile(cfg.Supervisor.PidFile)

			logger.Info("supervisor running", "run_id", sup.RunID())
			return sup.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "campaign group id")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = all eligible profiles)")
	cmd.MarkFlagRequired("group")

	return cmd
}

// readListFile читает список строк из файла, пропуская пустые
// строки и комментарии.
func readListFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseListLines(string(data)), nil
}
