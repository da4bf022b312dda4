// Package maintenance — периодические фоновые работы супервизора:
// повторные прогоны reaper'а зависших задач и возврат остывших
// unhealthy-прокси в пул.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Stepan2222000/don/internal/proxy"
	"github.com/Stepan2222000/don/internal/queue"
)

// reapEvery — период фонового reaper'а между стартами супервизора.
const reapEvery = 10 * time.Minute

// Jobs — набор периодических задач на robfig/cron.
type Jobs struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// Config — конфигурация Jobs.
type Config struct {
	Queue    *queue.TaskQueue
	Registry *proxy.Registry

	GroupID string

	// StaleAfter — возраст in_progress задач для reaper'а.
	StaleAfter time.Duration

	// HealthResetHours — период возврата unhealthy-прокси в пул.
	HealthResetHours int

	Logger *slog.Logger
}

// New собирает расписание фоновых работ.
func New(cfg Config) (*Jobs, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New()

	_, err := c.AddFunc(fmt.Sprintf("@every %s", reapEvery), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := cfg.Queue.ResetStale(ctx, cfg.GroupID, cfg.StaleAfter); err != nil {
			logger.Error("periodic stale reset failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule stale reaper: %w", err)
	}

	if cfg.HealthResetHours > 0 {
		_, err = c.AddFunc(fmt.Sprintf("@every %dh", cfg.HealthResetHours), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := cfg.Registry.ResetUnhealthy(ctx, cfg.HealthResetHours)
			if err != nil {
				logger.Error("proxy health reset failed", "error", err)
				return
			}
			if n > 0 {
				logger.Info("returned proxies to pool", "count", n)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule proxy health reset: %w", err)
		}
	}

	return &Jobs{cron: c, logger: logger}, nil
}

// Start запускает расписание.
func (j *Jobs) Start() {
	j.cron.Start()
	j.logger.Info("maintenance jobs started")
}

// Stop останавливает расписание и дожидается выполняющихся задач.
func (j *Jobs) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("maintenance jobs stopped")
}
