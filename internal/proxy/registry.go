// Package proxy — пул прокси и их липкие привязки к профилям.
//
// Привязка переживает перезапуски: она хранится в proxy_assignments,
// а условие profile_id IS NULL под FOR UPDATE SKIP LOCKED служит
// claim-условием пула — внутрипроцессные мьютексы не нужны.
// Ротация срабатывает, когда доля chat_not_found у пары
// (прокси, профиль) превышает порог: этот вид отказа чувствителен
// именно к egress-адресу, а не к профилю или списку чатов.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Stepan2222000/don/internal/domain"
	"github.com/Stepan2222000/don/internal/repo"
	"github.com/Stepan2222000/don/internal/telemetry"
)

// Registry управляет пулом прокси.
type Registry struct {
	store   *repo.Store
	proxies *repo.ProxyRepo
	tasks   *repo.TaskRepo

	threshold      float64
	minAttempts    int
	unblockOnRotate bool

	logger *slog.Logger
}

// Config — конфигурация Registry.
type Config struct {
	Store *repo.Store

	// ChatNotFoundThreshold — порог доли chat_not_found, в процентах.
	ChatNotFoundThreshold float64

	// MinAttemptsForCheck — минимальная выборка для оценки порога.
	MinAttemptsForCheck int

	// UnblockTasksOnRotate — снимать ли блокировки chat_not_found
	// после ротации.
	UnblockTasksOnRotate bool

	Logger *slog.Logger
}

// New создаёт Registry.
func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		store:           cfg.Store,
		proxies:         repo.NewProxyRepo(),
		tasks:           repo.NewTaskRepo(),
		threshold:       cfg.ChatNotFoundThreshold,
		minAttempts:     cfg.MinAttemptsForCheck,
		unblockOnRotate: cfg.UnblockTasksOnRotate,
		logger:          logger,
	}
}

// Sync идемпотентно импортирует прокси из внешнего списка.
func (r *Registry) Sync(ctx context.Context, urls []string) (int, error) {
	var added int
	err := r.store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
		var err error
		added, err = r.proxies.Sync(ctx, q, urls)
		return err
	})
	return added, err
}

// Resolve возвращает прокси профиля: текущую здоровую привязку либо,
// если её нет, свежую из пула. Пустая строка невозможна — при пустом
// пуле возвращается repo.ErrNoFreeProxy, что для вызывающего фатально.
func (r *Registry) Resolve(ctx context.Context, profileID string) (string, error) {
	current, err := r.proxies.AssignedTo(ctx, r.store.Pool(), profileID)
	if err == nil && current.IsHealthy {
		return current.ProxyURL, nil
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("resolve proxy: %w", err)
	}

	return r.Assign(ctx, profileID)
}

// Assign атомарно закрепляет свободный здоровый прокси за профилем.
func (r *Registry) Assign(ctx context.Context, profileID string) (string, error) {
	var url string
	err := r.store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
		assignment, err := r.proxies.ClaimFree(ctx, q, profileID)
		if err != nil {
			return err
		}
		url = assignment.ProxyURL
		return nil
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("proxy assigned", "profile_id", profileID)
	return url, nil
}

// Rotate снимает текущую привязку профиля (помечая прокси нездоровым)
// и закрепляет новый. Статистика новой пары начинается с нуля; при
// включённом unblock_tasks_on_rotate чаты, заблокированные как
// chat_not_found, возвращаются в очередь.
func (r *Registry) Rotate(ctx context.Context, profileID string) (string, error) {
	var newURL string

	err := r.store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
		current, err := r.proxies.AssignedTo(ctx, q, profileID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if current != nil {
			if err := r.proxies.MarkUnhealthy(ctx, q, current.ProxyURL); err != nil {
				return err
			}
		}

		assignment, err := r.proxies.ClaimFree(ctx, q, profileID)
		if err != nil {
			return err
		}
		newURL = assignment.ProxyURL

		if err := r.proxies.ResetStats(ctx, q, newURL, profileID); err != nil {
			return err
		}

		if r.unblockOnRotate {
			unblocked, err := r.tasks.UnblockByReason(ctx, q, domain.BlockReasonChatNotFound)
			if err != nil {
				return err
			}
			if unblocked > 0 {
				r.logger.Info("unblocked tasks after rotation", "count", unblocked)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("rotate proxy: %w", err)
	}

	telemetry.ProxyRotations.Inc()
	r.logger.Warn("proxy rotated", "profile_id", profileID)
	return newURL, nil
}

// MarkUnhealthy помечает прокси нездоровым и освобождает привязку.
func (r *Registry) MarkUnhealthy(ctx context.Context, proxyURL, reason string) error {
	err := r.store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
		return r.proxies.MarkUnhealthy(ctx, q, proxyURL)
	})
	if err != nil {
		return err
	}
	r.logger.Warn("proxy marked unhealthy", "reason", reason)
	return nil
}

// ObserveOutcome оценивает здоровье привязки после записанной попытки.
// Счётчики пары уже инкрементированы записывающей транзакцией очереди;
// здесь только решение о ротации. Возвращает новый proxy_url, если
// ротация произошла, иначе пустую строку.
func (r *Registry) ObserveOutcome(ctx context.Context, profileID, proxyURL string) (string, error) {
	stats, err := r.proxies.Stats(ctx, r.store.Pool(), proxyURL, profileID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if !ShouldRotate(stats, r.minAttempts, r.threshold) {
		return "", nil
	}

	r.logger.Warn("chat_not_found rate over threshold",
		"profile_id", profileID,
		"rate", stats.ChatNotFoundRate(),
		"threshold", r.threshold,
	)
	return r.Rotate(ctx, profileID)
}

// ResetUnhealthy возвращает в пул прокси, остывшие после пометки
// нездоровыми. Вызывается maintenance-джобом.
func (r *Registry) ResetUnhealthy(ctx context.Context, olderThanHours int) (int64, error) {
	var n int64
	err := r.store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
		var err error
		n, err = r.proxies.ResetUnhealthy(ctx, q, olderThanHours)
		return err
	})
	return n, err
}

// List возвращает все прокси пула.
func (r *Registry) List(ctx context.Context) ([]domain.ProxyAssignment, error) {
	return r.proxies.List(ctx, r.store.Pool())
}

// ShouldRotate — чистое правило ротации: выборка не меньше minAttempts
// и доля chat_not_found строго выше threshold процентов.
func ShouldRotate(stats *domain.ProxyStats, minAttempts int, threshold float64) bool {
	if stats == nil || stats.TotalAttempts < minAttempts {
		return false
	}
	return stats.ChatNotFoundRate() > threshold
}
