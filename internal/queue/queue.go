package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Stepan2222000/don/internal/classify"
	"github.com/Stepan2222000/don/internal/domain"
	"github.com/Stepan2222000/don/internal/repo"
	"github.com/Stepan2222000/don/internal/telemetry"
)

// failureBackoff — стандартная отсрочка задачи после неуспеха,
// чтобы не уйти в мгновенный retry-цикл.
const failureBackoff = 5 * time.Minute

// TaskQueue — очередь задач поверх Store.
type TaskQueue struct {
	store *repo.Store

	tasks    *repo.TaskRepo
	attempts *repo.AttemptRepo
	profiles *repo.ProfileRepo
	messages *repo.MessageRepo
	proxies  *repo.ProxyRepo
	stats    *repo.StatsRepo

	maxPerHour             int
	cycleDelay             time.Duration
	maxAttemptsBeforeBlock int

	logger *slog.Logger
}

// Config — конфигурация TaskQueue.
type Config struct {
	Store *repo.Store

	// MaxMessagesPerHour — часовой потолок профиля.
	MaxMessagesPerHour int

	// CycleDelay — минимальный зазор между отправками в один чат.
	CycleDelay time.Duration

	// MaxAttemptsBeforeBlock — бюджет транспортных сбоев задачи.
	MaxAttemptsBeforeBlock int

	Logger *slog.Logger
}

// New создаёт TaskQueue.
func New(cfg Config) *TaskQueue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskQueue{
		store:                  cfg.Store,
		tasks:                  repo.NewTaskRepo(),
		attempts:               repo.NewAttemptRepo(),
		profiles:               repo.NewProfileRepo(),
		messages:               repo.NewMessageRepo(),
		proxies:                repo.NewProxyRepo(),
		stats:                  repo.NewStatsRepo(),
		maxPerHour:             cfg.MaxMessagesPerHour,
		cycleDelay:             cfg.CycleDelay,
		maxAttemptsBeforeBlock: cfg.MaxAttemptsBeforeBlock,
		logger:                 logger,
	}
}

// ClaimNext атомарно выдаёт воркеру следующую доступную задачу группы.
//
// Внутри одной транзакции: обновляется часовое окно профиля, проверяется
// лимит, затем под SKIP LOCKED выбирается и захватывается лучший кандидат.
// Возвращает (nil, ErrHourlyLimited) при выбранном лимите и (nil, nil),
// когда захватывать нечего.
func (tq *TaskQueue) ClaimNext(ctx context.Context, groupID, profileID, runID string) (*domain.Task, error) {
	var claimed *domain.Task
	var limited bool

	err := tq.store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
		if err := tq.profiles.RefreshHourWindow(ctx, q, profileID); err != nil {
			return err
		}

		sent, err := tq.profiles.MessagesSentCurrentHour(ctx, q, profileID)
		if err != nil {
			return err
		}
		if sent >= tq.maxPerHour {
			// Коммитим обновление окна, но задачу не выдаём.
			limited = true
			return nil
		}

		claimed, err = tq.tasks.Claim(ctx, q, groupID, profileID, runID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim next: %w", err)
	}
	if limited {
		telemetry.HourlyLimitHits.Inc()
		return nil, ErrHourlyLimited
	}
	if claimed != nil {
		telemetry.TasksClaimed.Inc()
	}
	return claimed, nil
}

// RandomMessage возвращает случайное активное сообщение группы.
func (tq *TaskQueue) RandomMessage(ctx context.Context, groupID string) (*domain.Message, error) {
	msg, err := tq.messages.RandomActive(ctx, tq.store.Pool(), groupID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoMessages
	}
	return msg, err
}

// Record фиксирует терминальный исход попытки.
//
// Классификация происходит ровно один раз, внутри той же транзакции,
// что и все переходы состояний: строка task_attempts, счётчики задачи,
// профиль, суточная и прокси-статистика — либо коммитятся вместе,
// либо не коммитятся вовсе.
func (tq *TaskQueue) Record(ctx context.Context, task *domain.Task, profileID, runID, proxyURL string, msg *domain.Message, outcome domain.Outcome) (classify.Decision, error) {
	var decision classify.Decision

	err := tq.store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
		failures, err := tq.tasks.FailuresSinceLastSuccess(ctx, q, task.ID)
		if err != nil {
			return err
		}

		decision = classify.Classify(outcome, failures, tq.maxAttemptsBeforeBlock)

		if err := tq.insertAttempt(ctx, q, task, profileID, runID, msg, outcome); err != nil {
			return err
		}
		if err := tq.applyTask(ctx, q, task.ID, decision); err != nil {
			return err
		}
		if err := tq.applyProfile(ctx, q, profileID, decision, outcome); err != nil {
			return err
		}
		if msg != nil && outcome.Success() {
			if err := tq.messages.IncrementUsage(ctx, q, msg.ID); err != nil {
				return err
			}
		}
		if proxyURL != "" {
			if err := tq.applyProxy(ctx, q, proxyURL, profileID, decision); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return decision, fmt.Errorf("record outcome: %w", err)
	}

	tq.observe(task, profileID, outcome)
	return decision, nil
}

// ReleaseTask возвращает захваченную задачу в pending без записи исхода.
// Путь отмены: статистика пишется только на терминальных исходах,
// поэтому освобождение безопасно.
func (tq *TaskQueue) ReleaseTask(ctx context.Context, taskID int64) error {
	return tq.store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
		return tq.tasks.Release(ctx, q, taskID)
	})
}

// ResetStale возвращает зависшие in_progress задачи в pending.
// Вызывается супервизором на старте и периодически maintenance-джобом.
func (tq *TaskQueue) ResetStale(ctx context.Context, groupID string, olderThan time.Duration) (int64, error) {
	var n int64
	err := tq.store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
		var err error
		n, err = tq.tasks.ResetStale(ctx, q, groupID, olderThan)
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		telemetry.StaleTasksReset.Add(float64(n))
		tq.logger.Warn("reset stale tasks", "count", n, "group_id", groupID)
	}
	return n, nil
}

// HasRemainingWork сообщает, остались ли у группы невыполненные задачи
// в рамках сессии (без учёта pacing-задержек).
func (tq *TaskQueue) HasRemainingWork(ctx context.Context, groupID, runID string) (bool, error) {
	return tq.tasks.HasRemainingWork(ctx, tq.store.Pool(), groupID, runID)
}

// Stats возвращает агрегат по статусам задач группы.
func (tq *TaskQueue) Stats(ctx context.Context, groupID string) (*domain.TaskStats, error) {
	return tq.tasks.Stats(ctx, tq.store.Pool(), groupID)
}

// --- Применение решения классификатора ---

func (tq *TaskQueue) insertAttempt(ctx context.Context, q repo.Querier, task *domain.Task, profileID, runID string, msg *domain.Message, outcome domain.Outcome) error {
	attempt := &domain.TaskAttempt{
		TaskID:    task.ID,
		ProfileID: profileID,
		RunID:     runID,
	}

	if outcome.Success() {
		// Номер цикла — по успехам этой сессии.
		n, err := tq.attempts.CountByRun(ctx, q, task.ID, runID, domain.AttemptSuccess)
		if err != nil {
			return err
		}
		attempt.CycleNumber = n + 1
		attempt.Status = domain.AttemptSuccess
		if msg != nil {
			attempt.MessageText = &msg.Text
		}
	} else {
		n, err := tq.attempts.CountByRun(ctx, q, task.ID, runID, "")
		if err != nil {
			return err
		}
		attempt.CycleNumber = n + 1
		attempt.Status = domain.AttemptFailed
		kind := string(outcome.Kind)
		attempt.ErrorKind = &kind
		if outcome.Detail != "" {
			attempt.ErrorDetail = &outcome.Detail
		}
	}

	return tq.attempts.Insert(ctx, q, attempt)
}

func (tq *TaskQueue) applyTask(ctx context.Context, q repo.Querier, taskID int64, d classify.Decision) error {
	if d.CountFailure {
		if err := tq.tasks.MarkFailure(ctx, q, taskID); err != nil {
			return err
		}
	}

	switch d.Task {
	case classify.TaskAdvanceCycle:
		_, err := tq.tasks.MarkSuccess(ctx, q, taskID, tq.cycleDelay.Seconds())
		return err

	case classify.TaskBlock:
		return tq.tasks.Block(ctx, q, taskID, d.BlockReason)

	case classify.TaskReschedule:
		delay := d.RescheduleAfter
		if delay <= 0 {
			delay = failureBackoff
		}
		return tq.tasks.Reschedule(ctx, q, taskID, delay.Seconds())

	case classify.TaskRelease:
		if d.RescheduleAfter > 0 {
			return tq.tasks.Reschedule(ctx, q, taskID, withSlowModeJitter(d.RescheduleAfter).Seconds())
		}
		return tq.tasks.Release(ctx, q, taskID)
	}
	return nil
}

func (tq *TaskQueue) applyProfile(ctx context.Context, q repo.Querier, profileID string, d classify.Decision, outcome domain.Outcome) error {
	switch d.Profile {
	case classify.ProfileCountSend:
		if err := tq.profiles.RefreshHourWindow(ctx, q, profileID); err != nil {
			return err
		}
		if err := tq.profiles.IncrementSent(ctx, q, profileID); err != nil {
			return err
		}
	case classify.ProfileBlock:
		if err := tq.profiles.Block(ctx, q, profileID); err != nil {
			return err
		}
	}

	return tq.stats.UpsertDaily(ctx, q, profileID, outcome.Success())
}

func (tq *TaskQueue) applyProxy(ctx context.Context, q repo.Querier, proxyURL, profileID string, d classify.Decision) error {
	var class repo.AttemptClass
	switch d.Proxy {
	case classify.ProxyRecordSuccess:
		class = repo.AttemptClassSuccess
	case classify.ProxyRecordChatNotFound:
		class = repo.AttemptClassChatNotFound
	case classify.ProxyRecordOtherError:
		class = repo.AttemptClassOtherError
	default:
		return nil
	}
	return tq.proxies.RecordAttempt(ctx, q, proxyURL, profileID, class)
}

func (tq *TaskQueue) observe(task *domain.Task, profileID string, outcome domain.Outcome) {
	if outcome.Success() {
		telemetry.MessagesSent.WithLabelValues(profileID).Inc()
		tq.logger.Info("message sent",
			"chat_ref", task.ChatRef,
			"profile_id", profileID,
		)
		return
	}

	telemetry.SendFailures.WithLabelValues(string(outcome.Kind)).Inc()
	tq.logger.Warn("send failed",
		"chat_ref", task.ChatRef,
		"profile_id", profileID,
		"kind", outcome.Kind,
		"detail", outcome.Detail,
	)
}
