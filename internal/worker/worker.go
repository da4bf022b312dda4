package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Stepan2222000/don/internal/classify"
	"github.com/Stepan2222000/don/internal/domain"
	"github.com/Stepan2222000/don/internal/events"
	"github.com/Stepan2222000/don/internal/queue"
	"github.com/Stepan2222000/don/internal/repo"
)

// Default configuration values.
const (
	// maxOpenAttempts — сколько раз пробуем открыть сессию драйвера.
	maxOpenAttempts = 3

	// openBackoffBase — базовая пауза между попытками открытия.
	openBackoffBase = 5 * time.Second

	// defaultIdleRecheck — пауза перед повторным claim, когда работа
	// есть, но прямо сейчас захватывать нечего (pacing или чужие claim).
	defaultIdleRecheck = 30 * time.Second

	// defaultFailurePause — короткая пауза после неуспешной попытки.
	defaultFailurePause = 2 * time.Second
)

// Queue — срез очереди задач, нужный воркеру.
type Queue interface {
	ClaimNext(ctx context.Context, groupID, profileID, runID string) (*domain.Task, error)
	RandomMessage(ctx context.Context, groupID string) (*domain.Message, error)
	Record(ctx context.Context, task *domain.Task, profileID, runID, proxyURL string, msg *domain.Message, outcome domain.Outcome) (classify.Decision, error)
	ReleaseTask(ctx context.Context, taskID int64) error
	HasRemainingWork(ctx context.Context, groupID, runID string) (bool, error)
}

// ProxyResolver — срез реестра прокси, нужный воркеру.
type ProxyResolver interface {
	Resolve(ctx context.Context, profileID string) (string, error)
	ObserveOutcome(ctx context.Context, profileID, proxyURL string) (string, error)
}

// Worker — цикл обработки задач одного профиля в рамках одной сессии.
type Worker struct {
	profile *domain.Profile
	groupID string
	runID   string

	queue   Queue
	proxies ProxyResolver
	driver  Driver
	pacer   *queue.Pacer

	sendBound    time.Duration
	idleRecheck  time.Duration
	failurePause time.Duration

	publisher *events.Publisher

	logger *slog.Logger

	// currentTaskID — захваченная, но ещё не записанная задача;
	// путь отмены возвращает её в pending.
	currentTaskID int64
}

// Config — конфигурация Worker.
type Config struct {
	Profile *domain.Profile
	GroupID string
	RunID   string

	Queue   Queue
	Proxies ProxyResolver
	Driver  Driver
	Pacer   *queue.Pacer

	// SendBound — суммарная верхняя граница одного SendAction
	// (page_load + search + send).
	SendBound time.Duration

	// IdleRecheck — пауза между claim, когда нечего захватывать (default: 30s).
	IdleRecheck time.Duration

	// FailurePause — пауза после неуспешной попытки (default: 2s).
	FailurePause time.Duration

	// Publisher — best-effort публикация событий (может быть nil).
	Publisher *events.Publisher

	Logger *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	idleRecheck := cfg.IdleRecheck
	if idleRecheck <= 0 {
		idleRecheck = defaultIdleRecheck
	}
	failurePause := cfg.FailurePause
	if failurePause <= 0 {
		failurePause = defaultFailurePause
	}

	return &Worker{
		profile:      cfg.Profile,
		groupID:      cfg.GroupID,
		runID:        cfg.RunID,
		queue:        cfg.Queue,
		proxies:      cfg.Proxies,
		driver:       cfg.Driver,
		pacer:        cfg.Pacer,
		sendBound:    cfg.SendBound,
		idleRecheck:  idleRecheck,
		failurePause: failurePause,
		publisher:    cfg.Publisher,
		logger: logger.With(
			"profile_id", cfg.Profile.ProfileID,
			"group_id", cfg.GroupID,
			"run_id", cfg.RunID,
		),
	}
}

// Run исполняет машину состояний воркера и возвращает код выхода.
//
//	INIT → RESOLVE_PROXY → LAUNCH → CLAIMING → SENDING → RECORDING → PACING → CLAIMING
//
// Отмена контекста в любом состоянии прерывает паузы, освобождает
// незаписанный claim и завершает процесс кодом 0.
func (w *Worker) Run(ctx context.Context) int {
	if !w.profile.Eligible() {
		w.logger.Error("profile is not eligible for work")
		return ExitConfig
	}

	// RESOLVE_PROXY
	proxyURL, err := w.proxies.Resolve(ctx, w.profile.ProfileID)
	if err != nil {
		if errors.Is(err, repo.ErrNoFreeProxy) {
			w.logger.Error("proxy pool exhausted")
			return ExitConfig
		}
		w.logger.Error("failed to resolve proxy", "error", err)
		return ExitTransient
	}

	// LAUNCH
	session, err := w.openSession(ctx, proxyURL)
	if err != nil {
		w.logger.Error("failed to open driver session", "error", err)
		return ExitTransient
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			w.logger.Warn("failed to close driver session", "error", err)
		}
	}()

	w.logger.Info("worker ready")

	for {
		if ctx.Err() != nil {
			return w.shutdown()
		}

		// CLAIMING
		task, err := w.queue.ClaimNext(ctx, w.groupID, w.profile.ProfileID, w.runID)
		if errors.Is(err, queue.ErrHourlyLimited) {
			w.logger.Info("hourly limit reached, pacing")
			if !w.sleep(ctx, w.pacer.Delay()) {
				return w.shutdown()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return w.shutdown()
			}
			w.logger.Error("claim failed", "error", err)
			return ExitTransient
		}
		if task == nil {
			remaining, err := w.queue.HasRemainingWork(ctx, w.groupID, w.runID)
			if err != nil {
				if ctx.Err() != nil {
					return w.shutdown()
				}
				w.logger.Error("failed to check remaining work", "error", err)
				return ExitTransient
			}
			if !remaining {
				w.logger.Info("no work left, worker finishing")
				return ExitOK
			}
			if !w.sleep(ctx, w.idleRecheck) {
				return w.shutdown()
			}
			continue
		}

		w.currentTaskID = task.ID

		code, stop := w.process(ctx, session, task, &proxyURL)

		w.currentTaskID = 0

		if stop {
			return code
		}
	}
}

// process выполняет SENDING → RECORDING → PACING для одной задачи.
// Второе возвращаемое значение true означает завершение воркера
// с указанным кодом.
func (w *Worker) process(ctx context.Context, session Session, task *domain.Task, proxyURL *string) (int, bool) {
	// SENDING: выбираем случайное сообщение группы.
	msg, err := w.queue.RandomMessage(ctx, w.groupID)
	if err != nil {
		w.releaseCurrent()
		if errors.Is(err, queue.ErrNoMessages) {
			w.logger.Error("no active messages for group")
			return ExitConfig, true
		}
		if ctx.Err() != nil {
			return w.shutdown(), true
		}
		w.logger.Error("failed to pick message", "error", err)
		return ExitTransient, true
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendBound)
	outcome, err := session.Send(sendCtx, task.ChatRef, msg.Text)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			// Отмена в полёте: исход не записываем, задачу освобождаем.
			return w.shutdown(), true
		}
		outcome = driverFault(sendCtx, err)
	}

	// RECORDING: одна транзакция на все переходы состояний.
	decision, err := w.queue.Record(ctx, task, w.profile.ProfileID, w.runID, *proxyURL, msg, outcome)
	if err != nil {
		w.releaseCurrent()
		if ctx.Err() != nil {
			return w.shutdown(), true
		}
		w.logger.Error("failed to record outcome", "error", err)
		return ExitTransient, true
	}
	w.currentTaskID = 0

	w.publishOutcome(task, outcome)

	// TERMINAL: аккаунт заморожен — закрыть драйвер, не перезапускать.
	if decision.Worker == classify.WorkerStopDoNotRestart {
		w.logger.Error("account terminally rejected, stopping worker")
		return ExitDoNotRestart, true
	}

	// Оценка здоровья прокси после каждой записанной попытки.
	if *proxyURL != "" {
		if rotated, err := w.proxies.ObserveOutcome(ctx, w.profile.ProfileID, *proxyURL); err != nil {
			w.logger.Warn("proxy health check failed", "error", err)
		} else if rotated != "" {
			// Новый egress подхватится при следующем открытии сессии.
			*proxyURL = rotated
		}
	}

	// PACING
	delay := w.failurePause
	if outcome.Success() {
		delay = w.pacer.Delay()
		w.logger.Debug("pacing before next message", "delay", delay)
	}
	if !w.sleep(ctx, delay) {
		return w.shutdown(), true
	}
	return 0, false
}

// openSession открывает сессию драйвера с ограниченным числом попыток
// и экспоненциальным backoff.
func (w *Worker) openSession(ctx context.Context, proxyURL string) (Session, error) {
	backoff := openBackoffBase
	var lastErr error

	for attempt := 1; attempt <= maxOpenAttempts; attempt++ {
		session, err := w.driver.Open(ctx, w.profile, proxyURL)
		if err == nil {
			return session, nil
		}
		lastErr = err
		w.logger.Warn("driver open failed",
			"attempt", attempt,
			"max_attempts", maxOpenAttempts,
			"error", err,
		)
		if attempt < maxOpenAttempts {
			if !w.sleep(ctx, backoff) {
				break
			}
			backoff *= 2
		}
	}
	return nil, errors.Join(ErrDriverOpen, lastErr)
}

// shutdown — путь мягкой остановки: освободить незаписанный claim
// и выйти кодом 0.
func (w *Worker) shutdown() int {
	w.releaseCurrent()
	w.logger.Info("worker stopped")
	return ExitOK
}

// releaseCurrent возвращает захваченную, но не записанную задачу в pending.
// Используется свежий контекст: родительский уже может быть отменён.
func (w *Worker) releaseCurrent() {
	if w.currentTaskID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.queue.ReleaseTask(ctx, w.currentTaskID); err != nil {
		w.logger.Error("failed to release claimed task",
			"task_id", w.currentTaskID,
			"error", err,
		)
	}
	w.currentTaskID = 0
}

// sleep — отменяемая пауза. false, если контекст отменён.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker) publishOutcome(task *domain.Task, outcome domain.Outcome) {
	if w.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.publisher.PublishSendOutcome(ctx, events.SendOutcomePayload{
		RunID:     w.runID,
		GroupID:   w.groupID,
		TaskID:    task.ID,
		ChatRef:   task.ChatRef,
		ProfileID: w.profile.ProfileID,
		Kind:      string(outcome.Kind),
	})
	if err != nil {
		// События наблюдательные: сбой публикации не трогает
		// закоммиченное состояние.
		w.logger.Debug("failed to publish outcome event", "error", err)
	}
}

// driverFault сводит инфраструктурную ошибку драйвера к тегу исхода.
func driverFault(sendCtx context.Context, err error) domain.Outcome {
	kind := domain.OutcomeUnexpectedError
	if errors.Is(sendCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		kind = domain.OutcomeTimeout
	}
	return domain.Outcome{Kind: kind, Detail: err.Error()}
}
