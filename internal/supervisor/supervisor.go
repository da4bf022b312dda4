package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/Stepan2222000/don/internal/clock"
	"github.com/Stepan2222000/don/internal/domain"
	"github.com/Stepan2222000/don/internal/events"
	"github.com/Stepan2222000/don/internal/queue"
	"github.com/Stepan2222000/don/internal/repo"
	"github.com/Stepan2222000/don/internal/telemetry"
)

// ErrNoEligibleProfiles — нет профилей, пригодных для запуска воркеров.
var ErrNoEligibleProfiles = errors.New("no eligible profiles")

// Supervisor запускает и сопровождает процессы воркеров.
type Supervisor struct {
	store    *repo.Store
	queue    *queue.TaskQueue
	profiles *repo.ProfileRepo

	session domain.RunSession

	groupID     string
	workerCount int

	workerBinary string
	policy       RestartPolicy
	grace        time.Duration
	staleAfter   time.Duration

	publisher *events.Publisher
	clk       clock.Clock
	logger    *slog.Logger

	wg sync.WaitGroup
}

// Config — конфигурация Supervisor.
type Config struct {
	Store *repo.Store
	Queue *queue.TaskQueue

	GroupID     string
	WorkerCount int

	// WorkerBinary — путь к бинарю воркера.
	WorkerBinary string

	Policy RestartPolicy

	// ShutdownGrace — окно мягкой остановки перед SIGKILL.
	ShutdownGrace time.Duration

	// StaleAfter — возраст in_progress задач для reaper на старте.
	StaleAfter time.Duration

	// Publisher — best-effort события жизненного цикла (может быть nil).
	Publisher *events.Publisher

	Clock  clock.Clock
	Logger *slog.Logger
}

// New создаёт Supervisor и чеканит свежий run_id.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}

	session := domain.NewRunSession(cfg.GroupID, clk.Now())

	return &Supervisor{
		store:        cfg.Store,
		queue:        cfg.Queue,
		profiles:     repo.NewProfileRepo(),
		session:      session,
		groupID:      cfg.GroupID,
		workerCount:  cfg.WorkerCount,
		workerBinary: cfg.WorkerBinary,
		policy:       cfg.Policy,
		grace:        cfg.ShutdownGrace,
		staleAfter:   cfg.StaleAfter,
		publisher:    cfg.Publisher,
		clk:          clk,
		logger:       logger.With("run_id", session.RunID, "group_id", cfg.GroupID),
	}
}

// RunID возвращает идентификатор текущей сессии.
func (s *Supervisor) RunID() string { return s.session.RunID }

// Run запускает воркеры и сопровождает их до отмены контекста либо
// до завершения последнего воркера.
//
// Перед стартом reaper возвращает осиротевшие in_progress задачи в
// pending: воркер, погибший с незаписанным claim в прошлом запуске,
// не должен оставить чат без отправки. После остановки всех воркеров
// reaper выполняется ещё раз — на случай принудительно убитых.
func (s *Supervisor) Run(ctx context.Context) error {
	if _, err := s.queue.ResetStale(ctx, s.groupID, s.staleAfter); err != nil {
		return fmt.Errorf("reset stale tasks: %w", err)
	}

	profiles, err := s.profiles.ListEligible(ctx, s.store.Pool(), s.workerCount)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	if len(profiles) == 0 {
		return ErrNoEligibleProfiles
	}

	s.logger.Info("starting workers", "count", len(profiles))

	for i := range profiles {
		profile := profiles[i]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.superviseChild(ctx, &profile)
		}()
	}

	s.wg.Wait()
	s.logger.Info("all workers stopped")

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.queue.ResetStale(cleanupCtx, s.groupID, 0); err != nil {
		s.logger.Error("final stale reset failed", "error", err)
	}
	return nil
}

// superviseChild сопровождает один профиль: запуск, ожидание выхода,
// решение о перезапуске с backoff.
func (s *Supervisor) superviseChild(ctx context.Context, profile *domain.Profile) {
	logger := s.logger.With("profile_id", profile.ProfileID, "profile_name", profile.Name)
	restarts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		started := s.clk.Now()
		cmd, err := s.spawn(profile)
		if err != nil {
			logger.Error("failed to spawn worker", "error", err)
			return
		}
		logger.Info("worker started", "pid", cmd.Process.Pid)
		s.publishWorker(events.EventWorkerStarted, profile.ProfileID, 0)

		exitCode := s.wait(ctx, cmd)
		uptime := s.clk.Now().Sub(started)

		logger.Info("worker exited", "exit_code", exitCode, "uptime", uptime)
		s.publishWorker(events.EventWorkerStopped, profile.ProfileID, exitCode)

		if ctx.Err() != nil {
			return
		}

		restart, next := s.policy.Decide(exitCode, restarts, uptime)
		if !restart {
			switch exitCode {
			case 0:
				logger.Info("worker finished, not restarting")
			case 3:
				logger.Warn("worker exited with do-not-restart code")
			default:
				logger.Error("worker not restarted", "exit_code", exitCode, "restarts", restarts)
			}
			return
		}

		restarts = next
		backoff := s.policy.Backoff(restarts - 1)
		logger.Info("restarting worker",
			"attempt", restarts,
			"max_attempts", s.policy.MaxAttempts,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		telemetry.WorkerRestarts.Inc()
	}
}

// spawn запускает процесс воркера для профиля.
func (s *Supervisor) spawn(profile *domain.Profile) (*exec.Cmd, error) {
	cmd := exec.Command(s.workerBinary,
		"--profile-id", profile.ProfileID,
		"--group-id", s.groupID,
		"--run-id", s.session.RunID,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker process: %w", err)
	}
	return cmd, nil
}

// wait ждёт выхода процесса. При отмене контекста шлёт SIGTERM,
// выдерживает grace-окно и добивает SIGKILL.
func (s *Supervisor) wait(ctx context.Context, cmd *exec.Cmd) int {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return exitCodeOf(err)

	case <-ctx.Done():
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			s.logger.Warn("failed to signal worker", "error", err)
		}

		select {
		case err := <-done:
			return exitCodeOf(err)
		case <-time.After(s.grace):
			s.logger.Warn("worker did not stop in time, killing", "pid", cmd.Process.Pid)
			_ = cmd.Process.Kill()
			return exitCodeOf(<-done)
		}
	}
}

func (s *Supervisor) publishWorker(eventType events.EventType, profileID string, exitCode int) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := events.WorkerPayload{
		RunID:     s.session.RunID,
		GroupID:   s.groupID,
		ProfileID: profileID,
		ExitCode:  exitCode,
	}

	var err error
	if eventType == events.EventWorkerStarted {
		err = s.publisher.PublishWorkerStarted(ctx, payload)
	} else {
		err = s.publisher.PublishWorkerStopped(ctx, payload)
	}
	if err != nil {
		s.logger.Debug("failed to publish worker event", "error", err)
	}
}

// exitCodeOf извлекает код выхода из ошибки Wait.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
