package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Stepan2222000/don/internal/classify"
	"github.com/Stepan2222000/don/internal/domain"
	"github.com/Stepan2222000/don/internal/queue"
	"github.com/Stepan2222000/don/internal/repo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Fakes ---

// fakeQueue — очередь в памяти: отдаёт задачи по одной, применяет
// классификатор и копит журнал исходов.
type fakeQueue struct {
	mu sync.Mutex

	pending      []*domain.Task
	hourlyLimits int
	noMessages   bool
	recordErr    error

	recorded []domain.OutcomeKind
	released []int64
}

func (f *fakeQueue) ClaimNext(_ context.Context, _, profileID, _ string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.hourlyLimits > 0 {
		f.hourlyLimits--
		return nil, queue.ErrHourlyLimited
	}
	if len(f.pending) == 0 {
		return nil, nil
	}

	task := f.pending[0]
	f.pending = f.pending[1:]
	task.Status = domain.TaskInProgress
	task.AssignedProfileID = &profileID
	return task, nil
}

func (f *fakeQueue) RandomMessage(context.Context, string) (*domain.Message, error) {
	if f.noMessages {
		return nil, queue.ErrNoMessages
	}
	return &domain.Message{ID: 1, Text: "hello"}, nil
}

func (f *fakeQueue) Record(_ context.Context, task *domain.Task, _, _, _ string, _ *domain.Message, outcome domain.Outcome) (classify.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.recordErr != nil {
		return classify.Decision{}, f.recordErr
	}

	f.recorded = append(f.recorded, outcome.Kind)
	return classify.Classify(outcome, 0, 3), nil
}

func (f *fakeQueue) ReleaseTask(_ context.Context, taskID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, taskID)
	return nil
}

func (f *fakeQueue) HasRemainingWork(context.Context, string, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) > 0, nil
}

func (f *fakeQueue) recordedKinds() []domain.OutcomeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OutcomeKind(nil), f.recorded...)
}

func (f *fakeQueue) releasedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.released...)
}

// fakeResolver — реестр прокси с фиксированным ответом.
type fakeResolver struct {
	proxyURL   string
	resolveErr error
	rotated    string
}

func (f *fakeResolver) Resolve(context.Context, string) (string, error) {
	return f.proxyURL, f.resolveErr
}

func (f *fakeResolver) ObserveOutcome(context.Context, string, string) (string, error) {
	return f.rotated, nil
}

// scriptDriver — драйвер, отдающий заранее заданные исходы по порядку.
type scriptDriver struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
	openErr  error
}

func (d *scriptDriver) Open(context.Context, *domain.Profile, string) (Session, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &scriptSession{driver: d}, nil
}

type scriptSession struct {
	driver *scriptDriver
}

func (s *scriptSession) Send(context.Context, string, string) (domain.Outcome, error) {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()

	if len(s.driver.outcomes) == 0 {
		return domain.Outcome{Kind: domain.OutcomeSuccess}, nil
	}
	outcome := s.driver.outcomes[0]
	s.driver.outcomes = s.driver.outcomes[1:]
	return outcome, nil
}

func (s *scriptSession) Close(context.Context) error { return nil }

// blockingDriver — сессия, чей Send висит до отмены контекста.
type blockingDriver struct{}

func (d *blockingDriver) Open(context.Context, *domain.Profile, string) (Session, error) {
	return &blockingSession{}, nil
}

type blockingSession struct{}

func (s *blockingSession) Send(ctx context.Context, _, _ string) (domain.Outcome, error) {
	<-ctx.Done()
	return domain.Outcome{}, ctx.Err()
}

func (s *blockingSession) Close(context.Context) error { return nil }

// --- Helpers ---

func testProfile() *domain.Profile {
	return &domain.Profile{
		ProfileID: "profile-1",
		Name:      "test",
		IsActive:  true,
	}
}

func testTasks(n int) []*domain.Task {
	tasks := make([]*domain.Task, 0, n)
	for i := 1; i <= n; i++ {
		tasks = append(tasks, &domain.Task{
			ID:          int64(i),
			GroupID:     "g1",
			ChatRef:     "@chat",
			Status:      domain.TaskPending,
			TotalCycles: 1,
		})
	}
	return tasks
}

func newTestWorker(q *fakeQueue, resolver *fakeResolver, driver Driver) *Worker {
	// 3 600 000 сообщений в час — пауза pacing около миллисекунды.
	return New(Config{
		Profile:      testProfile(),
		GroupID:      "g1",
		RunID:        "run-1",
		Queue:        q,
		Proxies:      resolver,
		Driver:       driver,
		Pacer:        queue.NewPacer(3_600_000, 0),
		SendBound:    time.Second,
		IdleRecheck:  time.Millisecond,
		FailurePause: time.Millisecond,
	})
}

// --- Tests ---

// Три чата, один воркер: очередь вычерпывается, по одному успеху на чат.
func TestWorker_DrainsQueue(t *testing.T) {
	q := &fakeQueue{pending: testTasks(3)}
	w := newTestWorker(q, &fakeResolver{proxyURL: "proxy-1"}, &scriptDriver{})

	code := w.Run(context.Background())

	if code != ExitOK {
		t.Fatalf("exit code = %d, want %d", code, ExitOK)
	}
	kinds := q.recordedKinds()
	if len(kinds) != 3 {
		t.Fatalf("recorded %d outcomes, want 3", len(kinds))
	}
	for _, kind := range kinds {
		if kind != domain.OutcomeSuccess {
			t.Errorf("unexpected outcome %s", kind)
		}
	}
	if released := q.releasedIDs(); len(released) != 0 {
		t.Errorf("nothing should be released on clean drain, got %v", released)
	}
}

// account_frozen: исход записан, воркер выходит кодом «не перезапускать»,
// остаток очереди не трогается.
func TestWorker_AccountFrozenStops(t *testing.T) {
	q := &fakeQueue{pending: testTasks(2)}
	driver := &scriptDriver{outcomes: []domain.Outcome{{Kind: domain.OutcomeAccountFrozen}}}
	w := newTestWorker(q, &fakeResolver{proxyURL: "proxy-1"}, driver)

	code := w.Run(context.Background())

	if code != ExitDoNotRestart {
		t.Fatalf("exit code = %d, want %d", code, ExitDoNotRestart)
	}
	if kinds := q.recordedKinds(); len(kinds) != 1 || kinds[0] != domain.OutcomeAccountFrozen {
		t.Fatalf("recorded = %v, want single account_frozen", kinds)
	}
	q.mu.Lock()
	left := len(q.pending)
	q.mu.Unlock()
	if left != 1 {
		t.Errorf("second task must remain untouched, left %d", left)
	}
}

// Ограничение чата не останавливает воркер: обе задачи получают попытку.
func TestWorker_RestrictionContinues(t *testing.T) {
	q := &fakeQueue{pending: testTasks(2)}
	driver := &scriptDriver{outcomes: []domain.Outcome{{Kind: domain.OutcomeNeedToJoin}}}
	w := newTestWorker(q, &fakeResolver{proxyURL: "proxy-1"}, driver)

	code := w.Run(context.Background())

	if code != ExitOK {
		t.Fatalf("exit code = %d, want %d", code, ExitOK)
	}
	kinds := q.recordedKinds()
	if len(kinds) != 2 {
		t.Fatalf("recorded %d outcomes, want 2", len(kinds))
	}
	if kinds[0] != domain.OutcomeNeedToJoin || kinds[1] != domain.OutcomeSuccess {
		t.Errorf("recorded = %v", kinds)
	}
}

// Нет сообщений у группы — ошибка конфигурации, claim освобождён.
func TestWorker_NoMessagesIsConfigError(t *testing.T) {
	q := &fakeQueue{pending: testTasks(1), noMessages: true}
	w := newTestWorker(q, &fakeResolver{proxyURL: "proxy-1"}, &scriptDriver{})

	code := w.Run(context.Background())

	if code != ExitConfig {
		t.Fatalf("exit code = %d, want %d", code, ExitConfig)
	}
	if released := q.releasedIDs(); len(released) != 1 || released[0] != 1 {
		t.Errorf("claimed task must be released, got %v", released)
	}
	if kinds := q.recordedKinds(); len(kinds) != 0 {
		t.Errorf("nothing must be recorded, got %v", kinds)
	}
}

// Исчерпанный пул прокси фатален для профиля.
func TestWorker_ProxyExhausted(t *testing.T) {
	q := &fakeQueue{}
	w := newTestWorker(q, &fakeResolver{resolveErr: repo.ErrNoFreeProxy}, &scriptDriver{})

	if code := w.Run(context.Background()); code != ExitConfig {
		t.Fatalf("exit code = %d, want %d", code, ExitConfig)
	}
}

// Часовой лимит: воркер пережидает и завершится, когда работы не осталось.
func TestWorker_HourlyLimitThenDone(t *testing.T) {
	q := &fakeQueue{hourlyLimits: 2}
	w := newTestWorker(q, &fakeResolver{proxyURL: "proxy-1"}, &scriptDriver{})

	if code := w.Run(context.Background()); code != ExitOK {
		t.Fatalf("exit code = %d, want %d", code, ExitOK)
	}
}

// Отмена во время отправки: исход не записывается, задача возвращается
// в pending, выход кодом 0.
func TestWorker_CancelDuringSend(t *testing.T) {
	q := &fakeQueue{pending: testTasks(1)}
	w := newTestWorker(q, &fakeResolver{proxyURL: "proxy-1"}, &blockingDriver{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	code := w.Run(ctx)

	if code != ExitOK {
		t.Fatalf("exit code = %d, want %d", code, ExitOK)
	}
	if released := q.releasedIDs(); len(released) != 1 || released[0] != 1 {
		t.Errorf("claimed task must be released on cancel, got %v", released)
	}
	if kinds := q.recordedKinds(); len(kinds) != 0 {
		t.Errorf("cancelled send must not be recorded, got %v", kinds)
	}
}

// Заблокированный профиль не допускается к работе.
func TestWorker_IneligibleProfile(t *testing.T) {
	profile := testProfile()
	profile.IsBlocked = true
	profile.IsActive = false

	w := New(Config{
		Profile:   profile,
		GroupID:   "g1",
		RunID:     "run-1",
		Queue:     &fakeQueue{},
		Proxies:   &fakeResolver{proxyURL: "proxy-1"},
		Driver:    &scriptDriver{},
		Pacer:     queue.NewPacer(3600, 0),
		SendBound: time.Second,
	})

	if code := w.Run(context.Background()); code != ExitConfig {
		t.Fatalf("exit code = %d, want %d", code, ExitConfig)
	}
}

// Сбой открытия драйвера при отменённом ожидании — временный сбой.
func TestWorker_DriverOpenFailure(t *testing.T) {
	q := &fakeQueue{pending: testTasks(1)}
	driver := &scriptDriver{openErr: errors.New("browser did not start")}
	w := newTestWorker(q, &fakeResolver{proxyURL: "proxy-1"}, driver)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if code := w.Run(ctx); code != ExitTransient {
		t.Fatalf("exit code = %d, want %d", code, ExitTransient)
	}
}

// Сбой записи исхода: задача освобождается, воркер уходит на перезапуск.
func TestWorker_RecordFailureReleases(t *testing.T) {
	q := &fakeQueue{pending: testTasks(1), recordErr: errors.New("connection lost")}
	w := newTestWorker(q, &fakeResolver{proxyURL: "proxy-1"}, &scriptDriver{})

	code := w.Run(context.Background())

	if code != ExitTransient {
		t.Fatalf("exit code = %d, want %d", code, ExitTransient)
	}
	if released := q.releasedIDs(); len(released) != 1 {
		t.Errorf("task must be released after record failure, got %v", released)
	}
}
