package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Stepan2222000/don/internal/domain"
)

// TaskRepo — операции над таблицей tasks.
type TaskRepo struct{}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo() *TaskRepo { return &TaskRepo{} }

const taskColumns = `id, group_id, chat_ref, status, assigned_profile_id,
	total_cycles, completed_cycles, success_count, failed_count,
	is_blocked, block_reason, last_attempt_at, next_available_at,
	created_at, updated_at`

// Import создаёт задачи для списка чатов группы (upsert по (group_id, chat_ref)).
// Возвращает число обработанных строк.
func (r *TaskRepo) Import(ctx context.Context, q Querier, groupID string, chatRefs []string, totalCycles int) (int, error) {
	count := 0
	for _, ref := range chatRefs {
		_, err := q.Exec(ctx, `
			INSERT INTO tasks (group_id, chat_ref, total_cycles)
			VALUES ($1, $2, $3)
			ON CONFLICT (group_id, chat_ref) DO UPDATE SET
				total_cycles = EXCLUDED.total_cycles,
				updated_at = now()
		`, groupID, ref, totalCycles)
		if err != nil {
			return count, fmt.Errorf("import chat %s: %w", ref, err)
		}
		count++
	}
	return count, nil
}

// GetByID возвращает задачу по id.
func (r *TaskRepo) GetByID(ctx context.Context, q Querier, id int64) (*domain.Task, error) {
	row := q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// Claim атомарно выбирает и захватывает лучшую доступную задачу группы.
//
// FOR UPDATE SKIP LOCKED делает выбор race-free и wait-free между
// конкурирующими воркерами: строка, уже захваченная чужой транзакцией,
// просто пропускается. Кандидаты упорядочены по (completed_cycles,
// last_attempt_at NULLS FIRST, id) — чаты с наименьшим числом отправок
// и самым старым касанием идут первыми, id детерминированно рвёт ничьи.
// Сессионный бюджет обеспечивает счёт task_attempts по run_id.
//
// Возвращает (nil, nil), если захватывать нечего.
func (r *TaskRepo) Claim(ctx context.Context, q Querier, groupID, profileID, runID string) (*domain.Task, error) {
	row := q.QueryRow(ctx, `
		WITH candidate AS (
			SELECT t.id
			FROM tasks t
			WHERE t.group_id = $1
			  AND t.is_blocked = FALSE
			  AND t.completed_cycles < t.total_cycles
			  AND (t.next_available_at IS NULL OR t.next_available_at <= now())
			  AND (t.status = 'pending'
			       OR (t.status = 'in_progress' AND t.assigned_profile_id = $2))
			  AND (SELECT count(*) FROM task_attempts a
			       WHERE a.task_id = t.id AND a.run_id = $3) < t.total_cycles
			ORDER BY t.completed_cycles ASC, t.last_attempt_at ASC NULLS FIRST, t.id ASC
			LIMIT 1
			FOR UPDATE OF t SKIP LOCKED
		)
		UPDATE tasks
		SET status = 'in_progress', assigned_profile_id = $2, updated_at = now()
		FROM candidate
		WHERE tasks.id = candidate.id
		RETURNING tasks.id, tasks.group_id, tasks.chat_ref, tasks.status,
			tasks.assigned_profile_id, tasks.total_cycles, tasks.completed_cycles,
			tasks.success_count, tasks.failed_count, tasks.is_blocked,
			tasks.block_reason, tasks.last_attempt_at, tasks.next_available_at,
			tasks.created_at, tasks.updated_at
	`, groupID, profileID, runID)

	task, err := scanTask(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return task, err
}

// MarkSuccess фиксирует успешный цикл: двигает счётчики, снимает claim
// и планирует следующую доступность чата через cycle delay.
// Статус становится completed, когда исторический счётчик добирает
// total_cycles; иначе задача возвращается в pending.
func (r *TaskRepo) MarkSuccess(ctx context.Context, q Querier, id int64, cycleDelaySeconds float64) (*domain.Task, error) {
	row := q.QueryRow(ctx, `
		UPDATE tasks
		SET completed_cycles = completed_cycles + 1,
		    success_count = success_count + 1,
		    last_attempt_at = now(),
		    updated_at = now(),
		    assigned_profile_id = NULL,
		    status = CASE WHEN completed_cycles + 1 >= total_cycles
		                  THEN 'completed' ELSE 'pending' END,
		    next_available_at = CASE WHEN completed_cycles + 1 >= total_cycles
		                             THEN next_available_at
		                             ELSE now() + make_interval(secs => $2) END
		WHERE id = $1
		RETURNING `+taskColumnsPrefixed("tasks")+`
	`, id, cycleDelaySeconds)
	return scanTask(row)
}

// MarkFailure увеличивает счётчик отказов и отмечает касание.
func (r *TaskRepo) MarkFailure(ctx context.Context, q Querier, id int64) error {
	_, err := q.Exec(ctx, `
		UPDATE tasks
		SET failed_count = failed_count + 1,
		    last_attempt_at = now(),
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark failure: %w", err)
	}
	return nil
}

// Block перманентно блокирует задачу.
func (r *TaskRepo) Block(ctx context.Context, q Querier, id int64, reason string) error {
	_, err := q.Exec(ctx, `
		UPDATE tasks
		SET is_blocked = TRUE,
		    block_reason = $2,
		    status = 'blocked',
		    assigned_profile_id = NULL,
		    updated_at = now()
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("block task: %w", err)
	}
	return nil
}

// Reschedule снимает claim и откладывает задачу на delaySeconds.
func (r *TaskRepo) Reschedule(ctx context.Context, q Querier, id int64, delaySeconds float64) error {
	_, err := q.Exec(ctx, `
		UPDATE tasks
		SET status = 'pending',
		    assigned_profile_id = NULL,
		    next_available_at = now() + make_interval(secs => $2),
		    updated_at = now()
		WHERE id = $1
	`, id, delaySeconds)
	if err != nil {
		return fmt.Errorf("reschedule task: %w", err)
	}
	return nil
}

// Release возвращает задачу в pending без изменения статистики.
// Используется при отмене воркера до записи исхода.
func (r *TaskRepo) Release(ctx context.Context, q Querier, id int64) error {
	_, err := q.Exec(ctx, `
		UPDATE tasks
		SET status = 'pending',
		    assigned_profile_id = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = 'in_progress'
	`, id)
	if err != nil {
		return fmt.Errorf("release task: %w", err)
	}
	return nil
}

// FailuresSinceLastSuccess — число транспортных и драйверных сбоев после
// последнего успеха. Вход бюджета max_attempts_before_block: ограничения
// чата, slow_mode, chat_not_found и account_frozen в счёт не идут.
func (r *TaskRepo) FailuresSinceLastSuccess(ctx context.Context, q Querier, id int64) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM task_attempts
		WHERE task_id = $1
		  AND status = 'failed'
		  AND error_kind NOT IN ('need_to_join', 'premium_required',
		      'stars_required', 'user_blocked', 'input_unavailable',
		      'slow_mode', 'chat_not_found', 'account_frozen')
		  AND attempted_at > COALESCE(
			(SELECT max(attempted_at) FROM task_attempts
			 WHERE task_id = $1 AND status = 'success'),
			'-infinity'::timestamptz)
	`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return count, nil
}

// ResetStale возвращает зависшие in_progress задачи в pending, не трогая
// статистику. groupID == "" означает все группы. Идемпотентна.
func (r *TaskRepo) ResetStale(ctx context.Context, q Querier, groupID string, olderThan time.Duration) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE tasks
		SET status = 'pending',
		    assigned_profile_id = NULL,
		    updated_at = now()
		WHERE status = 'in_progress'
		  AND updated_at < now() - make_interval(secs => $1)
		  AND ($2 = '' OR group_id = $2)
	`, olderThan.Seconds(), groupID)
	if err != nil {
		return 0, fmt.Errorf("reset stale tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HasRemainingWork сообщает, остались ли у группы задачи с неисчерпанным
// сессионным бюджетом — независимо от pacing-задержек.
func (r *TaskRepo) HasRemainingWork(ctx context.Context, q Querier, groupID, runID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tasks t
			WHERE t.group_id = $1
			  AND t.is_blocked = FALSE
			  AND t.status IN ('pending', 'in_progress')
			  AND t.completed_cycles < t.total_cycles
			  AND (SELECT count(*) FROM task_attempts a
			       WHERE a.task_id = t.id AND a.run_id = $2) < t.total_cycles
		)
	`, groupID, runID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check remaining work: %w", err)
	}
	return exists, nil
}

// UnblockByReason снимает блокировку с задач с указанной причиной.
// Используется при ротации прокси: chat_not_found получает второй шанс.
func (r *TaskRepo) UnblockByReason(ctx context.Context, q Querier, reason string) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE tasks
		SET is_blocked = FALSE,
		    block_reason = NULL,
		    status = 'pending',
		    updated_at = now()
		WHERE is_blocked = TRUE AND block_reason = $1
	`, reason)
	if err != nil {
		return 0, fmt.Errorf("unblock tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats возвращает агрегат по статусам задач группы.
func (r *TaskRepo) Stats(ctx context.Context, q Querier, groupID string) (*domain.TaskStats, error) {
	var s domain.TaskStats
	err := q.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'pending'),
		       count(*) FILTER (WHERE status = 'in_progress'),
		       count(*) FILTER (WHERE status = 'completed'),
		       count(*) FILTER (WHERE status = 'blocked'),
		       COALESCE(sum(success_count), 0),
		       COALESCE(sum(failed_count), 0)
		FROM tasks
		WHERE group_id = $1
	`, groupID).Scan(&s.Total, &s.Pending, &s.InProgress, &s.Completed,
		&s.Blocked, &s.TotalSuccess, &s.TotalFailed)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return &s, nil
}

// --- Helpers ---

func taskColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.group_id, ` + alias + `.chat_ref, ` +
		alias + `.status, ` + alias + `.assigned_profile_id, ` +
		alias + `.total_cycles, ` + alias + `.completed_cycles, ` +
		alias + `.success_count, ` + alias + `.failed_count, ` +
		alias + `.is_blocked, ` + alias + `.block_reason, ` +
		alias + `.last_attempt_at, ` + alias + `.next_available_at, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var status string

	err := row.Scan(
		&t.ID,
		&t.GroupID,
		&t.ChatRef,
		&status,
		&t.AssignedProfileID,
		&t.TotalCycles,
		&t.CompletedCycles,
		&t.SuccessCount,
		&t.FailedCount,
		&t.IsBlocked,
		&t.BlockReason,
		&t.LastAttemptAt,
		&t.NextAvailableAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Status = domain.TaskStatus(status)
	return &t, nil
}
