package repo

import (
	"context"
	"fmt"

	"github.com/Stepan2222000/don/internal/domain"
)

// AttemptRepo — операции над append-only журналом task_attempts.
type AttemptRepo struct{}

// NewAttemptRepo создаёт новый AttemptRepo.
func NewAttemptRepo() *AttemptRepo { return &AttemptRepo{} }

// Insert добавляет запись о терминальном исходе попытки.
func (r *AttemptRepo) Insert(ctx context.Context, q Querier, a *domain.TaskAttempt) error {
	err := q.QueryRow(ctx, `
		INSERT INTO task_attempts (
			task_id, profile_id, run_id, cycle_number, status,
			error_kind, error_detail, message_text
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, attempted_at
	`, a.TaskID, a.ProfileID, a.RunID, a.CycleNumber, string(a.Status),
		a.ErrorKind, a.ErrorDetail, a.MessageText,
	).Scan(&a.ID, &a.AttemptedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// CountByRun — число попыток задачи в рамках сессии.
// status == "" считает все попытки, иначе только указанный статус.
func (r *AttemptRepo) CountByRun(ctx context.Context, q Querier, taskID int64, runID string, status domain.AttemptStatus) (int, error) {
	var count int
	var err error
	if status == "" {
		err = q.QueryRow(ctx, `
			SELECT count(*) FROM task_attempts
			WHERE task_id = $1 AND run_id = $2
		`, taskID, runID).Scan(&count)
	} else {
		err = q.QueryRow(ctx, `
			SELECT count(*) FROM task_attempts
			WHERE task_id = $1 AND run_id = $2 AND status = $3
		`, taskID, runID, string(status)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

// SuccessesInHourWindow — число успешных попыток профиля за скользящий час.
// Контрольная выборка для проверки часового лимита в операторских срезах.
func (r *AttemptRepo) SuccessesInHourWindow(ctx context.Context, q Querier, profileID string) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT count(*) FROM task_attempts
		WHERE profile_id = $1
		  AND status = 'success'
		  AND attempted_at > now() - interval '1 hour'
	`, profileID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count hourly successes: %w", err)
	}
	return count, nil
}
