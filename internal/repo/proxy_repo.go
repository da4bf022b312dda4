package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Stepan2222000/don/internal/domain"
)

// ProxyRepo — операции над proxy_assignments и proxy_stats.
type ProxyRepo struct{}

// NewProxyRepo создаёт новый ProxyRepo.
func NewProxyRepo() *ProxyRepo { return &ProxyRepo{} }

const proxyColumns = `proxy_url, profile_id, is_healthy, assigned_at,
	last_rotation_at, created_at`

// Sync идемпотентно добавляет прокси из внешнего списка.
// Существующие строки не трогаются. Возвращает число новых.
func (r *ProxyRepo) Sync(ctx context.Context, q Querier, urls []string) (int, error) {
	added := 0
	for _, url := range urls {
		tag, err := q.Exec(ctx, `
			INSERT INTO proxy_assignments (proxy_url)
			VALUES ($1)
			ON CONFLICT (proxy_url) DO NOTHING
		`, url)
		if err != nil {
			return added, fmt.Errorf("sync proxy: %w", err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

// AssignedTo возвращает текущую привязку профиля.
func (r *ProxyRepo) AssignedTo(ctx context.Context, q Querier, profileID string) (*domain.ProxyAssignment, error) {
	row := q.QueryRow(ctx, `
		SELECT `+proxyColumns+`
		FROM proxy_assignments
		WHERE profile_id = $1
	`, profileID)
	return scanProxy(row)
}

// ClaimFree атомарно захватывает свободный здоровый прокси для профиля.
// Условие profile_id IS NULL под FOR UPDATE SKIP LOCKED — и есть claim
// пула: два профиля не получат один прокси. Нет свободных — ErrNoFreeProxy.
func (r *ProxyRepo) ClaimFree(ctx context.Context, q Querier, profileID string) (*domain.ProxyAssignment, error) {
	row := q.QueryRow(ctx, `
		WITH candidate AS (
			SELECT proxy_url
			FROM proxy_assignments
			WHERE profile_id IS NULL AND is_healthy = TRUE
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE proxy_assignments p
		SET profile_id = $1,
		    assigned_at = now(),
		    updated_at = now()
		FROM candidate c
		WHERE p.proxy_url = c.proxy_url
		RETURNING p.proxy_url, p.profile_id, p.is_healthy, p.assigned_at,
			p.last_rotation_at, p.created_at
	`, profileID)

	assignment, err := scanProxy(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoFreeProxy
	}
	return assignment, err
}

// Release снимает привязку профиля, возвращая прокси в пул.
func (r *ProxyRepo) Release(ctx context.Context, q Querier, profileID string) error {
	_, err := q.Exec(ctx, `
		UPDATE proxy_assignments
		SET profile_id = NULL,
		    assigned_at = NULL,
		    last_rotation_at = now(),
		    updated_at = now()
		WHERE profile_id = $1
	`, profileID)
	if err != nil {
		return fmt.Errorf("release proxy: %w", err)
	}
	return nil
}

// MarkUnhealthy помечает прокси нездоровым и снимает привязку, если была.
func (r *ProxyRepo) MarkUnhealthy(ctx context.Context, q Querier, proxyURL string) error {
	_, err := q.Exec(ctx, `
		UPDATE proxy_assignments
		SET is_healthy = FALSE,
		    profile_id = NULL,
		    assigned_at = NULL,
		    updated_at = now()
		WHERE proxy_url = $1
	`, proxyURL)
	if err != nil {
		return fmt.Errorf("mark proxy unhealthy: %w", err)
	}
	return nil
}

// ResetUnhealthy возвращает в пул прокси, помеченные нездоровыми
// дольше olderThanHours назад.
func (r *ProxyRepo) ResetUnhealthy(ctx context.Context, q Querier, olderThanHours int) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE proxy_assignments
		SET is_healthy = TRUE, updated_at = now()
		WHERE is_healthy = FALSE
		  AND updated_at < now() - make_interval(hours => $1)
	`, olderThanHours)
	if err != nil {
		return 0, fmt.Errorf("reset unhealthy proxies: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List возвращает все прокси пула.
func (r *ProxyRepo) List(ctx context.Context, q Querier) ([]domain.ProxyAssignment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+proxyColumns+`
		FROM proxy_assignments
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list proxies: %w", err)
	}
	defer rows.Close()

	var result []domain.ProxyAssignment
	for rows.Next() {
		var a domain.ProxyAssignment
		if err := rows.Scan(&a.ProxyURL, &a.ProfileID, &a.IsHealthy,
			&a.AssignedAt, &a.LastRotationAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan proxy: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// --- Статистика пары (прокси, профиль) ---

// AttemptClass — класс попытки для счётчиков proxy_stats.
type AttemptClass int

// Классы попыток.
const (
	AttemptClassSuccess AttemptClass = iota
	AttemptClassChatNotFound
	AttemptClassOtherError
)

// RecordAttempt инкрементирует счётчики пары (прокси, профиль).
func (r *ProxyRepo) RecordAttempt(ctx context.Context, q Querier, proxyURL, profileID string, class AttemptClass) error {
	success, notFound, other := 0, 0, 0
	switch class {
	case AttemptClassSuccess:
		success = 1
	case AttemptClassChatNotFound:
		notFound = 1
	default:
		other = 1
	}

	_, err := q.Exec(ctx, `
		INSERT INTO proxy_stats (proxy_url, profile_id, total_attempts,
			successful_sends, chat_not_found_count, other_errors, last_attempt_at)
		VALUES ($1, $2, 1, $3, $4, $5, now())
		ON CONFLICT (proxy_url, profile_id) DO UPDATE SET
			total_attempts = proxy_stats.total_attempts + 1,
			successful_sends = proxy_stats.successful_sends + $3,
			chat_not_found_count = proxy_stats.chat_not_found_count + $4,
			other_errors = proxy_stats.other_errors + $5,
			last_attempt_at = now()
	`, proxyURL, profileID, success, notFound, other)
	if err != nil {
		return fmt.Errorf("record proxy attempt: %w", err)
	}
	return nil
}

// Stats возвращает статистику пары (прокси, профиль).
func (r *ProxyRepo) Stats(ctx context.Context, q Querier, proxyURL, profileID string) (*domain.ProxyStats, error) {
	var s domain.ProxyStats
	err := q.QueryRow(ctx, `
		SELECT proxy_url, profile_id, total_attempts, successful_sends,
		       chat_not_found_count, other_errors, period_start, last_attempt_at
		FROM proxy_stats
		WHERE proxy_url = $1 AND profile_id = $2
	`, proxyURL, profileID).Scan(&s.ProxyURL, &s.ProfileID, &s.TotalAttempts,
		&s.SuccessfulSends, &s.ChatNotFoundCount, &s.OtherErrors,
		&s.PeriodStart, &s.LastAttemptAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("proxy stats: %w", err)
	}
	return &s, nil
}

// ResetStats удаляет статистику пары — новая пара начинает с чистого листа.
func (r *ProxyRepo) ResetStats(ctx context.Context, q Querier, proxyURL, profileID string) error {
	_, err := q.Exec(ctx, `
		DELETE FROM proxy_stats WHERE proxy_url = $1 AND profile_id = $2
	`, proxyURL, profileID)
	if err != nil {
		return fmt.Errorf("reset proxy stats: %w", err)
	}
	return nil
}

// --- Helpers ---

func scanProxy(row pgx.Row) (*domain.ProxyAssignment, error) {
	var a domain.ProxyAssignment
	err := row.Scan(&a.ProxyURL, &a.ProfileID, &a.IsHealthy,
		&a.AssignedAt, &a.LastRotationAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan proxy: %w", err)
	}
	return &a, nil
}
