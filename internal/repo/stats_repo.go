package repo

import (
	"context"
	"fmt"

	"github.com/Stepan2222000/don/internal/domain"
)

// StatsRepo — операции над суточной статистикой профилей.
type StatsRepo struct{}

// NewStatsRepo создаёт новый StatsRepo.
func NewStatsRepo() *StatsRepo { return &StatsRepo{} }

// UpsertDaily инкрементирует суточные счётчики профиля.
func (r *StatsRepo) UpsertDaily(ctx context.Context, q Querier, profileID string, success bool) error {
	succ, fail := 0, 1
	if success {
		succ, fail = 1, 0
	}

	_, err := q.Exec(ctx, `
		INSERT INTO profile_daily_stats (profile_id, date, messages_sent,
			successful_sends, failed_sends)
		VALUES ($1, current_date, 1, $2, $3)
		ON CONFLICT (profile_id, date) DO UPDATE SET
			messages_sent = profile_daily_stats.messages_sent + 1,
			successful_sends = profile_daily_stats.successful_sends + $2,
			failed_sends = profile_daily_stats.failed_sends + $3,
			updated_at = now()
	`, profileID, succ, fail)
	if err != nil {
		return fmt.Errorf("upsert daily stats: %w", err)
	}
	return nil
}

// DailyAll возвращает суточную статистику всех профилей за последние days дней.
func (r *StatsRepo) DailyAll(ctx context.Context, q Querier, days int) ([]domain.ProfileDailyStats, error) {
	rows, err := q.Query(ctx, `
		SELECT s.profile_id, s.date, s.messages_sent, s.successful_sends,
		       s.failed_sends, s.updated_at
		FROM profile_daily_stats s
		WHERE s.date > current_date - make_interval(days => $1)
		ORDER BY s.date DESC, s.profile_id
	`, days)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	defer rows.Close()

	var result []domain.ProfileDailyStats
	for rows.Next() {
		var s domain.ProfileDailyStats
		if err := rows.Scan(&s.ProfileID, &s.Date, &s.MessagesSent,
			&s.SuccessfulSends, &s.FailedSends, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
