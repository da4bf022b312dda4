package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Stepan2222000/don/internal/domain"
)

// ProfileRepo — операции над таблицей profiles.
type ProfileRepo struct{}

// NewProfileRepo создаёт новый ProfileRepo.
func NewProfileRepo() *ProfileRepo { return &ProfileRepo{} }

const profileColumns = `profile_id, profile_name, is_active, is_blocked,
	is_logged_out, messages_sent_current_hour, hour_window_start,
	last_message_at, created_at, updated_at`

// Upsert регистрирует профиль (или обновляет имя существующего).
func (r *ProfileRepo) Upsert(ctx context.Context, q Querier, profileID, name string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO profiles (profile_id, profile_name)
		VALUES ($1, $2)
		ON CONFLICT (profile_id) DO UPDATE SET
			profile_name = EXCLUDED.profile_name,
			updated_at = now()
	`, profileID, name)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// GetByID возвращает профиль по идентификатору.
func (r *ProfileRepo) GetByID(ctx context.Context, q Querier, profileID string) (*domain.Profile, error) {
	row := q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE profile_id = $1`, profileID)
	return scanProfile(row)
}

// ListEligible возвращает профили, пригодные для привязки к воркерам.
// limit <= 0 — без ограничения.
func (r *ProfileRepo) ListEligible(ctx context.Context, q Querier, limit int) ([]domain.Profile, error) {
	sql := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE is_active = TRUE AND is_blocked = FALSE AND is_logged_out = FALSE
		ORDER BY profile_name
	`
	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = q.Query(ctx, sql+` LIMIT $1`, limit)
	} else {
		rows, err = q.Query(ctx, sql)
	}
	if err != nil {
		return nil, fmt.Errorf("list eligible profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfileFromRows(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// Block терминально блокирует профиль. Инвариант is_blocked ⇒ !is_active
// поддерживается здесь же.
func (r *ProfileRepo) Block(ctx context.Context, q Querier, profileID string) error {
	_, err := q.Exec(ctx, `
		UPDATE profiles
		SET is_blocked = TRUE, is_active = FALSE, updated_at = now()
		WHERE profile_id = $1
	`, profileID)
	if err != nil {
		return fmt.Errorf("block profile: %w", err)
	}
	return nil
}

// MarkLoggedOut помечает профиль разлогиненным.
func (r *ProfileRepo) MarkLoggedOut(ctx context.Context, q Querier, profileID string) error {
	_, err := q.Exec(ctx, `
		UPDATE profiles
		SET is_logged_out = TRUE, is_active = FALSE, updated_at = now()
		WHERE profile_id = $1
	`, profileID)
	if err != nil {
		return fmt.Errorf("mark logged out: %w", err)
	}
	return nil
}

// RefreshHourWindow сбрасывает часовой счётчик, если окно истекло.
// Сравнение идёт на серверном времени, в той же транзакции, что и claim.
func (r *ProfileRepo) RefreshHourWindow(ctx context.Context, q Querier, profileID string) error {
	_, err := q.Exec(ctx, `
		UPDATE profiles
		SET messages_sent_current_hour = 0,
		    hour_window_start = now(),
		    updated_at = now()
		WHERE profile_id = $1
		  AND (hour_window_start IS NULL
		       OR hour_window_start + interval '1 hour' <= now())
	`, profileID)
	if err != nil {
		return fmt.Errorf("refresh hour window: %w", err)
	}
	return nil
}

// MessagesSentCurrentHour читает счётчик текущего окна.
func (r *ProfileRepo) MessagesSentCurrentHour(ctx context.Context, q Querier, profileID string) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT messages_sent_current_hour FROM profiles WHERE profile_id = $1
	`, profileID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read hour counter: %w", err)
	}
	return count, nil
}

// IncrementSent увеличивает часовой счётчик после успешной отправки.
func (r *ProfileRepo) IncrementSent(ctx context.Context, q Querier, profileID string) error {
	_, err := q.Exec(ctx, `
		UPDATE profiles
		SET messages_sent_current_hour = messages_sent_current_hour + 1,
		    last_message_at = now(),
		    updated_at = now()
		WHERE profile_id = $1
	`, profileID)
	if err != nil {
		return fmt.Errorf("increment sent: %w", err)
	}
	return nil
}

// --- Helpers ---

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ProfileID,
		&p.Name,
		&p.IsActive,
		&p.IsBlocked,
		&p.IsLoggedOut,
		&p.MessagesSentCurrentHour,
		&p.HourWindowStart,
		&p.LastMessageAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}

func scanProfileFromRows(rows pgx.Rows) (*domain.Profile, error) {
	var p domain.Profile
	err := rows.Scan(
		&p.ProfileID,
		&p.Name,
		&p.IsActive,
		&p.IsBlocked,
		&p.IsLoggedOut,
		&p.MessagesSentCurrentHour,
		&p.HourWindowStart,
		&p.LastMessageAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}
