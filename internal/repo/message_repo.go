package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Stepan2222000/don/internal/domain"
)

// MessageRepo — операции над таблицей messages.
type MessageRepo struct{}

// NewMessageRepo создаёт новый MessageRepo.
func NewMessageRepo() *MessageRepo { return &MessageRepo{} }

// Import добавляет шаблоны сообщений группы.
func (r *MessageRepo) Import(ctx context.Context, q Querier, groupID string, texts []string) (int, error) {
	count := 0
	for _, text := range texts {
		_, err := q.Exec(ctx, `
			INSERT INTO messages (group_id, text) VALUES ($1, $2)
		`, groupID, text)
		if err != nil {
			return count, fmt.Errorf("import message: %w", err)
		}
		count++
	}
	return count, nil
}

// RandomActive возвращает случайное активное сообщение группы.
func (r *MessageRepo) RandomActive(ctx context.Context, q Querier, groupID string) (*domain.Message, error) {
	var m domain.Message
	err := q.QueryRow(ctx, `
		SELECT id, group_id, text, is_active, usage_count, created_at
		FROM messages
		WHERE group_id = $1 AND is_active = TRUE
		ORDER BY random()
		LIMIT 1
	`, groupID).Scan(&m.ID, &m.GroupID, &m.Text, &m.IsActive, &m.UsageCount, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("random message: %w", err)
	}
	return &m, nil
}

// IncrementUsage увеличивает счётчик использования сообщения.
func (r *MessageRepo) IncrementUsage(ctx context.Context, q Querier, id int64) error {
	_, err := q.Exec(ctx, `
		UPDATE messages SET usage_count = usage_count + 1 WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

// CountActive — число активных сообщений группы.
func (r *MessageRepo) CountActive(ctx context.Context, q Querier, groupID string) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT count(*) FROM messages WHERE group_id = $1 AND is_active = TRUE
	`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
