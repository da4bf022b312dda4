package domain

import "time"

// Message — шаблон сообщения для рассылки в рамках группы.
// Append-only, кроме счётчика usage_count.
type Message struct {
	ID       int64  `json:"id"`
	GroupID  string `json:"group_id"`
	Text     string `json:"text"`
	IsActive bool   `json:"is_active"`

	// UsageCount — сколько раз сообщение было отправлено.
	UsageCount int `json:"usage_count"`

	CreatedAt time.Time `json:"created_at"`
}
