package queue

import "errors"

// Ошибки очереди.
var (
	// ErrHourlyLimited — профиль выбрал часовой лимит отправок.
	ErrHourlyLimited = errors.New("profile reached hourly limit")

	// ErrNoMessages — у группы нет активных сообщений.
	ErrNoMessages = errors.New("no active messages for group")
)
