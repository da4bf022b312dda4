package domain

import "time"

// TaskStatus — статус задачи в очереди.
type TaskStatus string

// Статусы задач.
const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
)

// Причины блокировки задач.
const (
	BlockReasonChatNotFound    = "chat_not_found"
	BlockReasonTooManyFailures = "too_many_failures"
)

// Task — одна цель рассылки: чат, которому нужно доставить
// total_cycles сообщений в рамках сессии.
//
// Инварианты:
//   - completed_cycles <= total_cycles
//   - is_blocked ⇒ status = blocked
//   - status = in_progress ⇒ assigned_profile_id != nil
//   - (group_id, chat_ref) уникальна
type Task struct {
	ID      int64  `json:"id"`
	GroupID string `json:"group_id"`

	// ChatRef — непрозрачная ссылка на чат во внешнем сервисе.
	ChatRef string `json:"chat_ref"`

	Status TaskStatus `json:"status"`

	// AssignedProfileID — профиль, удерживающий claim (только для in_progress).
	AssignedProfileID *string `json:"assigned_profile_id,omitempty"`

	// TotalCycles — бюджет отправок на одну сессию (run).
	TotalCycles int `json:"total_cycles"`

	// CompletedCycles — исторический счётчик успешных циклов.
	// Для выбора кандидата используется счёт attempts по run_id, не он.
	CompletedCycles int `json:"completed_cycles"`

	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`

	IsBlocked   bool    `json:"is_blocked"`
	BlockReason *string `json:"block_reason,omitempty"`

	LastAttemptAt   *time.Time `json:"last_attempt_at,omitempty"`
	NextAvailableAt *time.Time `json:"next_available_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttemptStatus — терминальный исход одной попытки.
type AttemptStatus string

// Статусы попыток.
const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// TaskAttempt — append-only запись об одном терминальном исходе claim.
// Ровно одна строка на каждый Outcome.
type TaskAttempt struct {
	ID        int64  `json:"id"`
	TaskID    int64  `json:"task_id"`
	ProfileID string `json:"profile_id"`

	// RunID — сессия супервизора, в рамках которой сделана попытка.
	// Именно по нему считается сессионный бюджет циклов.
	RunID string `json:"run_id"`

	CycleNumber int           `json:"cycle_number"`
	Status      AttemptStatus `json:"status"`

	ErrorKind   *string `json:"error_kind,omitempty"`
	ErrorDetail *string `json:"error_detail,omitempty"`

	// MessageText — текст отправленного сообщения (только для success).
	MessageText *string `json:"message_text,omitempty"`

	AttemptedAt time.Time `json:"attempted_at"`
}

// TaskStats — агрегат по статусам задач группы.
type TaskStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Blocked    int `json:"blocked"`

	TotalSuccess int `json:"total_success"`
	TotalFailed  int `json:"total_failed"`
}
