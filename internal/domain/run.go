package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunSession — идентификатор одного запуска супервизора.
//
// run_id попадает в каждую строку task_attempts: именно так бюджет
// max_cycles становится сессионным, а не пожизненным. Сессия живёт
// в памяти супервизора и копируется (не разделяется) в воркеры.
type RunSession struct {
	RunID     string    `json:"run_id"`
	GroupID   string    `json:"group_id"`
	StartedAt time.Time `json:"started_at"`
}

// NewRunSession создаёт сессию со свежим run_id.
func NewRunSession(groupID string, now time.Time) RunSession {
	return RunSession{
		RunID:     uuid.New().String(),
		GroupID:   groupID,
		StartedAt: now,
	}
}
