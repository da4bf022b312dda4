package domain

import "time"

// ProxyAssignment — прокси из пула и его привязка к профилю.
//
// Инвариант: один прокси привязан максимум к одному профилю.
// Единственный писатель — ProxyRegistry.
type ProxyAssignment struct {
	// ProxyURL — непрозрачная строка вида host:port:user:pass.
	ProxyURL string `json:"proxy_url"`

	// ProfileID — профиль, за которым закреплён прокси (nil = свободен).
	ProfileID *string `json:"profile_id,omitempty"`

	IsHealthy bool `json:"is_healthy"`

	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	LastRotationAt *time.Time `json:"last_rotation_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ProxyStats — скользящая статистика пары (прокси, профиль).
// По ней принимается решение о ротации.
type ProxyStats struct {
	ProxyURL  string `json:"proxy_url"`
	ProfileID string `json:"profile_id"`

	TotalAttempts     int `json:"total_attempts"`
	SuccessfulSends   int `json:"successful_sends"`
	ChatNotFoundCount int `json:"chat_not_found_count"`
	OtherErrors       int `json:"other_errors"`

	PeriodStart   time.Time  `json:"period_start"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// ChatNotFoundRate — доля chat_not_found среди всех попыток, в процентах.
func (s *ProxyStats) ChatNotFoundRate() float64 {
	if s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.ChatNotFoundCount) / float64(s.TotalAttempts) * 100
}

// SuccessRate — доля успешных отправок, в процентах.
func (s *ProxyStats) SuccessRate() float64 {
	if s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.SuccessfulSends) / float64(s.TotalAttempts) * 100
}
