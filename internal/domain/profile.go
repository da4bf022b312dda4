package domain

import "time"

// Profile — браузерный профиль, от имени которого работает воркер.
//
// Профили создаются внешним импортом (ProfileSource) и никогда не
// удаляются ядром. Счётчики часового окна мутирует очередь задач,
// флаги блокировки — классификатор ошибок.
type Profile struct {
	// ProfileID — внешний идентификатор профиля (UUID браузерного профиля).
	ProfileID string `json:"profile_id"`

	// Name — человекочитаемое имя профиля.
	Name string `json:"name"`

	// IsActive — профиль участвует в раздаче задач.
	IsActive bool `json:"is_active"`

	// IsBlocked — профиль терминально отклонён внешним сервисом.
	// Инвариант: IsBlocked ⇒ !IsActive.
	IsBlocked bool `json:"is_blocked"`

	// IsLoggedOut — сессия профиля потеряна, требуется повторный вход.
	IsLoggedOut bool `json:"is_logged_out"`

	// MessagesSentCurrentHour — счётчик отправок в текущем часовом окне.
	MessagesSentCurrentHour int `json:"messages_sent_current_hour"`

	// HourWindowStart — начало текущего часового окна.
	HourWindowStart *time.Time `json:"hour_window_start,omitempty"`

	// LastMessageAt — время последней успешной отправки.
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Eligible сообщает, может ли профиль быть привязан к воркеру.
func (p *Profile) Eligible() bool {
	return p.IsActive && !p.IsBlocked && !p.IsLoggedOut
}
