package domain

import "time"

// ProfileDailyStats — суточная статистика отправок профиля.
// Уникальна по (profile_id, date).
type ProfileDailyStats struct {
	ProfileID string    `json:"profile_id"`
	Date      time.Time `json:"date"`

	MessagesSent    int `json:"messages_sent"`
	SuccessfulSends int `json:"successful_sends"`
	FailedSends     int `json:"failed_sends"`

	UpdatedAt time.Time `json:"updated_at"`
}
