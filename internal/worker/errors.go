package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownDriver — драйвер с таким именем не зарегистрирован.
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrProfileNotEligible — профиль неактивен, заблокирован или разлогинен.
	ErrProfileNotEligible = errors.New("profile is not eligible")

	// ErrDriverOpen — не удалось открыть сессию драйвера.
	ErrDriverOpen = errors.New("driver open failed")
)
