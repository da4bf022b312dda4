package worker

// Коды выхода воркера. Супервизор принимает по ним решение о перезапуске.
const (
	// ExitOK — работа завершена (нет задач либо мягкая остановка).
	ExitOK = 0

	// ExitTransient — временный сбой; воркер можно перезапустить с backoff.
	ExitTransient = 1

	// ExitDoNotRestart — профиль терминально отклонён; не перезапускать.
	ExitDoNotRestart = 3

	// ExitConfig — ошибка конфигурации (нет профиля, прокси, сообщений).
	ExitConfig = 4
)
