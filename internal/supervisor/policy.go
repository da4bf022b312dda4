package supervisor

import (
	"time"

	"github.com/Stepan2222000/don/internal/worker"
)

// RestartPolicy — правила перезапуска воркеров.
type RestartPolicy struct {
	// Base — базовая задержка перезапуска; растёт экспоненциально.
	Base time.Duration

	// Cap — потолок задержки.
	Cap time.Duration

	// MaxAttempts — лимит перезапусков внутри окна cooldown.
	MaxAttempts int

	// Cooldown — после такой стабильной работы счётчик обнуляется.
	Cooldown time.Duration
}

// Backoff — задержка перед k-м перезапуском (k с нуля): min(Base*2^k, Cap).
func (p RestartPolicy) Backoff(k int) time.Duration {
	d := p.Base
	for i := 0; i < k; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Decide решает, перезапускать ли воркер после выхода.
//
// exitCode 0 — работа завершена; 3 — «не перезапускать» (аккаунт
// терминально отклонён); 4 — ошибка конфигурации, перезапуск её не
// исправит. Остальные коды — временные сбои: перезапускаем, пока не
// исчерпан лимит. uptime не меньше cooldown обнуляет счётчик.
func (p RestartPolicy) Decide(exitCode, restarts int, uptime time.Duration) (bool, int) {
	switch exitCode {
	case worker.ExitOK, worker.ExitDoNotRestart, worker.ExitConfig:
		return false, restarts
	}

	if uptime >= p.Cooldown {
		restarts = 0
	}
	if restarts >= p.MaxAttempts {
		return false, restarts
	}
	return true, restarts + 1
}
