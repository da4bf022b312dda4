package supervisor

import (
	"testing"
	"time"

	"github.com/Stepan2222000/don/internal/worker"
)

func testPolicy() RestartPolicy {
	return RestartPolicy{
		Base:        30 * time.Second,
		Cap:         5 * time.Minute,
		MaxAttempts: 5,
		Cooldown:    time.Hour,
	}
}

// Backoff: 30s, 60s, 120s, 240s, затем потолок 5m.
func TestRestartPolicy_Backoff(t *testing.T) {
	p := testPolicy()

	want := []time.Duration{
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		5 * time.Minute,
		5 * time.Minute,
	}
	for k, expected := range want {
		if got := p.Backoff(k); got != expected {
			t.Errorf("Backoff(%d) = %v, want %v", k, got, expected)
		}
	}
}

func TestRestartPolicy_Decide(t *testing.T) {
	p := testPolicy()

	// Нормальное завершение — не перезапускаем.
	if restart, _ := p.Decide(worker.ExitOK, 0, time.Minute); restart {
		t.Errorf("exit 0 must not restart")
	}

	// «Не перезапускать» — никогда.
	if restart, _ := p.Decide(worker.ExitDoNotRestart, 0, time.Minute); restart {
		t.Errorf("exit 3 must not restart")
	}

	// Ошибка конфигурации — перезапуск её не исправит.
	if restart, _ := p.Decide(worker.ExitConfig, 0, time.Minute); restart {
		t.Errorf("config error must not restart")
	}

	// Временный сбой — перезапускаем со счётом.
	restart, next := p.Decide(worker.ExitTransient, 0, time.Minute)
	if !restart || next != 1 {
		t.Errorf("transient failure: got (%v, %d), want (true, 1)", restart, next)
	}

	// Лимит перезапусков исчерпан.
	if restart, _ := p.Decide(worker.ExitTransient, 5, time.Minute); restart {
		t.Errorf("restart budget exhausted: must not restart")
	}

	// Стабильная работа обнуляет счётчик.
	restart, next = p.Decide(worker.ExitTransient, 5, 2*time.Hour)
	if !restart || next != 1 {
		t.Errorf("after cooldown: got (%v, %d), want (true, 1)", restart, next)
	}

	// Убитый процесс (-1) — тоже временный сбой.
	if restart, _ := p.Decide(-1, 0, time.Minute); !restart {
		t.Errorf("killed worker must be restarted")
	}
}
