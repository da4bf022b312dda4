package queue

import (
	"testing"
	"time"
)

// Задержка держится в полосе base*(1±randomness).
func TestPacer_DelayBounds(t *testing.T) {
	p := NewPacer(30, 0.2)

	base := 120 * time.Second // 3600/30
	lo := time.Duration(float64(base) * 0.8)
	hi := time.Duration(float64(base) * 1.2)

	for i := 0; i < 1000; i++ {
		d := p.Delay()
		if d < lo || d > hi {
			t.Fatalf("delay %v outside [%v, %v]", d, lo, hi)
		}
	}
}

// Нулевой джиттер — ровно базовая задержка.
func TestPacer_ZeroRandomness(t *testing.T) {
	p := NewPacer(60, 0)

	want := 60 * time.Second
	for i := 0; i < 10; i++ {
		if d := p.Delay(); d != want {
			t.Fatalf("expected exact %v, got %v", want, d)
		}
	}
}

// Отсрочка slow_mode не меньше затребованного окна и с ограниченным
// джиттером сверху.
func TestWithSlowModeJitter(t *testing.T) {
	requested := 90 * time.Second

	for i := 0; i < 1000; i++ {
		d := withSlowModeJitter(requested)
		if d < requested {
			t.Fatalf("jittered delay %v below requested %v", d, requested)
		}
		if d > requested+slowModeJitterMax {
			t.Fatalf("jittered delay %v above cap %v", d, requested+slowModeJitterMax)
		}
	}
}
