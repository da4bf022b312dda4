package queue

import (
	"math/rand"
	"time"
)

// slowModeJitterMax — верхняя граница добавки к задержке slow_mode,
// чтобы повторная попытка не попадала секунда в секунду в конец окна.
const slowModeJitterMax = 30 * time.Second

// Pacer считает задержки между отправками.
//
// Базовая задержка — 3600/max_messages_per_hour секунд, умноженная на
// равномерный множитель в [1-randomness, 1+randomness]: ровные
// интервалы образуют детектируемый паттерн.
type Pacer struct {
	perHour    int
	randomness float64
}

// NewPacer создаёт Pacer.
func NewPacer(perHour int, randomness float64) *Pacer {
	return &Pacer{perHour: perHour, randomness: randomness}
}

// Delay — задержка перед следующей отправкой.
func (p *Pacer) Delay() time.Duration {
	base := 3600.0 / float64(p.perHour)
	factor := 1.0 + p.randomness*(2*rand.Float64()-1)
	return time.Duration(base * factor * float64(time.Second))
}

// withSlowModeJitter — отсрочка чата после slow_mode: затребованное
// окно плюс небольшой джиттер.
func withSlowModeJitter(requested time.Duration) time.Duration {
	return requested + time.Duration(rand.Float64()*float64(slowModeJitterMax))
}
