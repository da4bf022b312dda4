package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/Stepan2222000/don/internal/domain"
)

// DryRunDriver — драйвер для прогона без браузера: имитирует отправку
// короткой паузой и всегда отвечает success. Полезен для обкатки
// очереди, лимитов и супервизора на стенде.
type DryRunDriver struct{}

func init() {
	RegisterDriver("dryrun", func() Driver { return &DryRunDriver{} })
}

// Open открывает фиктивную сессию.
func (d *DryRunDriver) Open(_ context.Context, profile *domain.Profile, proxyURL string) (Session, error) {
	return &dryRunSession{profile: profile, proxyURL: proxyURL}, nil
}

type dryRunSession struct {
	profile  *domain.Profile
	proxyURL string
}

func (s *dryRunSession) Send(ctx context.Context, chatRef, text string) (domain.Outcome, error) {
	delay := time.Duration(100+rand.Intn(200)) * time.Millisecond
	select {
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	case <-time.After(delay):
	}
	return domain.Outcome{Kind: domain.OutcomeSuccess}, nil
}

func (s *dryRunSession) Close(context.Context) error { return nil }
