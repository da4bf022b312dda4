package proxy

import (
	"testing"

	"github.com/Stepan2222000/don/internal/domain"
)

func TestShouldRotate(t *testing.T) {
	tests := []struct {
		name        string
		stats       *domain.ProxyStats
		minAttempts int
		threshold   float64
		want        bool
	}{
		{
			name: "выборка меньше минимума — не ротируем",
			stats: &domain.ProxyStats{
				TotalAttempts:     5,
				ChatNotFoundCount: 5,
			},
			minAttempts: 10,
			threshold:   40,
			want:        false,
		},
		{
			name: "доля выше порога — ротируем",
			stats: &domain.ProxyStats{
				TotalAttempts:     10,
				ChatNotFoundCount: 5,
			},
			minAttempts: 10,
			threshold:   40,
			want:        true,
		},
		{
			name: "доля ровно на пороге — не ротируем",
			stats: &domain.ProxyStats{
				TotalAttempts:     10,
				ChatNotFoundCount: 4,
			},
			minAttempts: 10,
			threshold:   40,
			want:        false,
		},
		{
			name: "здоровый прокси",
			stats: &domain.ProxyStats{
				TotalAttempts:   100,
				SuccessfulSends: 95,
			},
			minAttempts: 10,
			threshold:   40,
			want:        false,
		},
		{
			name:        "нет статистики",
			stats:       nil,
			minAttempts: 10,
			threshold:   40,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldRotate(tt.stats, tt.minAttempts, tt.threshold)
			if got != tt.want {
				t.Errorf("ShouldRotate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProxyStats_Rates(t *testing.T) {
	s := &domain.ProxyStats{
		TotalAttempts:     20,
		SuccessfulSends:   10,
		ChatNotFoundCount: 8,
		OtherErrors:       2,
	}

	if rate := s.ChatNotFoundRate(); rate != 40 {
		t.Errorf("ChatNotFoundRate() = %v, want 40", rate)
	}
	if rate := s.SuccessRate(); rate != 50 {
		t.Errorf("SuccessRate() = %v, want 50", rate)
	}

	empty := &domain.ProxyStats{}
	if empty.ChatNotFoundRate() != 0 || empty.SuccessRate() != 0 {
		t.Errorf("empty stats must have zero rates")
	}
}
