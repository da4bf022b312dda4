package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
limits:
  max_messages_per_hour: 10
  max_cycles: 3
  delay_randomness: 0.5
  cycle_delay_minutes: 45
proxy:
  chat_not_found_threshold: 25
supervisor:
  shutdown_grace_seconds: 15
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Limits.MaxMessagesPerHour != 10 {
		t.Errorf("max_messages_per_hour = %d, want 10", cfg.Limits.MaxMessagesPerHour)
	}
	if cfg.Limits.MaxCycles != 3 {
		t.Errorf("max_cycles = %d, want 3", cfg.Limits.MaxCycles)
	}
	if cfg.Proxy.ChatNotFoundThreshold != 25 {
		t.Errorf("chat_not_found_threshold = %v, want 25", cfg.Proxy.ChatNotFoundThreshold)
	}
	// Незатронутые секции остаются на значениях по умолчанию.
	if cfg.Timeouts.PageLoadTimeout != 30 {
		t.Errorf("page_load_timeout = %d, want default 30", cfg.Timeouts.PageLoadTimeout)
	}
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("explicit missing config path must fail")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"нулевой часовой лимит", func(c *Config) { c.Limits.MaxMessagesPerHour = 0 }},
		{"нулевой max_cycles", func(c *Config) { c.Limits.MaxCycles = 0 }},
		{"джиттер вне диапазона", func(c *Config) { c.Limits.DelayRandomness = 1.5 }},
		{"отрицательный cycle delay", func(c *Config) { c.Limits.CycleDelayMinutes = -1 }},
		{"нулевой таймаут", func(c *Config) { c.Timeouts.SendTimeout = 0 }},
		{"нулевой бюджет отказов", func(c *Config) { c.Retry.MaxAttemptsBeforeBlock = 0 }},
		{"порог больше 100%", func(c *Config) { c.Proxy.ChatNotFoundThreshold = 120 }},
		{"нулевое grace-окно", func(c *Config) { c.Supervisor.ShutdownGraceSeconds = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestDatabase_URL(t *testing.T) {
	d := Database{Host: "db.local", Port: 5433, Name: "don", User: "u", Password: "p"}

	want := "postgresql://u:p@db.local:5433/don?sslmode=disable"
	if got := d.URL(); got != want {
		t.Errorf("URL() = %s, want %s", got, want)
	}

	t.Setenv("DB_URL", "postgresql://other:x@elsewhere:5432/db")
	if got := d.URL(); got != "postgresql://other:x@elsewhere:5432/db" {
		t.Errorf("DB_URL env must take precedence, got %s", got)
	}
}

func TestDatabase_MigrateURL(t *testing.T) {
	d := Database{Host: "h", Port: 5432, Name: "n", User: "u", Password: "p"}

	got := d.MigrateURL()
	want := "pgx5://u:p@h:5432/n?sslmode=disable"
	if got != want {
		t.Errorf("MigrateURL() = %s, want %s", got, want)
	}
}

func TestTimeouts_SendBound(t *testing.T) {
	tm := Timeouts{SearchTimeout: 10, SendTimeout: 5, PageLoadTimeout: 30}
	if got := tm.SendBound().Seconds(); got != 45 {
		t.Errorf("SendBound() = %vs, want 45s", got)
	}
}
