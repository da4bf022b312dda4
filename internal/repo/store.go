package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier — общий интерфейс пула и транзакции.
// Методы репозиториев принимают его первым аргументом после контекста:
// один и тот же SQL работает и автономно, и внутри WithTx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxMode — режим транзакции.
type TxMode int

// Режимы транзакций.
const (
	ReadOnly TxMode = iota
	ReadWrite
)

// Store владеет пулом соединений к Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Open создаёт пул и проверяет соединение.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MinConns = 2
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Pool возвращает пул для операций вне транзакции.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close закрывает пул.
func (s *Store) Close() { s.pool.Close() }

// WithTx выполняет fn внутри одной транзакции: commit при nil,
// rollback при любой ошибке. Вложенность плоская — savepoints ядру
// не нужны; deadlocks и serialization failures всплывают как есть.
func (s *Store) WithTx(ctx context.Context, mode TxMode, fn func(q Querier) error) error {
	access := pgx.ReadWrite
	if mode == ReadOnly {
		access = pgx.ReadOnly
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: access})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
