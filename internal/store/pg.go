package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per slot in the kv_slots table. It deliberately
// offers no more than the Store contract: a plain read and a last-writer-wins
// upsert, so the queue and lock behave identically across backends.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_slots WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get slot %q: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Update(ctx context.Context, key string, value []byte) error {
	if value == nil {
		_, err := s.pool.Exec(ctx, `DELETE FROM kv_slots WHERE key = $1`, key)
		if err != nil {
			return fmt.Errorf("clear slot %q: %w", key, err)
		}
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_slots (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("update slot %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM kv_slots ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list slot keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// compile-time check that PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)
