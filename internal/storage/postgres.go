package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const undefinedTable = "42P01"

// PostgresDB owns the connection pool shared by every namespace.
type PostgresDB struct {
	db *sql.DB
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresDB{db: db}, nil
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_store (
			namespace  TEXT        NOT NULL,
			key        TEXT        NOT NULL,
			payload    JSONB       NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		)
	`)
	return err
}

// PostgresRepository stores JSON documents of one namespace in kv_store.
type PostgresRepository[T any] struct {
	db        *sql.DB
	namespace string
}

func NewPostgresRepository[T any](p *PostgresDB, namespace string) *PostgresRepository[T] {
	return &PostgresRepository[T]{db: p.db, namespace: namespace}
}

func (s *PostgresRepository[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	var payload []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM kv_store
		WHERE namespace = $1 AND key = $2
	`, s.namespace, key)
	if err := row.Scan(&payload); err != nil {
		return zero, mapPostgresError(err)
	}
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return zero, fmt.Errorf("decode %s/%s: %w", s.namespace, key, err)
	}
	return v, nil
}

func (s *PostgresRepository[T]) Put(ctx context.Context, key string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.namespace, key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv_store (namespace, key, payload)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (namespace, key) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`, s.namespace, key, string(payload))
	return mapPostgresError(err)
}

func (s *PostgresRepository[T]) List(ctx context.Context) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM kv_store
		WHERE namespace = $1
		ORDER BY key ASC
	`, s.namespace)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.namespace, err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresRepository[T]) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM kv_store
		WHERE namespace = $1 AND key = $2
	`, s.namespace, key)
	if err != nil {
		return mapPostgresError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("kv_store missing, run EnsureSchema or db/migrations: %w", err)
	}
	return err
}
