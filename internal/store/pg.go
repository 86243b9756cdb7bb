package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore keeps guest data in PostgreSQL.
type PgStore struct {
	pool         *pgxpool.Pool
	tableKV      string
	tableLetters string
}

func OpenPostgres(ctx context.Context, url, prefix string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	s := &PgStore{
		pool:         pool,
		tableKV:      prefix + "kv",
		tableLetters: prefix + "dead_letters",
	}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgStore) init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`create table if not exists %s (
			key text primary key,
			value text not null,
			updated_at timestamptz not null default now()
		)`, s.tableKV),
		fmt.Sprintf(`create table if not exists %s (
			seq bigserial primary key,
			id text not null,
			record bytea not null,
			created_at timestamptz not null default now()
		)`, s.tableLetters),
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PgStore) Put(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`insert into %s (key, value) values ($1, $2)
			on conflict (key) do update set value = excluded.value, updated_at = now()`, s.tableKV),
		key, value,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`select value from %s where key = $1`, s.tableKV), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (s *PgStore) PutDeadLetter(ctx context.Context, id string, record []byte) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`insert into %s (id, record) values ($1, $2)`, s.tableLetters),
		id, record,
	)
	return err
}

// DeadLetters returns up to limit records, newest first.
func (s *PgStore) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	q := fmt.Sprintf(`select id, record from %s order by seq desc`, s.tableLetters)
	args := []any{}
	if limit > 0 {
		q += ` limit $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var dl DeadLetter
		if err := rows.Scan(&dl.ID, &dl.Record); err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}
