package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("not found")

// DeadLetter is a failed update recorded for later inspection.
type DeadLetter struct {
	ID     string
	Record []byte
}

// Store persists guest key/value data and dead letters.
type Store interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	PutDeadLetter(ctx context.Context, id string, record []byte) error
	DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
	Close() error
}

// Open selects a backend from dsn:
//
//	""  or "memory"       in-process map
//	"bolt:///path/to.db"  bbolt file
//	"postgres://..."      PostgreSQL
//
// prefix is prepended to bucket and table names.
func Open(ctx context.Context, dsn, prefix string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "bolt://"):
		s, err := OpenBolt(strings.TrimPrefix(dsn, "bolt://"), prefix)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		return s, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := OpenPostgres(ctx, dsn, prefix)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store dsn %q", dsn)
	}
}
