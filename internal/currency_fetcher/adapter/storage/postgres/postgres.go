package postgres

import (
	"context"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/langowen/oxrbank/internal/currency_fetcher/cache"
	"github.com/pkg/errors"
	"time"
)

const DefaultName = "latest"

// DB is the part of pgxpool.Pool the storage needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Storage struct {
	db   DB
	pool *pgxpool.Pool
	name string
}

func NewStorage(db DB, name string) *Storage {
	if name == "" {
		name = DefaultName
	}

	s := &Storage{
		db:   db,
		name: name,
	}
	if pool, ok := db.(*pgxpool.Pool); ok {
		s.pool = pool
	}

	return s
}

func InitStorage(ctx context.Context, dsn string, name string) (*Storage, error) {
	const op = "storage.postgres.InitStorage"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 10 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, op)
	}

	storageBD := NewStorage(pool, name)

	if err = storageBD.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, op)
	}

	return storageBD, nil
}

func (s *Storage) EnsureSchema(ctx context.Context) error {
	const op = "storage.postgres.EnsureSchema"

	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rate_documents (
			name       TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

// ReadDocument returns the stored rates document. A missing row is reported
// as absent.
func (s *Storage) ReadDocument(ctx context.Context) (string, bool, error) {
	const op = "storage.postgres.ReadDocument"

	var body string
	err := s.db.QueryRow(ctx, `SELECT body FROM rate_documents WHERE name = $1`, s.name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, op)
	}

	return body, body != "", nil
}

func (s *Storage) WriteDocument(ctx context.Context, text string) error {
	const op = "storage.postgres.WriteDocument"

	_, err := s.db.Exec(ctx, `
		INSERT INTO rate_documents (name, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name)
		DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, s.name, text)
	if err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

// Location exposes the storage as a callback cache for the bank.
func (s *Storage) Location() cache.Callback {
	return cache.Callback{
		Read:  s.ReadDocument,
		Write: s.WriteDocument,
	}
}

func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
