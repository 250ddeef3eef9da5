package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const backendPostgres = "postgres"

const (
	createDocumentsTable = `CREATE TABLE IF NOT EXISTS documents (
	name TEXT PRIMARY KEY,
	body JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectDocument = `SELECT body::text FROM documents WHERE name = $1`
	upsertDocument = `INSERT INTO documents (name, body, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`
)

type pgConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps the document as one jsonb row keyed by name.
type PostgresStore struct {
	conn  pgConn
	name  string
	close func()
}

func NewPostgresStore(conn pgConn, name string) *PostgresStore {
	return &PostgresStore{conn: conn, name: name, close: func() {}}
}

func ConnectPostgres(ctx context.Context, dsn, name string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewPostgresStore(pool, name)
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, createDocumentsTable); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context) (*Document, error) {
	var body string
	err := s.conn.QueryRow(ctx, selectDocument, s.name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, readError(backendPostgres, fmt.Errorf("document %s not found", s.name))
	}
	if err != nil {
		return nil, readError(backendPostgres, err)
	}

	doc, err := Decode([]byte(body))
	if err != nil {
		return nil, readError(backendPostgres, fmt.Errorf("parse document %s: %w", s.name, err))
	}
	return doc, nil
}

func (s *PostgresStore) Write(ctx context.Context, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return writeError(backendPostgres, err)
	}
	if _, err := s.conn.Exec(ctx, upsertDocument, s.name, string(data)); err != nil {
		return writeError(backendPostgres, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.close()
	return nil
}
