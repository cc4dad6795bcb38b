package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a single exchanges table with jsonb
// header and response columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: cannot ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS exchanges (
		id         TEXT PRIMARY KEY,
		method     TEXT NOT NULL,
		url        TEXT NOT NULL,
		headers    JSONB NOT NULL DEFAULT 'null'::jsonb,
		body       TEXT NOT NULL DEFAULT '',
		body_type  TEXT NOT NULL,
		response   JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS exchanges_created_at_idx ON exchanges (created_at DESC, id DESC)`,
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return nil
}

// Create inserts one exchange row
func (s *PostgresStore) Create(ctx context.Context, ex *Exchange) (string, error) {
	ex.ID = newID()
	ex.CreatedAt = time.Now().UTC()

	headersJSON, err := json.Marshal(ex.Headers)
	if err != nil {
		return "", err
	}
	responseJSON, err := json.Marshal(ex.Response)
	if err != nil {
		return "", err
	}

	const sqlInsert = `
    INSERT INTO exchanges
      (id, method, url, headers, body, body_type, response, created_at)
    VALUES
      ($1, $2, $3, $4::jsonb, $5, $6, $7::jsonb, $8)
    RETURNING id
    `
	var id string
	row := s.pool.QueryRow(ctx, sqlInsert,
		ex.ID,
		ex.Method,
		ex.URL,
		string(headersJSON),
		ex.Body,
		ex.BodyType,
		string(responseJSON),
		ex.CreatedAt,
	)
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("Create scan: %w", err)
	}
	return id, nil
}

// ListRecent returns up to limit exchanges, newest first
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Exchange, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	// The id tie-break keeps rows created in the same microsecond in a
	// fixed order.
	const sqlQuery = `
    SELECT id, method, url, headers, body, body_type, response, created_at
    FROM exchanges
    ORDER BY created_at DESC, id DESC
    LIMIT $1
    `
	rows, err := s.pool.Query(ctx, sqlQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent query: %w", err)
	}
	defer rows.Close()

	exchanges := make([]*Exchange, 0, limit)
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecent scan: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}

// GetByID returns one exchange, or ErrNotFound
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Exchange, error) {
	const sqlQuery = `
    SELECT id, method, url, headers, body, body_type, response, created_at
    FROM exchanges WHERE id = $1
    `
	ex, err := scanExchange(s.pool.QueryRow(ctx, sqlQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetByID scan: %w", err)
	}
	return ex, nil
}

// DeleteByID removes one exchange row if present
func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM exchanges WHERE id = $1`, id); err != nil {
		return fmt.Errorf("DeleteByID exec: %w", err)
	}
	return nil
}

// DeleteAll empties the exchanges table
func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM exchanges`); err != nil {
		return fmt.Errorf("DeleteAll exec: %w", err)
	}
	return nil
}

// Ping checks database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExchange(row rowScanner) (*Exchange, error) {
	var (
		ex           Exchange
		headersJSON  []byte
		responseJSON []byte
	)
	if err := row.Scan(
		&ex.ID,
		&ex.Method,
		&ex.URL,
		&headersJSON,
		&ex.Body,
		&ex.BodyType,
		&responseJSON,
		&ex.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(headersJSON, &ex.Headers); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(responseJSON, &ex.Response); err != nil {
		return nil, err
	}
	return &ex, nil
}
