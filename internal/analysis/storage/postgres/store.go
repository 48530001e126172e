// Package postgres persists screenings in PostgreSQL through a pgx pool.
// The schema is migrated with goose on open.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/rbright/mindwell/internal/analysis"
)

//go:embed migrations/*.sql
var embedded embed.FS

// ErrDuplicate is returned when a screening id was already stored.
var ErrDuplicate = errors.New("screening already stored")

const uniqueViolation = "23505"

// Store is a PostgreSQL-backed analysis.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Migrations returns the embedded goose migration files.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Open connects to databaseURL and applies pending migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is required for postgres store")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, Migrations())
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Save inserts record.
func (s *Store) Save(ctx context.Context, record analysis.Screening) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO screenings (id, summary, score, validation, reasoning, analyzer, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID,
		record.Summary,
		record.Score,
		record.Validation,
		record.Reasoning,
		record.Analyzer,
		record.Source,
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicate, record.ID)
		}
		return fmt.Errorf("postgres save screening: %w", err)
	}
	return nil
}

type screeningRow struct {
	ID         string    `db:"id"`
	Summary    string    `db:"summary"`
	Score      float64   `db:"score"`
	Validation string    `db:"validation"`
	Reasoning  string    `db:"reasoning"`
	Analyzer   string    `db:"analyzer"`
	Source     string    `db:"source"`
	CreatedAt  time.Time `db:"created_at"`
}

// List returns up to limit screenings, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]analysis.Screening, error) {
	query := `SELECT id::text AS id, summary, score, validation, reasoning, analyzer, source, created_at
		FROM screenings ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres list screenings: %w", err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[screeningRow])
	if err != nil {
		return nil, fmt.Errorf("postgres list screenings: %w", err)
	}

	out := make([]analysis.Screening, 0, len(collected))
	for _, row := range collected {
		out = append(out, analysis.Screening(row))
	}
	return out, nil
}

// Ping checks the pool can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
