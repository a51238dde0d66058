// Package postgis provides the PostGIS-backed spatial store.
package postgis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/spatialsql"
)

// Store implements output.SpatialStore on a PostGIS database.
type Store struct {
	pool   *pgxpool.Pool
	tables spatialsql.Tables
	logger *slog.Logger
}

// Open creates the connection pool and checks connectivity. maxConns <= 0
// keeps the driver default.
func Open(ctx context.Context, dsn string, maxConns int32, tables spatialsql.Tables, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, &domain.StoreError{Operation: "open", Err: fmt.Errorf("parse dsn: %w", err)}
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &domain.StoreError{Operation: "open", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &domain.StoreError{Operation: "ping", Err: err}
	}

	if tables == nil {
		tables = spatialsql.DefaultTables()
	}
	return &Store{pool: pool, tables: tables, logger: logger}, nil
}

// EnsureSchema enables PostGIS and creates missing feature tables and their
// GIST indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return &domain.StoreError{Operation: "init", Err: err}
	}
	for _, kind := range domain.LayerKinds {
		t, err := s.tables.For(kind)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, spatialsql.PostGIS.CreateTable(t)); err != nil {
			return &domain.StoreError{Operation: "create", Table: t.Name, Err: err}
		}
		if _, err := s.pool.Exec(ctx, spatialsql.PostGIS.CreateIndex(t)); err != nil {
			return &domain.StoreError{Operation: "index", Table: t.Name, Err: err}
		}
	}
	s.logger.Info("schema ready", "tables", len(s.tables))
	return nil
}

// InsertFeature writes one feature into the table of its kind.
func (s *Store) InsertFeature(ctx context.Context, f domain.Feature) error {
	t, err := s.tables.For(f.Kind())
	if err != nil {
		return err
	}
	stmt, err := spatialsql.PostGIS.Insert(t, f)
	if err != nil {
		return &domain.StoreError{Operation: "insert", Table: t.Name, Err: err}
	}
	if _, err := s.pool.Exec(ctx, stmt.SQL, pgx.NamedArgs(stmt.Args)); err != nil {
		return &domain.StoreError{Operation: "insert", Table: t.Name, Err: err}
	}
	return nil
}

// QueryFeatures selects features of a kind intersecting bbox.
func (s *Store) QueryFeatures(ctx context.Context, kind domain.LayerKind, bbox *domain.BBox, limit int) ([]domain.Feature, int, error) {
	t, err := s.tables.For(kind)
	if err != nil {
		return nil, 0, err
	}
	stmt, err := spatialsql.PostGIS.Select(t, bbox, limit)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, stmt.SQL, pgx.NamedArgs(stmt.Args))
	if err != nil {
		return nil, 0, &domain.StoreError{Operation: "select", Table: t.Name, Err: err}
	}
	collected, err := collectRows(rows)
	if err != nil {
		return nil, 0, &domain.StoreError{Operation: "select", Table: t.Name, Err: err}
	}

	features, skipped := spatialsql.MapRows(collected, kind, s.logger)
	return features, skipped, nil
}

// collectRows reads every row with its column names and closes rows.
func collectRows(rows pgx.Rows) ([]spatialsql.Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	var out []spatialsql.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, spatialsql.Row{Columns: columns, Values: values})
	}
	return out, rows.Err()
}

// CountFeatures returns the number of rows with a geometry.
func (s *Store) CountFeatures(ctx context.Context, kind domain.LayerKind) (int64, error) {
	t, err := s.tables.For(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.pool.QueryRow(ctx, spatialsql.PostGIS.Count(t).SQL).Scan(&n); err != nil {
		return 0, &domain.StoreError{Operation: "count", Table: t.Name, Err: err}
	}
	return n, nil
}

// TableName returns the table holding the kind.
func (s *Store) TableName(kind domain.LayerKind) (string, error) {
	t, err := s.tables.For(kind)
	if err != nil {
		return "", err
	}
	return t.Name, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &domain.StoreError{Operation: "ping", Err: err}
	}
	return nil
}

// Close releases pool resources.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
