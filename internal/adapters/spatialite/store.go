// Package spatialite provides the SpatiaLite-backed spatial store.
package spatialite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/spatialsql"
)

// DriverName is the database/sql driver that loads SpatiaLite on connect.
const DriverName = "sqlite3_with_extensions"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		Extensions: getSpatiaLiteLibraryPaths(),
	})
}

// getSpatiaLiteLibraryPaths returns a list of paths to try for loading SpatiaLite.
// The environment variable wins over platform-specific paths.
func getSpatiaLiteLibraryPaths() []string {
	if envPath := os.Getenv("SPATIALITE_LIBRARY_PATH"); envPath != "" {
		return []string{envPath}
	}

	return []string{
		// Alpine Linux (Docker containers)
		"/usr/lib/mod_spatialite.so",
		"/usr/lib/mod_spatialite.so.8",

		// Debian/Ubuntu amd64
		"/usr/lib/x86_64-linux-gnu/mod_spatialite.so",
		"/usr/lib/x86_64-linux-gnu/mod_spatialite.so.8",

		// Debian/Ubuntu arm64
		"/usr/lib/aarch64-linux-gnu/mod_spatialite.so",
		"/usr/lib/aarch64-linux-gnu/mod_spatialite.so.8",

		// macOS Homebrew
		"/usr/local/lib/mod_spatialite.dylib",
		"/opt/homebrew/lib/mod_spatialite.dylib",

		// Generic names resolved through the loader path
		"mod_spatialite.so",
		"mod_spatialite",
		"mod_spatialite.dylib",
	}
}

// Store implements output.SpatialStore on a SpatiaLite database file.
type Store struct {
	db     *sql.DB
	tables spatialsql.Tables
	logger *slog.Logger
}

// Open opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, path string, tables spatialsql.Tables, logger *slog.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?cache=shared", path)
	}
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, &domain.StoreError{Operation: "open", Err: err}
	}
	// SQLite allows one writer and every :memory: connection is a new database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StoreError{Operation: "open", Err: err}
	}
	if err := checkSpatiaLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, &domain.StoreError{Operation: "open", Err: err}
	}

	if tables == nil {
		tables = spatialsql.DefaultTables()
	}
	return &Store{db: db, tables: tables, logger: logger}, nil
}

// checkSpatiaLite verifies that the extension was loaded by the driver.
func checkSpatiaLite(ctx context.Context, db *sql.DB) error {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT spatialite_version()").Scan(&version); err != nil {
		return fmt.Errorf("SpatiaLite extension not available: %w", err)
	}
	return nil
}

// EnsureSchema creates the spatial metadata, the feature tables, their
// geometry columns and spatial indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if !s.tableExists(ctx, "geometry_columns") {
		if _, err := s.db.ExecContext(ctx, "SELECT InitSpatialMetaData(1)"); err != nil {
			return &domain.StoreError{Operation: "init", Err: err}
		}
	}

	for _, kind := range domain.LayerKinds {
		t, err := s.tables.For(kind)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, spatialsql.SpatiaLite.CreateTable(t)); err != nil {
			return &domain.StoreError{Operation: "create", Table: t.Name, Err: err}
		}
		if s.hasGeometryColumn(ctx, t.Name) {
			continue
		}
		if _, err := s.db.ExecContext(ctx, spatialsql.AddGeometryColumn(t)); err != nil {
			return &domain.StoreError{Operation: "create", Table: t.Name, Err: err}
		}
		if _, err := s.db.ExecContext(ctx, spatialsql.SpatiaLite.CreateIndex(t)); err != nil {
			return &domain.StoreError{Operation: "index", Table: t.Name, Err: err}
		}
		s.logger.Info("created feature table", "table", t.Name, "kind", kind)
	}
	return nil
}

func (s *Store) tableExists(ctx context.Context, name string) bool {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	return err == nil && count > 0
}

func (s *Store) hasGeometryColumn(ctx context.Context, table string) bool {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM geometry_columns WHERE f_table_name = ? AND f_geometry_column = ?",
		strings.ToLower(table), spatialsql.GeometryColumn,
	).Scan(&count)
	return err == nil && count > 0
}

// InsertFeature writes one feature into the table of its kind.
func (s *Store) InsertFeature(ctx context.Context, f domain.Feature) error {
	t, err := s.tables.For(f.Kind())
	if err != nil {
		return err
	}
	stmt, err := spatialsql.SpatiaLite.Insert(t, f)
	if err != nil {
		return &domain.StoreError{Operation: "insert", Table: t.Name, Err: err}
	}
	if _, err := s.db.ExecContext(ctx, stmt.SQL, namedArgs(stmt.Args)...); err != nil {
		return &domain.StoreError{Operation: "insert", Table: t.Name, Err: err}
	}
	return nil
}

// QueryFeatures selects features of a kind intersecting bbox.
func (s *Store) QueryFeatures(ctx context.Context, kind domain.LayerKind, bbox *domain.BBox, limit int) ([]domain.Feature, int, error) {
	t, stmt, err := s.selectStatement(kind, bbox, limit)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, stmt.SQL, namedArgs(stmt.Args)...)
	if err != nil {
		return nil, 0, &domain.StoreError{Operation: "select", Table: t.Name, Err: err}
	}
	defer func() { _ = rows.Close() }()

	collected, err := scanRows(rows)
	if err != nil {
		return nil, 0, &domain.StoreError{Operation: "select", Table: t.Name, Err: err}
	}

	features, skipped := spatialsql.MapRows(collected, kind, s.logger)
	return features, skipped, nil
}

// selectStatement resolves the kind's table and builds its select. Rows
// touching the box edge match since ST_Intersects includes boundaries.
func (s *Store) selectStatement(kind domain.LayerKind, bbox *domain.BBox, limit int) (spatialsql.Table, spatialsql.Statement, error) {
	t, err := s.tables.For(kind)
	if err != nil {
		return spatialsql.Table{}, spatialsql.Statement{}, err
	}
	stmt, err := spatialsql.SpatiaLite.Select(t, bbox, limit)
	if err != nil {
		return spatialsql.Table{}, spatialsql.Statement{}, err
	}
	return t, stmt, nil
}

// scanRows reads every row with its column names.
func scanRows(rows *sql.Rows) ([]spatialsql.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []spatialsql.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
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
	stmt := spatialsql.SpatiaLite.Count(t)
	var n int64
	if err := s.db.QueryRowContext(ctx, stmt.SQL).Scan(&n); err != nil {
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
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.StoreError{Operation: "ping", Err: err}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func namedArgs(args map[string]any) []any {
	out := make([]any, 0, len(args))
	for name, v := range args {
		out = append(out, sql.Named(name, v))
	}
	return out
}
