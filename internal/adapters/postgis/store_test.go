package postgis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/spatialsql"
)

func TestOpenInvalidDSN(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := Open(context.Background(), "postgres://%zz", 0, nil, logger)

	var serr *domain.StoreError
	if !errors.As(err, &serr) || serr.Operation != "open" {
		t.Errorf("Open() error = %v, want open StoreError", err)
	}
}

// TestStoreIntegration runs against the database named by
// ZSQLGIS_TEST_POSTGIS_DSN.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("ZSQLGIS_TEST_POSTGIS_DSN")
	if dsn == "" {
		t.Skip("ZSQLGIS_TEST_POSTGIS_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	suffix := time.Now().Format("150405")
	tables := spatialsql.DefaultTables()
	for kind, tbl := range tables {
		tbl.Name = tbl.Name + "_test_" + suffix
		tables[kind] = tbl
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open(ctx, dsn, 2, tables, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	t.Cleanup(func() {
		for _, tbl := range tables {
			_, _ = store.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+spatialsql.Quote(tbl.Name))
		}
	})

	for _, c := range [][2]float64{{0, 0}, {10, 10}, {5, 5}, {11, 5}} {
		f, _ := domain.NewFeature(domain.NewPoint(c[0], c[1]), domain.Properties{})
		if err := store.InsertFeature(ctx, f); err != nil {
			t.Fatalf("InsertFeature() error = %v", err)
		}
	}

	bbox := domain.BBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}
	features, skipped, err := store.QueryFeatures(ctx, domain.KindPointSet, &bbox, 0)
	if err != nil {
		t.Fatalf("QueryFeatures() error = %v", err)
	}
	if len(features) != 3 || skipped != 0 {
		t.Errorf("features = %d skipped = %d, want 3 and 0", len(features), skipped)
	}

	n, err := store.CountFeatures(ctx, domain.KindPointSet)
	if err != nil || n != 4 {
		t.Errorf("CountFeatures() = %d, %v", n, err)
	}
}
