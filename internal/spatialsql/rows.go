package spatialsql

import (
	"fmt"
	"log/slog"

	"github.com/Tqy43/ZSQL-gis/internal/codec"
	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// Row is one result row with its column names in select order.
type Row struct {
	Columns []string
	Values  []any
}

// MapRows turns select results into features. The geometry is read from the
// geometry_wkt column; every other column except the raw geometry becomes a
// property and NULLs are omitted. Rows with missing or malformed WKT, or
// whose geometry is not of the expected kind, are logged and skipped. An
// empty expect accepts every kind.
func MapRows(rows []Row, expect domain.LayerKind, logger *slog.Logger) ([]domain.Feature, int) {
	if logger == nil {
		logger = slog.Default()
	}

	features := make([]domain.Feature, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		f, err := mapRow(row, expect)
		if err != nil {
			skipped++
			logger.Warn("skipping store row", "row", i, "error", err)
			continue
		}
		features = append(features, f)
	}
	return features, skipped
}

func mapRow(row Row, expect domain.LayerKind) (domain.Feature, error) {
	var (
		props domain.Properties
		text  string
		found bool
	)
	for i, col := range row.Columns {
		if i >= len(row.Values) {
			break
		}
		switch col {
		case GeometryColumn:
		case WKTColumn:
			if s, ok := asString(row.Values[i]); ok {
				text, found = s, true
			}
		default:
			if v, ok := domain.ValueOf(row.Values[i]); ok {
				props.Set(col, v)
			}
		}
	}
	if !found {
		return domain.Feature{}, fmt.Errorf("missing %s column", WKTColumn)
	}

	geom, err := codec.FromText(text)
	if err != nil {
		return domain.Feature{}, err
	}
	f, err := domain.NewFeature(geom, props)
	if err != nil {
		return domain.Feature{}, err
	}
	if expect != "" && f.Kind() != expect {
		return domain.Feature{}, fmt.Errorf("%w: got %s, want %s", domain.ErrMixedLayer, f.Kind(), expect)
	}
	return f, nil
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
