package tabular

import (
	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// Canonical coordinate column names.
const (
	LongitudeColumn = "longitude"
	LatitudeColumn  = "latitude"
)

// Aliases lists accepted header names per axis, in priority order. Matching
// is exact.
type Aliases struct {
	Longitude []string `mapstructure:"longitude"`
	Latitude  []string `mapstructure:"latitude"`
}

// DefaultAliases are the header names recognised out of the box.
var DefaultAliases = Aliases{
	Longitude: []string{"longitude", "lon", "lng", "x", "X", "经度"},
	Latitude:  []string{"latitude", "lat", "y", "Y", "纬度"},
}

// Report describes what Normalize did.
type Report struct {
	LongitudeSource string // header the longitude came from
	LatitudeSource  string // header the latitude came from
	Rows            int    // rows read
	Dropped         int    // rows dropped for missing, non-numeric or out-of-range values
}

// Normalized is a table with canonical coordinate columns and only valid rows.
type Normalized struct {
	Table  *Table
	Coords [][2]float64 // (lon, lat) per row of Table
	Report Report
}

// Normalize resolves the coordinate columns through the alias lists, renames
// them to the canonical names and drops rows whose coordinates are missing,
// not numeric or outside the WGS84 range. The input table is not modified.
// Normalizing an already normalized table is a no-op.
func Normalize(t *Table, aliases Aliases) (*Normalized, error) {
	lonCol := findColumn(t, aliases.Longitude)
	latCol := findColumn(t, aliases.Latitude)
	if lonCol < 0 || latCol < 0 || lonCol == latCol {
		return nil, &domain.NormalizeError{Reason: domain.NoCoordinateColumns, Columns: t.Header}
	}

	out := &Table{Header: append([]string(nil), t.Header...)}
	report := Report{
		LongitudeSource: t.Header[lonCol],
		LatitudeSource:  t.Header[latCol],
		Rows:            len(t.Rows),
	}
	out.Header[lonCol] = LongitudeColumn
	out.Header[latCol] = LatitudeColumn

	var coords [][2]float64
	for i, row := range t.Rows {
		lon, lonOK := parseNumber(t.Cell(i, lonCol))
		lat, latOK := parseNumber(t.Cell(i, latCol))
		if !lonOK || !latOK || domain.ValidateLonLat(lon, lat) != nil {
			report.Dropped++
			continue
		}
		out.Rows = append(out.Rows, append([]string(nil), row...))
		coords = append(coords, [2]float64{lon, lat})
	}

	if len(out.Rows) == 0 {
		return nil, &domain.NormalizeError{Reason: domain.NoValidRows, Columns: t.Header}
	}
	return &Normalized{Table: out, Coords: coords, Report: report}, nil
}

func findColumn(t *Table, names []string) int {
	for _, name := range names {
		if i := t.Column(name); i >= 0 {
			return i
		}
	}
	return -1
}

// Features converts every row to a point feature. Non-coordinate cells
// become properties in header order; empty cells are omitted.
func (n *Normalized) Features() []domain.Feature {
	lonCol := n.Table.Column(LongitudeColumn)
	latCol := n.Table.Column(LatitudeColumn)

	features := make([]domain.Feature, 0, len(n.Coords))
	for i, c := range n.Coords {
		var props domain.Properties
		for col, name := range n.Table.Header {
			if col == lonCol || col == latCol || name == "" {
				continue
			}
			if v, ok := ParseValue(n.Table.Cell(i, col)); ok {
				props.Set(name, v)
			}
		}
		features = append(features, domain.Feature{
			Geometry:   domain.NewPoint(c[0], c[1]),
			Properties: props,
			Name:       domain.FeatureName(props, domain.KindPointSet),
		})
	}
	return features
}
