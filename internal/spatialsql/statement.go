package spatialsql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Tqy43/ZSQL-gis/internal/codec"
	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// Statement is SQL text with @name placeholders and the values to bind.
type Statement struct {
	SQL  string
	Args map[string]any
}

// Dialect captures the differences between spatial SQL engines.
type Dialect struct {
	Name string
	// Envelope builds a rectangle from (min_lon, min_lat, max_lon, max_lat, srid).
	Envelope string
	// Truthy is appended to boolean spatial predicates where the engine
	// returns integers.
	Truthy string
}

// Supported dialects.
var (
	PostGIS    = Dialect{Name: "postgis", Envelope: "ST_MakeEnvelope"}
	SpatiaLite = Dialect{Name: "spatialite", Envelope: "BuildMbr", Truthy: " = 1"}
)

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Quote returns a safely quoted identifier.
func Quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Select builds the bbox query. A nil bbox selects every row with a
// geometry. limit <= 0 uses DefaultLimit. The result carries the geometry as
// WKT in the geometry_wkt column.
func (d Dialect) Select(t Table, bbox *domain.BBox, limit int) (Statement, error) {
	if t.Name == "" {
		return Statement{}, fmt.Errorf("select: %w: empty table name", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	geom := Quote(GeometryColumn)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT *, ST_AsText(%s) AS %s FROM %s WHERE %s IS NOT NULL",
		geom, WKTColumn, Quote(t.Name), geom)

	args := map[string]any{}
	if bbox != nil {
		if err := bbox.Validate(); err != nil {
			return Statement{}, fmt.Errorf("select: %w", err)
		}
		fmt.Fprintf(&b, " AND ST_Intersects(%s, %s(@min_lon, @min_lat, @max_lon, @max_lat, %d))%s",
			geom, d.Envelope, SRID, d.Truthy)
		args["min_lon"] = bbox.MinLon
		args["min_lat"] = bbox.MinLat
		args["max_lon"] = bbox.MaxLon
		args["max_lat"] = bbox.MaxLat
	}
	b.WriteString(" LIMIT ")
	b.WriteString(strconv.Itoa(limit))

	return Statement{SQL: b.String(), Args: args}, nil
}

// Insert builds the statement storing one feature. The name column is
// always written; other scalar properties are written when the table
// accepts them and non-scalar values are dropped. When the table has a type
// column and the feature does not set it, the lower-cased geometry type is
// used.
func (d Dialect) Insert(t Table, f domain.Feature) (Statement, error) {
	if t.Name == "" {
		return Statement{}, fmt.Errorf("insert: %w: empty table name", domain.ErrInvalidInput)
	}
	if f.Geometry.IsZero() {
		return Statement{}, fmt.Errorf("insert: %w", domain.ErrInvalidGeometry)
	}
	if t.Kind != "" && f.Kind() != t.Kind {
		return Statement{}, fmt.Errorf("insert %s feature into %s: %w", f.Kind(), t.Name, domain.ErrMixedLayer)
	}

	var (
		columns []string
		params  []string
		args    = map[string]any{}
	)
	add := func(column string, value any) {
		name := column
		if !paramName.MatchString(name) || name == GeometryParam {
			name = "p" + strconv.Itoa(len(columns)+1)
		}
		base := name
		for i := 2; ; i++ {
			if _, taken := args[name]; !taken {
				break
			}
			name = base + "_" + strconv.Itoa(i)
		}
		columns = append(columns, Quote(column))
		params = append(params, "@"+name)
		args[name] = value
	}

	add(domain.NameProperty, f.Name)
	f.Properties.Without(domain.NameProperty, GeometryColumn).Each(func(key string, v domain.Value) {
		if !v.IsScalar() || !t.HasColumn(key) {
			return
		}
		add(key, v.Interface())
	})
	if _, ok := f.Property(TypeColumn); !ok && len(t.Columns) > 0 && t.HasColumn(TypeColumn) {
		add(TypeColumn, strings.ToLower(string(f.Geometry.Type())))
	}

	columns = append(columns, Quote(GeometryColumn))
	params = append(params, fmt.Sprintf("ST_GeomFromText(@%s, %d)", GeometryParam, SRID))
	args[GeometryParam] = codec.ToText(f.Geometry)

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		Quote(t.Name), strings.Join(columns, ", "), strings.Join(params, ", "))
	return Statement{SQL: sql, Args: args}, nil
}

// Count builds a row count over rows with a geometry.
func (d Dialect) Count(t Table) Statement {
	return Statement{
		SQL:  fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL", Quote(t.Name), Quote(GeometryColumn)),
		Args: map[string]any{},
	}
}
