package spatialsql

import (
	"fmt"
	"strings"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// GeometryTypeName returns the upper-case SQL geometry type of a table.
func (t Table) GeometryTypeName() string {
	return strings.ToUpper(string(t.Kind.GeometryType()))
}

func (d Dialect) columnType(c ColumnType) string {
	if d.Name == SpatiaLite.Name {
		switch c {
		case ColumnInteger:
			return "INTEGER"
		case ColumnReal:
			return "REAL"
		}
		return "TEXT"
	}
	switch c {
	case ColumnInteger:
		return "BIGINT"
	case ColumnReal:
		return "DOUBLE PRECISION"
	}
	return "VARCHAR(255)"
}

// CreateTable returns the DDL for a feature table. For SpatiaLite the
// geometry column is registered separately (see AddGeometryColumn).
func (d Dialect) CreateTable(t Table) string {
	cols := []string{}
	if d.Name == SpatiaLite.Name {
		cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	} else {
		cols = append(cols, "id SERIAL PRIMARY KEY")
	}
	cols = append(cols, Quote(domain.NameProperty)+" "+d.columnType(ColumnText))
	for _, c := range t.Columns {
		if c.Name == domain.NameProperty {
			continue
		}
		cols = append(cols, Quote(c.Name)+" "+d.columnType(c.Type))
	}
	if d.Name == SpatiaLite.Name {
		cols = append(cols, "created_at TEXT DEFAULT CURRENT_TIMESTAMP")
	} else {
		cols = append(cols, "created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
		cols = append(cols, fmt.Sprintf("%s GEOMETRY(%s, %d)", Quote(GeometryColumn), t.GeometryTypeName(), SRID))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Quote(t.Name), strings.Join(cols, ", "))
}

// CreateIndex returns the statement creating the spatial index of a table.
func (d Dialect) CreateIndex(t Table) string {
	if d.Name == SpatiaLite.Name {
		return fmt.Sprintf("SELECT CreateSpatialIndex('%s', '%s')", escapeLiteral(t.Name), GeometryColumn)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (%s)",
		Quote(t.Name+"_geom_idx"), Quote(t.Name), Quote(GeometryColumn))
}

// AddGeometryColumn returns the SpatiaLite call registering the geometry
// column of a table.
func AddGeometryColumn(t Table) string {
	return fmt.Sprintf("SELECT AddGeometryColumn('%s', '%s', %d, '%s', 'XY')",
		escapeLiteral(t.Name), GeometryColumn, SRID, t.GeometryTypeName())
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
