// Package spatialsql builds the parameterised statements used to move
// features in and out of a spatial relational store.
package spatialsql

import (
	"fmt"
	"slices"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// Statement constants shared by every dialect.
const (
	SRID           = domain.SRIDWGS84
	DefaultLimit   = 1000
	GeometryColumn = "geom"
	WKTColumn      = "geometry_wkt"
	GeometryParam  = "geom_wkt"
	TypeColumn     = "type"
)

// ColumnType is the portable type of an attribute column.
type ColumnType string

// Column types.
const (
	ColumnText    ColumnType = "text"
	ColumnInteger ColumnType = "integer"
	ColumnReal    ColumnType = "real"
)

// Column is an attribute column of a feature table.
type Column struct {
	Name string     `mapstructure:"name" yaml:"name"`
	Type ColumnType `mapstructure:"type" yaml:"type"`
}

// Table describes one feature table. Columns is the set of attribute
// columns accepted on insert; "name" is always accepted and an empty list
// accepts every property.
type Table struct {
	Name    string           `mapstructure:"name"`
	Kind    domain.LayerKind `mapstructure:"kind"`
	Columns []Column         `mapstructure:"columns"`
}

// HasColumn reports whether the table accepts the attribute.
func (t Table) HasColumn(name string) bool {
	if name == domain.NameProperty || len(t.Columns) == 0 {
		return true
	}
	return slices.ContainsFunc(t.Columns, func(c Column) bool { return c.Name == name })
}

// Tables maps each layer kind to its table.
type Tables map[domain.LayerKind]Table

// For returns the table holding features of the given kind.
func (ts Tables) For(kind domain.LayerKind) (Table, error) {
	t, ok := ts[kind]
	if !ok || t.Name == "" {
		return Table{}, fmt.Errorf("no table configured for %q layers: %w", kind, domain.ErrNotFound)
	}
	return t, nil
}

// DefaultTables are the three feature tables of the reference schema.
func DefaultTables() Tables {
	return Tables{
		domain.KindPointSet: {
			Name: "point_features",
			Kind: domain.KindPointSet,
			Columns: []Column{
				{Name: "name", Type: ColumnText},
				{Name: "type", Type: ColumnText},
				{Name: "population", Type: ColumnReal},
				{Name: "gdp", Type: ColumnReal},
				{Name: "area", Type: ColumnReal},
				{Name: "elevation", Type: ColumnReal},
				{Name: "province", Type: ColumnText},
			},
		},
		domain.KindLineSet: {
			Name: "line_features",
			Kind: domain.KindLineSet,
			Columns: []Column{
				{Name: "name", Type: ColumnText},
				{Name: "type", Type: ColumnText},
				{Name: "length", Type: ColumnReal},
				{Name: "source", Type: ColumnText},
				{Name: "mouth", Type: ColumnText},
				{Name: "basin_area", Type: ColumnReal},
			},
		},
		domain.KindPolygonSet: {
			Name: "polygon_features",
			Kind: domain.KindPolygonSet,
			Columns: []Column{
				{Name: "name", Type: ColumnText},
				{Name: "type", Type: ColumnText},
				{Name: "area", Type: ColumnReal},
				{Name: "population", Type: ColumnReal},
				{Name: "gdp", Type: ColumnReal},
				{Name: "capital", Type: ColumnText},
			},
		},
	}
}
