package domain

import "strings"

// NameProperty is the attribute a feature's display name is taken from.
const NameProperty = "name"

// Default display names by layer kind.
const (
	DefaultPointName   = "unnamed point"
	DefaultLineName    = "unnamed line"
	DefaultPolygonName = "unnamed polygon"
)

// Feature is a geometry with its attributes.
type Feature struct {
	Geometry   Geometry
	Properties Properties
	Name       string
}

// NewFeature classifies the geometry and derives the display name.
func NewFeature(geom Geometry, props Properties) (Feature, error) {
	kind, err := KindOf(geom)
	if err != nil {
		return Feature{}, err
	}
	return Feature{
		Geometry:   geom,
		Properties: props,
		Name:       FeatureName(props, kind),
	}, nil
}

// Kind returns the layer kind the feature belongs to.
func (f Feature) Kind() LayerKind {
	k, _ := KindOf(f.Geometry)
	return k
}

// Property returns an attribute by key.
func (f Feature) Property(key string) (Value, bool) {
	return f.Properties.Get(key)
}

// FeatureName returns the "name" attribute, or the kind's default when it is
// missing, empty or not a scalar.
func FeatureName(props Properties, kind LayerKind) string {
	if v, ok := props.Get(NameProperty); ok && v.IsScalar() {
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return kind.DefaultName()
}
