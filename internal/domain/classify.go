package domain

// LayerKind is the homogeneous geometry class of a layer.
type LayerKind string

// Layer kinds.
const (
	KindPointSet   LayerKind = "point"
	KindLineSet    LayerKind = "line"
	KindPolygonSet LayerKind = "polygon"
)

// LayerKinds lists the kinds in import order.
var LayerKinds = []LayerKind{KindPointSet, KindLineSet, KindPolygonSet}

// Classify maps a geometry tag to its layer kind.
func Classify(tag string) (LayerKind, error) {
	switch GeometryType(tag) {
	case GeometryPoint:
		return KindPointSet, nil
	case GeometryLineString:
		return KindLineSet, nil
	case GeometryPolygon:
		return KindPolygonSet, nil
	}
	return "", &ClassifyError{Tag: tag}
}

// KindOf classifies a geometry value.
func KindOf(g Geometry) (LayerKind, error) {
	return Classify(string(g.Type()))
}

// ParseLayerKind accepts a kind name as used in URLs and flags.
func ParseLayerKind(s string) (LayerKind, error) {
	switch LayerKind(s) {
	case KindPointSet, KindLineSet, KindPolygonSet:
		return LayerKind(s), nil
	}
	return "", &ClassifyError{Tag: s}
}

// GeometryType returns the geometry tag of the kind's members.
func (k LayerKind) GeometryType() GeometryType {
	switch k {
	case KindPointSet:
		return GeometryPoint
	case KindLineSet:
		return GeometryLineString
	case KindPolygonSet:
		return GeometryPolygon
	}
	return ""
}

// DefaultName returns the display name for unnamed features of this kind.
func (k LayerKind) DefaultName() string {
	switch k {
	case KindLineSet:
		return DefaultLineName
	case KindPolygonSet:
		return DefaultPolygonName
	}
	return DefaultPointName
}
