package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/google/uuid"
)

// indexEpsilon pads degenerate rectangles; rtreego requires positive lengths
// and treats touching rectangles as disjoint.
const indexEpsilon = 1e-9

// Layer is a named, homogeneous collection of features. Features are fixed
// at construction; only Name and Visible are managed by the layer store.
type Layer struct {
	ID        string    // Unique identifier
	Name      string    // Display name, unique within a store
	Kind      LayerKind // Geometry class of every feature
	Source    string    // Where the features came from (file name, table)
	Visible   bool      // Rendered or hidden
	CreatedAt time.Time // Construction timestamp

	features []Feature
	index    *rtreego.Rtree
	extent   BBox
}

// NewLayer builds a visible layer and its spatial index. Every feature must
// be of the given kind.
func NewLayer(name string, kind LayerKind, features []Feature) (*Layer, error) {
	if kind.GeometryType() == "" {
		return nil, &ClassifyError{Tag: string(kind)}
	}
	l := &Layer{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		Visible:   true,
		CreatedAt: time.Now().UTC(),
		features:  slices.Clone(features),
	}

	entries := make([]rtreego.Spatial, 0, len(features))
	for i, f := range l.features {
		if f.Kind() != kind {
			return nil, fmt.Errorf("%w: feature %d is %q, layer is %q", ErrMixedLayer, i, f.Geometry.Type(), kind)
		}
		b := f.Geometry.Bound()
		if i == 0 {
			l.extent = b
		} else {
			l.extent = l.extent.Union(b)
		}
		entries = append(entries, &indexedFeature{pos: i, bounds: b})
	}
	l.index = rtreego.NewTree(2, 25, 50, entries...)
	return l, nil
}

// indexedFeature wraps a feature position for R-tree storage.
type indexedFeature struct {
	pos    int
	bounds BBox
}

// Bounds implements rtreego.Spatial.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return bboxRect(f.bounds)
}

func bboxRect(b BBox) rtreego.Rect {
	point := rtreego.Point{b.MinLon - indexEpsilon, b.MinLat - indexEpsilon}
	lengths := []float64{b.Width() + 2*indexEpsilon, b.Height() + 2*indexEpsilon}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// Features returns a copy of the feature list.
func (l *Layer) Features() []Feature {
	return slices.Clone(l.features)
}

// Len returns the number of features.
func (l *Layer) Len() int {
	return len(l.features)
}

// Extent returns the bounding box of all features. ok is false for an
// empty layer.
func (l *Layer) Extent() (BBox, bool) {
	return l.extent, len(l.features) > 0
}

// Search returns the features intersecting the box, boundary included, in
// layer order.
func (l *Layer) Search(b BBox) []Feature {
	if len(l.features) == 0 || !l.extent.Intersects(b) {
		return nil
	}

	candidates := l.index.SearchIntersect(bboxRect(b))
	positions := make([]int, 0, len(candidates))
	for _, c := range candidates {
		positions = append(positions, c.(*indexedFeature).pos)
	}
	slices.Sort(positions)

	var result []Feature
	for _, pos := range positions {
		if f := l.features[pos]; f.Geometry.Intersects(b) {
			result = append(result, f)
		}
	}
	return result
}

// Info returns a summary of the layer.
func (l *Layer) Info() LayerInfo {
	info := LayerInfo{
		ID:           l.ID,
		Name:         l.Name,
		Kind:         l.Kind,
		Source:       l.Source,
		Visible:      l.Visible,
		FeatureCount: len(l.features),
		CreatedAt:    l.CreatedAt,
	}
	if extent, ok := l.Extent(); ok {
		info.Extent = &extent
	}
	return info
}

// LayerInfo is a feature-less description of a layer.
type LayerInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Kind         LayerKind `json:"kind"`
	Source       string    `json:"source,omitempty"`
	Visible      bool      `json:"visible"`
	FeatureCount int       `json:"feature_count"`
	Extent       *BBox     `json:"extent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
