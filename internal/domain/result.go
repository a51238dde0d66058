package domain

import "time"

// LayerMatch holds the features of one layer that matched a bbox query.
type LayerMatch struct {
	Layer    LayerInfo
	Features []Feature
}

// FeatureCount returns the number of matched features.
func (m *LayerMatch) FeatureCount() int {
	return len(m.Features)
}

// QueryResponse is the result of a bbox query across the layer store.
type QueryResponse struct {
	BBox           BBox
	Matches        []LayerMatch
	TotalFeatures  int
	ProcessingTime time.Duration
}

// AddMatch appends a non-empty layer match.
func (r *QueryResponse) AddMatch(m LayerMatch) {
	if m.FeatureCount() == 0 {
		return
	}
	r.Matches = append(r.Matches, m)
	r.TotalFeatures += m.FeatureCount()
}

// TableCount is the row count of one spatial store table.
type TableCount struct {
	Kind  LayerKind `json:"kind"`
	Table string    `json:"table"`
	Count int64     `json:"count"`
}

// LayerEventType names a layer store change.
type LayerEventType string

// Layer store changes.
const (
	LayerAdded      LayerEventType = "added"
	LayerRemoved    LayerEventType = "removed"
	LayerVisibility LayerEventType = "visibility"
	LayersCleared   LayerEventType = "cleared"
)

// LayerEvent describes a change that renderers need to react to.
type LayerEvent struct {
	Type      LayerEventType `json:"type"`
	Layer     string         `json:"layer,omitempty"`
	Kind      LayerKind      `json:"kind,omitempty"`
	Visible   bool           `json:"visible"`
	Timestamp time.Time      `json:"timestamp"`
}

// RenderRecord is one feature as a map renderer consumes it. Positions are
// (lat, lon) pairs.
type RenderRecord struct {
	Name       string       `json:"name"`
	Positions  [][2]float64 `json:"positions"`
	Properties Properties   `json:"properties"`
}

// RenderLayer is the renderer view of one layer.
type RenderLayer struct {
	Name    string         `json:"name"`
	Kind    LayerKind      `json:"kind"`
	Visible bool           `json:"visible"`
	Records []RenderRecord `json:"records"`
}

// NewRenderLayer builds the renderer view of a layer.
func NewRenderLayer(l *Layer) RenderLayer {
	rl := RenderLayer{
		Name:    l.Name,
		Kind:    l.Kind,
		Visible: l.Visible,
		Records: make([]RenderRecord, 0, l.Len()),
	}
	for _, f := range l.features {
		rl.Records = append(rl.Records, RenderRecord{
			Name:       f.Name,
			Positions:  f.Geometry.LatLngs(),
			Properties: f.Properties,
		})
	}
	return rl
}
