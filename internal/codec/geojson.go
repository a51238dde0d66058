// Package codec converts geometries between GeoJSON, WKT and the domain model.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// Interchange document type tags.
const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
)

// Document is an interchange FeatureCollection as written by export.
type Document struct {
	Type     string            `json:"type"`
	Features []DocumentFeature `json:"features"`
}

// DocumentFeature is one feature of a Document. Properties keep their
// insertion order when marshalled.
type DocumentFeature struct {
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties domain.Properties `json:"properties"`
}

// NewDocument creates an empty FeatureCollection.
func NewDocument() *Document {
	return &Document{Type: TypeFeatureCollection, Features: []DocumentFeature{}}
}

// Append adds a feature to the document.
func (d *Document) Append(f domain.Feature) {
	d.Features = append(d.Features, DocumentFeature{
		Type:       TypeFeature,
		Geometry:   geojson.NewGeometry(f.Geometry.Orb()),
		Properties: f.Properties,
	})
}

// WriteTo writes the document as indented JSON without HTML escaping.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return 0, fmt.Errorf("encoding document: %w", err)
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Collection is a parsed FeatureCollection whose features have not been
// decoded yet, so that one bad feature cannot fail the others.
type Collection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// ReadCollection parses the document envelope. It does not check the type
// tag. Well-formed JSON that is not an object yields an empty envelope.
func ReadCollection(r io.Reader) (*Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] != '{' && json.Valid(trimmed) {
		return &Collection{}, nil
	}
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &c, nil
}

type rawFeature struct {
	Type       string            `json:"type"`
	Geometry   json.RawMessage   `json:"geometry"`
	Properties domain.Properties `json:"properties"`
}

// DecodeFeature decodes and classifies a single interchange feature.
func DecodeFeature(raw json.RawMessage) (domain.Feature, error) {
	var rf rawFeature
	if err := json.Unmarshal(raw, &rf); err != nil {
		return domain.Feature{}, &domain.DecodeError{Reason: domain.DecodeMalformed, Detail: err.Error()}
	}
	geom, err := DecodeGeometry(rf.Geometry)
	if err != nil {
		return domain.Feature{}, err
	}
	return domain.NewFeature(geom, rf.Properties)
}

// position is decoded through pointers so that null components are detected.
type position []*float64

func (p position) point(kind string) (orb.Point, error) {
	if len(p) < 2 || p[0] == nil || p[1] == nil {
		return orb.Point{}, &domain.DecodeError{
			Reason: domain.DecodeMalformed,
			Kind:   kind,
			Detail: "position needs at least 2 numeric components",
		}
	}
	return orb.Point{*p[0], *p[1]}, nil
}

func points(kind string, ps []position) ([]orb.Point, error) {
	out := make([]orb.Point, 0, len(ps))
	for _, p := range ps {
		pt, err := p.point(kind)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, nil
}

// DecodeGeometry decodes a GeoJSON geometry object. Components beyond the
// second are ignored. Only the exterior ring of a polygon is kept.
func DecodeGeometry(raw json.RawMessage) (domain.Geometry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.Geometry{}, &domain.DecodeError{Reason: domain.DecodeMalformed, Detail: "missing geometry"}
	}

	var envelope struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.Geometry{}, &domain.DecodeError{Reason: domain.DecodeMalformed, Detail: err.Error()}
	}

	kind := envelope.Type
	malformed := func(err error) error {
		return &domain.DecodeError{Reason: domain.DecodeMalformed, Kind: kind, Detail: err.Error()}
	}

	var geom domain.Geometry
	switch domain.GeometryType(kind) {
	case domain.GeometryPoint:
		var p position
		if err := json.Unmarshal(envelope.Coordinates, &p); err != nil {
			return domain.Geometry{}, malformed(err)
		}
		pt, err := p.point(kind)
		if err != nil {
			return domain.Geometry{}, err
		}
		geom = domain.NewPoint(pt[0], pt[1])

	case domain.GeometryLineString:
		var ps []position
		if err := json.Unmarshal(envelope.Coordinates, &ps); err != nil {
			return domain.Geometry{}, malformed(err)
		}
		pts, err := points(kind, ps)
		if err != nil {
			return domain.Geometry{}, err
		}
		geom = domain.NewLineString(pts)

	case domain.GeometryPolygon:
		var rings [][]position
		if err := json.Unmarshal(envelope.Coordinates, &rings); err != nil {
			return domain.Geometry{}, malformed(err)
		}
		if len(rings) == 0 {
			return domain.Geometry{}, malformed(fmt.Errorf("polygon has no rings"))
		}
		pts, err := points(kind, rings[0])
		if err != nil {
			return domain.Geometry{}, err
		}
		geom = domain.NewPolygon(pts)

	case "":
		return domain.Geometry{}, &domain.DecodeError{Reason: domain.DecodeMalformed, Detail: "missing type"}

	default:
		return domain.Geometry{}, &domain.DecodeError{Reason: domain.DecodeUnsupportedKind, Kind: kind}
	}

	if err := geom.Validate(); err != nil {
		return domain.Geometry{}, err
	}
	return geom, nil
}

// EncodeGeometry encodes a geometry as a GeoJSON geometry object.
func EncodeGeometry(g domain.Geometry) (json.RawMessage, error) {
	data, err := json.Marshal(geojson.NewGeometry(g.Orb()))
	if err != nil {
		return nil, fmt.Errorf("encoding geometry: %w", err)
	}
	return data, nil
}
