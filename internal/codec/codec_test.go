package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

var (
	square = []orb.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	river  = []orb.Point{{116.3, 39.9}, {116.45, 39.95}, {117.2, 39.13}}
)

func TestToText(t *testing.T) {
	tests := []struct {
		name string
		geom domain.Geometry
		want string
	}{
		{"point", domain.NewPoint(116.4, 39.9), "POINT(116.4 39.9)"},
		{"negative point", domain.NewPoint(-0.5, -10), "POINT(-0.5 -10)"},
		{"line", domain.NewLineString([]orb.Point{{0, 0}, {1, 1}}), "LINESTRING(0 0, 1 1)"},
		{"polygon", domain.NewPolygon(square), "POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToText(tt.geom); got != tt.want {
				t.Errorf("ToText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromText(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		want       domain.Geometry
		wantReason domain.DecodeReason
	}{
		{"point", "POINT(1 2)", domain.NewPoint(1, 2), ""},
		{"point with space", "POINT (1 2)", domain.NewPoint(1, 2), ""},
		{"lower case", "point(1 2)", domain.NewPoint(1, 2), ""},
		{"ewkt", "SRID=4326;POINT(3 4)", domain.NewPoint(3, 4), ""},
		{"line", "LINESTRING(0 0,1 1)", domain.NewLineString([]orb.Point{{0, 0}, {1, 1}}), ""},
		{"polygon", "POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))", domain.NewPolygon(square), ""},
		{"polygon with hole", "POLYGON((0 0, 10 0, 10 10, 0 10, 0 0), (2 2, 3 2, 3 3, 2 2))", domain.NewPolygon(square), ""},
		{"point z", "POINT Z (1 2 3)", domain.NewPoint(1, 2), ""},
		{"point m", "POINT M (1 2 7)", domain.NewPoint(1, 2), ""},
		{"point zm", "point zm(1 2 3 4)", domain.NewPoint(1, 2), ""},
		{"ewkt pointz", "SRID=4326;POINTZ(1 2 3)", domain.NewPoint(1, 2), ""},
		{"line z", "LINESTRING Z (0 0 5, 1 1 6)", domain.NewLineString([]orb.Point{{0, 0}, {1, 1}}), ""},
		{"polygon zm", "POLYGON ZM((0 0 1 1, 10 0 1 1, 10 10 1 1, 0 10 1 1, 0 0 1 1))", domain.NewPolygon(square), ""},
		{"multipoint z", "MULTIPOINT Z ((0 0 1))", domain.Geometry{}, domain.DecodeUnsupportedKind},
		{"multipoint", "MULTIPOINT((0 0), (1 1))", domain.Geometry{}, domain.DecodeUnsupportedKind},
		{"garbage", "POINT(a b)", domain.Geometry{}, domain.DecodeMalformed},
		{"empty", "   ", domain.Geometry{}, domain.DecodeMalformed},
		{"out of range", "POINT(200 50)", domain.Geometry{}, domain.DecodeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromText(tt.input)
			if tt.wantReason != "" {
				var de *domain.DecodeError
				if !errors.As(err, &de) || de.Reason != tt.wantReason {
					t.Fatalf("FromText(%q) error = %v, want reason %q", tt.input, err, tt.wantReason)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromText(%q) error = %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("FromText(%q) = %v, want %v", tt.input, got.Orb(), tt.want.Orb())
			}
		})
	}
}

func TestFromTextMatchesInterchangeForZ(t *testing.T) {
	fromJSON, err := DecodeGeometry(json.RawMessage(`{"type":"Point","coordinates":[1,2,3]}`))
	if err != nil {
		t.Fatalf("DecodeGeometry() error = %v", err)
	}
	fromText, err := FromText("POINT Z (1 2 3)")
	if err != nil {
		t.Fatalf("FromText() error = %v", err)
	}
	if !fromText.Equal(fromJSON) || ToText(fromText) != "POINT(1 2)" {
		t.Errorf("FromText() = %s, DecodeGeometry() = %s", ToText(fromText), ToText(fromJSON))
	}
}

func TestTextRoundTrip(t *testing.T) {
	geoms := []domain.Geometry{
		domain.NewPoint(116.39747, 39.90882),
		domain.NewPoint(-179.999999, -89.5),
		domain.NewLineString(river),
		domain.NewPolygon(square),
	}

	for _, g := range geoms {
		t.Run(string(g.Type()), func(t *testing.T) {
			got, err := FromText(ToText(g))
			if err != nil {
				t.Fatalf("FromText(ToText()) error = %v", err)
			}
			if !got.Equal(g) {
				t.Errorf("round trip = %v, want %v", got.Orb(), g.Orb())
			}
		})
	}
}

func TestDecodeGeometry(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		want       domain.Geometry
		wantReason domain.DecodeReason
	}{
		{"point", `{"type":"Point","coordinates":[116.4,39.9]}`, domain.NewPoint(116.4, 39.9), ""},
		{"point with elevation", `{"type":"Point","coordinates":[1,2,300]}`, domain.NewPoint(1, 2), ""},
		{"line", `{"type":"LineString","coordinates":[[0,0],[1,1]]}`, domain.NewLineString([]orb.Point{{0, 0}, {1, 1}}), ""},
		{"polygon", `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`, domain.NewPolygon(square), ""},
		{"polygon with hole", `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]],[[2,2],[3,2],[3,3],[2,2]]]}`, domain.NewPolygon(square), ""},
		{"unsupported", `{"type":"MultiPoint","coordinates":[[0,0]]}`, domain.Geometry{}, domain.DecodeUnsupportedKind},
		{"short point", `{"type":"Point","coordinates":[1]}`, domain.Geometry{}, domain.DecodeMalformed},
		{"null component", `{"type":"Point","coordinates":[null,1]}`, domain.Geometry{}, domain.DecodeMalformed},
		{"string coordinates", `{"type":"Point","coordinates":"1,2"}`, domain.Geometry{}, domain.DecodeMalformed},
		{"open ring", `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1]]]}`, domain.Geometry{}, domain.DecodeMalformed},
		{"null", `null`, domain.Geometry{}, domain.DecodeMalformed},
		{"missing type", `{"coordinates":[1,2]}`, domain.Geometry{}, domain.DecodeMalformed},
		{"out of range", `{"type":"Point","coordinates":[200,50]}`, domain.Geometry{}, domain.DecodeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeGeometry(json.RawMessage(tt.input))
			if tt.wantReason != "" {
				var de *domain.DecodeError
				if !errors.As(err, &de) || de.Reason != tt.wantReason {
					t.Fatalf("DecodeGeometry() error = %v, want reason %q", err, tt.wantReason)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeGeometry() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("DecodeGeometry() = %v, want %v", got.Orb(), tt.want.Orb())
			}
		})
	}
}

func TestGeometryRoundTrip(t *testing.T) {
	geoms := []domain.Geometry{
		domain.NewPoint(116.4, 39.9),
		domain.NewLineString(river),
		domain.NewPolygon(square),
	}

	for _, g := range geoms {
		t.Run(string(g.Type()), func(t *testing.T) {
			raw, err := EncodeGeometry(g)
			if err != nil {
				t.Fatalf("EncodeGeometry() error = %v", err)
			}
			got, err := DecodeGeometry(raw)
			if err != nil {
				t.Fatalf("DecodeGeometry() error = %v", err)
			}
			if !got.Equal(g) {
				t.Errorf("round trip = %v, want %v", got.Orb(), g.Orb())
			}
		})
	}
}

func TestDecodeFeature(t *testing.T) {
	f, err := DecodeFeature(json.RawMessage(`{
		"type": "Feature",
		"geometry": {"type": "Point", "coordinates": [116.4, 39.9]},
		"properties": {"name": "Beijing", "population": 21540000, "tags": ["capital"]}
	}`))
	if err != nil {
		t.Fatalf("DecodeFeature() error = %v", err)
	}
	if f.Name != "Beijing" || f.Kind() != domain.KindPointSet {
		t.Errorf("DecodeFeature() = %+v", f)
	}
	if v, ok := f.Property("tags"); !ok || v.Kind() != domain.KindRaw {
		t.Errorf("non-scalar property should be kept raw, got %v", v)
	}

	if _, err := DecodeFeature(json.RawMessage(`{"type":"Feature","geometry":null,"properties":{}}`)); err == nil {
		t.Error("feature without geometry should fail")
	}
	if _, err := DecodeFeature(json.RawMessage(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":[1]}`)); err == nil {
		t.Error("feature with array properties should fail")
	}
}

func TestDocumentWriteTo(t *testing.T) {
	var p domain.Properties
	p.Set("name", domain.StringValue("<北京>"))
	p.Set("pop", domain.IntValue(21540000))
	f, _ := domain.NewFeature(domain.NewPoint(116.4, 39.9), p)

	doc := NewDocument()
	doc.Append(f)

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"name": "<北京>"`) {
		t.Errorf("output should not escape HTML or non-ASCII:\n%s", out)
	}
	if strings.Index(out, `"name"`) > strings.Index(out, `"pop"`) {
		t.Errorf("properties should keep insertion order:\n%s", out)
	}

	c, err := ReadCollection(&buf)
	if err != nil {
		t.Fatalf("ReadCollection() error = %v", err)
	}
	if c.Type != TypeFeatureCollection || len(c.Features) != 1 {
		t.Errorf("ReadCollection() = %+v", c)
	}
}

func TestEmptyDocumentHasFeatureArray(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewDocument().WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"features": []`) {
		t.Errorf("empty document should have an empty features array: %s", buf.String())
	}
}
