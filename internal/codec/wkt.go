package codec

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// ToText renders a geometry as WKT. Vertices are separated by ", " and
// numbers use the shortest representation that parses back exactly.
func ToText(g domain.Geometry) string {
	var b strings.Builder
	switch g.Type() {
	case domain.GeometryPoint:
		b.WriteString("POINT(")
		writeVertices(&b, g.Points())
		b.WriteString(")")
	case domain.GeometryLineString:
		b.WriteString("LINESTRING(")
		writeVertices(&b, g.Points())
		b.WriteString(")")
	case domain.GeometryPolygon:
		b.WriteString("POLYGON((")
		writeVertices(&b, g.Points())
		b.WriteString("))")
	}
	return b.String()
}

func writeVertices(b *strings.Builder, pts []orb.Point) {
	for i, p := range pts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatCoord(p[0]))
		b.WriteByte(' ')
		b.WriteString(formatCoord(p[1]))
	}
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FromText parses WKT as returned by spatial stores. A leading "SRID=n;"
// is ignored, the tag is case-insensitive and may be followed by spaces.
// Z, M and ZM geometries keep only their first two ordinates. Polygon holes
// are discarded.
func FromText(s string) (domain.Geometry, error) {
	text, kind := canonicalText(s)
	if text == "" {
		return domain.Geometry{}, &domain.DecodeError{Reason: domain.DecodeMalformed, Detail: "empty text"}
	}

	switch kind {
	case "POINT", "LINESTRING", "POLYGON":
	case "":
		return domain.Geometry{}, &domain.DecodeError{Reason: domain.DecodeMalformed, Detail: "missing geometry tag"}
	default:
		return domain.Geometry{}, &domain.DecodeError{Reason: domain.DecodeUnsupportedKind, Kind: kind}
	}

	parsed, err := wkt.Unmarshal(text)
	if err != nil {
		return domain.Geometry{}, &domain.DecodeError{Reason: domain.DecodeMalformed, Kind: kind, Detail: err.Error()}
	}
	geom, err := domain.GeometryFromOrb(parsed)
	if err != nil {
		return domain.Geometry{}, err
	}
	if err := geom.Validate(); err != nil {
		return domain.Geometry{}, err
	}
	return geom, nil
}

// vertex matches one whitespace separated coordinate tuple.
var vertex = regexp.MustCompile(`[^\s(),]+(?:\s+[^\s(),]+)+`)

// canonicalText strips an EWKT SRID prefix, rewrites "point z (…" as
// "POINT(…" and drops the ordinates past x and y of a Z, M or ZM body. It
// returns the rewritten text and the upper-cased tag without dimensions.
func canonicalText(s string) (string, string) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		if i := strings.IndexByte(s, ';'); i >= 0 {
			s = strings.TrimSpace(s[i+1:])
		}
	}
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return s, strings.ToUpper(strings.TrimSpace(s))
	}
	tag, extra := splitDimensions(strings.ToUpper(strings.TrimSpace(s[:open])))
	body := s[open:]
	if extra {
		body = vertex.ReplaceAllStringFunc(body, func(v string) string {
			f := strings.Fields(v)
			return f[0] + " " + f[1]
		})
	}
	return tag + body, tag
}

// splitDimensions separates a Z, M or ZM suffix, written with or without a
// space, from a geometry tag.
func splitDimensions(tag string) (string, bool) {
	if f := strings.Fields(tag); len(f) == 2 {
		switch f[1] {
		case "Z", "M", "ZM":
			return f[0], true
		}
		return tag, false
	}
	for _, base := range []string{"POINT", "LINESTRING", "POLYGON"} {
		switch strings.TrimPrefix(tag, base) {
		case "Z", "M", "ZM":
			return base, true
		}
	}
	return tag, false
}
