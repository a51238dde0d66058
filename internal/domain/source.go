package domain

import (
	"path/filepath"
	"strings"
)

// SourceKind is the format family of an importable source.
type SourceKind string

// Source kinds.
const (
	SourceTabular     SourceKind = "tabular"
	SourceInterchange SourceKind = "interchange"
)

var sourceExtensions = map[string]SourceKind{
	".csv":     SourceTabular,
	".geojson": SourceInterchange,
	".json":    SourceInterchange,
}

// SourceKindFromPath derives the source kind from a file extension.
func SourceKindFromPath(path string) (SourceKind, error) {
	if k, ok := sourceExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return k, nil
	}
	return "", &ImportError{Source: path, Reason: ImportUnsupportedFormat}
}

// ParseSourceKind accepts "csv", "geojson", "json" or a kind name.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(s) {
	case "csv", string(SourceTabular):
		return SourceTabular, nil
	case "geojson", "json", string(SourceInterchange):
		return SourceInterchange, nil
	}
	return "", &ImportError{Source: s, Reason: ImportUnsupportedFormat}
}

// IsSourceFile reports whether the path has an importable extension.
func IsSourceFile(path string) bool {
	_, ok := sourceExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SourceName returns the file name without directory and extension, used
// as the base name of imported layers.
func SourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ImportResult summarises one import.
type ImportResult struct {
	Source   string      `json:"source"`
	Layers   []LayerInfo `json:"layers"`
	Features int         `json:"features"`
	Skipped  int         `json:"skipped"`
}

// PushResult summarises writing a layer to the spatial store.
type PushResult struct {
	Layer    string `json:"layer"`
	Table    string `json:"table"`
	Inserted int    `json:"inserted"`
	Failed   int    `json:"failed"`
}

// PullResult summarises reading features from the spatial store.
type PullResult struct {
	Table    string     `json:"table"`
	Kind     LayerKind  `json:"kind"`
	Features []Feature  `json:"-"`
	Skipped  int        `json:"skipped"`
	Layer    *LayerInfo `json:"layer,omitempty"`
}
