// Package project saves and opens layer store snapshots as YAML or JSON
// project files.
package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tqy43/ZSQL-gis/internal/codec"
	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

// CurrentVersion is the project file format version written by Save.
const CurrentVersion = 1

// Format is a project file encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format by extension; anything but .json is YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// File is the on-disk project document.
type File struct {
	Version int          `json:"version" yaml:"version"`
	SavedAt time.Time    `json:"saved_at" yaml:"saved_at"`
	Layers  []LayerEntry `json:"layers" yaml:"layers"`
}

// LayerEntry is one saved layer.
type LayerEntry struct {
	Name      string           `json:"name" yaml:"name"`
	Kind      domain.LayerKind `json:"kind" yaml:"kind"`
	Source    string           `json:"source,omitempty" yaml:"source,omitempty"`
	Visible   bool             `json:"visible" yaml:"visible"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
	Features  []FeatureEntry   `json:"features" yaml:"features"`
}

// FeatureEntry is one saved feature with its geometry as WKT.
type FeatureEntry struct {
	Geometry   string            `json:"geometry" yaml:"geometry"`
	Properties domain.Properties `json:"properties" yaml:"-"`
}

type yamlFeature struct {
	Geometry   string     `yaml:"geometry"`
	Properties *yaml.Node `yaml:"properties"`
}

// MarshalYAML writes properties as a mapping in insertion order.
func (f FeatureEntry) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	var err error
	f.Properties.Each(func(key string, v domain.Value) {
		if err != nil {
			return
		}
		val := &yaml.Node{}
		if err = val.Encode(v.Interface()); err != nil {
			return
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, val)
	})
	if err != nil {
		return nil, fmt.Errorf("encoding properties: %w", err)
	}
	return yamlFeature{Geometry: f.Geometry, Properties: node}, nil
}

// UnmarshalYAML reads properties in document order. Null values are omitted.
func (f *FeatureEntry) UnmarshalYAML(n *yaml.Node) error {
	var aux struct {
		Geometry   string    `yaml:"geometry"`
		Properties yaml.Node `yaml:"properties"`
	}
	if err := n.Decode(&aux); err != nil {
		return err
	}
	f.Geometry = aux.Geometry
	f.Properties = domain.Properties{}

	content := aux.Properties.Content
	for i := 0; i+1 < len(content); i += 2 {
		var x any
		if err := content[i+1].Decode(&x); err != nil {
			return fmt.Errorf("property %q: %w", content[i].Value, err)
		}
		if v, ok := domain.ValueOf(x); ok {
			f.Properties.Set(content[i].Value, v)
		}
	}
	return nil
}

// Snapshot builds a project document from layers.
func Snapshot(layers []*domain.Layer) *File {
	file := &File{Version: CurrentVersion, SavedAt: time.Now().UTC(), Layers: make([]LayerEntry, 0, len(layers))}
	for _, l := range layers {
		entry := LayerEntry{
			Name:      l.Name,
			Kind:      l.Kind,
			Source:    l.Source,
			Visible:   l.Visible,
			CreatedAt: l.CreatedAt,
			Features:  make([]FeatureEntry, 0, l.Len()),
		}
		for _, f := range l.Features() {
			entry.Features = append(entry.Features, FeatureEntry{
				Geometry:   codec.ToText(f.Geometry),
				Properties: f.Properties,
			})
		}
		file.Layers = append(file.Layers, entry)
	}
	return file
}

// Restore rebuilds the layers of a project document. Layers get new ids.
func (p *File) Restore() ([]*domain.Layer, error) {
	if p.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: project version %d", domain.ErrUnsupported, p.Version)
	}
	out := make([]*domain.Layer, 0, len(p.Layers))
	for i, entry := range p.Layers {
		features := make([]domain.Feature, 0, len(entry.Features))
		for j, fe := range entry.Features {
			geom, err := codec.FromText(fe.Geometry)
			if err != nil {
				return nil, fmt.Errorf("layer %q feature %d: %w", entry.Name, j, err)
			}
			f, err := domain.NewFeature(geom, fe.Properties)
			if err != nil {
				return nil, fmt.Errorf("layer %q feature %d: %w", entry.Name, j, err)
			}
			features = append(features, f)
		}
		l, err := domain.NewLayer(entry.Name, entry.Kind, features)
		if err != nil {
			return nil, fmt.Errorf("layer %d %q: %w", i, entry.Name, err)
		}
		l.Source = entry.Source
		l.Visible = entry.Visible
		if !entry.CreatedAt.IsZero() {
			l.CreatedAt = entry.CreatedAt
		}
		out = append(out, l)
	}
	return out, nil
}

// Encode writes the document in the given format.
func Encode(w io.Writer, file *File, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(file)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(file); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: project format %q", domain.ErrUnsupported, format)
}

// Decode reads a document in the given format.
func Decode(r io.Reader, format Format) (*File, error) {
	var file File
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&file); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&file); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	default:
		return nil, fmt.Errorf("%w: project format %q", domain.ErrUnsupported, format)
	}
	return &file, nil
}

// Save writes layers to path. The file is replaced atomically.
func Save(path string, layers []*domain.Layer) error {
	var buf bytes.Buffer
	if err := Encode(&buf, Snapshot(layers), FormatFromPath(path)); err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".project-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing project: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Open reads the layers saved at path.
func Open(path string) ([]*domain.Layer, error) {
	f, err := os.Open(path) //nolint:gosec // project path is operator supplied
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	file, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("reading project %s: %w", path, err)
	}
	return file.Restore()
}
