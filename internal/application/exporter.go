package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/Tqy43/ZSQL-gis/internal/codec"
	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/ports/output"
)

// Export wraps every feature of the layer into a feature collection.
// Property order is kept and non-scalar values are written verbatim.
func Export(layer *domain.Layer) *codec.Document {
	doc := codec.NewDocument()
	for _, f := range layer.Features() {
		doc.Append(f)
	}
	return doc
}

// WriteDocument writes an indented document without HTML escaping.
func WriteDocument(w io.Writer, doc *codec.Document) error {
	_, err := doc.WriteTo(w)
	return err
}

// Exporter serializes layers of the layer store.
type Exporter struct {
	layers  *LayerStore
	metrics output.MetricsCollector
	logger  *slog.Logger

	storage output.ObjectStorage
	prefix  string
}

// NewExporter creates a new exporter.
func NewExporter(layers *LayerStore, metrics output.MetricsCollector, logger *slog.Logger) *Exporter {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{layers: layers, metrics: metrics, logger: logger}
}

// WithStorage sets the object storage and key prefix used by Upload.
func (e *Exporter) WithStorage(storage output.ObjectStorage, prefix string) *Exporter {
	e.storage = storage
	e.prefix = prefix
	return e
}

// ExportKey returns the object key a layer is uploaded to.
func (e *Exporter) ExportKey(name string) string {
	return path.Join(e.prefix, name+".geojson")
}

// Upload exports the named layer to the configured storage and returns the
// object key.
func (e *Exporter) Upload(ctx context.Context, name string) (string, error) {
	if e.storage == nil {
		return "", fmt.Errorf("upload %q: %w", name, domain.ErrStorageUnavailable)
	}
	key := e.ExportKey(name)
	if err := e.ExportToStorage(ctx, e.storage, key, name); err != nil {
		return "", err
	}
	return key, nil
}

// ExportLayer exports the named layer.
func (e *Exporter) ExportLayer(ctx context.Context, name string) (*codec.Document, error) {
	layer, err := e.layers.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return Export(layer), nil
}

// ExportToStorage uploads the named layer as a GeoJSON object.
func (e *Exporter) ExportToStorage(ctx context.Context, storage output.ObjectStorage, key, name string) error {
	doc, err := e.ExportLayer(ctx, name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := WriteDocument(&buf, doc); err != nil {
		return err
	}

	start := time.Now()
	err = storage.Put(ctx, key, buf.Bytes())
	e.metrics.ObserveStorageDuration("put", time.Since(start))
	e.metrics.IncStorageOperations("put", err == nil)
	if err != nil {
		e.logger.Error("failed to upload layer", "layer", name, "key", key, "error", err)
		return err
	}

	e.logger.Info("layer exported", "layer", name, "key", key, "features", len(doc.Features))
	return nil
}
