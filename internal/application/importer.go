package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Tqy43/ZSQL-gis/internal/codec"
	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/ports/input"
	"github.com/Tqy43/ZSQL-gis/internal/ports/output"
	"github.com/Tqy43/ZSQL-gis/internal/tabular"
)

// Importer turns tabular and interchange sources into layers appended to
// the layer store.
type Importer struct {
	layers  *LayerStore
	aliases tabular.Aliases
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewImporter creates a new importer. Zero aliases use the defaults.
func NewImporter(layers *LayerStore, aliases tabular.Aliases, metrics output.MetricsCollector, logger *slog.Logger) *Importer {
	if len(aliases.Longitude) == 0 || len(aliases.Latitude) == 0 {
		aliases = tabular.DefaultAliases
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		layers:  layers,
		aliases: aliases,
		metrics: metrics,
		logger:  logger,
	}
}

// Import reads one source. Per-record failures are counted in the result;
// only failures that make the whole source unusable are returned as errors.
func (im *Importer) Import(ctx context.Context, src input.Source) (*domain.ImportResult, error) {
	return im.importSource(ctx, src, nil)
}

// importSource reads src and appends its layers. beforeAdd, when set, runs
// after the source was read successfully and before any layer is added.
func (im *Importer) importSource(ctx context.Context, src input.Source, beforeAdd func()) (*domain.ImportResult, error) {
	im.logger.Info("importing source", "source", src.Name, "kind", src.Kind)

	var (
		layers  []*domain.Layer
		skipped int
		err     error
	)
	switch src.Kind {
	case domain.SourceTabular:
		layers, skipped, err = im.importTabular(src)
	case domain.SourceInterchange:
		layers, skipped, err = im.importInterchange(src)
	default:
		err = &domain.ImportError{Source: src.Name, Reason: domain.ImportUnsupportedFormat}
	}
	if err != nil {
		im.metrics.IncImports(string(src.Kind), false)
		im.logger.Error("import failed", "source", src.Name, "error", err)
		return nil, err
	}

	if beforeAdd != nil {
		beforeAdd()
	}
	result := &domain.ImportResult{Source: src.Name, Skipped: skipped}
	for _, l := range layers {
		l.Source = src.Name
		result.Layers = append(result.Layers, im.layers.Add(ctx, l))
		result.Features += l.Len()
	}

	im.metrics.IncImports(string(src.Kind), true)
	im.metrics.AddSkippedFeatures("import", skipped)
	im.logger.Info("import completed",
		"source", src.Name,
		"layers", len(result.Layers),
		"features", result.Features,
		"skipped", skipped,
	)
	return result, nil
}

func (im *Importer) importTabular(src input.Source) ([]*domain.Layer, int, error) {
	table, err := tabular.ReadCSV(src.Reader)
	if err != nil {
		return nil, 0, &domain.ImportError{Source: src.Name, Reason: domain.ImportUnreadable, Err: err}
	}

	normalized, err := tabular.Normalize(table, im.aliases)
	if err != nil {
		reason := domain.ImportEmpty
		var nerr *domain.NormalizeError
		if errors.As(err, &nerr) && nerr.Reason == domain.NoCoordinateColumns {
			reason = domain.ImportNoCoordinates
		}
		return nil, 0, &domain.ImportError{Source: src.Name, Reason: reason, Err: err}
	}
	if d := normalized.Report.Dropped; d > 0 {
		im.logger.Warn("dropped rows with invalid coordinates", "source", src.Name, "rows", d)
	}

	layer, err := domain.NewLayer(src.Name, domain.KindPointSet, normalized.Features())
	if err != nil {
		return nil, 0, fmt.Errorf("building layer %s: %w", src.Name, err)
	}
	return []*domain.Layer{layer}, normalized.Report.Dropped, nil
}

func (im *Importer) importInterchange(src input.Source) ([]*domain.Layer, int, error) {
	doc, err := codec.ReadCollection(src.Reader)
	if err != nil {
		return nil, 0, &domain.ImportError{Source: src.Name, Reason: domain.ImportUnreadable, Err: err}
	}
	if doc.Type != codec.TypeFeatureCollection {
		return nil, 0, &domain.ImportError{Source: src.Name, Reason: domain.ImportNotFeatureCollection}
	}
	if len(doc.Features) == 0 {
		return nil, 0, &domain.ImportError{Source: src.Name, Reason: domain.ImportEmpty}
	}

	groups := make(map[domain.LayerKind][]domain.Feature, len(domain.LayerKinds))
	skipped := 0
	for i, raw := range doc.Features {
		f, err := codec.DecodeFeature(raw)
		if err != nil {
			skipped++
			im.logger.Warn("skipping feature", "source", src.Name, "index", i, "error", err)
			continue
		}
		groups[f.Kind()] = append(groups[f.Kind()], f)
	}

	var layers []*domain.Layer
	for _, kind := range domain.LayerKinds {
		features := groups[kind]
		if len(features) == 0 {
			continue
		}
		layer, err := domain.NewLayer(src.Name+"_"+string(kind), kind, features)
		if err != nil {
			return nil, 0, fmt.Errorf("building %s layer: %w", kind, err)
		}
		layers = append(layers, layer)
	}
	return layers, skipped, nil
}

// ImportFile imports a local file, deriving the kind from its extension and
// the layer name from its base name.
func (im *Importer) ImportFile(ctx context.Context, path string) (*domain.ImportResult, error) {
	kind, err := domain.SourceKindFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ImportError{Source: path, Reason: domain.ImportUnreadable, Err: err}
	}
	defer f.Close()

	return im.Import(ctx, input.Source{Name: domain.SourceName(path), Kind: kind, Reader: f})
}

// ImportObject imports an object from object storage.
func (im *Importer) ImportObject(ctx context.Context, storage output.ObjectStorage, key string) (*domain.ImportResult, error) {
	return im.ReimportObject(ctx, storage, key, nil)
}

// ReimportObject imports an object like ImportObject. replace runs once the
// object has been read and before its layers are added, so layers it drops
// free their names for the new ones. A failed read leaves replace uncalled.
func (im *Importer) ReimportObject(ctx context.Context, storage output.ObjectStorage, key string, replace func()) (*domain.ImportResult, error) {
	kind, err := domain.SourceKindFromPath(key)
	if err != nil {
		return nil, err
	}
	rc, err := storage.GetReader(ctx, key)
	if err != nil {
		return nil, &domain.ImportError{Source: key, Reason: domain.ImportUnreadable, Err: err}
	}
	defer rc.Close()

	return im.importSource(ctx, input.Source{Name: domain.SourceName(key), Kind: kind, Reader: rc}, replace)
}
