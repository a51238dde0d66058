package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Tqy43/ZSQL-gis/internal/adapters/project"
	"github.com/Tqy43/ZSQL-gis/internal/application"
	"github.com/Tqy43/ZSQL-gis/internal/codec"
	"github.com/Tqy43/ZSQL-gis/internal/domain"
	"github.com/Tqy43/ZSQL-gis/internal/ports/input"
)

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.services.Health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":         boolToStatus(details.Healthy),
		"ready":          details.Ready,
		"layers_loaded":  details.LayersLoaded,
		"layers_visible": details.LayersVisible,
		"components":     details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.services.Health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.services.Health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListLayers returns all layers in store order.
func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	layers := s.services.Layers.List(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"layers": layers,
		"count":  len(layers),
	})
}

// handleImport imports the request body. The source kind comes from the
// "format" parameter, the file extension of "name", or the content type.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	kind, err := uploadKind(r, name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if name == "" {
		name = "upload"
	}

	body := io.Reader(r.Body)
	if s.config.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}

	result, err := s.services.Importer.Import(r.Context(), input.Source{
		Name:   domain.SourceName(name),
		Kind:   kind,
		Reader: body,
	})
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, result)
}

func uploadKind(r *http.Request, name string) (domain.SourceKind, error) {
	if format := r.URL.Query().Get("format"); format != "" {
		return domain.ParseSourceKind(format)
	}
	if name != "" && domain.IsSourceFile(name) {
		return domain.SourceKindFromPath(name)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/csv":
		return domain.SourceTabular, nil
	case "application/geo+json", "application/json":
		return domain.SourceInterchange, nil
	}
	return "", fmt.Errorf("%w: cannot tell the source format, set format=tabular|interchange", domain.ErrUnsupportedFormat)
}

// handleGetLayer returns one layer's info.
func (s *Server) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	layer, err := s.services.Layers.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, layer.Info())
}

// handleRemoveLayer deletes a layer.
func (s *Server) handleRemoveLayer(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Layers.Remove(r.Context(), mux.Vars(r)["name"]); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearLayers removes every layer, starting a new project.
func (s *Server) handleClearLayers(w http.ResponseWriter, r *http.Request) {
	s.services.Layers.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handleSetVisibility shows or hides a layer.
func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Visible *bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Visible == nil {
		s.writeError(w, http.StatusBadRequest, `Body must be {"visible": true|false}`)
		return
	}

	name := mux.Vars(r)["name"]
	if err := s.services.Layers.SetVisible(r.Context(), name, *body.Visible); err != nil {
		s.writeDomainError(w, err)
		return
	}
	layer, err := s.services.Layers.Get(r.Context(), name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, layer.Info())
}

// handleExportLayer streams a layer as a GeoJSON FeatureCollection.
func (s *Server) handleExportLayer(w http.ResponseWriter, r *http.Request) {
	layer, err := s.services.Layers.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s.geojson", url.PathEscape(layer.Name)))
	if err := application.WriteDocument(w, application.Export(layer)); err != nil {
		s.logger.Error("export failed", "layer", layer.Name, "error", err)
	}
}

// handleUploadLayer writes a layer's GeoJSON export to object storage.
func (s *Server) handleUploadLayer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	key, err := s.services.Uploader.Upload(r.Context(), name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"layer": name, "key": key})
}

// handleQuery returns features of visible layers intersecting ?bbox=.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	bbox, err := domain.ParseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	response, err := s.services.Layers.Query(r.Context(), bbox)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.formatQueryResponse(response))
}

// handleExtent returns the combined extent of the visible layers.
func (s *Server) handleExtent(w http.ResponseWriter, r *http.Request) {
	extent, ok := s.services.Layers.Extent(r.Context())
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"extent": nil})
		return
	}
	lon, lat := extent.Center()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"extent": extent,
		"center": map[string]float64{"lon": lon, "lat": lat},
	})
}

// handleRender returns every layer in renderer form.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"layers": s.services.Layers.Render(r.Context()),
	})
}

// handleSaveProject downloads the layer store as a project file.
func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	format := projectFormat(r)
	if format != project.FormatJSON && format != project.FormatYAML {
		s.writeError(w, http.StatusBadRequest, "format must be yaml or json")
		return
	}
	snapshot := project.Snapshot(s.services.Layers.Layers(r.Context()))

	if format == project.FormatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "application/yaml")
	}
	if err := project.Encode(w, snapshot, format); err != nil {
		s.logger.Error("project encoding failed", "error", err)
	}
}

// handleOpenProject replaces the layer store with an uploaded project file.
func (s *Server) handleOpenProject(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	if s.config.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}

	file, err := project.Decode(body, projectFormat(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	layers, err := file.Restore()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	infos := s.services.Layers.Replace(r.Context(), layers)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"layers": infos,
		"count":  len(infos),
	})
}

func projectFormat(r *http.Request) project.Format {
	if f := r.URL.Query().Get("format"); f != "" {
		return project.Format(strings.ToLower(f))
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return project.FormatJSON
	}
	return project.FormatYAML
}

// handleStoreSummary returns row counts per store table.
func (s *Server) handleStoreSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := s.services.Store.Summary(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tables": counts})
}

// handlePull selects store features of one kind. Parameters: bbox, limit,
// and load=true to add the result as a layer.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseLayerKind(mux.Vars(r)["kind"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	q := r.URL.Query()
	var bbox *domain.BBox
	if raw := q.Get("bbox"); raw != "" {
		b, err := domain.ParseBBox(raw)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		bbox = &b
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
	}
	load, _ := strconv.ParseBool(q.Get("load"))

	result, err := s.services.Store.Pull(r.Context(), kind, bbox, limit, load)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	doc := codec.NewDocument()
	for _, f := range result.Features {
		doc.Append(f)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"table":    result.Table,
		"kind":     result.Kind,
		"skipped":  result.Skipped,
		"layer":    result.Layer,
		"features": doc,
	})
}

// handlePushLayer writes a layer's features to the store.
func (s *Server) handlePushLayer(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Store.PushLayer(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// formatQueryResponse formats the query response for JSON output.
func (s *Server) formatQueryResponse(resp *domain.QueryResponse) map[string]interface{} {
	matches := make([]map[string]interface{}, len(resp.Matches))
	for i := range resp.Matches {
		m := &resp.Matches[i]
		features := make([]map[string]interface{}, len(m.Features))
		for j, f := range m.Features {
			features[j] = map[string]interface{}{
				"name":       f.Name,
				"wkt":        codec.ToText(f.Geometry),
				"properties": f.Properties,
			}
			if geom, err := codec.EncodeGeometry(f.Geometry); err == nil {
				features[j]["geometry"] = geom
			}
		}
		matches[i] = map[string]interface{}{
			"layer":         m.Layer.Name,
			"kind":          m.Layer.Kind,
			"features":      features,
			"feature_count": m.FeatureCount(),
		}
	}

	return map[string]interface{}{
		"bbox":               resp.BBox,
		"results":            matches,
		"total_features":     resp.TotalFeatures,
		"processing_time_ms": resp.ProcessingTime.Milliseconds(),
	}
}

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupported):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.services.Sync == nil {
		s.writeError(w, http.StatusNotFound, "Sync service not available")
		return
	}

	result, err := s.services.Sync.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
