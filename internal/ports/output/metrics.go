package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncImports increments the import counter for a source kind.
	IncImports(kind string, success bool)

	// AddSkippedFeatures counts features skipped at a stage (import, store).
	AddSkippedFeatures(stage string, n int)

	// SetLayersLoaded sets the number of layers in the store.
	SetLayersLoaded(count int)

	// SetLayersVisible sets the number of visible layers.
	SetLayersVisible(count int)

	// IncQueryCount increments the bbox query counter for a target (memory, store).
	IncQueryCount(target string, success bool)

	// ObserveQueryDuration records bbox query duration.
	ObserveQueryDuration(target string, duration time.Duration)

	// IncStoreOperations increments the spatial store operation counter.
	IncStoreOperations(operation string, success bool)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncImports implements MetricsCollector.
func (n *NoOpMetrics) IncImports(_ string, _ bool) {}

// AddSkippedFeatures implements MetricsCollector.
func (n *NoOpMetrics) AddSkippedFeatures(_ string, _ int) {}

// SetLayersLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetLayersLoaded(_ int) {}

// SetLayersVisible implements MetricsCollector.
func (n *NoOpMetrics) SetLayersVisible(_ int) {}

// IncQueryCount implements MetricsCollector.
func (n *NoOpMetrics) IncQueryCount(_ string, _ bool) {}

// ObserveQueryDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveQueryDuration(_ string, _ time.Duration) {}

// IncStoreOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStoreOperations(_ string, _ bool) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
