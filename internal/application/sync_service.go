package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Tqy43/ZSQL-gis/internal/ports/output"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	LayersAdded     int       `json:"layers_added"`
	LayersRemoved   int       `json:"layers_removed"`
	LayersTotal     int       `json:"layers_total"`
	SourcesFailed   int       `json:"sources_failed"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Removed int
	Failed  int
}

type syncedObject struct {
	etag   string
	layers []string
}

// SourceSync imports new or changed source objects from object storage and
// removes the layers of objects that disappeared.
type SourceSync struct {
	mu       sync.Mutex
	storage  output.ObjectStorage
	importer *Importer
	layers   *LayerStore
	logger   *slog.Logger
	synced   map[string]syncedObject
}

// NewSourceSync creates a new source sync.
func NewSourceSync(storage output.ObjectStorage, importer *Importer, layers *LayerStore, logger *slog.Logger) *SourceSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceSync{
		storage:  storage,
		importer: importer,
		layers:   layers,
		logger:   logger,
		synced:   make(map[string]syncedObject),
	}
}

// Sync synchronizes the layer store with remote storage.
func (s *SourceSync) Sync(ctx context.Context) (SyncStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("syncing sources from storage")

	objects, err := s.storage.List(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	stats := SyncStats{}
	remote := make(map[string]bool, len(objects))
	for _, obj := range objects {
		remote[obj.Key] = true
		prev, seen := s.synced[obj.Key]
		if seen && prev.etag == obj.ETag {
			s.logger.Debug("source unchanged, skipping", "key", obj.Key)
			continue
		}

		var replace func()
		if seen {
			replace = func() { stats.Removed += s.removeLayers(ctx, prev.layers) }
		}
		result, err := s.importer.ReimportObject(ctx, s.storage, obj.Key, replace)
		if err != nil {
			stats.Failed++
			continue
		}

		names := make([]string, 0, len(result.Layers))
		for _, l := range result.Layers {
			names = append(names, l.Name)
		}
		s.synced[obj.Key] = syncedObject{etag: obj.ETag, layers: names}
		stats.Added += len(names)
	}

	for key, obj := range s.synced {
		if remote[key] {
			continue
		}
		s.logger.Info("removing layers of source not in remote storage", "key", key)
		stats.Removed += s.removeLayers(ctx, obj.layers)
		delete(s.synced, key)
	}

	s.logger.Info("sync completed", "added", stats.Added, "removed", stats.Removed, "failed", stats.Failed, "total", s.layers.Len())
	return stats, nil
}

// removeLayers removes layers that are still present and returns how many
// were removed.
func (s *SourceSync) removeLayers(ctx context.Context, names []string) int {
	removed := 0
	for _, name := range names {
		if err := s.layers.Remove(ctx, name); err == nil {
			removed++
		}
	}
	return removed
}

// Syncer is implemented by SourceSync.
type Syncer interface {
	Sync(ctx context.Context) (SyncStats, error)
}

// SyncService manages periodic synchronization with remote storage.
type SyncService struct {
	syncer   Syncer
	layers   *LayerStore
	interval time.Duration
	logger   *slog.Logger

	// Lifecycle management
	stopCh chan struct{}
	wg     sync.WaitGroup

	// Rate limiting for API triggers
	lastAPISync time.Time
	apiMutex    sync.Mutex

	// Prevents concurrent sync operations
	syncOpMutex sync.Mutex

	// Track next scheduled sync for reporting
	nextSync time.Time
	syncMu   sync.RWMutex
}

// NewSyncService creates a new sync service.
func NewSyncService(syncer Syncer, layers *LayerStore, interval time.Duration, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		syncer:   syncer,
		layers:   layers,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		// Allows an immediate first API call
		lastAPISync: time.Now().Add(-31 * time.Second),
	}
}

// Start begins the periodic sync scheduler.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *SyncService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextSync(time.Now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled sync triggered")
			if _, err := s.doSync(ctx); err != nil {
				s.logger.Error("sync failed", "error", err)
			}
			s.setNextSync(time.Now().Add(s.interval))
		}
	}
}

// Stop gracefully stops the sync service.
func (s *SyncService) Stop() {
	s.logger.Info("stopping sync service")
	close(s.stopCh)
	s.wg.Wait()
}

// TriggerSync manually triggers a sync operation with rate limiting.
// Returns ErrRateLimited if called again within 30 seconds.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.apiMutex.Lock()
	defer s.apiMutex.Unlock()

	if time.Since(s.lastAPISync) < 30*time.Second {
		return SyncResult{}, ErrRateLimited
	}
	s.lastAPISync = time.Now()

	stats, err := s.doSync(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	return SyncResult{
		LayersAdded:     stats.Added,
		LayersRemoved:   stats.Removed,
		LayersTotal:     s.layers.Len(),
		SourcesFailed:   stats.Failed,
		SyncedAt:        time.Now(),
		NextScheduledAt: s.getNextSync(),
	}, nil
}

// SyncNow runs one sync without rate limiting.
func (s *SyncService) SyncNow(ctx context.Context) (SyncStats, error) {
	return s.doSync(ctx)
}

func (s *SyncService) doSync(ctx context.Context) (SyncStats, error) {
	s.syncOpMutex.Lock()
	defer s.syncOpMutex.Unlock()
	return s.syncer.Sync(ctx)
}

func (s *SyncService) setNextSync(t time.Time) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.nextSync = t
}

func (s *SyncService) getNextSync() time.Time {
	s.syncMu.RLock()
	defer s.syncMu.RUnlock()
	return s.nextSync
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
