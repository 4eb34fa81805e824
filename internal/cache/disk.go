package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/basinwx/road-weather-service/internal/observability"
)

// DefaultStaleLimit is how long expired disk records are kept around as a
// fallback before being deleted on read.
const DefaultStaleLimit = 24 * time.Hour

// diskRecord is the on-disk envelope. Timestamp is epoch milliseconds so the
// files stay interchangeable with the previous deployment's cache directory.
type diskRecord struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// DiskStore persists cache entries as one JSON file per key so data survives
// process restarts. All I/O failures are non-fatal: reads degrade to misses,
// writes are best-effort. Entries older than staleLimit are deleted on read.
type DiskStore struct {
	dir        string
	staleLimit time.Duration
	logger     *zap.Logger

	now func() time.Time
}

// NewDiskStore creates a DiskStore rooted at dir, creating it if needed.
// staleLimit <= 0 falls back to DefaultStaleLimit.
func NewDiskStore(dir string, staleLimit time.Duration, logger *zap.Logger) (*DiskStore, error) {
	if staleLimit <= 0 {
		staleLimit = DefaultStaleLimit
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{
		dir:        dir,
		staleLimit: staleLimit,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get reads the record for key and unmarshals its payload into dest if the
// record is no older than maxAge. Returns false on miss, expiration, or any
// read/decode failure. Records past the stale limit are deleted; records that
// merely exceed maxAge are kept so a later read with a longer maxAge (the
// stale-fallback path) can still find them.
func (s *DiskStore) Get(key string, maxAge time.Duration, dest any) bool {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			observability.DiskCacheErrorsTotal.WithLabelValues("read").Inc()
			if s.logger != nil {
				s.logger.Warn("disk cache read failed", zap.String("key", key), zap.Error(err))
			}
		}
		observability.CacheMissesTotal.WithLabelValues("disk").Inc()
		return false
	}

	var rec diskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Corrupt file: remove it so the next refresh rewrites a clean copy.
		observability.DiskCacheErrorsTotal.WithLabelValues("read").Inc()
		if s.logger != nil {
			s.logger.Warn("disk cache record corrupt, deleting", zap.String("key", key), zap.Error(err))
		}
		s.delete(key)
		observability.CacheMissesTotal.WithLabelValues("disk").Inc()
		return false
	}

	age := s.now().Sub(time.UnixMilli(rec.Timestamp))
	if age > s.staleLimit {
		s.delete(key)
		observability.CacheMissesTotal.WithLabelValues("disk").Inc()
		return false
	}
	if age > maxAge {
		observability.CacheMissesTotal.WithLabelValues("disk").Inc()
		return false
	}

	if err := json.Unmarshal(rec.Data, dest); err != nil {
		observability.DiskCacheErrorsTotal.WithLabelValues("read").Inc()
		if s.logger != nil {
			s.logger.Warn("disk cache payload corrupt, deleting", zap.String("key", key), zap.Error(err))
		}
		s.delete(key)
		observability.CacheMissesTotal.WithLabelValues("disk").Inc()
		return false
	}
	observability.CacheHitsTotal.WithLabelValues("disk").Inc()
	return true
}

// Age reports how old the record for key is. Returns false if no readable
// record exists.
func (s *DiskStore) Age(key string) (time.Duration, bool) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		return 0, false
	}
	var rec diskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return 0, false
	}
	return s.now().Sub(time.UnixMilli(rec.Timestamp)), true
}

// Set writes value for key, stamped with the current time. Best-effort: a
// failed write is logged and counted, never surfaced to the caller, so a full
// or read-only disk cannot take down the refresh pipeline.
func (s *DiskStore) Set(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		observability.DiskCacheErrorsTotal.WithLabelValues("write").Inc()
		if s.logger != nil {
			s.logger.Warn("disk cache marshal failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	raw, err := json.Marshal(diskRecord{
		Timestamp: s.now().UnixMilli(),
		Data:      data,
	})
	if err != nil {
		observability.DiskCacheErrorsTotal.WithLabelValues("write").Inc()
		return
	}

	// Write-then-rename keeps readers from ever seeing a half-written file.
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		observability.DiskCacheErrorsTotal.WithLabelValues("write").Inc()
		if s.logger != nil {
			s.logger.Warn("disk cache write failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		observability.DiskCacheErrorsTotal.WithLabelValues("write").Inc()
		if s.logger != nil {
			s.logger.Warn("disk cache rename failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *DiskStore) delete(key string) {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		observability.DiskCacheErrorsTotal.WithLabelValues("delete").Inc()
		if s.logger != nil {
			s.logger.Warn("disk cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}
