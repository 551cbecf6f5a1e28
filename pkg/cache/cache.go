// Package cache is the durable on-device fallback: a pebble-backed snapshot
// of the full letter set, the pending-operation queue and a last-sync mark.
// It survives process restarts and is the source of truth whenever the
// remote store is unreachable.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"emberpost/pkg/logger"
	"emberpost/pkg/models"
)

// The three persisted slots. The queue slot deliberately has no expiry
// logic of its own: a pending operation for an already-expired letter is
// still retried until it lands or is cleared by hand.
const (
	keySnapshot = "letters:snapshot"
	keyQueue    = "letters:queue"
	keyLastSync = "letters:last_sync"
)

// Cache wraps a pebble DB holding the local backup state.
type Cache struct {
	db   *pebble.DB
	path string

	// maxSnapshotBytes, when >0, triggers a warning once the serialized
	// snapshot outgrows it. Writes are never refused.
	maxSnapshotBytes int64

	// now is injectable for expiry tests.
	now func() time.Time
}

// Option tunes an opened cache.
type Option func(*Cache)

// WithMaxSnapshotSize sets the snapshot-size warning threshold.
func WithMaxSnapshotSize(n int64) Option {
	return func(c *Cache) { c.maxSnapshotBytes = n }
}

// WithClock overrides the time source used by the expiry filter.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Open opens (or creates) the pebble database at path.
func Open(path string, opts ...Option) (*Cache, error) {
	logger.Info("opening_cache", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("cache_open_failed", "path", path, "error", err)
		return nil, err
	}
	c := &Cache{db: db, path: path, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	logger.Info("cache_opened", "path", path)
	return c, nil
}

// Close closes the underlying DB.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	logger.Info("cache_closed", "path", c.path)
	return err
}

// Save overwrites the snapshot and queue slots and stamps last-sync. The
// two writes are independent; a partial failure is reported but must be
// treated as non-fatal by callers, who retry on the next save.
func (c *Cache) Save(letters []models.Letter, queue []models.PendingOp) error {
	if c.db == nil {
		return fmt.Errorf("cache not opened")
	}
	var firstErr error

	snap, err := json.Marshal(letters)
	if err != nil {
		firstErr = fmt.Errorf("marshal snapshot: %w", err)
	} else {
		if c.maxSnapshotBytes > 0 && int64(len(snap)) > c.maxSnapshotBytes {
			logger.Warn("cache_snapshot_oversize", "bytes", len(snap), "max", c.maxSnapshotBytes)
		}
		if err := c.db.Set([]byte(keySnapshot), snap, pebble.Sync); err != nil {
			saveFailures.Inc()
			logger.Error("cache_snapshot_write_failed", "error", err)
			firstErr = err
		} else {
			snapshotLetters.Set(float64(len(letters)))
		}
	}

	qb, err := json.Marshal(queue)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("marshal queue: %w", err)
		}
	} else if err := c.db.Set([]byte(keyQueue), qb, pebble.Sync); err != nil {
		saveFailures.Inc()
		logger.Error("cache_queue_write_failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		queueDepth.Set(float64(len(queue)))
	}

	ts := c.now().UTC().Format(time.RFC3339)
	if err := c.db.Set([]byte(keyLastSync), []byte(ts), pebble.Sync); err != nil {
		logger.Error("cache_lastsync_write_failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoadSnapshot returns the last durable snapshot filtered to letters that
// are still alive. A missing or unreadable snapshot yields an empty set,
// never an error: degraded operation is first-class here.
func (c *Cache) LoadSnapshot() []models.Letter {
	raw, ok := c.get(keySnapshot)
	if !ok {
		return []models.Letter{}
	}
	var letters []models.Letter
	if err := json.Unmarshal(raw, &letters); err != nil {
		logger.Warn("cache_snapshot_unreadable", "error", err)
		return []models.Letter{}
	}
	valid := models.FilterValid(letters, c.now())
	snapshotLetters.Set(float64(len(valid)))
	return valid
}

// LoadQueue returns the persisted pending-operation queue in insertion
// order. No expiry filter is applied.
func (c *Cache) LoadQueue() []models.PendingOp {
	raw, ok := c.get(keyQueue)
	if !ok {
		return []models.PendingOp{}
	}
	var queue []models.PendingOp
	if err := json.Unmarshal(raw, &queue); err != nil {
		logger.Warn("cache_queue_unreadable", "error", err)
		return []models.PendingOp{}
	}
	queueDepth.Set(float64(len(queue)))
	return queue
}

// LastSync returns the timestamp of the last successful save, zero time if
// none was recorded.
func (c *Cache) LastSync() time.Time {
	raw, ok := c.get(keyLastSync)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (c *Cache) get(key string) ([]byte, bool) {
	if c.db == nil {
		return nil, false
	}
	v, closer, err := c.db.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, true
}
