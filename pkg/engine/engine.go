// Package engine reconciles the authoritative remote store with the local
// cache and working set under intermittent connectivity. It owns the
// online/offline state machine, the pending-operation queue and the
// periodic re-sync timers.
package engine

import (
	"context"
	"sync"
	"time"

	"emberpost/pkg/cache"
	"emberpost/pkg/logger"
	"emberpost/pkg/models"
)

// RemoteStore is the gateway to the authoritative backend.
type RemoteStore interface {
	Ping() bool
	ListLetters() ([]models.Letter, error)
	CreateLetter(letter models.Letter) (bool, error)
	UpdateLetter(id string, updates any) (bool, error)
}

// Source is the in-memory working set the engine reconciles; implemented by
// the letters facade.
type Source interface {
	// Snapshot returns a copy of the current working set.
	Snapshot() []models.Letter
	// Replace installs a freshly loaded set.
	Replace(letters []models.Letter)
	// MarkLocal flips the local (unconfirmed) flag on one letter.
	MarkLocal(id string, local bool)
	// Render pushes the current set to the UI collaborator.
	Render()
}

// Engine drives synchronization. All state transitions happen under one
// mutex: timers and interactive writes serialize, and interleavings across
// operations resolve by last-write-wins.
type Engine struct {
	remote RemoteStore
	cache  *cache.Cache
	src    Source

	mu     sync.Mutex
	online bool
	queue  []models.PendingOp

	syncInterval   time.Duration
	renderInterval time.Duration
	now            func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option tunes a new engine.
type Option func(*Engine)

// WithIntervals overrides the sync and render ticker periods.
func WithIntervals(sync, render time.Duration) Option {
	return func(e *Engine) {
		if sync > 0 {
			e.syncInterval = sync
		}
		if render > 0 {
			e.renderInterval = render
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine. Bind must be called before Start.
func New(remote RemoteStore, c *cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		remote:         remote,
		cache:          c,
		online:         true, // optimistic until the first probe says otherwise
		syncInterval:   30 * time.Second,
		renderInterval: 10 * time.Second,
		now:            time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Bind attaches the working set the engine reconciles against.
func (e *Engine) Bind(src Source) {
	e.src = src
}

// Online reports the current connectivity assumption.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// QueueLen reports the pending-operation backlog.
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Start runs the startup sequence synchronously - probe, load, persist,
// drain leftovers - then launches the periodic timers. Callers observe a
// fully loaded working set when Start returns.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.probeLocked()
	// recover the leftover queue before the first persist so the load
	// cannot clobber it
	e.queue = e.cache.LoadQueue()
	e.loadLocked()
	if e.online {
		e.drainLocked()
	}
	e.mu.Unlock()
	e.src.Render()

	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.run(ctx)
	logger.Info("engine_started", "online", e.Online(), "queued", e.QueueLen())
}

// Stop halts the periodic timers and waits for them to exit. In-flight
// network calls are not canceled; a slow call simply delays shutdown.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	logger.Info("engine_stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	syncTick := time.NewTicker(e.syncInterval)
	renderTick := time.NewTicker(e.renderInterval)
	defer syncTick.Stop()
	defer renderTick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-syncTick.C:
			e.SyncNow()
		case <-renderTick.C:
			// memory-only refresh; never touches the network
			e.src.Render()
		}
	}
}

// SyncNow runs one full cycle: connectivity probe, then (when online) a
// remote reload and a queue drain.
func (e *Engine) SyncNow() {
	e.mu.Lock()
	e.probeLocked()
	if e.online {
		e.loadLocked()
		e.drainLocked()
	}
	e.mu.Unlock()
	e.src.Render()
}

// SubmitCreate attempts to deliver a freshly created letter. The letter is
// already in the working set; on success its local flag is cleared. A
// transport fault flips the engine offline; a delivered-but-rejected write
// does not, connectivity is fine in that case. Either way the create is
// queued. Returns whether the write landed remotely.
func (e *Engine) SubmitCreate(letter models.Letter) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.online {
		ok, err := e.remote.CreateLetter(letter)
		if err == nil && ok {
			e.src.MarkLocal(letter.ID, false)
			e.persistLocked()
			logger.Info("letter_saved_remote", "id", letter.ID)
			return true
		}
		if err != nil {
			e.setOfflineLocked("create", err)
		} else {
			logger.Warn("letter_rejected_remote", "id", letter.ID)
		}
	}
	letter.Local = true
	e.src.MarkLocal(letter.ID, true)
	e.queue = append(e.queue, models.PendingOp{Action: models.ActionCreate, Letter: letter})
	e.persistLocked()
	logger.Info("letter_queued", "id", letter.ID, "queued", len(e.queue))
	return false
}

// SubmitUpdate attempts to deliver a partial update already applied to the
// working set. On failure the full current record is queued for replay.
func (e *Engine) SubmitUpdate(id string, patch models.LetterPatch, full models.Letter) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.online {
		ok, err := e.remote.UpdateLetter(id, patch)
		if err == nil && ok {
			e.persistLocked()
			return true
		}
		if err != nil {
			e.setOfflineLocked("update", err)
		} else {
			logger.Warn("update_rejected_remote", "id", id)
		}
	}
	full.Local = true
	e.src.MarkLocal(id, true)
	e.queue = append(e.queue, models.PendingOp{Action: models.ActionUpdate, Letter: full})
	e.persistLocked()
	logger.Info("update_queued", "id", id, "queued", len(e.queue))
	return false
}

// PurgeExpired drops expired letters from the working set and persists the
// trimmed snapshot. Queue entries are never pruned here; a pending op for
// an expired letter keeps retrying until it lands.
func (e *Engine) PurgeExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	before := e.src.Snapshot()
	valid := models.FilterValid(before, e.now())
	removed := len(before) - len(valid)
	if removed > 0 {
		e.src.Replace(valid)
		e.persistLocked()
		logger.Info("expired_letters_purged", "removed", removed, "remaining", len(valid))
	}
	return removed
}

// probeLocked refreshes the connectivity assumption from one ping.
func (e *Engine) probeLocked() {
	was := e.online
	e.online = e.remote.Ping()
	if was != e.online {
		if e.online {
			transitions.WithLabelValues("online").Inc()
			logger.Info("connectivity_restored")
		} else {
			transitions.WithLabelValues("offline").Inc()
			logger.Warn("connectivity_lost")
		}
	}
	onlineGauge.Set(boolToFloat(e.online))
}

// loadLocked refreshes the working set: from the remote store when online,
// otherwise from the cache snapshot. Any remote fault falls back to the
// snapshot; load never surfaces an error.
func (e *Engine) loadLocked() {
	if e.online {
		letters, err := e.remote.ListLetters()
		if err == nil {
			valid := models.FilterValid(letters, e.now())
			e.src.Replace(e.withQueuedLocked(valid))
			e.persistLocked()
			logger.Info("letters_loaded_remote", "count", len(valid))
			return
		}
		e.setOfflineLocked("list", err)
	}
	letters := e.cache.LoadSnapshot()
	e.src.Replace(letters)
	// write the load-time expiry filtering back so expired letters do not
	// linger in the durable slot until some later save
	e.persistLocked()
	logger.Info("letters_loaded_cache", "count", len(letters))
}

// withQueuedLocked re-adds letters that only exist in the pending queue so
// a reload cannot drop a not-yet-synced write. Remote copies win when both
// sides have the letter (last-write-wins, no merge).
func (e *Engine) withQueuedLocked(remote []models.Letter) []models.Letter {
	if len(e.queue) == 0 {
		return remote
	}
	seen := make(map[string]struct{}, len(remote))
	for _, l := range remote {
		seen[l.ID] = struct{}{}
	}
	out := remote
	for _, op := range e.queue {
		if _, ok := seen[op.Letter.ID]; ok {
			continue
		}
		if op.Letter.Valid(e.now()) {
			out = append(out, op.Letter)
			seen[op.Letter.ID] = struct{}{}
		}
	}
	return out
}

// drainLocked replays pending operations strictly in FIFO order. Each
// delivered entry is removed and persisted one at a time so a crash
// mid-drain leaves a consistent queue. The first transport fault halts the
// whole drain; remaining entries wait for the next cycle so an operation is
// never skipped over a stuck earlier one. A delivered-but-rejected op
// (success=false) is dropped, not retried.
func (e *Engine) drainLocked() {
	if len(e.queue) == 0 {
		return
	}
	drainRuns.Inc()
	logger.Info("queue_drain_start", "queued", len(e.queue))
	for len(e.queue) > 0 {
		op := e.queue[0]
		var ok bool
		var err error
		switch op.Action {
		case models.ActionUpdate:
			ok, err = e.remote.UpdateLetter(op.Letter.ID, op.Letter)
		default:
			ok, err = e.remote.CreateLetter(op.Letter)
		}
		if err != nil {
			e.setOfflineLocked("drain", err)
			drainFailures.Inc()
			logger.Warn("queue_drain_halted", "id", op.Letter.ID, "remaining", len(e.queue))
			return
		}
		if !ok {
			logger.Warn("queued_op_rejected", "id", op.Letter.ID, "action", string(op.Action))
		} else {
			e.src.MarkLocal(op.Letter.ID, false)
			drainedOps.Inc()
			logger.Info("queued_op_synced", "id", op.Letter.ID, "action", string(op.Action))
		}
		e.queue = e.queue[1:]
		e.persistLocked()
	}
}

// persistLocked saves the working set and queue. Failures are logged, never
// propagated: losing the backup copy does not lose in-memory state.
func (e *Engine) persistLocked() {
	if err := e.cache.Save(e.src.Snapshot(), e.queue); err != nil {
		logger.Error("cache_save_failed", "error", err)
	}
}

func (e *Engine) setOfflineLocked(op string, err error) {
	if e.online {
		transitions.WithLabelValues("offline").Inc()
		logger.Warn("remote_call_failed", "op", op, "error", err)
	}
	e.online = false
	onlineGauge.Set(0)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
