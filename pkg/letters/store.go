// Package letters is the public facade over the sync core: an in-memory
// authoritative view with optimistic mutation methods and UI callbacks.
//
// Conflict policy is last-write-wins: the most recent writer to touch an
// in-memory record overwrites it, with no per-field versioning or merge.
package letters

import (
	"sync"
	"time"

	"emberpost/pkg/logger"
	"emberpost/pkg/models"
)

// Caller-facing copy. Create distinguishes a write that landed remotely
// from one captured locally and queued.
const (
	MsgCreatedRemote = "Letter cast into the fire. Everyone will see it."
	MsgCreatedLocal  = "Letter saved locally and queued for sync."

	errLetterNotFound = "letter not found"
)

// Syncer is the write path the facade delegates to.
type Syncer interface {
	Online() bool
	SubmitCreate(letter models.Letter) bool
	SubmitUpdate(id string, patch models.LetterPatch, full models.Letter) bool
}

// Result is the uniform outcome shape for all mutations.
type Result struct {
	Success bool           `json:"success"`
	Letter  *models.Letter `json:"letter,omitempty"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
}

// RenderFunc receives the full working set whenever state changes.
type RenderFunc func(letters []models.Letter)

// NotifyFunc receives user-facing messages, decoupled from the internal
// error taxonomy. Level is one of "info", "success", "warning".
type NotifyFunc func(message, level string)

// Store owns the in-memory letter set.
type Store struct {
	mu      sync.RWMutex
	letters []models.Letter

	syncer   Syncer
	onRender RenderFunc
	onNotify NotifyFunc
	now      func() time.Time
}

// Option tunes a new store.
type Option func(*Store)

// WithRender sets the UI render callback.
func WithRender(fn RenderFunc) Option {
	return func(s *Store) { s.onRender = fn }
}

// WithNotify sets the user-notification callback.
func WithNotify(fn NotifyFunc) Option {
	return func(s *Store) { s.onNotify = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New builds a store delegating writes to the given syncer.
func New(syncer Syncer, opts ...Option) *Store {
	s := &Store{syncer: syncer, now: time.Now, letters: []models.Letter{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create constructs a new letter and submits it. The letter is visible in
// the working set immediately regardless of the remote outcome; the result
// message tells the caller which way the write went.
func (s *Store) Create(text string) Result {
	letter := models.NewLetter(text, s.now())
	letter.Local = !s.syncer.Online()

	s.mu.Lock()
	s.letters = append([]models.Letter{letter}, s.letters...)
	s.mu.Unlock()

	landed := s.syncer.SubmitCreate(letter)

	msg := MsgCreatedLocal
	level := "info"
	if landed {
		msg = MsgCreatedRemote
		level = "success"
	}
	out, _ := s.GetByID(letter.ID)
	s.Render()
	s.notify(msg, level)
	return Result{Success: true, Letter: &out, Message: msg}
}

// Update merges a partial patch into the letter and submits it. Unknown
// IDs fail without touching the queue or the cache.
func (s *Store) Update(id string, patch models.LetterPatch) Result {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Result{Success: false, Error: errLetterNotFound}
	}
	s.letters[idx].Apply(patch)
	full := s.letters[idx]
	s.mu.Unlock()

	s.syncer.SubmitUpdate(id, patch, full)
	s.Render()
	return Result{Success: true}
}

// AddComment appends a comment and routes it through Update. The 24h
// comment window is the UI collaborator's rule; the core stores whatever
// arrives.
func (s *Store) AddComment(id, text string) Result {
	s.mu.RLock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.RUnlock()
		return Result{Success: false, Error: errLetterNotFound}
	}
	comments := append([]models.Comment{}, s.letters[idx].Comments...)
	s.mu.RUnlock()

	comments = append(comments, models.NewComment(text, s.now()))
	return s.Update(id, models.LetterPatch{Comments: comments})
}

// AddReaction increments the named reaction counter, creating it at zero
// when absent, and routes through Update.
func (s *Store) AddReaction(id, kind string) Result {
	s.mu.RLock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.RUnlock()
		return Result{Success: false, Error: errLetterNotFound}
	}
	reactions := make(map[string]int, len(s.letters[idx].Reactions)+1)
	for k, v := range s.letters[idx].Reactions {
		reactions[k] = v
	}
	s.mu.RUnlock()

	reactions[kind]++
	return s.Update(id, models.LetterPatch{Reactions: reactions})
}

// GetAll returns the working set sorted newest first. Expiry filtering is a
// load-time concern, not a read-time one.
func (s *Store) GetAll() []models.Letter {
	s.mu.RLock()
	out := append([]models.Letter{}, s.letters...)
	s.mu.RUnlock()
	models.SortNewestFirst(out)
	return out
}

// GetByID returns one letter by ID.
func (s *Store) GetByID(id string) (models.Letter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.letters[idx], true
	}
	return models.Letter{}, false
}

// Snapshot returns a copy of the working set in insertion order.
func (s *Store) Snapshot() []models.Letter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Letter{}, s.letters...)
}

// Replace installs a freshly loaded set, dropping whatever was in memory.
func (s *Store) Replace(letters []models.Letter) {
	s.mu.Lock()
	s.letters = append([]models.Letter{}, letters...)
	s.mu.Unlock()
}

// MarkLocal flips the unconfirmed flag on one letter; a no-op for unknown
// IDs (the letter may have been purged between enqueue and drain).
func (s *Store) MarkLocal(id string, local bool) {
	s.mu.Lock()
	if idx := s.indexLocked(id); idx >= 0 {
		s.letters[idx].Local = local
	}
	s.mu.Unlock()
}

// Render pushes the current set to the UI callback, if any.
func (s *Store) Render() {
	if s.onRender == nil {
		return
	}
	s.onRender(s.GetAll())
}

func (s *Store) notify(message, level string) {
	if s.onNotify == nil {
		return
	}
	s.onNotify(message, level)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.letters {
		if s.letters[i].ID == id {
			return i
		}
	}
	logger.Debug("letter_lookup_miss", "id", id)
	return -1
}
