package editor

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultIdleTimeout is how long an untouched session is kept.
	DefaultIdleTimeout = 30 * time.Minute
	// DefaultMaxEditors caps the live sessions of one registry.
	DefaultMaxEditors = 100
)

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	idle time.Duration
	max  int
	now  func() time.Time
}

// WithIdleTimeout sets how long an untouched session survives. Zero keeps
// sessions until they are evicted by the size cap.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(c *registryConfig) {
		if d >= 0 {
			c.idle = d
		}
	}
}

// WithMaxEditors caps the number of live sessions.
func WithMaxEditors(n int) RegistryOption {
	return func(c *registryConfig) {
		if n > 0 {
			c.max = n
		}
	}
}

// WithNow replaces the wall clock used for idle tracking.
func WithNow(now func() time.Time) RegistryOption {
	return func(c *registryConfig) {
		if now != nil {
			c.now = now
		}
	}
}

type entry[F comparable] struct {
	editor *Editor[F]
	used   time.Time
}

// Registry keeps one live editor per key so successive requests for the same
// entity reach the same debouncer. Sessions untouched for the idle timeout,
// and the least recently used ones beyond the size cap, are evicted whenever
// a new session is stored. Eviction runs any pending auto-save first.
type Registry[F comparable] struct {
	cfg registryConfig

	mu      sync.Mutex
	editors map[string]*entry[F]
}

// NewRegistry returns an empty registry.
func NewRegistry[F comparable](opts ...RegistryOption) *Registry[F] {
	cfg := registryConfig{idle: DefaultIdleTimeout, max: DefaultMaxEditors, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry[F]{cfg: cfg, editors: make(map[string]*entry[F])}
}

// Get returns the editor for key and marks it used.
func (r *Registry[F]) Get(key string) (*Editor[F], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.editors[key]
	if !ok {
		return nil, false
	}
	ent.used = r.cfg.now()
	return ent.editor, true
}

// GetOrCreate returns the editor for key, creating it with create when
// missing. create runs outside the lock; if another caller wins the race the
// loser's editor is closed and the winner returned.
func (r *Registry[F]) GetOrCreate(key string, create func() (*Editor[F], error)) (*Editor[F], error) {
	if e, ok := r.Get(key); ok {
		return e, nil
	}
	e, err := create()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.editors[key]; ok {
		existing.used = r.cfg.now()
		r.mu.Unlock()
		e.Close()
		return existing.editor, nil
	}
	r.editors[key] = &entry[F]{editor: e, used: r.cfg.now()}
	evicted := r.sweepLocked(key)
	r.mu.Unlock()

	release(evicted)
	return e, nil
}

// Put stores e under key, closing any editor it replaces.
func (r *Registry[F]) Put(key string, e *Editor[F]) {
	r.mu.Lock()
	if old, ok := r.editors[key]; ok && old.editor != e {
		old.editor.Close()
	}
	r.editors[key] = &entry[F]{editor: e, used: r.cfg.now()}
	evicted := r.sweepLocked(key)
	r.mu.Unlock()

	release(evicted)
}

// Rekey moves the editor stored under from to to, without closing it. An
// editor already stored under to is closed.
func (r *Registry[F]) Rekey(from, to string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.editors[from]
	if !ok {
		return false
	}
	delete(r.editors, from)
	if old, exists := r.editors[to]; exists && old.editor != ent.editor {
		old.editor.Close()
	}
	ent.used = r.cfg.now()
	r.editors[to] = ent
	return true
}

// Remove closes and forgets the editor for key.
func (r *Registry[F]) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ent, ok := r.editors[key]; ok {
		ent.editor.Close()
		delete(r.editors, key)
	}
}

// Len returns the number of live editors.
func (r *Registry[F]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}

// Sweep evicts idle sessions now.
func (r *Registry[F]) Sweep() {
	r.mu.Lock()
	evicted := r.sweepLocked("")
	r.mu.Unlock()
	release(evicted)
}

// sweepLocked drops idle sessions, then the least recently used ones beyond
// the cap. keep is never dropped. Caller holds mu.
func (r *Registry[F]) sweepLocked(keep string) []*Editor[F] {
	var evicted []*Editor[F]
	if r.cfg.idle > 0 {
		cutoff := r.cfg.now().Add(-r.cfg.idle)
		for key, ent := range r.editors {
			if key != keep && ent.used.Before(cutoff) {
				evicted = append(evicted, ent.editor)
				delete(r.editors, key)
			}
		}
	}
	if over := len(r.editors) - r.cfg.max; over > 0 {
		keys := make([]string, 0, len(r.editors))
		for key := range r.editors {
			if key != keep {
				keys = append(keys, key)
			}
		}
		sort.Slice(keys, func(i, j int) bool {
			return r.editors[keys[i]].used.Before(r.editors[keys[j]].used)
		})
		for _, key := range keys[:min(over, len(keys))] {
			evicted = append(evicted, r.editors[key].editor)
			delete(r.editors, key)
		}
	}
	return evicted
}

// release writes what evicted editors still have pending and stops them.
func release[F comparable](editors []*Editor[F]) {
	for _, e := range editors {
		e.Flush()
		e.Close()
	}
}

// Shutdown runs every pending auto-save and forgets all editors.
func (r *Registry[F]) Shutdown() {
	r.mu.Lock()
	editors := r.editors
	r.editors = make(map[string]*entry[F])
	r.mu.Unlock()

	for _, ent := range editors {
		ent.editor.Flush()
	}
}
