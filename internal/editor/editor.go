// Package editor implements the detail-screen editing session shared by
// features and template prompts: load, edit with debounced auto-save, manual
// save, delete.
package editor

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/debounce"
)

// DefaultDelay is the auto-save quiet period.
const DefaultDelay = time.Second

var (
	// ErrSaveInFlight is returned by Save while another manual save runs.
	ErrSaveInFlight = stderrors.New("a save is already in progress")
	// ErrNotBound is returned by operations that need a persisted entity.
	ErrNotBound = stderrors.New("entity has not been saved yet")
	// ErrLoading is returned while the initial snapshot is being fetched.
	ErrLoading = stderrors.New("entity is still loading")
)

// State is the editor lifecycle state.
type State int

const (
	Loading State = iota
	Draft
	Bound
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Draft:
		return "draft"
	case Bound:
		return "bound"
	}
	return "unknown"
}

// Store persists one kind of entity.
type Store[F comparable] interface {
	Fetch(ctx context.Context, id int64) (F, error)
	Create(ctx context.Context, fields F) (int64, error)
	Update(ctx context.Context, id int64, fields F) error
	Delete(ctx context.Context, id int64) error
}

// Locations maps entities to screen paths.
type Locations struct {
	Detail func(id int64) string
	List   string
}

// Option configures an Editor.
type Option func(*config)

type config struct {
	delay       time.Duration
	clock       debounce.Clock
	logger      *zap.Logger
	saveTimeout time.Duration
}

// WithDelay sets the auto-save quiet period.
func WithDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithClock replaces the wall clock used by the auto-save debouncer.
func WithClock(clock debounce.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithLogger sets the logger for background save failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSaveTimeout bounds each background save.
func WithSaveTimeout(d time.Duration) Option {
	return func(c *config) { c.saveTimeout = d }
}

// Editor is one editing session over an entity with fields F.
//
// All writes, debounced or manual, hold writeMu, so an auto-save can never
// interleave with a manual save.
type Editor[F comparable] struct {
	store  Store[F]
	locs   Locations
	logger *zap.Logger
	deb    *debounce.Debouncer[struct{}]
	cfg    config

	writeMu sync.Mutex

	mu      sync.Mutex
	state   State
	id      int64
	fields  F
	saved   F
	saving  bool
	lastErr error
}

// New returns an Editor in the Loading state.
func New[F comparable](store Store[F], locs Locations, opts ...Option) *Editor[F] {
	cfg := config{delay: DefaultDelay, logger: zap.NewNop(), saveTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Editor[F]{store: store, locs: locs, logger: cfg.logger, cfg: cfg, state: Loading}

	var debOpts []debounce.Option
	if cfg.clock != nil {
		debOpts = append(debOpts, debounce.WithClock(cfg.clock))
	}
	e.deb = debounce.New(cfg.delay, func(struct{}) { e.autosave() }, debOpts...)
	return e
}

// Load starts the session. A nil id opens an empty draft; otherwise the
// entity is fetched and the editor binds to it.
func (e *Editor[F]) Load(ctx context.Context, id *int64) error {
	e.deb.Stop()

	var zero F
	if id == nil {
		e.mu.Lock()
		e.state, e.id, e.fields, e.saved = Draft, 0, zero, zero
		e.mu.Unlock()
		return nil
	}

	e.mu.Lock()
	e.state = Loading
	e.mu.Unlock()

	fields, err := e.store.Fetch(ctx, *id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state, e.id, e.fields, e.saved = Bound, *id, fields, fields
	return nil
}

// Edit applies fn to the local fields. For a bound entity it schedules an
// auto-save.
func (e *Editor[F]) Edit(fn func(*F)) error {
	e.mu.Lock()
	if e.state == Loading {
		e.mu.Unlock()
		return ErrLoading
	}
	fn(&e.fields)
	bound := e.state == Bound
	e.mu.Unlock()

	if bound {
		e.deb.Call(struct{}{})
	}
	return nil
}

// autosave writes the fields if they differ from the last saved snapshot.
func (e *Editor[F]) autosave() {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	if e.state != Bound || e.fields == e.saved {
		e.mu.Unlock()
		return
	}
	id, fields := e.id, e.fields
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.saveTimeout)
	defer cancel()

	err := e.store.Update(ctx, id, fields)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
	if err != nil {
		e.logger.Warn("auto-save failed", zap.Int64("id", id), zap.Error(err))
		return
	}
	if e.id == id {
		e.saved = fields
	}
}

// Save writes immediately, bypassing the debounce. A draft is created and
// the editor binds to the new id. It returns the entity's detail location.
func (e *Editor[F]) Save(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.state == Loading {
		e.mu.Unlock()
		return "", ErrLoading
	}
	if e.saving {
		e.mu.Unlock()
		return "", ErrSaveInFlight
	}
	e.saving = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.saving = false
		e.mu.Unlock()
	}()

	// The manual write covers anything still pending.
	e.deb.Stop()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	state, id, fields := e.state, e.id, e.fields
	e.mu.Unlock()

	var err error
	if state == Draft {
		id, err = e.store.Create(ctx, fields)
	} else {
		err = e.store.Update(ctx, id, fields)
	}

	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
	if err != nil {
		return "", err
	}

	e.bind(id, fields)
	return e.locs.Detail(id), nil
}

// Bind attaches the editor to a persisted entity whose current state is the
// editor's fields.
func (e *Editor[F]) Bind(id int64) {
	e.mu.Lock()
	fields := e.fields
	e.mu.Unlock()
	e.bind(id, fields)
}

func (e *Editor[F]) bind(id int64, saved F) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state, e.id, e.saved = Bound, id, saved
}

// Delete removes the bound entity and returns the list location. On failure
// the error is logged and returned; the editor stays bound.
func (e *Editor[F]) Delete(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.state != Bound {
		e.mu.Unlock()
		return "", ErrNotBound
	}
	id := e.id
	e.mu.Unlock()

	e.deb.Stop()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.store.Delete(ctx, id); err != nil {
		e.logger.Error("delete failed", zap.Int64("id", id), zap.Error(err))
		return "", err
	}

	var zero F
	e.mu.Lock()
	e.state, e.id, e.fields, e.saved = Draft, 0, zero, zero
	e.mu.Unlock()
	return e.locs.List, nil
}

// Close drops any pending auto-save.
func (e *Editor[F]) Close() {
	e.deb.Stop()
}

// Flush runs a pending auto-save now.
func (e *Editor[F]) Flush() {
	e.deb.Flush()
}

// State returns the lifecycle state.
func (e *Editor[F]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ID returns the bound entity id.
func (e *Editor[F]) ID() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id, e.state == Bound
}

// Fields returns a copy of the local fields.
func (e *Editor[F]) Fields() F {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields
}

// Dirty reports whether the local fields differ from the last saved snapshot.
func (e *Editor[F]) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields != e.saved
}

// Pending reports whether an auto-save is scheduled.
func (e *Editor[F]) Pending() bool {
	return e.deb.Pending()
}

// LastError returns the result of the most recent write.
func (e *Editor[F]) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Location returns the detail location when bound, else the list location.
func (e *Editor[F]) Location() string {
	if id, ok := e.ID(); ok {
		return e.locs.Detail(id)
	}
	return e.locs.List
}
