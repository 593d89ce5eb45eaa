package editor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/api/apitest"
	"github.com/hpungsan/folio/internal/debounce"
	"github.com/hpungsan/folio/internal/ops"
)

type note struct {
	Title string
	Body  string
}

// memStore records every write.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	items   map[int64]note
	creates int
	updates []note
	deletes int
	failUpd error
	failDel error
	block   chan struct{} // when set, Create waits on it
	entered chan struct{}
}

func newMemStore() *memStore {
	return &memStore{nextID: 100, items: map[int64]note{}}
}

func (s *memStore) Fetch(_ context.Context, id int64) (note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return note{}, fmt.Errorf("no item %d", id)
	}
	return n, nil
}

func (s *memStore) Create(_ context.Context, n note) (int64, error) {
	if s.block != nil {
		s.entered <- struct{}{}
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.creates++
	s.items[s.nextID] = n
	return s.nextID, nil
}

func (s *memStore) Update(_ context.Context, id int64, n note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, n)
	if s.failUpd != nil {
		return s.failUpd
	}
	s.items[id] = n
	return nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.failDel != nil {
		return s.failDel
	}
	delete(s.items, id)
	return nil
}

func (s *memStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

var noteLocations = Locations{
	Detail: func(id int64) string { return fmt.Sprintf("/notes/info?id=%d", id) },
	List:   "/notes",
}

func newNoteEditor(store *memStore, clock *debounce.FakeClock) *Editor[note] {
	return New[note](store, noteLocations, WithClock(clock), WithDelay(time.Second))
}

func TestLoad_DraftAndBound(t *testing.T) {
	store := newMemStore()
	store.items[7] = note{Title: "seven"}
	e := newNoteEditor(store, debounce.NewFakeClock())
	assert.Equal(t, Loading, e.State())

	require.NoError(t, e.Load(context.Background(), nil))
	assert.Equal(t, Draft, e.State())
	assert.Equal(t, note{}, e.Fields())

	id := int64(7)
	require.NoError(t, e.Load(context.Background(), &id))
	assert.Equal(t, Bound, e.State())
	assert.Equal(t, "seven", e.Fields().Title)
	got, ok := e.ID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), got)
	assert.Equal(t, "/notes/info?id=7", e.Location())
}

func TestLoad_FetchError(t *testing.T) {
	e := newNoteEditor(newMemStore(), debounce.NewFakeClock())
	id := int64(1)
	require.Error(t, e.Load(context.Background(), &id))
	assert.ErrorIs(t, e.Edit(func(n *note) {}), ErrLoading)
}

func TestAutosave_Debounced(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{Title: "a"}
	clock := debounce.NewFakeClock()
	e := newNoteEditor(store, clock)
	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))

	require.NoError(t, e.Edit(func(n *note) { n.Title = "ab" }))
	clock.Advance(400 * time.Millisecond)
	require.NoError(t, e.Edit(func(n *note) { n.Title = "abc" }))
	assert.True(t, e.Pending())
	assert.True(t, e.Dirty())

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, store.updateCount())

	clock.Advance(time.Millisecond)
	require.Equal(t, 1, store.updateCount())
	assert.Equal(t, note{Title: "abc"}, store.updates[0])
	assert.False(t, e.Dirty())
	assert.NoError(t, e.LastError())
}

func TestAutosave_NoChangeIsNoop(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{Title: "same"}
	clock := debounce.NewFakeClock()
	e := newNoteEditor(store, clock)
	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))

	require.NoError(t, e.Edit(func(n *note) { n.Title = "changed" }))
	require.NoError(t, e.Edit(func(n *note) { n.Title = "same" }))
	clock.Advance(5 * time.Second)

	assert.Equal(t, 0, store.updateCount(), "unchanged fields produce zero writes")
}

func TestAutosave_NotInDraft(t *testing.T) {
	store := newMemStore()
	clock := debounce.NewFakeClock()
	e := newNoteEditor(store, clock)
	require.NoError(t, e.Load(context.Background(), nil))

	require.NoError(t, e.Edit(func(n *note) { n.Title = "new" }))
	assert.False(t, e.Pending())
	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, store.creates)
	assert.Equal(t, 0, store.updateCount())
}

func TestAutosave_FailureKeepsDirty(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{}
	store.failUpd = fmt.Errorf("backend down")
	clock := debounce.NewFakeClock()
	e := newNoteEditor(store, clock)
	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))

	require.NoError(t, e.Edit(func(n *note) { n.Body = "x" }))
	clock.Advance(time.Second)
	assert.EqualError(t, e.LastError(), "backend down")
	assert.True(t, e.Dirty())
}

func TestSave_DraftCreatesAndBinds(t *testing.T) {
	store := newMemStore()
	clock := debounce.NewFakeClock()
	e := newNoteEditor(store, clock)
	require.NoError(t, e.Load(context.Background(), nil))
	require.NoError(t, e.Edit(func(n *note) { n.Title = "fresh" }))

	loc, err := e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/notes/info?id=101", loc)
	assert.Equal(t, Bound, e.State())
	assert.Equal(t, 1, store.creates)
	assert.False(t, e.Dirty())

	// Now bound, edits auto-save.
	require.NoError(t, e.Edit(func(n *note) { n.Body = "more" }))
	clock.Advance(time.Second)
	assert.Equal(t, 1, store.updateCount())
}

func TestSave_BoundAlwaysWritesAndCancelsPending(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{Title: "t"}
	clock := debounce.NewFakeClock()
	e := newNoteEditor(store, clock)
	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))

	_, err := e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.updateCount(), "manual save writes even when unchanged")

	require.NoError(t, e.Edit(func(n *note) { n.Title = "t2" }))
	_, err = e.Save(context.Background())
	require.NoError(t, err)
	clock.Advance(5 * time.Second)
	assert.Equal(t, 2, store.updateCount(), "pending auto-save is superseded")
}

func TestSave_InFlight(t *testing.T) {
	store := newMemStore()
	store.block = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	e := newNoteEditor(store, debounce.NewFakeClock())
	require.NoError(t, e.Load(context.Background(), nil))
	require.NoError(t, e.Edit(func(n *note) { n.Title = "x" }))

	done := make(chan error, 1)
	go func() {
		_, err := e.Save(context.Background())
		done <- err
	}()
	<-store.entered

	_, err := e.Save(context.Background())
	assert.ErrorIs(t, err, ErrSaveInFlight)

	close(store.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, store.creates)
}

func TestDelete(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{Title: "t"}
	clock := debounce.NewFakeClock()
	e := newNoteEditor(store, clock)

	require.NoError(t, e.Load(context.Background(), nil))
	_, err := e.Delete(context.Background())
	assert.ErrorIs(t, err, ErrNotBound)

	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))
	require.NoError(t, e.Edit(func(n *note) { n.Title = "pending" }))

	loc, err := e.Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/notes", loc)
	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, store.updateCount(), "delete cancels the pending save")
	assert.Equal(t, "/notes", e.Location())
}

func TestDelete_FailureStaysBound(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{}
	store.failDel = fmt.Errorf("nope")
	e := newNoteEditor(store, debounce.NewFakeClock())
	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))

	_, err := e.Delete(context.Background())
	require.EqualError(t, err, "nope")
	assert.Equal(t, Bound, e.State())
	assert.Equal(t, 1, store.deletes)
}

func TestClose_DropsPending(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{}
	clock := debounce.NewFakeClock()
	e := newNoteEditor(store, clock)
	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))

	require.NoError(t, e.Edit(func(n *note) { n.Body = "x" }))
	e.Close()
	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, store.updateCount())
}

func TestFeatureEditor_CreateInFolder(t *testing.T) {
	b := apitest.New(t)
	for i := 0; i < 6; i++ {
		b.AddPrompt(fmt.Sprintf("p%d", i), "")
	}
	folderID := b.AddFolder("billing", nil)
	require.Equal(t, int64(7), folderID)

	e := New[ops.FeatureFields](FeatureStore{Services: b.Services(), FolderID: &folderID}, FeatureLocations,
		WithClock(debounce.NewFakeClock()))
	require.NoError(t, e.Load(context.Background(), nil))
	require.NoError(t, e.Edit(func(f *ops.FeatureFields) { f.Name = "invoice" }))

	loc, err := e.Save(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, b.CallCount(http.MethodPost, "/api/folders/7/features"))
	assert.Equal(t, 0, b.CallCount(http.MethodPost, "/api/features"))
	id, ok := e.ID()
	require.True(t, ok)
	assert.Equal(t, int64(8), id)
	assert.Equal(t, "/features/info?id=8", loc)

	stored, found := b.Feature(id)
	require.True(t, found)
	assert.Equal(t, folderID, *stored.FolderID)
}

func TestFeatureEditor_AutosaveAgainstBackend(t *testing.T) {
	b := apitest.New(t)
	id := b.AddFeature(api.Feature{Name: "login"})
	clock := debounce.NewFakeClock()

	e := New[ops.FeatureFields](FeatureStore{Services: b.Services()}, FeatureLocations, WithClock(clock))
	require.NoError(t, e.Load(context.Background(), &id))
	b.ResetCalls()

	require.NoError(t, e.Edit(func(f *ops.FeatureFields) { f.Name = "login" }))
	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, b.WriteCount(), "no-op auto-save sends nothing")

	require.NoError(t, e.Edit(func(f *ops.FeatureFields) { f.Description = "sign in" }))
	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, b.WriteCount())
	got, _ := b.Feature(id)
	assert.Equal(t, "sign in", got.Description)
}

func TestFeatureStore_PromptPreview(t *testing.T) {
	b := apitest.New(t)
	pid := b.AddPrompt("tmpl", "# Hello")
	s := FeatureStore{Services: b.Services()}

	p, err := s.PromptPreview(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, "# Hello", p.PromptContent)

	p, err = s.PromptPreview(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPromptEditor(t *testing.T) {
	b := apitest.New(t)
	e := New[ops.PromptFields](PromptStore{Services: b.Services()}, PromptLocations, WithClock(debounce.NewFakeClock()))
	require.NoError(t, e.Load(context.Background(), nil))
	require.NoError(t, e.Edit(func(p *ops.PromptFields) {
		p.Name = "outline"
		p.PromptContent = "body"
	}))

	loc, err := e.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/template-prompts/info?id=1", loc)

	loc, err = e.Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/template-prompts", loc)
	_, ok := b.Prompt(1)
	assert.False(t, ok)
}

func TestFeatureEditor_CreateWithoutIDStaysDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()
	svc := api.NewServices(api.New(srv.URL))

	e := New[ops.FeatureFields](FeatureStore{Services: svc}, FeatureLocations, WithClock(debounce.NewFakeClock()))
	require.NoError(t, e.Load(context.Background(), nil))
	require.NoError(t, e.Edit(func(f *ops.FeatureFields) { f.Name = "Login" }))

	loc, err := e.Save(context.Background())
	require.Error(t, err)
	assert.Empty(t, loc)
	assert.Equal(t, Draft, e.State())
	_, bound := e.ID()
	assert.False(t, bound)
}
