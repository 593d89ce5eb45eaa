package editor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/folio/internal/debounce"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry[note]()
	store := newMemStore()
	calls := 0
	create := func() (*Editor[note], error) {
		calls++
		return newNoteEditor(store, debounce.NewFakeClock()), nil
	}

	e1, err := r.GetOrCreate("note:1", create)
	require.NoError(t, err)
	e2, err := r.GetOrCreate("note:1", create)
	require.NoError(t, err)
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, r.Len())

	_, err = r.GetOrCreate("note:2", func() (*Editor[note], error) { return nil, fmt.Errorf("load failed") })
	require.Error(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RemoveClosesEditor(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{}
	clock := debounce.NewFakeClock()
	e := newNoteEditor(store, clock)
	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))

	r := NewRegistry[note]()
	r.Put("note:1", e)
	require.NoError(t, e.Edit(func(n *note) { n.Title = "x" }))
	r.Remove("note:1")

	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, store.updateCount())
	_, ok := r.Get("note:1")
	assert.False(t, ok)
}

func TestRegistry_ShutdownFlushesPending(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{}
	e := newNoteEditor(store, debounce.NewFakeClock())
	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))

	r := NewRegistry[note]()
	r.Put("note:1", e)
	require.NoError(t, e.Edit(func(n *note) { n.Title = "unsaved" }))

	r.Shutdown()
	require.Equal(t, 1, store.updateCount())
	assert.Equal(t, "unsaved", store.updates[0].Title)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Rekey(t *testing.T) {
	r := NewRegistry[note]()
	e := newNoteEditor(newMemStore(), debounce.NewFakeClock())
	r.Put("draft:abc", e)

	assert.True(t, r.Rekey("draft:abc", "note:5"))
	_, ok := r.Get("draft:abc")
	assert.False(t, ok)
	got, ok := r.Get("note:5")
	require.True(t, ok)
	assert.Same(t, e, got)

	assert.False(t, r.Rekey("missing", "note:6"))
}

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func TestRegistry_EvictsIdleSessionsAndFlushes(t *testing.T) {
	store := newMemStore()
	store.items[1] = note{}
	clock := &stepClock{t: time.Unix(0, 0)}
	r := NewRegistry[note](WithIdleTimeout(time.Minute), WithNow(clock.now))

	e := newNoteEditor(store, debounce.NewFakeClock())
	id := int64(1)
	require.NoError(t, e.Load(context.Background(), &id))
	r.Put("note:1", e)
	require.NoError(t, e.Edit(func(n *note) { n.Title = "pending" }))

	clock.t = clock.t.Add(30 * time.Second)
	r.Put("draft:a", newNoteEditor(store, debounce.NewFakeClock()))
	assert.Equal(t, 2, r.Len())

	clock.t = clock.t.Add(45 * time.Second)
	r.Sweep()
	_, ok := r.Get("note:1")
	assert.False(t, ok)
	_, ok = r.Get("draft:a")
	assert.True(t, ok)

	require.Equal(t, 1, store.updateCount())
	assert.Equal(t, "pending", store.updates[0].Title)
	assert.False(t, e.Pending())
}

func TestRegistry_GetKeepsSessionAlive(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0)}
	r := NewRegistry[note](WithIdleTimeout(time.Minute), WithNow(clock.now))
	r.Put("draft:a", newNoteEditor(newMemStore(), debounce.NewFakeClock()))

	for range 5 {
		clock.t = clock.t.Add(40 * time.Second)
		_, ok := r.Get("draft:a")
		require.True(t, ok)
	}
	r.Sweep()
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_CapEvictsLeastRecentlyUsed(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0)}
	r := NewRegistry[note](WithIdleTimeout(0), WithMaxEditors(3), WithNow(clock.now))

	for i := range 3 {
		clock.t = clock.t.Add(time.Second)
		r.Put(fmt.Sprintf("draft:%d", i), newNoteEditor(newMemStore(), debounce.NewFakeClock()))
	}
	clock.t = clock.t.Add(time.Second)
	_, ok := r.Get("draft:0")
	require.True(t, ok)

	clock.t = clock.t.Add(time.Second)
	r.Put("draft:3", newNoteEditor(newMemStore(), debounce.NewFakeClock()))

	assert.Equal(t, 3, r.Len())
	_, ok = r.Get("draft:1")
	assert.False(t, ok, "least recently used session should be evicted")
	for _, key := range []string{"draft:0", "draft:2", "draft:3"} {
		_, ok := r.Get(key)
		assert.True(t, ok, key)
	}
}
