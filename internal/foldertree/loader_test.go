package foldertree

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/api/apitest"
	"github.com/hpungsan/folio/internal/errors"
)

// fakeSource serves children from a map and records which folders were asked for.
type fakeSource struct {
	mu       sync.Mutex
	children map[int64][]api.Folder
	fail     map[int64]error
	calls    []int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{children: map[int64][]api.Folder{}, fail: map[int64]error{}}
}

func (s *fakeSource) Children(_ context.Context, id int64) ([]api.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	if err := s.fail[id]; err != nil {
		return nil, err
	}
	return s.children[id], nil
}

func (s *fakeSource) fetched(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c == id {
			return true
		}
	}
	return false
}

func folder(id int64, name string, childIDs ...int64) api.Folder {
	f := api.Folder{ID: id, Name: name}
	for _, c := range childIDs {
		f.ChildFolders = append(f.ChildFolders, api.FolderSummary{ID: c})
	}
	return f
}

func names(nodes []*Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Folder.Name)
	}
	return out
}

// A=1, B=2, C=3 under A, D=4 under C.
func abcdSource() (*fakeSource, []api.Folder) {
	src := newFakeSource()
	src.children[1] = []api.Folder{folder(3, "C", 4)}
	src.children[3] = []api.Folder{folder(4, "D")}
	return src, []api.Folder{folder(1, "A", 3), folder(2, "B")}
}

func TestLoad_DepthBound(t *testing.T) {
	src, roots := abcdSource()

	tree, err := NewLoader(src, WithMaxDepth(2)).Load(context.Background(), roots)
	require.NoError(t, err)

	require.Equal(t, []string{"A", "B"}, names(tree.Roots))
	a := tree.Roots[0]
	assert.Equal(t, 1, a.Depth)
	require.Equal(t, []string{"C"}, names(a.Children))

	c := a.Children[0]
	assert.Equal(t, 2, c.Depth)
	assert.Nil(t, c.Children)
	assert.True(t, c.Truncated, "C has children beyond the bound")
	assert.False(t, src.fetched(3), "children of C must never be fetched")
	assert.Empty(t, tree.Failures)
}

func TestLoad_DefaultDepthIsTwo(t *testing.T) {
	src, roots := abcdSource()
	l := NewLoader(src)
	assert.Equal(t, DefaultMaxDepth, l.MaxDepth())

	_, err := l.Load(context.Background(), roots)
	require.NoError(t, err)
	assert.False(t, src.fetched(3))
}

func TestLoad_Unbounded(t *testing.T) {
	src, roots := abcdSource()

	tree, err := NewLoader(src, WithMaxDepth(0)).Load(context.Background(), roots)
	require.NoError(t, err)

	d := tree.Find(4)
	require.NotNil(t, d)
	assert.Equal(t, 3, d.Depth)
	assert.False(t, tree.Find(3).Truncated)
}

func TestLoad_PartialFailure(t *testing.T) {
	src, roots := abcdSource()
	src.fail[2] = fmt.Errorf("boom")

	tree, err := NewLoader(src).Load(context.Background(), roots)
	require.NoError(t, err)

	a, b := tree.Roots[0], tree.Roots[1]
	require.Equal(t, []string{"C"}, names(a.Children), "A's branch is complete")
	assert.False(t, a.LoadFailed)

	assert.Nil(t, b.Children)
	assert.True(t, b.LoadFailed)
	require.Len(t, tree.Failures, 1)
	assert.Equal(t, int64(2), tree.Failures[0].FolderID)
	assert.EqualError(t, tree.Failures[0].Err, "boom")
}

func TestLoad_FailuresInDisplayOrder(t *testing.T) {
	src := newFakeSource()
	roots := []api.Folder{folder(1, "A"), folder(2, "B"), folder(3, "C")}
	for _, id := range []int64{1, 2, 3} {
		src.fail[id] = fmt.Errorf("fail %d", id)
	}

	tree, err := NewLoader(src).Load(context.Background(), roots)
	require.NoError(t, err)
	require.Len(t, tree.Failures, 3)
	for i, f := range tree.Failures {
		assert.Equal(t, int64(i+1), f.FolderID)
	}
}

func TestLoad_CycleDetected(t *testing.T) {
	src := newFakeSource()
	src.children[1] = []api.Folder{folder(2, "B", 1)}
	src.children[2] = []api.Folder{folder(1, "A", 2)}

	_, err := NewLoader(src, WithMaxDepth(0)).Load(context.Background(), []api.Folder{folder(1, "A", 2)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCycleDetected))

	fErr := errors.As(err)
	assert.Equal(t, int64(1), fErr.Details["folder_id"])
	assert.Equal(t, []int64{1, 2, 1}, fErr.Details["path"])
}

func TestLoad_SameFolderInSeparateBranchesIsNotACycle(t *testing.T) {
	src := newFakeSource()
	src.children[1] = []api.Folder{folder(9, "shared")}
	src.children[2] = []api.Folder{folder(9, "shared")}

	tree, err := NewLoader(src, WithMaxDepth(0)).Load(context.Background(), []api.Folder{folder(1, "A", 9), folder(2, "B", 9)})
	require.NoError(t, err)
	assert.Len(t, tree.Roots[0].Children, 1)
	assert.Len(t, tree.Roots[1].Children, 1)
}

func TestLoad_OpenStateAndNilChildren(t *testing.T) {
	src, roots := abcdSource()
	open := map[int64]bool{1: true}

	tree, err := NewLoader(src, WithOpenState(func(id int64) bool { return open[id] })).Load(context.Background(), roots)
	require.NoError(t, err)

	assert.True(t, tree.Find(1).Open)
	assert.False(t, tree.Find(2).Open)
	assert.False(t, tree.Find(3).Open)

	b := tree.Find(2)
	assert.Nil(t, b.Children, "no children is nil, not an empty slice")
	assert.False(t, b.HasChildren())
	assert.True(t, tree.Find(1).HasChildren())
}

func TestLoad_EmptyRoots(t *testing.T) {
	tree, err := NewLoader(newFakeSource()).Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, tree.Roots)
}

func TestLoad_PreservesOrderUnderConcurrency(t *testing.T) {
	var inFlight, peak int32
	var roots []api.Folder
	for i := int64(1); i <= 12; i++ {
		roots = append(roots, folder(i, fmt.Sprintf("f%02d", i)))
	}
	src := ChildSourceFunc(func(ctx context.Context, id int64) ([]api.Folder, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		// Later folders finish first.
		time.Sleep(time.Duration(13-id) * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return []api.Folder{folder(100+id, fmt.Sprintf("child of %d", id))}, nil
	})

	tree, err := NewLoader(src, WithConcurrency(3)).Load(context.Background(), roots)
	require.NoError(t, err)

	for i, n := range tree.Roots {
		assert.Equal(t, int64(i+1), n.Folder.ID)
		require.Len(t, n.Children, 1)
		assert.Equal(t, int64(100+i+1), n.Children[0].Folder.ID)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := ChildSourceFunc(func(ctx context.Context, id int64) ([]api.Folder, error) {
		return nil, ctx.Err()
	})

	_, err := NewLoader(src).Load(ctx, []api.Folder{folder(1, "A")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoad_AgainstBackend(t *testing.T) {
	b := apitest.New(t)
	a := b.AddFolder("A", nil)
	c := b.AddFolder("C", &a)
	b.AddFolder("D", &c)
	b.AddFolder("B", nil)

	folders := b.Services().Folders
	roots, err := folders.Roots(context.Background())
	require.NoError(t, err)

	tree, err := NewLoader(folders).Load(context.Background(), roots)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, names(tree.Roots))
	require.Equal(t, []string{"C"}, names(tree.Roots[0].Children))
	assert.True(t, tree.Roots[0].Children[0].Truncated)
	assert.Equal(t, 0, b.CallCount("GET", fmt.Sprintf("/api/folders/%d/children", c)))
}
