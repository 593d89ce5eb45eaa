// Package foldertree builds the navigation tree from the backend's folder API.
//
// The tree is rebuilt from scratch on each Load. Children are fetched up to a
// depth bound, and a branch whose fetch fails is kept as a leaf rather than
// failing the whole tree.
package foldertree

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/errors"
)

const (
	DefaultMaxDepth    = 2
	DefaultConcurrency = 4
)

// ChildSource fetches the direct children of a folder.
type ChildSource interface {
	Children(ctx context.Context, folderID int64) ([]api.Folder, error)
}

// ChildSourceFunc adapts a function to ChildSource.
type ChildSourceFunc func(ctx context.Context, folderID int64) ([]api.Folder, error)

func (f ChildSourceFunc) Children(ctx context.Context, folderID int64) ([]api.Folder, error) {
	return f(ctx, folderID)
}

// Node is one folder in the tree.
type Node struct {
	Folder     api.Folder
	Children   []*Node
	Open       bool
	Depth      int
	Truncated  bool
	LoadFailed bool
}

// HasChildren reports whether the backend lists child folders for this node,
// loaded or not.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0 || len(n.Folder.ChildFolders) > 0
}

// Failure records a branch whose children could not be fetched.
type Failure struct {
	FolderID int64
	Err      error
}

// Tree is the result of a Load.
type Tree struct {
	Roots    []*Node
	Failures []Failure
}

// Find returns the node for id, or nil.
func (t *Tree) Find(id int64) *Node {
	var walk func([]*Node) *Node
	walk = func(nodes []*Node) *Node {
		for _, n := range nodes {
			if n.Folder.ID == id {
				return n
			}
			if found := walk(n.Children); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(t.Roots)
}

// Walk visits every node depth-first in display order.
func (t *Tree) Walk(fn func(*Node)) {
	var walk func([]*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			fn(n)
			walk(n.Children)
		}
	}
	walk(t.Roots)
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxDepth bounds the tree depth. Roots are depth 1; 0 means unbounded.
func WithMaxDepth(depth int) Option {
	return func(l *Loader) {
		if depth >= 0 {
			l.maxDepth = depth
		}
	}
}

// WithConcurrency caps concurrent child fetches among siblings.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithOpenState seeds each node's Open flag.
func WithOpenState(isOpen func(folderID int64) bool) Option {
	return func(l *Loader) { l.isOpen = isOpen }
}

// WithLogger sets the logger used for branch failures.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader walks the folder hierarchy.
type Loader struct {
	source      ChildSource
	maxDepth    int
	concurrency int
	isOpen      func(int64) bool
	logger      *zap.Logger
}

// NewLoader returns a Loader reading children from source.
func NewLoader(source ChildSource, opts ...Option) *Loader {
	l := &Loader{
		source:      source,
		maxDepth:    DefaultMaxDepth,
		concurrency: DefaultConcurrency,
		isOpen:      func(int64) bool { return false },
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxDepth returns the configured bound.
func (l *Loader) MaxDepth() int { return l.maxDepth }

type loadState struct {
	mu       sync.Mutex
	failures []Failure
}

func (s *loadState) fail(id int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, Failure{FolderID: id, Err: err})
}

// Load builds the tree below roots. Branch fetch failures are recorded in
// Tree.Failures; a folder that reappears on its own ancestor path aborts the
// load with CYCLE_DETECTED.
func (l *Loader) Load(ctx context.Context, roots []api.Folder) (*Tree, error) {
	state := &loadState{}
	nodes, err := l.build(ctx, state, roots, 1, nil)
	if err != nil {
		return nil, err
	}
	return &Tree{Roots: nodes, Failures: orderFailures(nodes, state.failures)}, nil
}

func (l *Loader) build(ctx context.Context, state *loadState, folders []api.Folder, depth int, path []int64) ([]*Node, error) {
	if len(folders) == 0 {
		return nil, nil
	}

	for _, f := range folders {
		for _, seen := range path {
			if seen == f.ID {
				return nil, errors.NewCycleDetected(f.ID, append(append([]int64{}, path...), f.ID))
			}
		}
	}

	nodes := make([]*Node, len(folders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, f := range folders {
		node := &Node{Folder: f, Depth: depth, Open: l.isOpen(f.ID)}
		nodes[i] = node

		if l.maxDepth != 0 && depth >= l.maxDepth {
			node.Truncated = len(f.ChildFolders) > 0
			continue
		}

		childPath := append(append([]int64{}, path...), f.ID)
		g.Go(func() error {
			children, err := l.source.Children(gctx, node.Folder.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.logger.Warn("failed to load folder children",
					zap.Int64("folder_id", node.Folder.ID),
					zap.Error(err))
				node.LoadFailed = true
				state.fail(node.Folder.ID, err)
				return nil
			}
			built, err := l.build(gctx, state, children, depth+1, childPath)
			if err != nil {
				return err
			}
			node.Children = built
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// orderFailures sorts failures into display order so results are stable
// regardless of fetch completion order.
func orderFailures(nodes []*Node, failures []Failure) []Failure {
	if len(failures) < 2 {
		return failures
	}
	byID := make(map[int64]Failure, len(failures))
	for _, f := range failures {
		byID[f.FolderID] = f
	}
	ordered := make([]Failure, 0, len(failures))
	(&Tree{Roots: nodes}).Walk(func(n *Node) {
		if f, ok := byID[n.Folder.ID]; ok {
			ordered = append(ordered, f)
		}
	})
	return ordered
}
