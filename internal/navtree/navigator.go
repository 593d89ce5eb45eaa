// Package navtree is the state behind the folder navigation tree: the loaded
// tree, the selected folder, which folders are expanded, and the folder
// dialogs.
package navtree

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/db"
	"github.com/hpungsan/folio/internal/foldertree"
	"github.com/hpungsan/folio/internal/ops"
)

var (
	// ErrNoDialog is returned when an action needs an open dialog.
	ErrNoDialog = stderrors.New("no dialog is open")
	// ErrSubmitting is returned while the active dialog is being submitted.
	ErrSubmitting = stderrors.New("dialog is already submitting")
)

// Option configures a Navigator.
type Option func(*Navigator)

// WithLoaderOptions passes options to the tree loader used by Reload.
func WithLoaderOptions(opts ...foldertree.Option) Option {
	return func(n *Navigator) { n.loaderOpts = append(n.loaderOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Navigator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// Navigator owns the navigation tree state. It is safe for concurrent use.
type Navigator struct {
	svc        *api.Services
	database   *sql.DB
	selection  *db.Selection
	loaderOpts []foldertree.Option
	logger     *zap.Logger

	mu     sync.Mutex
	tree   *foldertree.Tree
	dialog Dialog
}

// New returns a Navigator with an empty tree. Call Reload to populate it.
func New(svc *api.Services, database *sql.DB, opts ...Option) *Navigator {
	n := &Navigator{
		svc:       svc,
		database:  database,
		selection: db.NewSelection(database),
		logger:    zap.NewNop(),
		tree:      &foldertree.Tree{},
		dialog:    Closed{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Tree returns the current tree. Callers must not modify it.
func (n *Navigator) Tree() *foldertree.Tree {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tree
}

// Dialog returns the active dialog.
func (n *Navigator) Dialog() Dialog {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dialog
}

// Selected returns the persisted selected folder.
func (n *Navigator) Selected() (int64, bool) {
	id, ok, err := n.selection.Get()
	if err != nil {
		n.logger.Warn("failed to read selected folder", zap.Error(err))
		return 0, false
	}
	return id, ok
}

// Reload rebuilds the tree from the backend. On failure the previous tree is
// kept and an error notice is returned; on success it returns nil.
func (n *Navigator) Reload(ctx context.Context) *Notice {
	open, err := db.OpenFolders(n.database)
	if err != nil {
		n.logger.Warn("failed to read open folders", zap.Error(err))
		open = map[int64]bool{}
	}

	opts := append(append([]foldertree.Option{}, n.loaderOpts...),
		foldertree.WithLogger(n.logger),
		foldertree.WithOpenState(func(id int64) bool { return open[id] }),
	)
	tree, err := ops.LoadTree(ctx, n.svc.Folders, foldertree.NewLoader(n.svc.Folders, opts...))
	if err != nil {
		n.logger.Error("failed to load folders", zap.Error(err))
		return failure(MsgLoadFailed)
	}

	n.mu.Lock()
	n.tree = tree
	n.mu.Unlock()
	return nil
}

// OpenCreate shows the create dialog, for a top-level folder when parent is nil.
func (n *Navigator) OpenCreate(parent *api.FolderSummary) error {
	return n.open(CreateDialog{Parent: parent})
}

// OpenRename shows the rename dialog seeded with the folder's current values.
func (n *Navigator) OpenRename(folder api.Folder) error {
	return n.open(RenameDialog{
		Target:  api.FolderSummary{ID: folder.ID, Name: folder.Name},
		Current: folder,
		Inputs:  Inputs{Name: folder.Name, Description: folder.Description},
	})
}

// OpenDelete shows the delete confirmation.
func (n *Navigator) OpenDelete(folder api.FolderSummary) error {
	return n.open(DeleteDialog{Target: folder})
}

func (n *Navigator) open(d Dialog) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if isSubmitting(n.dialog) {
		return ErrSubmitting
	}
	n.dialog = d
	return nil
}

// Cancel closes the active dialog unless it is submitting.
func (n *Navigator) Cancel() error {
	return n.open(Closed{})
}

// SetName edits the name input of the active create or rename dialog.
func (n *Navigator) SetName(name string) error {
	return n.editInputs(func(in *Inputs) { in.Name = name })
}

// SetDescription edits the description input of the active create or rename dialog.
func (n *Navigator) SetDescription(desc string) error {
	return n.editInputs(func(in *Inputs) { in.Description = desc })
}

func (n *Navigator) editInputs(fn func(*Inputs)) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch d := n.dialog.(type) {
	case CreateDialog:
		if d.Submitting {
			return ErrSubmitting
		}
		fn(&d.Inputs)
		n.dialog = d
	case RenameDialog:
		if d.Submitting {
			return ErrSubmitting
		}
		fn(&d.Inputs)
		n.dialog = d
	default:
		return ErrNoDialog
	}
	return nil
}

// Submit runs the active dialog's action. Misuse (no dialog, or one already
// submitting) returns an error; every other outcome is reported as a notice.
//
// On success the dialog closes and the tree is reloaded. A failed create or
// rename leaves the dialog open for retry; a failed delete closes it.
func (n *Navigator) Submit(ctx context.Context) (*Notice, error) {
	n.mu.Lock()
	d := n.dialog
	if _, closed := d.(Closed); closed {
		n.mu.Unlock()
		return nil, ErrNoDialog
	}
	if isSubmitting(d) {
		n.mu.Unlock()
		return nil, ErrSubmitting
	}
	if in, ok := inputsOf(d); ok && strings.TrimSpace(in.Name) == "" {
		n.mu.Unlock()
		return failure(MsgNameRequired), nil
	}
	n.dialog = withSubmitting(d, true)
	n.mu.Unlock()

	var (
		err        error
		okMsg      string
		failMsg    string
		keepOnFail = true
	)
	switch d := d.(type) {
	case CreateDialog:
		okMsg, failMsg = MsgCreated, MsgCreateFailed
		var parentID *int64
		if d.Parent != nil {
			parentID = api.Int64Ptr(d.Parent.ID)
		}
		_, err = ops.CreateFolder(ctx, n.svc, ops.CreateFolderInput{
			Name:        d.Inputs.Name,
			Description: d.Inputs.Description,
			ParentID:    parentID,
		})
	case RenameDialog:
		okMsg, failMsg = MsgRenamed, MsgRenameFailed
		_, err = ops.RenameFolder(ctx, n.svc, ops.RenameFolderInput{
			ID:          d.Target.ID,
			Name:        d.Inputs.Name,
			Description: d.Inputs.Description,
			Current:     &d.Current,
		})
	case DeleteDialog:
		okMsg, failMsg = MsgDeleted, MsgDeleteFailed
		keepOnFail = false
		_, err = ops.DeleteFolder(ctx, n.svc, n.selection, ops.DeleteFolderInput{ID: d.Target.ID})
		if err == nil {
			if perr := db.SetFolderOpen(n.database, d.Target.ID, false); perr != nil {
				n.logger.Warn("failed to forget open folder", zap.Int64("folder_id", d.Target.ID), zap.Error(perr))
			}
		}
	default:
		return nil, fmt.Errorf("unknown dialog %T", d)
	}

	if err != nil {
		n.logger.Error(failMsg, zap.Error(err))
		n.mu.Lock()
		if keepOnFail {
			n.dialog = withSubmitting(d, false)
		} else {
			n.dialog = Closed{}
		}
		n.mu.Unlock()
		return failure(failMsg), nil
	}

	n.mu.Lock()
	n.dialog = Closed{}
	n.mu.Unlock()

	if notice := n.Reload(ctx); notice != nil {
		return notice, nil
	}
	return success(okMsg), nil
}

// Select persists folderID as the selected folder.
func (n *Navigator) Select(folderID int64) error {
	return n.selection.Set(folderID)
}

// ActivateFeature clears the folder selection and returns the feature's
// detail location.
func (n *Navigator) ActivateFeature(featureID int64) (string, error) {
	if err := n.selection.Clear(); err != nil {
		return "", err
	}
	return FeatureLocation(featureID), nil
}

// FeatureLocation is the detail screen path of a feature.
func FeatureLocation(featureID int64) string {
	return fmt.Sprintf("/features/info?id=%d", featureID)
}

// Toggle flips whether folderID is expanded and persists it. It returns the
// new state.
func (n *Navigator) Toggle(folderID int64) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var open bool
	if node := n.tree.Find(folderID); node != nil {
		open = !node.Open
	} else {
		current, err := db.OpenFolders(n.database)
		if err != nil {
			return false, err
		}
		open = !current[folderID]
	}
	if err := db.SetFolderOpen(n.database, folderID, open); err != nil {
		return false, err
	}
	if node := n.tree.Find(folderID); node != nil {
		node.Open = open
	}
	return open, nil
}
