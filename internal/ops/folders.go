package ops

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/foldertree"
)

// RootFolderName labels the synthetic folder listing the top level.
const RootFolderName = "Root"

// RootLister fetches the top-level folders.
type RootLister interface {
	Roots(ctx context.Context) ([]api.Folder, error)
}

// SelectionStore is the persisted selected folder.
type SelectionStore interface {
	Get() (int64, bool, error)
	Clear() error
}

// LoadTree fetches the root folders and builds the tree below them.
func LoadTree(ctx context.Context, folders RootLister, loader *foldertree.Loader) (*foldertree.Tree, error) {
	roots, err := folders.Roots(ctx)
	if err != nil {
		return nil, err
	}
	return loader.Load(ctx, roots)
}

// CreateFolderInput contains parameters for CreateFolder.
type CreateFolderInput struct {
	Name        string
	Description string
	ParentID    *int64
}

// CreateFolder creates a folder, at the top level when ParentID is nil.
func CreateFolder(ctx context.Context, svc *api.Services, input CreateFolderInput) (*api.Folder, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := validate(validation.ValidateStruct(&input,
		validation.Field(&input.Name, nameRules()...),
		validation.Field(&input.Description, validation.Length(0, MaxDescriptionLength)),
		validation.Field(&input.ParentID, validation.NilOrNotEmpty, idRule),
	)); err != nil {
		return nil, err
	}

	return svc.Folders.Create(ctx, api.FolderRequest{
		Name:        input.Name,
		Description: input.Description,
		ParentID:    input.ParentID,
	})
}

// RenameFolderInput contains parameters for RenameFolder.
type RenameFolderInput struct {
	ID          int64
	Name        string
	Description string // empty keeps the current description
	ParentID    *int64
	// Current is the folder as the caller already holds it. When nil the
	// folder is fetched first.
	Current *api.Folder
}

// RenameFolder changes a folder's name. An empty description keeps the
// current one, and a nil ParentID keeps the current parent.
func RenameFolder(ctx context.Context, svc *api.Services, input RenameFolderInput) (*api.Folder, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := validate(validation.ValidateStruct(&input,
		validation.Field(&input.ID, validation.Required, idRule),
		validation.Field(&input.Name, nameRules()...),
		validation.Field(&input.Description, validation.Length(0, MaxDescriptionLength)),
	)); err != nil {
		return nil, err
	}

	current := input.Current
	if current == nil || current.ID != input.ID {
		var err error
		if current, err = svc.Folders.Get(ctx, input.ID); err != nil {
			return nil, err
		}
	}

	req := api.FolderRequest{
		Name:        input.Name,
		Description: input.Description,
		ParentID:    input.ParentID,
	}
	if req.Description == "" {
		req.Description = current.Description
	}
	if req.ParentID == nil {
		req.ParentID = current.ParentID
	}
	return svc.Folders.Update(ctx, input.ID, req)
}

// DeleteFolderInput contains parameters for DeleteFolder.
type DeleteFolderInput struct {
	ID int64
}

// DeleteFolderOutput contains the result of DeleteFolder.
type DeleteFolderOutput struct {
	ID               int64 `json:"id"`
	SelectionCleared bool  `json:"selection_cleared"`
}

// DeleteFolder deletes a folder. When the folder is the persisted selection,
// the selection is cleared. sel may be nil.
func DeleteFolder(ctx context.Context, svc *api.Services, sel SelectionStore, input DeleteFolderInput) (*DeleteFolderOutput, error) {
	if err := validate(validation.ValidateStruct(&input,
		validation.Field(&input.ID, validation.Required, idRule),
	)); err != nil {
		return nil, err
	}

	if err := svc.Folders.Delete(ctx, input.ID); err != nil {
		return nil, err
	}

	out := &DeleteFolderOutput{ID: input.ID}
	if sel == nil {
		return out, nil
	}
	selected, ok, err := sel.Get()
	if err != nil {
		return nil, err
	}
	if ok && selected == input.ID {
		if err := sel.Clear(); err != nil {
			return nil, err
		}
		out.SelectionCleared = true
	}
	return out, nil
}

// FolderListingInput contains parameters for FolderListing. A nil ID lists
// the top level.
type FolderListingInput struct {
	ID *int64
}

// FolderListingOutput is a folder with the path leading to it.
type FolderListingOutput struct {
	Folder      api.Folder          `json:"folder"`
	Breadcrumbs []api.FolderSummary `json:"breadcrumbs"`
}

// FolderListing fetches a folder and its ancestors, root first. Without an ID
// it returns a synthetic "Root" folder whose children are the top-level
// folders. The ancestor walk stops at the first failed fetch or repeated id.
func FolderListing(ctx context.Context, svc *api.Services, input FolderListingInput) (*FolderListingOutput, error) {
	if input.ID == nil {
		roots, err := svc.Folders.Roots(ctx)
		if err != nil {
			return nil, err
		}
		root := api.Folder{Name: RootFolderName, ChildFolders: []api.FolderSummary{}, Features: []api.FeatureSummary{}}
		for _, f := range roots {
			root.ChildFolders = append(root.ChildFolders, api.FolderSummary{ID: f.ID, Name: f.Name})
		}
		return &FolderListingOutput{Folder: root, Breadcrumbs: []api.FolderSummary{}}, nil
	}

	if err := validate(validation.Validate(*input.ID, idRule)); err != nil {
		return nil, err
	}
	folder, err := svc.Folders.Get(ctx, *input.ID)
	if err != nil {
		return nil, err
	}

	crumbs := []api.FolderSummary{}
	seen := map[int64]bool{folder.ID: true}
	parentID := folder.ParentID
	for parentID != nil && !seen[*parentID] {
		seen[*parentID] = true
		parent, err := svc.Folders.Get(ctx, *parentID)
		if err != nil {
			break
		}
		crumbs = append([]api.FolderSummary{{ID: parent.ID, Name: parent.Name}}, crumbs...)
		parentID = parent.ParentID
	}

	return &FolderListingOutput{Folder: *folder, Breadcrumbs: crumbs}, nil
}

// SearchFolders finds folders by name. An empty term lists every folder.
func SearchFolders(ctx context.Context, svc *api.Services, term string) ([]api.Folder, error) {
	term = strings.TrimSpace(term)
	var (
		out []api.Folder
		err error
	)
	if term == "" {
		out, err = svc.Folders.List(ctx)
	} else {
		out, err = svc.Folders.SearchByName(ctx, term)
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []api.Folder{}
	}
	return out, nil
}
