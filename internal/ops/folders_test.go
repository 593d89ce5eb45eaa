package ops

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/api/apitest"
	"github.com/hpungsan/folio/internal/db"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/foldertree"
)

func TestCreateFolder_ValidationMakesNoCalls(t *testing.T) {
	b := apitest.New(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := CreateFolder(context.Background(), b.Services(), CreateFolderInput{Name: name})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "name %q", name)
	}
	assert.Empty(t, b.Calls(), "rejected input must not reach the backend")
}

func TestCreateFolder_TrimsAndCreates(t *testing.T) {
	b := apitest.New(t)
	parent := b.AddFolder("parent", nil)

	f, err := CreateFolder(context.Background(), b.Services(), CreateFolderInput{
		Name:        "  reports  ",
		Description: " monthly ",
		ParentID:    &parent,
	})
	require.NoError(t, err)
	assert.Equal(t, "reports", f.Name)
	assert.Equal(t, "monthly", f.Description)
	require.NotNil(t, f.ParentID)
	assert.Equal(t, parent, *f.ParentID)
}

func TestCreateFolder_RejectsBadParent(t *testing.T) {
	b := apitest.New(t)
	bad := int64(-3)
	_, err := CreateFolder(context.Background(), b.Services(), CreateFolderInput{Name: "x", ParentID: &bad})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidRequest, errors.As(err).Code)
	assert.Contains(t, errors.As(err).Details, "ParentID")
}

func TestRenameFolder_KeepsDescriptionWhenEmpty(t *testing.T) {
	b := apitest.New(t)
	parent := b.AddFolder("parent", nil)
	id := b.AddFolder("old", &parent)

	f, err := RenameFolder(context.Background(), b.Services(), RenameFolderInput{ID: id, Name: "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", f.Name)
	assert.Equal(t, "old description", f.Description)
	require.NotNil(t, f.ParentID, "parent must be kept")
	assert.Equal(t, parent, *f.ParentID)

	f, err = RenameFolder(context.Background(), b.Services(), RenameFolderInput{ID: id, Name: "newer", Description: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", f.Description)
}

func TestRenameFolder_UsesCurrentWithoutFetching(t *testing.T) {
	b := apitest.New(t)
	parent := b.AddFolder("parent", nil)
	id := b.AddFolder("old", &parent)
	current, _ := b.Folder(id)
	b.ResetCalls()

	f, err := RenameFolder(context.Background(), b.Services(), RenameFolderInput{ID: id, Name: "new", Current: &current})
	require.NoError(t, err)
	assert.Equal(t, "new", f.Name)
	assert.Equal(t, "old description", f.Description)
	require.NotNil(t, f.ParentID)
	assert.Equal(t, parent, *f.ParentID)

	require.Len(t, b.Calls(), 1)
	assert.Equal(t, http.MethodPut, b.Calls()[0].Method)
}

func TestRenameFolder_EmptyNameMakesNoCalls(t *testing.T) {
	b := apitest.New(t)
	id := b.AddFolder("old", nil)

	_, err := RenameFolder(context.Background(), b.Services(), RenameFolderInput{ID: id, Name: " "})
	require.Error(t, err)
	assert.Empty(t, b.Calls())
}

func TestDeleteFolder_ClearsSelectedFolder(t *testing.T) {
	b := apitest.New(t)
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	sel := db.NewSelection(database)

	keep := b.AddFolder("keep", nil)
	doomed := b.AddFolder("doomed", nil)

	require.NoError(t, sel.Set(keep))
	out, err := DeleteFolder(context.Background(), b.Services(), sel, DeleteFolderInput{ID: doomed})
	require.NoError(t, err)
	assert.False(t, out.SelectionCleared)
	got, ok, _ := sel.Get()
	assert.True(t, ok)
	assert.Equal(t, keep, got)

	require.NoError(t, sel.Set(keep))
	out, err = DeleteFolder(context.Background(), b.Services(), sel, DeleteFolderInput{ID: keep})
	require.NoError(t, err)
	assert.True(t, out.SelectionCleared)
	_, ok, _ = sel.Get()
	assert.False(t, ok)
}

func TestDeleteFolder_FailureKeepsSelection(t *testing.T) {
	b := apitest.New(t)
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	sel := db.NewSelection(database)

	id := b.AddFolder("x", nil)
	require.NoError(t, sel.Set(id))
	b.FailOn(http.MethodDelete, "/api/folders/1", http.StatusInternalServerError)

	_, err = DeleteFolder(context.Background(), b.Services(), sel, DeleteFolderInput{ID: id})
	require.Error(t, err)
	_, ok, _ := sel.Get()
	assert.True(t, ok)
}

func TestFolderListing_RootIsSynthetic(t *testing.T) {
	b := apitest.New(t)
	a := b.AddFolder("A", nil)
	b.AddFolder("child", &a)
	c := b.AddFolder("C", nil)

	out, err := FolderListing(context.Background(), b.Services(), FolderListingInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Folder.ID)
	assert.Equal(t, RootFolderName, out.Folder.Name)
	assert.Equal(t, []api.FolderSummary{{ID: a, Name: "A"}, {ID: c, Name: "C"}}, out.Folder.ChildFolders)
	assert.Empty(t, out.Breadcrumbs)
}

func TestFolderListing_Breadcrumbs(t *testing.T) {
	b := apitest.New(t)
	a := b.AddFolder("A", nil)
	bb := b.AddFolder("B", &a)
	c := b.AddFolder("C", &bb)

	out, err := FolderListing(context.Background(), b.Services(), FolderListingInput{ID: &c})
	require.NoError(t, err)
	assert.Equal(t, "C", out.Folder.Name)
	assert.Equal(t, []api.FolderSummary{{ID: a, Name: "A"}, {ID: bb, Name: "B"}}, out.Breadcrumbs)
}

func TestFolderListing_BreadcrumbsStopOnError(t *testing.T) {
	b := apitest.New(t)
	a := b.AddFolder("A", nil)
	bb := b.AddFolder("B", &a)
	c := b.AddFolder("C", &bb)
	b.FailOn(http.MethodGet, "/api/folders/1", http.StatusBadGateway)

	out, err := FolderListing(context.Background(), b.Services(), FolderListingInput{ID: &c})
	require.NoError(t, err)
	assert.Equal(t, []api.FolderSummary{{ID: bb, Name: "B"}}, out.Breadcrumbs)
}

func TestFolderListing_NotFound(t *testing.T) {
	b := apitest.New(t)
	missing := int64(42)
	_, err := FolderListing(context.Background(), b.Services(), FolderListingInput{ID: &missing})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLoadTree(t *testing.T) {
	b := apitest.New(t)
	a := b.AddFolder("A", nil)
	b.AddFolder("C", &a)
	b.AddFolder("B", nil)

	svc := b.Services()
	tree, err := LoadTree(context.Background(), svc.Folders, foldertree.NewLoader(svc.Folders))
	require.NoError(t, err)
	require.Len(t, tree.Roots, 2)
	require.Len(t, tree.Roots[0].Children, 1)
	assert.Equal(t, "C", tree.Roots[0].Children[0].Folder.Name)
}

func TestLoadTree_RootFailure(t *testing.T) {
	b := apitest.New(t)
	b.FailOn(http.MethodGet, "/api/folders/root", http.StatusInternalServerError)
	svc := b.Services()

	_, err := LoadTree(context.Background(), svc.Folders, foldertree.NewLoader(svc.Folders))
	assert.True(t, errors.Is(err, errors.ErrUpstream))
}

func TestSearchFolders(t *testing.T) {
	b := apitest.New(t)
	b.AddFolder("alpha", nil)
	b.AddFolder("beta", nil)

	all, err := SearchFolders(context.Background(), b.Services(), "  ")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := SearchFolders(context.Background(), b.Services(), "alp")
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "alpha", some[0].Name)
}
