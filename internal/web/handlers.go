package web

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/editor"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/navtree"
	"github.com/hpungsan/folio/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	svc      *api.Services
	cfg      *config.Config
	logger   *zap.Logger
	renderer *Renderer

	nav        *navtree.Navigator
	treeOnce   sync.Once
	features   *editor.Registry[ops.FeatureFields]
	prompts    *editor.Registry[ops.PromptFields]
	editorOpts []editor.Option
}

// page builds the shared page data, loading the tree on first use.
func (h *Handlers) page(ctx context.Context, title, nav string) PageData {
	h.treeOnce.Do(func() {
		if notice := h.nav.Reload(ctx); notice != nil {
			h.logger.Warn("initial tree load failed", zap.String("notice", notice.Message))
		}
	})
	return PageData{
		Title:   title,
		Version: h.renderer.version,
		Nav:     nav,
		Tree:    h.treeData(nil),
	}
}

func (h *Handlers) treeData(notice *navtree.Notice) TreeData {
	tree := h.nav.Tree()
	data := TreeData{
		Roots:    tree.Roots,
		Failures: len(tree.Failures),
		Notice:   notice,
		Dialog:   dialogView(h.nav.Dialog()),
	}
	data.SelectedID, data.Selected = h.nav.Selected()
	return data
}

func dialogView(d navtree.Dialog) DialogView {
	switch d := d.(type) {
	case navtree.CreateDialog:
		v := DialogView{Kind: "create", Title: "New folder", Name: d.Inputs.Name, Description: d.Inputs.Description, Submitting: d.Submitting}
		if d.Parent != nil {
			v.TargetID, v.TargetName = d.Parent.ID, d.Parent.Name
			v.Title = "New folder in " + d.Parent.Name
		}
		return v
	case navtree.RenameDialog:
		return DialogView{Kind: "rename", Title: "Rename folder", TargetID: d.Target.ID, TargetName: d.Target.Name,
			Name: d.Inputs.Name, Description: d.Inputs.Description, Submitting: d.Submitting}
	case navtree.DeleteDialog:
		return DialogView{Kind: "delete", Title: "Delete folder", TargetID: d.Target.ID, TargetName: d.Target.Name, Submitting: d.Submitting}
	}
	return DialogView{}
}

// HandleFolders handles GET /folders[?id=]: folder listing with breadcrumbs.
func (h *Handlers) HandleFolders(w http.ResponseWriter, r *http.Request) {
	var input ops.FolderListingInput
	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := parseID(raw, "id")
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		input.ID = &id
	}

	out, err := ops.FolderListing(r.Context(), h.svc, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	back := "/folders"
	if n := len(out.Breadcrumbs); n > 0 {
		back = "/folders?id=" + strconv.FormatInt(out.Breadcrumbs[n-1].ID, 10)
	}

	h.renderer.renderPage(w, r, "folders", FolderPageData{
		PageData:    h.page(r.Context(), out.Folder.Name, "folders"),
		Folder:      out.Folder,
		Breadcrumbs: out.Breadcrumbs,
		BackLink:    back,
		IsRoot:      input.ID == nil,
	})
}

// HandleTree handles GET /tree: rebuilds and returns the tree fragment.
func (h *Handlers) HandleTree(w http.ResponseWriter, r *http.Request) {
	h.treeOnce.Do(func() {})
	notice := h.nav.Reload(r.Context())
	h.renderTree(w, r, notice)
}

// renderTree answers tree mutations: the fragment for htmx and JSON clients,
// otherwise a redirect back to the referring page.
func (h *Handlers) renderTree(w http.ResponseWriter, r *http.Request, notice *navtree.Notice) {
	data := h.treeData(notice)
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, data)
		return
	}
	if isHTMX(r) || r.Method == http.MethodGet {
		h.renderer.renderBlock(w, http.StatusOK, "folders", "tree", data)
		return
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// HandleToggle handles POST /tree/toggle/{id}.
func (h *Handlers) HandleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "folder id")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if _, err := h.nav.Toggle(id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderTree(w, r, nil)
}

// HandleSelect handles POST /tree/select/{id}: persists the selection and
// navigates to the folder.
func (h *Handlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "folder id")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := h.nav.Select(id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	redirect(w, r, "/folders?id="+strconv.FormatInt(id, 10), map[string]any{"selected": id})
}

// HandleActivateFeature handles POST /tree/feature/{id}: clears the folder
// selection and navigates to the feature.
func (h *Handlers) HandleActivateFeature(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "feature id")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	loc, err := h.nav.ActivateFeature(id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	redirect(w, r, loc, map[string]any{"feature": id})
}

// HandleDialogCreate handles POST /tree/dialog/create[?parent=].
func (h *Handlers) HandleDialogCreate(w http.ResponseWriter, r *http.Request) {
	var parent *api.FolderSummary
	if raw := r.URL.Query().Get("parent"); raw != "" {
		f, err := h.folder(r.Context(), raw)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		parent = &api.FolderSummary{ID: f.ID, Name: f.Name}
	}
	if err := h.nav.OpenCreate(parent); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderTree(w, r, nil)
}

// HandleDialogRename handles POST /tree/dialog/rename/{id}.
func (h *Handlers) HandleDialogRename(w http.ResponseWriter, r *http.Request) {
	f, err := h.folder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := h.nav.OpenRename(*f); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderTree(w, r, nil)
}

// HandleDialogDelete handles POST /tree/dialog/delete/{id}.
func (h *Handlers) HandleDialogDelete(w http.ResponseWriter, r *http.Request) {
	f, err := h.folder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if err := h.nav.OpenDelete(api.FolderSummary{ID: f.ID, Name: f.Name}); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderTree(w, r, nil)
}

// HandleDialogCancel handles POST /tree/dialog/cancel.
func (h *Handlers) HandleDialogCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.nav.Cancel(); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderTree(w, r, nil)
}

// HandleDialogSubmit handles POST /tree/dialog/submit. The form carries the
// dialog inputs, which are applied before submitting.
func (h *Handlers) HandleDialogSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if _, hasInputs := r.PostForm["name"]; hasInputs {
		if err := h.nav.SetName(r.PostFormValue("name")); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		if err := h.nav.SetDescription(r.PostFormValue("description")); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}

	notice, err := h.nav.Submit(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderTree(w, r, notice)
}

// folder fetches the folder named by a raw id.
func (h *Handlers) folder(ctx context.Context, raw string) (*api.Folder, error) {
	id, err := parseID(raw, "folder id")
	if err != nil {
		return nil, err
	}
	return h.svc.Folders.Get(ctx, id)
}

// HandleDemo handles GET /demo[?message=&error=1]: exercises the backend's
// demo endpoints.
func (h *Handlers) HandleDemo(w http.ResponseWriter, r *http.Request) {
	data := DemoPageData{PageData: h.page(r.Context(), "Demo", "demo")}

	hello, err := h.svc.Demo.Hello(r.Context(), r.URL.Query().Get("message"))
	if err != nil {
		data.Error = errors.As(err).Message
	} else {
		data.Message = hello.Message
	}

	if r.URL.Query().Get("error") != "" {
		if err := h.svc.Demo.Error(r.Context()); err != nil {
			data.Error = errors.As(err).Message
		}
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"message": data.Message, "error": data.Error})
		return
	}
	h.renderer.renderPage(w, r, "demo", data)
}

// redirect sends the client to location: HX-Redirect for htmx, a JSON body
// for API clients, otherwise 303.
func redirect(w http.ResponseWriter, r *http.Request, location string, payload map[string]any) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		if payload == nil {
			payload = map[string]any{}
		}
		payload["location"] = location
		renderJSON(w, http.StatusOK, payload)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// backTo returns a same-site path to return to after a form post.
func backTo(r *http.Request) string {
	if ref := r.Referer(); ref != "" {
		if u, err := r.URL.Parse(ref); err == nil && u.Host == r.Host && u.Path != "" {
			if u.RawQuery != "" {
				return u.Path + "?" + u.RawQuery
			}
			return u.Path
		}
	}
	return "/folders"
}

// parseID parses a positive integer id.
func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest(what + " must be a positive integer")
	}
	return id, nil
}

// parseOptionalID parses an optional id query or form value.
func parseOptionalID(raw, what string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(raw, what)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
