package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/editor"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/ops"
)

// sessions adapts an editor registry to browser requests. Each editing
// session is addressed by a key posted with every form: "<kind>:<id>" for a
// saved entity, "draft:<ulid>" for an unsaved one. Abandoned sessions are
// evicted by the registry.
type sessions[F comparable] struct {
	kind     string
	reg      *editor.Registry[F]
	locs     editor.Locations
	opts     []editor.Option
	store    func(folderID *int64) editor.Store[F]
	setField func(f *F, name, value string) error
}

func (s *sessions[F]) entityKey(id int64) string {
	return s.kind + ":" + strconv.FormatInt(id, 10)
}

func (s *sessions[F]) newEditor(folderID *int64) *editor.Editor[F] {
	return editor.New[F](s.store(folderID), s.locs, s.opts...)
}

// open starts or resumes a session. A nil id opens a fresh draft.
func (s *sessions[F]) open(ctx context.Context, id, folderID *int64) (string, *editor.Editor[F], error) {
	if id == nil {
		key := "draft:" + ulid.Make().String()
		e := s.newEditor(folderID)
		if err := e.Load(ctx, nil); err != nil {
			return "", nil, err
		}
		s.reg.Put(key, e)
		return key, e, nil
	}

	key := s.entityKey(*id)
	if e, ok := s.reg.Get(key); ok {
		// Write what the previous view left pending, then show fresh data.
		e.Flush()
		if err := e.Load(ctx, id); err != nil {
			return "", nil, err
		}
		return key, e, nil
	}
	e, err := s.reg.GetOrCreate(key, func() (*editor.Editor[F], error) {
		e := s.newEditor(nil)
		if err := e.Load(ctx, id); err != nil {
			return nil, err
		}
		return e, nil
	})
	return key, e, err
}

// lookup finds the session for key, reopening a saved entity's session if
// the server has forgotten it.
func (s *sessions[F]) lookup(ctx context.Context, key string) (*editor.Editor[F], error) {
	if e, ok := s.reg.Get(key); ok {
		return e, nil
	}
	raw, found := strings.CutPrefix(key, s.kind+":")
	if !found {
		return nil, errors.NewNotFound("editor session", key)
	}
	id, err := parseID(raw, s.kind+" id")
	if err != nil {
		return nil, err
	}
	_, e, err := s.open(ctx, &id, nil)
	return e, err
}

// edit applies one field change; saved entities auto-save after the delay.
func (s *sessions[F]) edit(ctx context.Context, key, name, value string) (*editor.Editor[F], error) {
	e, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	var fieldErr error
	if err := e.Edit(func(f *F) { fieldErr = s.setField(f, name, value) }); err != nil {
		return nil, err
	}
	if fieldErr != nil {
		return nil, fieldErr
	}
	return e, nil
}

// save applies every posted field and writes immediately. A draft session
// is re-keyed to its new id.
func (s *sessions[F]) save(ctx context.Context, key string, form url.Values) (string, int64, error) {
	e, err := s.lookup(ctx, key)
	if err != nil {
		return "", 0, err
	}
	var fieldErr error
	if err := e.Edit(func(f *F) {
		for name, values := range form {
			if name == "key" || len(values) == 0 {
				continue
			}
			if err := s.setField(f, name, values[0]); err != nil && fieldErr == nil {
				fieldErr = err
			}
		}
	}); err != nil {
		return "", 0, err
	}
	if fieldErr != nil {
		return "", 0, fieldErr
	}

	location, err := e.Save(ctx)
	if err != nil {
		return "", 0, err
	}
	id, _ := e.ID()
	if strings.HasPrefix(key, "draft:") {
		s.reg.Rekey(key, s.entityKey(id))
	}
	return location, id, nil
}

// remove deletes the session's entity and ends the session. A failed delete
// is reported once and not retried; the session stays open on the entity.
func (s *sessions[F]) remove(ctx context.Context, key string) (string, error) {
	e, err := s.lookup(ctx, key)
	if err != nil {
		return "", err
	}
	location, err := e.Delete(ctx)
	if err == nil {
		s.reg.Remove(key)
	}
	return location, err
}

func setFeatureField(f *ops.FeatureFields, name, value string) error {
	switch name {
	case "name":
		f.Name = value
	case "description":
		f.Description = value
	case "templatePromptId":
		if value == "" {
			f.TemplatePromptID = 0
			return nil
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id < 0 {
			return errors.NewInvalidRequest("templatePromptId must be a non-negative integer")
		}
		f.TemplatePromptID = id
	case "sqlQueryName":
		f.SQLQueryName = value
	case "sqlQueryContent":
		f.SQLQueryContent = value
	case "sequenceDiagramName":
		f.SequenceDiagramName = value
	case "sequenceDiagramContent":
		f.SequenceDiagramContent = value
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("unknown feature field %q", name))
	}
	return nil
}

func setPromptField(p *ops.PromptFields, name, value string) error {
	switch name {
	case "name":
		p.Name = value
	case "promptContent":
		p.PromptContent = value
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("unknown template prompt field %q", name))
	}
	return nil
}

func (h *Handlers) featureSessions() *sessions[ops.FeatureFields] {
	return &sessions[ops.FeatureFields]{
		kind: "feature",
		reg:  h.features,
		locs: editor.FeatureLocations,
		opts: h.editorOpts,
		store: func(folderID *int64) editor.Store[ops.FeatureFields] {
			return editor.FeatureStore{Services: h.svc, FolderID: folderID}
		},
		setField: setFeatureField,
	}
}

func (h *Handlers) promptSessions() *sessions[ops.PromptFields] {
	return &sessions[ops.PromptFields]{
		kind: "prompt",
		reg:  h.prompts,
		locs: editor.PromptLocations,
		opts: h.editorOpts,
		store: func(*int64) editor.Store[ops.PromptFields] {
			return editor.PromptStore{Services: h.svc}
		},
		setField: setPromptField,
	}
}

// HandleFeatureInfo handles GET /features/info[?id=|?folderId=]: the feature editor.
func (h *Handlers) HandleFeatureInfo(w http.ResponseWriter, r *http.Request) {
	id, err := parseOptionalID(r.URL.Query().Get("id"), "id")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	folderID, err := parseOptionalID(r.URL.Query().Get("folderId"), "folderId")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	key, e, err := h.featureSessions().open(r.Context(), id, folderID)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	fields := e.Fields()
	boundID, _ := e.ID()

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"key": key, "state": e.State().String(), "id": boundID, "fields": fields})
		return
	}

	prompts, err := ops.SearchPrompts(r.Context(), h.svc, "")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	title := "New feature"
	if boundID != 0 {
		title = fields.Name
	}
	data := FeaturePageData{
		PageData:   h.page(r.Context(), title, "features"),
		Key:        key,
		State:      e.State().String(),
		ID:         boundID,
		Fields:     fields,
		Prompts:    prompts,
		AutosaveMs: int(h.cfg.AutosaveDelay().Milliseconds()),
	}
	if folderID != nil {
		data.FolderID = *folderID
	}

	// The linked prompt is shown read-only below its selector.
	if preview := h.promptPreview(r.Context(), fields.TemplatePromptID); preview != nil {
		data.PromptName = preview.Name
		data.PromptHTML = renderMarkdown(preview.PromptContent)
	}

	h.renderer.renderPage(w, r, "feature", data)
}

// promptPreview fetches the linked template prompt. A failed fetch is logged
// and shown as no preview.
func (h *Handlers) promptPreview(ctx context.Context, promptID int64) *api.TemplatePrompt {
	preview, err := editor.FeatureStore{Services: h.svc}.PromptPreview(ctx, promptID)
	if err != nil {
		h.logger.Sugar().Warnw("failed to load template prompt preview", "prompt_id", promptID, "error", err)
		return nil
	}
	return preview
}

// HandleFeatureField handles POST /features/info/field: one field change.
// Selecting a template prompt answers with its read-only preview.
func (h *Handlers) HandleFeatureField(w http.ResponseWriter, r *http.Request) {
	s := h.featureSessions()
	if r.PostFormValue("field") != "templatePromptId" {
		handleField(h, w, r, s)
		return
	}

	key := r.PostFormValue("key")
	e, err := s.edit(r.Context(), key, "templatePromptId", r.PostFormValue("value"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	preview := h.promptPreview(r.Context(), e.Fields().TemplatePromptID)

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"key": key, "state": e.State().String(), "pending": e.Pending(), "prompt": preview})
		return
	}
	if isHTMX(r) {
		data := PromptPreviewData{Status: fieldStatus(e)}
		if preview != nil {
			data.PromptName = preview.Name
			data.PromptHTML = renderMarkdown(preview.PromptContent)
		}
		h.renderer.renderBlock(w, http.StatusOK, "feature", "prompt-field-result", data)
		return
	}
	http.Redirect(w, r, e.Location(), http.StatusSeeOther)
}

// HandleFeatureSave handles POST /features/info/save: manual save.
func (h *Handlers) HandleFeatureSave(w http.ResponseWriter, r *http.Request) {
	handleSave(h, w, r, h.featureSessions())
}

// HandleFeatureDelete handles POST /features/info/delete.
func (h *Handlers) HandleFeatureDelete(w http.ResponseWriter, r *http.Request) {
	handleDelete(h, w, r, h.featureSessions())
}

// HandlePromptInfo handles GET /template-prompts/info[?id=]: the prompt editor.
func (h *Handlers) HandlePromptInfo(w http.ResponseWriter, r *http.Request) {
	id, err := parseOptionalID(r.URL.Query().Get("id"), "id")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	key, e, err := h.promptSessions().open(r.Context(), id, nil)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	fields := e.Fields()
	boundID, _ := e.ID()

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"key": key, "state": e.State().String(), "id": boundID, "fields": fields})
		return
	}

	title := "New template prompt"
	if boundID != 0 {
		title = fields.Name
	}
	h.renderer.renderPage(w, r, "prompt", PromptPageData{
		PageData:     h.page(r.Context(), title, "prompts"),
		Key:          key,
		State:        e.State().String(),
		ID:           boundID,
		Fields:       fields,
		RenderedHTML: renderMarkdown(fields.PromptContent),
		AutosaveMs:   int(h.cfg.AutosaveDelay().Milliseconds()),
	})
}

// HandlePromptField handles POST /template-prompts/info/field.
func (h *Handlers) HandlePromptField(w http.ResponseWriter, r *http.Request) {
	handleField(h, w, r, h.promptSessions())
}

// HandlePromptSave handles POST /template-prompts/info/save.
func (h *Handlers) HandlePromptSave(w http.ResponseWriter, r *http.Request) {
	handleSave(h, w, r, h.promptSessions())
}

// HandlePromptDelete handles POST /template-prompts/info/delete.
func (h *Handlers) HandlePromptDelete(w http.ResponseWriter, r *http.Request) {
	handleDelete(h, w, r, h.promptSessions())
}

func handleField[F comparable](h *Handlers, w http.ResponseWriter, r *http.Request, s *sessions[F]) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	key := r.PostFormValue("key")
	e, err := s.edit(r.Context(), key, r.PostFormValue("field"), r.PostFormValue("value"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"key": key, "state": e.State().String(), "pending": e.Pending()})
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<span class="save-status">%s</span>`, fieldStatus(e))
		return
	}
	http.Redirect(w, r, e.Location(), http.StatusSeeOther)
}

// fieldStatus describes the session after a field change.
func fieldStatus[F comparable](e *editor.Editor[F]) string {
	switch {
	case e.State() == editor.Draft:
		return "unsaved draft"
	case e.Pending():
		return "saving…"
	}
	return "saved"
}

func handleSave[F comparable](h *Handlers, w http.ResponseWriter, r *http.Request, s *sessions[F]) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	location, id, err := s.save(r.Context(), r.PostFormValue("key"), r.PostForm)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	redirect(w, r, location, map[string]any{"id": id, "key": s.entityKey(id)})
}

func handleDelete[F comparable](h *Handlers, w http.ResponseWriter, r *http.Request, s *sessions[F]) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	location, err := s.remove(r.Context(), r.PostFormValue("key"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	redirect(w, r, location, map[string]any{"deleted": true})
}
