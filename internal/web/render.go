package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/editor"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/foldertree"
	"github.com/hpungsan/folio/internal/navtree"
	"github.com/hpungsan/folio/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "folders", "features", "prompts", "queries", "diagrams", "demo"
	Tree    TreeData
}

// TreeData is the navigation tree sidebar.
type TreeData struct {
	Roots      []*foldertree.Node
	Failures   int
	SelectedID int64
	Selected   bool
	Notice     *navtree.Notice
	Dialog     DialogView
}

// nodeView carries the selection down the recursive tree template.
type nodeView struct {
	Node       *foldertree.Node
	SelectedID int64
}

// DialogView flattens the active dialog for templates.
type DialogView struct {
	Kind        string // "", "create", "rename", "delete"
	Title       string
	TargetID    int64
	TargetName  string
	Name        string
	Description string
	Submitting  bool
}

// FolderPageData is the template data for the folder listing.
type FolderPageData struct {
	PageData
	Folder      api.Folder
	Breadcrumbs []api.FolderSummary
	BackLink    string
	IsRoot      bool
}

// ListPageData is the template data for the entity list screens.
type ListPageData struct {
	PageData
	Heading   string
	Query     string
	DetailURL string // empty when rows are not linkable
	NewURL    string
	Rows      []ListRow
}

// ListRow is one entry on a list screen.
type ListRow struct {
	ID      int64
	Name    string
	Summary string
}

// FeaturePageData is the template data for the feature editor.
type FeaturePageData struct {
	PageData
	Key        string
	State      string
	ID         int64
	FolderID   int64
	Fields     ops.FeatureFields
	Prompts    []api.TemplatePrompt
	PromptName string
	PromptHTML template.HTML
	AutosaveMs int
}

// PromptPreviewData answers a template prompt selection: the save status and
// the newly linked prompt rendered read-only.
type PromptPreviewData struct {
	Status     string
	PromptName string
	PromptHTML template.HTML
}

// PromptPageData is the template data for the template-prompt editor.
type PromptPageData struct {
	PageData
	Key          string
	State        string
	ID           int64
	Fields       ops.PromptFields
	RenderedHTML template.HTML
	AutosaveMs   int
}

// DemoPageData is the template data for the demo page.
type DemoPageData struct {
	PageData
	Message string
	Error   string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	funcMap := template.FuncMap{
		"add":      func(a, b int) int { return a + b },
		"deref":    api.Deref,
		"markdown": renderMarkdown,
		"node": func(n *foldertree.Node, selected int64) nodeView {
			return nodeView{Node: n, SelectedID: selected}
		},
	}

	// The layout and the tree sidebar are shared by every page.
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html", "tree.html"))

	pages := map[string]string{
		"folders": "folders.html",
		"list":    "list.html",
		"feature": "feature.html",
		"prompt":  "prompt.html",
		"demo":    "demo.html",
		"error":   "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if isHTMX(req) {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock renders a specific named block from a page template.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	t, ok := r.templates[page]
	if !ok {
		r.logger.Error("template not found", zap.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution error", zap.String("page", page), zap.String("block", block), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	fErr := asWebError(err)
	status := fErr.Status
	message := fErr.Message

	if status >= 500 {
		r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
	}

	if isHTMX(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(fErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// asWebError maps editor and navigator sentinels onto coded errors.
func asWebError(err error) *errors.FolioError {
	switch {
	case stderrors.Is(err, editor.ErrSaveInFlight), stderrors.Is(err, navtree.ErrSubmitting):
		return errors.NewConflict(err.Error())
	case stderrors.Is(err, editor.ErrNotBound), stderrors.Is(err, editor.ErrLoading),
		stderrors.Is(err, navtree.ErrNoDialog):
		return errors.NewInvalidRequest(err.Error())
	}
	return errors.As(err)
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark. Raw HTML in
// the source is not rendered.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func isHTMX(req *http.Request) bool {
	return req != nil && req.Header.Get("HX-Request") == "true"
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}
