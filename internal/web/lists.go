package web

import (
	"net/http"

	"github.com/hpungsan/folio/internal/ops"
)

// summarize shortens long text for a list row.
func summarize(s string) string {
	const max = 80
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

func (h *Handlers) renderList(w http.ResponseWriter, r *http.Request, data ListPageData, items any, err error) {
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, items)
		return
	}
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "list", "list-results", data)
		return
	}
	h.renderer.renderPage(w, r, "list", data)
}

// HandleFeatureList handles GET /features[?name=].
func (h *Handlers) HandleFeatureList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("name")
	items, err := ops.SearchFeatures(r.Context(), h.svc, query)

	data := ListPageData{
		PageData:  h.page(r.Context(), "Features", "features"),
		Heading:   "Features",
		Query:     query,
		DetailURL: "/features/info",
		NewURL:    "/features/info",
	}
	for _, f := range items {
		data.Rows = append(data.Rows, ListRow{ID: f.ID, Name: f.Name, Summary: summarize(f.Description)})
	}
	h.renderList(w, r, data, items, err)
}

// HandlePromptList handles GET /template-prompts[?name=].
func (h *Handlers) HandlePromptList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("name")
	items, err := ops.SearchPrompts(r.Context(), h.svc, query)

	data := ListPageData{
		PageData:  h.page(r.Context(), "Template prompts", "prompts"),
		Heading:   "Template prompts",
		Query:     query,
		DetailURL: "/template-prompts/info",
		NewURL:    "/template-prompts/info",
	}
	for _, p := range items {
		data.Rows = append(data.Rows, ListRow{ID: p.ID, Name: p.Name, Summary: summarize(p.PromptContent)})
	}
	h.renderList(w, r, data, items, err)
}

// HandleQueryList handles GET /sql-queries[?name=].
func (h *Handlers) HandleQueryList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("name")
	items, err := ops.SearchSQLQueries(r.Context(), h.svc, query)

	data := ListPageData{
		PageData: h.page(r.Context(), "SQL queries", "queries"),
		Heading:  "SQL queries",
		Query:    query,
	}
	for _, q := range items {
		data.Rows = append(data.Rows, ListRow{ID: q.ID, Name: q.Name, Summary: summarize(q.QueryContent)})
	}
	h.renderList(w, r, data, items, err)
}

// HandleDiagramList handles GET /sequence-diagrams[?name=].
func (h *Handlers) HandleDiagramList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("name")
	items, err := ops.SearchSequenceDiagrams(r.Context(), h.svc, query)

	data := ListPageData{
		PageData: h.page(r.Context(), "Sequence diagrams", "diagrams"),
		Heading:  "Sequence diagrams",
		Query:    query,
	}
	for _, d := range items {
		data.Rows = append(data.Rows, ListRow{ID: d.ID, Name: d.Name, Summary: summarize(d.SequenceDiagramContent)})
	}
	h.renderList(w, r, data, items, err)
}
