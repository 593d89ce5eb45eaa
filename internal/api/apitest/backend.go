// Package apitest provides an in-memory stand-in for the folio REST backend.
// It records every call so tests can assert which requests were (or were not) made.
package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/hpungsan/folio/internal/api"
)

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// Backend is a fake backend served over httptest.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	nextID   int64
	folders  map[int64]*api.Folder
	features map[int64]*api.Feature
	prompts  map[int64]*api.TemplatePrompt
	queries  map[int64]*api.SQLQuery
	diagrams map[int64]*api.SequenceDiagram
	calls    []Call
	fail     map[string]int
}

// New starts a Backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		nextID:   1,
		folders:  make(map[int64]*api.Folder),
		features: make(map[int64]*api.Feature),
		prompts:  make(map[int64]*api.TemplatePrompt),
		queries:  make(map[int64]*api.SQLQuery),
		diagrams: make(map[int64]*api.SequenceDiagram),
		fail:     make(map[string]int),
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the base URL to hand to api.New.
func (b *Backend) URL() string { return b.Server.URL }

// Services returns typed clients pointed at this backend.
func (b *Backend) Services() *api.Services {
	return api.NewServices(api.New(b.URL()))
}

// FailOn makes the given request fail with status. path includes the /api prefix.
func (b *Backend) FailOn(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[method+" "+path] = status
}

// ClearFailures removes every injected failure.
func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = make(map[string]int)
}

// Calls returns a copy of the recorded requests.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// ResetCalls forgets recorded requests.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// CallCount counts recorded requests matching method and path.
func (b *Backend) CallCount(method, path string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// WriteCount counts recorded POST, PUT and DELETE requests.
func (b *Backend) WriteCount() int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method != http.MethodGet {
			n++
		}
	}
	return n
}

// AddFolder seeds a folder and returns its id.
func (b *Backend) AddFolder(name string, parentID *int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.newID()
	b.folders[id] = &api.Folder{ID: id, Name: name, Description: name + " description", ParentID: parentID}
	return id
}

// AddFeature seeds a feature and returns its id.
func (b *Backend) AddFeature(f api.Feature) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	f.ID = b.newID()
	b.features[f.ID] = &f
	return f.ID
}

// AddPrompt seeds a template prompt and returns its id.
func (b *Backend) AddPrompt(name, content string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.newID()
	b.prompts[id] = &api.TemplatePrompt{ID: id, Name: name, PromptContent: content}
	return id
}

// AddSQLQuery seeds a SQL query and returns its id.
func (b *Backend) AddSQLQuery(name, content string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.newID()
	b.queries[id] = &api.SQLQuery{ID: id, Name: name, QueryContent: content}
	return id
}

// AddSequenceDiagram seeds a sequence diagram and returns its id.
func (b *Backend) AddSequenceDiagram(name, content string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.newID()
	b.diagrams[id] = &api.SequenceDiagram{ID: id, Name: name, SequenceDiagramContent: content}
	return id
}

// Folder returns the stored folder, if any.
func (b *Backend) Folder(id int64) (api.Folder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.folders[id]
	if !ok {
		return api.Folder{}, false
	}
	return b.folderView(f), true
}

// Feature returns the stored feature, if any.
func (b *Backend) Feature(id int64) (api.Feature, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.features[id]
	if !ok {
		return api.Feature{}, false
	}
	return *f, true
}

// Prompt returns the stored template prompt, if any.
func (b *Backend) Prompt(id int64) (api.TemplatePrompt, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.prompts[id]
	if !ok {
		return api.TemplatePrompt{}, false
	}
	return *p, true
}

func (b *Backend) newID() int64 {
	id := b.nextID
	b.nextID++
	return id
}

// folderView fills the derived child and feature summaries. Caller holds mu.
func (b *Backend) folderView(f *api.Folder) api.Folder {
	out := *f
	out.ChildFolders = []api.FolderSummary{}
	out.Features = []api.FeatureSummary{}
	for _, id := range sortedKeys(b.folders) {
		child := b.folders[id]
		if child.ParentID != nil && *child.ParentID == f.ID {
			out.ChildFolders = append(out.ChildFolders, api.FolderSummary{ID: child.ID, Name: child.Name})
		}
	}
	for _, id := range sortedKeys(b.features) {
		feat := b.features[id]
		if feat.FolderID != nil && *feat.FolderID == f.ID {
			out.Features = append(out.Features, api.FeatureSummary{ID: feat.ID, Name: feat.Name})
		}
	}
	if f.ParentID != nil {
		if parent, ok := b.folders[*f.ParentID]; ok {
			name := parent.Name
			out.ParentName = &name
		}
	}
	return out
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/demo/hello", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.Hello{Message: r.URL.Query().Get("message")})
	})
	mux.HandleFunc("GET /api/demo/error", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "demo error"})
	})

	// Folders
	mux.HandleFunc("GET /api/folders", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []api.Folder{}
		for _, id := range sortedKeys(b.folders) {
			out = append(out, b.folderView(b.folders[id]))
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /api/folders/root", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []api.Folder{}
		for _, id := range sortedKeys(b.folders) {
			if b.folders[id].ParentID == nil {
				out = append(out, b.folderView(b.folders[id]))
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /api/folders/search", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		name := r.URL.Query().Get("name")
		out := []api.Folder{}
		for _, id := range sortedKeys(b.folders) {
			if strings.Contains(b.folders[id].Name, name) {
				out = append(out, b.folderView(b.folders[id]))
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /api/folders/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		f, ok := b.folders[pathID(r, "id")]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, b.folderView(f))
	})
	mux.HandleFunc("GET /api/folders/{id}/children", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		parent := pathID(r, "id")
		if _, ok := b.folders[parent]; !ok {
			notFound(w)
			return
		}
		out := []api.Folder{}
		for _, id := range sortedKeys(b.folders) {
			f := b.folders[id]
			if f.ParentID != nil && *f.ParentID == parent {
				out = append(out, b.folderView(f))
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("POST /api/folders", func(w http.ResponseWriter, r *http.Request) {
		var req api.FolderRequest
		if !readJSON(w, r, &req) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		id := b.newID()
		b.folders[id] = &api.Folder{ID: id, Name: req.Name, Description: req.Description, ParentID: req.ParentID}
		writeJSON(w, http.StatusCreated, b.folderView(b.folders[id]))
	})
	mux.HandleFunc("PUT /api/folders/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req api.FolderRequest
		if !readJSON(w, r, &req) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		f, ok := b.folders[pathID(r, "id")]
		if !ok {
			notFound(w)
			return
		}
		f.Name, f.Description, f.ParentID = req.Name, req.Description, req.ParentID
		writeJSON(w, http.StatusOK, b.folderView(f))
	})
	mux.HandleFunc("DELETE /api/folders/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := pathID(r, "id")
		if _, ok := b.folders[id]; !ok {
			notFound(w)
			return
		}
		delete(b.folders, id)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/folders/{id}/features", func(w http.ResponseWriter, r *http.Request) {
		var req api.FeatureRequest
		if !readJSON(w, r, &req) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		folderID := pathID(r, "id")
		if _, ok := b.folders[folderID]; !ok {
			notFound(w)
			return
		}
		req.FolderID = &folderID
		f := b.featureFromRequest(b.newID(), req)
		b.features[f.ID] = f
		writeJSON(w, http.StatusCreated, f)
	})
	mux.HandleFunc("PUT /api/folders/{id}/features/{featureId}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		folderID := pathID(r, "id")
		f, ok := b.features[pathID(r, "featureId")]
		if _, folderOK := b.folders[folderID]; !ok || !folderOK {
			notFound(w)
			return
		}
		f.FolderID = &folderID
		writeJSON(w, http.StatusOK, f)
	})

	// Features
	mux.HandleFunc("GET /api/features", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []api.Feature{}
		for _, id := range sortedKeys(b.features) {
			out = append(out, *b.features[id])
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /api/features/search", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		name := r.URL.Query().Get("name")
		out := []api.Feature{}
		for _, id := range sortedKeys(b.features) {
			if strings.Contains(b.features[id].Name, name) {
				out = append(out, *b.features[id])
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /api/features/folder/{folderId}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		folderID := pathID(r, "folderId")
		out := []api.Feature{}
		for _, id := range sortedKeys(b.features) {
			f := b.features[id]
			if f.FolderID != nil && *f.FolderID == folderID {
				out = append(out, *f)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /api/features/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		f, ok := b.features[pathID(r, "id")]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, f)
	})
	mux.HandleFunc("POST /api/features", func(w http.ResponseWriter, r *http.Request) {
		var req api.FeatureRequest
		if !readJSON(w, r, &req) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		f := b.featureFromRequest(b.newID(), req)
		b.features[f.ID] = f
		writeJSON(w, http.StatusCreated, f)
	})
	mux.HandleFunc("PUT /api/features/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req api.FeatureRequest
		if !readJSON(w, r, &req) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		id := pathID(r, "id")
		existing, ok := b.features[id]
		if !ok {
			notFound(w)
			return
		}
		if req.FolderID == nil {
			req.FolderID = existing.FolderID
		}
		f := b.featureFromRequest(id, req)
		b.features[id] = f
		writeJSON(w, http.StatusOK, f)
	})
	mux.HandleFunc("DELETE /api/features/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := pathID(r, "id")
		if _, ok := b.features[id]; !ok {
			notFound(w)
			return
		}
		delete(b.features, id)
		w.WriteHeader(http.StatusNoContent)
	})

	registerSimple(mux, b, "/api/template-prompts", b.prompts,
		func(id int64, req api.TemplatePromptRequest) *api.TemplatePrompt {
			return &api.TemplatePrompt{ID: id, Name: req.Name, PromptContent: req.PromptContent}
		},
		func(p *api.TemplatePrompt) string { return p.Name })
	registerSimple(mux, b, "/api/sql-queries", b.queries,
		func(id int64, req api.SQLQueryRequest) *api.SQLQuery {
			return &api.SQLQuery{ID: id, Name: req.Name, QueryContent: req.QueryContent}
		},
		func(q *api.SQLQuery) string { return q.Name })
	registerSimple(mux, b, "/api/sequence-diagrams", b.diagrams,
		func(id int64, req api.SequenceDiagramRequest) *api.SequenceDiagram {
			return &api.SequenceDiagram{ID: id, Name: req.Name, SequenceDiagramContent: req.SequenceDiagramContent}
		},
		func(d *api.SequenceDiagram) string { return d.Name })

	return b.record(mux)
}

// featureFromRequest builds a stored feature. Caller holds mu.
func (b *Backend) featureFromRequest(id int64, req api.FeatureRequest) *api.Feature {
	f := &api.Feature{
		ID:               id,
		Name:             req.Name,
		Description:      req.Description,
		FolderID:         req.FolderID,
		TemplatePromptID: req.TemplatePromptID,
	}
	if req.TemplatePromptID != nil {
		if p, ok := b.prompts[*req.TemplatePromptID]; ok {
			name, content := p.Name, p.PromptContent
			f.TemplatePromptName, f.TemplatePromptContent = &name, &content
		}
	}
	if req.SQLQueryName != "" || req.SQLQueryContent != "" {
		name, content := req.SQLQueryName, req.SQLQueryContent
		f.SQLQueryName, f.SQLQueryContent = &name, &content
	}
	if req.SequenceDiagramName != "" || req.SequenceDiagramContent != "" {
		name, content := req.SequenceDiagramName, req.SequenceDiagramContent
		f.SequenceDiagramName, f.SequenceDiagramContent = &name, &content
	}
	return f
}

func registerSimple[Resp, Req any](mux *http.ServeMux, b *Backend, base string, store map[int64]*Resp,
	build func(int64, Req) *Resp, name func(*Resp) string) {
	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []*Resp{}
		for _, id := range sortedKeys(store) {
			out = append(out, store[id])
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET "+base+"/search", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		q := r.URL.Query().Get("name")
		out := []*Resp{}
		for _, id := range sortedKeys(store) {
			if strings.Contains(name(store[id]), q) {
				out = append(out, store[id])
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		item, ok := store[pathID(r, "id")]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, item)
	})
	mux.HandleFunc("POST "+base, func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if !readJSON(w, r, &req) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		id := b.newID()
		store[id] = build(id, req)
		writeJSON(w, http.StatusCreated, store[id])
	})
	mux.HandleFunc("PUT "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if !readJSON(w, r, &req) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		id := pathID(r, "id")
		if _, ok := store[id]; !ok {
			notFound(w)
			return
		}
		store[id] = build(id, req)
		writeJSON(w, http.StatusOK, store[id])
	})
	mux.HandleFunc("DELETE "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := pathID(r, "id")
		if _, ok := store[id]; !ok {
			notFound(w)
			return
		}
		delete(store, id)
		w.WriteHeader(http.StatusNoContent)
	})
}

// record logs each call and applies injected failures before routing.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		b.mu.Lock()
		b.calls = append(b.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		status, failing := b.fail[r.Method+" "+r.URL.Path]
		b.mu.Unlock()

		if failing {
			writeJSON(w, status, map[string]string{"message": fmt.Sprintf("injected failure %d", status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return false
	}
	return true
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
