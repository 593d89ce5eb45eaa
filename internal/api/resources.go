package api

import (
	"context"
	"net/url"
)

// Resource is the CRUD + search surface shared by every backend collection.
// Resp is the response DTO and Req the request DTO.
type Resource[Resp, Req any] struct {
	c    *Client
	path string
}

// NewResource binds a collection path such as "/template-prompts".
func NewResource[Resp, Req any](c *Client, path string) *Resource[Resp, Req] {
	return &Resource[Resp, Req]{c: c, path: path}
}

// List fetches every item: GET {path}.
func (r *Resource[Resp, Req]) List(ctx context.Context) ([]Resp, error) {
	var out []Resp
	if err := r.c.Get(ctx, r.path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one item: GET {path}/{id}.
func (r *Resource[Resp, Req]) Get(ctx context.Context, id int64) (*Resp, error) {
	var out Resp
	if err := r.c.Get(ctx, idPath(r.path, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create adds an item: POST {path}.
func (r *Resource[Resp, Req]) Create(ctx context.Context, req Req) (*Resp, error) {
	var out Resp
	if err := r.c.Post(ctx, r.path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an item: PUT {path}/{id}.
func (r *Resource[Resp, Req]) Update(ctx context.Context, id int64, req Req) (*Resp, error) {
	var out Resp
	if err := r.c.Put(ctx, idPath(r.path, id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an item: DELETE {path}/{id}.
func (r *Resource[Resp, Req]) Delete(ctx context.Context, id int64) error {
	return r.c.Delete(ctx, idPath(r.path, id))
}

// SearchByName finds items by name: GET {path}/search?name=.
func (r *Resource[Resp, Req]) SearchByName(ctx context.Context, name string) ([]Resp, error) {
	var out []Resp
	if err := r.c.Get(ctx, r.path+"/search", nameQuery(name), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FolderClient adds the hierarchy endpoints to the folder collection.
type FolderClient struct {
	*Resource[Folder, FolderRequest]
}

// Children fetches the direct child folders: GET /folders/{id}/children.
func (f *FolderClient) Children(ctx context.Context, id int64) ([]Folder, error) {
	var out []Folder
	if err := f.c.Get(ctx, idPath(f.path, id)+"/children", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Roots fetches folders without a parent: GET /folders/root.
func (f *FolderClient) Roots(ctx context.Context) ([]Folder, error) {
	var out []Folder
	if err := f.c.Get(ctx, f.path+"/root", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddFeature creates a feature inside a folder: POST /folders/{id}/features.
func (f *FolderClient) AddFeature(ctx context.Context, folderID int64, req FeatureRequest) (*Feature, error) {
	var out Feature
	if err := f.c.Post(ctx, idPath(f.path, folderID)+"/features", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MoveFeature moves a feature into a folder: PUT /folders/{id}/features/{featureId}.
func (f *FolderClient) MoveFeature(ctx context.Context, folderID, featureID int64) (*Feature, error) {
	var out Feature
	if err := f.c.Put(ctx, idPath(idPath(f.path, folderID)+"/features", featureID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FeatureClient adds folder filtering to the feature collection.
type FeatureClient struct {
	*Resource[Feature, FeatureRequest]
}

// ListByFolder fetches the features of a folder: GET /features/folder/{folderId}.
func (f *FeatureClient) ListByFolder(ctx context.Context, folderID int64) ([]Feature, error) {
	var out []Feature
	if err := f.c.Get(ctx, idPath(f.path+"/folder", folderID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DemoClient calls the backend's demo endpoints.
type DemoClient struct {
	c *Client
}

// Hello echoes a message: GET /demo/hello?message=.
func (d *DemoClient) Hello(ctx context.Context, message string) (*Hello, error) {
	if message == "" {
		message = "Hello, World!"
	}
	var out Hello
	if err := d.c.Get(ctx, "/demo/hello", url.Values{"message": []string{message}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Error calls an endpoint that always fails: GET /demo/error.
func (d *DemoClient) Error(ctx context.Context) error {
	return d.c.Get(ctx, "/demo/error", nil, nil)
}

// Services bundles one client per backend resource.
type Services struct {
	Demo             *DemoClient
	Folders          *FolderClient
	Features         *FeatureClient
	TemplatePrompts  *Resource[TemplatePrompt, TemplatePromptRequest]
	SQLQueries       *Resource[SQLQuery, SQLQueryRequest]
	SequenceDiagrams *Resource[SequenceDiagram, SequenceDiagramRequest]
}

// NewServices builds every resource client on top of c.
func NewServices(c *Client) *Services {
	return &Services{
		Demo:             &DemoClient{c: c},
		Folders:          &FolderClient{Resource: NewResource[Folder, FolderRequest](c, "/folders")},
		Features:         &FeatureClient{Resource: NewResource[Feature, FeatureRequest](c, "/features")},
		TemplatePrompts:  NewResource[TemplatePrompt, TemplatePromptRequest](c, "/template-prompts"),
		SQLQueries:       NewResource[SQLQuery, SQLQueryRequest](c, "/sql-queries"),
		SequenceDiagrams: NewResource[SequenceDiagram, SequenceDiagramRequest](c, "/sequence-diagrams"),
	}
}
