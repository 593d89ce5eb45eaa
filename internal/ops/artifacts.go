package ops

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/folio/internal/api"
)

// ArtifactInput saves a named text artifact: a template prompt, SQL query or
// sequence diagram. A nil ID creates.
type ArtifactInput struct {
	ID      *int64
	Name    string
	Content string
}

// PromptFields are the editable fields of a template prompt.
type PromptFields struct {
	Name          string `json:"name"`
	PromptContent string `json:"promptContent"`
}

func (in *ArtifactInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	return validate(validation.ValidateStruct(in,
		validation.Field(&in.ID, validation.NilOrNotEmpty, idRule),
		validation.Field(&in.Name, nameRules()...),
	))
}

func save[Resp, Req any](ctx context.Context, r *api.Resource[Resp, Req], id *int64, req Req) (*Resp, error) {
	if id != nil {
		return r.Update(ctx, *id, req)
	}
	return r.Create(ctx, req)
}

func search[Resp, Req any](ctx context.Context, r *api.Resource[Resp, Req], term string) ([]Resp, error) {
	term = strings.TrimSpace(term)
	var (
		out []Resp
		err error
	)
	if term == "" {
		out, err = r.List(ctx)
	} else {
		out, err = r.SearchByName(ctx, term)
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Resp{}
	}
	return out, nil
}

func get[Resp, Req any](ctx context.Context, r *api.Resource[Resp, Req], id int64) (*Resp, error) {
	if err := validate(validation.Validate(id, validation.Required, idRule)); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func remove[Resp, Req any](ctx context.Context, r *api.Resource[Resp, Req], id int64) error {
	if err := validate(validation.Validate(id, validation.Required, idRule)); err != nil {
		return err
	}
	return r.Delete(ctx, id)
}

// SavePrompt creates or updates a template prompt.
func SavePrompt(ctx context.Context, svc *api.Services, input ArtifactInput) (*api.TemplatePrompt, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	p, err := save(ctx, svc.TemplatePrompts, input.ID, api.TemplatePromptRequest{Name: input.Name, PromptContent: input.Content})
	if err != nil {
		return nil, err
	}
	if input.ID == nil {
		if err := checkCreated("template prompt", "/template-prompts", p.ID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// GetPrompt fetches one template prompt.
func GetPrompt(ctx context.Context, svc *api.Services, id int64) (*api.TemplatePrompt, error) {
	return get(ctx, svc.TemplatePrompts, id)
}

// SearchPrompts finds template prompts by name. An empty term lists all.
func SearchPrompts(ctx context.Context, svc *api.Services, term string) ([]api.TemplatePrompt, error) {
	return search(ctx, svc.TemplatePrompts, term)
}

// DeletePrompt deletes a template prompt.
func DeletePrompt(ctx context.Context, svc *api.Services, id int64) error {
	return remove(ctx, svc.TemplatePrompts, id)
}

// SaveSQLQuery creates or updates a SQL query.
func SaveSQLQuery(ctx context.Context, svc *api.Services, input ArtifactInput) (*api.SQLQuery, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	return save(ctx, svc.SQLQueries, input.ID, api.SQLQueryRequest{Name: input.Name, QueryContent: input.Content})
}

// GetSQLQuery fetches one SQL query.
func GetSQLQuery(ctx context.Context, svc *api.Services, id int64) (*api.SQLQuery, error) {
	return get(ctx, svc.SQLQueries, id)
}

// SearchSQLQueries finds SQL queries by name. An empty term lists all.
func SearchSQLQueries(ctx context.Context, svc *api.Services, term string) ([]api.SQLQuery, error) {
	return search(ctx, svc.SQLQueries, term)
}

// DeleteSQLQuery deletes a SQL query.
func DeleteSQLQuery(ctx context.Context, svc *api.Services, id int64) error {
	return remove(ctx, svc.SQLQueries, id)
}

// SaveSequenceDiagram creates or updates a sequence diagram.
func SaveSequenceDiagram(ctx context.Context, svc *api.Services, input ArtifactInput) (*api.SequenceDiagram, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	return save(ctx, svc.SequenceDiagrams, input.ID, api.SequenceDiagramRequest{Name: input.Name, SequenceDiagramContent: input.Content})
}

// GetSequenceDiagram fetches one sequence diagram.
func GetSequenceDiagram(ctx context.Context, svc *api.Services, id int64) (*api.SequenceDiagram, error) {
	return get(ctx, svc.SequenceDiagrams, id)
}

// SearchSequenceDiagrams finds sequence diagrams by name. An empty term lists all.
func SearchSequenceDiagrams(ctx context.Context, svc *api.Services, term string) ([]api.SequenceDiagram, error) {
	return search(ctx, svc.SequenceDiagrams, term)
}

// DeleteSequenceDiagram deletes a sequence diagram.
func DeleteSequenceDiagram(ctx context.Context, svc *api.Services, id int64) error {
	return remove(ctx, svc.SequenceDiagrams, id)
}
