package editor

import (
	"context"
	"fmt"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/ops"
)

// FeatureLocations are the feature screens.
var FeatureLocations = Locations{
	Detail: func(id int64) string { return fmt.Sprintf("/features/info?id=%d", id) },
	List:   "/features",
}

// PromptLocations are the template-prompt screens.
var PromptLocations = Locations{
	Detail: func(id int64) string { return fmt.Sprintf("/template-prompts/info?id=%d", id) },
	List:   "/template-prompts",
}

// FeatureStore persists features. New features are created inside FolderID
// when it is set.
type FeatureStore struct {
	Services *api.Services
	FolderID *int64
}

func (s FeatureStore) Fetch(ctx context.Context, id int64) (ops.FeatureFields, error) {
	f, err := ops.GetFeature(ctx, s.Services, id)
	if err != nil {
		return ops.FeatureFields{}, err
	}
	return ops.FeatureFieldsOf(*f), nil
}

func (s FeatureStore) Create(ctx context.Context, fields ops.FeatureFields) (int64, error) {
	out, err := ops.SaveFeature(ctx, s.Services, ops.SaveFeatureInput{FolderID: s.FolderID, Fields: fields})
	if err != nil {
		return 0, err
	}
	return out.Feature.ID, nil
}

func (s FeatureStore) Update(ctx context.Context, id int64, fields ops.FeatureFields) error {
	_, err := ops.SaveFeature(ctx, s.Services, ops.SaveFeatureInput{ID: &id, Fields: fields})
	return err
}

func (s FeatureStore) Delete(ctx context.Context, id int64) error {
	return ops.DeleteFeature(ctx, s.Services, id)
}

// PromptPreview fetches the linked template prompt for read-only display.
// A zero id means no prompt is linked.
func (s FeatureStore) PromptPreview(ctx context.Context, promptID int64) (*api.TemplatePrompt, error) {
	if promptID == 0 {
		return nil, nil
	}
	return ops.GetPrompt(ctx, s.Services, promptID)
}

// PromptStore persists template prompts.
type PromptStore struct {
	Services *api.Services
}

func (s PromptStore) Fetch(ctx context.Context, id int64) (ops.PromptFields, error) {
	p, err := ops.GetPrompt(ctx, s.Services, id)
	if err != nil {
		return ops.PromptFields{}, err
	}
	return ops.PromptFields{Name: p.Name, PromptContent: p.PromptContent}, nil
}

func (s PromptStore) Create(ctx context.Context, fields ops.PromptFields) (int64, error) {
	p, err := ops.SavePrompt(ctx, s.Services, ops.ArtifactInput{Name: fields.Name, Content: fields.PromptContent})
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (s PromptStore) Update(ctx context.Context, id int64, fields ops.PromptFields) error {
	_, err := ops.SavePrompt(ctx, s.Services, ops.ArtifactInput{ID: &id, Name: fields.Name, Content: fields.PromptContent})
	return err
}

func (s PromptStore) Delete(ctx context.Context, id int64) error {
	return ops.DeletePrompt(ctx, s.Services, id)
}
