package ops

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/folio/internal/api"
)

// FeatureFields are the editable fields of a feature. TemplatePromptID 0
// means no linked prompt. The struct is comparable so editors can detect
// unchanged drafts.
type FeatureFields struct {
	Name                   string `json:"name"`
	Description            string `json:"description"`
	TemplatePromptID       int64  `json:"templatePromptId"`
	SQLQueryName           string `json:"sqlQueryName"`
	SQLQueryContent        string `json:"sqlQueryContent"`
	SequenceDiagramName    string `json:"sequenceDiagramName"`
	SequenceDiagramContent string `json:"sequenceDiagramContent"`
}

// FeatureFieldsOf extracts the editable fields from a backend feature.
func FeatureFieldsOf(f api.Feature) FeatureFields {
	fields := FeatureFields{
		Name:                   f.Name,
		Description:            f.Description,
		SQLQueryName:           api.Deref(f.SQLQueryName),
		SQLQueryContent:        api.Deref(f.SQLQueryContent),
		SequenceDiagramName:    api.Deref(f.SequenceDiagramName),
		SequenceDiagramContent: api.Deref(f.SequenceDiagramContent),
	}
	if f.TemplatePromptID != nil {
		fields.TemplatePromptID = *f.TemplatePromptID
	}
	return fields
}

func (f FeatureFields) request(folderID *int64) api.FeatureRequest {
	req := api.FeatureRequest{
		Name:                   strings.TrimSpace(f.Name),
		Description:            f.Description,
		FolderID:               folderID,
		SQLQueryName:           f.SQLQueryName,
		SQLQueryContent:        f.SQLQueryContent,
		SequenceDiagramName:    f.SequenceDiagramName,
		SequenceDiagramContent: f.SequenceDiagramContent,
	}
	if f.TemplatePromptID > 0 {
		req.TemplatePromptID = api.Int64Ptr(f.TemplatePromptID)
	}
	return req
}

// SaveFeatureInput contains parameters for SaveFeature.
type SaveFeatureInput struct {
	ID       *int64 // set: update
	FolderID *int64 // create inside this folder
	Fields   FeatureFields
}

// SaveFeatureOutput contains the result of SaveFeature.
type SaveFeatureOutput struct {
	Feature api.Feature `json:"feature"`
	Created bool        `json:"created"`
}

// SaveFeature updates a feature when ID is set. Otherwise it creates one,
// through the folder's feature endpoint when FolderID is set.
func SaveFeature(ctx context.Context, svc *api.Services, input SaveFeatureInput) (*SaveFeatureOutput, error) {
	name := strings.TrimSpace(input.Fields.Name)
	if err := validate(validation.ValidateStruct(&input,
		validation.Field(&input.ID, validation.NilOrNotEmpty, idRule),
		validation.Field(&input.FolderID, validation.NilOrNotEmpty, idRule),
	)); err != nil {
		return nil, err
	}
	if err := validate(validation.Errors{
		"Name":             validation.Validate(name, nameRules()...),
		"Description":      validation.Validate(input.Fields.Description, validation.Length(0, MaxDescriptionLength)),
		"TemplatePromptID": validation.Validate(input.Fields.TemplatePromptID, validation.Min(int64(0))),
	}.Filter()); err != nil {
		return nil, err
	}

	var (
		f    *api.Feature
		err  error
		path = "/features"
	)
	switch {
	case input.ID != nil:
		f, err = svc.Features.Update(ctx, *input.ID, input.Fields.request(input.FolderID))
	case input.FolderID != nil:
		path = fmt.Sprintf("/folders/%d/features", *input.FolderID)
		f, err = svc.Folders.AddFeature(ctx, *input.FolderID, input.Fields.request(input.FolderID))
	default:
		f, err = svc.Features.Create(ctx, input.Fields.request(nil))
	}
	if err != nil {
		return nil, err
	}
	if input.ID == nil {
		if err := checkCreated("feature", path, f.ID); err != nil {
			return nil, err
		}
	}
	return &SaveFeatureOutput{Feature: *f, Created: input.ID == nil}, nil
}

// GetFeature fetches one feature.
func GetFeature(ctx context.Context, svc *api.Services, id int64) (*api.Feature, error) {
	if err := validate(validation.Validate(id, validation.Required, idRule)); err != nil {
		return nil, err
	}
	return svc.Features.Get(ctx, id)
}

// ListFeatures lists every feature, or those in one folder.
func ListFeatures(ctx context.Context, svc *api.Services, folderID *int64) ([]api.Feature, error) {
	var (
		out []api.Feature
		err error
	)
	if folderID != nil {
		out, err = svc.Features.ListByFolder(ctx, *folderID)
	} else {
		out, err = svc.Features.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []api.Feature{}
	}
	return out, nil
}

// SearchFeatures finds features by name. An empty term lists every feature.
func SearchFeatures(ctx context.Context, svc *api.Services, term string) ([]api.Feature, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return ListFeatures(ctx, svc, nil)
	}
	out, err := svc.Features.SearchByName(ctx, term)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []api.Feature{}
	}
	return out, nil
}

// MoveFeatureInput contains parameters for MoveFeature.
type MoveFeatureInput struct {
	FeatureID int64
	FolderID  int64
}

// MoveFeature assigns a feature to a folder.
func MoveFeature(ctx context.Context, svc *api.Services, input MoveFeatureInput) (*api.Feature, error) {
	if err := validate(validation.ValidateStruct(&input,
		validation.Field(&input.FeatureID, validation.Required, idRule),
		validation.Field(&input.FolderID, validation.Required, idRule),
	)); err != nil {
		return nil, err
	}
	return svc.Folders.MoveFeature(ctx, input.FolderID, input.FeatureID)
}

// DeleteFeature deletes one feature.
func DeleteFeature(ctx context.Context, svc *api.Services, id int64) error {
	if err := validate(validation.Validate(id, validation.Required, idRule)); err != nil {
		return err
	}
	return svc.Features.Delete(ctx, id)
}
