package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/db"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/foldertree"
	"github.com/hpungsan/folio/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc    *api.Services
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *api.Services, database *sql.DB, cfg *config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{svc: svc, db: database, cfg: cfg, logger: logger}
}

// Request types for each tool

// TreeRequest represents the arguments for folder_tree.
type TreeRequest struct {
	MaxDepth *int `json:"max_depth,omitempty"`
}

// IDRequest carries a single entity id.
type IDRequest struct {
	ID int64 `json:"id"`
}

// FolderGetRequest represents the arguments for folder_get.
type FolderGetRequest struct {
	ID *int64 `json:"id,omitempty"`
}

// FolderCreateRequest represents the arguments for folder_create.
type FolderCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
}

// FolderRenameRequest represents the arguments for folder_rename.
type FolderRenameRequest struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SearchRequest represents the arguments of the search and list tools.
type SearchRequest struct {
	Name     string `json:"name,omitempty"`
	FolderID *int64 `json:"folder_id,omitempty"`
}

// FeatureSaveRequest represents the arguments for feature_save.
type FeatureSaveRequest struct {
	ID                     *int64 `json:"id,omitempty"`
	FolderID               *int64 `json:"folder_id,omitempty"`
	Name                   string `json:"name"`
	Description            string `json:"description,omitempty"`
	TemplatePromptID       int64  `json:"template_prompt_id,omitempty"`
	SQLQueryName           string `json:"sql_query_name,omitempty"`
	SQLQueryContent        string `json:"sql_query_content,omitempty"`
	SequenceDiagramName    string `json:"sequence_diagram_name,omitempty"`
	SequenceDiagramContent string `json:"sequence_diagram_content,omitempty"`
}

// FeatureMoveRequest represents the arguments for feature_move.
type FeatureMoveRequest struct {
	FeatureID int64 `json:"feature_id"`
	FolderID  int64 `json:"folder_id"`
}

// PromptSaveRequest represents the arguments for prompt_save.
type PromptSaveRequest struct {
	ID            *int64 `json:"id,omitempty"`
	Name          string `json:"name"`
	PromptContent string `json:"prompt_content,omitempty"`
}

// TreeNode is one folder in the folder_tree result.
type TreeNode struct {
	ID         int64                `json:"id"`
	Name       string               `json:"name"`
	Depth      int                  `json:"depth"`
	Features   []api.FeatureSummary `json:"features"`
	Children   []*TreeNode          `json:"children"`
	Truncated  bool                 `json:"truncated,omitempty"`
	LoadFailed bool                 `json:"load_failed,omitempty"`
}

// TreeFailure reports a folder whose subfolders could not be loaded.
type TreeFailure struct {
	FolderID int64  `json:"folder_id"`
	Message  string `json:"message"`
}

// TreeResult is the folder_tree result.
type TreeResult struct {
	Roots    []*TreeNode   `json:"roots"`
	Failures []TreeFailure `json:"failures"`
	MaxDepth int           `json:"max_depth"`
}

func treeNodes(nodes []*foldertree.Node) []*TreeNode {
	out := make([]*TreeNode, 0, len(nodes))
	for _, n := range nodes {
		features := n.Folder.Features
		if features == nil {
			features = []api.FeatureSummary{}
		}
		out = append(out, &TreeNode{
			ID:         n.Folder.ID,
			Name:       n.Folder.Name,
			Depth:      n.Depth,
			Features:   features,
			Children:   treeNodes(n.Children),
			Truncated:  n.Truncated,
			LoadFailed: n.LoadFailed,
		})
	}
	return out
}

// Handler implementations

// HandleFolderTree handles the folder_tree tool call.
func (h *Handlers) HandleFolderTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TreeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	depth := h.cfg.MaxDepth()
	if input.MaxDepth != nil {
		if *input.MaxDepth < 0 {
			return errorResult(errors.NewInvalidRequest("max_depth must be >= 0")), nil
		}
		depth = *input.MaxDepth
	}

	loader := foldertree.NewLoader(h.svc.Folders,
		foldertree.WithMaxDepth(depth),
		foldertree.WithConcurrency(h.cfg.TreeConcurrency),
		foldertree.WithLogger(h.logger.Named("foldertree")),
	)
	tree, err := ops.LoadTree(ctx, h.svc.Folders, loader)
	if err != nil {
		return errorResult(err), nil
	}

	result := TreeResult{Roots: treeNodes(tree.Roots), Failures: []TreeFailure{}, MaxDepth: loader.MaxDepth()}
	for _, f := range tree.Failures {
		result.Failures = append(result.Failures, TreeFailure{FolderID: f.FolderID, Message: errors.As(f.Err).Message})
	}
	return successResult(result)
}

// HandleFolderGet handles the folder_get tool call.
func (h *Handlers) HandleFolderGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.FolderListing(ctx, h.svc, ops.FolderListingInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFolderCreate handles the folder_create tool call.
func (h *Handlers) HandleFolderCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.CreateFolder(ctx, h.svc, ops.CreateFolderInput{
		Name:        input.Name,
		Description: input.Description,
		ParentID:    input.ParentID,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFolderRename handles the folder_rename tool call.
func (h *Handlers) HandleFolderRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderRenameRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.RenameFolder(ctx, h.svc, ops.RenameFolderInput{
		ID:          input.ID,
		Name:        input.Name,
		Description: input.Description,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFolderDelete handles the folder_delete tool call.
func (h *Handlers) HandleFolderDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.DeleteFolder(ctx, h.svc, db.NewSelection(h.db), ops.DeleteFolderInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	if err := db.SetFolderOpen(h.db, input.ID, false); err != nil {
		h.logger.Warn("failed to forget open folder", zap.Int64("folder_id", input.ID), zap.Error(err))
	}
	return successResult(result)
}

// HandleFeatureGet handles the feature_get tool call.
func (h *Handlers) HandleFeatureGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.GetFeature(ctx, h.svc, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFeatureSearch handles the feature_search tool call.
func (h *Handlers) HandleFeatureSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var items []api.Feature
	if input.FolderID != nil {
		items, err = ops.ListFeatures(ctx, h.svc, input.FolderID)
	} else {
		items, err = ops.SearchFeatures(ctx, h.svc, input.Name)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": items, "count": len(items)})
}

// HandleFeatureSave handles the feature_save tool call.
func (h *Handlers) HandleFeatureSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FeatureSaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.SaveFeature(ctx, h.svc, ops.SaveFeatureInput{
		ID:       input.ID,
		FolderID: input.FolderID,
		Fields: ops.FeatureFields{
			Name:                   input.Name,
			Description:            input.Description,
			TemplatePromptID:       input.TemplatePromptID,
			SQLQueryName:           input.SQLQueryName,
			SQLQueryContent:        input.SQLQueryContent,
			SequenceDiagramName:    input.SequenceDiagramName,
			SequenceDiagramContent: input.SequenceDiagramContent,
		},
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFeatureMove handles the feature_move tool call.
func (h *Handlers) HandleFeatureMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FeatureMoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.MoveFeature(ctx, h.svc, ops.MoveFeatureInput{FeatureID: input.FeatureID, FolderID: input.FolderID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFeatureDelete handles the feature_delete tool call.
func (h *Handlers) HandleFeatureDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := ops.DeleteFeature(ctx, h.svc, input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": input.ID, "deleted": true})
}

// HandlePromptList handles the prompt_list tool call.
func (h *Handlers) HandlePromptList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	items, err := ops.SearchPrompts(ctx, h.svc, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": items, "count": len(items)})
}

// HandlePromptGet handles the prompt_get tool call.
func (h *Handlers) HandlePromptGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.GetPrompt(ctx, h.svc, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePromptSave handles the prompt_save tool call.
func (h *Handlers) HandlePromptSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PromptSaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.SavePrompt(ctx, h.svc, ops.ArtifactInput{ID: input.ID, Name: input.Name, Content: input.PromptContent})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleQuerySearch handles the query_search tool call.
func (h *Handlers) HandleQuerySearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	items, err := ops.SearchSQLQueries(ctx, h.svc, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": items, "count": len(items)})
}

// HandleDiagramSearch handles the diagram_search tool call.
func (h *Handlers) HandleDiagramSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	items, err := ops.SearchSequenceDiagrams(ctx, h.svc, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": items, "count": len(items)})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var fErr *errors.FolioError
	if stderrors.As(err, &fErr) {
		errorObj := map[string]any{
			"code":    fErr.Code,
			"message": fErr.Message,
			"status":  fErr.Status,
		}
		if fErr.Code != errors.ErrInternal && fErr.Details != nil {
			errorObj["details"] = fErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
