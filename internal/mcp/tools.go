package mcp

import "github.com/mark3labs/mcp-go/mcp"

type toolDef struct {
	mcp.Tool
}

func readOnly(name, desc string, opts ...mcp.ToolOption) toolDef {
	opts = append([]mcp.ToolOption{
		mcp.WithDescription(desc),
		mcp.WithReadOnlyHintAnnotation(true),
	}, opts...)
	return toolDef{mcp.NewTool(name, opts...)}
}

func mutating(name, desc string, destructive bool, opts ...mcp.ToolOption) toolDef {
	opts = append([]mcp.ToolOption{
		mcp.WithDescription(desc),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(destructive),
	}, opts...)
	return toolDef{mcp.NewTool(name, opts...)}
}

func idParam(name, desc string) mcp.ToolOption {
	return mcp.WithNumber(name, mcp.Required(), mcp.Description(desc))
}

func searchParam() mcp.ToolOption {
	return mcp.WithString("name", mcp.Description("Name substring to match. Empty lists everything."))
}

func folderTreeTool() toolDef {
	return readOnly("folder_tree",
		"Load the folder tree from the root folders down. Subfolders that fail to load are reported in failures; the rest of the tree is still returned.",
		mcp.WithNumber("max_depth", mcp.Description("Deepest level to load; roots are level 1. 0 loads everything. Defaults to the configured depth.")),
	)
}

func folderGetTool() toolDef {
	return readOnly("folder_get",
		"Fetch a folder with its child folders, features and breadcrumbs. Omit id for the synthetic root listing.",
		mcp.WithNumber("id", mcp.Description("Folder id")),
	)
}

func folderCreateTool() toolDef {
	return mutating("folder_create", "Create a folder, at the top level unless parent_id is set.", false,
		mcp.WithString("name", mcp.Required(), mcp.Description("Folder name (max 255 chars)")),
		mcp.WithString("description", mcp.Description("Folder description")),
		mcp.WithNumber("parent_id", mcp.Description("Parent folder id")),
	)
}

func folderRenameTool() toolDef {
	return mutating("folder_rename", "Rename a folder. An omitted description keeps the current one.", false,
		idParam("id", "Folder id"),
		mcp.WithString("name", mcp.Required(), mcp.Description("New folder name")),
		mcp.WithString("description", mcp.Description("New description")),
	)
}

func folderDeleteTool() toolDef {
	return mutating("folder_delete", "Delete a folder. Clears the saved selection if it pointed at this folder.", true,
		idParam("id", "Folder id"),
	)
}

func featureGetTool() toolDef {
	return readOnly("feature_get", "Fetch a feature with its linked template prompt, SQL query and sequence diagram.",
		idParam("id", "Feature id"),
	)
}

func featureSearchTool() toolDef {
	return readOnly("feature_search", "Search features by name, or list the features of one folder.",
		searchParam(),
		mcp.WithNumber("folder_id", mcp.Description("Only features in this folder; name is ignored when set")),
	)
}

func featureSaveTool() toolDef {
	return mutating("feature_save", "Create or update a feature. Set id to update; set folder_id to create inside a folder.", false,
		mcp.WithNumber("id", mcp.Description("Feature id to update")),
		mcp.WithNumber("folder_id", mcp.Description("Folder to create the feature in")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Feature name")),
		mcp.WithString("description", mcp.Description("Feature description")),
		mcp.WithNumber("template_prompt_id", mcp.Description("Linked template prompt id; 0 for none")),
		mcp.WithString("sql_query_name", mcp.Description("Name of the feature's SQL query")),
		mcp.WithString("sql_query_content", mcp.Description("SQL text")),
		mcp.WithString("sequence_diagram_name", mcp.Description("Name of the feature's sequence diagram")),
		mcp.WithString("sequence_diagram_content", mcp.Description("Diagram source")),
	)
}

func featureMoveTool() toolDef {
	return mutating("feature_move", "Move a feature into a folder.", false,
		idParam("feature_id", "Feature id"),
		idParam("folder_id", "Destination folder id"),
	)
}

func featureDeleteTool() toolDef {
	return mutating("feature_delete", "Delete a feature.", true,
		idParam("id", "Feature id"),
	)
}

func promptListTool() toolDef {
	return readOnly("prompt_list", "List template prompts, optionally filtered by name.", searchParam())
}

func promptGetTool() toolDef {
	return readOnly("prompt_get", "Fetch a template prompt.", idParam("id", "Template prompt id"))
}

func promptSaveTool() toolDef {
	return mutating("prompt_save", "Create or update a template prompt. Set id to update.", false,
		mcp.WithNumber("id", mcp.Description("Template prompt id to update")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Prompt name")),
		mcp.WithString("prompt_content", mcp.Description("Prompt body (markdown)")),
	)
}

func querySearchTool() toolDef {
	return readOnly("query_search", "Search SQL queries by name.", searchParam())
}

func diagramSearchTool() toolDef {
	return readOnly("diagram_search", "Search sequence diagrams by name.", searchParam())
}
