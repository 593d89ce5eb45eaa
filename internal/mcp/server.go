package mcp

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"folder", "feature", "prompt", "query", "diagram"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     func() toolDef
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"folder_tree": {
		def:     folderTreeTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderTree },
	},
	"folder_get": {
		def:     folderGetTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderGet },
	},
	"folder_create": {
		def:     folderCreateTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderCreate },
	},
	"folder_rename": {
		def:     folderRenameTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderRename },
	},
	"folder_delete": {
		def:     folderDeleteTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderDelete },
	},
	"feature_get": {
		def:     featureGetTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFeatureGet },
	},
	"feature_search": {
		def:     featureSearchTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFeatureSearch },
	},
	"feature_save": {
		def:     featureSaveTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFeatureSave },
	},
	"feature_move": {
		def:     featureMoveTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFeatureMove },
	},
	"feature_delete": {
		def:     featureDeleteTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFeatureDelete },
	},
	"prompt_list": {
		def:     promptListTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePromptList },
	},
	"prompt_get": {
		def:     promptGetTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePromptGet },
	},
	"prompt_save": {
		def:     promptSaveTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePromptSave },
	},
	"query_search": {
		def:     querySearchTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuerySearch },
	},
	"diagram_search": {
		def:     diagramSearchTool,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDiagramSearch },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "folder_tree" → "folder").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for _, name := range AllToolNames() {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// EnabledTools returns the sorted names of the tools cfg leaves enabled.
func EnabledTools(cfg *config.Config) []string {
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	enabled := make([]string, 0, len(toolRegistry))
	for _, name := range AllToolNames() {
		if !disabled[name] {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

// NewServer creates a new MCP server with folio tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(svc *api.Services, database *sql.DB, cfg *config.Config, logger *zap.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"folio",
		version,
		server.WithToolCapabilities(true),
	)

	if logger == nil {
		logger = zap.NewNop()
	}
	for _, name := range ValidateDisabledTools(cfg.DisabledTools) {
		logger.Warn("unknown tool in disabled_tools", zap.String("tool", name))
	}
	for _, name := range ValidateDisabledTypes(cfg.DisabledTypes) {
		logger.Warn("unknown type in disabled_types", zap.String("type", name))
	}

	h := NewHandlers(svc, database, cfg, logger)
	for _, name := range EnabledTools(cfg) {
		entry := toolRegistry[name]
		s.AddTool(entry.def().Tool, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(svc *api.Services, database *sql.DB, cfg *config.Config, logger *zap.Logger, version string) error {
	s := NewServer(svc, database, cfg, logger, version)
	return server.ServeStdio(s)
}
