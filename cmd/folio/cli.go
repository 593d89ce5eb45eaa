package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/db"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/foldertree"
	"github.com/hpungsan/folio/internal/mcp"
	"github.com/hpungsan/folio/internal/ops"
	"github.com/hpungsan/folio/internal/web"
)

// appDeps are the collaborators shared by every command.
type appDeps struct {
	svc    *api.Services
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *appDeps) *cli.App {
	if d.cfg == nil {
		d.cfg = config.DefaultConfig()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	app := &cli.App{
		Name:    "folio",
		Usage:   "Browse and edit folders, features, template prompts and SQL queries",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(d),
			mcpCmd(d),
			foldersCmd(d),
			featuresCmd(d),
			promptsCmd(d),
			queriesCmd(d),
			diagramsCmd(d),
			demoCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind, port := d.cfg.Bind, d.cfg.Port
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			if c.IsSet("port") {
				port = c.Int("port")
			}
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}

			h := web.NewHandlers(web.Deps{
				Services: d.svc,
				DB:       d.db,
				Config:   d.cfg,
				Logger:   d.logger.Named("web"),
				Version:  Version,
			})
			return web.Run(web.NewServer(h, bind, port), h, d.logger)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server over stdio",
		Action: func(c *cli.Context) error {
			return mcp.Run(d.svc, d.db, d.cfg, d.logger.Named("mcp"), Version)
		},
	}
}

// foldersCmd groups the folder commands.
func foldersCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "folders",
		Usage: "Manage folders",
		Subcommands: []*cli.Command{
			{
				Name:  "tree",
				Usage: "Print the folder tree",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Value: -1, Usage: "Deepest level to load; 0 loads everything (default from config)"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|yaml"},
				},
				Action: func(c *cli.Context) error {
					format := c.String("format")
					if format != "json" && format != "yaml" {
						return outputError(errors.NewInvalidRequest("format must be json or yaml"))
					}
					depth := d.cfg.MaxDepth()
					if c.Int("depth") >= 0 {
						depth = c.Int("depth")
					}

					loader := foldertree.NewLoader(d.svc.Folders,
						foldertree.WithMaxDepth(depth),
						foldertree.WithConcurrency(d.cfg.TreeConcurrency),
						foldertree.WithLogger(d.logger.Named("foldertree")),
					)
					tree, err := ops.LoadTree(c.Context, d.svc.Folders, loader)
					if err != nil {
						return outputError(err)
					}

					out := exportTree(tree)
					if format == "yaml" {
						return outputYAML(c, out)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:  "list",
				Usage: "Show a folder's contents and breadcrumbs (the top level without --id)",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Usage: "Folder id"},
				},
				Action: func(c *cli.Context) error {
					input := ops.FolderListingInput{}
					if c.IsSet("id") {
						id := c.Int64("id")
						input.ID = &id
					}
					out, err := ops.FolderListing(c.Context, d.svc, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:  "create",
				Usage: "Create a folder",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Folder name"},
					&cli.StringFlag{Name: "description", Usage: "Folder description"},
					&cli.Int64Flag{Name: "parent", Usage: "Parent folder id"},
				},
				Action: func(c *cli.Context) error {
					input := ops.CreateFolderInput{Name: c.String("name"), Description: c.String("description")}
					if c.IsSet("parent") {
						parent := c.Int64("parent")
						input.ParentID = &parent
					}
					out, err := ops.CreateFolder(c.Context, d.svc, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a folder",
				ArgsUsage: "--name NAME <id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "New name"},
					&cli.StringFlag{Name: "description", Usage: "New description (kept when omitted)"},
				},
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					out, err := ops.RenameFolder(c.Context, d.svc, ops.RenameFolderInput{
						ID:          id,
						Name:        c.String("name"),
						Description: c.String("description"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a folder",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					var sel ops.SelectionStore
					if d.db != nil {
						sel = db.NewSelection(d.db)
					}
					out, err := ops.DeleteFolder(c.Context, d.svc, sel, ops.DeleteFolderInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					if d.db != nil {
						if err := db.SetFolderOpen(d.db, id, false); err != nil {
							d.logger.Warn("failed to forget open folder", zap.Int64("folder_id", id), zap.Error(err))
						}
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:  "search",
				Usage: "Search folders by name",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Name substring"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.SearchFolders(c.Context, d.svc, c.String("name"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
		},
	}
}

// featuresCmd groups the feature commands.
func featuresCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "features",
		Usage: "Manage features",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Fetch a feature",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					out, err := ops.GetFeature(c.Context, d.svc, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:  "list",
				Usage: "List features, optionally of one folder",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "folder", Usage: "Folder id"},
				},
				Action: func(c *cli.Context) error {
					var folderID *int64
					if c.IsSet("folder") {
						id := c.Int64("folder")
						folderID = &id
					}
					out, err := ops.ListFeatures(c.Context, d.svc, folderID)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:  "search",
				Usage: "Search features by name",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Name substring"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.SearchFeatures(c.Context, d.svc, c.String("name"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:  "create",
				Usage: "Create a feature (reads the description from stdin when piped)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Feature name"},
					&cli.Int64Flag{Name: "folder", Usage: "Folder to create the feature in"},
					&cli.StringFlag{Name: "description", Usage: "Feature description"},
					&cli.Int64Flag{Name: "prompt", Usage: "Linked template prompt id"},
					&cli.StringFlag{Name: "sql-name", Usage: "SQL query name"},
					&cli.StringFlag{Name: "sql", Usage: "SQL query text"},
					&cli.StringFlag{Name: "diagram-name", Usage: "Sequence diagram name"},
					&cli.StringFlag{Name: "diagram", Usage: "Sequence diagram source"},
				},
				Action: func(c *cli.Context) error {
					fields := ops.FeatureFields{
						Name:                   c.String("name"),
						Description:            c.String("description"),
						TemplatePromptID:       c.Int64("prompt"),
						SQLQueryName:           c.String("sql-name"),
						SQLQueryContent:        c.String("sql"),
						SequenceDiagramName:    c.String("diagram-name"),
						SequenceDiagramContent: c.String("diagram"),
					}
					if fields.Description == "" {
						text, err := readInput(c)
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						fields.Description = text
					}

					input := ops.SaveFeatureInput{Fields: fields}
					if c.IsSet("folder") {
						folder := c.Int64("folder")
						input.FolderID = &folder
					}
					out, err := ops.SaveFeature(c.Context, d.svc, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "move",
				Usage:     "Move a feature into a folder",
				ArgsUsage: "--folder ID <id>",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "folder", Required: true, Usage: "Destination folder id"},
				},
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					out, err := ops.MoveFeature(c.Context, d.svc, ops.MoveFeatureInput{FeatureID: id, FolderID: c.Int64("folder")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a feature",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					if err := ops.DeleteFeature(c.Context, d.svc, id); err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]any{"id": id, "deleted": true})
				},
			},
		},
	}
}

// promptsCmd groups the template prompt commands.
func promptsCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "prompts",
		Usage: "Manage template prompts",
		Subcommands: []*cli.Command{
			listCmd(func(c *cli.Context) (any, error) { return ops.SearchPrompts(c.Context, d.svc, "") }),
			getCmd(func(c *cli.Context, id int64) (any, error) { return ops.GetPrompt(c.Context, d.svc, id) }),
			searchCmd(func(c *cli.Context, name string) (any, error) { return ops.SearchPrompts(c.Context, d.svc, name) }),
			{
				Name:  "create",
				Usage: "Create a template prompt (reads the content from stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Prompt name"},
				},
				Action: func(c *cli.Context) error {
					content, err := readInput(c)
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					if content == "" {
						return outputError(errors.NewInvalidRequest("prompt content must be piped via stdin"))
					}
					out, err := ops.SavePrompt(c.Context, d.svc, ops.ArtifactInput{Name: c.String("name"), Content: content})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a template prompt",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					if err := ops.DeletePrompt(c.Context, d.svc, id); err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]any{"id": id, "deleted": true})
				},
			},
		},
	}
}

// queriesCmd groups the SQL query commands.
func queriesCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "queries",
		Usage: "Browse SQL queries",
		Subcommands: []*cli.Command{
			listCmd(func(c *cli.Context) (any, error) { return ops.SearchSQLQueries(c.Context, d.svc, "") }),
			getCmd(func(c *cli.Context, id int64) (any, error) { return ops.GetSQLQuery(c.Context, d.svc, id) }),
			searchCmd(func(c *cli.Context, name string) (any, error) { return ops.SearchSQLQueries(c.Context, d.svc, name) }),
		},
	}
}

// diagramsCmd groups the sequence diagram commands.
func diagramsCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "diagrams",
		Usage: "Browse sequence diagrams",
		Subcommands: []*cli.Command{
			listCmd(func(c *cli.Context) (any, error) { return ops.SearchSequenceDiagrams(c.Context, d.svc, "") }),
			getCmd(func(c *cli.Context, id int64) (any, error) { return ops.GetSequenceDiagram(c.Context, d.svc, id) }),
			searchCmd(func(c *cli.Context, name string) (any, error) {
				return ops.SearchSequenceDiagrams(c.Context, d.svc, name)
			}),
		},
	}
}

// demoCmd exercises the backend's demo endpoints.
func demoCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Call the backend demo endpoints",
		Subcommands: []*cli.Command{
			{
				Name:  "hello",
				Usage: "Echo a greeting",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Message to echo"},
				},
				Action: func(c *cli.Context) error {
					out, err := d.svc.Demo.Hello(c.Context, c.String("message"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, out)
				},
			},
			{
				Name:  "error",
				Usage: "Trigger the backend's sample error",
				Action: func(c *cli.Context) error {
					if err := d.svc.Demo.Error(c.Context); err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]any{"ok": true})
				},
			},
		},
	}
}

func listCmd(fetch func(*cli.Context) (any, error)) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all items",
		Action: func(c *cli.Context) error {
			out, err := fetch(c)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

func getCmd(fetch func(*cli.Context, int64) (any, error)) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch one item",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := argID(c)
			if err != nil {
				return outputError(err)
			}
			out, err := fetch(c, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

func searchCmd(search func(*cli.Context, string) (any, error)) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search items by name",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Name substring"},
		},
		Action: func(c *cli.Context) error {
			out, err := search(c, c.String("name"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

// treeExport is the printable form of a folder tree node.
type treeExport struct {
	ID         int64                `json:"id" yaml:"id"`
	Name       string               `json:"name" yaml:"name"`
	Features   []api.FeatureSummary `json:"features,omitempty" yaml:"features,omitempty"`
	Children   []treeExport         `json:"children,omitempty" yaml:"children,omitempty"`
	Truncated  bool                 `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	LoadFailed bool                 `json:"load_failed,omitempty" yaml:"load_failed,omitempty"`
}

// treeOutput is the folders tree result.
type treeOutput struct {
	Folders  []treeExport `json:"folders" yaml:"folders"`
	Failures []int64      `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func exportNodes(nodes []*foldertree.Node) []treeExport {
	out := make([]treeExport, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, treeExport{
			ID:         n.Folder.ID,
			Name:       n.Folder.Name,
			Features:   n.Folder.Features,
			Children:   exportNodes(n.Children),
			Truncated:  n.Truncated,
			LoadFailed: n.LoadFailed,
		})
	}
	return out
}

func exportTree(tree *foldertree.Tree) treeOutput {
	out := treeOutput{Folders: exportNodes(tree.Roots)}
	for _, f := range tree.Failures {
		out.Failures = append(out.Failures, f.FolderID)
	}
	return out
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML writes v to the app's writer as YAML.
func outputYAML(c *cli.Context, v any) error {
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// outputError formats error for CLI.
func outputError(err error) error {
	var fErr *errors.FolioError
	if stderrors.As(err, &fErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", fErr.Code, fErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// argID parses the first positional argument as an entity id.
func argID(c *cli.Context) (int64, error) {
	if c.NArg() == 0 {
		return 0, errors.NewInvalidRequest("id argument is required")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest("id must be a positive integer")
	}
	return id, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readInput reads the app's reader. A terminal stdin yields nothing rather
// than blocking for input.
func readInput(c *cli.Context) (string, error) {
	r := c.App.Reader
	if r == nil || (r == io.Reader(os.Stdin) && !stdinHasData()) {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
