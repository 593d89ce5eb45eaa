package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/db"
	"github.com/hpungsan/folio/internal/logging"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "mcp": true,
	"folders": true, "features": true, "prompts": true,
	"queries": true, "diagrams": true, "demo": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   __       _ _
  / _| ___ | (_) ___
 | |_ / _ \| | |/ _ \
 |  _| (_) | | | (_) |
 |_|  \___/|_|_|\___/

  Folders, features, prompts and queries

  Usage: folio <command> [options]
         folio serve
         folio --help

  MCP server mode requires piped input.`)
}

// baseDir is where folio keeps its database, config and logs.
func baseDir() (string, error) {
	if dir := os.Getenv("FOLIO_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".folio"), nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	args := os.Args

	// No args + interactive terminal → show banner and exit
	if len(args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before any setup
	if isHelpOrVersion(args) {
		if err := newCLIApp(&appDeps{}).Run(args); err != nil {
			fatal("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode(args) && len(args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[1])
		fmt.Fprintf(os.Stderr, "Run 'folio --help' for usage.\n")
		os.Exit(1)
	}

	dir, err := baseDir()
	if err != nil {
		fatal("%v", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	// stdout carries the MCP protocol and CLI output, so logs go to stderr.
	logger, err := logging.New(cfg, logging.Options{Console: os.Stderr, BaseDir: dir})
	if err != nil {
		fatal("failed to set up logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Init(dir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()

	svc := api.NewServices(api.New(cfg.APIBaseURL,
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithLogger(logger.Named("api")),
	))

	deps := &appDeps{svc: svc, db: database, cfg: cfg, logger: logger}

	// MCP server mode is the default for piped input.
	if !isCLIMode(args) {
		args = []string{args[0], "mcp"}
	}
	if err := newCLIApp(deps).Run(args); err != nil {
		logger.Debug("command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
