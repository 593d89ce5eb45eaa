package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/api"
	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/editor"
	"github.com/hpungsan/folio/internal/foldertree"
	"github.com/hpungsan/folio/internal/navtree"
	"github.com/hpungsan/folio/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the collaborators of the web UI.
type Deps struct {
	Services *api.Services
	DB       *sql.DB
	Config   *config.Config
	Logger   *zap.Logger
	Version  string

	// EditorOptions are appended to every editor session, after the
	// configured auto-save delay.
	EditorOptions []editor.Option
	// SessionOptions configure the per-kind editor session registries.
	SessionOptions []editor.RegistryOption
}

// NewHandlers wires the handlers and their state.
func NewHandlers(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Config == nil {
		d.Config = config.DefaultConfig()
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(fmt.Sprintf("failed to create template sub-FS: %v", err))
	}

	nav := navtree.New(d.Services, d.DB,
		navtree.WithLogger(d.Logger.Named("navtree")),
		navtree.WithLoaderOptions(
			foldertree.WithMaxDepth(d.Config.MaxDepth()),
			foldertree.WithConcurrency(d.Config.TreeConcurrency),
		),
	)

	editorOpts := append([]editor.Option{
		editor.WithDelay(d.Config.AutosaveDelay()),
		editor.WithLogger(d.Logger.Named("editor")),
	}, d.EditorOptions...)

	return &Handlers{
		svc:        d.Services,
		cfg:        d.Config,
		logger:     d.Logger,
		renderer:   NewRenderer(templateSub, d.Version, d.Logger.Named("render")),
		nav:        nav,
		features:   editor.NewRegistry[ops.FeatureFields](d.SessionOptions...),
		prompts:    editor.NewRegistry[ops.PromptFields](d.SessionOptions...),
		editorOpts: editorOpts,
	}
}

// Routes returns the UI's handler tree, wrapped with security headers.
func (h *Handlers) Routes() http.Handler {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to create static sub-FS: %v", err))
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/folders", http.StatusFound)
	})
	mux.HandleFunc("GET /folders", h.HandleFolders)

	mux.HandleFunc("GET /tree", h.HandleTree)
	mux.HandleFunc("POST /tree/toggle/{id}", h.HandleToggle)
	mux.HandleFunc("POST /tree/select/{id}", h.HandleSelect)
	mux.HandleFunc("POST /tree/feature/{id}", h.HandleActivateFeature)
	mux.HandleFunc("POST /tree/dialog/create", h.HandleDialogCreate)
	mux.HandleFunc("POST /tree/dialog/rename/{id}", h.HandleDialogRename)
	mux.HandleFunc("POST /tree/dialog/delete/{id}", h.HandleDialogDelete)
	mux.HandleFunc("POST /tree/dialog/cancel", h.HandleDialogCancel)
	mux.HandleFunc("POST /tree/dialog/submit", h.HandleDialogSubmit)

	mux.HandleFunc("GET /features", h.HandleFeatureList)
	mux.HandleFunc("GET /features/info", h.HandleFeatureInfo)
	mux.HandleFunc("POST /features/info/field", h.HandleFeatureField)
	mux.HandleFunc("POST /features/info/save", h.HandleFeatureSave)
	mux.HandleFunc("POST /features/info/delete", h.HandleFeatureDelete)

	mux.HandleFunc("GET /template-prompts", h.HandlePromptList)
	mux.HandleFunc("GET /template-prompts/info", h.HandlePromptInfo)
	mux.HandleFunc("POST /template-prompts/info/field", h.HandlePromptField)
	mux.HandleFunc("POST /template-prompts/info/save", h.HandlePromptSave)
	mux.HandleFunc("POST /template-prompts/info/delete", h.HandlePromptDelete)

	mux.HandleFunc("GET /sql-queries", h.HandleQueryList)
	mux.HandleFunc("GET /sequence-diagrams", h.HandleDiagramList)
	mux.HandleFunc("GET /demo", h.HandleDemo)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(mux)
}

// Shutdown writes any pending auto-saves.
func (h *Handlers) Shutdown() {
	h.features.Shutdown()
	h.prompts.Shutdown()
}

// NewServer creates and configures the HTTP server for the folio web UI.
func NewServer(h *Handlers, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
// Pending auto-saves are written before it returns.
func Run(srv *http.Server, h *Handlers, logger *zap.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("folio UI running", zap.String("url", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		h.Shutdown()
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(ctx)
		h.Shutdown()
		return err
	}
}
