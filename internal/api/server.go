package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/dgallion1/wikitoc/internal/config"
	"github.com/dgallion1/wikitoc/internal/remote"
	"github.com/dgallion1/wikitoc/internal/toc"
	"github.com/dgallion1/wikitoc/internal/wikipage"
	"github.com/dgallion1/wikitoc/internal/wikitext"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for the wiki.
type Server struct {
	router chi.Router
	store  *wikipage.Store
	toc    *toc.Renderer
	pages  *wikitext.Renderer
	remote *remote.Client
	log    *slog.Logger
	cfg    config.Config

	saveMu sync.Mutex
}

// NewServer creates and configures the HTTP server.
func NewServer(store *wikipage.Store, rc *remote.Client, log *slog.Logger, cfg config.Config) *Server {
	var res toc.Resolver
	if rc != nil {
		res = rc
	}
	tr := toc.NewRenderer(res)
	s := &Server{
		store:  store,
		toc:    tr,
		pages:  wikitext.NewRenderer(tr, log, cfg.RegraceDefault),
		remote: rc,
		log:    log,
		cfg:    cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/api/children", s.handleChildren)
	r.Get("/api/pages/{path}", s.handleGetPage)
	r.Get("/api/pages/{path}/html", s.handlePageHTML)
	r.Get("/api/pages/{path}/toc", s.handlePageTOC)
	r.Get("/api/stats/remote", s.handleRemoteStats)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.WikiAPIKey, s.log))

		r.Put("/api/pages/{path}", s.handlePutPage)
		r.Delete("/api/pages/{path}", s.handleDeletePage)
		r.Post("/api/pages/{path}/import", s.handleImport)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// persist writes the store to WIKI_ROOT when one is configured.
func (s *Server) persist() error {
	if s.cfg.WikiRoot == "" {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.store.SaveDir(s.cfg.WikiRoot)
}
