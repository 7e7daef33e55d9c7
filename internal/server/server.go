// Package server assembles the story services, the Huma API and the
// viewer page into one HTTP handler.
package server

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostory/internal/api"
	"github.com/joeblew999/geostory/internal/db"
	"github.com/joeblew999/geostory/internal/logging"
	"github.com/joeblew999/geostory/internal/service"
	"github.com/joeblew999/geostory/internal/source"
	"github.com/joeblew999/geostory/internal/story"
	"github.com/joeblew999/geostory/internal/templates"
)

//go:embed web
var webFS embed.FS

// Config holds the server configuration.
type Config struct {
	Host string
	Port string
	// StoryFile is the YAML story; empty serves the built-in story.
	StoryFile string
	// DataDir overrides the story's data directory when set.
	DataDir string
	// DBPath is the DuckDB file; empty keeps the catalog in memory.
	DBPath string
	// NoDB disables the feature catalog.
	NoDB bool
	// FetchTimeout bounds each HTTP candidate fetch.
	FetchTimeout time.Duration
	// FetchRate limits HTTP fetches per second; 0 is unlimited.
	FetchRate float64
	// Concurrency bounds simultaneous dataset loads.
	Concurrency int
	// TemplatesDir replaces the built-in HTML fragments when set.
	TemplatesDir string
}

// Server is the geostory HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	story    *story.Config
	db       *sql.DB
	bus      *service.EventBus
	services *api.Services
	renderer *templates.Renderer
	log      zerolog.Logger
}

// New creates a server. Datasets are not fetched until Load is called.
func New(cfg Config) (*Server, error) {
	logger := logging.Component("server")

	st, err := story.Load(cfg.StoryFile)
	if err != nil {
		return nil, err
	}
	if cfg.DataDir != "" {
		st.DataDir = cfg.DataDir
	}

	renderer, err := newRenderer(cfg.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	s := &Server{
		config:   cfg,
		mux:      http.NewServeMux(),
		story:    st,
		bus:      service.NewEventBus(0),
		renderer: renderer,
		log:      logger,
	}

	var catalog service.Catalog
	if !cfg.NoDB {
		conn, err := db.Open(db.Config{Path: cfg.DBPath})
		if err != nil {
			logger.Warn().Err(err).Msg("Feature catalog disabled")
		} else {
			c, err := db.NewCatalog(context.Background(), conn)
			if err != nil {
				conn.Close()
				logger.Warn().Err(err).Msg("Feature catalog disabled")
			} else {
				s.db = conn
				catalog = c
			}
		}
	}

	fetcher := source.MultiFetcher{
		HTTP: source.NewHTTPFetcher(cfg.FetchTimeout, cfg.FetchRate),
		File: source.FileFetcher{Dir: st.DataDir},
	}
	resolver := source.NewResolver(fetcher, logging.Component("source"))

	datasets := service.NewDatasetService(st, resolver, catalog, s.bus, logging.Component("datasets"))
	if cfg.Concurrency > 0 {
		datasets.Concurrency = cfg.Concurrency
	}
	narrative, err := service.NewStoryService(st, datasets, service.NewBroadcastRenderer(s.bus), s.bus,
		logging.Component("story"))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.services = &api.Services{Story: st, Datasets: datasets, Narrative: narrative}

	humaConfig := huma.DefaultConfig("geostory API", "1.0.0")
	humaConfig.Info.Description = "Scroll-driven geospatial story: datasets, chapters and attribute inspection."
	if cfg.Host != "" && cfg.Port != "" {
		humaConfig.Servers = []*huma.Server{
			{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
		}
	}
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	s.handler = RequestLogger(s.mux)
	return s, nil
}

func newRenderer(dir string) (*templates.Renderer, error) {
	if dir != "" {
		return templates.NewFromDir(dir)
	}
	return templates.New()
}

// Load fetches every dataset and enters the first chapter.
func (s *Server) Load(ctx context.Context) ([]service.DatasetInfo, error) {
	infos, err := s.services.Datasets.Load(ctx)
	if err != nil {
		return nil, err
	}
	ready := 0
	for _, info := range infos {
		if info.Status == service.StatusReady {
			ready++
		}
	}
	s.log.Info().Int("ready", ready).Int("datasets", len(infos)).Msg("Story loaded")

	if len(s.story.Chapters) > 0 && s.services.Narrative.Current() == "" {
		if err := s.services.Narrative.Enter(s.story.Chapters[0].Name); err != nil {
			return infos, err
		}
	}
	return infos, nil
}

// Story returns the served story.
func (s *Server) Story() *story.Config {
	return s.story
}

// Datasets returns the dataset service.
func (s *Server) Datasets() *service.DatasetService {
	return s.services.Datasets
}

// OpenAPI returns the OpenAPI document of every registered route.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.story, s.db != nil).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)
	api.NewStreamHandler(s.services, s.bus, s.renderer, logging.Component("stream")).
		RegisterRoutes(s.humaAPI)

	static, _ := fs.Sub(webFS, "web")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, webFS, "web/index.html")
}
