package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/retrieval"
	"github.com/claude/liftlog/internal/suggest"
	"github.com/claude/liftlog/internal/tracker"
)

// Deps are the services the HTTP API exposes. Raw, Metrics and Gatherer
// are optional.
type Deps struct {
	Tracker  *tracker.Tracker
	Engine   *suggest.Engine
	Raw      *retrieval.Store
	Metrics  *metrics.Manager
	Gatherer prometheus.Gatherer

	// ProgramDir holds the program files POST /program/source may read.
	// ProgramSource is the configured source, which is always allowed.
	ProgramDir    string
	ProgramSource string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	tracker *tracker.Tracker
	engine  *suggest.Engine
	raw     *retrieval.Store
	alpha   *alpha.Provider
	metrics *metrics.Manager
	log     *slog.Logger
	apiKey  string
	router  chi.Router

	programDir    string
	programSource string
}

// New creates a new Server with all routes configured.
func New(deps Deps, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		tracker: deps.Tracker,
		engine:  deps.Engine,
		raw:     deps.Raw,
		alpha:   alpha.NewProvider(deps.Tracker, log),
		metrics: deps.Metrics,
		log:     log,
		apiKey:  apiKey,
		router:  chi.NewRouter(),

		programDir:    deps.ProgramDir,
		programSource: deps.ProgramSource,
	}
	s.routes(deps.Gatherer)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.router.Use(RequestLogging(s.log))
	if s.metrics != nil {
		s.router.Use(RequestMetrics(s.metrics))
	}
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
	}).Handler)

	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Reads
		r.Get("/position", s.handleGetPosition)
		r.Get("/workout/current", s.handleCurrentWorkout)
		r.Get("/workout/current/results", s.handleCurrentWorkoutResults)
		r.Get("/results", s.handleResultsByDate)
		r.Get("/results/{id}", s.handleGetResult)
		r.Get("/exercises/{id}/history", s.handleExerciseHistory)
		r.Get("/exercises/{id}/records", s.handlePersonalRecords)
		r.Get("/exercises/{id}/suggestion", s.handleSuggestFromHistory)
		r.Get("/programs/{program}/progress", s.handleProgramProgress)
		r.Get("/stats", s.handleStatistics)
		r.Get("/export", s.handleExport)
		r.Post("/suggestions", s.handleSuggest)
		r.Post("/suggestions/day", s.handleDaySuggestions)

		// Writes (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Put("/position", s.handleSetPosition)
			r.Post("/program", s.handleLoadProgram)
			r.Post("/program/source", s.handleLoadProgramSource)
			r.Post("/results", s.handleSaveResult)
			r.Patch("/results/{id}", s.handleUpdateResult)
			r.Delete("/results/{id}", s.handleDeleteResult)
			r.Post("/import", s.handleImport)
			r.Post("/import/alpha", s.handleAlphaImport)
			r.Delete("/data", s.handleClearData)
		})

		if s.raw != nil {
			r.Route("/raw/weeks/{week}", s.rawRoutes)
		}
	})
}
