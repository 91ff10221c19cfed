// Package server exposes the orchestrator and the job manager over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-verifier/internal/job"
	"github.com/sells-group/lead-verifier/internal/metrics"
	"github.com/sells-group/lead-verifier/internal/model"
	"github.com/sells-group/lead-verifier/internal/orchestrator"
	"github.com/sells-group/lead-verifier/internal/scraper"
)

const maxBodyBytes = 10 << 20

// Options configures the API.
type Options struct {
	Scrapers       []scraper.Scraper
	Orchestrator   orchestrator.Options
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	// MaxLeads caps the leads accepted per request. Zero means no cap.
	MaxLeads int
	// JobRetention caps the finished jobs kept for polling.
	JobRetention int
}

// Server holds the API dependencies.
type Server struct {
	scrapers []scraper.Scraper
	orch     *orchestrator.Orchestrator
	jobs     *job.Manager
	metrics  *metrics.Metrics
	origins  []string
	maxLeads int
}

// New builds a server. Options.Orchestrator.Metrics defaults to
// Options.Metrics.
func New(opts Options) *Server {
	orchOpts := opts.Orchestrator
	if orchOpts.Metrics == nil {
		orchOpts.Metrics = opts.Metrics
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		scrapers: opts.Scrapers,
		orch:     orchestrator.New(opts.Scrapers, orchOpts),
		jobs:     job.NewManager(opts.Scrapers, orchOpts, opts.JobRetention),
		metrics:  opts.Metrics,
		origins:  origins,
		maxLeads: opts.MaxLeads,
	}
}

// Jobs returns the background job manager.
func (s *Server) Jobs() *job.Manager { return s.jobs }

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/scrapers", s.handleScrapers)
		r.Post("/verify", s.handleVerify)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleStartJob)
			r.Get("/{id}", s.handleGetJob)
			r.Delete("/{id}", s.handleCancelJob)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// VerifyRequest is the body of POST /v1/verify and POST /v1/jobs.
type VerifyRequest struct {
	Leads []model.LeadInput `json:"leads"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "scrapers": len(s.scrapers)})
}

func (s *Server) handleScrapers(w http.ResponseWriter, _ *http.Request) {
	infos := make([]scraper.Info, 0, len(s.scrapers))
	for _, sc := range s.scrapers {
		infos = append(infos, scraper.Describe(sc))
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	leads, ok := s.decodeLeads(w, r)
	if !ok {
		return
	}
	results, err := s.orch.Verify(r.Context(), leads)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if len(results) < len(leads) {
		// Client went away mid-batch.
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	leads, ok := s.decodeLeads(w, r)
	if !ok {
		return
	}
	snap := s.jobs.Start(leads)
	w.Header().Set("Location", "/v1/jobs/"+snap.ID)
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobs.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) decodeLeads(w http.ResponseWriter, r *http.Request) ([]model.LeadInput, bool) {
	var req VerifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid request body"))
		return nil, false
	}
	if len(req.Leads) == 0 {
		writeError(w, http.StatusBadRequest, eris.New("leads is required"))
		return nil, false
	}
	if s.maxLeads > 0 && len(req.Leads) > s.maxLeads {
		writeError(w, http.StatusRequestEntityTooLarge, eris.Errorf("at most %d leads per request", s.maxLeads))
		return nil, false
	}
	return req.Leads, true
}

func statusFor(err error) int {
	if eris.Is(err, job.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
