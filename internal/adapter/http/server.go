package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Updater runs ingestion on demand and reports store status.
type Updater interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (domain.RunSummary, error)
	Status(ctx context.Context) (domain.StoreStatus, error)
}

// Options configures the HTTP surface.
type Options struct {
	Addr       string
	AdminToken string // empty disables the update trigger
	Ready      sharedobs.ReadinessChecker
	Updater    Updater
	Logger     *slog.Logger
}

// Server exposes health, readiness, metrics, and the FIRMS update API.
type Server struct {
	httpServer *http.Server
	updater    Updater
	adminToken string
	logger     *slog.Logger
}

type updateResponse struct {
	Status     string            `json:"status"`
	Message    string            `json:"message"`
	Resultados domain.RunSummary `json:"resultados"`
	Timestamp  time.Time         `json:"timestamp"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewServer creates the HTTP server and its chi router.
func NewServer(opts Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 5 * time.Minute, // triggered updates block for the whole run
			IdleTimeout:  60 * time.Second,
		},
		updater:    opts.Updater,
		adminToken: opts.AdminToken,
		logger:     opts.Logger,
	}

	r.Use(s.recoverer)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(opts.Ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/firms", func(r chi.Router) {
		r.With(s.requireAdmin).Post("/update", s.handleUpdate)
		r.Get("/status", s.handleStatus)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The run continues if the caller disconnects.
	ctx := context.WithoutCancel(r.Context())
	summary, err := s.updater.Run(ctx, pipeline.RunOptions{Days: days})
	if err != nil {
		s.logger.Error("triggered update failed", "error", err, "remote", r.RemoteAddr)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sharedobs.WriteJSON(w, http.StatusOK, updateResponse{
		Status:     "success",
		Message:    "Actualización completada",
		Resultados: summary,
		Timestamp:  domain.Now(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.updater.Status(r.Context())
	if err != nil {
		s.logger.Error("status query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, status)
}

// parseDays reads the optional days form or query value. Absent means the
// pipeline default.
func parseDays(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.FormValue("days"))
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		return 0, errors.New("days must be a positive integer")
	}
	return days, nil
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.adminToken == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panic", "panic", rec, "method", r.Method, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, errorResponse{Status: "error", Error: msg})
}
