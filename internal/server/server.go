// Package server provides the reference HTTP list API backed by the report
// store.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/fieldcrm/listsync/internal/client"
	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
	"github.com/fieldcrm/listsync/internal/store"
)

// Backend is the part of store.Store the server needs.
type Backend interface {
	Put(ctx context.Context, p store.PutParams) (*model.Report, error)
	List(ctx context.Context, p store.ListParams) (*store.ListResult, error)
	Stats(ctx context.Context, userID string, d query.Descriptor) (model.Stats, error)
}

// Server is the list API server.
type Server struct {
	backend Backend
	router  chi.Router
	logger  *log.Logger
}

// New creates a server. A nil logger uses the logrus standard logger.
func New(b Backend, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Server{backend: b, logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/reports", s.handleListReports)
		r.Post("/reports", s.handleCreateReport)
		r.Get("/reports/stats", s.handleStats)
	})

	s.router = r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	d, err := query.Parse(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := intParam(r, "page", 1)
	pageSize := intParam(r, "pageSize", store.DefaultPageSize)

	res, err := s.backend.List(r.Context(), store.ListParams{
		UserID:   userID,
		Query:    d,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		s.logger.WithError(err).WithField("user", userID).Error("list reports failed")
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	d, err := query.Parse(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := s.backend.Stats(r.Context(), userID, d)
	if err != nil {
		s.logger.WithError(err).WithField("user", userID).Error("report stats failed")
		writeError(w, http.StatusInternalServerError, "failed to count reports")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type createReportRequest struct {
	Address        string `json:"address"`
	Classification string `json:"classification"`
	Date           string `json:"date"`
	Filename       string `json:"filename"`
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createReportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rep, err := s.backend.Put(r.Context(), store.PutParams{
		UserID:         userID,
		Address:        req.Address,
		Classification: req.Classification,
		Date:           req.Date,
		Filename:       req.Filename,
	})
	if errors.Is(err, store.ErrInvalidReport) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("user", userID).Error("create report failed")
		writeError(w, http.StatusInternalServerError, "failed to store report")
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// --- Helpers ---

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(client.UserHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user is not authenticated")
		return "", false
	}
	return userID, true
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("http request")
		})
	}
}
