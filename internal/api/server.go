// Package api exposes the dispatcher over HTTP: signal intake, queue
// inspection, health and Prometheus metrics.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/pkazmin/signal-dispatcher/internal/dispatcher"
	"github.com/pkazmin/signal-dispatcher/internal/logger"
	"github.com/pkazmin/signal-dispatcher/internal/models"
	"github.com/pkazmin/signal-dispatcher/internal/util"
)

// maxSignalBody caps the accepted request body size.
const maxSignalBody = 1 << 20

type Server struct {
	router *chi.Mux
	server *http.Server
	queue  *dispatcher.Dispatcher
	log    *logrus.Logger
	addr   string
}

func NewServer(addr string, queue *dispatcher.Dispatcher, log *logrus.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		queue:  queue,
		log:    log,
		addr:   addr,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.debugLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Post("/signals/enqueue/{account}", s.handleEnqueue)
	s.router.Get("/signals/queue", s.handleQueue)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the HTTP handler behind the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// debugLogger dumps request and response bodies when the log level allows
// it. Each exchange gets a short request id to pair the two lines up.
func (s *Server) debugLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.log.IsLevelEnabled(logrus.DebugLevel) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		log := logger.WithRequest(s.log, util.ShortID(uuid.NewString()))

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Debugf("Incoming request: %s %s body=<unreadable body>", r.Method, r.URL.Path)
		} else {
			r.Body = io.NopCloser(bytes.NewReader(body))
			log.Debugf("Incoming request: %s %s body=%s", r.Method, r.URL.Path, body)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		var respBody bytes.Buffer
		ww.Tee(&respBody)

		next.ServeHTTP(ww, r)

		log.Debugf("Response: status=%d duration_ms=%d body=%s",
			ww.Status(), time.Since(start).Milliseconds(), respBody.String())
	})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if !s.queue.HasAccount(account) {
		s.writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "unknown account",
			"account": account,
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignalBody))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "reading request body"})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	var sig models.Signal
	if err := json.Unmarshal(body, &sig); err != nil {
		s.log.Warnf("Validation error: %v", err)
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "Validation error",
			"details": validationDetails(err),
		})
		return
	}

	if err := s.queue.Enqueue(account, &sig); err != nil {
		if errors.Is(err, dispatcher.ErrStopped) {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error": "dispatcher is shutting down",
			})
			return
		}
		s.log.WithError(err).Error("Failed to enqueue signal")
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "enqueue failed"})
		return
	}

	s.log.Infof("Signal %s enqueued for async processing", sig.SignalID)

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"message": "Signal queued for processing",
		"account": account,
		"signal":  &sig,
	})
}

// validationDetails flattens a decode failure into field-level entries.
// Malformed JSON that never reached field validation is reported under
// the "body" path.
func validationDetails(err error) []models.FieldError {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Details
	}
	return []models.FieldError{{Path: "body", Message: err.Error()}}
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.queue.QueueItems())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("Failed to encode response")
	}
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("Starting HTTP server on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
