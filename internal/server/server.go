package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/believeinme/background-check-service/internal/backgroundcheck"
	"github.com/believeinme/background-check-service/internal/checkr"
	"github.com/believeinme/background-check-service/internal/config"
	"github.com/believeinme/background-check-service/internal/logger"
)

// maxBodyBytes bounds inbound payloads. The CRM batches at most 100
// notifications per message.
const maxBodyBytes = 4 << 20

// defaultMessageTimeout covers a full batch of notifications, each making a
// store lookup, two provider calls and possibly a 30s CRM call.
const defaultMessageTimeout = 10 * time.Minute

// Workflow handles the two inbound integrations.
type Workflow interface {
	HandleOutboundMessage(ctx context.Context, body []byte) error
	HandleProviderEvent(ctx context.Context, event checkr.Event) (backgroundcheck.Outcome, error)
}

// Server handles HTTP requests
type Server struct {
	config   config.ServerConfig
	workflow Workflow
	log      logger.Logger
	router   chi.Router
	server   *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, workflow Workflow, log logger.Logger) *Server {
	s := &Server{
		config:   cfg,
		workflow: workflow,
		log:      log,
	}

	messageTimeout := cfg.MessageTimeout
	if messageTimeout <= 0 {
		messageTimeout = defaultMessageTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(NewRequestLogger(log), middleware.Recoverer)
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.Handler())
		r.Post("/checkr", s.handleProviderWebhook)
	})

	// The deadline is moved on the connection's own writer, before the
	// request logger wraps it.
	r.Group(func(r chi.Router) {
		r.Use(extendWriteDeadline(messageTimeout, log), NewRequestLogger(log), middleware.Recoverer)
		r.Post("/background-check", s.handleOutboundMessage)
	})
	s.router = r

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	return s
}

// Handler returns the router, for use in tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleOutboundMessage answers CRM outbound messages with the SOAP
// acknowledgement once every notification has been handled.
func (s *Server) handleOutboundMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if err := s.workflow.HandleOutboundMessage(r.Context(), body); err != nil {
		s.log.WithError(err).Error("Failed to handle outbound message", map[string]interface{}{
			"req_id": middleware.GetReqID(r.Context()),
		})
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, backgroundcheck.Acknowledgement)
}

// handleProviderWebhook handles provider webhooks. Report and screening
// errors answer 400 after they have been posted to the CRM.
func (s *Server) handleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	var event checkr.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&event); err != nil {
		http.Error(w, "Invalid webhook body", http.StatusBadRequest)
		return
	}

	outcome, err := s.workflow.HandleProviderEvent(r.Context(), event)
	if err != nil {
		s.log.WithError(err).Error("Failed to handle provider webhook", map[string]interface{}{
			"type":      event.Type,
			"object_id": event.Data.Object.ID,
			"req_id":    middleware.GetReqID(r.Context()),
		})
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if outcome == backgroundcheck.OutcomeFailed {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// extendWriteDeadline lets the handlers behind it write their response until
// d after the request arrived, in place of the server write timeout.
func extendWriteDeadline(d time.Duration, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(d))
			if err != nil && !errors.Is(err, http.ErrNotSupported) {
				log.WithError(err).Warn("Failed to extend write deadline", nil)
			}
			next.ServeHTTP(w, r)
		})
	}
}
