// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "banking-assistant/internal/common/errors"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/metrics"
	"banking-assistant/internal/common/validation"
	"banking-assistant/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes        = 64 << 10
	correlationIDHeader = "X-Correlation-ID"
)

var messageSchema = validation.MustCompile("message request", validation.MessageRequestSchema)

// Processor answers one customer message.
type Processor interface {
	ProcessMessage(ctx context.Context, customerID, correlationID, text string) (*models.AssistantResponse, error)
}

// Check reports whether a dependency is ready to serve traffic.
type Check func(ctx context.Context) error

type messageRequest struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

type errorBody struct {
	Error struct {
		Code    apperrors.ErrorCode `json:"code"`
		Message string              `json:"message"`
		Details []string            `json:"details,omitempty"`
	} `json:"error"`
}

// Server exposes the assistant over HTTP.
type Server struct {
	processor  Processor
	identifier Identifier
	limiter    *RateLimiter
	checks     map[string]Check
	logger     logger.Logger
	now        func() time.Time
}

type Option func(*Server)

// WithRateLimiter enables per-customer rate limiting.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithReadinessCheck adds a dependency probed by /ready.
func WithReadinessCheck(name string, check Check) Option {
	return func(s *Server) { s.checks[name] = check }
}

func NewServer(p Processor, id Identifier, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		processor:  p,
		identifier: id,
		checks:     map[string]Check{},
		logger:     logger.ForComponent(log, "api"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/messages", s.instrument("messages",
		s.authenticate(s.rateLimit(http.HandlerFunc(s.handleMessage)))))
	mux.Handle("GET /health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ==========================
// Handlers
// ==========================

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, apperrors.NewInvalidInputError("request body too large"), nil)
		return
	}

	if res := messageSchema.ValidateBytes(body); !res.Valid {
		s.writeError(w, http.StatusBadRequest, apperrors.NewInvalidInputError("request body failed validation"), res.GetErrorMessages())
		return
	}

	var req messageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apperrors.NewInvalidInputError(err.Error()), nil)
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = r.Header.Get(correlationIDHeader)
	}

	resp, err := s.processor.ProcessMessage(r.Context(), CustomerFrom(r.Context()), req.CorrelationID, req.Message)
	if err != nil {
		stdErr := apperrors.AsStandardError(err)
		status := http.StatusInternalServerError
		if apperrors.IsInputError(stdErr.Code) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, stdErr, nil)
		return
	}

	w.Header().Set(correlationIDHeader, resp.CorrelationID)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"failed": failed})
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"failed": failed,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   s.now().Format(time.RFC3339),
	})
}

// ==========================
// Middleware
// ==========================

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID, err := s.identifier.Identify(r)
		if err != nil {
			stdErr := apperrors.AsStandardError(err)
			if stdErr.Code != apperrors.ErrCodeUnauthenticated {
				stdErr = apperrors.NewUnauthenticatedError(stdErr.Details)
			}
			s.writeError(w, http.StatusUnauthorized, stdErr, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(withCustomer(r.Context(), customerID)))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		customerID := CustomerFrom(r.Context())
		allowed, err := s.limiter.Allow(r.Context(), customerID)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, allowing request", map[string]interface{}{"error": err})
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.limiter.window/time.Second)))
			s.writeError(w, http.StatusTooManyRequests, apperrors.NewRateLimitedError(customerID, s.limiter.Limit()), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

// ==========================
// Encoding
// ==========================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		s.logger.Error("failed to encode response", map[string]interface{}{"error": err})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, stdErr *apperrors.StandardError, details []string) {
	var body errorBody
	body.Error.Code = stdErr.Code
	body.Error.Message = stdErr.Message
	body.Error.Details = details
	s.writeJSON(w, status, body)
}
