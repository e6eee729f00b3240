// Package gateway exposes the request envelope over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/dispatch"

	"github.com/google/uuid"
)

const (
	maxBodyBytes    = 10 << 20
	requestIDHeader = "X-Request-ID"

	allowHeaders = "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token,X-Billing-User,X-Request-ID"
	allowMethods = "POST,GET,OPTIONS,PUT,DELETE"
)

// Dispatcher is the routing capability the gateway needs.
type Dispatcher interface {
	Resolve(tag string) (dispatch.Kind, error)
	Dispatch(ctx context.Context, req *dispatch.Request) (interface{}, error)
}

type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AllowOrigins []string
}

type Server struct {
	cfg        Config
	dispatcher Dispatcher
	logger     logger.Logger
	httpServer *http.Server
}

// envelope is the outer request shape. Body is an object or a string holding one.
type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

func NewServer(cfg Config, d Dispatcher, log logger.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		logger:     log.WithFields(map[string]interface{}{"component": "gateway"}),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed gateway with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/requests", s.handleEnvelope)
	mux.HandleFunc("/v1/authorize", s.handleAuthorize)
	return s.withCORS(mux)
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", map[string]interface{}{"address": s.cfg.Address})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin(r.Header.Get("Origin")))
		w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		w.Header().Set("Access-Control-Allow-Methods", allowMethods)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	if len(s.cfg.AllowOrigins) == 0 {
		return "*"
	}
	for _, o := range s.cfg.AllowOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return s.cfg.AllowOrigins[0]
}

func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFor(r)
	w.Header().Set(requestIDHeader, requestID)

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"error":      "Method not allowed",
			"statusCode": http.StatusMethodNotAllowed,
		})
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, requestID, errors.NewInvalidRequestError("request body too large or unreadable"))
		return
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.writeError(w, requestID, errors.NewInvalidRequestError("request is not a JSON envelope"))
		return
	}

	kind, err := s.dispatcher.Resolve(env.Type)
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}

	s.dispatch(w, r, &dispatch.Request{
		Kind:      kind,
		Body:      env.Body,
		Headers:   dispatch.HeadersFromHTTP(r.Header),
		Transport: dispatch.TransportHTTP,
		RequestID: requestID,
	})
}

// handleAuthorize serves the token authorizer. The body is the authorizer
// event itself rather than an envelope.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFor(r)
	w.Header().Set(requestIDHeader, requestID)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, requestID, errors.NewInvalidRequestError("request body too large or unreadable"))
		return
	}

	s.dispatch(w, r, &dispatch.Request{
		Kind:      dispatch.KindAuthorize,
		Body:      raw,
		Headers:   dispatch.HeadersFromHTTP(r.Header),
		Transport: dispatch.TransportHTTP,
		RequestID: requestID,
	})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *dispatch.Request) {
	out, err := s.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		s.writeError(w, req.RequestID, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, requestID string, err error) {
	stdErr := errors.Normalize(err)
	status := errors.HTTPStatus(stdErr.Code)

	body := map[string]interface{}{
		"error":      stdErr.Message,
		"code":       string(stdErr.Code),
		"statusCode": status,
		"requestId":  requestID,
	}
	if stdErr.Details != "" {
		body["details"] = stdErr.Details
	}
	for k, v := range stdErr.Metadata {
		if _, taken := body[k]; !taken {
			body[k] = v
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"requestId": requestID,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	}
	writeJSON(w, status, body)
}

func requestIDFor(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
