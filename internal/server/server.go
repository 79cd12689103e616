package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nao1215/phishguard/internal/cache"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/store"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	// maxRequestBody bounds one request body or WebSocket frame.
	maxRequestBody = 1 << 20

	shutdownTimeout = 10 * time.Second
)

// Handler answers one analysis message. *pipeline.Analyzer implements it.
type Handler interface {
	Handle(ctx context.Context, req model.AnalysisRequest) model.AnalysisResponse
}

// StatsSource reports analysis cache statistics. *pipeline.Analyzer
// implements it; GET /v1/stats is served only when the Handler does.
type StatsSource interface {
	CacheStats() cache.Stats
}

// Server is the HTTP and WebSocket surface of phishguard.
type Server struct {
	handler  Handler
	stats    StatsSource
	store    store.Store
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the report endpoints.
func WithStore(s store.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) { srv.logger = l }
}

// New creates a Server answering messages with h.
func New(h Handler, opts ...Option) *Server {
	s := &Server{
		handler: h,
		router:  chi.NewRouter(),
		logger:  slog.Default(),
		upgrader: websocket.Upgrader{
			// Browser extensions connect from their own origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if src, ok := h.(StatsSource); ok {
		s.stats = src
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/ws", s.handleWS)
		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{id}", s.handleGetReport)
		if s.stats != nil {
			r.Get("/stats", s.handleStats)
		}
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server for addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Zero write timeout keeps WebSocket connections open.
		WriteTimeout: 0,
	}
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = config.DefaultServerAddr
	}
	srv := s.HTTPServer(addr)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type ctxKey struct{}

// RequestID returns the request ID stored in ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"elapsed", time.Since(start),
		)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]cache.Stats{"analysis_cache": s.stats.CacheStats()})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req model.AnalysisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.logger.Warn("decoding analyze body", "request_id", RequestID(r.Context()), "error", err)
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse(&model.InvalidInputError{Reason: "invalid JSON"}))
		return
	}
	writeJSON(w, http.StatusOK, s.handler.Handle(r.Context(), req))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxRequestBody)

	ctx := r.Context()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed", "request_id", RequestID(ctx), "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var resp model.AnalysisResponse
		var req model.AnalysisRequest
		if err := json.Unmarshal(data, &req); err != nil {
			resp = model.ErrorResponse(&model.InvalidInputError{Reason: "invalid JSON"})
		} else {
			resp = s.handler.Handle(ctx, req)
		}
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Debug("websocket write failed", "request_id", RequestID(ctx), "error", err)
			return
		}
	}
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "report storage is disabled")
		return
	}

	target := r.URL.Query().Get("url")
	limit := config.DefaultHistoryLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	if target == "" {
		urls, err := s.store.URLs(r.Context())
		if err != nil {
			s.logger.Warn("listing urls", "error", err)
			writeError(w, http.StatusInternalServerError, "listing reports failed")
			return
		}
		if len(urls) > limit {
			urls = urls[:limit]
		}
		writeJSON(w, http.StatusOK, urls)
		return
	}

	// Reports are stored under the normalized URL.
	if normalized, err := features.NormalizeURL(target); err == nil {
		target = normalized
	}
	history, err := s.store.History(r.Context(), target, limit)
	if err != nil {
		s.logger.Warn("listing history", "url", target, "error", err)
		writeError(w, http.StatusInternalServerError, "listing reports failed")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "report storage is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	rep, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Warn("getting report", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "getting report failed")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
