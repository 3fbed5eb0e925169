package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/osse101/adlink/internal/database"
	"github.com/osse101/adlink/internal/handler"
	"github.com/osse101/adlink/internal/linking"
	"github.com/osse101/adlink/internal/logger"
	"github.com/osse101/adlink/internal/metrics"
	"github.com/osse101/adlink/internal/relay"
	"github.com/osse101/adlink/internal/sse"
)

// Config holds the HTTP server settings
type Config struct {
	Port           int
	APIKey         string
	TrustedProxies []string
	MaxBodyBytes   int64
}

// Deps are the services the routes are served from
type Deps struct {
	// DBPool is nil when integrations are stored in memory
	DBPool  database.Pool
	Linking linking.Service
	Relay   *relay.Handler
	Hub     *sse.Hub
}

// Server is the HTTP front of the linking service
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// NewServer creates a new Server instance
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()

	// Chi middleware executes in order defined (outermost to innermost)
	detector := NewSuspiciousActivityDetector()

	r.Use(SecurityHeadersMiddleware())
	r.Use(AuthMiddleware(cfg.APIKey, cfg.TrustedProxies, detector))
	r.Use(SecurityLoggingMiddleware(cfg.TrustedProxies, detector))
	r.Use(RequestSizeLimitMiddleware(cfg.MaxBodyBytes))
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware)

	// Health check routes (unversioned)
	r.Get("/healthz", handler.HandleHealthz())
	r.Get("/readyz", handler.HandleReadyz(deps.DBPool))
	r.Get("/version", handler.HandleVersion())

	// Metrics endpoint (public, for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Provider redirect target (public, opened in the authorization popup)
	r.Get("/oauth/{provider}/callback", deps.Relay.HandleCallback())

	linkingHandlers := handler.NewLinkingHandlers(deps.Linking, deps.Hub)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/providers", linkingHandlers.HandleListProviders())
		r.Get("/events", sse.Handler(deps.Hub))

		r.Post("/dialogs", linkingHandlers.HandleOpenDialog())
		r.Route("/dialogs/{id}", func(r chi.Router) {
			r.Get("/", linkingHandlers.HandleGetDialog())
			r.Delete("/", linkingHandlers.HandleCloseDialog())
			r.Get("/events", linkingHandlers.HandleDialogEvents())
			r.Post("/connect", linkingHandlers.HandleConnect())
			r.Post("/popup-closed", linkingHandlers.HandlePopupClosed())
			r.Post("/messages", linkingHandlers.HandleMessage())
			r.Post("/select", linkingHandlers.HandleSelectTarget())
			r.Post("/disconnect", linkingHandlers.HandleDisconnect())

			r.Route("/manual", func(r chi.Router) {
				r.Post("/", linkingHandlers.HandleEnterManual())
				r.Post("/confirm", linkingHandlers.HandleConfirmManual())
				r.Post("/cancel", linkingHandlers.HandleCancelManual())
			})
		})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: DefaultReadHeaderLimit,
		},
		handler: r,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush keeps dialog event streams working through the wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Skip logging for probes and scrapes
		if strings.HasPrefix(r.URL.Path, "/healthz") ||
			strings.HasPrefix(r.URL.Path, "/readyz") ||
			strings.HasPrefix(r.URL.Path, "/metrics") {
			next.ServeHTTP(w, r)
			return
		}

		requestID := logger.GenerateRequestID()
		ctx := logger.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		log := logger.FromContext(ctx)

		log.Info(LogMsgRequestStarted,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"content_length", r.ContentLength,
			"user_agent", r.UserAgent())

		sanitizedHeaders := make(http.Header)
		for k, v := range r.Header {
			if strings.EqualFold(k, HeaderAPIKey) || strings.EqualFold(k, HeaderAuthorization) {
				sanitizedHeaders[k] = []string{RedactedValue}
			} else {
				sanitizedHeaders[k] = v
			}
		}
		log.Debug(LogMsgRequestHeaders, "headers", sanitizedHeaders)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		log.Info(LogMsgRequestCompleted,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	})
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	slog.Default().Info(LogMsgServerStarting, "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
