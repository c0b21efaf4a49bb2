package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/omega-championship/overlays/internal/cookie"
	"github.com/omega-championship/overlays/internal/fanout"
)

// Deps are the collaborators the handlers are built from.
type Deps struct {
	Store     Store
	StartGG   StartGG
	Cookies   *cookie.Codec
	Publisher fanout.Publisher
	Events    Subscriber
	KeepAlive time.Duration
	// WSOrigins are extra origin host patterns allowed to open the overlay
	// websocket, in path.Match syntax.
	WSOrigins []string
}

// Subscriber hands out live event subscriptions.
type Subscriber interface {
	Subscribe(fanout.Filter) *fanout.Subscription
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, logger *slog.Logger, deps Deps, mount func(chi.Router)) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	if deps.KeepAlive <= 0 {
		deps.KeepAlive = 15 * time.Second
	}
	addRoutes(r, logger, deps)
	if mount != nil {
		mount(r)
	}

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// newStructuredLogger logs one line per request once the handler returns.
// Streams (SSE, websocket) are logged when they close. Health probes and
// static assets log at debug level; server errors at error level.
func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					// Flushed streams never call WriteHeader explicitly.
					status = http.StatusOK
				}

				level := slog.LevelInfo
				switch {
				case status >= http.StatusInternalServerError:
					level = slog.LevelError
				case r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/assets/"):
					level = slog.LevelDebug
				}

				attrs := []slog.Attr{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Int64("duration_ms", time.Since(start).Milliseconds()),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				}
				if id := chi.URLParam(r, "overlayID"); id != "" {
					attrs = append(attrs, slog.String("overlay_id", id))
				}
				logger.LogAttrs(r.Context(), level, "http request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
