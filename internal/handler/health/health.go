// Package health serves /healthz for the overlay service: the database, the
// Redis relay and the Discord gateway each report their own status.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const checkTimeout = 3 * time.Second

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc lets a plain function serve as a Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

type optional struct{ Checker }

// Optional wraps a dependency the overlays can run without. Its failure
// shows as "degraded" and leaves the response status at 200.
func Optional(c Checker) Checker { return optional{c} }

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusError    = "error"
)

type Handler struct {
	checks map[string]Checker
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{checks: checks, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

type result struct {
	Status string `json:"status"`
}

// check runs every checker concurrently under one deadline.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]result, len(h.checks))
		status  = http.StatusOK
	)

	var g errgroup.Group
	for name, c := range h.checks {
		g.Go(func() error {
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			switch _, soft := c.(optional); {
			case err == nil:
				results[name] = result{Status: statusOK}
			case soft:
				h.logger.Warn("optional dependency unhealthy", "name", name, "error", err)
				results[name] = result{Status: statusDegraded}
			default:
				h.logger.Error("health check failed", "name", name, "error", err)
				results[name] = result{Status: statusError}
				status = http.StatusServiceUnavailable
			}
			return nil
		})
	}
	g.Wait()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(results)
}
