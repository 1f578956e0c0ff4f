/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     One zap line per request (status, latency, request id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. Identity:   Resolves the caller from trusted headers (all /api routes
                 except /api/health)

IDENTITY:
  Authentication happens upstream. The gateway forwards:
    X-Worker-ID   caller's worker id (required)
    X-Role        ADMIN | SUPERVISOR | WORKER (required)
    X-Unit-ID     caller's unit, required for supervisors to see anything
  The engine trusts these as given.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
)

const (
	HeaderWorkerID = "X-Worker-ID"
	HeaderRole     = "X-Role"
	HeaderUnitID   = "X-Unit-ID"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderWorkerID, HeaderRole, HeaderUnitID},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)

		r.Group(func(r chi.Router) {
			r.Use(Identity)

			r.Route("/units", func(r chi.Router) {
				r.Get("/", h.ListUnits)
				r.Post("/", h.CreateUnit)
			})

			r.Route("/workers", func(r chi.Router) {
				r.Get("/", h.ListWorkers)
				r.Post("/", h.CreateWorker)
				r.Get("/{id}", h.GetWorker)
				r.Get("/{id}/assignments", h.ListAssignments)
				r.Post("/{id}/assignments", h.AssignShift)
				r.Get("/{id}/attendance", h.ListAttendance)
				r.Post("/{id}/check-in", h.CheckIn)
				r.Post("/{id}/check-out", h.CheckOut)
				r.Get("/{id}/audit", h.GetAuditTrail)
			})

			r.Put("/attendance", h.EditRecord)

			r.Route("/shifts", func(r chi.Router) {
				r.Get("/", h.ListShifts)
				r.Post("/", h.CreateShift)
				r.Delete("/{id}", h.DeleteShift)
			})

			r.Route("/incident-types", func(r chi.Router) {
				r.Get("/", h.ListIncidentTypes)
				r.Post("/", h.CreateIncidentType)
			})

			r.Route("/calendar", func(r chi.Router) {
				r.Get("/", h.ListCalendar)
				r.Put("/{date}", h.SetCalendarDay)
				r.Delete("/{date}", h.DeleteCalendarDay)
			})

			r.Route("/incidents", func(r chi.Router) {
				r.Get("/", h.ListIncidents)
				r.Post("/", h.CreateIncident)
				r.Get("/{id}", h.GetIncident)
				r.Post("/{id}/approve", h.ApproveIncident)
				r.Post("/{id}/reject", h.RejectIncident)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/summary", h.ReportSummary)
				r.Get("/export.csv", h.ExportCSV)
				r.Get("/export.xlsx", h.ExportXLSX)
			})

			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		})
	})

	return r
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// RequestLogger logs one line per request. 5xx responses log at Error.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				if ww.Status() >= http.StatusInternalServerError {
					logger.Error("request", fields...)
					return
				}
				logger.Info("request", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

type callerKey struct{}

// Identity resolves the caller from the identity headers and stores it in
// the request context. Missing or unknown values are rejected with 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID := strings.TrimSpace(r.Header.Get(HeaderWorkerID))
		if workerID == "" || r.Header.Get(HeaderRole) == "" {
			writeError(w, http.StatusUnauthorized, "Missing identity headers", nil)
			return
		}
		role, err := attendance.ParseRole(r.Header.Get(HeaderRole))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid role", err)
			return
		}
		caller := attendance.Caller{
			WorkerID: workerID,
			Role:     role,
			UnitID:   strings.TrimSpace(r.Header.Get(HeaderUnitID)),
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func WithCaller(ctx context.Context, c attendance.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller Identity stored, or the zero Caller, which
// has no capabilities.
func CallerFrom(ctx context.Context) attendance.Caller {
	c, _ := ctx.Value(callerKey{}).(attendance.Caller)
	return c
}
