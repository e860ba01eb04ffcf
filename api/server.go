/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. httplog:    Structured request logging (ECS schema)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CleanPath:  Collapse double slashes before routing
  6. CORS:       Cross-origin requests for a browser client

ROUTE GROUPS:
  /healthz              Liveness + store ping
  /api/employees/*      Roster, attendance, ledger and salary per employee
  /api/leave-types      Leave catalog
  /api/leave-rules      Rule catalog
  /api/salary-components Component catalogs
  /api/absences/*       Absentee audit and regularization
  /api/leave-requests/* Request workflow
  /api/admin/*          Auto-credit batch
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	// Logger receives one record per request. Nil disables request logging.
	Logger *slog.Logger
	// CORSOrigins defaults to "*".
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.Logger != nil {
		r.Use(httplog.RequestLogger(opts.Logger, &httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.SchemaECS,
		}))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)

			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", h.GetEmployee)
				r.Get("/weekly-off", h.GetWeeklyOff)
				r.Put("/weekly-off", h.PutWeeklyOff)
				r.Post("/punches", h.RecordPunches)

				r.Get("/balances", h.GetBalances)
				r.Get("/balances/{leaveType}/transactions", h.GetBalanceHistory)
				r.Get("/applications", h.GetApplications)
				r.Get("/comp-off", h.GetCompOff)
				r.Post("/accrue", h.Accrue)

				r.Get("/salary", h.GetSalary)
				r.Post("/salary/derive", h.DeriveSalary)
				r.Put("/salary/components/{kind}/{id}", h.OverrideSalaryComponent)
			})
		})

		// Catalog routes
		r.Get("/leave-types", h.ListLeaveTypes)
		r.Post("/leave-types", h.CreateLeaveType)
		r.Get("/leave-rules", h.ListLeaveRules)
		r.Post("/leave-rules", h.CreateLeaveRule)
		r.Get("/salary-components", h.ListSalaryComponents)
		r.Post("/salary-components", h.CreateSalaryComponent)

		// Audit routes
		r.Route("/absences", func(r chi.Router) {
			r.Get("/", h.ListAbsences)
			r.Post("/regularize", h.Regularize)
		})

		// Leave request routes
		r.Route("/leave-requests", func(r chi.Router) {
			r.Get("/", h.ListLeaveRequests)
			r.Post("/", h.SubmitLeaveRequest)
			r.Get("/{id}", h.GetLeaveRequest)
			r.Post("/{id}/approve", h.ApproveLeaveRequest)
			r.Post("/{id}/reject", h.RejectLeaveRequest)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/auto-credit", h.TriggerAutoCredit)
			r.Get("/auto-credit/runs", h.ListCreditRuns)
			r.Get("/auto-credit/status", h.GetSchedulerStatus)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
