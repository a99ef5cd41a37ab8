package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryan0dhankhar/complaintdesk/internal/security"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/audit"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/middleware"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/ratelimit"
)

// Router holds everything the API routes need
type Router struct {
	Complaints *ComplaintHandler
	Health     *HealthHandler
	Verifier   middleware.Verifier
	Resolver   middleware.TenantResolver
	Authz      *security.AuthorizationService
	Limiter    *ratelimit.Limiter
	Audit      *audit.Logger
	Logger     *slog.Logger
}

// Register mounts every route on mux. Each API route authenticates, applies
// the tenant rate limit, checks its permission and is audited, in that order.
func (rt *Router) Register(mux *http.ServeMux) {
	log := rt.Logger
	if log == nil {
		log = slog.Default()
	}
	auditLog := rt.Audit
	if auditLog == nil {
		auditLog = audit.NewLogger(log)
	}

	protect := func(perm security.Permission, action string, h http.HandlerFunc) http.Handler {
		return middleware.Chain(h,
			middleware.Authenticate(rt.Verifier, rt.Resolver, auditLog, log),
			middleware.RateLimitMiddleware(rt.Limiter, log),
			middleware.RequirePermission(rt.Authz, perm, auditLog),
			middleware.AuditMiddleware(auditLog, action),
		)
	}

	c := rt.Complaints
	mux.Handle("GET /api/complaints", protect(security.PermListOwnComplaints, audit.ActionRead, c.ListOwn))
	mux.Handle("GET /api/complaints/all", protect(security.PermListAllComplaints, audit.ActionRead, c.ListAll))
	mux.Handle("GET /api/complaints/{id}", protect(security.PermReadComplaint, audit.ActionRead, c.Get))
	mux.Handle("POST /api/complaints", protect(security.PermCreateComplaint, audit.ActionCreate, c.Create))
	mux.Handle("POST /api/complaints/agent", protect(security.PermCreateOnBehalf, audit.ActionCreateOnBehalf, c.CreateOnBehalf))
	mux.Handle("PATCH /api/complaints/{id}", protect(security.PermUpdateComplaint, audit.ActionUpdate, c.Update))
	mux.Handle("PATCH /api/complaints/{id}/assign", protect(security.PermAssignSupport, audit.ActionAssign, c.Assign))
	mux.Handle("PATCH /api/complaints/{id}/solution", protect(security.PermAddSolution, audit.ActionSolution, c.Solution))
	mux.Handle("DELETE /api/complaints/{id}", protect(security.PermDeleteComplaint, audit.ActionDelete, c.Delete))
	mux.Handle("GET /api/categories", protect(security.PermListCategories, audit.ActionRead, c.ListCategories))
	mux.Handle("GET /api/me", protect(security.PermListOwnComplaints, audit.ActionRead, c.Me))

	if rt.Health != nil {
		mux.HandleFunc("GET /healthz", rt.Health.Health)
		mux.HandleFunc("GET /readyz", rt.Health.Ready)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
}
