package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/featureflags"
	"github.com/aryan0dhankhar/complaintdesk/internal/observability/metrics"
	"github.com/aryan0dhankhar/complaintdesk/internal/security"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/audit"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/auth"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/ratelimit"
	"github.com/aryan0dhankhar/complaintdesk/internal/tenant"
)

// TenantHeader is the client-supplied tenant hint. It is the weakest source.
const TenantHeader = "X-Org-Type"

type AuthContextKey struct{}

// Verifier checks bearer credentials
type Verifier interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// TenantResolver maps a verified subject to a tenant and role
type TenantResolver interface {
	Resolve(ctx context.Context, subject domain.Subject, hints tenant.Hints) (*tenant.Resolution, error)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: msg})
}

// Authenticate verifies the bearer token, resolves tenant and role, and puts
// the resulting domain.AuthContext on the request context. Role is checked
// before tenant so pending subjects always get 403.
func Authenticate(verifier Verifier, resolver TenantResolver, auditLog *audit.Logger, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			tokenString, err := auth.ExtractToken(r.Header.Get("Authorization"))
			if err != nil {
				metrics.ObserveAuthFailure("unauthenticated")
				writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			claims, err := verifier.ValidateToken(tokenString)
			if err != nil {
				log.Warn("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				metrics.ObserveAuthFailure("unauthenticated")
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			subject := claims.Identity()
			res, err := resolver.Resolve(r.Context(), subject, tenant.Hints{
				ClaimTenant:  claims.TenantClaim(),
				ClaimRole:    claims.RoleClaim(),
				HeaderTenant: r.Header.Get(TenantHeader),
			})
			if err != nil && !tenant.IsResolutionError(err) {
				log.Error("failed to resolve tenant",
					slog.String("subject_id", subject.ID),
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			if !security.IsTenantRole(res.Role) {
				metrics.ObserveAuthFailure("forbidden_role")
				if auditLog != nil {
					auditLog.LogDenied(r.Context(), res.Tenant, subject.ID, "role "+string(res.Role)+" has no access")
				}
				writeError(w, http.StatusForbidden, "your account is not authorized for this operation")
				return
			}

			if err != nil {
				reason := "no_tenant"
				var unsupported *tenant.UnsupportedError
				if errors.As(err, &unsupported) {
					reason = "unsupported_tenant"
				}
				metrics.ObserveAuthFailure(reason)
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			email := subject.Email
			if email == "" && res.Profile != nil {
				email = domain.NormalizeEmail(res.Profile.Email)
			}
			ac := domain.AuthContext{
				SubjectID: subject.ID,
				Email:     email,
				Tenant:    res.Tenant,
				Role:      res.Role,
			}

			ctx := context.WithValue(r.Context(), AuthContextKey{}, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects callers whose role lacks perm
func RequirePermission(authz *security.AuthorizationService, perm security.Permission, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := GetAuthContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing authorization context")
				return
			}
			if err := authz.ValidatePermission(ac.Role, perm); err != nil {
				metrics.ObserveAuthFailure("permission")
				if auditLog != nil {
					auditLog.LogDenied(r.Context(), ac.Tenant, ac.SubjectID, string(perm))
				}
				writeError(w, http.StatusForbidden, "you do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware applies the limiter per subject within a tenant
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, _ := GetAuthContext(r.Context())
			if !limiter.Allow(ac.Tenant + ":" + ac.SubjectID) {
				log.Warn("rate limit exceeded",
					slog.String("tenant", ac.Tenant),
					slog.String("subject_id", ac.SubjectID),
				)
				metrics.ObserveAuthFailure("rate_limited")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records the outcome of complaint operations. Reads are
// only recorded when the audit_reads flag is on.
func AuditMiddleware(auditLog *audit.Logger, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && !featureflags.Enabled(featureflags.AuditReads) {
				next.ServeHTTP(w, r)
				return
			}

			sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			ac, _ := GetAuthContext(r.Context())
			auditLog.Record(r.Context(), audit.Event{
				Tenant:      ac.Tenant,
				SubjectID:   ac.SubjectID,
				Role:        string(ac.Role),
				Action:      action,
				ComplaintID: r.PathValue("id"),
				Outcome:     strconv.Itoa(sw.status),
			})
		})
	}
}

// GetAuthContext returns the request's authorization context
func GetAuthContext(ctx context.Context) (domain.AuthContext, bool) {
	ac, ok := ctx.Value(AuthContextKey{}).(domain.AuthContext)
	return ac, ok
}

// WithAuthContext stores ac on ctx. Used by tests that bypass Authenticate.
func WithAuthContext(ctx context.Context, ac domain.AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey{}, ac)
}

// Chain applies middlewares so the first one listed runs first
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
