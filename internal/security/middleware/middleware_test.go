package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/security"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/auth"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/ratelimit"
	"github.com/aryan0dhankhar/complaintdesk/internal/tenant"
)

type memProfiles struct {
	bySubject map[string]*domain.Profile
	err       error
}

func (m *memProfiles) GetBySubject(ctx context.Context, id string) (*domain.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	if p, ok := m.bySubject[id]; ok {
		return p, nil
	}
	return nil, domain.ErrProfileNotFound
}

func (m *memProfiles) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return nil, domain.ErrProfileNotFound
}

const testSecret = "test-secret"

func newAuthStack(profiles *memProfiles) (http.Handler, *auth.TokenManager, *domain.AuthContext) {
	tm := auth.NewTokenManager(testSecret, "complaintdesk")
	registry := tenant.NewRegistry([]tenant.Registration{
		{Key: "Bank", ComplaintsLocation: "bank_complaints", CategoriesLocation: "bank_categories"},
	})
	resolver := tenant.NewResolver(registry, profiles, nil)

	seen := &domain.AuthContext{}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := GetAuthContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		*seen = ac
		w.WriteHeader(http.StatusOK)
	})
	return Authenticate(tm, resolver, nil, nil)(final), tm, seen
}

func token(t *testing.T, tm *auth.TokenManager, req auth.TokenRequest) string {
	t.Helper()
	tok, err := tm.GenerateToken(req)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + tok
}

func do(h http.Handler, method, authz string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/complaints", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.Error
}

func TestAuthenticateMissingAndInvalidToken(t *testing.T) {
	h, _, _ := newAuthStack(&memProfiles{})

	if rec := do(h, http.MethodGet, "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	forged, _ := auth.NewTokenManager("other", "complaintdesk").GenerateToken(auth.TokenRequest{SubjectID: "u1"})
	if rec := do(h, http.MethodGet, "Bearer "+forged, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}
}

func TestAuthenticatePreflightBypassesAuth(t *testing.T) {
	h, _, _ := newAuthStack(&memProfiles{})
	if rec := do(h, http.MethodOptions, "", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
}

func TestAuthenticatePendingIsForbiddenBeforeTenant(t *testing.T) {
	profiles := &memProfiles{bySubject: map[string]*domain.Profile{
		"p1": {SubjectID: "p1", Role: domain.RolePending},
	}}
	h, tm, _ := newAuthStack(profiles)

	// no tenant anywhere: still an authorization failure
	rec := do(h, http.MethodGet, token(t, tm, auth.TokenRequest{SubjectID: "p1"}), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for pending subject, got %d", rec.Code)
	}

	rec = do(h, http.MethodGet, token(t, tm, auth.TokenRequest{SubjectID: "p1", Tenant: "Bank", Role: "admin"}), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for pending subject with a valid tenant, got %d", rec.Code)
	}
}

func TestAuthenticateTenantFailures(t *testing.T) {
	h, tm, _ := newAuthStack(&memProfiles{})

	rec := do(h, http.MethodGet, token(t, tm, auth.TokenRequest{SubjectID: "u1", Role: "consumer"}), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without tenant, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "no organization type found for this user" {
		t.Fatalf("unexpected message %q", msg)
	}

	rec = do(h, http.MethodGet, token(t, tm, auth.TokenRequest{SubjectID: "u1", Role: "consumer", Tenant: "Telecom"}), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported tenant, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "unsupported organisation type: Telecom" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestAuthenticateStoreErrorIs500(t *testing.T) {
	h, tm, _ := newAuthStack(&memProfiles{err: errors.New("connection refused")})
	rec := do(h, http.MethodGet, token(t, tm, auth.TokenRequest{SubjectID: "u1", Role: "consumer", Tenant: "Bank"}), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "internal error" {
		t.Fatalf("store details must not leak, got %q", msg)
	}
}

func TestAuthenticateBuildsContext(t *testing.T) {
	h, tm, seen := newAuthStack(&memProfiles{})
	rec := do(h, http.MethodGet,
		token(t, tm, auth.TokenRequest{SubjectID: "u1", Email: "Jane@Bank.com", Role: "consumer"}),
		map[string]string{TenantHeader: " bank "},
	)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := domain.AuthContext{SubjectID: "u1", Email: "jane@bank.com", Tenant: "Bank", Role: domain.RoleConsumer}
	if *seen != want {
		t.Fatalf("expected %+v, got %+v", want, *seen)
	}
}

func TestRequirePermission(t *testing.T) {
	authz := security.NewAuthorizationService(nil)
	h := RequirePermission(authz, security.PermDeleteComplaint, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for role, want := range map[domain.Role]int{
		domain.RoleConsumer: http.StatusForbidden,
		domain.RoleAgent:    http.StatusForbidden,
		domain.RoleAdmin:    http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodDelete, "/api/complaints/c1", nil)
		req = req.WithContext(WithAuthContext(req.Context(), domain.AuthContext{SubjectID: "u", Tenant: "Bank", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: expected %d, got %d", role, want, rec.Code)
		}
	}
}

func TestRateLimitPerSubject(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Minute)
	defer limiter.Stop()
	h := RateLimitMiddleware(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(tenantKey, subjectID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/complaints", nil)
		req = req.WithContext(WithAuthContext(req.Context(), domain.AuthContext{
			SubjectID: subjectID,
			Tenant:    tenantKey,
			Role:      domain.RoleConsumer,
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if call("Bank", "noisy") != http.StatusOK {
		t.Fatal("expected first request to pass")
	}
	if call("Bank", "noisy") != http.StatusTooManyRequests {
		t.Fatal("expected second request from the same subject to be limited")
	}
	if call("Bank", "quiet") != http.StatusOK {
		t.Fatal("expected another subject in the same tenant to have its own budget")
	}
	if call("Airline", "noisy") != http.StatusOK {
		t.Fatal("expected the same subject id in another tenant to have its own budget")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the next handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/complaints", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
