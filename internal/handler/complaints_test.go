package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/complaintdesk/internal/repository"
	"github.com/aryan0dhankhar/complaintdesk/internal/security"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/auth"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/ratelimit"
	"github.com/aryan0dhankhar/complaintdesk/internal/service"
	"github.com/aryan0dhankhar/complaintdesk/internal/tenant"
)

type testAPI struct {
	handler http.Handler
	tokens  *auth.TokenManager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewFromOptions(&goredis.Options{Addr: mr.Addr()}, nil)
	t.Cleanup(func() { client.Close() })

	profiles := repository.NewRedisProfileRepository(client, nil)
	ctx := context.Background()
	for _, p := range []*domain.Profile{
		{SubjectID: "u1", Email: "foo@example.com", TenantName: "bank", Role: domain.RoleConsumer},
		{SubjectID: "u2", Email: "bar@example.com", TenantName: "Bank", Role: domain.RoleConsumer},
		{SubjectID: "a1", Email: "agent@bank.com", DisplayName: "Alice", TenantName: "Bank", Role: domain.RoleAgent},
		{SubjectID: "s1", Email: "s@b.com", DisplayName: "Sam", TenantName: "Bank", Role: domain.RoleAgent},
		{SubjectID: "ad", Email: "admin@bank.com", TenantName: "Bank", Role: domain.RoleAdmin},
		{SubjectID: "p1", Email: "new@bank.com", TenantName: "Bank", Role: domain.RolePending},
		{SubjectID: "x1", Email: "agent@airline.com", TenantName: "Airline", Role: domain.RoleAgent},
	} {
		require.NoError(t, profiles.Save(ctx, p))
	}
	mr.HSet("bank_categories", "c1", `{"name":"Cards","isActive":true}`)

	registry := tenant.NewRegistry([]tenant.Registration{
		{Key: "Bank", ComplaintsLocation: "bank_complaints", CategoriesLocation: "bank_categories"},
		{Key: "Airline", ComplaintsLocation: "airline_complaints", CategoriesLocation: "airline_categories"},
	})
	router := repository.NewStoreRouter(registry, repository.RedisStores(client, nil))
	svc := service.NewComplaintService(router, profiles, nil, nil)

	limiter := ratelimit.NewLimiter(0, time.Minute)
	t.Cleanup(limiter.Stop)

	tokens := auth.NewTokenManager("test-secret", "complaintdesk")
	mux := http.NewServeMux()
	(&Router{
		Complaints: NewComplaintHandler(svc, nil),
		Health:     NewHealthHandler(map[string]CheckFunc{"redis": client.Ping}, nil),
		Verifier:   tokens,
		Resolver:   tenant.NewResolver(registry, profiles, nil),
		Authz:      security.NewAuthorizationService(nil),
		Limiter:    limiter,
	}).Register(mux)

	return &testAPI{handler: mux, tokens: tokens}
}

func (api *testAPI) token(t *testing.T, subjectID, email string) string {
	t.Helper()
	tok, err := api.tokens.GenerateToken(auth.TokenRequest{SubjectID: subjectID, Email: email})
	require.NoError(t, err)
	return tok
}

func (api *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestConsumerSubmitAndListOwn(t *testing.T) {
	api := newTestAPI(t)
	consumer := api.token(t, "u1", "  Foo@Example.com ")

	rec := api.do(t, http.MethodPost, "/api/complaints", consumer, map[string]string{
		"title": "ATM issue", "categoryId": "c1", "description": "card swallowed",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[CreatedResponse](t, rec).ID
	require.NotEmpty(t, id)

	rec = api.do(t, http.MethodGet, "/api/complaints", api.token(t, "u1", "foo@example.com"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	own := decode[[]domain.Complaint](t, rec)
	require.Len(t, own, 1)
	require.Equal(t, id, own[0].ID)
	require.Equal(t, domain.StatusPending, own[0].Status)
	require.Equal(t, "foo@example.com", own[0].ConsumerEmail)
	require.True(t, own[0].CreatedAt.Equal(own[0].UpdatedAt))

	// another consumer of the same tenant sees nothing
	rec = api.do(t, http.MethodGet, "/api/complaints", api.token(t, "u2", "bar@example.com"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]domain.Complaint](t, rec))

	rec = api.do(t, http.MethodGet, "/api/complaints/"+id, api.token(t, "u2", "bar@example.com"), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitValidationNamesField(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/complaints", api.token(t, "u1", "foo@example.com"), map[string]string{
		"title": "ATM issue", "description": "card swallowed",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[ErrorResponse](t, rec).Error, "category_id")
}

func TestAgentLifecycle(t *testing.T) {
	api := newTestAPI(t)
	agent := api.token(t, "a1", "agent@bank.com")

	rec := api.do(t, http.MethodPost, "/api/complaints/agent", agent, map[string]string{
		"consumer_email": "a@b.com", "category_id": "c1", "description": "called in",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[CreatedResponse](t, rec).ID

	rec = api.do(t, http.MethodGet, "/api/complaints/"+id, agent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[domain.Complaint](t, rec)
	require.True(t, strings.HasPrefix(c.Title, "Phone complaint from a@b.com"))
	require.Equal(t, domain.SourceAgent, c.Source)

	rec = api.do(t, http.MethodPatch, "/api/complaints/"+id+"/assign", agent, map[string]string{"support_email": "s@b.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "Support assigned", decode[MessageResponse](t, rec).Message)

	c = decode[domain.Complaint](t, api.do(t, http.MethodGet, "/api/complaints/"+id, agent, nil))
	require.Equal(t, domain.StatusInProgress, c.Status)
	require.NotNil(t, c.Support)
	require.Equal(t, "s@b.com", c.Support.Email)
	require.Equal(t, "Sam", c.Support.Name)

	rec = api.do(t, http.MethodPatch, "/api/complaints/"+id+"/solution", agent, map[string]interface{}{
		"solution_text": "card returned", "markResolved": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, domain.StatusResolved, decode[MessageResponse](t, rec).Status)

	c = decode[domain.Complaint](t, api.do(t, http.MethodGet, "/api/complaints/"+id, agent, nil))
	require.Equal(t, domain.StatusResolved, c.Status)
	require.NotNil(t, c.ResolvedAt)
	require.NotNil(t, c.Solution)
	require.Equal(t, "card returned", c.Solution.Text)
	require.Equal(t, "Alice", c.Solution.AgentName)

	rec = api.do(t, http.MethodPatch, "/api/complaints/"+id+"/assign", agent, map[string]string{"support_email": "ghost@b.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/complaints/"+id+"/assign", agent, map[string]string{"support_email": "agent@airline.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSolutionWithoutResolveStaysInProgress(t *testing.T) {
	api := newTestAPI(t)
	agent := api.token(t, "a1", "agent@bank.com")

	id := decode[CreatedResponse](t, api.do(t, http.MethodPost, "/api/complaints/agent", agent, map[string]string{
		"consumer_email": "foo@example.com", "title": "Card", "category_id": "c1", "description": "d",
	})).ID

	rec := api.do(t, http.MethodPatch, "/api/complaints/"+id+"/solution", agent, map[string]string{"solution_text": "looking"})
	require.Equal(t, http.StatusOK, rec.Code)

	c := decode[domain.Complaint](t, api.do(t, http.MethodGet, "/api/complaints/"+id, agent, nil))
	require.Equal(t, domain.StatusInProgress, c.Status)
	require.Nil(t, c.ResolvedAt)

	// the linked consumer reads it through their own list
	own := decode[[]domain.Complaint](t, api.do(t, http.MethodGet, "/api/complaints", api.token(t, "u1", "foo@example.com"), nil))
	require.Len(t, own, 1)
	require.Equal(t, "u1", own[0].ConsumerSubjectID)
}

func TestPendingSubjectIsForbiddenEverywhere(t *testing.T) {
	api := newTestAPI(t)
	pending := api.token(t, "p1", "new@bank.com")
	unknown := api.token(t, "nobody", "nobody@x.com")

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/complaints"},
		{http.MethodGet, "/api/complaints/all"},
		{http.MethodGet, "/api/complaints/abc"},
		{http.MethodPost, "/api/complaints"},
		{http.MethodPost, "/api/complaints/agent"},
		{http.MethodPatch, "/api/complaints/abc"},
		{http.MethodPatch, "/api/complaints/abc/assign"},
		{http.MethodPatch, "/api/complaints/abc/solution"},
		{http.MethodDelete, "/api/complaints/abc"},
	}
	for _, rt := range routes {
		for _, tok := range []string{pending, unknown} {
			rec := api.do(t, rt.method, rt.path, tok, nil)
			require.Equal(t, http.StatusForbidden, rec.Code, "%s %s", rt.method, rt.path)
		}
	}
}

func TestRoleGatesAndAuthentication(t *testing.T) {
	api := newTestAPI(t)
	consumer := api.token(t, "u1", "foo@example.com")
	agent := api.token(t, "a1", "agent@bank.com")

	require.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodGet, "/api/complaints", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodGet, "/api/complaints", "garbage", nil).Code)
	require.Equal(t, http.StatusForbidden, api.do(t, http.MethodGet, "/api/complaints/all", consumer, nil).Code)

	id := decode[CreatedResponse](t, api.do(t, http.MethodPost, "/api/complaints", consumer, map[string]string{
		"title": "t", "category_id": "c1", "description": "d",
	})).ID
	require.Equal(t, http.StatusForbidden, api.do(t, http.MethodDelete, "/api/complaints/"+id, agent, nil).Code)

	admin := api.token(t, "ad", "admin@bank.com")
	rec := api.do(t, http.MethodDelete, "/api/complaints/"+id, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/api/complaints/"+id, admin, nil).Code)
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	id := decode[CreatedResponse](t, api.do(t, http.MethodPost, "/api/complaints", api.token(t, "u1", "foo@example.com"), map[string]string{
		"title": "t", "category_id": "c1", "description": "d",
	})).ID

	airline := api.token(t, "x1", "agent@airline.com")
	require.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/complaints/"+id, airline, nil).Code)

	rec := api.do(t, http.MethodGet, "/api/complaints/all", airline, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]domain.Complaint](t, rec))
}

func TestPatchIntents(t *testing.T) {
	api := newTestAPI(t)
	consumer := api.token(t, "u1", "foo@example.com")
	agent := api.token(t, "a1", "agent@bank.com")

	id := decode[CreatedResponse](t, api.do(t, http.MethodPost, "/api/complaints", consumer, map[string]string{
		"title": "t", "category_id": "c1", "description": "d",
	})).ID

	rec := api.do(t, http.MethodPatch, "/api/complaints/"+id, consumer, map[string]string{"note": "any news?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, decode[domain.Complaint](t, rec).Notes, 1)

	rec = api.do(t, http.MethodPatch, "/api/complaints/"+id, consumer, map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/complaints/"+id, consumer, map[string]string{"colour": "red"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/complaints/"+id, agent, map[string]string{"support_email": "s@b.com", "status": "resolved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decode[domain.Complaint](t, rec)
	require.Equal(t, domain.StatusResolved, c.Status)
	require.NotNil(t, c.ResolvedAt)
	require.Equal(t, "s@b.com", c.Support.Email)

	rec = api.do(t, http.MethodPatch, "/api/complaints/"+id, consumer, map[string]string{"title": "reopen please"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/complaints/"+id, agent, map[string]string{"categoryId": "c2", "supportEmail": "agent@bank.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c = decode[domain.Complaint](t, rec)
	require.Equal(t, "c2", c.CategoryID)
	require.Equal(t, "agent@bank.com", c.Support.Email)
	require.Equal(t, domain.StatusInProgress, c.Status)
}

func TestMeCategoriesAndHealth(t *testing.T) {
	api := newTestAPI(t)
	consumer := api.token(t, "u1", "foo@example.com")

	rec := api.do(t, http.MethodGet, "/api/me", consumer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[domain.AuthContext](t, rec)
	require.Equal(t, "Bank", me.Tenant)
	require.Equal(t, domain.RoleConsumer, me.Role)

	rec = api.do(t, http.MethodGet, "/api/categories", consumer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[[]domain.Category](t, rec)
	require.Len(t, cats, 1)
	require.Equal(t, "Cards", cats[0].Name)

	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/healthz", "", nil).Code)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/readyz", "", nil).Code)

}

func TestReadyReportsFailingDependency(t *testing.T) {
	h := NewHealthHandler(map[string]CheckFunc{
		"postgres": func(ctx context.Context) error { return errors.New("connection refused") },
		"profiles": func(ctx context.Context) error { return nil },
	}, nil)

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode[ReadinessResponse](t, rec)
	require.Equal(t, "not_ready", body.Status)
	require.Equal(t, "ok", body.Checks["profiles"])
	require.Equal(t, "error", body.Checks["postgres"])
	require.NotContains(t, rec.Body.String(), "connection refused")
}
