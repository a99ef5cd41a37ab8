package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/complaintdesk/internal/tenant"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewFromOptions(&goredis.Options{Addr: mr.Addr()}, nil)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func newComplaint(email string, created time.Time) *domain.Complaint {
	return &domain.Complaint{
		Title:         "ATM issue",
		CategoryID:    "c1",
		Description:   "card swallowed",
		ConsumerEmail: email,
		CreatedBy:     "u1",
		Source:        domain.SourceSelf,
		Status:        domain.StatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestRedisCreateGetListDelete(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRedisComplaintRepository(client, "bank_complaints", nil)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	firstID, err := repo.Create(ctx, newComplaint("a@b.com", base))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	secondID, err := repo.Create(ctx, newComplaint("a@b.com", base.Add(time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, newComplaint("other@b.com", base.Add(2*time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByID(ctx, firstID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "ATM issue" || !got.CreatedAt.Equal(base) {
		t.Fatalf("unexpected complaint %+v", got)
	}

	own, err := repo.ListByConsumer(ctx, "A@B.com")
	if err != nil {
		t.Fatalf("list by consumer: %v", err)
	}
	if len(own) != 2 || own[0].ID != secondID || own[1].ID != firstID {
		t.Fatalf("expected own complaints newest first, got %+v", own)
	}

	all, err := repo.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 complaints, got %d (%v)", len(all), err)
	}

	if err := repo.Delete(ctx, firstID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, firstID); !errors.Is(err, domain.ErrComplaintNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := repo.Delete(ctx, firstID); !errors.Is(err, domain.ErrComplaintNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestRedisUpdateMergesPatch(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRedisComplaintRepository(client, "bank_complaints", nil)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	id, err := repo.Create(ctx, newComplaint("a@b.com", created))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now := created.Add(time.Hour)
	patch := domain.ComplaintPatch{
		Solution:    &domain.Solution{Text: "replaced card", AgentName: "Agent", CreatedAt: now},
		AppendNotes: []domain.Note{{Text: "called", CreatedAt: now}},
		UpdatedAt:   now,
	}
	patch.SetStatus(domain.StatusResolved, now)
	if err := repo.Update(ctx, id, patch); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusResolved || got.ResolvedAt == nil || !got.ResolvedAt.Equal(now) {
		t.Fatalf("expected resolved with resolvedAt, got %+v", got)
	}
	if got.Solution == nil || got.Solution.Text != "replaced card" || len(got.Notes) != 1 {
		t.Fatalf("expected solution and note, got %+v", got)
	}
	if got.Title != "ATM issue" || !got.CreatedAt.Equal(created) {
		t.Fatalf("untouched fields changed: %+v", got)
	}

	reopen := domain.ComplaintPatch{UpdatedAt: now.Add(time.Minute)}
	reopen.SetStatus(domain.StatusInProgress, now)
	if err := repo.Update(ctx, id, reopen); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ = repo.GetByID(ctx, id)
	if got.ResolvedAt != nil {
		t.Fatalf("expected resolvedAt to be cleared on reopen, got %v", got.ResolvedAt)
	}

	if err := repo.Update(ctx, "missing", reopen); !errors.Is(err, domain.ErrComplaintNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRedisDecodesLegacyTimestamps(t *testing.T) {
	client, mr := newTestRedis(t)
	repo := NewRedisComplaintRepository(client, "bank_complaints", nil)

	mr.Set("bank_complaints:seconds", `{"title":"a","consumer_email":"a@b.com","status":"pending","createdAt":{"_seconds":1700000000,"_nanoseconds":0},"updatedAt":"not a date"}`)
	mr.Set("bank_complaints:millis", `{"title":"b","consumer_email":"a@b.com","status":"pending","createdAt":1800000000000}`)
	mr.Set("bank_complaints:broken", `{"title":"c","consumer_email":"a@b.com","status":"pending","createdAt":true}`)
	mr.SAdd("bank_complaints:ids", "seconds", "millis", "broken")

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 complaints, got %d", len(list))
	}
	if list[0].ID != "millis" || list[1].ID != "seconds" || list[2].ID != "broken" {
		t.Fatalf("unexpected order: %s, %s, %s", list[0].ID, list[1].ID, list[2].ID)
	}
	if !list[1].CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected seconds timestamp %v", list[1].CreatedAt)
	}
	if !list[2].CreatedAt.IsZero() || !list[1].UpdatedAt.IsZero() {
		t.Fatal("expected unparseable timestamps to decode as zero")
	}
}

func TestRedisTenantIsolation(t *testing.T) {
	client, _ := newTestRedis(t)
	registry := tenant.NewRegistry([]tenant.Registration{
		{Key: "Bank", ComplaintsLocation: "bank_complaints", CategoriesLocation: "bank_categories"},
		{Key: "Airline", ComplaintsLocation: "airline_complaints", CategoriesLocation: "airline_categories"},
	})
	router := NewStoreRouter(registry, RedisStores(client, nil))
	ctx := context.Background()

	bank, err := router.For("Bank")
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	airline, err := router.For("Airline")
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	id, err := bank.Complaints.Create(ctx, newComplaint("a@b.com", time.Now()))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := airline.Complaints.GetByID(ctx, id); !errors.Is(err, domain.ErrComplaintNotFound) {
		t.Fatalf("expected other tenant to miss the complaint, got %v", err)
	}
	list, err := airline.Complaints.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty airline list, got %d (%v)", len(list), err)
	}
	if err := airline.Complaints.Delete(ctx, id); !errors.Is(err, domain.ErrComplaintNotFound) {
		t.Fatalf("expected cross-tenant delete to miss, got %v", err)
	}

	if _, err := router.For("Telecom"); !errors.Is(err, domain.ErrTenantNotConfigured) {
		t.Fatalf("expected ErrTenantNotConfigured, got %v", err)
	}
}

func TestRedisCategoriesAndProfiles(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	mr.HSet("bank_categories", "c2", `{"name":"Loans","isActive":true}`)
	mr.HSet("bank_categories", "c1", `{"name":"Cards","description":"card issues","isActive":true}`)
	mr.HSet("bank_categories", "bad", `not json`)

	cats, err := NewRedisCategoryRepository(client, "bank_categories", nil).List(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 2 || cats[0].ID != "c1" || cats[1].Name != "Loans" {
		t.Fatalf("unexpected categories %+v", cats)
	}

	profiles := NewRedisProfileRepository(client, nil)
	if err := profiles.Save(ctx, &domain.Profile{SubjectID: "s1", Email: "S@B.com", DisplayName: "Sam", TenantName: "bank", Role: domain.RoleAgent}); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	p, err := profiles.GetByEmail(ctx, " s@b.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if p.SubjectID != "s1" || p.DisplayName != "Sam" || p.Role != domain.RoleAgent {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, err := profiles.GetBySubject(ctx, "nobody"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if _, err := profiles.GetByEmail(ctx, "nobody@b.com"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}
