package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/reliability/circuitbreaker"
)

type flakyProfiles struct {
	calls int
	err   error
}

func (f *flakyProfiles) GetBySubject(ctx context.Context, id string) (*domain.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Profile{SubjectID: id}, nil
}

func (f *flakyProfiles) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	f.calls++
	return nil, domain.ErrProfileNotFound
}

func TestBreakerProfileRepository(t *testing.T) {
	inner := &flakyProfiles{}
	repo := NewBreakerProfileRepository(inner, circuitbreaker.NewCircuitBreaker(2, 1, time.Hour), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := repo.GetByEmail(ctx, "x@b.com"); !errors.Is(err, domain.ErrProfileNotFound) {
			t.Fatalf("expected not found to pass through, got %v", err)
		}
	}

	inner.err = errors.New("connection refused")
	for i := 0; i < 2; i++ {
		if _, err := repo.GetBySubject(ctx, "u1"); err == nil {
			t.Fatal("expected store error")
		}
	}

	calls := inner.calls
	_, err := repo.GetBySubject(ctx, "u1")
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if inner.calls != calls {
		t.Fatal("expected open breaker to skip the directory")
	}
}
