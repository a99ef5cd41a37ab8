package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/reliability/circuitbreaker"
)

// BreakerProfileRepository fails fast while the directory is unhealthy.
// Not-found answers count as healthy.
type BreakerProfileRepository struct {
	next    domain.ProfileRepository
	breaker *circuitbreaker.CircuitBreaker
}

func NewBreakerProfileRepository(next domain.ProfileRepository, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *BreakerProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("profile directory circuit state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &BreakerProfileRepository{next: next, breaker: breaker}
}

func (r *BreakerProfileRepository) GetBySubject(ctx context.Context, subjectID string) (*domain.Profile, error) {
	var p *domain.Profile
	err := r.breaker.Execute(func() error {
		var err error
		p, err = r.next.GetBySubject(ctx, subjectID)
		return err
	}, domain.ErrProfileNotFound)
	if err != nil {
		return nil, wrapBreaker(err)
	}
	return p, nil
}

func (r *BreakerProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	var p *domain.Profile
	err := r.breaker.Execute(func() error {
		var err error
		p, err = r.next.GetByEmail(ctx, email)
		return err
	}, domain.ErrProfileNotFound)
	if err != nil {
		return nil, wrapBreaker(err)
	}
	return p, nil
}

func wrapBreaker(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("profile directory unavailable: %w", err)
	}
	return err
}
