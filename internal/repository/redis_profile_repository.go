package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/redis"
)

// RedisProfileRepository reads directory profiles from profile:<subject>
// hashes with a profile_email:<email> index
type RedisProfileRepository struct {
	redis  *redis.Client
	logger *slog.Logger
}

func NewRedisProfileRepository(redisClient *redis.Client, logger *slog.Logger) *RedisProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisProfileRepository{redis: redisClient, logger: logger}
}

func profileKey(subjectID string) string { return "profile:" + subjectID }

func profileEmailKey(email string) string { return "profile_email:" + domain.NormalizeEmail(email) }

// GetBySubject returns domain.ErrProfileNotFound when no hash exists
func (r *RedisProfileRepository) GetBySubject(ctx context.Context, subjectID string) (*domain.Profile, error) {
	fields, err := r.redis.HGetAll(ctx, profileKey(subjectID))
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrProfileNotFound
	}
	return &domain.Profile{
		SubjectID:   subjectID,
		Email:       fields["email"],
		DisplayName: fields["display_name"],
		TenantName:  fields["tenant_name"],
		Role:        domain.Role(fields["role"]),
	}, nil
}

// GetByEmail resolves the email index, then loads the profile
func (r *RedisProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	subjectID, err := r.redis.Get(ctx, profileEmailKey(email))
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return r.GetBySubject(ctx, subjectID)
}

// Save writes a profile and its email index atomically. Profiles are owned
// by the directory; this is used for seeding.
func (r *RedisProfileRepository) Save(ctx context.Context, p *domain.Profile) error {
	err := r.redis.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, profileKey(p.SubjectID),
			"email", domain.NormalizeEmail(p.Email),
			"display_name", p.DisplayName,
			"tenant_name", p.TenantName,
			"role", string(p.Role),
		)
		if p.Email != "" {
			pipe.Set(ctx, profileEmailKey(p.Email), p.SubjectID, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
