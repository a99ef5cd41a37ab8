package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/redis"
)

// RedisCategoryRepository reads a tenant's categories from a single hash
// keyed by category id
type RedisCategoryRepository struct {
	redis  *redis.Client
	hash   string
	logger *slog.Logger
}

func NewRedisCategoryRepository(redisClient *redis.Client, hash string, logger *slog.Logger) *RedisCategoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCategoryRepository{redis: redisClient, hash: hash, logger: logger}
}

func (r *RedisCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	fields, err := r.redis.HGetAll(ctx, r.hash)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]*domain.Category, 0, len(fields))
	for id, raw := range fields {
		var c domain.Category
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			r.logger.Warn("skipping unreadable category",
				slog.String("category_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		c.ID = id
		categories = append(categories, &c)
	}

	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}
