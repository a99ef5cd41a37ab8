package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/redis"
)

// RedisComplaintRepository implements domain.ComplaintRepository for one
// tenant collection. Each complaint is a JSON document at <collection>:<id>
// and <collection>:ids indexes them.
type RedisComplaintRepository struct {
	redis      *redis.Client
	collection string
	logger     *slog.Logger
}

// NewRedisComplaintRepository creates a repository bound to one collection
func NewRedisComplaintRepository(redisClient *redis.Client, collection string, logger *slog.Logger) *RedisComplaintRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisComplaintRepository{
		redis:      redisClient,
		collection: collection,
		logger:     logger.With(slog.String("collection", collection)),
	}
}

func (r *RedisComplaintRepository) key(id string) string {
	return r.collection + ":" + id
}

func (r *RedisComplaintRepository) indexKey() string {
	return r.collection + ":ids"
}

// Create stores a new complaint and returns its generated id
func (r *RedisComplaintRepository) Create(ctx context.Context, c *domain.Complaint) (string, error) {
	c.ID = uuid.NewString()

	data, err := encodeComplaint(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal complaint: %w", err)
	}

	err = r.redis.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.key(c.ID), data, 0)
		pipe.SAdd(ctx, r.indexKey(), c.ID)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to create complaint", slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to create complaint: %w", err)
	}

	r.logger.Debug("complaint created", slog.String("complaint_id", c.ID))
	return c.ID, nil
}

// GetByID retrieves a complaint by id
func (r *RedisComplaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	data, err := r.redis.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, domain.ErrComplaintNotFound
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}

	c, err := decodeComplaint(id, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal complaint: %w", err)
	}
	return c, nil
}

// List returns every complaint in the collection, newest first
func (r *RedisComplaintRepository) List(ctx context.Context) ([]*domain.Complaint, error) {
	ids, err := r.redis.SMembers(ctx, r.indexKey())
	if err != nil {
		return nil, fmt.Errorf("failed to list complaint ids: %w", err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	values, err := r.redis.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to load complaints: %w", err)
	}

	complaints := make([]*domain.Complaint, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// indexed but deleted concurrently
			continue
		}
		c, err := decodeComplaint(ids[i], []byte(raw))
		if err != nil {
			r.logger.Warn("skipping unreadable complaint",
				slog.String("complaint_id", ids[i]),
				slog.String("error", err.Error()),
			)
			continue
		}
		complaints = append(complaints, c)
	}

	domain.SortNewestFirst(complaints)
	return complaints, nil
}

// ListByConsumer returns the complaints filed under consumerEmail, newest first
func (r *RedisComplaintRepository) ListByConsumer(ctx context.Context, consumerEmail string) ([]*domain.Complaint, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(consumerEmail)
	out := make([]*domain.Complaint, 0)
	for _, c := range all {
		if domain.NormalizeEmail(c.ConsumerEmail) == email {
			out = append(out, c)
		}
	}
	return out, nil
}

// Update applies patch in a single optimistic transaction
func (r *RedisComplaintRepository) Update(ctx context.Context, id string, patch domain.ComplaintPatch) error {
	key := r.key(id)
	err := r.redis.Mutate(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			return domain.ErrComplaintNotFound
		}
		if err != nil {
			return err
		}

		c, err := decodeComplaint(id, []byte(data))
		if err != nil {
			return fmt.Errorf("failed to unmarshal complaint: %w", err)
		}
		patch.Apply(c)

		updated, err := encodeComplaint(c)
		if err != nil {
			return fmt.Errorf("failed to marshal complaint: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, domain.ErrComplaintNotFound) {
		return err
	}
	if err != nil {
		r.logger.Error("failed to update complaint",
			slog.String("complaint_id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to update complaint: %w", err)
	}
	return nil
}

// Delete removes a complaint
func (r *RedisComplaintRepository) Delete(ctx context.Context, id string) error {
	var del *goredis.IntCmd
	err := r.redis.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, r.key(id))
		pipe.SRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete complaint: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrComplaintNotFound
	}

	r.logger.Debug("complaint deleted", slog.String("complaint_id", id))
	return nil
}

// Ping checks the backing store
func (r *RedisComplaintRepository) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx)
}
