package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/complaintdesk/internal/tenant"
)

// TenantStores are the store handles for one tenant
type TenantStores struct {
	Complaints domain.ComplaintRepository
	Categories domain.CategoryRepository
}

// StoreFactory builds the stores for one registration
type StoreFactory func(reg tenant.Registration) TenantStores

// PostgresStores builds table-per-tenant Postgres stores
func PostgresStores(db *sql.DB, logger *slog.Logger) StoreFactory {
	return func(reg tenant.Registration) TenantStores {
		return TenantStores{
			Complaints: NewPostgresComplaintRepository(db, reg.ComplaintsLocation, logger),
			Categories: NewPostgresCategoryRepository(db, reg.CategoriesLocation, logger),
		}
	}
}

// RedisStores builds key-prefix-per-tenant Redis stores
func RedisStores(client *redis.Client, logger *slog.Logger) StoreFactory {
	return func(reg tenant.Registration) TenantStores {
		return TenantStores{
			Complaints: NewRedisComplaintRepository(client, reg.ComplaintsLocation, logger),
			Categories: NewRedisCategoryRepository(client, reg.CategoriesLocation, logger),
		}
	}
}

// StoreRouter maps canonical tenant keys to their stores. It is built once at
// startup and read concurrently afterwards.
type StoreRouter struct {
	stores map[string]TenantStores
}

func NewStoreRouter(registry *tenant.Registry, factory StoreFactory) *StoreRouter {
	regs := registry.Registrations()
	r := &StoreRouter{stores: make(map[string]TenantStores, len(regs))}
	for _, reg := range regs {
		r.stores[reg.Key] = factory(reg)
	}
	return r
}

// For returns the stores of a canonical tenant key. An unknown key means the
// resolver and router disagree, which is a server fault.
func (r *StoreRouter) For(tenantKey string) (TenantStores, error) {
	s, ok := r.stores[tenantKey]
	if !ok {
		return TenantStores{}, fmt.Errorf("%w: %q", domain.ErrTenantNotConfigured, tenantKey)
	}
	return s, nil
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// EnsureSchema creates missing tables for every store that supports it
func (r *StoreRouter) EnsureSchema(ctx context.Context) error {
	for key, s := range r.stores {
		for _, store := range []interface{}{s.Complaints, s.Categories} {
			if e, ok := store.(schemaEnsurer); ok {
				if err := e.EnsureSchema(ctx); err != nil {
					return fmt.Errorf("tenant %s: %w", key, err)
				}
			}
		}
	}
	return nil
}
