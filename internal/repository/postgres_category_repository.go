package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
)

// PostgresCategoryRepository reads one tenant's category table
type PostgresCategoryRepository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

func NewPostgresCategoryRepository(db *sql.DB, table string, logger *slog.Logger) *PostgresCategoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCategoryRepository{db: db, table: pq.QuoteIdentifier(table), logger: logger}
}

// EnsureSchema creates the category table
func (r *PostgresCategoryRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)
	`, r.table)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure category schema: %w", err)
	}
	return nil
}

func (r *PostgresCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	query := fmt.Sprintf(`SELECT id, name, description, is_active FROM %s ORDER BY name`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*domain.Category, 0)
	for rows.Next() {
		c := &domain.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}
