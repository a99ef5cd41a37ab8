package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
)

const complaintColumns = `id, title, category_id, description, attachment, consumer_email,
		consumer_subject_id, created_by, source, logged_by, status, support, solution, notes,
		created_at, updated_at, resolved_at`

// PostgresComplaintRepository implements domain.ComplaintRepository over one
// tenant table
type PostgresComplaintRepository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresComplaintRepository binds the repository to table. The name comes
// from the tenant registry and is quoted on every use.
func NewPostgresComplaintRepository(db *sql.DB, table string, logger *slog.Logger) *PostgresComplaintRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresComplaintRepository{
		db:     db,
		table:  pq.QuoteIdentifier(table),
		logger: logger.With(slog.String("table", table)),
	}
}

// EnsureSchema creates the tenant table and its consumer index
func (r *PostgresComplaintRepository) EnsureSchema(ctx context.Context) error {
	raw := strings.Trim(r.table, `"`)
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			category_id TEXT NOT NULL,
			description TEXT NOT NULL,
			attachment TEXT NOT NULL DEFAULT '',
			consumer_email TEXT NOT NULL,
			consumer_subject_id TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			source TEXT NOT NULL,
			logged_by TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			support JSONB,
			solution JSONB,
			notes JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS %s ON %s (consumer_email);
	`, r.table, pq.QuoteIdentifier(raw+"_consumer_email_idx"), r.table)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure complaint schema: %w", err)
	}
	return nil
}

// Create inserts a complaint and returns its generated id
func (r *PostgresComplaintRepository) Create(ctx context.Context, c *domain.Complaint) (string, error) {
	c.ID = uuid.NewString()

	support, err := marshalNullable(c.Support)
	if err != nil {
		return "", err
	}
	solution, err := marshalNullable(c.Solution)
	if err != nil {
		return "", err
	}
	notes, err := marshalNotes(c.Notes)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, r.table, complaintColumns)

	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.Title,
		c.CategoryID,
		c.Description,
		c.Attachment,
		c.ConsumerEmail,
		c.ConsumerSubjectID,
		c.CreatedBy,
		string(c.Source),
		c.LoggedBy,
		string(c.Status),
		support,
		solution,
		notes,
		c.CreatedAt,
		c.UpdatedAt,
		nullableTime(c.ResolvedAt),
	)
	if err != nil {
		r.logger.Error("failed to create complaint", slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to create complaint: %w", err)
	}
	return c.ID, nil
}

// GetByID retrieves a complaint by id
func (r *PostgresComplaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, complaintColumns, r.table)

	c, err := scanComplaint(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrComplaintNotFound
		}
		r.logger.Error("failed to get complaint",
			slog.String("complaint_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	return c, nil
}

// ListByConsumer returns the consumer's complaints, newest first
func (r *PostgresComplaintRepository) ListByConsumer(ctx context.Context, consumerEmail string) ([]*domain.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE consumer_email = $1 ORDER BY created_at DESC`, complaintColumns, r.table)
	return r.list(ctx, query, domain.NormalizeEmail(consumerEmail))
}

// List returns every complaint in the tenant, newest first
func (r *PostgresComplaintRepository) List(ctx context.Context) ([]*domain.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC`, complaintColumns, r.table)
	return r.list(ctx, query)
}

func (r *PostgresComplaintRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Complaint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	defer rows.Close()

	complaints := make([]*domain.Complaint, 0)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate complaints: %w", err)
	}

	domain.SortNewestFirst(complaints)
	return complaints, nil
}

// Update applies the whole patch in one UPDATE statement
func (r *PostgresComplaintRepository) Update(ctx context.Context, id string, patch domain.ComplaintPatch) error {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)
	add := func(expr string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if patch.Title != nil {
		add("title = $%d", *patch.Title)
	}
	if patch.Description != nil {
		add("description = $%d", *patch.Description)
	}
	if patch.CategoryID != nil {
		add("category_id = $%d", *patch.CategoryID)
	}
	if patch.Status != nil {
		add("status = $%d", string(*patch.Status))
		add("resolved_at = $%d", nullableTime(patch.ResolvedAt))
	}
	if patch.Support != nil {
		support, err := marshalNullable(patch.Support)
		if err != nil {
			return err
		}
		add("support = $%d", support)
	}
	if patch.Solution != nil {
		solution, err := marshalNullable(patch.Solution)
		if err != nil {
			return err
		}
		add("solution = $%d", solution)
	}
	if len(patch.AppendNotes) > 0 {
		notes, err := marshalNotes(patch.AppendNotes)
		if err != nil {
			return err
		}
		add("notes = notes || $%d::jsonb", notes)
	}
	add("updated_at = $%d", patch.UpdatedAt)

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`, r.table, strings.Join(sets, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update complaint",
			slog.String("complaint_id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to update complaint: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update complaint: %w", err)
	}
	if affected == 0 {
		return domain.ErrComplaintNotFound
	}
	return nil
}

// Delete removes a complaint
func (r *PostgresComplaintRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete complaint: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete complaint: %w", err)
	}
	if affected == 0 {
		return domain.ErrComplaintNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComplaint(row rowScanner) (*domain.Complaint, error) {
	var (
		c                        domain.Complaint
		source, status           string
		support, solution, notes []byte
		resolvedAt               sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.CategoryID,
		&c.Description,
		&c.Attachment,
		&c.ConsumerEmail,
		&c.ConsumerSubjectID,
		&c.CreatedBy,
		&source,
		&c.LoggedBy,
		&status,
		&support,
		&solution,
		&notes,
		&c.CreatedAt,
		&c.UpdatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Source = domain.Source(source)
	c.Status = domain.Status(status)
	if len(support) > 0 {
		c.Support = &domain.SupportAssignment{}
		if err := json.Unmarshal(support, c.Support); err != nil {
			return nil, fmt.Errorf("failed to decode support: %w", err)
		}
	}
	if len(solution) > 0 {
		c.Solution = &domain.Solution{}
		if err := json.Unmarshal(solution, c.Solution); err != nil {
			return nil, fmt.Errorf("failed to decode solution: %w", err)
		}
	}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &c.Notes); err != nil {
			return nil, fmt.Errorf("failed to decode notes: %w", err)
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	return &c, nil
}

func marshalNullable[T any](v *T) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return string(data), nil
}

func marshalNotes(notes []domain.Note) (string, error) {
	if notes == nil {
		notes = []domain.Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notes: %w", err)
	}
	return string(data), nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
