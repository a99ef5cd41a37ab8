package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
)

// PostgresProfileRepository implements domain.ProfileRepository over the
// directory's profiles table
type PostgresProfileRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresProfileRepository creates a new profile repository
func NewPostgresProfileRepository(db *sql.DB, logger *slog.Logger) *PostgresProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProfileRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the profiles table when it is missing. Emails are
// unique after trimming and lower-casing, matching GetByEmail.
func (r *PostgresProfileRepository) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			subject_id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			tenant_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'pending'
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS profiles_email_normalized_idx
			ON profiles (lower(trim(email)))`,
	}
	for _, query := range queries {
		if _, err := r.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to ensure profile schema: %w", err)
		}
	}
	return nil
}

// GetBySubject retrieves a profile by subject id
func (r *PostgresProfileRepository) GetBySubject(ctx context.Context, subjectID string) (*domain.Profile, error) {
	query := `
		SELECT subject_id, email, display_name, tenant_name, role
		FROM profiles
		WHERE subject_id = $1
	`
	return r.get(ctx, query, subjectID)
}

// GetByEmail retrieves a profile by normalized email
func (r *PostgresProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	query := `
		SELECT subject_id, email, display_name, tenant_name, role
		FROM profiles
		WHERE lower(trim(email)) = $1
	`
	return r.get(ctx, query, domain.NormalizeEmail(email))
}

func (r *PostgresProfileRepository) get(ctx context.Context, query, arg string) (*domain.Profile, error) {
	p := &domain.Profile{}
	var role string

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.SubjectID,
		&p.Email,
		&p.DisplayName,
		&p.TenantName,
		&role,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		r.logger.Error("failed to get profile", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p.Role = domain.Role(role)
	return p, nil
}
