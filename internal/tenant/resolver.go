package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
)

// ErrNoTenant is returned when no source names a tenant for the subject
var ErrNoTenant = errors.New("no organization type found for this user")

// UnsupportedError is returned when the resolved tenant is not registered
type UnsupportedError struct {
	Name string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported organisation type: %s", e.Name)
}

// IsResolutionError reports whether err is a tenant resolution failure
func IsResolutionError(err error) bool {
	var unsupported *UnsupportedError
	return errors.Is(err, ErrNoTenant) || errors.As(err, &unsupported)
}

// Hints are the weaker, possibly forged, tenant and role signals
type Hints struct {
	ClaimTenant  string // verified custom claim
	ClaimRole    string // verified custom claim
	HeaderTenant string // client-supplied, lowest trust
}

// Resolution is the resolver's output. Role is always set, even when tenant
// resolution fails, so callers can deny pending subjects first.
type Resolution struct {
	Tenant  string
	Role    domain.Role
	Profile *domain.Profile
}

// Resolver turns a subject plus hints into a tenant and role
type Resolver struct {
	registry *Registry
	profiles domain.ProfileRepository
	logger   *slog.Logger
}

// NewResolver creates a new tenant resolver
func NewResolver(registry *Registry, profiles domain.ProfileRepository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{registry: registry, profiles: profiles, logger: logger}
}

// Resolve consults the directory profile first, then the claim, then the
// header hint. Errors other than tenant resolution errors come from the
// profile store and must be surfaced as server errors.
func (r *Resolver) Resolve(ctx context.Context, subject domain.Subject, hints Hints) (*Resolution, error) {
	profile, err := r.profiles.GetBySubject(ctx, subject.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		profile = nil
	}

	res := &Resolution{Role: domain.RolePending, Profile: profile}

	if role, ok := domain.ParseRole(hints.ClaimRole); ok {
		res.Role = role
	}
	if profile != nil && profile.Role != "" {
		if role, ok := domain.ParseRole(string(profile.Role)); ok {
			res.Role = role
		} else {
			r.logger.Warn("unknown role in profile, treating as pending",
				slog.String("subject_id", subject.ID),
				slog.String("role", string(profile.Role)),
			)
			res.Role = domain.RolePending
		}
	}

	name := r.registry.Normalize(hints.HeaderTenant)
	if claim := r.registry.Normalize(hints.ClaimTenant); claim != "" {
		name = claim
	}
	if profile != nil {
		if dir := r.registry.Normalize(profile.TenantName); dir != "" {
			name = dir
		}
	}

	if name == "" {
		return res, ErrNoTenant
	}
	if _, ok := r.registry.Lookup(name); !ok {
		return res, &UnsupportedError{Name: name}
	}

	res.Tenant = name
	return res, nil
}
