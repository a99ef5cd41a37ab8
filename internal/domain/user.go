package domain

import (
	"context"
	"strings"
)

// Role gates which operations a caller may perform inside a tenant
type Role string

const (
	RolePending  Role = "pending"
	RoleConsumer Role = "consumer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a raw directory or claim value onto a known role.
// Unknown values return false and must be treated as pending by callers.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RolePending:
		return RolePending, true
	case RoleConsumer:
		return RoleConsumer, true
	case RoleAgent:
		return RoleAgent, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// IsStaff reports whether the role belongs to helpdesk staff
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Subject is a verified caller identity. It is never persisted.
type Subject struct {
	ID    string
	Email string // normalized
}

// Profile is the directory record binding a subject to a tenant and role
type Profile struct {
	SubjectID   string
	Email       string
	DisplayName string
	TenantName  string // raw, possibly inconsistently cased
	Role        Role
}

// AuthContext is the request-scoped authorization result. It is re-derived on
// every request and never cached.
type AuthContext struct {
	SubjectID string `json:"uid"`
	Email     string `json:"email"`
	Tenant    string `json:"organizationType"`
	Role      Role   `json:"role"`
}

// ProfileRepository reads directory profiles
type ProfileRepository interface {
	GetBySubject(ctx context.Context, subjectID string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
}

// NormalizeEmail trims and lower-cases an email for exact-match lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
