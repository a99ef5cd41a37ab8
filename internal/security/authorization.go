package security

import (
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermListOwnComplaints Permission = "complaints:list_own"
	PermReadComplaint     Permission = "complaints:read"
	PermCreateComplaint   Permission = "complaints:create"
	PermUpdateComplaint   Permission = "complaints:update"
	PermListCategories    Permission = "categories:list"
	PermListAllComplaints Permission = "complaints:list_all"
	PermCreateOnBehalf    Permission = "complaints:create_on_behalf"
	PermAssignSupport     Permission = "complaints:assign"
	PermAddSolution       Permission = "complaints:solve"
	PermManageComplaint   Permission = "complaints:manage"
	PermDeleteComplaint   Permission = "complaints:delete"
)

var consumerPermissions = []Permission{
	PermListOwnComplaints,
	PermReadComplaint,
	PermCreateComplaint,
	PermUpdateComplaint,
	PermListCategories,
}

var agentPermissions = append(append([]Permission{}, consumerPermissions...),
	PermListAllComplaints,
	PermCreateOnBehalf,
	PermAssignSupport,
	PermAddSolution,
	PermManageComplaint,
)

// RolePermissions maps roles to their permissions. RolePending is absent and
// therefore holds no permission at all.
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleConsumer: consumerPermissions,
	domain.RoleAgent:    agentPermissions,
	domain.RoleAdmin:    append(append([]Permission{}, agentPermissions...), PermDeleteComplaint),
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission.
// The returned error wraps domain.ErrForbidden.
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("%w: %s role cannot %s", domain.ErrForbidden, role, permission)
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}

// IsTenantRole reports whether the role may perform any tenant-scoped operation
func IsTenantRole(role domain.Role) bool {
	return len(RolePermissions[role]) > 0
}
