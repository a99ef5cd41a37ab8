package security

import (
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
)

// Action identifies what a caller is doing to a complaint
type Action string

const (
	ActionRead Action = "read"
	ActionEdit Action = "edit"
	ActionNote Action = "note"
)

// ComplaintAccess checks ownership rules on a single complaint. Staff bypass
// them; consumers only reach complaints filed under their own email.
type ComplaintAccess struct {
	logger *slog.Logger
}

// NewComplaintAccess creates a new resource-aware authorization check
func NewComplaintAccess(logger *slog.Logger) *ComplaintAccess {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplaintAccess{logger: logger}
}

// IsOwner reports whether the caller is the complaint's consumer
func IsOwner(ac domain.AuthContext, c *domain.Complaint) bool {
	email := domain.NormalizeEmail(ac.Email)
	return email != "" && email == domain.NormalizeEmail(c.ConsumerEmail)
}

// Validate returns domain.ErrComplaintNotFound when a consumer reads someone
// else's complaint, and domain.ErrForbidden for disallowed writes.
func (a *ComplaintAccess) Validate(ac domain.AuthContext, c *domain.Complaint, action Action) error {
	if ac.Role.IsStaff() {
		return nil
	}

	if !IsOwner(ac, c) {
		a.logger.Warn("complaint access denied",
			slog.String("subject_id", ac.SubjectID),
			slog.String("complaint_id", c.ID),
			slog.String("tenant", ac.Tenant),
			slog.String("action", string(action)),
		)
		// no existence leak for other consumers' complaints
		return domain.ErrComplaintNotFound
	}

	if action != ActionRead && c.Status == domain.StatusResolved {
		return fmt.Errorf("%w: resolved complaints can only be changed by helpdesk staff", domain.ErrForbidden)
	}
	return nil
}
