package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/complaintdesk/internal/infrastructure/logger"
)

// Actions recorded in the audit trail
const (
	ActionCreate         = "complaint.create"
	ActionCreateOnBehalf = "complaint.create_on_behalf"
	ActionUpdate         = "complaint.update"
	ActionAssign         = "complaint.assign"
	ActionSolution       = "complaint.solution"
	ActionDelete         = "complaint.delete"
	ActionRead           = "complaint.read"
	ActionDenied         = "access_denied"
)

// Event is a single audit record
type Event struct {
	Tenant      string
	SubjectID   string
	Role        string
	Action      string
	ComplaintID string
	Outcome     string
	Details     string
}

// Logger writes audit events to the structured log
type Logger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{logger: log.With(slog.String("component", "audit")), now: time.Now}
}

func (al *Logger) Record(ctx context.Context, ev Event) {
	al.logger.Info("audit",
		slog.String("action", ev.Action),
		slog.String("complaint_id", ev.ComplaintID),
		slog.String("tenant", ev.Tenant),
		slog.String("subject_id", ev.SubjectID),
		slog.String("role", ev.Role),
		slog.String("outcome", ev.Outcome),
		slog.String("details", ev.Details),
		slog.String("request_id", logger.RequestID(ctx)),
		slog.Time("timestamp", al.now()),
	)
}

func (al *Logger) LogDenied(ctx context.Context, tenant, subjectID, reason string) {
	al.Record(ctx, Event{
		Tenant:    tenant,
		SubjectID: subjectID,
		Action:    ActionDenied,
		Outcome:   "denied",
		Details:   reason,
	})
}
