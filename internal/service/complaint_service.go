package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/observability/metrics"
	"github.com/aryan0dhankhar/complaintdesk/internal/observability/tracing"
	"github.com/aryan0dhankhar/complaintdesk/internal/repository"
	"github.com/aryan0dhankhar/complaintdesk/internal/security"
	"github.com/aryan0dhankhar/complaintdesk/pkg/cache"
)

// fallbackAgentName is used when neither a display name nor an email is known
const fallbackAgentName = "Agent"

// StoreRouter hands out the stores of one tenant
type StoreRouter interface {
	For(tenant string) (repository.TenantStores, error)
}

// ComplaintService is the complaint lifecycle engine. Every method takes the
// caller's AuthContext and only ever touches that tenant's stores.
type ComplaintService struct {
	stores    StoreRouter
	directory domain.ProfileRepository
	access    *security.ComplaintAccess
	names     *cache.Cache[string]
	logger    *slog.Logger
	now       func() time.Time
}

// NewComplaintService creates a new complaint service. names may be nil to
// disable display name caching.
func NewComplaintService(
	stores StoreRouter,
	directory domain.ProfileRepository,
	names *cache.Cache[string],
	logger *slog.Logger,
) *ComplaintService {
	if logger == nil {
		logger = slog.Default()
	}
	if names == nil {
		names = cache.New[string](0)
	}
	return &ComplaintService{
		stores:    stores,
		directory: directory,
		access:    security.NewComplaintAccess(logger),
		names:     names,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput is a consumer's own complaint
type SubmitInput struct {
	Title       string
	CategoryID  string
	Description string
	Attachment  string
}

// AgentSubmitInput is a complaint logged by staff for a consumer
type AgentSubmitInput struct {
	ConsumerEmail string
	Title         string
	CategoryID    string
	Description   string
	Attachment    string
}

// SolutionInput records a solution. Status, when set, overrides Resolve.
type SolutionInput struct {
	Text    string
	Resolve bool
	Status  string
}

// UpdateInput is a partial update. Each non-nil field is one intent.
type UpdateInput struct {
	Title        *string
	Description  *string
	CategoryID   *string
	Status       *string
	SupportEmail *string
	Note         *string
}

func (in UpdateInput) empty() bool {
	return in.Title == nil && in.Description == nil && in.CategoryID == nil &&
		in.Status == nil && in.SupportEmail == nil && in.Note == nil
}

func (in UpdateInput) editsDetails() bool {
	return in.Title != nil || in.Description != nil || in.CategoryID != nil
}

func (s *ComplaintService) start(ctx context.Context, op string, ac domain.AuthContext) (context.Context, trace.Span) {
	return tracing.Tracer().Start(ctx, "ComplaintService."+op, trace.WithAttributes(
		attribute.String("tenant", ac.Tenant),
		attribute.String("role", string(ac.Role)),
	))
}

func finish(span trace.Span, op string, err error) {
	metrics.ObserveComplaintOperation(op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *ComplaintService) storesFor(ac domain.AuthContext) (repository.TenantStores, error) {
	return s.stores.For(ac.Tenant)
}

// Submit files a complaint for the caller
func (s *ComplaintService) Submit(ctx context.Context, ac domain.AuthContext, in SubmitInput) (id string, err error) {
	ctx, span := s.start(ctx, "Submit", ac)
	defer func() { finish(span, "submit", err) }()

	email := domain.NormalizeEmail(ac.Email)
	if email == "" {
		return "", domain.Invalid("email", "user email not found in token")
	}

	title, err := requireTrimmed("title", in.Title)
	if err != nil {
		return "", err
	}
	categoryID, err := requireTrimmed("category_id", in.CategoryID)
	if err != nil {
		return "", err
	}
	description, err := requireTrimmed("description", in.Description)
	if err != nil {
		return "", err
	}

	stores, err := s.storesFor(ac)
	if err != nil {
		return "", err
	}

	now := s.now()
	id, err = stores.Complaints.Create(ctx, &domain.Complaint{
		Title:         title,
		CategoryID:    categoryID,
		Description:   description,
		Attachment:    strings.TrimSpace(in.Attachment),
		ConsumerEmail: email,
		CreatedBy:     ac.SubjectID,
		Source:        domain.SourceSelf,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("complaint submitted",
		slog.String("complaint_id", id),
		slog.String("tenant", ac.Tenant),
		slog.String("subject_id", ac.SubjectID),
	)
	return id, nil
}

// SubmitOnBehalf logs a complaint for a consumer, typically from a phone call
func (s *ComplaintService) SubmitOnBehalf(ctx context.Context, ac domain.AuthContext, in AgentSubmitInput) (id string, err error) {
	ctx, span := s.start(ctx, "SubmitOnBehalf", ac)
	defer func() { finish(span, "submit_on_behalf", err) }()

	email := domain.NormalizeEmail(in.ConsumerEmail)
	if email == "" {
		return "", domain.Required("consumer_email")
	}
	categoryID, err := requireTrimmed("category_id", in.CategoryID)
	if err != nil {
		return "", err
	}
	description, err := requireTrimmed("description", in.Description)
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Phone complaint from " + email
	}

	stores, err := s.storesFor(ac)
	if err != nil {
		return "", err
	}

	now := s.now()
	c := &domain.Complaint{
		Title:         title,
		CategoryID:    categoryID,
		Description:   description,
		Attachment:    strings.TrimSpace(in.Attachment),
		ConsumerEmail: email,
		CreatedBy:     ac.SubjectID,
		Source:        domain.SourceAgent,
		LoggedBy:      ac.SubjectID,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if subjectID, ok := s.lookupSubjectID(ctx, ac.Tenant, email); ok {
		c.ConsumerSubjectID = subjectID
	}

	id, err = stores.Complaints.Create(ctx, c)
	if err != nil {
		return "", err
	}

	s.logger.Info("complaint logged on behalf of consumer",
		slog.String("complaint_id", id),
		slog.String("tenant", ac.Tenant),
		slog.String("agent_id", ac.SubjectID),
	)
	return id, nil
}

// ListOwn returns the caller's complaints, newest first
func (s *ComplaintService) ListOwn(ctx context.Context, ac domain.AuthContext) (out []*domain.Complaint, err error) {
	ctx, span := s.start(ctx, "ListOwn", ac)
	defer func() { finish(span, "list_own", err) }()

	email := domain.NormalizeEmail(ac.Email)
	if email == "" {
		return nil, domain.Invalid("email", "user email not found in token")
	}
	stores, err := s.storesFor(ac)
	if err != nil {
		return nil, err
	}
	out, err = stores.Complaints.ListByConsumer(ctx, email)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(out)
	return out, nil
}

// ListAll returns every complaint of the caller's tenant, newest first
func (s *ComplaintService) ListAll(ctx context.Context, ac domain.AuthContext) (out []*domain.Complaint, err error) {
	ctx, span := s.start(ctx, "ListAll", ac)
	defer func() { finish(span, "list_all", err) }()

	stores, err := s.storesFor(ac)
	if err != nil {
		return nil, err
	}
	out, err = stores.Complaints.List(ctx)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(out)
	return out, nil
}

// Get returns one complaint. Consumers get ErrComplaintNotFound for
// complaints that are not theirs.
func (s *ComplaintService) Get(ctx context.Context, ac domain.AuthContext, id string) (c *domain.Complaint, err error) {
	ctx, span := s.start(ctx, "Get", ac)
	defer func() { finish(span, "get", err) }()

	c, err = s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.Validate(ac, c, security.ActionRead); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ComplaintService) load(ctx context.Context, ac domain.AuthContext, id string) (*domain.Complaint, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrComplaintNotFound
	}
	stores, err := s.storesFor(ac)
	if err != nil {
		return nil, err
	}
	return stores.Complaints.GetByID(ctx, id)
}

// AssignSupport puts a support engineer on the complaint. Assignment always
// moves the complaint to in-progress, reopening a resolved one.
func (s *ComplaintService) AssignSupport(ctx context.Context, ac domain.AuthContext, id, supportEmail string) (err error) {
	ctx, span := s.start(ctx, "AssignSupport", ac)
	defer func() { finish(span, "assign", err) }()

	patch := domain.ComplaintPatch{UpdatedAt: s.now()}
	if err := s.applySupport(ctx, ac, &patch, supportEmail); err != nil {
		return err
	}

	if err := s.update(ctx, ac, id, patch); err != nil {
		return err
	}

	s.logger.Info("support assigned",
		slog.String("complaint_id", id),
		slog.String("tenant", ac.Tenant),
		slog.String("support_id", patch.Support.SubjectID),
	)
	return nil
}

func (s *ComplaintService) applySupport(ctx context.Context, ac domain.AuthContext, patch *domain.ComplaintPatch, supportEmail string) error {
	email := domain.NormalizeEmail(supportEmail)
	if email == "" {
		return domain.Required("support_email")
	}

	profile, err := s.directory.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrSubjectNotFound, email)
		}
		return fmt.Errorf("failed to look up support user: %w", err)
	}
	if !sameTenant(profile.TenantName, ac.Tenant) {
		s.logger.Warn("support user belongs to another tenant",
			slog.String("tenant", ac.Tenant),
			slog.String("support_id", profile.SubjectID),
		)
		return fmt.Errorf("%w: %s", domain.ErrSubjectNotFound, email)
	}

	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		name = email
	}

	patch.Support = &domain.SupportAssignment{
		SubjectID:    profile.SubjectID,
		Email:        email,
		Name:         name,
		AssignedAt:   patch.UpdatedAt,
		AssignedByID: ac.SubjectID,
	}
	patch.SetStatus(domain.StatusInProgress, patch.UpdatedAt)
	return nil
}

// AddSolution records a solution and returns the resulting status
func (s *ComplaintService) AddSolution(ctx context.Context, ac domain.AuthContext, id string, in SolutionInput) (status domain.Status, err error) {
	ctx, span := s.start(ctx, "AddSolution", ac)
	defer func() { finish(span, "solution", err) }()

	text, err := requireTrimmed("solution_text", in.Text)
	if err != nil {
		return "", err
	}

	status = domain.StatusInProgress
	if in.Resolve {
		status = domain.StatusResolved
	}
	if raw := strings.TrimSpace(in.Status); raw != "" {
		parsed, ok := domain.ParseStatus(raw)
		if !ok {
			return "", domain.Invalid("status", "invalid status: "+raw)
		}
		status = parsed
	}

	now := s.now()
	patch := domain.ComplaintPatch{
		Solution: &domain.Solution{
			Text:           text,
			AgentSubjectID: ac.SubjectID,
			AgentEmail:     domain.NormalizeEmail(ac.Email),
			AgentName:      s.agentName(ctx, ac),
			CreatedAt:      now,
		},
		UpdatedAt: now,
	}
	patch.SetStatus(status, now)

	if err := s.update(ctx, ac, id, patch); err != nil {
		return "", err
	}

	s.logger.Info("solution saved",
		slog.String("complaint_id", id),
		slog.String("tenant", ac.Tenant),
		slog.String("status", string(status)),
	)
	return status, nil
}

// Update applies every intent in the input as one atomic store update and
// returns the updated complaint
func (s *ComplaintService) Update(ctx context.Context, ac domain.AuthContext, id string, in UpdateInput) (c *domain.Complaint, err error) {
	ctx, span := s.start(ctx, "Update", ac)
	defer func() { finish(span, "update", err) }()

	if in.empty() {
		return nil, domain.Invalid("body", "at least one updatable field is required")
	}

	current, err := s.load(ctx, ac, id)
	if err != nil {
		return nil, err
	}

	staff := ac.Role.IsStaff()
	if !staff && (in.Status != nil || in.SupportEmail != nil) {
		// consumers must not even learn whether the complaint exists
		if err := s.access.Validate(ac, current, security.ActionRead); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: only helpdesk staff can change status or support", domain.ErrForbidden)
	}
	if in.editsDetails() {
		if err := s.access.Validate(ac, current, security.ActionEdit); err != nil {
			return nil, err
		}
	}
	if in.Note != nil {
		if err := s.access.Validate(ac, current, security.ActionNote); err != nil {
			return nil, err
		}
	}

	now := s.now()
	patch := domain.ComplaintPatch{UpdatedAt: now}

	if in.Title != nil {
		v, err := requireTrimmed("title", *in.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &v
	}
	if in.Description != nil {
		v, err := requireTrimmed("description", *in.Description)
		if err != nil {
			return nil, err
		}
		patch.Description = &v
	}
	if in.CategoryID != nil {
		v, err := requireTrimmed("category_id", *in.CategoryID)
		if err != nil {
			return nil, err
		}
		patch.CategoryID = &v
	}
	if in.Note != nil {
		text, err := requireTrimmed("note", *in.Note)
		if err != nil {
			return nil, err
		}
		patch.AppendNotes = []domain.Note{{
			Text:            text,
			AuthorSubjectID: ac.SubjectID,
			AuthorEmail:     domain.NormalizeEmail(ac.Email),
			CreatedAt:       now,
		}}
	}
	if in.SupportEmail != nil {
		if err := s.applySupport(ctx, ac, &patch, *in.SupportEmail); err != nil {
			return nil, err
		}
	}
	// an explicit status wins over the in-progress implied by reassignment
	if in.Status != nil {
		status, ok := domain.ParseStatus(strings.TrimSpace(*in.Status))
		if !ok {
			return nil, domain.Invalid("status", "invalid status: "+*in.Status)
		}
		patch.SetStatus(status, now)
	}

	if err := s.update(ctx, ac, id, patch); err != nil {
		return nil, err
	}

	patch.Apply(current)
	return current, nil
}

// Delete removes a complaint. Only admins may delete.
func (s *ComplaintService) Delete(ctx context.Context, ac domain.AuthContext, id string) (err error) {
	ctx, span := s.start(ctx, "Delete", ac)
	defer func() { finish(span, "delete", err) }()

	if ac.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: only admins can delete complaints", domain.ErrForbidden)
	}
	stores, err := s.storesFor(ac)
	if err != nil {
		return err
	}
	if err := stores.Complaints.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("complaint deleted",
		slog.String("complaint_id", id),
		slog.String("tenant", ac.Tenant),
		slog.String("subject_id", ac.SubjectID),
	)
	return nil
}

// ListCategories returns the tenant's categories
func (s *ComplaintService) ListCategories(ctx context.Context, ac domain.AuthContext) (out []*domain.Category, err error) {
	ctx, span := s.start(ctx, "ListCategories", ac)
	defer func() { finish(span, "list_categories", err) }()

	stores, err := s.storesFor(ac)
	if err != nil {
		return nil, err
	}
	return stores.Categories.List(ctx)
}

func (s *ComplaintService) update(ctx context.Context, ac domain.AuthContext, id string, patch domain.ComplaintPatch) error {
	stores, err := s.storesFor(ac)
	if err != nil {
		return err
	}
	if err := stores.Complaints.Update(ctx, id, patch); err != nil {
		return err
	}
	if patch.Status != nil {
		metrics.ObserveStatusTransition(string(*patch.Status))
	}
	return nil
}

// lookupSubjectID is best effort: any failure means "no link"
func (s *ComplaintService) lookupSubjectID(ctx context.Context, tenantKey, email string) (string, bool) {
	profile, err := s.directory.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			s.logger.Warn("consumer lookup failed, continuing without link",
				slog.String("tenant", tenantKey),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	if !sameTenant(profile.TenantName, tenantKey) {
		return "", false
	}
	return profile.SubjectID, profile.SubjectID != ""
}

// agentName is best effort: display name, then email, then a fixed label
func (s *ComplaintService) agentName(ctx context.Context, ac domain.AuthContext) string {
	key := ac.Tenant + ":" + ac.SubjectID
	if name, ok := s.names.Get(key); ok {
		return name
	}

	if name, ok := s.lookupDisplayName(ctx, ac.SubjectID); ok {
		s.names.Set(key, name)
		return name
	}
	if email := domain.NormalizeEmail(ac.Email); email != "" {
		return email
	}
	return fallbackAgentName
}

func (s *ComplaintService) lookupDisplayName(ctx context.Context, subjectID string) (string, bool) {
	profile, err := s.directory.GetBySubject(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			s.logger.Warn("display name lookup failed",
				slog.String("subject_id", subjectID),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	name := strings.TrimSpace(profile.DisplayName)
	return name, name != ""
}

func requireTrimmed(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", domain.Required(field)
	}
	return v, nil
}

// sameTenant compares a raw directory tenant name with a canonical key
func sameTenant(raw, tenantKey string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), tenantKey)
}
