package domain

import (
	"context"
	"sort"
	"time"
)

// Status is a complaint's lifecycle state. No state is terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

// ParseStatus validates a raw status string
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusPending, StatusInProgress, StatusResolved:
		return s, true
	}
	return "", false
}

// Source records who filed the complaint
type Source string

const (
	SourceSelf  Source = "self"
	SourceAgent Source = "agent"
)

// SupportAssignment is the single active support engineer on a complaint
type SupportAssignment struct {
	SubjectID    string    `json:"uid"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	AssignedAt   time.Time `json:"assignedAt"`
	AssignedByID string    `json:"assignedBy_uid"`
}

// Solution is the recorded resolution text and the agent who wrote it
type Solution struct {
	Text           string    `json:"text"`
	AgentSubjectID string    `json:"agent_uid"`
	AgentEmail     string    `json:"agent_email"`
	AgentName      string    `json:"agent_name"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Note is a free-text annotation appended to a complaint
type Note struct {
	Text            string    `json:"text"`
	AuthorSubjectID string    `json:"author_uid"`
	AuthorEmail     string    `json:"author_email"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Complaint is the central entity, owned by exactly one tenant store
type Complaint struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	CategoryID        string             `json:"category_id"`
	Description       string             `json:"description"`
	Attachment        string             `json:"attachment,omitempty"`
	ConsumerEmail     string             `json:"consumer_email"`
	ConsumerSubjectID string             `json:"user_id,omitempty"`
	CreatedBy         string             `json:"created_by"`
	Source            Source             `json:"source"`
	LoggedBy          string             `json:"logged_by,omitempty"`
	Status            Status             `json:"status"`
	Support           *SupportAssignment `json:"support,omitempty"`
	Solution          *Solution          `json:"solution,omitempty"`
	Notes             []Note             `json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	ResolvedAt        *time.Time         `json:"resolvedAt,omitempty"`
}

// ComplaintPatch is a single atomic merge. Nil fields are left untouched.
type ComplaintPatch struct {
	Title       *string
	Description *string
	CategoryID  *string
	Status      *Status
	Support     *SupportAssignment
	Solution    *Solution
	AppendNotes []Note
	// ResolvedAt is written whenever Status is set: a time for resolved,
	// nil to clear it on any other status.
	ResolvedAt *time.Time
	UpdatedAt  time.Time
}

// SetStatus sets the status and keeps ResolvedAt consistent with it
func (p *ComplaintPatch) SetStatus(s Status, now time.Time) {
	p.Status = &s
	if s == StatusResolved {
		t := now
		p.ResolvedAt = &t
		return
	}
	p.ResolvedAt = nil
}

// Apply merges the patch into c. Stores that hold whole documents use it so
// every backend shares the same merge semantics.
func (p *ComplaintPatch) Apply(c *Complaint) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.CategoryID != nil {
		c.CategoryID = *p.CategoryID
	}
	if p.Status != nil {
		c.Status = *p.Status
		c.ResolvedAt = p.ResolvedAt
	}
	if p.Support != nil {
		s := *p.Support
		c.Support = &s
	}
	if p.Solution != nil {
		s := *p.Solution
		c.Solution = &s
	}
	if len(p.AppendNotes) > 0 {
		c.Notes = append(c.Notes, p.AppendNotes...)
	}
	c.UpdatedAt = p.UpdatedAt
}

// Category is a read-only complaint classification within a tenant
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

// ComplaintRepository is one tenant's complaint store
type ComplaintRepository interface {
	Create(ctx context.Context, c *Complaint) (string, error)
	GetByID(ctx context.Context, id string) (*Complaint, error)
	ListByConsumer(ctx context.Context, consumerEmail string) ([]*Complaint, error)
	List(ctx context.Context) ([]*Complaint, error)
	Update(ctx context.Context, id string, patch ComplaintPatch) error
	Delete(ctx context.Context, id string) error
}

// CategoryRepository is one tenant's category store
type CategoryRepository interface {
	List(ctx context.Context) ([]*Category, error)
}

// SortNewestFirst orders complaints by CreatedAt descending. Zero timestamps
// sort as epoch 0 so a malformed record never breaks the listing.
func SortNewestFirst(complaints []*Complaint) {
	sort.SliceStable(complaints, func(i, j int) bool {
		return epochMillis(complaints[i].CreatedAt) > epochMillis(complaints[j].CreatedAt)
	})
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
