package repository

import (
	"encoding/json"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
)

// complaintDoc is the stored document shape. Timestamps decode through
// domain.Timestamp so records written by older clients still load.
type complaintDoc struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	CategoryID        string            `json:"category_id"`
	Description       string            `json:"description"`
	Attachment        string            `json:"attachment,omitempty"`
	ConsumerEmail     string            `json:"consumer_email"`
	ConsumerSubjectID string            `json:"user_id,omitempty"`
	CreatedBy         string            `json:"created_by"`
	Source            string            `json:"source"`
	LoggedBy          string            `json:"logged_by,omitempty"`
	Status            string            `json:"status"`
	Support           *supportDoc       `json:"support,omitempty"`
	Solution          *solutionDoc      `json:"solution,omitempty"`
	Notes             []noteDoc         `json:"notes,omitempty"`
	CreatedAt         domain.Timestamp  `json:"createdAt"`
	UpdatedAt         domain.Timestamp  `json:"updatedAt"`
	ResolvedAt        *domain.Timestamp `json:"resolvedAt,omitempty"`
}

type supportDoc struct {
	SubjectID    string           `json:"uid"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	AssignedAt   domain.Timestamp `json:"assignedAt"`
	AssignedByID string           `json:"assignedBy_uid"`
}

type solutionDoc struct {
	Text           string           `json:"text"`
	AgentSubjectID string           `json:"agent_uid"`
	AgentEmail     string           `json:"agent_email"`
	AgentName      string           `json:"agent_name"`
	CreatedAt      domain.Timestamp `json:"createdAt"`
}

type noteDoc struct {
	Text            string           `json:"text"`
	AuthorSubjectID string           `json:"author_uid"`
	AuthorEmail     string           `json:"author_email"`
	CreatedAt       domain.Timestamp `json:"createdAt"`
}

func encodeComplaint(c *domain.Complaint) ([]byte, error) {
	doc := complaintDoc{
		ID:                c.ID,
		Title:             c.Title,
		CategoryID:        c.CategoryID,
		Description:       c.Description,
		Attachment:        c.Attachment,
		ConsumerEmail:     c.ConsumerEmail,
		ConsumerSubjectID: c.ConsumerSubjectID,
		CreatedBy:         c.CreatedBy,
		Source:            string(c.Source),
		LoggedBy:          c.LoggedBy,
		Status:            string(c.Status),
		CreatedAt:         domain.Timestamp{Time: c.CreatedAt},
		UpdatedAt:         domain.Timestamp{Time: c.UpdatedAt},
	}
	if c.Support != nil {
		doc.Support = &supportDoc{
			SubjectID:    c.Support.SubjectID,
			Email:        c.Support.Email,
			Name:         c.Support.Name,
			AssignedAt:   domain.Timestamp{Time: c.Support.AssignedAt},
			AssignedByID: c.Support.AssignedByID,
		}
	}
	if c.Solution != nil {
		doc.Solution = &solutionDoc{
			Text:           c.Solution.Text,
			AgentSubjectID: c.Solution.AgentSubjectID,
			AgentEmail:     c.Solution.AgentEmail,
			AgentName:      c.Solution.AgentName,
			CreatedAt:      domain.Timestamp{Time: c.Solution.CreatedAt},
		}
	}
	for _, n := range c.Notes {
		doc.Notes = append(doc.Notes, noteDoc{
			Text:            n.Text,
			AuthorSubjectID: n.AuthorSubjectID,
			AuthorEmail:     n.AuthorEmail,
			CreatedAt:       domain.Timestamp{Time: n.CreatedAt},
		})
	}
	if c.ResolvedAt != nil {
		doc.ResolvedAt = &domain.Timestamp{Time: *c.ResolvedAt}
	}
	return json.Marshal(doc)
}

// decodeComplaint never fails on timestamps; id falls back to the key's id
func decodeComplaint(id string, data []byte) (*domain.Complaint, error) {
	var doc complaintDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = id
	}

	c := &domain.Complaint{
		ID:                doc.ID,
		Title:             doc.Title,
		CategoryID:        doc.CategoryID,
		Description:       doc.Description,
		Attachment:        doc.Attachment,
		ConsumerEmail:     doc.ConsumerEmail,
		ConsumerSubjectID: doc.ConsumerSubjectID,
		CreatedBy:         doc.CreatedBy,
		Source:            domain.Source(doc.Source),
		LoggedBy:          doc.LoggedBy,
		Status:            domain.Status(doc.Status),
		CreatedAt:         doc.CreatedAt.Time,
		UpdatedAt:         doc.UpdatedAt.Time,
	}
	if doc.Support != nil {
		c.Support = &domain.SupportAssignment{
			SubjectID:    doc.Support.SubjectID,
			Email:        doc.Support.Email,
			Name:         doc.Support.Name,
			AssignedAt:   doc.Support.AssignedAt.Time,
			AssignedByID: doc.Support.AssignedByID,
		}
	}
	if doc.Solution != nil {
		c.Solution = &domain.Solution{
			Text:           doc.Solution.Text,
			AgentSubjectID: doc.Solution.AgentSubjectID,
			AgentEmail:     doc.Solution.AgentEmail,
			AgentName:      doc.Solution.AgentName,
			CreatedAt:      doc.Solution.CreatedAt.Time,
		}
	}
	for _, n := range doc.Notes {
		c.Notes = append(c.Notes, domain.Note{
			Text:            n.Text,
			AuthorSubjectID: n.AuthorSubjectID,
			AuthorEmail:     n.AuthorEmail,
			CreatedAt:       n.CreatedAt.Time,
		})
	}
	if doc.ResolvedAt != nil && !doc.ResolvedAt.IsZero() {
		t := doc.ResolvedAt.Time
		c.ResolvedAt = &t
	}
	return c, nil
}
