package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/complaintdesk/internal/domain"
	"github.com/aryan0dhankhar/complaintdesk/internal/security/middleware"
	"github.com/aryan0dhankhar/complaintdesk/internal/service"
)

// SubmitRequest is the body of POST /api/complaints. categoryId is accepted as
// an alias of category_id.
type SubmitRequest struct {
	Title         string `json:"title"`
	CategoryID    string `json:"category_id"`
	CategoryAlias string `json:"categoryId"`
	Description   string `json:"description"`
	Attachment    string `json:"attachment"`
}

func (r SubmitRequest) category() string {
	if r.CategoryID != "" {
		return r.CategoryID
	}
	return r.CategoryAlias
}

// AgentSubmitRequest is the body of POST /api/complaints/agent
type AgentSubmitRequest struct {
	SubmitRequest
	ConsumerEmail string `json:"consumer_email"`
	ConsumerAlias string `json:"consumerEmail"`
}

// AssignRequest is the body of PATCH /api/complaints/{id}/assign
type AssignRequest struct {
	SupportEmail string `json:"support_email"`
	SupportAlias string `json:"supportEmail"`
}

// SolutionRequest is the body of PATCH /api/complaints/{id}/solution
type SolutionRequest struct {
	SolutionText  string `json:"solution_text"`
	SolutionAlias string `json:"solutionText"`
	MarkResolved  bool   `json:"markResolved"`
	Resolve       bool   `json:"resolve"`
	Status        string `json:"status"`
}

// UpdateRequest is the body of PATCH /api/complaints/{id}. Absent fields are
// left alone; unknown fields are rejected.
type UpdateRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	CategoryID   *string `json:"category_id"`
	Status       *string `json:"status"`
	SupportEmail *string `json:"support_email"`
	Note         *string `json:"note"`

	CategoryAlias *string `json:"categoryId"`
	SupportAlias  *string `json:"supportEmail"`
}

// firstSet returns the first non-nil field, so snake_case wins over its alias
func firstSet(fields ...*string) *string {
	for _, f := range fields {
		if f != nil {
			return f
		}
	}
	return nil
}

// ComplaintHandler serves the complaint lifecycle endpoints
type ComplaintHandler struct {
	complaints *service.ComplaintService
	logger     *slog.Logger
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(complaints *service.ComplaintService, logger *slog.Logger) *ComplaintHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplaintHandler{complaints: complaints, logger: logger}
}

func (h *ComplaintHandler) authContext(w http.ResponseWriter, r *http.Request) (domain.AuthContext, bool) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		h.logger.Error("authorization context missing", slog.String("path", r.URL.Path))
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return ac, ok
}

// ListOwn handles GET /api/complaints
func (h *ComplaintHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	if ac.Email == "" {
		writeError(w, http.StatusBadRequest, "User email not found in token")
		return
	}

	complaints, err := h.complaints.ListOwn(r.Context(), ac)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, complaints)
}

// ListAll handles GET /api/complaints/all
func (h *ComplaintHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	complaints, err := h.complaints.ListAll(r.Context(), ac)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, complaints)
}

// Get handles GET /api/complaints/{id}
func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	c, err := h.complaints.Get(r.Context(), ac, r.PathValue("id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Create handles POST /api/complaints
func (h *ComplaintHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	id, err := h.complaints.Submit(r.Context(), ac, service.SubmitInput{
		Title:       req.Title,
		CategoryID:  req.category(),
		Description: req.Description,
		Attachment:  req.Attachment,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// CreateOnBehalf handles POST /api/complaints/agent
func (h *ComplaintHandler) CreateOnBehalf(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req AgentSubmitRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	email := req.ConsumerEmail
	if email == "" {
		email = req.ConsumerAlias
	}

	id, err := h.complaints.SubmitOnBehalf(r.Context(), ac, service.AgentSubmitInput{
		ConsumerEmail: email,
		Title:         req.Title,
		CategoryID:    req.category(),
		Description:   req.Description,
		Attachment:    req.Attachment,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// Update handles PATCH /api/complaints/{id}
func (h *ComplaintHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	c, err := h.complaints.Update(r.Context(), ac, r.PathValue("id"), service.UpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		CategoryID:   firstSet(req.CategoryID, req.CategoryAlias),
		Status:       req.Status,
		SupportEmail: firstSet(req.SupportEmail, req.SupportAlias),
		Note:         req.Note,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Assign handles PATCH /api/complaints/{id}/assign
func (h *ComplaintHandler) Assign(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req AssignRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	email := req.SupportEmail
	if email == "" {
		email = req.SupportAlias
	}

	id := r.PathValue("id")
	if err := h.complaints.AssignSupport(r.Context(), ac, id, email); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Support assigned", ComplaintID: id})
}

// Solution handles PATCH /api/complaints/{id}/solution
func (h *ComplaintHandler) Solution(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	var req SolutionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	text := req.SolutionText
	if text == "" {
		text = req.SolutionAlias
	}

	id := r.PathValue("id")
	status, err := h.complaints.AddSolution(r.Context(), ac, id, service.SolutionInput{
		Text:    text,
		Resolve: req.MarkResolved || req.Resolve,
		Status:  req.Status,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Solution saved", ComplaintID: id, Status: status})
}

// Delete handles DELETE /api/complaints/{id}
func (h *ComplaintHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := h.complaints.Delete(r.Context(), ac, id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Complaint deleted", ComplaintID: id})
}

// ListCategories handles GET /api/categories
func (h *ComplaintHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}

	categories, err := h.complaints.ListCategories(r.Context(), ac)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// Me handles GET /api/me and echoes the resolved authorization context
func (h *ComplaintHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.authContext(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ac)
}
