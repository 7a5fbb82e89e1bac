package meetings

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lbsgbg/club-backend/internal/domain"
	"github.com/lbsgbg/club-backend/internal/middleware"
	"github.com/lbsgbg/club-backend/pkg/response"
)

// CreateRequest is the body for POST /meetings.
type CreateRequest struct {
	ID                  *string `json:"id"`
	StartsAt            string  `json:"starts_at" binding:"required"`
	Location            string  `json:"location" binding:"required"`
	WorkshopTitle       *string `json:"workshop_title"`
	WorkshopDescription *string `json:"workshop_description"`
	Canceled            *bool   `json:"canceled"`
}

// UpdateRequest is the body for PATCH /meetings/:id.
type UpdateRequest struct {
	StartsAt            *string `json:"starts_at"`
	Location            *string `json:"location"`
	WorkshopTitle       *string `json:"workshop_title"`
	WorkshopDescription *string `json:"workshop_description"`
	Canceled            *bool   `json:"canceled"`
}

// Handler handles meeting HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a meeting handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Next handles GET /meetings/next (public). Data is null when no
// upcoming meeting is scheduled.
func (h *Handler) Next(c *gin.Context) {
	m, err := h.svc.Next(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, m)
}

// List handles GET /meetings (admin).
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /meetings (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		response.BadRequest(c, "invalid starts_at")
		return
	}
	in := CreateInput{
		StartsAt:            startsAt,
		Location:            req.Location,
		WorkshopTitle:       req.WorkshopTitle,
		WorkshopDescription: req.WorkshopDescription,
	}
	if req.ID != nil {
		id, err := uuid.Parse(*req.ID)
		if err != nil {
			response.BadRequest(c, "invalid id")
			return
		}
		in.ID = &id
	}
	if req.Canceled != nil {
		in.Canceled = *req.Canceled
	}

	id, err := h.svc.Create(c.Request.Context(), middleware.SessionFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// Update handles PATCH /meetings/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	f := UpdateFields{
		Location:            req.Location,
		WorkshopTitle:       req.WorkshopTitle,
		WorkshopDescription: req.WorkshopDescription,
		Canceled:            req.Canceled,
	}
	if req.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.StartsAt)
		if err != nil {
			response.BadRequest(c, "invalid starts_at")
			return
		}
		f.StartsAt = &t
	}

	m, err := h.svc.Update(c.Request.Context(), middleware.SessionFrom(c), id, f)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, m)
}

// Cancel handles POST /meetings/:id/cancel (admin).
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	m, err := h.svc.Cancel(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, m)
}

func respondError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err), errors.Is(err, domain.ErrNoUpdateFields):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrAdminRequired):
		response.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrMeetingNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrDependency):
		response.ServiceUnavailable(c, "temporarily unavailable, try again later")
	default:
		response.Internal(c, "internal error")
	}
}
