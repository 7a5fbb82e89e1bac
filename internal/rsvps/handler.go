package rsvps

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lbsgbg/club-backend/internal/domain"
	"github.com/lbsgbg/club-backend/internal/middleware"
	"github.com/lbsgbg/club-backend/pkg/response"
)

// SubmitRequest is the body for POST /meetings/:id/rsvp.
type SubmitRequest struct {
	Name  string `json:"name" binding:"required"`
	Class string `json:"class" binding:"required"`
}

// Handler handles RSVP HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an RSVP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Submit handles POST /meetings/:id/rsvp. Public; an authenticated
// session only sharpens the rate-limit identity.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	requester := Requester{IP: c.ClientIP()}
	if session := middleware.SessionFrom(c); session != nil {
		requester.UserID = session.UserID.String()
	}

	rsvp, err := h.svc.Submit(c.Request.Context(), SubmitInput{
		Name:      req.Name,
		Class:     req.Class,
		MeetingID: c.Param("id"),
	}, requester)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, rsvp)
}

// ListByMeeting handles GET /meetings/:id/rsvps (admin).
func (h *Handler) ListByMeeting(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	list, err := h.svc.ListByMeeting(c.Request.Context(), middleware.SessionFrom(c), meetingID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, list)
}

func respondError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrAdminRequired):
		response.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrMeetingNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrMeetingCanceled),
		errors.Is(err, domain.ErrDuplicateSuspected),
		errors.Is(err, domain.ErrDuplicateRSVP):
		response.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		response.TooManyRequests(c, err.Error())
	case errors.Is(err, domain.ErrDependency):
		response.ServiceUnavailable(c, "temporarily unavailable, try again later")
	default:
		response.Internal(c, "internal error")
	}
}
