package meetings

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lbsgbg/club-backend/internal/auth"
	"github.com/lbsgbg/club-backend/internal/clock"
	"github.com/lbsgbg/club-backend/internal/domain"
	"github.com/lbsgbg/club-backend/internal/models"
)

const listLimit = 50

// Store is the meeting persistence the service runs on.
type Store interface {
	Create(ctx context.Context, m *models.Meeting) error
	NextUpcoming(ctx context.Context, now time.Time) (*models.Meeting, error)
	List(ctx context.Context, limit int) ([]models.Meeting, error)
	Update(ctx context.Context, id uuid.UUID, f UpdateFields) (*models.Meeting, error)
}

// Service implements the meeting lifecycle: creation, partial updates,
// cancellation and next-meeting resolution. All mutating and listing
// operations require an admin session; Next is public.
type Service struct {
	store Store
	clock clock.Clock
}

// NewService creates a meeting service.
func NewService(store Store, clk clock.Clock) *Service {
	return &Service{store: store, clock: clk}
}

// Next returns the soonest non-canceled upcoming meeting, or nil when
// none is scheduled. No authentication required.
func (s *Service) Next(ctx context.Context) (*models.Meeting, error) {
	m, err := s.store.NextUpcoming(ctx, s.clock.Now())
	if err != nil {
		return nil, domain.Dependency("next meeting", err)
	}
	return m, nil
}

// List returns up to 50 meetings, newest start time first. Admin only.
func (s *Service) List(ctx context.Context, session *auth.Session) ([]models.Meeting, error) {
	if !session.IsAdmin() {
		return nil, domain.ErrAdminRequired
	}
	list, err := s.store.List(ctx, listLimit)
	if err != nil {
		return nil, domain.Dependency("list meetings", err)
	}
	return list, nil
}

// CreateInput holds the fields for a new meeting. ID is optional; a
// fresh one is generated when absent.
type CreateInput struct {
	ID                  *uuid.UUID
	StartsAt            time.Time
	Location            string
	WorkshopTitle       *string
	WorkshopDescription *string
	Canceled            bool
}

// Create validates and inserts a new meeting, returning its id. Admin
// only. Never mutates existing rows.
func (s *Service) Create(ctx context.Context, session *auth.Session, in CreateInput) (uuid.UUID, error) {
	if !session.IsAdmin() {
		return uuid.Nil, domain.ErrAdminRequired
	}
	if in.StartsAt.IsZero() {
		return uuid.Nil, domain.Invalid("starts_at", "required")
	}
	if err := validateLocation(in.Location); err != nil {
		return uuid.Nil, err
	}
	if err := validateWorkshop(in.WorkshopTitle, in.WorkshopDescription); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	if in.ID != nil {
		id = *in.ID
	}
	m := &models.Meeting{
		ID:                  id,
		StartsAt:            in.StartsAt,
		Location:            in.Location,
		WorkshopTitle:       in.WorkshopTitle,
		WorkshopDescription: in.WorkshopDescription,
		Canceled:            in.Canceled,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return uuid.Nil, domain.Dependency("create meeting", err)
	}
	return m.ID, nil
}

// Update applies the supplied fields to a meeting and returns the
// updated record. At least one field must be supplied; the store is
// not touched otherwise. Admin only.
func (s *Service) Update(ctx context.Context, session *auth.Session, id uuid.UUID, f UpdateFields) (*models.Meeting, error) {
	if !session.IsAdmin() {
		return nil, domain.ErrAdminRequired
	}
	if f.Empty() {
		return nil, domain.ErrNoUpdateFields
	}
	if f.Location != nil {
		if err := validateLocation(*f.Location); err != nil {
			return nil, err
		}
	}
	if err := validateWorkshop(f.WorkshopTitle, f.WorkshopDescription); err != nil {
		return nil, err
	}
	if f.StartsAt != nil && f.StartsAt.IsZero() {
		return nil, domain.Invalid("starts_at", "required")
	}

	m, err := s.store.Update(ctx, id, f)
	if err != nil {
		return nil, domain.Dependency("update meeting", err)
	}
	if m == nil {
		return nil, domain.ErrMeetingNotFound
	}
	return m, nil
}

// Cancel sets the canceled flag unconditionally and returns the updated
// record. Calling it twice leaves the meeting canceled. Admin only.
func (s *Service) Cancel(ctx context.Context, session *auth.Session, id uuid.UUID) (*models.Meeting, error) {
	if !session.IsAdmin() {
		return nil, domain.ErrAdminRequired
	}
	canceled := true
	m, err := s.store.Update(ctx, id, UpdateFields{Canceled: &canceled})
	if err != nil {
		return nil, domain.Dependency("cancel meeting", err)
	}
	if m == nil {
		return nil, domain.ErrMeetingNotFound
	}
	return m, nil
}

func validateLocation(location string) error {
	if n := utf8.RuneCountInString(location); n < 1 || n > 200 {
		return domain.Invalid("location", "must be 1-200 characters")
	}
	return nil
}

func validateWorkshop(title, description *string) error {
	if title != nil && utf8.RuneCountInString(*title) > 200 {
		return domain.Invalid("workshop_title", "must be at most 200 characters")
	}
	if description != nil && utf8.RuneCountInString(*description) > 2000 {
		return domain.Invalid("workshop_description", "must be at most 2000 characters")
	}
	return nil
}
