package rsvps

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lbsgbg/club-backend/internal/auth"
	"github.com/lbsgbg/club-backend/internal/domain"
	"github.com/lbsgbg/club-backend/internal/models"
)

// duplicateTolerance is how many identical (name, class, meeting)
// submissions the soft duplicate guard tolerates before rejecting.
const duplicateTolerance = 10

// anonIdentity is the rate-limit identity for requests without a user
// id or client IP.
const anonIdentity = "anon"

// Store is the RSVP persistence the admission controller runs on.
type Store interface {
	Insert(ctx context.Context, rsvp *models.RSVP) error
	CountMatching(ctx context.Context, name, class string, meetingID uuid.UUID) (int, error)
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.RSVP, error)
}

// MeetingStore is the read side of meeting persistence the controller
// needs. Nil result means no such meeting.
type MeetingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
}

// Limiter is the windowed rate limiter port. CheckOnly must be free of
// side effects; ConsumeOnSuccess charges one action.
type Limiter interface {
	CheckOnly(ctx context.Context, identity string) (bool, error)
	ConsumeOnSuccess(ctx context.Context, identity string) error
}

// Requester identifies who is submitting: the authenticated user id
// (empty for anonymous) and the client IP (empty when unavailable).
type Requester struct {
	UserID string
	IP     string
}

func (r Requester) identities() (userID, ipID string) {
	userID, ipID = r.UserID, r.IP
	if userID == "" {
		userID = anonIdentity
	}
	if ipID == "" {
		ipID = anonIdentity
	}
	return userID, ipID
}

// SubmitInput is the raw input for one RSVP submission.
type SubmitInput struct {
	Name      string
	Class     string
	MeetingID string
}

// Service is the RSVP admission controller. A submission passes, in
// order: shape validation, rate-limit check on both identities, meeting
// existence and state, the soft duplicate guard, and finally the
// insert. Counters are consumed only after a successful insert.
type Service struct {
	store    Store
	meetings MeetingStore
	limiter  Limiter
	logger   *zap.Logger
}

// NewService creates an admission controller.
func NewService(store Store, meetings MeetingStore, limiter Limiter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, meetings: meetings, limiter: limiter, logger: logger}
}

// Submit runs the admission sequence and inserts the RSVP. Each gate
// short-circuits: a failed gate performs no further side effects.
func (s *Service) Submit(ctx context.Context, in SubmitInput, req Requester) (*models.RSVP, error) {
	name := strings.TrimSpace(in.Name)
	class := strings.TrimSpace(in.Class)
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return nil, domain.Invalid("name", "must be 1-100 characters")
	}
	if n := utf8.RuneCountInString(class); n < 1 || n > 50 {
		return nil, domain.Invalid("class", "must be 1-50 characters")
	}
	meetingID, err := uuid.Parse(in.MeetingID)
	if err != nil {
		return nil, domain.Invalid("meeting_id", "must be a valid id")
	}

	userID, ipID := req.identities()

	// Check without consuming. A counter-store failure blocks the
	// submission: the limiter fails closed.
	okUser, err := s.limiter.CheckOnly(ctx, userID)
	if err != nil {
		return nil, domain.Dependency("rate limit check", err)
	}
	okIP, err := s.limiter.CheckOnly(ctx, ipID)
	if err != nil {
		return nil, domain.Dependency("rate limit check", err)
	}
	if !okUser || !okIP {
		return nil, domain.ErrRateLimited
	}

	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, domain.Dependency("meeting lookup", err)
	}
	if meeting == nil {
		return nil, domain.ErrMeetingNotFound
	}
	if meeting.Canceled {
		return nil, domain.ErrMeetingCanceled
	}

	existing, err := s.store.CountMatching(ctx, name, class, meetingID)
	if err != nil {
		return nil, domain.Dependency("duplicate check", err)
	}
	if existing > duplicateTolerance {
		return nil, domain.ErrDuplicateSuspected
	}

	rsvp := &models.RSVP{
		ID:        uuid.New(),
		Name:      name,
		Class:     class,
		MeetingID: meetingID,
	}
	if err := s.store.Insert(ctx, rsvp); err != nil {
		if errors.Is(err, domain.ErrDuplicateRSVP) {
			return nil, err
		}
		return nil, domain.Dependency("insert rsvp", err)
	}

	// The insert is the durable fact. Counter consumption after it is
	// best-effort accounting: failures are logged, never rolled back
	// into a caller-visible error.
	s.consume(ctx, userID, ipID)

	return rsvp, nil
}

func (s *Service) consume(ctx context.Context, identities ...string) {
	var wg sync.WaitGroup
	for _, id := range identities {
		wg.Add(1)
		go func(identity string) {
			defer wg.Done()
			if err := s.limiter.ConsumeOnSuccess(ctx, identity); err != nil {
				s.logger.Warn("rate limit consume failed",
					zap.String("identity", identity), zap.Error(err))
			}
		}(id)
	}
	wg.Wait()
}

// ListByMeeting returns the roster for a meeting, newest first. Admin only.
func (s *Service) ListByMeeting(ctx context.Context, session *auth.Session, meetingID uuid.UUID) ([]models.RSVP, error) {
	if !session.IsAdmin() {
		return nil, domain.ErrAdminRequired
	}
	list, err := s.store.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, domain.Dependency("list rsvps", err)
	}
	return list, nil
}
