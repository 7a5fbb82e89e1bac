package rsvps

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lbsgbg/club-backend/internal/auth"
	"github.com/lbsgbg/club-backend/internal/clock"
	"github.com/lbsgbg/club-backend/internal/domain"
	"github.com/lbsgbg/club-backend/internal/models"
	"github.com/lbsgbg/club-backend/internal/ratelimit"
)

type fakeStore struct {
	rsvps     []models.RSVP
	insertErr error
	calls     int
}

func (f *fakeStore) Insert(_ context.Context, rsvp *models.RSVP) error {
	f.calls++
	if f.insertErr != nil {
		return f.insertErr
	}
	rsvp.CreatedAt = time.Now()
	f.rsvps = append(f.rsvps, *rsvp)
	return nil
}

func (f *fakeStore) CountMatching(_ context.Context, name, class string, meetingID uuid.UUID) (int, error) {
	f.calls++
	n := 0
	for _, r := range f.rsvps {
		if r.Name == name && r.Class == class && r.MeetingID == meetingID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]models.RSVP, error) {
	f.calls++
	var list []models.RSVP
	for _, r := range f.rsvps {
		if r.MeetingID == meetingID {
			list = append(list, r)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

type fakeMeetings struct {
	byID  map[uuid.UUID]*models.Meeting
	calls int
}

func (f *fakeMeetings) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	f.calls++
	return f.byID[id], nil
}

type stubLimiter struct {
	mu         sync.Mutex
	allow      bool
	checkErr   error
	consumeErr error
	checked    []string
	consumed   []string
}

func (s *stubLimiter) CheckOnly(_ context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = append(s.checked, identity)
	return s.allow, s.checkErr
}

// ConsumeOnSuccess is called from concurrent goroutines.
func (s *stubLimiter) ConsumeOnSuccess(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumed = append(s.consumed, identity)
	return s.consumeErr
}

func (s *stubLimiter) consumedIdentities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.consumed...)
	sort.Strings(out)
	return out
}

func openMeeting() *models.Meeting {
	return &models.Meeting{
		ID:       uuid.New(),
		StartsAt: time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC),
		Location: "Room 1",
	}
}

func newTestService(meeting *models.Meeting) (*Service, *fakeStore, *fakeMeetings, *stubLimiter) {
	store := &fakeStore{}
	meetingStore := &fakeMeetings{byID: map[uuid.UUID]*models.Meeting{}}
	if meeting != nil {
		meetingStore.byID[meeting.ID] = meeting
	}
	limiter := &stubLimiter{allow: true}
	return NewService(store, meetingStore, limiter, nil), store, meetingStore, limiter
}

func submitInput(meetingID uuid.UUID) SubmitInput {
	return SubmitInput{Name: "Anna", Class: "SUAW25B", MeetingID: meetingID.String()}
}

func TestSubmitHappyPath(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	svc, store, _, limiter := newTestService(meeting)

	rsvp, err := svc.Submit(context.Background(), submitInput(meeting.ID), Requester{UserID: "user-1", IP: "10.0.0.7"})
	require.NoError(t, err)
	require.NotNil(t, rsvp)
	require.NotEqual(t, uuid.Nil, rsvp.ID)
	require.Equal(t, "Anna", rsvp.Name)
	require.Equal(t, meeting.ID, rsvp.MeetingID)

	require.Len(t, store.rsvps, 1, "exactly one row inserted")

	require.Equal(t, []string{"10.0.0.7", "user-1"}, limiter.consumedIdentities(), "both identities consumed exactly once")
}

func TestSubmitAnonymousIdentities(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	svc, _, _, limiter := newTestService(meeting)

	_, err := svc.Submit(context.Background(), submitInput(meeting.ID), Requester{})
	require.NoError(t, err)
	require.Equal(t, []string{"anon", "anon"}, limiter.checked)
	require.Equal(t, []string{"anon", "anon"}, limiter.consumedIdentities())
}

func TestSubmitTrimsNameAndClass(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	svc, store, _, _ := newTestService(meeting)

	rsvp, err := svc.Submit(context.Background(), SubmitInput{
		Name:      "  Anna ",
		Class:     " SUAW25B  ",
		MeetingID: meeting.ID.String(),
	}, Requester{})
	require.NoError(t, err)
	require.Equal(t, "Anna", rsvp.Name)
	require.Equal(t, "SUAW25B", rsvp.Class)
	require.Equal(t, "Anna", store.rsvps[0].Name)
}

func TestSubmitMultibyteName(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	svc, store, _, _ := newTestService(meeting)

	// 100 characters but 200 bytes; the bound counts characters.
	name := strings.Repeat("é", 100)
	rsvp, err := svc.Submit(context.Background(), SubmitInput{
		Name:      name,
		Class:     "SUAW25B",
		MeetingID: meeting.ID.String(),
	}, Requester{})
	require.NoError(t, err)
	require.Equal(t, name, rsvp.Name)
	require.Len(t, store.rsvps, 1)
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()

	cases := []struct {
		name string
		in   SubmitInput
	}{
		{"empty name", SubmitInput{Name: "   ", Class: "SUAW25B", MeetingID: meeting.ID.String()}},
		{"name too long", SubmitInput{Name: longString(101), Class: "SUAW25B", MeetingID: meeting.ID.String()}},
		{"name too long multibyte", SubmitInput{Name: strings.Repeat("é", 101), Class: "SUAW25B", MeetingID: meeting.ID.String()}},
		{"empty class", SubmitInput{Name: "Anna", Class: "", MeetingID: meeting.ID.String()}},
		{"class too long", SubmitInput{Name: "Anna", Class: longString(51), MeetingID: meeting.ID.String()}},
		{"malformed meeting id", SubmitInput{Name: "Anna", Class: "SUAW25B", MeetingID: "not-a-uuid"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, meetingStore, limiter := newTestService(meeting)
			_, err := svc.Submit(context.Background(), tc.in, Requester{})
			require.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
			require.Zero(t, store.calls, "store must not be touched")
			require.Zero(t, meetingStore.calls)
			require.Empty(t, limiter.checked, "rate limiter must not be consulted")
		})
	}
}

func TestSubmitRateLimited(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	svc, store, meetingStore, limiter := newTestService(meeting)
	limiter.allow = false

	_, err := svc.Submit(context.Background(), submitInput(meeting.ID), Requester{UserID: "user-1"})
	require.ErrorIs(t, err, domain.ErrRateLimited)
	require.Zero(t, store.calls, "relational store untouched when rate limited")
	require.Zero(t, meetingStore.calls)
	require.Empty(t, limiter.consumed)
}

func TestSubmitCounterStoreDownFailsClosed(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	svc, store, _, limiter := newTestService(meeting)
	limiter.checkErr = errors.New("connection refused")

	_, err := svc.Submit(context.Background(), submitInput(meeting.ID), Requester{})
	require.ErrorIs(t, err, domain.ErrDependency)
	require.Zero(t, store.calls)
	require.Empty(t, limiter.consumed)
}

func TestSubmitMeetingNotFound(t *testing.T) {
	t.Parallel()

	svc, store, _, limiter := newTestService(nil)

	_, err := svc.Submit(context.Background(), submitInput(uuid.New()), Requester{})
	require.ErrorIs(t, err, domain.ErrMeetingNotFound)
	require.Zero(t, store.calls)
	require.Empty(t, limiter.consumed)
}

func TestSubmitCanceledMeeting(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	meeting.Canceled = true
	svc, store, _, limiter := newTestService(meeting)

	_, err := svc.Submit(context.Background(), submitInput(meeting.ID), Requester{})
	require.ErrorIs(t, err, domain.ErrMeetingCanceled)
	require.Zero(t, store.calls, "no row inserted for a canceled meeting")
	require.Empty(t, limiter.consumed)
}

func TestSubmitDuplicateGuardThreshold(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()

	seed := func(store *fakeStore, n int) {
		for i := 0; i < n; i++ {
			store.rsvps = append(store.rsvps, models.RSVP{
				ID: uuid.New(), Name: "Anna", Class: "SUAW25B", MeetingID: meeting.ID,
			})
		}
	}

	t.Run("tolerates up to ten existing duplicates", func(t *testing.T) {
		svc, store, _, _ := newTestService(meeting)
		seed(store, 10)
		_, err := svc.Submit(context.Background(), submitInput(meeting.ID), Requester{})
		require.NoError(t, err)
		require.Len(t, store.rsvps, 11)
	})

	t.Run("rejects beyond the threshold", func(t *testing.T) {
		svc, store, _, limiter := newTestService(meeting)
		seed(store, 11)
		_, err := svc.Submit(context.Background(), submitInput(meeting.ID), Requester{})
		require.ErrorIs(t, err, domain.ErrDuplicateSuspected)
		require.Len(t, store.rsvps, 11, "no row inserted")
		require.Empty(t, limiter.consumed)
	})
}

func TestSubmitUniqueViolationIsConflict(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	svc, store, _, limiter := newTestService(meeting)
	store.insertErr = domain.ErrDuplicateRSVP

	_, err := svc.Submit(context.Background(), submitInput(meeting.ID), Requester{})
	require.ErrorIs(t, err, domain.ErrDuplicateRSVP)
	require.Empty(t, limiter.consumed, "failed insert consumes nothing")
}

func TestSubmitConsumeFailureDoesNotUndoInsert(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	svc, store, _, limiter := newTestService(meeting)
	limiter.consumeErr = errors.New("connection reset")

	rsvp, err := svc.Submit(context.Background(), submitInput(meeting.ID), Requester{UserID: "user-1"})
	require.NoError(t, err, "the insert is the authoritative success")
	require.NotNil(t, rsvp)
	require.Len(t, store.rsvps, 1)
}

func TestSubmitSixInARow(t *testing.T) {
	t.Parallel()

	// End to end against the real limiter with in-memory counters:
	// five submissions pass, the sixth is rate limited with no row.
	meeting := openMeeting()
	store := &fakeStore{}
	meetingStore := &fakeMeetings{byID: map[uuid.UUID]*models.Meeting{meeting.ID: meeting}}
	clk := clock.NewFixed(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	counters := newMemCounters()
	svc := NewService(store, meetingStore, ratelimit.New(counters, clk), nil)

	requester := Requester{UserID: "user-1", IP: "10.0.0.7"}
	for i := 0; i < 5; i++ {
		in := SubmitInput{Name: "Anna", Class: "SUAW25B", MeetingID: meeting.ID.String()}
		_, err := svc.Submit(context.Background(), in, requester)
		require.NoError(t, err, "submission %d", i+1)
	}
	require.Len(t, store.rsvps, 5)

	_, err := svc.Submit(context.Background(), submitInput(meeting.ID), requester)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	require.Len(t, store.rsvps, 5, "no sixth row")

	// A fresh window admits again.
	clk.Advance(ratelimit.DefaultWindow)
	_, err = svc.Submit(context.Background(), submitInput(meeting.ID), requester)
	require.NoError(t, err)
}

func TestListByMeeting(t *testing.T) {
	t.Parallel()

	meeting := openMeeting()
	admin := &auth.Session{UserID: uuid.New(), Role: "admin"}
	user := &auth.Session{UserID: uuid.New(), Role: "user"}

	t.Run("admin gets the roster", func(t *testing.T) {
		svc, store, _, _ := newTestService(meeting)
		store.rsvps = []models.RSVP{
			{ID: uuid.New(), Name: "Anna", Class: "SUAW25B", MeetingID: meeting.ID, CreatedAt: time.Now().Add(-time.Minute)},
			{ID: uuid.New(), Name: "Bob", Class: "SUAW25B", MeetingID: meeting.ID, CreatedAt: time.Now()},
		}
		list, err := svc.ListByMeeting(context.Background(), admin, meeting.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "Bob", list[0].Name, "newest first")
	})

	t.Run("non-admin rejected without store access", func(t *testing.T) {
		svc, store, _, _ := newTestService(meeting)
		_, err := svc.ListByMeeting(context.Background(), user, meeting.ID)
		require.ErrorIs(t, err, domain.ErrAdminRequired)
		_, err = svc.ListByMeeting(context.Background(), nil, meeting.ID)
		require.ErrorIs(t, err, domain.ErrAdminRequired)
		require.Zero(t, store.calls)
	})
}

// memCounters is a minimal in-memory ratelimit.Counters for end-to-end
// admission tests. Increments arrive from concurrent goroutines.
type memCounters struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemCounters() *memCounters {
	return &memCounters{counts: make(map[string]int64)}
}

func (m *memCounters) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func (m *memCounters) IncrExpire(_ context.Context, key string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return nil
}

func longString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
