package rsvps

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lbsgbg/club-backend/internal/domain"
	"github.com/lbsgbg/club-backend/internal/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// Repository handles RSVP persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an RSVP repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new RSVP. A unique-index violation on
// (name, class, meeting_id) comes back as domain.ErrDuplicateRSVP.
func (r *Repository) Insert(ctx context.Context, rsvp *models.RSVP) error {
	const q = `INSERT INTO rsvps (id, name, class, meeting_id)
		VALUES ($1, $2, $3, $4)
		RETURNING was_present, created_at`
	err := r.pool.QueryRow(ctx, q, rsvp.ID, rsvp.Name, rsvp.Class, rsvp.MeetingID).
		Scan(&rsvp.WasPresent, &rsvp.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrDuplicateRSVP
	}
	return err
}

// CountMatching returns how many RSVPs already exist for the exact
// (name, class, meeting) triple.
func (r *Repository) CountMatching(ctx context.Context, name, class string, meetingID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM rsvps WHERE name = $1 AND class = $2 AND meeting_id = $3`
	var n int
	err := r.pool.QueryRow(ctx, q, name, class, meetingID).Scan(&n)
	return n, err
}

// ListByMeeting returns all RSVPs for a meeting, newest first.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.RSVP, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, class, meeting_id, was_present, created_at
		FROM rsvps WHERE meeting_id = $1 ORDER BY created_at DESC`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RSVP
	for rows.Next() {
		var rsvp models.RSVP
		if err := rows.Scan(&rsvp.ID, &rsvp.Name, &rsvp.Class, &rsvp.MeetingID, &rsvp.WasPresent, &rsvp.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rsvp)
	}
	return list, rows.Err()
}
