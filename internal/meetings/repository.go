package meetings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lbsgbg/club-backend/internal/models"
)

const meetingColumns = `id, starts_at, location, workshop_title, workshop_description, canceled, created_at, updated_at`

// Repository handles meeting persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meeting repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new meeting with the given id.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (id, starts_at, location, workshop_title, workshop_description, canceled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q, m.ID, m.StartsAt, m.Location, m.WorkshopTitle, m.WorkshopDescription, m.Canceled).
		Scan(&m.CreatedAt, &m.UpdatedAt)
}

// GetByID returns a meeting by ID, or nil when no row matches.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id)
	return scanMeeting(row)
}

// NextUpcoming returns the soonest non-canceled meeting starting at or
// after now, or nil when there is none.
func (r *Repository) NextUpcoming(ctx context.Context, now time.Time) (*models.Meeting, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+meetingColumns+` FROM meetings
		WHERE canceled = false AND starts_at >= $1
		ORDER BY starts_at ASC LIMIT 1`, now)
	return scanMeeting(row)
}

// List returns meetings ordered by start time descending, capped at limit.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Meeting, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+meetingColumns+` FROM meetings ORDER BY starts_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Meeting
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.StartsAt, &m.Location, &m.WorkshopTitle, &m.WorkshopDescription, &m.Canceled, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// UpdateFields carries the optional fields of a partial meeting update.
// Nil pointers leave the column untouched.
type UpdateFields struct {
	StartsAt            *time.Time
	Location            *string
	WorkshopTitle       *string
	WorkshopDescription *string
	Canceled            *bool
}

// Empty reports whether no field is supplied.
func (f UpdateFields) Empty() bool {
	return f.StartsAt == nil && f.Location == nil && f.WorkshopTitle == nil &&
		f.WorkshopDescription == nil && f.Canceled == nil
}

// Update applies the supplied fields to the meeting and returns the
// updated row, or nil when no row matches the id.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, f UpdateFields) (*models.Meeting, error) {
	set := "updated_at = NOW()"
	args := []interface{}{id}
	add := func(col string, v interface{}) {
		args = append(args, v)
		set += fmt.Sprintf(", %s = $%d", col, len(args))
	}
	if f.StartsAt != nil {
		add("starts_at", *f.StartsAt)
	}
	if f.Location != nil {
		add("location", *f.Location)
	}
	if f.WorkshopTitle != nil {
		add("workshop_title", *f.WorkshopTitle)
	}
	if f.WorkshopDescription != nil {
		add("workshop_description", *f.WorkshopDescription)
	}
	if f.Canceled != nil {
		add("canceled", *f.Canceled)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE meetings SET `+set+` WHERE id = $1 RETURNING `+meetingColumns, args...)
	return scanMeeting(row)
}

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	err := row.Scan(&m.ID, &m.StartsAt, &m.Location, &m.WorkshopTitle, &m.WorkshopDescription, &m.Canceled, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
