package event

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/afterdark-app/afterdark/internal/geo"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

const eventColumns = `id, host_id, title, description, venue_name, lat, lng,
	coarse_geohash, category, starts_at, ends_at, flyer_key, ticket_url,
	has_guestlist, attendee_count, created_at, updated_at, deleted_at`

// Create stores a new event, filling ID and timestamps when unset.
func (r *PostgresRepository) Create(event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	var lat, lng *float64
	if event.Location != nil {
		lat, lng = &event.Location.Lat, &event.Location.Lng
	}

	_, err := r.db.Exec(`
		INSERT INTO events (id, host_id, title, description, venue_name, lat, lng,
			coarse_geohash, category, starts_at, ends_at, flyer_key, ticket_url,
			has_guestlist, attendee_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		event.ID, event.HostID, event.Title, event.Description, event.VenueName,
		lat, lng, event.CoarseGeohash, event.Category, event.StartsAt, event.EndsAt,
		event.FlyerKey, event.TicketURL, event.HasGuestlist, event.AttendeeCount,
		event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Update modifies an existing event.
func (r *PostgresRepository) Update(event *Event) error {
	var lat, lng *float64
	if event.Location != nil {
		lat, lng = &event.Location.Lat, &event.Location.Lng
	}
	event.UpdatedAt = time.Now().UTC()

	res, err := r.db.Exec(`
		UPDATE events
		SET title = $2, description = $3, venue_name = $4, lat = $5, lng = $6,
			coarse_geohash = $7, category = $8, starts_at = $9, ends_at = $10,
			flyer_key = $11, ticket_url = $12, has_guestlist = $13, updated_at = $14
		WHERE id = $1 AND deleted_at IS NULL`,
		event.ID, event.Title, event.Description, event.VenueName, lat, lng,
		event.CoarseGeohash, event.Category, event.StartsAt, event.EndsAt,
		event.FlyerKey, event.TicketURL, event.HasGuestlist, event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return r.requireRow(res, event.ID)
}

// GetByID retrieves an event by its ID.
func (r *PostgresRepository) GetByID(id string) (*Event, error) {
	row := r.db.QueryRow(`SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	if e.Deleted() {
		return nil, ErrEventDeleted
	}
	return e, nil
}

// ListUpcoming returns non-deleted events starting at or after now.
func (r *PostgresRepository) ListUpcoming(now time.Time, limit int) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE deleted_at IS NULL AND starts_at >= $1
		ORDER BY starts_at ASC`
	args := []interface{}{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	defer rows.Close()

	var results []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// Delete soft-deletes an event.
func (r *PostgresRepository) Delete(id string) error {
	res, err := r.db.Exec(`
		UPDATE events SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return r.requireRow(res, id)
}

// AddAttendee adds a user to the event's attendee set and bumps the
// denormalized count in one transaction.
func (r *PostgresRepository) AddAttendee(eventID, userID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO event_attendees (event_id, user_id) VALUES ($1, $2)`,
		eventID, userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return ErrAlreadyAttending
			case "foreign_key_violation":
				return ErrEventNotFound
			}
		}
		return fmt.Errorf("insert attendee: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE events SET attendee_count = attendee_count + 1 WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("bump attendee count: %w", err)
	}
	return tx.Commit()
}

// RemoveAttendee removes a user from the event's attendee set.
func (r *PostgresRepository) RemoveAttendee(eventID, userID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM event_attendees WHERE event_id = $1 AND user_id = $2`,
		eventID, userID)
	if err != nil {
		return fmt.Errorf("delete attendee: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotAttending
	}

	if _, err := tx.Exec(`
		UPDATE events SET attendee_count = greatest(attendee_count - 1, 0) WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("drop attendee count: %w", err)
	}
	return tx.Commit()
}

// AttendeeIDs returns the set of user IDs attending the event.
func (r *PostgresRepository) AttendeeIDs(eventID string) (map[string]struct{}, error) {
	rows, err := r.db.Query(`SELECT user_id FROM event_attendees WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query attendees: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// requireRow maps a zero-row update to the right sentinel error.
func (r *PostgresRepository) requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish missing from soft-deleted for callers.
		var deletedAt sql.NullTime
		err := r.db.QueryRow(`SELECT deleted_at FROM events WHERE id = $1`, id).Scan(&deletedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		if err != nil {
			return fmt.Errorf("check event: %w", err)
		}
		if deletedAt.Valid {
			return ErrEventDeleted
		}
		return ErrEventNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanEvent.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (*Event, error) {
	var (
		e         Event
		lat, lng  sql.NullFloat64
		category  sql.NullString
		endsAt    sql.NullTime
		deletedAt sql.NullTime
	)
	err := s.Scan(&e.ID, &e.HostID, &e.Title, &e.Description, &e.VenueName,
		&lat, &lng, &e.CoarseGeohash, &category, &e.StartsAt, &endsAt,
		&e.FlyerKey, &e.TicketURL, &e.HasGuestlist, &e.AttendeeCount,
		&e.CreatedAt, &e.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		e.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if category.Valid {
		e.Category = &category.String
	}
	if endsAt.Valid {
		e.EndsAt = &endsAt.Time
	}
	if deletedAt.Valid {
		e.DeletedAt = &deletedAt.Time
	}
	return &e, nil
}
