package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

var _ repository.TripRepository = (*DB)(nil)

const tripColumns = `id, name, destination, start_date, end_date, invite_code, album_url,
	created_by, created_at, updated_at`

// CreateTrip inserts a trip and its creator's admin membership.
//
// TRANSACTIONS:
// Both rows must exist or neither: a trip without its admin member would be
// invisible on the creator's "joined" list and uneditable by anyone.
// BeginTx → two ExecContext calls on the tx → Commit. If anything fails,
// the deferred Rollback undoes the partial work (Rollback after a successful
// Commit is a harmless no-op).
//
// A duplicate invite code surfaces as apperror.ErrConflict so the service
// can generate a new code and retry.
func (db *DB) CreateTrip(ctx context.Context, trip *model.Trip) error {
	now := time.Now()
	trip.ID = xid.New().String()
	trip.CreatedAt = now
	trip.UpdatedAt = now

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning trip transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trips (`+tripColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trip.ID, trip.Name, trip.Destination, trip.StartDate, trip.EndDate,
		trip.InviteCode, trip.AlbumURL, trip.CreatedBy, trip.CreatedAt, trip.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("invite code", trip.InviteCode)
		}
		return fmt.Errorf("sqlite: creating trip: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trip_members (id, trip_id, user_id, role, joined_at) VALUES (?, ?, ?, ?, ?)`,
		xid.New().String(), trip.ID, trip.CreatedBy, model.RoleAdmin, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding creator to trip %s: %w", trip.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing trip %s: %w", trip.ID, err)
	}
	return nil
}

// GetTrip retrieves a single trip by its ID.
func (db *DB) GetTrip(ctx context.Context, id string) (*model.Trip, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id)
	trip, err := scanTrip(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("trip", id)
		}
		return nil, fmt.Errorf("sqlite: getting trip %s: %w", id, err)
	}
	return trip, nil
}

// GetTripByInviteCode looks a trip up by its invite code.
func (db *DB) GetTripByInviteCode(ctx context.Context, code string) (*model.Trip, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE invite_code = ?`, code)
	trip, err := scanTrip(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("trip with invite code", code)
		}
		return nil, fmt.Errorf("sqlite: getting trip by invite code: %w", err)
	}
	return trip, nil
}

// InviteCodeExists reports whether any trip already uses code.
func (db *DB) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trips WHERE invite_code = ?`, code,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking invite code: %w", err)
	}
	return n > 0, nil
}

// ListTripsCreatedBy returns the trips a user created, newest start date first.
func (db *DB) ListTripsCreatedBy(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Trip, error) {
	limit, offset := clampListOptions(opts)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+tripColumns+` FROM trips
		 WHERE created_by = ?
		 ORDER BY start_date DESC, id
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing trips created by %s: %w", userID, err)
	}
	return collectTrips(rows)
}

// ListTripsJoinedBy returns trips where the user has a membership row.
// This includes trips the user created (the creator is an admin member).
func (db *DB) ListTripsJoinedBy(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Trip, error) {
	limit, offset := clampListOptions(opts)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.id, t.name, t.destination, t.start_date, t.end_date, t.invite_code, t.album_url,
		        t.created_by, t.created_at, t.updated_at
		 FROM trips t
		 JOIN trip_members m ON m.trip_id = t.id
		 WHERE m.user_id = ?
		 ORDER BY t.start_date DESC, t.id
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing trips joined by %s: %w", userID, err)
	}
	return collectTrips(rows)
}

// UpdateTrip saves the creator-editable settings.
// invite_code and created_by are immutable and deliberately absent.
func (db *DB) UpdateTrip(ctx context.Context, trip *model.Trip) error {
	trip.UpdatedAt = time.Now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE trips
		 SET name = ?, destination = ?, start_date = ?, end_date = ?, album_url = ?, updated_at = ?
		 WHERE id = ?`,
		trip.Name, trip.Destination, trip.StartDate, trip.EndDate, trip.AlbumURL, trip.UpdatedAt,
		trip.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating trip %s: %w", trip.ID, err)
	}
	return expectOneRow(result, "trip", trip.ID)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, so one scan
// function serves single-row and multi-row queries.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*model.Trip, error) {
	var t model.Trip
	err := row.Scan(
		&t.ID, &t.Name, &t.Destination, &t.StartDate, &t.EndDate,
		&t.InviteCode, &t.AlbumURL, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTrips(rows *sql.Rows) ([]model.Trip, error) {
	// CRITICAL: always close rows when done!
	defer rows.Close()

	trips := []model.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning trip row: %w", err)
		}
		trips = append(trips, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating trips: %w", err)
	}
	return trips, nil
}

// clampListOptions applies the default and maximum page sizes.
func clampListOptions(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
