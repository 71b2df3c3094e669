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

var _ repository.MemberRepository = (*DB)(nil)

// memberSelect joins profile fields onto each membership row.
// LEFT JOIN so a membership survives a missing profile (it never should,
// but a blank name is better than a vanished member).
const memberSelect = `
	SELECT m.id, m.trip_id, m.user_id, m.role,
	       m.arrival_date, m.arrival_time, m.departure_date, m.departure_time,
	       m.travel_method, m.travel_details, m.joined_at,
	       COALESCE(p.name, ''), COALESCE(p.avatar_url, '')
	FROM trip_members m
	LEFT JOIN profiles p ON p.id = m.user_id`

// AddMember inserts a membership row.
// A second row for the same (trip, user) pair is rejected with ErrConflict.
func (db *DB) AddMember(ctx context.Context, member *model.TripMember) error {
	member.ID = xid.New().String()
	member.JoinedAt = time.Now()
	if member.Role == "" {
		member.Role = model.RoleMember
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO trip_members (id, trip_id, user_id, role, arrival_date, arrival_time,
		                           departure_date, departure_time, travel_method, travel_details, joined_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID, member.TripID, member.UserID, member.Role,
		member.ArrivalDate, member.ArrivalTime, member.DepartureDate, member.DepartureTime,
		member.TravelMethod, member.TravelDetails, member.JoinedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("trip member", member.UserID)
		}
		return fmt.Errorf("sqlite: adding member to trip %s: %w", member.TripID, err)
	}
	return nil
}

// GetMember returns one user's membership in a trip.
func (db *DB) GetMember(ctx context.Context, tripID, userID string) (*model.TripMember, error) {
	row := db.conn.QueryRowContext(ctx, memberSelect+` WHERE m.trip_id = ? AND m.user_id = ?`, tripID, userID)
	member, err := scanMember(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("trip member", userID)
		}
		return nil, fmt.Errorf("sqlite: getting member %s of trip %s: %w", userID, tripID, err)
	}
	return member, nil
}

// ListMembers returns every member of a trip in join order.
func (db *DB) ListMembers(ctx context.Context, tripID string) ([]model.TripMember, error) {
	rows, err := db.conn.QueryContext(ctx, memberSelect+` WHERE m.trip_id = ? ORDER BY m.joined_at, m.id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of trip %s: %w", tripID, err)
	}
	return collectMembers(rows)
}

// ListMembersForTrips returns the membership rows of several trips at once.
// The dashboard uses it to count members without one query per trip.
func (db *DB) ListMembersForTrips(ctx context.Context, tripIDs []string) ([]model.TripMember, error) {
	if len(tripIDs) == 0 {
		return []model.TripMember{}, nil
	}
	args := make([]any, len(tripIDs))
	for i, id := range tripIDs {
		args[i] = id
	}
	rows, err := db.conn.QueryContext(ctx,
		memberSelect+` WHERE m.trip_id IN (`+placeholders(len(tripIDs))+`) ORDER BY m.trip_id, m.joined_at`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of %d trips: %w", len(tripIDs), err)
	}
	return collectMembers(rows)
}

// UpdateTravelInfo saves a member's optional travel fields.
func (db *DB) UpdateTravelInfo(ctx context.Context, member *model.TripMember) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE trip_members
		 SET arrival_date = ?, arrival_time = ?, departure_date = ?, departure_time = ?,
		     travel_method = ?, travel_details = ?
		 WHERE trip_id = ? AND user_id = ?`,
		member.ArrivalDate, member.ArrivalTime, member.DepartureDate, member.DepartureTime,
		member.TravelMethod, member.TravelDetails, member.TripID, member.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating travel info for %s: %w", member.UserID, err)
	}
	return expectOneRow(result, "trip member", member.UserID)
}

func scanMember(row rowScanner) (*model.TripMember, error) {
	var m model.TripMember
	err := row.Scan(
		&m.ID, &m.TripID, &m.UserID, &m.Role,
		&m.ArrivalDate, &m.ArrivalTime, &m.DepartureDate, &m.DepartureTime,
		&m.TravelMethod, &m.TravelDetails, &m.JoinedAt,
		&m.Name, &m.AvatarURL,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMembers(rows *sql.Rows) ([]model.TripMember, error) {
	defer rows.Close()

	members := []model.TripMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning member row: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating members: %w", err)
	}
	return members, nil
}
