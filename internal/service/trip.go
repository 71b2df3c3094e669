package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

// inviteAlphabet is the character set for invite codes: A–Z and 0–9.
const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxInviteAttempts bounds the collision-retry loop in Create.
const maxInviteAttempts = 5

// TripService implements trip lifecycle and membership rules.
type TripService struct {
	access    tripAccess
	trips     repository.TripRepository
	members   repository.MemberRepository
	events    EventPublisher
	logger    *slog.Logger
	newInvite func() (string, error)
}

// NewTripService creates a TripService. events may be nil.
func NewTripService(
	trips repository.TripRepository,
	members repository.MemberRepository,
	events EventPublisher,
	logger *slog.Logger,
) *TripService {
	return &TripService{
		access:    tripAccess{trips: trips, members: members},
		trips:     trips,
		members:   members,
		events:    publisherOrDiscard(events),
		logger:    logger,
		newInvite: GenerateInviteCode,
	}
}

// CreateTripInput carries the fields a user provides for a new trip.
type CreateTripInput struct {
	Name        string
	Destination string
	StartDate   string
	EndDate     string
}

// GenerateInviteCode returns a random 6-character code over A–Z0–9.
func GenerateInviteCode() (string, error) {
	buf := make([]byte, model.InviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}

// Create validates the input, picks an unused invite code and stores the
// trip together with the creator's admin membership.
//
// Validation happens before any write: an end date earlier than the start
// date never reaches the repository.
func (s *TripService) Create(ctx context.Context, userID string, in CreateTripInput) (*model.Trip, error) {
	name, err := required("name", in.Name)
	if err != nil {
		return nil, err
	}
	destination, err := required("destination", in.Destination)
	if err != nil {
		return nil, err
	}
	if err := validateDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	trip := &model.Trip{
		Name:        name,
		Destination: destination,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedBy:   userID,
	}

	// The UNIQUE index is the real guard; the pre-check just avoids burning
	// a transaction on a code we already know is taken.
	for attempt := 1; ; attempt++ {
		code, err := s.newInvite()
		if err != nil {
			return nil, fmt.Errorf("service/trip: %w", err)
		}
		exists, err := s.trips.InviteCodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("service/trip: checking invite code: %w", err)
		}
		if !exists {
			trip.InviteCode = code
			err = s.trips.CreateTrip(ctx, trip)
			if err == nil {
				break
			}
			if !errors.Is(err, apperror.ErrConflict) {
				return nil, fmt.Errorf("service/trip: creating trip: %w", err)
			}
		}
		if attempt >= maxInviteAttempts {
			return nil, fmt.Errorf("service/trip: no free invite code after %d attempts", attempt)
		}
		s.logger.Debug("invite code collision, retrying", slog.Int("attempt", attempt))
	}

	s.logger.Info("trip created",
		slog.String("tripID", trip.ID),
		slog.String("userID", userID),
	)
	s.events.Publish(model.ChangeEvent{Table: model.TableTrips, Type: model.ChangeInsert, TripID: trip.ID, Record: trip})
	return trip, nil
}

// Get returns a trip the user created or belongs to.
func (s *TripService) Get(ctx context.Context, userID, tripID string) (*model.Trip, error) {
	trip, _, err := s.access.check(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// ListOwned returns the trips the user created.
func (s *TripService) ListOwned(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Trip, error) {
	trips, err := s.trips.ListTripsCreatedBy(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("service/trip: listing owned trips: %w", err)
	}
	return trips, nil
}

// ListJoined returns the trips the user has a membership in.
func (s *TripService) ListJoined(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Trip, error) {
	trips, err := s.trips.ListTripsJoinedBy(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("service/trip: listing joined trips: %w", err)
	}
	return trips, nil
}

// UpdateSettings applies the non-nil fields of settings. Only the creator
// may change trip settings.
func (s *TripService) UpdateSettings(ctx context.Context, userID, tripID string, settings model.TripSettings) (*model.Trip, error) {
	trip, _, err := s.access.check(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	if trip.CreatedBy != userID {
		return nil, apperror.Forbidden("only the trip creator can change its settings")
	}

	if settings.Name != nil {
		if trip.Name, err = required("name", *settings.Name); err != nil {
			return nil, err
		}
	}
	if settings.Destination != nil {
		if trip.Destination, err = required("destination", *settings.Destination); err != nil {
			return nil, err
		}
	}
	if settings.StartDate != nil {
		trip.StartDate = *settings.StartDate
	}
	if settings.EndDate != nil {
		trip.EndDate = *settings.EndDate
	}
	if settings.AlbumURL != nil {
		trip.AlbumURL = strings.TrimSpace(*settings.AlbumURL)
	}
	if err := validateDateRange(trip.StartDate, trip.EndDate); err != nil {
		return nil, err
	}

	if err := s.trips.UpdateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("service/trip: updating trip %s: %w", tripID, err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableTrips, Type: model.ChangeUpdate, TripID: trip.ID, Record: trip})
	return trip, nil
}

// JoinByInviteCode adds the user to the trip behind code.
//
// Codes are matched case-insensitively. An unknown code fails with
// "invalid invite code" and inserts nothing. Joining a trip you already
// belong to returns the existing membership unchanged.
func (s *TripService) JoinByInviteCode(ctx context.Context, userID, code string) (*model.TripMember, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != model.InviteCodeLength {
		return nil, apperror.ValidationFailed("inviteCode", "invalid invite code")
	}

	trip, err := s.trips.GetTripByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("inviteCode", "invalid invite code")
		}
		return nil, fmt.Errorf("service/trip: looking up invite code: %w", err)
	}

	existing, err := s.members.GetMember(ctx, trip.ID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/trip: checking membership: %w", err)
	}

	member := &model.TripMember{TripID: trip.ID, UserID: userID, Role: model.RoleMember}
	if err := s.members.AddMember(ctx, member); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Lost a race with a concurrent join of the same user.
			return s.members.GetMember(ctx, trip.ID, userID)
		}
		return nil, fmt.Errorf("service/trip: adding member: %w", err)
	}

	s.logger.Info("user joined trip",
		slog.String("tripID", trip.ID),
		slog.String("userID", userID),
	)
	s.events.Publish(model.ChangeEvent{Table: model.TableTripMembers, Type: model.ChangeInsert, TripID: trip.ID, Record: member})
	return member, nil
}

// Members lists a trip's members with their profile names and avatars.
func (s *TripService) Members(ctx context.Context, userID, tripID string) ([]model.TripMember, error) {
	if _, _, err := s.access.check(ctx, userID, tripID); err != nil {
		return nil, err
	}
	members, err := s.members.ListMembers(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service/trip: listing members: %w", err)
	}
	return members, nil
}

// MembersForTrips returns membership rows for the requested trips, silently
// leaving out trips the user cannot see.
func (s *TripService) MembersForTrips(ctx context.Context, userID string, tripIDs []string) ([]model.TripMember, error) {
	rows, err := s.members.ListMembersForTrips(ctx, tripIDs)
	if err != nil {
		return nil, fmt.Errorf("service/trip: listing members for trips: %w", err)
	}

	visible := make(map[string]bool, len(tripIDs))
	for _, m := range rows {
		if m.UserID == userID {
			visible[m.TripID] = true
		}
	}
	for _, id := range tripIDs {
		if visible[id] {
			continue
		}
		trip, err := s.trips.GetTrip(ctx, id)
		if err == nil && trip.CreatedBy == userID {
			visible[id] = true
		}
	}

	out := make([]model.TripMember, 0, len(rows))
	for _, m := range rows {
		if visible[m.TripID] {
			out = append(out, m)
		}
	}
	return out, nil
}

// UpdateTravelInfo saves the caller's own travel details for a trip.
func (s *TripService) UpdateTravelInfo(ctx context.Context, userID, tripID string, info model.TravelInfo) (*model.TripMember, error) {
	_, member, err := s.access.check(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperror.Forbidden("join the trip before adding travel details")
	}

	if info.ArrivalDate != "" {
		if _, err := parseDate("arrivalDate", info.ArrivalDate); err != nil {
			return nil, err
		}
	}
	if info.DepartureDate != "" {
		if _, err := parseDate("departureDate", info.DepartureDate); err != nil {
			return nil, err
		}
	}
	if info.ArrivalDate != "" && info.DepartureDate != "" && info.DepartureDate < info.ArrivalDate {
		return nil, apperror.ValidationFailed("departureDate", "departure date must be after arrival date")
	}

	member.ArrivalDate = info.ArrivalDate
	member.ArrivalTime = strings.TrimSpace(info.ArrivalTime)
	member.DepartureDate = info.DepartureDate
	member.DepartureTime = strings.TrimSpace(info.DepartureTime)
	member.TravelMethod = strings.TrimSpace(info.TravelMethod)
	member.TravelDetails = strings.TrimSpace(info.TravelDetails)

	if err := s.members.UpdateTravelInfo(ctx, member); err != nil {
		return nil, fmt.Errorf("service/trip: updating travel info: %w", err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableTripMembers, Type: model.ChangeUpdate, TripID: tripID, Record: member})
	return member, nil
}
