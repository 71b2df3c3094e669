// Package service holds the business rules of the trip backend.
//
// Each service sits between the HTTP handlers and the repositories:
//
//	TripHandler (HTTP) → TripService (rules) → TripRepository, MemberRepository (DB)
//	                                         ↘ EventPublisher (realtime feed)
//
// Services never see HTTP. They receive the authenticated userID as a plain
// argument and return apperror kinds the handlers translate to status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

// EventPublisher receives a ChangeEvent after every successful mutation.
// *realtime.Hub implements it.
type EventPublisher interface {
	Publish(ev model.ChangeEvent)
}

type discardPublisher struct{}

func (discardPublisher) Publish(model.ChangeEvent) {}

func publisherOrDiscard(p EventPublisher) EventPublisher {
	if p == nil {
		return discardPublisher{}
	}
	return p
}

// tripAccess answers "may this user see this trip?" for every service that
// serves trip-scoped data.
//
// A user may read a trip when they have a membership row OR created it. The
// creator normally has an admin row (CreateTrip inserts it), but the creator
// check is kept so a trip whose admin row is missing stays reachable by its
// owner.
type tripAccess struct {
	trips   repository.TripRepository
	members repository.MemberRepository
}

// check returns the trip and the caller's membership (nil for a creator with
// no row). Unknown trips and strangers both get ACCESS_DENIED so trip IDs
// cannot be enumerated.
func (a tripAccess) check(ctx context.Context, userID, tripID string) (*model.Trip, *model.TripMember, error) {
	trip, err := a.trips.GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil, apperror.AccessDenied()
		}
		return nil, nil, fmt.Errorf("loading trip %s: %w", tripID, err)
	}

	member, err := a.members.GetMember(ctx, tripID, userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, nil, fmt.Errorf("loading membership of %s: %w", userID, err)
		}
		member = nil
	}

	if member == nil && trip.CreatedBy != userID {
		return nil, nil, apperror.AccessDenied()
	}
	return trip, member, nil
}

// isAdmin reports whether the caller manages trip-level content.
func isAdmin(trip *model.Trip, member *model.TripMember, userID string) bool {
	return trip.CreatedBy == userID || (member != nil && member.IsAdmin())
}

// parseDate validates a YYYY-MM-DD date for the named field.
func parseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed(field, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field))
	}
	return d, nil
}

// validateDateRange enforces start ≤ end on trip dates.
func validateDateRange(start, end string) error {
	s, err := parseDate("startDate", start)
	if err != nil {
		return err
	}
	e, err := parseDate("endDate", end)
	if err != nil {
		return err
	}
	if e.Before(s) {
		return apperror.ValidationFailed("endDate", "end date must be after start date")
	}
	return nil
}

// required trims value and rejects it when empty.
func required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	}
	return value, nil
}
