package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/family-trips/internal/media"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

// ProfileService reads and edits the caller's own profile.
//
// A profile has no trip of its own. Its change events are published once
// per trip the user belongs to, so only co-members' streams see them.
type ProfileService struct {
	profiles repository.ProfileRepository
	trips    repository.TripRepository
	uploads  Uploader
	events   EventPublisher
	logger   *slog.Logger
}

func NewProfileService(profiles repository.ProfileRepository, trips repository.TripRepository, uploads Uploader, events EventPublisher, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		trips:    trips,
		uploads:  uploads,
		events:   publisherOrDiscard(events),
		logger:   logger,
	}
}

// Me returns the caller's profile.
func (s *ProfileService) Me(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	return p, nil
}

// Update changes the display name. An empty name is rejected.
func (s *ProfileService) Update(ctx context.Context, userID, name string) (*model.Profile, error) {
	name, err := required("name", name)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	p.Name = name
	return s.save(ctx, p)
}

// UploadAvatar stores a new avatar image and points the profile at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID, filename, contentType string, r io.Reader) (*model.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	obj, err := s.uploads.Put(ctx, media.BucketAvatars, filename, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("service/profile: uploading avatar: %w", err)
	}
	p.AvatarURL = obj.URL
	return s.save(ctx, p)
}

func (s *ProfileService) save(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := s.profiles.UpdateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("service/profile: updating %s: %w", p.ID, err)
	}

	tripIDs, err := s.tripIDs(ctx, p.ID)
	if err != nil {
		// The update is saved; open member lists just stay stale.
		s.logger.Warn("listing trips for profile event failed",
			slog.String("userID", p.ID),
			slog.String("error", err.Error()),
		)
		return p, nil
	}
	for _, id := range tripIDs {
		s.events.Publish(model.ChangeEvent{Table: model.TableProfiles, Type: model.ChangeUpdate, TripID: id, Record: p})
	}
	return p, nil
}

// profileTripPage is the page size used when collecting a user's trips.
const profileTripPage = 500

// tripIDs returns every trip userID created or has a membership in.
func (s *ProfileService) tripIDs(ctx context.Context, userID string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	collect := func(list func(context.Context, string, repository.ListOptions) ([]model.Trip, error)) error {
		for offset := 0; ; offset += profileTripPage {
			trips, err := list(ctx, userID, repository.ListOptions{Limit: profileTripPage, Offset: offset})
			if err != nil {
				return err
			}
			for _, t := range trips {
				if !seen[t.ID] {
					seen[t.ID] = true
					ids = append(ids, t.ID)
				}
			}
			if len(trips) < profileTripPage {
				return nil
			}
		}
	}
	if err := collect(s.trips.ListTripsJoinedBy); err != nil {
		return nil, fmt.Errorf("service/profile: listing joined trips: %w", err)
	}
	if err := collect(s.trips.ListTripsCreatedBy); err != nil {
		return nil, fmt.Errorf("service/profile: listing created trips: %w", err)
	}
	return ids, nil
}
