package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

// ExploreService manages curated local suggestions.
//
// Trip admins author explore items; every member can browse them and
// promote one into the shared wishlist.
type ExploreService struct {
	access   tripAccess
	explore  repository.ExploreRepository
	wishlist repository.WishlistRepository
	events   EventPublisher
	logger   *slog.Logger
}

func NewExploreService(
	trips repository.TripRepository,
	members repository.MemberRepository,
	explore repository.ExploreRepository,
	wishlist repository.WishlistRepository,
	events EventPublisher,
	logger *slog.Logger,
) *ExploreService {
	return &ExploreService{
		access:   tripAccess{trips: trips, members: members},
		explore:  explore,
		wishlist: wishlist,
		events:   publisherOrDiscard(events),
		logger:   logger,
	}
}

// ExploreInput describes a new suggestion.
type ExploreInput struct {
	Title       string
	Description string
	Category    model.Category
	Date        string
	URL         string
	ImageURL    string
}

func (s *ExploreService) List(ctx context.Context, userID, tripID string) ([]model.ExploreItem, error) {
	if _, _, err := s.access.check(ctx, userID, tripID); err != nil {
		return nil, err
	}
	items, err := s.explore.ListExploreItems(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service/explore: listing: %w", err)
	}
	return items, nil
}

// Create adds a suggestion. Only trip admins may author them, and a dated
// suggestion must fall within the trip.
func (s *ExploreService) Create(ctx context.Context, userID, tripID string, in ExploreInput) (*model.ExploreItem, error) {
	trip, member, err := s.access.check(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	if !isAdmin(trip, member, userID) {
		return nil, apperror.Forbidden("only trip admins can add explore items")
	}

	title, err := required("title", in.Title)
	if err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", in.Category))
	}
	if in.Date != "" {
		if _, err := parseDate("date", in.Date); err != nil {
			return nil, err
		}
		if !trip.Contains(in.Date) {
			return nil, apperror.ValidationFailed("date", "date must be within the trip dates")
		}
	}

	item := &model.ExploreItem{
		TripID:      tripID,
		CreatedBy:   userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Date:        in.Date,
		URL:         strings.TrimSpace(in.URL),
		ImageURL:    strings.TrimSpace(in.ImageURL),
	}
	if err := s.explore.CreateExploreItem(ctx, item); err != nil {
		return nil, fmt.Errorf("service/explore: creating: %w", err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableExploreItems, Type: model.ChangeInsert, TripID: tripID, Record: item})
	return item, nil
}

// Delete removes a suggestion; only its author may do so.
func (s *ExploreService) Delete(ctx context.Context, userID, itemID string) error {
	item, err := s.explore.GetExploreItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("service/explore: %w", err)
	}
	if _, _, err := s.access.check(ctx, userID, item.TripID); err != nil {
		return err
	}
	if item.CreatedBy != userID {
		return apperror.Forbidden("only the author can delete an explore item")
	}
	if err := s.explore.DeleteExploreItem(ctx, itemID); err != nil {
		return fmt.Errorf("service/explore: deleting %s: %w", itemID, err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableExploreItems, Type: model.ChangeDelete, TripID: item.TripID, Record: item})
	return nil
}

// Promote copies a suggestion into the wishlist as a new item owned by the
// caller. The explore item stays where it is.
func (s *ExploreService) Promote(ctx context.Context, userID, itemID string) (*model.WishlistItem, error) {
	item, err := s.explore.GetExploreItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service/explore: %w", err)
	}
	if _, _, err := s.access.check(ctx, userID, item.TripID); err != nil {
		return nil, err
	}

	wish := &model.WishlistItem{
		TripID:        item.TripID,
		CreatedBy:     userID,
		Title:         item.Title,
		Description:   item.Description,
		Category:      item.Category,
		ExploreItemID: item.ID,
	}
	if err := s.wishlist.CreateWishlistItem(ctx, wish); err != nil {
		return nil, fmt.Errorf("service/explore: promoting %s: %w", itemID, err)
	}

	s.logger.Info("explore item promoted",
		slog.String("exploreItemID", item.ID),
		slog.String("wishlistItemID", wish.ID),
	)
	s.events.Publish(model.ChangeEvent{Table: model.TableWishlistItems, Type: model.ChangeInsert, TripID: item.TripID, Record: wish})
	return wish, nil
}
