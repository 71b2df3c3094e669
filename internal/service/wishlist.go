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

// WishlistService manages the shared wishlist of a trip.
// Any member may add items; only an item's creator may change or delete it.
type WishlistService struct {
	access tripAccess
	items  repository.WishlistRepository
	events EventPublisher
	logger *slog.Logger
}

func NewWishlistService(
	trips repository.TripRepository,
	members repository.MemberRepository,
	items repository.WishlistRepository,
	events EventPublisher,
	logger *slog.Logger,
) *WishlistService {
	return &WishlistService{
		access: tripAccess{trips: trips, members: members},
		items:  items,
		events: publisherOrDiscard(events),
		logger: logger,
	}
}

// WishlistInput is the user-editable part of a wishlist item.
type WishlistInput struct {
	Title       string
	Description string
	Category    model.Category
}

func (in WishlistInput) validate() (WishlistInput, error) {
	title, err := required("title", in.Title)
	if err != nil {
		return in, err
	}
	in.Title = title
	in.Description = strings.TrimSpace(in.Description)
	if in.Category == "" {
		in.Category = model.CategoryOther
	}
	if !in.Category.Valid() {
		return in, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", in.Category))
	}
	return in, nil
}

func (s *WishlistService) List(ctx context.Context, userID, tripID string) ([]model.WishlistItem, error) {
	if _, _, err := s.access.check(ctx, userID, tripID); err != nil {
		return nil, err
	}
	items, err := s.items.ListWishlistItems(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service/wishlist: listing: %w", err)
	}
	return items, nil
}

func (s *WishlistService) Add(ctx context.Context, userID, tripID string, in WishlistInput) (*model.WishlistItem, error) {
	if _, _, err := s.access.check(ctx, userID, tripID); err != nil {
		return nil, err
	}
	in, err := in.validate()
	if err != nil {
		return nil, err
	}

	item := &model.WishlistItem{
		TripID:      tripID,
		CreatedBy:   userID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
	}
	if err := s.items.CreateWishlistItem(ctx, item); err != nil {
		return nil, fmt.Errorf("service/wishlist: creating: %w", err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableWishlistItems, Type: model.ChangeInsert, TripID: tripID, Record: item})
	return item, nil
}

// Update replaces the item's title, description and category.
func (s *WishlistService) Update(ctx context.Context, userID, itemID string, in WishlistInput) (*model.WishlistItem, error) {
	item, err := s.owned(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	in, err = in.validate()
	if err != nil {
		return nil, err
	}
	item.Title = in.Title
	item.Description = in.Description
	item.Category = in.Category
	return s.save(ctx, item)
}

// SetCompleted ticks an item off (or re-opens it).
func (s *WishlistService) SetCompleted(ctx context.Context, userID, itemID string, completed bool) (*model.WishlistItem, error) {
	item, err := s.owned(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	item.Completed = completed
	return s.save(ctx, item)
}

func (s *WishlistService) Delete(ctx context.Context, userID, itemID string) error {
	item, err := s.owned(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if err := s.items.DeleteWishlistItem(ctx, itemID); err != nil {
		return fmt.Errorf("service/wishlist: deleting %s: %w", itemID, err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableWishlistItems, Type: model.ChangeDelete, TripID: item.TripID, Record: item})
	return nil
}

// owned loads an item the caller created; a member who is not the author
// gets ErrForbidden, a non-member gets ACCESS_DENIED.
func (s *WishlistService) owned(ctx context.Context, userID, itemID string) (*model.WishlistItem, error) {
	item, err := s.items.GetWishlistItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service/wishlist: %w", err)
	}
	if _, _, err := s.access.check(ctx, userID, item.TripID); err != nil {
		return nil, err
	}
	if item.CreatedBy != userID {
		return nil, apperror.Forbidden("only the item's creator can change it")
	}
	return item, nil
}

func (s *WishlistService) save(ctx context.Context, item *model.WishlistItem) (*model.WishlistItem, error) {
	if err := s.items.UpdateWishlistItem(ctx, item); err != nil {
		return nil, fmt.Errorf("service/wishlist: updating %s: %w", item.ID, err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableWishlistItems, Type: model.ChangeUpdate, TripID: item.TripID, Record: item})
	return item, nil
}
