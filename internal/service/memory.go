package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/media"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

// Uploader stores a file in a media bucket. *media.Store implements it.
type Uploader interface {
	Put(ctx context.Context, bucket, filename, contentType string, r io.Reader) (*media.Object, error)
}

// MemoryService manages the trip journal.
type MemoryService struct {
	access   tripAccess
	memories repository.MemoryRepository
	uploads  Uploader
	events   EventPublisher
	logger   *slog.Logger
}

func NewMemoryService(
	trips repository.TripRepository,
	members repository.MemberRepository,
	memories repository.MemoryRepository,
	uploads Uploader,
	events EventPublisher,
	logger *slog.Logger,
) *MemoryService {
	return &MemoryService{
		access:   tripAccess{trips: trips, members: members},
		memories: memories,
		uploads:  uploads,
		events:   publisherOrDiscard(events),
		logger:   logger,
	}
}

// MemoryInput is the user-editable part of a memory.
type MemoryInput struct {
	Date      string
	Content   string
	MediaURLs []string
}

// List returns the trip's memories, optionally for a single date.
func (s *MemoryService) List(ctx context.Context, userID, tripID, date string) ([]model.Memory, error) {
	if _, _, err := s.access.check(ctx, userID, tripID); err != nil {
		return nil, err
	}
	if date != "" {
		if _, err := parseDate("date", date); err != nil {
			return nil, err
		}
	}
	memories, err := s.memories.ListMemories(ctx, tripID, date)
	if err != nil {
		return nil, fmt.Errorf("service/memory: listing: %w", err)
	}
	return memories, nil
}

// Create adds a journal entry dated within the trip.
func (s *MemoryService) Create(ctx context.Context, userID, tripID string, in MemoryInput) (*model.Memory, error) {
	trip, _, err := s.access.check(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	if err := validateMemory(trip, &in); err != nil {
		return nil, err
	}

	memory := &model.Memory{
		TripID:    tripID,
		CreatedBy: userID,
		Date:      in.Date,
		Content:   in.Content,
		MediaURLs: in.MediaURLs,
	}
	if err := s.memories.CreateMemory(ctx, memory); err != nil {
		return nil, fmt.Errorf("service/memory: creating: %w", err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableMemories, Type: model.ChangeInsert, TripID: tripID, Record: memory})
	return memory, nil
}

// Update rewrites a memory. Only its author may edit it.
func (s *MemoryService) Update(ctx context.Context, userID, memoryID string, in MemoryInput) (*model.Memory, error) {
	memory, trip, err := s.owned(ctx, userID, memoryID)
	if err != nil {
		return nil, err
	}
	if err := validateMemory(trip, &in); err != nil {
		return nil, err
	}
	memory.Date = in.Date
	memory.Content = in.Content
	memory.MediaURLs = in.MediaURLs

	if err := s.memories.UpdateMemory(ctx, memory); err != nil {
		return nil, fmt.Errorf("service/memory: updating %s: %w", memoryID, err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableMemories, Type: model.ChangeUpdate, TripID: memory.TripID, Record: memory})
	return memory, nil
}

// Delete removes a memory. Only its author may delete it.
func (s *MemoryService) Delete(ctx context.Context, userID, memoryID string) error {
	memory, _, err := s.owned(ctx, userID, memoryID)
	if err != nil {
		return err
	}
	if err := s.memories.DeleteMemory(ctx, memoryID); err != nil {
		return fmt.Errorf("service/memory: deleting %s: %w", memoryID, err)
	}
	s.events.Publish(model.ChangeEvent{Table: model.TableMemories, Type: model.ChangeDelete, TripID: memory.TripID, Record: memory})
	return nil
}

// UploadMedia stores a photo or video for a memory of tripID and returns its
// public URL. The caller attaches the URL with Create or Update.
func (s *MemoryService) UploadMedia(ctx context.Context, userID, tripID, filename, contentType string, r io.Reader) (*media.Object, error) {
	if _, _, err := s.access.check(ctx, userID, tripID); err != nil {
		return nil, err
	}
	obj, err := s.uploads.Put(ctx, media.BucketMemories, filename, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("service/memory: uploading media: %w", err)
	}
	return obj, nil
}

func (s *MemoryService) owned(ctx context.Context, userID, memoryID string) (*model.Memory, *model.Trip, error) {
	memory, err := s.memories.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, nil, fmt.Errorf("service/memory: %w", err)
	}
	trip, _, err := s.access.check(ctx, userID, memory.TripID)
	if err != nil {
		return nil, nil, err
	}
	if memory.CreatedBy != userID {
		return nil, nil, apperror.Forbidden("only the author can change a memory")
	}
	return memory, trip, nil
}

func validateMemory(trip *model.Trip, in *MemoryInput) error {
	content, err := required("content", in.Content)
	if err != nil {
		return err
	}
	in.Content = content
	if _, err := parseDate("date", in.Date); err != nil {
		return err
	}
	if !trip.Contains(in.Date) {
		return apperror.ValidationFailed("date", "memory date must be within the trip dates")
	}
	urls := make([]string, 0, len(in.MediaURLs))
	for _, u := range in.MediaURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	in.MediaURLs = urls
	return nil
}
