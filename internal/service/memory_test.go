package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/media"
)

func TestMemoryCreate(t *testing.T) {
	store := newFakeStore()
	svc := NewMemoryService(store, store, store, &fakeUploader{}, nil, testLogger())
	owner := seedProfile(store, "owner")
	trip := seedTrip(store, owner, "ABC123")

	memory, err := svc.Create(context.Background(), owner, trip.ID, MemoryInput{
		Date: "2026-08-02", Content: " First swim ", MediaURLs: []string{"", " /media/memories/a.jpg "},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if memory.Content != "First swim" {
		t.Errorf("Content = %q, want trimmed", memory.Content)
	}
	if len(memory.MediaURLs) != 1 || memory.MediaURLs[0] != "/media/memories/a.jpg" {
		t.Errorf("MediaURLs = %v, want blanks dropped", memory.MediaURLs)
	}
}

func TestMemoryCreate_DateMustBeInsideTrip(t *testing.T) {
	store := newFakeStore()
	svc := NewMemoryService(store, store, store, &fakeUploader{}, nil, testLogger())
	owner := seedProfile(store, "owner")
	trip := seedTrip(store, owner, "ABC123")

	for _, date := range []string{"2026-07-31", "2026-08-08", ""} {
		_, err := svc.Create(context.Background(), owner, trip.ID, MemoryInput{Date: date, Content: "x"})
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("Create(date=%q) error = %v, want ErrValidation", date, err)
		}
	}
	if len(store.memories) != 0 {
		t.Error("rejected memories must not be stored")
	}
}

func TestMemoryList_FiltersByDate(t *testing.T) {
	store := newFakeStore()
	svc := NewMemoryService(store, store, store, &fakeUploader{}, nil, testLogger())
	owner := seedProfile(store, "owner")
	trip := seedTrip(store, owner, "ABC123")
	ctx := context.Background()

	svc.Create(ctx, owner, trip.ID, MemoryInput{Date: "2026-08-02", Content: "a"})
	svc.Create(ctx, owner, trip.ID, MemoryInput{Date: "2026-08-03", Content: "b"})

	all, _ := svc.List(ctx, owner, trip.ID, "")
	day, _ := svc.List(ctx, owner, trip.ID, "2026-08-03")
	if len(all) != 2 || len(day) != 1 {
		t.Errorf("all=%d day=%d, want 2 and 1", len(all), len(day))
	}
	if _, err := svc.List(ctx, owner, trip.ID, "yesterday"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("bad filter error = %v, want ErrValidation", err)
	}
}

func TestMemory_OnlyAuthorMayEdit(t *testing.T) {
	store := newFakeStore()
	svc := NewMemoryService(store, store, store, &fakeUploader{}, nil, testLogger())
	owner := seedProfile(store, "owner")
	member := seedProfile(store, "member")
	trip := seedTrip(store, owner, "ABC123")
	seedMember(store, trip.ID, member)
	ctx := context.Background()

	memory, _ := svc.Create(ctx, member, trip.ID, MemoryInput{Date: "2026-08-02", Content: "sandcastle"})

	if _, err := svc.Update(ctx, owner, memory.ID, MemoryInput{Date: "2026-08-02", Content: "edited"}); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("non-author Update() error = %v, want ErrForbidden", err)
	}
	updated, err := svc.Update(ctx, member, memory.ID, MemoryInput{Date: "2026-08-04", Content: "bigger sandcastle"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Date != "2026-08-04" {
		t.Errorf("Date = %q", updated.Date)
	}
	if err := svc.Delete(ctx, member, memory.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestMemoryUploadMedia(t *testing.T) {
	store := newFakeStore()
	uploads := &fakeUploader{}
	svc := NewMemoryService(store, store, store, uploads, nil, testLogger())
	owner := seedProfile(store, "owner")
	stranger := seedProfile(store, "stranger")
	trip := seedTrip(store, owner, "ABC123")
	ctx := context.Background()

	obj, err := svc.UploadMedia(ctx, owner, trip.ID, "beach.jpg", "image/jpeg", strings.NewReader("jpeg"))
	if err != nil {
		t.Fatalf("UploadMedia() error = %v", err)
	}
	if obj.Bucket != media.BucketMemories {
		t.Errorf("Bucket = %q, want memories", obj.Bucket)
	}

	if _, err := svc.UploadMedia(ctx, stranger, trip.ID, "x.jpg", "image/jpeg", strings.NewReader("x")); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("stranger UploadMedia() error = %v, want ErrForbidden", err)
	}
	if len(uploads.puts) != 1 {
		t.Errorf("puts = %v, strangers must not reach the store", uploads.puts)
	}
}
