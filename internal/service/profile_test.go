package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
)

func TestProfileUpdate(t *testing.T) {
	store := newFakeStore()
	events := &recordingPublisher{}
	svc := NewProfileService(store, store, &fakeUploader{}, events, testLogger())
	userID := seedProfile(store, "old")

	p, err := svc.Update(context.Background(), userID, "  Grandma ")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.Name != "Grandma" {
		t.Errorf("Name = %q", p.Name)
	}
	if len(events.events) != 0 {
		t.Errorf("events = %+v, want none for a user without trips", events.events)
	}

	if _, err := svc.Update(context.Background(), userID, " "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("blank name error = %v, want ErrValidation", err)
	}
}

func TestProfileUpdate_EventsOnlyForOwnTrips(t *testing.T) {
	store := newFakeStore()
	events := &recordingPublisher{}
	svc := NewProfileService(store, store, &fakeUploader{}, events, testLogger())
	userID := seedProfile(store, "kid")
	stranger := seedProfile(store, "stranger")

	own := seedTrip(store, userID, "OWN001")
	joined := seedTrip(store, stranger, "JON001")
	seedMember(store, joined.ID, userID)
	seedTrip(store, stranger, "OTH001")

	if _, err := svc.Update(context.Background(), userID, "Kid"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got := map[string]bool{}
	for _, ev := range events.events {
		if ev.Table != model.TableProfiles {
			t.Errorf("event table = %q, want profiles", ev.Table)
		}
		got[ev.TripID] = true
	}
	want := map[string]bool{own.ID: true, joined.ID: true}
	if len(got) != len(want) || !got[own.ID] || !got[joined.ID] {
		t.Errorf("events went to trips %v, want %v", got, want)
	}
}

func TestProfileUploadAvatar(t *testing.T) {
	store := newFakeStore()
	uploads := &fakeUploader{}
	svc := NewProfileService(store, store, uploads, nil, testLogger())
	userID := seedProfile(store, "kid")

	p, err := svc.UploadAvatar(context.Background(), userID, "me.png", "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("UploadAvatar() error = %v", err)
	}
	if p.AvatarURL != "/media/avatars/me.png" {
		t.Errorf("AvatarURL = %q", p.AvatarURL)
	}

	uploads.err = apperror.ValidationFailed("file", "too large")
	if _, err := svc.UploadAvatar(context.Background(), userID, "big.png", "image/png", strings.NewReader("x")); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UploadAvatar() error = %v, want upload error passed through", err)
	}
	stored, _ := svc.Me(context.Background(), userID)
	if stored.AvatarURL != "/media/avatars/me.png" {
		t.Error("a failed upload must not change the avatar")
	}
}
