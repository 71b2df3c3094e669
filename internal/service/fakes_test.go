package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/media"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

// =========================================================================
// FAKE REPOSITORY
// =========================================================================
//
// fakeStore is an in-memory implementation of EVERY repository interface,
// mirroring how the single sqlite.DB implements them all. Using a fake (not a
// mock framework) keeps tests easy to read: you can see exactly what it does.
//
// Values are copied in and out so a service mutating a returned pointer
// cannot change the "stored" row behind the test's back.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	profiles map[string]model.Profile
	trips    map[string]model.Trip
	members  map[string]model.TripMember // key: tripID + "|" + userID
	wishlist map[string]model.WishlistItem
	explore  map[string]model.ExploreItem
	memories map[string]model.Memory
	sessions map[string]model.Session

	// set to simulate database failures
	createTripErr error
}

var (
	_ repository.ProfileRepository  = (*fakeStore)(nil)
	_ repository.TripRepository     = (*fakeStore)(nil)
	_ repository.MemberRepository   = (*fakeStore)(nil)
	_ repository.WishlistRepository = (*fakeStore)(nil)
	_ repository.ExploreRepository  = (*fakeStore)(nil)
	_ repository.MemoryRepository   = (*fakeStore)(nil)
	_ repository.SessionRepository  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: map[string]model.Profile{},
		trips:    map[string]model.Trip{},
		members:  map[string]model.TripMember{},
		wishlist: map[string]model.WishlistItem{},
		explore:  map[string]model.ExploreItem{},
		memories: map[string]model.Memory{},
		sessions: map[string]model.Session{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func memberKey(tripID, userID string) string { return tripID + "|" + userID }

// --- profiles ---

func (f *fakeStore) UpsertByGitHubID(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.profiles {
		if existing.GitHubID == p.GitHubID {
			existing.Name = p.Name
			existing.AvatarURL = p.AvatarURL
			f.profiles[existing.ID] = existing
			*p = existing
			return nil
		}
	}
	p.ID = f.id("user")
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.profiles[p.ID] = *p
	return nil
}

func (f *fakeStore) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id)
	}
	return &p, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[p.ID]; !ok {
		return apperror.NotFound("profile", p.ID)
	}
	f.profiles[p.ID] = *p
	return nil
}

// --- trips ---

func (f *fakeStore) CreateTrip(_ context.Context, t *model.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createTripErr != nil {
		return f.createTripErr
	}
	for _, existing := range f.trips {
		if existing.InviteCode == t.InviteCode {
			return apperror.Conflict("invite code", t.InviteCode)
		}
	}
	t.ID = f.id("trip")
	t.CreatedAt = time.Now()
	f.trips[t.ID] = *t
	f.members[memberKey(t.ID, t.CreatedBy)] = model.TripMember{
		ID: f.id("member"), TripID: t.ID, UserID: t.CreatedBy, Role: model.RoleAdmin, JoinedAt: time.Now(),
	}
	return nil
}

func (f *fakeStore) GetTrip(_ context.Context, id string) (*model.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok {
		return nil, apperror.NotFound("trip", id)
	}
	return &t, nil
}

func (f *fakeStore) GetTripByInviteCode(_ context.Context, code string) (*model.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.trips {
		if t.InviteCode == code {
			return &t, nil
		}
	}
	return nil, apperror.NotFound("trip with invite code", code)
}

func (f *fakeStore) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := f.GetTripByInviteCode(ctx, code)
	return err == nil, nil
}

func (f *fakeStore) ListTripsCreatedBy(_ context.Context, userID string, _ repository.ListOptions) ([]model.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Trip{}
	for _, t := range f.trips {
		if t.CreatedBy == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListTripsJoinedBy(_ context.Context, userID string, _ repository.ListOptions) ([]model.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Trip{}
	for _, m := range f.members {
		if m.UserID == userID {
			out = append(out, f.trips[m.TripID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateTrip(_ context.Context, t *model.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.trips[t.ID]; !ok {
		return apperror.NotFound("trip", t.ID)
	}
	f.trips[t.ID] = *t
	return nil
}

// --- members ---

func (f *fakeStore) AddMember(_ context.Context, m *model.TripMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := memberKey(m.TripID, m.UserID)
	if _, ok := f.members[key]; ok {
		return apperror.Conflict("trip member", m.UserID)
	}
	m.ID = f.id("member")
	m.JoinedAt = time.Now()
	f.members[key] = *m
	return nil
}

func (f *fakeStore) GetMember(_ context.Context, tripID, userID string) (*model.TripMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberKey(tripID, userID)]
	if !ok {
		return nil, apperror.NotFound("trip member", userID)
	}
	return &m, nil
}

func (f *fakeStore) ListMembers(ctx context.Context, tripID string) ([]model.TripMember, error) {
	return f.ListMembersForTrips(ctx, []string{tripID})
}

func (f *fakeStore) ListMembersForTrips(_ context.Context, tripIDs []string) ([]model.TripMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{}
	for _, id := range tripIDs {
		want[id] = true
	}
	out := []model.TripMember{}
	for _, m := range f.members {
		if want[m.TripID] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateTravelInfo(_ context.Context, m *model.TripMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := memberKey(m.TripID, m.UserID)
	if _, ok := f.members[key]; !ok {
		return apperror.NotFound("trip member", m.UserID)
	}
	f.members[key] = *m
	return nil
}

// --- wishlist ---

func (f *fakeStore) CreateWishlistItem(_ context.Context, it *model.WishlistItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it.ID = f.id("wish")
	f.wishlist[it.ID] = *it
	return nil
}

func (f *fakeStore) GetWishlistItem(_ context.Context, id string) (*model.WishlistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.wishlist[id]
	if !ok {
		return nil, apperror.NotFound("wishlist item", id)
	}
	return &it, nil
}

func (f *fakeStore) ListWishlistItems(_ context.Context, tripID string) ([]model.WishlistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.WishlistItem{}
	for _, it := range f.wishlist {
		if it.TripID == tripID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateWishlistItem(_ context.Context, it *model.WishlistItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wishlist[it.ID] = *it
	return nil
}

func (f *fakeStore) DeleteWishlistItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.wishlist[id]; !ok {
		return apperror.NotFound("wishlist item", id)
	}
	delete(f.wishlist, id)
	return nil
}

// --- explore ---

func (f *fakeStore) CreateExploreItem(_ context.Context, it *model.ExploreItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it.ID = f.id("explore")
	f.explore[it.ID] = *it
	return nil
}

func (f *fakeStore) GetExploreItem(_ context.Context, id string) (*model.ExploreItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.explore[id]
	if !ok {
		return nil, apperror.NotFound("explore item", id)
	}
	return &it, nil
}

func (f *fakeStore) ListExploreItems(_ context.Context, tripID string) ([]model.ExploreItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ExploreItem{}
	for _, it := range f.explore {
		if it.TripID == tripID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) DeleteExploreItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.explore[id]; !ok {
		return apperror.NotFound("explore item", id)
	}
	delete(f.explore, id)
	return nil
}

// --- memories ---

func (f *fakeStore) CreateMemory(_ context.Context, m *model.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = f.id("memory")
	f.memories[m.ID] = *m
	return nil
}

func (f *fakeStore) GetMemory(_ context.Context, id string) (*model.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return nil, apperror.NotFound("memory", id)
	}
	return &m, nil
}

func (f *fakeStore) ListMemories(_ context.Context, tripID, date string) ([]model.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Memory{}
	for _, m := range f.memories {
		if m.TripID == tripID && (date == "" || m.Date == date) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeStore) UpdateMemory(_ context.Context, m *model.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memories[m.ID] = *m
	return nil
}

func (f *fakeStore) DeleteMemory(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.memories[id]; !ok {
		return apperror.NotFound("memory", id)
	}
	delete(f.memories, id)
	return nil
}

// --- sessions ---

func (f *fakeStore) CreateSession(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	return &s, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return apperror.NotFound("session", id)
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.Expired(now) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

// =========================================================================
// OTHER FAKES AND HELPERS
// =========================================================================

// recordingPublisher keeps every published event for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

// publisher converts a possibly nil *recordingPublisher into an
// EventPublisher, keeping nil untyped so the service falls back to discarding.
func publisher(r *recordingPublisher) EventPublisher {
	if r == nil {
		return nil
	}
	return r
}

func (r *recordingPublisher) Publish(ev model.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) last() model.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return model.ChangeEvent{}
	}
	return r.events[len(r.events)-1]
}

// fakeUploader pretends to store files and returns predictable URLs.
type fakeUploader struct {
	puts []string
	err  error
}

func (u *fakeUploader) Put(_ context.Context, bucket, filename, contentType string, r io.Reader) (*media.Object, error) {
	if u.err != nil {
		return nil, u.err
	}
	io.Copy(io.Discard, r)
	u.puts = append(u.puts, bucket+"/"+filename)
	return &media.Object{
		Bucket:      bucket,
		Name:        filename,
		URL:         "/media/" + bucket + "/" + filename,
		ContentType: contentType,
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedProfile stores a profile directly and returns its ID.
func seedProfile(f *fakeStore, name string) string {
	p := &model.Profile{GitHubID: int64(len(f.profiles) + 1), Name: name}
	f.UpsertByGitHubID(context.Background(), p)
	return p.ID
}

// seedTrip stores a trip (with its admin membership) and returns it.
func seedTrip(f *fakeStore, ownerID, code string) *model.Trip {
	t := &model.Trip{
		Name: "Beach Week", Destination: "Outer Banks",
		StartDate: "2026-08-01", EndDate: "2026-08-07",
		InviteCode: code, CreatedBy: ownerID,
	}
	f.CreateTrip(context.Background(), t)
	return t
}

// seedMember adds userID to tripID as a plain member.
func seedMember(f *fakeStore, tripID, userID string) {
	f.AddMember(context.Background(), &model.TripMember{TripID: tripID, UserID: userID, Role: model.RoleMember})
}
