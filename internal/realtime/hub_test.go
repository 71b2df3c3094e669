package realtime

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/family-trips/internal/model"
)

func newTestHub(buffer int) *Hub {
	return NewHub(buffer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublish_FiltersByTripAndTable(t *testing.T) {
	h := newTestHub(4)
	wishlist := h.Subscribe(Filter{TripID: "t1", Tables: []string{model.TableWishlistItems}})
	everything := h.Subscribe(Filter{TripID: "t1"})
	defer wishlist.Close()
	defer everything.Close()

	h.Publish(model.ChangeEvent{Table: model.TableWishlistItems, Type: model.ChangeInsert, TripID: "t1"})
	h.Publish(model.ChangeEvent{Table: model.TableMemories, Type: model.ChangeInsert, TripID: "t1"})
	h.Publish(model.ChangeEvent{Table: model.TableWishlistItems, Type: model.ChangeInsert, TripID: "other"})

	require.Len(t, wishlist.C, 1)
	assert.Equal(t, model.TableWishlistItems, (<-wishlist.C).Table)
	assert.Len(t, everything.C, 2)
}

func TestPublish_TripLessEventsStayOffTripStreams(t *testing.T) {
	h := newTestHub(4)
	trip := h.Subscribe(Filter{TripID: "t1"})
	all := h.Subscribe(Filter{})
	defer trip.Close()
	defer all.Close()

	h.Publish(model.ChangeEvent{Table: model.TableProfiles, Type: model.ChangeUpdate, Record: "profile"})
	h.Publish(model.ChangeEvent{Table: model.TableProfiles, Type: model.ChangeUpdate, TripID: "t2", Record: "profile"})

	assert.Empty(t, trip.C)
	assert.Len(t, all.C, 2)
}

func TestPublish_DropsWhenBufferFull(t *testing.T) {
	h := newTestHub(1)
	sub := h.Subscribe(Filter{})
	defer sub.Close()

	h.Publish(model.ChangeEvent{Table: model.TableTrips, TripID: "t1"})
	h.Publish(model.ChangeEvent{Table: model.TableTrips, TripID: "t2"})

	assert.Len(t, sub.C, 1)
	assert.Equal(t, "t1", (<-sub.C).TripID)
}

func TestSubscriptionClose_Idempotent(t *testing.T) {
	h := newTestHub(1)
	sub := h.Subscribe(Filter{})
	assert.Equal(t, 1, h.Subscribers())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, h.Subscribers())
	_, open := <-sub.C
	assert.False(t, open)
}

func TestHubClose(t *testing.T) {
	h := newTestHub(1)
	sub := h.Subscribe(Filter{})

	h.Close()
	_, open := <-sub.C
	assert.False(t, open, "subscriptions are closed with the hub")

	sub.Close()
	h.Publish(model.ChangeEvent{Table: model.TableTrips})

	late := h.Subscribe(Filter{})
	_, open = <-late.C
	assert.False(t, open, "subscribing to a closed hub yields a closed channel")
}
