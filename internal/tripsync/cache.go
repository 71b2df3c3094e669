package tripsync

import (
	"encoding/json"
	"time"
)

// Storage is the key/value store the sync layer persists to.
// localstore.Safe satisfies it.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

const (
	connectionKey      = "connection_status"
	tripCachePrefix    = "trip_cache_"
	dashboardKeyPrefix = "dashboard_trips_"
	// QueueKey holds the offline operation list.
	QueueKey = "offline_operations"
)

// snapshot is the stored form of every cached value.
type snapshot struct {
	Version  string          `json:"version"`
	CachedAt time.Time       `json:"cachedAt"`
	Data     json.RawMessage `json:"data"`
}

// cached is a decoded snapshot.
type cached[T any] struct {
	Value    T
	CachedAt time.Time
}

func (c cached[T]) age(now time.Time) time.Duration {
	return now.Sub(c.CachedAt)
}

// readCache returns the snapshot under key if it exists, decodes, and was
// written with version. Anything else counts as a miss.
func readCache[T any](store Storage, key, version string) (cached[T], bool) {
	var out cached[T]
	raw, ok := store.Get(key)
	if !ok {
		return out, false
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil || snap.Version != version {
		return out, false
	}
	if err := json.Unmarshal(snap.Data, &out.Value); err != nil {
		return out, false
	}
	out.CachedAt = snap.CachedAt
	return out, true
}

func writeCache(store Storage, key, version string, now time.Time, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(snapshot{Version: version, CachedAt: now, Data: data})
	if err != nil {
		return err
	}
	store.Set(key, string(raw))
	return nil
}
