package tripsync

import "sync"

// Monitor tracks whether the network is believed to be reachable.
//
// The connection checker feeds it from ping results; fetchers consult it
// before going to the network; the offline queue watches it for the
// offline to online transition.
type Monitor struct {
	mu       sync.Mutex
	online   bool
	nextID   int
	watchers map[int]chan bool
}

func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online, watchers: make(map[int]chan bool)}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the current state. Watchers hear only about changes; a
// watcher that has not consumed the previous change gets the newest one.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return
	}
	m.online = online
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Watch returns a channel of state changes and a function that stops them.
func (m *Monitor) Watch() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}
}
