package localstore

import (
	"fmt"
	"log/slog"
	"sync"
)

// Safe never fails. Each call goes to the backend first; if the backend
// errors or panics, the call is served from an in-process map that lives
// as long as the Safe does. Nothing in the map is ever persisted.
type Safe struct {
	backend Backend
	logger  *slog.Logger

	mu       sync.Mutex
	fallback map[string]string
}

// NewSafe wraps backend. A nil backend gives a memory-only store.
func NewSafe(backend Backend, logger *slog.Logger) *Safe {
	return &Safe{
		backend:  backend,
		logger:   logger,
		fallback: make(map[string]string),
	}
}

// NewMemory returns a Safe with no durable backend.
func NewMemory(logger *slog.Logger) *Safe {
	return NewSafe(nil, logger)
}

// Get returns the value stored under key.
//
// A value written while the backend was failing is still visible here
// after the backend recovers, until something overwrites or removes it.
func (s *Safe) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		value, found, err := s.guard("get", key, func() (string, bool, error) {
			return s.backend.Get(key)
		})
		if err == nil && found {
			return value, true
		}
	}
	value, ok := s.fallback[key]
	return value, ok
}

// Set stores value under key.
func (s *Safe) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		_, _, err := s.guard("set", key, func() (string, bool, error) {
			return "", false, s.backend.Set(key, value)
		})
		if err == nil {
			delete(s.fallback, key)
			return
		}
	}
	s.fallback[key] = value
}

// Remove deletes key from both the backend and the fallback map.
func (s *Safe) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.fallback, key)
	if s.backend != nil {
		s.guard("remove", key, func() (string, bool, error) {
			return "", false, s.backend.Remove(key)
		})
	}
}

// guard runs fn, turning a panic into an error. Failures are logged at
// Warn since the caller carries on with the fallback.
func (s *Safe) guard(op, key string, fn func() (string, bool, error)) (value string, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("localstore: %s panicked: %v", op, r)
		}
		if err != nil {
			s.logger.Warn("local storage unavailable, using memory",
				slog.String("op", op),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}()
	return fn()
}
