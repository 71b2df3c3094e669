package tripsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
)

type OperationStatus string

const (
	OperationPending   OperationStatus = "pending"
	OperationAbandoned OperationStatus = "abandoned"
)

// Operation is a mutation waiting for the network.
type Operation struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Status      OperationStatus `json:"status"`
	RetryCount  int             `json:"retryCount"`
	LastRetryAt time.Time       `json:"lastRetryAt"`
	LastError   string          `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// OperationHandler replays one kind of operation against the server.
type OperationHandler func(ctx context.Context, payload json.RawMessage) error

// Queue persists operations under QueueKey as an ordered JSON list.
//
// Each failed attempt bumps RetryCount and waits QueueBackoffBase·2^RetryCount
// before the next one. At QueueMaxRetries the operation is abandoned: it
// stays listed but is never attempted again until cleared.
type Queue struct {
	env Env

	// mu guards the persisted list; each read-modify-write holds it.
	mu       sync.Mutex
	handlers map[string]OperationHandler

	// processing serialises ProcessQueue passes.
	processing sync.Mutex
}

func NewQueue(env Env) *Queue {
	return &Queue{env: env.withDefaults(), handlers: make(map[string]OperationHandler)}
}

// Register sets the handler for kind.
func (q *Queue) Register(kind string, h OperationHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Enqueue appends an operation and returns its id. Identical payloads are
// queued as separate operations.
func (q *Queue) Enqueue(kind string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("tripsync: encoding %s payload: %w", kind, err)
	}

	op := Operation{
		ID:        xid.New().String(),
		Kind:      kind,
		Payload:   data,
		Status:    OperationPending,
		CreatedAt: q.env.Clock.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	ops := q.load()
	ops = append(ops, op)
	q.save(ops)

	q.env.Logger.Info("operation queued", slog.String("id", op.ID), slog.String("kind", kind))
	return op.ID, nil
}

// Operations returns a copy of the queue in order.
func (q *Queue) Operations() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// ProcessQueue attempts every pending operation whose backoff has elapsed.
// Each success is removed from storage before the next operation runs.
//
// It reports true when it ran and nothing it attempted failed. Offline, or
// while another pass is running, it does nothing and reports false.
func (q *Queue) ProcessQueue(ctx context.Context) bool {
	if !q.env.Network.Online() {
		return false
	}
	if !q.processing.TryLock() {
		return false
	}
	defer q.processing.Unlock()

	q.mu.Lock()
	pending := q.load()
	q.mu.Unlock()

	ok := true
	for _, op := range pending {
		if ctx.Err() != nil {
			return false
		}
		if op.Status == OperationAbandoned {
			continue
		}
		now := q.env.Clock.Now()
		if op.RetryCount > 0 && now.Sub(op.LastRetryAt) < q.env.Policy.queueBackoff(op.RetryCount) {
			continue
		}

		err := q.run(ctx, op)
		if err == nil {
			q.update(op.ID, nil)
			q.env.Logger.Info("queued operation synced", slog.String("id", op.ID), slog.String("kind", op.Kind))
			continue
		}

		ok = false
		q.update(op.ID, func(stored *Operation) {
			stored.RetryCount++
			stored.LastRetryAt = q.env.Clock.Now()
			stored.LastError = err.Error()
			if stored.RetryCount >= q.env.Policy.QueueMaxRetries {
				stored.Status = OperationAbandoned
			}
		})
		q.env.Logger.Warn("queued operation failed",
			slog.String("id", op.ID),
			slog.String("kind", op.Kind),
			slog.Int("retryCount", op.RetryCount+1),
			slog.String("error", err.Error()),
		)
	}
	return ok
}

func (q *Queue) run(ctx context.Context, op Operation) (err error) {
	q.mu.Lock()
	h, found := q.handlers[op.Kind]
	q.mu.Unlock()
	if !found {
		return fmt.Errorf("tripsync: no handler for operation kind %q", op.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tripsync: %s handler panicked: %v", op.Kind, r)
		}
	}()
	return h(ctx, op.Payload)
}

// update rewrites the stored operation with id. A nil change removes it.
// Operations cleared meanwhile are left alone.
func (q *Queue) update(id string, change func(*Operation)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load()
	for i := range ops {
		if ops[i].ID != id {
			continue
		}
		if change == nil {
			ops = append(ops[:i], ops[i+1:]...)
		} else {
			change(&ops[i])
		}
		q.save(ops)
		return
	}
}

// Run processes the queue when the network comes back and every
// QueueProcessInterval while online, until ctx is done.
func (q *Queue) Run(ctx context.Context) {
	changes, unwatch := q.env.Network.Watch()
	defer unwatch()

	ticker := time.NewTicker(q.env.Policy.QueueProcessInterval)
	defer ticker.Stop()

	q.ProcessQueue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case online := <-changes:
			if online {
				q.ProcessQueue(ctx)
			}
		case <-ticker.C:
			q.ProcessQueue(ctx)
		}
	}
}

// ClearAbandoned drops abandoned operations and reports how many.
func (q *Queue) ClearAbandoned() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load()
	kept := ops[:0]
	for _, op := range ops {
		if op.Status != OperationAbandoned {
			kept = append(kept, op)
		}
	}
	q.save(kept)
	return len(ops) - len(kept)
}

// Clear drops every operation.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.env.Store.Remove(QueueKey)
}

func (q *Queue) load() []Operation {
	raw, ok := q.env.Store.Get(QueueKey)
	if !ok {
		return []Operation{}
	}
	var ops []Operation
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		q.env.Logger.Error("offline queue unreadable, starting empty", slog.String("error", err.Error()))
		return []Operation{}
	}
	return ops
}

func (q *Queue) save(ops []Operation) {
	data, err := json.Marshal(ops)
	if err != nil {
		q.env.Logger.Error("encoding offline queue", slog.String("error", err.Error()))
		return
	}
	q.env.Store.Set(QueueKey, string(data))
}
