package tripsync

import "context"

// Result is the outcome of an optimistic mutation. Value is the state the
// caller should show: the mutated state on success, the original on failure.
type Result[T any] struct {
	Value    T
	Err      error
	Reverted bool
}

func (r Result[T]) OK() bool { return r.Err == nil }

// Mutation pairs a local change with the write that makes it durable.
type Mutation[T any] struct {
	Apply func(T) T
	Write func(ctx context.Context, next T) error
}

// Run applies the mutation to current. See ApplyOptimistic.
func (m Mutation[T]) Run(ctx context.Context, current T, show func(T)) Result[T] {
	return ApplyOptimistic(ctx, current, m.Apply, m.Write, show)
}

// ApplyOptimistic shows apply(snapshot) immediately, then runs write. If the
// write fails the snapshot is shown again and returned with the error.
// show may be nil. apply must return a new value, not modify snapshot.
func ApplyOptimistic[T any](ctx context.Context, snapshot T, apply func(T) T, write func(context.Context, T) error, show func(T)) Result[T] {
	next := apply(snapshot)
	if show != nil {
		show(next)
	}
	if err := write(ctx, next); err != nil {
		if show != nil {
			show(snapshot)
		}
		return Result[T]{Value: snapshot, Err: err, Reverted: true}
	}
	return Result[T]{Value: next}
}
