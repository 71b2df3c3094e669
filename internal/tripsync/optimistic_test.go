package tripsync

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func toggle(i int) func([]bool) []bool {
	return func(s []bool) []bool {
		next := slices.Clone(s)
		next[i] = !next[i]
		return next
	}
}

func TestApplyOptimistic_Success(t *testing.T) {
	var shown [][]bool
	snapshot := []bool{false, false}

	res := ApplyOptimistic(context.Background(), snapshot, toggle(1),
		func(context.Context, []bool) error { return nil },
		func(s []bool) { shown = append(shown, s) })

	assert.True(t, res.OK())
	assert.False(t, res.Reverted)
	assert.Equal(t, []bool{false, true}, res.Value)
	assert.Equal(t, [][]bool{{false, true}}, shown)
}

func TestApplyOptimistic_RevertsOnFailure(t *testing.T) {
	var shown [][]bool
	snapshot := []bool{false, false}
	boom := errors.New("write failed")

	m := Mutation[[]bool]{
		Apply: toggle(0),
		Write: func(_ context.Context, next []bool) error {
			assert.Equal(t, []bool{true, false}, next)
			return boom
		},
	}
	res := m.Run(context.Background(), snapshot, func(s []bool) { shown = append(shown, s) })

	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, boom)
	assert.True(t, res.Reverted)
	assert.Equal(t, []bool{false, false}, res.Value)
	assert.Equal(t, [][]bool{{true, false}, {false, false}}, shown)
}
