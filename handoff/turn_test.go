package handoff

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnSkipsWhenPreviousFrameStalls(t *testing.T) {
	turn := NewTurn(10 * time.Millisecond)
	stalled := make(chan struct{})

	out, err := turn.Run(func() (Fence, error) { return ChanFence(stalled), nil })
	require.NoError(t, err)
	assert.Equal(t, Submitted, out)

	calls := 0
	start := time.Now()
	out, err = turn.Run(func() (Fence, error) { calls++; return ChanFence(stalled), nil })
	require.NoError(t, err)
	assert.Equal(t, Skipped, out)
	assert.Equal(t, 0, calls)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, turn.Pending())

	close(stalled)
	done := make(chan struct{})
	close(done)
	out, err = turn.Run(func() (Fence, error) { calls++; return ChanFence(done), nil })
	require.NoError(t, err)
	assert.Equal(t, Submitted, out)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Stats{Submitted: 2, Skipped: 1}, turn.Stats())
	assert.NoError(t, turn.Drain(time.Millisecond))
	assert.False(t, turn.Pending())
}

func TestTurnPropagatesErrors(t *testing.T) {
	turn := NewTurn(time.Millisecond)
	boom := errors.New("device lost")
	_, err := turn.Run(func() (Fence, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, turn.Pending())
}

func TestFailedSubmitWithFenceStaysInFlight(t *testing.T) {
	turn := NewTurn(time.Millisecond)
	boom := errors.New("present failed")
	stalled := make(chan struct{})
	out, err := turn.Run(func() (Fence, error) { return ChanFence(stalled), boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Submitted, out)
	assert.True(t, turn.Pending())
	assert.Equal(t, Stats{Submitted: 1}, turn.Stats())
}

func TestDrainTimesOut(t *testing.T) {
	turn := NewTurn(time.Millisecond)
	_, err := turn.Run(func() (Fence, error) { return ChanFence(make(chan struct{})), nil })
	require.NoError(t, err)
	assert.Error(t, turn.Drain(5*time.Millisecond))
}
