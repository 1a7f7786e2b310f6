package handoff

import (
	"fmt"
	"time"
)

// Fence reports completion of a submitted frame.
type Fence interface {
	// Wait blocks at most timeout and reports whether the fence completed.
	Wait(timeout time.Duration) (bool, error)
}

type Outcome int

const (
	Submitted Outcome = iota
	Skipped
)

func (o Outcome) String() string {
	if o == Submitted {
		return "submitted"
	}
	return "skipped"
}

type Stats struct {
	Submitted uint64
	Skipped   uint64
}

// Turn keeps at most one frame of one side in flight. A new frame first
// waits for the previous frame's fence; if that does not complete within
// the timeout the frame is skipped, so a peer that stops signaling costs
// dropped frames instead of a hung render thread.
type Turn struct {
	timeout time.Duration
	pending Fence
	stats   Stats
}

func NewTurn(timeout time.Duration) *Turn {
	return &Turn{timeout: timeout}
}

// Ready waits for the previous frame. A false result means skip this frame.
func (t *Turn) Ready() (bool, error) {
	if t.pending == nil {
		return true, nil
	}
	done, err := t.pending.Wait(t.timeout)
	if err != nil {
		return false, err
	}
	if !done {
		return false, nil
	}
	t.pending = nil
	return true, nil
}

// Run performs one frame: submit is called only when the previous frame has
// completed and returns the fence of the new submission. A submit that fails
// after its work was queued returns the fence together with the error, and
// the frame still counts as in flight.
func (t *Turn) Run(submit func() (Fence, error)) (Outcome, error) {
	ok, err := t.Ready()
	if err != nil {
		return Skipped, err
	}
	if !ok {
		t.stats.Skipped++
		return Skipped, nil
	}
	f, err := submit()
	if f == nil {
		return Skipped, err
	}
	t.pending = f
	t.stats.Submitted++
	return Submitted, err
}

// Drain waits for the in-flight frame before teardown.
func (t *Turn) Drain(timeout time.Duration) error {
	if t.pending == nil {
		return nil
	}
	done, err := t.pending.Wait(timeout)
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("handoff: frame still in flight after %s", timeout)
	}
	t.pending = nil
	return nil
}

func (t *Turn) Pending() bool {
	return t.pending != nil
}

func (t *Turn) Stats() Stats {
	return t.stats
}

// ChanFence adapts a channel closed on completion to a Fence.
type ChanFence <-chan struct{}

func (c ChanFence) Wait(timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		select {
		case <-c:
			return true, nil
		default:
			return false, nil
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}
