package handoff

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binarySemaphore models a GPU binary semaphore: each signal satisfies
// exactly one wait, and waits are matched in the order they were submitted.
type binarySemaphore struct {
	mu       sync.Mutex
	signaled bool
	waiters  []chan struct{}
}

func (s *binarySemaphore) enqueueWait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.dispatch()
	return ch
}

func (s *binarySemaphore) signal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signaled = true
	s.dispatch()
}

func (s *binarySemaphore) dispatch() {
	if s.signaled && len(s.waiters) > 0 {
		close(s.waiters[0])
		s.waiters = s.waiters[1:]
		s.signaled = false
	}
}

type job struct {
	wait  <-chan struct{}
	work  func()
	fence chan struct{}
}

// queue is one process's GPU timeline: jobs run in submission order, each
// waiting on and then signaling the shared semaphore.
type queue struct {
	sem  *binarySemaphore
	jobs chan job
}

func newQueue(sem *binarySemaphore) *queue {
	q := &queue{sem: sem, jobs: make(chan job, 64)}
	go func() {
		for j := range q.jobs {
			<-j.wait
			j.work()
			q.sem.signal()
			close(j.fence)
		}
	}()
	return q
}

func (q *queue) submit(work func()) (Fence, error) {
	j := job{wait: q.sem.enqueueWait(), work: work, fence: make(chan struct{})}
	q.jobs <- j
	return ChanFence(j.fence), nil
}

func TestAlternationNeverReadsAhead(t *testing.T) {
	const frames = 200
	// The creator's initial signal lets the first waiter through.
	sem := &binarySemaphore{signaled: true}
	producerQ, consumerQ := newQueue(sem), newQueue(sem)
	defer close(producerQ.jobs)
	defer close(consumerQ.jobs)

	var image int
	observed := make([]int, frames+1)
	producer, consumer := NewTurn(time.Second), NewTurn(time.Second)

	for k := 1; k <= frames; k++ {
		k := k
		out, err := producer.Run(func() (Fence, error) {
			return producerQ.submit(func() { image = k })
		})
		require.NoError(t, err)
		require.Equal(t, Submitted, out)

		out, err = consumer.Run(func() (Fence, error) {
			return consumerQ.submit(func() { observed[k] = image })
		})
		require.NoError(t, err)
		require.Equal(t, Submitted, out)
	}
	require.NoError(t, producer.Drain(time.Second))
	require.NoError(t, consumer.Drain(time.Second))

	for k := 1; k <= frames; k++ {
		assert.LessOrEqual(t, observed[k], k, "consumer frame %d read ahead", k)
		assert.Equal(t, k, observed[k])
	}
}

func TestProducerSkipsWhenConsumerStops(t *testing.T) {
	sem := &binarySemaphore{signaled: true}
	producerQ := newQueue(sem)
	defer close(producerQ.jobs)

	producer := NewTurn(20 * time.Millisecond)
	submit := func() (Fence, error) { return producerQ.submit(func() {}) }

	out, err := producer.Run(submit)
	require.NoError(t, err)
	require.Equal(t, Submitted, out)

	// The consumer takes its turn and dies before signaling.
	sem.enqueueWait()

	out, err = producer.Run(submit)
	require.NoError(t, err)
	require.Equal(t, Submitted, out)

	// That frame now waits forever on the GPU; the next one is skipped
	// instead of blocking the render thread.
	start := time.Now()
	out, err = producer.Run(submit)
	require.NoError(t, err)
	assert.Equal(t, Skipped, out)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Stats{Submitted: 2, Skipped: 1}, producer.Stats())
}
