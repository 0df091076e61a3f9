package app

import (
	"sync"
	"sync/atomic"

	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// Queue carries opportunities from detector workers to the composer. Submit
// never blocks: when the buffer is full the oldest entry is dropped and
// returned to the caller.
type Queue struct {
	ch        chan *oppdomain.Opportunity
	mu        sync.Mutex
	threshold int
	ready     chan struct{}
	dropped   atomic.Uint64
}

// NewQueue creates a queue holding size entries. Ready fires once the
// buffer holds threshold entries; threshold <= 0 disables it.
func NewQueue(size, threshold int) *Queue {
	if size <= 0 {
		size = 1024
	}
	return &Queue{
		ch:        make(chan *oppdomain.Opportunity, size),
		threshold: threshold,
		ready:     make(chan struct{}, 1),
	}
}

// Submit enqueues opp and returns the entry evicted to make room, if any.
func (q *Queue) Submit(opp *oppdomain.Opportunity) (dropped *oppdomain.Opportunity) {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case q.ch <- opp:
	default:
		select {
		case dropped = <-q.ch:
			q.dropped.Add(1)
		default:
		}
		q.ch <- opp
	}

	if q.threshold > 0 && len(q.ch) >= q.threshold {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return dropped
}

// Drain removes up to max entries without blocking; max <= 0 drains all.
func (q *Queue) Drain(max int) []*oppdomain.Opportunity {
	n := len(q.ch)
	if max > 0 && n > max {
		n = max
	}
	out := make([]*oppdomain.Opportunity, 0, n)
	for i := 0; i < n; i++ {
		select {
		case opp := <-q.ch:
			out = append(out, opp)
		default:
			return out
		}
	}
	return out
}

// Ready signals that the drain threshold was reached.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

func (q *Queue) Len() int { return len(q.ch) }
func (q *Queue) Cap() int { return cap(q.ch) }

// Dropped returns how many entries were evicted on overflow.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
