package devnet

import (
	"sync"

	"github.com/blockberries/devberry/types"
)

// updateQueue delivers updates in order through an unbuffered channel without
// ever blocking the producer
type updateQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []types.Update
	closed bool

	out       chan types.Update
	done      chan struct{}
	closeOnce sync.Once
}

func newUpdateQueue() *updateQueue {
	q := &updateQueue{
		out:  make(chan types.Update),
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.pump()
	return q
}

// push appends an update. Updates pushed after close are dropped.
func (q *updateQueue) push(u types.Update) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, u)
	q.cond.Signal()
}

// close stops delivery and closes the output channel. Queued updates that
// were not yet received are discarded.
func (q *updateQueue) close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.cond.Broadcast()
		q.mu.Unlock()
		close(q.done)
	})
}

func (q *updateQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		u := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- u:
		case <-q.done:
			return
		}
	}
}
