package gate

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is the settled result of a pending call.
type Outcome struct {
	Response *Response
	Err      error
}

// Waiter is one caller blocked on a PendingCall. Several callers issuing
// the same logical request share a PendingCall and each hold a Waiter.
type Waiter struct {
	result chan Outcome
	call   *PendingCall
}

// Done delivers the outcome once the pending call is settled.
func (w *Waiter) Done() <-chan Outcome { return w.result }

// PendingCall is a call suspended until verification is granted.
type PendingCall struct {
	ID          string
	Fingerprint Fingerprint
	Call        *Call
	EnqueuedAt  time.Time

	mu      sync.Mutex
	waiters []*Waiter
	settled bool
}

// Waiters returns the number of callers still waiting on p.
func (p *PendingCall) Waiters() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Settle delivers o to every waiter. Only the first call has any effect.
func (p *PendingCall) Settle(o Outcome) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	ws := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range ws {
		// Buffered with capacity 1 and written exactly once: never blocks.
		w.result <- o
	}
	return true
}

func (p *PendingCall) addWaiter() *Waiter {
	w := &Waiter{result: make(chan Outcome, 1), call: p}
	p.waiters = append(p.waiters, w)
	return w
}

// removeWaiter drops w and reports how many waiters remain.
func (p *PendingCall) removeWaiter(w *Waiter) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, x := range p.waiters {
		if x == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	return len(p.waiters)
}

// PendingQueue holds suspended calls in FIFO order, merging calls with the
// same fingerprint into a single entry.
type PendingQueue struct {
	mu      sync.Mutex
	entries []*PendingCall
	index   map[Fingerprint]*PendingCall
	now     func() time.Time
	metrics *Metrics
}

// NewPendingQueue creates an empty queue. metrics may be nil.
func NewPendingQueue(metrics *Metrics) *PendingQueue {
	return &PendingQueue{
		index:   make(map[Fingerprint]*PendingCall),
		now:     time.Now,
		metrics: metrics,
	}
}

// Enqueue suspends call. If an entry with the same request is already
// queued the caller is merged onto it and merged is true.
func (q *PendingQueue) Enqueue(call *Call) (p *PendingCall, w *Waiter, merged bool) {
	p, w, merged, _ = q.EnqueueIf(call, func() bool { return true })
	return p, w, merged
}

// EnqueueIf evaluates blocked while holding the queue lock and enqueues call
// only if it returns true. DrainAll takes the same lock, so a decision made
// here can never race a drain: either the entry is drained, or blocked ran
// after the drain and saw its effects.
func (q *PendingQueue) EnqueueIf(call *Call, blocked func() bool) (p *PendingCall, w *Waiter, merged, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !blocked() {
		return nil, nil, false, false
	}

	fp := FingerprintOf(call)
	if existing, found := q.index[fp]; found && sameRequest(existing.Call, call) {
		existing.mu.Lock()
		w = existing.addWaiter()
		existing.mu.Unlock()
		q.metrics.callMerged()
		return existing, w, true, true
	}

	p = &PendingCall{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		Call:        call.Clone(),
		EnqueuedAt:  q.now().UTC(),
	}
	w = p.addWaiter()
	q.entries = append(q.entries, p)
	if _, taken := q.index[fp]; !taken {
		q.index[fp] = p
	}
	q.metrics.callQueued(len(q.entries))
	return p, w, false, true
}

// DrainAll removes and returns every entry in enqueue order.
func (q *PendingQueue) DrainAll() []*PendingCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainLocked()
}

func (q *PendingQueue) drainLocked() []*PendingCall {
	out := q.entries
	q.entries = nil
	q.index = make(map[Fingerprint]*PendingCall)
	q.metrics.setPending(0)
	return out
}

// PurgeAll empties the queue and settles every entry with reason.
// Returns the number of entries purged.
func (q *PendingQueue) PurgeAll(reason error) int {
	return q.PurgeWith(reason, nil)
}

// PurgeWith runs reset and empties the queue under one hold of the queue
// lock, then settles every purged entry with reason. A call enqueued through
// EnqueueIf lands either before both or after both.
func (q *PendingQueue) PurgeWith(reason error, reset func()) int {
	q.mu.Lock()
	if reset != nil {
		reset()
	}
	entries := q.drainLocked()
	q.mu.Unlock()

	for _, p := range entries {
		p.Settle(Outcome{Err: reason})
	}
	q.metrics.callsPurged(len(entries))
	return len(entries)
}

// Detach removes w from its entry, for a caller that stopped waiting. An
// entry left with no waiters is dropped from the queue.
func (q *PendingQueue) Detach(w *Waiter) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := w.call
	if p.removeWaiter(w) > 0 {
		return
	}
	for i, e := range q.entries {
		if e == p {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			if q.index[p.Fingerprint] == p {
				delete(q.index, p.Fingerprint)
			}
			q.metrics.setPending(len(q.entries))
			return
		}
	}
}

// Len returns the number of queued entries.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
