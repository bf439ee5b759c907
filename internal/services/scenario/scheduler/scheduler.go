// Package scheduler runs deferred callbacks on a virtual clock.
//
// Time only moves when the owner calls Advance, so stage-transition delays and
// voting countdowns are driven by the same authority loop that mutates the
// rest of the session state. Callbacks run on the caller's goroutine.
package scheduler

import (
	"container/heap"
	"time"
)

// Token identifies a scheduled callback. The zero Token is never issued.
type Token uint64

// Scheduler is a priority queue of (fire time, sequence, callback). It is not
// safe for concurrent use.
type Scheduler struct {
	now   time.Duration
	seq   uint64
	queue taskQueue
	live  map[Token]*task
}

type task struct {
	fireAt time.Duration
	seq    uint64
	token  Token
	fn     func()
	index  int
}

// New returns an empty scheduler at virtual time zero.
func New() *Scheduler {
	return &Scheduler{live: make(map[Token]*task)}
}

// Now reports the current virtual time.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Schedule queues fn to run once delay has elapsed. Negative delays count as
// zero; a zero-delay callback fires on the next Advance.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) Token {
	if fn == nil {
		return 0
	}
	if delay < 0 {
		delay = 0
	}
	s.seq++
	t := &task{
		fireAt: s.now + delay,
		seq:    s.seq,
		token:  Token(s.seq),
		fn:     fn,
	}
	heap.Push(&s.queue, t)
	s.live[t.token] = t
	return t.token
}

// Cancel drops a pending callback. It reports whether anything was removed.
func (s *Scheduler) Cancel(token Token) bool {
	t, ok := s.live[token]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, t.index)
	delete(s.live, token)
	return true
}

// CancelAll drops every pending callback.
func (s *Scheduler) CancelAll() {
	s.queue = nil
	clear(s.live)
}

// Pending reports the number of queued callbacks.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// Remaining reports how long until token fires.
func (s *Scheduler) Remaining(token Token) (time.Duration, bool) {
	t, ok := s.live[token]
	if !ok {
		return 0, false
	}
	return t.fireAt - s.now, true
}

// Advance moves the clock forward by d and runs every callback that falls due,
// in fire-time then scheduling order. Callbacks scheduled while advancing run
// in the same call when they fall inside the window. It returns the number of
// callbacks run.
func (s *Scheduler) Advance(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	target := s.now + d
	fired := 0
	for len(s.queue) > 0 && s.queue[0].fireAt <= target {
		t := heap.Pop(&s.queue).(*task)
		delete(s.live, t.token)
		if t.fireAt > s.now {
			s.now = t.fireAt
		}
		t.fn()
		fired++
	}
	s.now = target
	return fired
}

// Generation is a version counter for guarding deferred callbacks against
// intervening state changes.
type Generation struct {
	n uint64
}

// Bump invalidates every guard issued so far.
func (g *Generation) Bump() uint64 {
	g.n++
	return g.n
}

// Current reports the live generation.
func (g *Generation) Current() uint64 {
	return g.n
}

// Guard wraps fn so it runs only if no Bump happened in between.
func (g *Generation) Guard(fn func()) func() {
	want := g.n
	return func() {
		if g.n == want {
			fn()
		}
	}
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].fireAt != q[j].fireAt {
		return q[i].fireAt < q[j].fireAt
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
