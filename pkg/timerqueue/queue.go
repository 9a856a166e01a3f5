// Package timerqueue provides a cooperative, priority-ordered delay queue.
// Events are ordered by due time, then by priority (lower first), then by
// the order they were scheduled. Callbacks run synchronously on the goroutine
// that calls RunPending and are never invoked concurrently.
//
// The queue is not safe for concurrent use; it is meant to be owned by a
// single scheduling goroutine. Callbacks may schedule and cancel events,
// including rescheduling themselves.
package timerqueue

import (
	"container/heap"
	"context"
	"errors"
	"time"
)

// ErrReentrant is returned by RunPending when it is called from inside a
// callback that RunPending itself is executing.
var ErrReentrant = errors.New("timerqueue: RunPending called from a callback")

// Token identifies a scheduled event. The zero Token is never issued, so it
// can be used as "no event".
type Token uint64

// Handler receives each event when it fires, along with the time it was due.
type Handler[E any] func(due time.Time, payload E)

type item[E any] struct {
	due      time.Time
	priority int
	seq      uint64
	token    Token
	payload  E
	index    int
}

// Queue is a timer queue carrying payloads of type E.
type Queue[E any] struct {
	clock   Clock
	handle  Handler[E]
	items   itemHeap[E]
	byToken map[Token]*item[E]
	seq     uint64
	running bool
}

// New returns an empty queue that reads time from clock and delivers fired
// events to handle.
func New[E any](clock Clock, handle Handler[E]) *Queue[E] {
	if clock == nil {
		clock = RealClock{}
	}
	return &Queue[E]{
		clock:   clock,
		handle:  handle,
		byToken: make(map[Token]*item[E]),
	}
}

// Clock returns the queue's time source.
func (q *Queue[E]) Clock() Clock {
	return q.clock
}

// Schedule enqueues payload to fire delay from now.
func (q *Queue[E]) Schedule(delay time.Duration, priority int, payload E) Token {
	return q.ScheduleAt(q.clock.Now().Add(delay), priority, payload)
}

// ScheduleAt enqueues payload to fire at due. A due time in the past fires
// on the next RunPending.
func (q *Queue[E]) ScheduleAt(due time.Time, priority int, payload E) Token {
	q.seq++
	it := &item[E]{
		due:      due,
		priority: priority,
		seq:      q.seq,
		token:    Token(q.seq),
		payload:  payload,
	}
	heap.Push(&q.items, it)
	q.byToken[it.token] = it
	return it.token
}

// Cancel removes the event identified by tok. It reports whether an event
// was actually removed; cancelling a fired, cancelled or unknown token is a
// no-op.
func (q *Queue[E]) Cancel(tok Token) bool {
	it, ok := q.byToken[tok]
	if !ok {
		return false
	}
	delete(q.byToken, tok)
	heap.Remove(&q.items, it.index)
	return true
}

// CancelAll drops every pending event.
func (q *Queue[E]) CancelAll() {
	q.items = nil
	clear(q.byToken)
}

// Pending reports whether tok still refers to an event waiting to fire.
func (q *Queue[E]) Pending(tok Token) bool {
	_, ok := q.byToken[tok]
	return ok
}

// Len returns the number of pending events.
func (q *Queue[E]) Len() int {
	return len(q.items)
}

// NextDue returns the due time of the earliest pending event.
func (q *Queue[E]) NextDue() (time.Time, bool) {
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].due, true
}

// RunPending fires every event whose due time has arrived, in order. Events
// that callbacks schedule as already due fire in the same call. When
// blocking is true and events remain, RunPending then waits until the next
// due time before returning; the wait ends early with ctx.Err() if ctx is
// cancelled. An empty queue returns immediately.
func (q *Queue[E]) RunPending(ctx context.Context, blocking bool) error {
	if q.running {
		return ErrReentrant
	}
	q.running = true
	defer func() { q.running = false }()

	for len(q.items) > 0 {
		next := q.items[0]
		now := q.clock.Now()
		if next.due.After(now) {
			if !blocking {
				return nil
			}
			return q.clock.Sleep(ctx, next.due.Sub(now))
		}
		heap.Pop(&q.items)
		delete(q.byToken, next.token)
		if q.handle != nil {
			q.handle(next.due, next.payload)
		}
	}
	return nil
}

// itemHeap implements heap.Interface ordered by (due, priority, seq).
type itemHeap[E any] []*item[E]

func (h itemHeap[E]) Len() int { return len(h) }

func (h itemHeap[E]) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.due.Equal(b.due) {
		return a.due.Before(b.due)
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

func (h itemHeap[E]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap[E]) Push(x any) {
	it := x.(*item[E])
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap[E]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
