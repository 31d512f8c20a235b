// Package correlator implements the Request Correlator: allocation of
// monotonically increasing request ids with timeout-bound completions (Mode
// 1), and a second correlation mode keyed on (action, order-id) for
// unsolicited server-initiated updates (Mode 2).
package correlator

import (
	"sync"
	"sync/atomic"
	"time"

	"mostro-client-go/internal/merrors"
	"mostro-client-go/message"
	"mostro-client-go/metrics"
)

// DefaultRequestTimeout is the default Mode-1 completion deadline.
const DefaultRequestTimeout = 10 * time.Second

// DefaultSearchTimeout is the window search_orders waits for matches.
const DefaultSearchTimeout = 5 * time.Second

// Completion is a single-shot handle for a pending request. Exactly one of
// resolve/reject ever fires, whichever happens first among a matching
// reply, the deadline, or an explicit Disconnect.
type Completion struct {
	ch   chan result
	once sync.Once
}

type result struct {
	msg message.MostroMessage
	err error
}

// Wait blocks until the completion is resolved or rejected (by a matching
// reply, its deadline, or Disconnect). It takes no context of its own.
func (c *Completion) Wait() (message.MostroMessage, error) {
	r := <-c.ch
	return r.msg, r.err
}

func newCompletion() *Completion {
	return &Completion{ch: make(chan result, 1)}
}

func (c *Completion) resolve(msg message.MostroMessage) {
	c.once.Do(func() {
		c.ch <- result{msg: msg}
	})
}

func (c *Completion) reject(err error) {
	c.once.Do(func() {
		c.ch <- result{err: err}
	})
}

type pendingRequest struct {
	id         uint32
	completion *Completion
	timer      *time.Timer
	startedAt  time.Time
}

type waiterKey struct {
	action  message.Action
	orderID string
}

type waiter struct {
	completion *Completion
	timer      *time.Timer
	key        waiterKey
}

// Correlator owns the pending-requests table, the only mutable shared
// structure in this package; all access is serialized through mu so the
// type is safe for concurrent use from multiple goroutines.
type Correlator struct {
	mu      sync.Mutex
	nextID  atomic.Uint32
	pending map[uint32]*pendingRequest
	waiters map[waiterKey][]*waiter

	// onUnmatched is invoked for every decoded message that matches neither
	// an outstanding Mode-1 request nor a Mode-2 waiter. The Orchestrator
	// passes nil and emits the general "dm" event itself for every message.
	onUnmatched func(message.MostroMessage)

	metrics *metrics.ClientMetrics
}

// New constructs an empty Correlator. onUnmatched may be nil.
func New(onUnmatched func(message.MostroMessage)) *Correlator {
	return &Correlator{
		pending:     make(map[uint32]*pendingRequest),
		waiters:     make(map[waiterKey][]*waiter),
		onUnmatched: onUnmatched,
	}
}

// WithMetrics attaches a Prometheus metrics sink, recording pending-request
// backlog and per-request latency. Pass metrics.Client() for the
// process-wide registry.
func (c *Correlator) WithMetrics(m *metrics.ClientMetrics) *Correlator {
	c.metrics = m
	return c
}

// BeginRequest allocates the next request id and a completion that will be
// resolved by a matching Deliver, or rejected with ErrTimeout after timeout
// elapses (or ErrDisconnected on Disconnect). BeginRequest never blocks.
func (c *Correlator) BeginRequest(timeout time.Duration) (uint32, *Completion) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	id := c.nextID.Add(1) - 1
	completion := newCompletion()

	c.mu.Lock()
	pr := &pendingRequest{id: id, completion: completion, startedAt: time.Now()}
	pr.timer = time.AfterFunc(timeout, func() { c.expire(id) })
	c.pending[id] = pr
	pendingCount := len(c.pending)
	c.mu.Unlock()
	c.metrics.SetPendingRequests(pendingCount)

	return id, completion
}

// Deliver fulfils the pending record for id, if any, with msg. The first
// reply with a matching id wins; duplicate deliveries for an id already
// resolved or evicted are ignored. It returns true if a record was found and
// resolved.
func (c *Correlator) Deliver(id uint32, msg message.MostroMessage) bool {
	c.mu.Lock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	pendingCount := len(c.pending)
	c.mu.Unlock()
	if !ok {
		return false
	}
	pr.timer.Stop()
	c.metrics.SetPendingRequests(pendingCount)
	c.metrics.RecordRequestOutcome("delivered", time.Since(pr.startedAt))
	pr.completion.resolve(msg)
	return true
}

func (c *Correlator) expire(id uint32) {
	c.mu.Lock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	pendingCount := len(c.pending)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.metrics.SetPendingRequests(pendingCount)
	c.metrics.RecordRequestOutcome("timeout", time.Since(pr.startedAt))
	pr.completion.reject(merrors.ErrTimeout)
}

// AwaitAction registers a Mode-2 waiter on (action, orderID). Multiple
// concurrent waiters are permitted on the same or distinct keys; all
// matching waiters complete on the first message that matches their key.
func (c *Correlator) AwaitAction(action message.Action, orderID string, timeout time.Duration) *Completion {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	key := waiterKey{action: action, orderID: orderID}
	completion := newCompletion()
	w := &waiter{completion: completion, key: key}

	c.mu.Lock()
	w.timer = time.AfterFunc(timeout, func() { c.expireWaiter(w) })
	c.waiters[key] = append(c.waiters[key], w)
	c.mu.Unlock()

	return completion
}

func (c *Correlator) expireWaiter(w *waiter) {
	c.mu.Lock()
	list := c.waiters[w.key]
	for i, cand := range list {
		if cand == w {
			c.waiters[w.key] = append(list[:i], list[i+1:]...)
			if len(c.waiters[w.key]) == 0 {
				delete(c.waiters, w.key)
			}
			break
		}
	}
	c.mu.Unlock()
	w.completion.reject(merrors.ErrTimeout)
}

// Route attempts Mode-1 resolution by request_id, then unconditionally also
// attempts Mode-2 matching on (action, order-id), per the Orchestrator's
// dual-dispatch routing rule. If neither matches, onUnmatched is invoked.
func (c *Correlator) Route(msg message.MostroMessage) {
	matchedMode1 := false
	if id, ok := msg.RequestID(); ok {
		matchedMode1 = c.Deliver(id, msg)
	}

	matchedMode2 := false
	if action, orderID, ok := msg.ActionOrderID(); ok {
		key := waiterKey{action: action, orderID: orderID}
		c.mu.Lock()
		list := c.waiters[key]
		delete(c.waiters, key)
		c.mu.Unlock()
		for _, w := range list {
			w.timer.Stop()
			w.completion.resolve(msg)
			matchedMode2 = true
		}
	}

	if !matchedMode1 && !matchedMode2 && c.onUnmatched != nil {
		c.onUnmatched(msg)
	}
}

// Disconnect fails every outstanding Mode-1 and Mode-2 waiter with
// ErrDisconnected and clears the table. Idempotent.
func (c *Correlator) Disconnect() {
	c.mu.Lock()
	pending := c.pending
	waiters := c.waiters
	c.pending = make(map[uint32]*pendingRequest)
	c.waiters = make(map[waiterKey][]*waiter)
	c.mu.Unlock()

	c.metrics.SetPendingRequests(0)
	for _, pr := range pending {
		pr.timer.Stop()
		c.metrics.RecordRequestOutcome("disconnected", time.Since(pr.startedAt))
		pr.completion.reject(merrors.ErrDisconnected)
	}
	for _, list := range waiters {
		for _, w := range list {
			w.timer.Stop()
			w.completion.reject(merrors.ErrDisconnected)
		}
	}
}

// PendingCount reports the number of outstanding Mode-1 records; used by
// tests asserting the table empties out after a timeout.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
