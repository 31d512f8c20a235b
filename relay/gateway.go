// Package relay implements the Relay Gateway: a thin, connection-pooled
// wrapper around a set of Nostr relay URLs used to publish signed events and
// stream subscriptions back to the Orchestrator.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"mostro-client-go/internal/merrors"
	"mostro-client-go/metrics"
)

// DefaultSubscriptionQueueSize bounds the buffered channel each Subscription
// drains incoming events into.
const DefaultSubscriptionQueueSize = 128

// DefaultPublishTimeout bounds how long Publish waits for at least one relay
// to accept an event.
const DefaultPublishTimeout = 10 * time.Second

type subscriptionState struct {
	queue chan *nostr.Event
	done  chan struct{}
	once  sync.Once
}

func newSubscriptionState(size int) *subscriptionState {
	if size <= 0 {
		size = DefaultSubscriptionQueueSize
	}
	return &subscriptionState{
		queue: make(chan *nostr.Event, size),
		done:  make(chan struct{}),
	}
}

func (s *subscriptionState) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Subscription is a live filter subscription across every connected relay.
// Events is closed once the subscription is cancelled or the Gateway
// disconnects.
type Subscription struct {
	Events <-chan *nostr.Event
	state  *subscriptionState
	cancel context.CancelFunc
}

// Close stops the subscription and releases its underlying goroutine.
func (s *Subscription) Close() {
	s.state.close()
	s.cancel()
}

// Gateway owns a go-nostr connection pool and the set of relay URLs the
// client publishes to and subscribes against.
type Gateway struct {
	mu     sync.RWMutex
	pool   *nostr.SimplePool
	cancel context.CancelFunc
	relays []string

	queueSize      int
	publishTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.ClientMetrics

	published atomic.Uint64
	dropped   atomic.Uint64

	connected bool
}

// Option customises Gateway construction.
type Option func(*Gateway)

// WithQueueSize overrides the default per-subscription buffered queue size.
func WithQueueSize(size int) Option {
	return func(g *Gateway) {
		if size > 0 {
			g.queueSize = size
		}
	}
}

// WithPublishTimeout overrides how long Publish waits for an acknowledgement
// from at least one relay before giving up.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.publishTimeout = timeout
		}
	}
}

// WithLogger attaches a structured logger for connection and publish
// diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics attaches a Prometheus metrics sink. Pass metrics.Client() to
// record to the process-wide registry, or nil (the default) to disable
// instrumentation entirely.
func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New constructs a Gateway with no relays connected yet.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		queueSize:      DefaultSubscriptionQueueSize,
		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Connect establishes the underlying pool against the given relay URLs. Each
// URL is pre-warmed with EnsureRelay so early publishes don't pay dial
// latency; a URL that fails to connect is logged and skipped rather than
// failing the whole call, since Mostro clients are expected to tolerate a
// partially reachable relay set.
func (g *Gateway) Connect(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return merrors.ErrNoRelays
	}

	poolCtx, cancel := context.WithCancel(context.Background())
	pool := nostr.NewSimplePool(poolCtx)

	reachable := make([]string, 0, len(urls))
	for _, url := range urls {
		if _, err := pool.EnsureRelay(url); err != nil {
			if g.logger != nil {
				g.logger.Warn("relay gateway: connect failed", slog.String("url", url), slog.Any("error", err))
			}
			continue
		}
		reachable = append(reachable, url)
	}
	if len(reachable) == 0 {
		cancel()
		return merrors.ErrNotConnected
	}

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	g.pool = pool
	g.cancel = cancel
	g.relays = reachable
	g.connected = true
	g.mu.Unlock()

	if g.logger != nil {
		g.logger.Info("relay gateway: connected", slog.Int("relay_count", len(reachable)))
	}
	return nil
}

// Relays returns the set of relay URLs the gateway successfully connected
// to, in no particular order.
func (g *Gateway) Relays() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.relays))
	copy(out, g.relays)
	return out
}

// Connected reports whether Connect has succeeded and Disconnect has not
// since been called.
func (g *Gateway) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// Publish broadcasts a signed event to every connected relay and succeeds as
// soon as at least one relay accepts it. It returns ErrPublishFailed if every
// relay rejects the event or the publish timeout elapses first.
func (g *Gateway) Publish(ctx context.Context, event *nostr.Event) error {
	g.mu.RLock()
	pool := g.pool
	relays := g.relays
	connected := g.connected
	g.mu.RUnlock()

	if !connected || pool == nil {
		return merrors.ErrNotConnected
	}
	if event == nil {
		return fmt.Errorf("relay gateway: publish: %w: nil event", merrors.ErrPublishFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, g.publishTimeout)
	defer cancel()

	results := pool.PublishMany(ctx, relays, *event)
	var lastErr error
	accepted := 0
	for res := range results {
		if res.Error != nil {
			lastErr = res.Error
			g.dropped.Add(1)
			continue
		}
		accepted++
		g.published.Add(1)
	}
	if accepted > 0 {
		g.metrics.RecordPublish(nil)
		return nil
	}
	if lastErr != nil {
		err := fmt.Errorf("relay gateway: publish: %w: %v", merrors.ErrPublishFailed, lastErr)
		g.metrics.RecordPublish(err)
		return err
	}
	g.metrics.RecordPublish(merrors.ErrPublishFailed)
	return merrors.ErrPublishFailed
}

// Subscribe opens a long-lived subscription against filter across every
// connected relay. The returned Subscription's Events channel is closed when
// the subscription is explicitly closed or the Gateway disconnects.
func (g *Gateway) Subscribe(ctx context.Context, filter nostr.Filter) (*Subscription, error) {
	g.mu.RLock()
	pool := g.pool
	relays := g.relays
	connected := g.connected
	g.mu.RUnlock()

	if !connected || pool == nil {
		return nil, merrors.ErrNotConnected
	}

	subCtx, cancel := context.WithCancel(ctx)
	state := newSubscriptionState(g.queueSize)

	incoming := pool.SubscribeMany(subCtx, relays, filter)

	go func() {
		defer close(state.queue)
		for {
			select {
			case <-state.done:
				return
			case ie, ok := <-incoming:
				if !ok {
					return
				}
				if ie.Event == nil {
					continue
				}
				g.metrics.RecordSubscriptionEvent(ie.Event.Kind)
				select {
				case state.queue <- ie.Event:
				default:
					g.dropped.Add(1)
					g.metrics.RecordDrop("queue_saturated")
					if g.logger != nil {
						g.logger.Warn("relay gateway: subscription queue saturated, dropping event",
							slog.String("event_id", ie.Event.ID))
					}
				}
			}
		}
	}()

	return &Subscription{Events: state.queue, state: state, cancel: cancel}, nil
}

// Disconnect tears down the pool and all outstanding subscriptions. Safe to
// call multiple times.
func (g *Gateway) Disconnect() error {
	g.mu.Lock()
	cancel := g.cancel
	pool := g.pool
	g.cancel = nil
	g.pool = nil
	g.relays = nil
	wasConnected := g.connected
	g.connected = false
	g.mu.Unlock()

	if !wasConnected {
		return nil
	}
	if pool != nil {
		pool.Close("client disconnect")
	}
	if cancel != nil {
		cancel()
	}
	if g.logger != nil {
		g.logger.Info("relay gateway: disconnected")
	}
	return nil
}

// Stats reports cumulative publish/drop counters, primarily for metrics
// collection.
func (g *Gateway) Stats() (published, dropped uint64) {
	return g.published.Load(), g.dropped.Load()
}
