// Package dispatcher implements the Trade Action Dispatcher: it turns each
// public trade operation (submit_order, take_sell, take_buy, add_invoice,
// release, fiat_sent, cancel, dispute, rate_counterpart) into a MostroMessage
// payload, gift-wraps it to the configured Mostro instance, publishes it, and
// returns the Mode-1 completion the caller awaits for the reply.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"

	"mostro-client-go/correlator"
	"mostro-client-go/giftwrap"
	"mostro-client-go/internal/merrors"
	"mostro-client-go/keys"
	"mostro-client-go/message"
	"mostro-client-go/order"
)

// Clock abstracts wall-clock reads so tests can supply a fixed time.
type Clock func() int64

// Publisher is the subset of the Relay Gateway the Dispatcher depends on;
// *relay.Gateway satisfies it. Narrowing to an interface keeps this package
// unit-testable without a live relay connection.
type Publisher interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// Dispatcher wires the Key Store, Relay Gateway, Request Correlator and
// Gift-Wrap Builder together into the trade operations, including the
// dispute and rating operations the protocol's action set implies.
type Dispatcher struct {
	keys           *keys.Store
	gateway        Publisher
	correlator     *correlator.Correlator
	mostroPubkey   string
	requestTimeout time.Duration
	clock          Clock
	random         giftwrap.RandomSource
	logger         *slog.Logger
}

// Option customises Dispatcher construction.
type Option func(*Dispatcher)

// WithRequestTimeout overrides the default Mode-1 completion deadline used
// for every dispatched action.
func WithRequestTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.requestTimeout = d
		}
	}
}

// WithClock overrides the wall-clock source; tests use this for
// deterministic created_at values.
func WithClock(c Clock) Option {
	return func(disp *Dispatcher) { disp.clock = c }
}

// WithRandomSource overrides the gift-wrap randomness source; tests use this
// for deterministic rumor ids and clock smear offsets.
func WithRandomSource(r giftwrap.RandomSource) Option {
	return func(disp *Dispatcher) { disp.random = r }
}

// WithLogger attaches a structured logger. Each dispatched action is logged
// at debug level with a freshly minted trace id that correlates a single
// logical request across logs, independent of the protocol-level request_id.
func WithLogger(logger *slog.Logger) Option {
	return func(disp *Dispatcher) { disp.logger = logger }
}

// New constructs a Dispatcher. mostroPubkey is the hex pubkey every trade
// action is addressed to.
func New(keyStore *keys.Store, gateway Publisher, corr *correlator.Correlator, mostroPubkey string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		keys:           keyStore,
		gateway:        gateway,
		correlator:     corr,
		mostroPubkey:   mostroPubkey,
		requestTimeout: correlator.DefaultRequestTimeout,
		clock:          func() int64 { return time.Now().Unix() },
		random:         giftwrap.CryptoRandomSource{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// NewOrder is the caller-supplied payload for submit_order, prior to
// normalization (defaults for created_at/status, amount validation).
type NewOrder struct {
	Kind          order.Kind
	Amount        int64
	FiatCode      string
	FiatAmount    int64
	PaymentMethod string
	Platform      string
}

func (d *Dispatcher) currentManager() (*keys.Manager, error) {
	m := d.keys.Current()
	if m == nil {
		return nil, merrors.ErrKeyNotSet
	}
	return m, nil
}

// send builds the outer OrderMessage, gift-wraps it, publishes it and
// returns the Mode-1 completion callers await for the reply.
func (d *Dispatcher) send(ctx context.Context, action message.Action, orderID *string, content *message.Content) (*correlator.Completion, error) {
	signer, err := d.currentManager()
	if err != nil {
		return nil, err
	}
	senderPub, err := signer.PublicKey(keys.Hex)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: derive sender public key: %w", err)
	}

	traceID := uuid.NewString()
	reqID, completion := d.correlator.BeginRequest(d.requestTimeout)
	if d.logger != nil {
		d.logger.Debug("dispatcher: dispatching trade action",
			slog.String("trace_id", traceID),
			slog.String("action", string(action)),
			slog.Uint64("request_id", uint64(reqID)))
	}

	now := d.clock()
	payload := message.MostroMessage{Order: &message.OrderMessage{
		Version:   1,
		ID:        orderID,
		RequestID: &reqID,
		Action:    action,
		Content:   content,
		CreatedAt: &now,
	}}

	body, err := payload.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("dispatcher: marshal payload: %w", err)
	}

	event, err := giftwrap.Wrap(string(body), senderPub, d.mostroPubkey, now, d.random)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: gift-wrap payload: %w", err)
	}

	if err := d.gateway.Publish(ctx, event); err != nil {
		return nil, fmt.Errorf("dispatcher: publish: %w", err)
	}

	return completion, nil
}

// SubmitOrder normalizes newOrder and publishes it as a new-order action. It
// rejects negative amounts with ErrInvalidAmount before touching the
// network.
func (d *Dispatcher) SubmitOrder(ctx context.Context, newOrder NewOrder) (*correlator.Completion, error) {
	if newOrder.Amount < 0 {
		return nil, merrors.ErrInvalidAmount
	}
	normalized := order.Order{
		Kind:          newOrder.Kind,
		Status:        order.StatusPending,
		Amount:        newOrder.Amount,
		FiatCode:      newOrder.FiatCode,
		FiatAmount:    order.FiatAmount{Exact: int(newOrder.FiatAmount)},
		PaymentMethod: newOrder.PaymentMethod,
		Platform:      newOrder.Platform,
		CreatedAt:     time.Unix(d.clock(), 0),
	}
	content := &message.Content{Order: &normalized}
	return d.send(ctx, message.ActionNewOrder, nil, content)
}

// TakeSell takes a sell order, optionally specifying a sub-amount for a
// range order.
func (d *Dispatcher) TakeSell(ctx context.Context, o order.Order, amount *int64) (*correlator.Completion, error) {
	content := amountContent(amount)
	return d.send(ctx, message.ActionTakeSell, &o.ID, content)
}

// TakeBuy takes a buy order, optionally specifying a sub-amount for a range
// order.
func (d *Dispatcher) TakeBuy(ctx context.Context, o order.Order, amount *int64) (*correlator.Completion, error) {
	content := amountContent(amount)
	return d.send(ctx, message.ActionTakeBuy, &o.ID, content)
}

func amountContent(amount *int64) *message.Content {
	if amount == nil {
		return nil
	}
	return &message.Content{Amount: amount}
}

// AddInvoice attaches a Lightning invoice (and optional amount) to order.
func (d *Dispatcher) AddInvoice(ctx context.Context, o order.Order, invoice string, amount *int64) (*correlator.Completion, error) {
	content := &message.Content{PaymentRequest: &message.PaymentRequest{
		Invoice: invoice,
		Amount:  amount,
	}}
	return d.send(ctx, message.ActionAddInvoice, &o.ID, content)
}

// Release instructs the seller's hold invoice to settle, releasing funds to
// the buyer.
func (d *Dispatcher) Release(ctx context.Context, o order.Order) (*correlator.Completion, error) {
	return d.send(ctx, message.ActionRelease, &o.ID, nil)
}

// FiatSent notifies the counterparty that the fiat leg has been sent.
func (d *Dispatcher) FiatSent(ctx context.Context, o order.Order) (*correlator.Completion, error) {
	return d.send(ctx, message.ActionFiatSent, &o.ID, nil)
}

// Cancel requests cancellation of order.
func (d *Dispatcher) Cancel(ctx context.Context, o order.Order) (*correlator.Completion, error) {
	return d.send(ctx, message.ActionCancel, &o.ID, nil)
}

// Dispute opens a dispute on order, asking the Mostro instance to arbitrate.
// The server replies with a dispute action carrying the token material the
// counterparty-facing dispute flow uses.
func (d *Dispatcher) Dispute(ctx context.Context, o order.Order) (*correlator.Completion, error) {
	return d.send(ctx, message.ActionDispute, &o.ID, nil)
}

// RateCounterpart submits a star rating (within the min_rate..max_rate
// bounds the Mostro instance advertises) for the counterparty of order. The
// wire form is the bare number; the {value, confirmed} object shape some
// clients keep internally is never sent.
func (d *Dispatcher) RateCounterpart(ctx context.Context, o order.Order, rating float64) (*correlator.Completion, error) {
	content := &message.Content{RatingUser: &rating}
	return d.send(ctx, message.ActionRateUser, &o.ID, content)
}
