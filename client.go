// Package mostro is a client library for the Mostro peer-to-peer Bitcoin/
// Lightning exchange protocol, carried over the Nostr relay network. Client
// is the package's single public entry point: it owns the key store, relay
// connection, request correlator and trade-action dispatcher, and routes
// inbound relay traffic to three broadcast handlers (order-update,
// mostro-info, dm); direct messages additionally pass through the correlator
// (replies to our own requests, or server-initiated lifecycle events).
package mostro

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"mostro-client-go/config"
	"mostro-client-go/correlator"
	"mostro-client-go/cryptography"
	"mostro-client-go/dispatcher"
	"mostro-client-go/keys"
	"mostro-client-go/message"
	"mostro-client-go/order"
	"mostro-client-go/relay"

	clientmetrics "mostro-client-go/metrics"
)

// KindOrderDocument is the parameterized-replaceable event kind Mostro
// publishes order and instance-info documents as.
const KindOrderDocument = 38383

// KindLegacyDM is the legacy NIP-04 direct-message kind the Orchestrator
// listens for replies on.
const KindLegacyDM = 4

// orderSubscriptionWindow bounds how far back the mostro_pubkey order-document
// subscription looks on construction.
const orderSubscriptionWindow = 14 * 24 * time.Hour

// Config is the caller-supplied construction input. Relays is the only
// required field; MostroPubkey and PrivateKey are each optional and gate
// distinct functionality (targeted order subscription, and outgoing trade
// actions plus DM receipt, respectively).
type Config struct {
	// MostroPubkey is the Mostro instance's public key, hex or bech32 npub.
	// When set, the client subscribes to that author's order documents.
	MostroPubkey string
	// Relays is the non-empty list of wss:// relay URLs to connect to.
	Relays []string
	// PrivateKey is the caller's own key, hex or bech32 nsec. When unset, the
	// client is read-only: search_orders works, trade actions fail with
	// ErrKeyNotSet.
	PrivateKey string
	// Debug raises the default logger to slog.LevelDebug when no explicit
	// logger is supplied via WithLogger.
	Debug bool
}

// Client is the Orchestrator: the single owner of the Key Store, Relay
// Gateway, Request Correlator and Trade Action Dispatcher. Construct with
// New, which eagerly connects and subscribes; tear down with Disconnect.
type Client struct {
	mu sync.Mutex

	relays          []string
	mostroPubkeyHex string
	requestTimeout  time.Duration

	keys       *keys.Store
	gateway    *relay.Gateway
	correlator *correlator.Correlator
	dispatcher *dispatcher.Dispatcher

	logger  *slog.Logger
	metrics *clientmetrics.ClientMetrics

	onOrderUpdate func(order.Order, *nostr.Event)
	onMostroInfo  func(order.MostroInfo)
	onDM          func(message.MostroMessage, string)

	subs   []*relay.Subscription
	cancel context.CancelFunc
}

// Option customises Client construction.
type Option func(*Client)

// WithLogger attaches a structured logger. If omitted, New installs a
// default text-handler logger whose level follows Config.Debug.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics attaches a Prometheus metrics sink shared across the gateway
// and correlator. Pass metrics.Client() for the process-wide registry.
func WithMetrics(m *clientmetrics.ClientMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRequestTimeout overrides the default Mode-1 completion deadline used
// by every trade action.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithOrderUpdateHandler registers the callback invoked for every matched
// order document. raw is the underlying Nostr event for callers that need
// fields ExtractOrder doesn't project (e.g. additional tags).
func WithOrderUpdateHandler(f func(ord order.Order, raw *nostr.Event)) Option {
	return func(c *Client) { c.onOrderUpdate = f }
}

// WithMostroInfoHandler registers the callback invoked for every observed
// MostroInfo document.
func WithMostroInfoHandler(f func(info order.MostroInfo)) Option {
	return func(c *Client) { c.onMostroInfo = f }
}

// WithDMHandler registers the callback invoked for every successfully
// decrypted and parsed inbound direct message, regardless of whether it also
// resolved a correlator record. sender is the DM author's hex pubkey.
func WithDMHandler(f func(msg message.MostroMessage, sender string)) Option {
	return func(c *Client) { c.onDM = f }
}

// New constructs a Client, eagerly connecting to every relay in
// cfg.Relays and, once connected, subscribing to order documents and/or
// direct messages per which of MostroPubkey/PrivateKey are present.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if len(cfg.Relays) == 0 {
		return nil, ErrNoRelays
	}

	var keyStore *keys.Store
	if cfg.PrivateKey != "" {
		m, err := keys.Load(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		keyStore = keys.NewStore(m)
	} else {
		keyStore = keys.NewStore(nil)
	}

	var mostroPubHex string
	if cfg.MostroPubkey != "" {
		pubHex, err := normalizePubkey(cfg.MostroPubkey)
		if err != nil {
			return nil, err
		}
		mostroPubHex = pubHex
	}

	c := &Client{
		relays:          append([]string(nil), cfg.Relays...),
		mostroPubkeyHex: mostroPubHex,
		requestTimeout:  correlator.DefaultRequestTimeout,
		keys:            keyStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	c.correlator = correlator.New(nil).WithMetrics(c.metrics)
	c.gateway = relay.New(relay.WithLogger(c.logger), relay.WithMetrics(c.metrics))
	c.dispatcher = dispatcher.New(c.keys, c.gateway, c.correlator, c.mostroPubkeyHex,
		dispatcher.WithRequestTimeout(c.requestTimeout),
		dispatcher.WithLogger(c.logger))

	if err := c.connectAndSubscribe(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromConfigFile loads a Config from a TOML file at path (generating and
// persisting a default, including a fresh private key, if the file does not
// yet exist) and constructs a Client from it.
func NewFromConfigFile(ctx context.Context, path string, opts ...Option) (*Client, error) {
	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg := Config{
		MostroPubkey: file.MostroPubkey,
		Relays:       file.Relays,
		PrivateKey:   file.PrivateKey,
		Debug:        file.Debug,
	}
	return New(ctx, cfg, opts...)
}

func (c *Client) connectAndSubscribe(ctx context.Context) error {
	if err := c.gateway.Connect(ctx, c.relays); err != nil {
		return err
	}
	c.logger.Info("mostro: connected", slog.Int("relay_count", len(c.gateway.Relays())))

	bgCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	if c.mostroPubkeyHex != "" {
		since := nostr.Timestamp(time.Now().Add(-orderSubscriptionWindow).Unix())
		filter := nostr.Filter{
			Kinds:   []int{KindOrderDocument},
			Authors: []string{c.mostroPubkeyHex},
			Since:   &since,
		}
		sub, err := c.gateway.Subscribe(bgCtx, filter)
		if err != nil {
			return fmt.Errorf("mostro: subscribe order documents: %w", err)
		}
		c.subs = append(c.subs, sub)
		go c.consumeOrderEvents(sub)
	}

	if m := c.keys.Current(); m != nil {
		myPub, err := m.PublicKey(keys.Hex)
		if err != nil {
			return fmt.Errorf("mostro: derive own public key: %w", err)
		}
		since := nostr.Timestamp(time.Now().Unix())
		filter := nostr.Filter{
			Kinds: []int{KindLegacyDM},
			Tags:  nostr.TagMap{"p": []string{myPub}},
			Since: &since,
		}
		sub, err := c.gateway.Subscribe(bgCtx, filter)
		if err != nil {
			return fmt.Errorf("mostro: subscribe direct messages: %w", err)
		}
		c.subs = append(c.subs, sub)
		go c.consumeDMEvents(sub)
	}
	return nil
}

func (c *Client) consumeOrderEvents(sub *relay.Subscription) {
	for event := range sub.Events {
		c.handleOrderDocument(event)
	}
}

// handleOrderDocument classifies one kind-38383 event as either a MostroInfo
// document or an order document and fires the matching broadcast handler.
// Events that are neither (malformed or missing mandatory tags) are silently
// dropped, per the Order Tag Filter's extraction contract.
func (c *Client) handleOrderDocument(event *nostr.Event) {
	if info, ok := order.ExtractMostroInfo(event); ok {
		if c.onMostroInfo != nil {
			c.onMostroInfo(info)
		}
		return
	}
	ord, ok := order.ExtractOrder(event)
	if !ok {
		return
	}
	if c.onOrderUpdate != nil {
		c.onOrderUpdate(ord, event)
	}
}

func (c *Client) consumeDMEvents(sub *relay.Subscription) {
	for event := range sub.Events {
		c.handleDirectMessage(event)
	}
}

// handleDirectMessage decrypts and parses one inbound kind-4 DM, routes it
// through the correlator for Mode-1/Mode-2 matching, and unconditionally
// emits the general dm broadcast regardless of whether it matched.
// Decryption and parse failures are local: logged and dropped, never
// surfaced to a caller.
func (c *Client) handleDirectMessage(event *nostr.Event) {
	m := c.keys.Current()
	if m == nil {
		return
	}
	plaintext, err := cryptography.DecryptNIP04(event.Content, m.Hex(), event.PubKey)
	if err != nil {
		c.logger.Warn("mostro: decrypt dm failed", slog.String("event_id", event.ID), slog.Any("error", err))
		return
	}
	msg, err := message.Parse([]byte(plaintext))
	if err != nil {
		c.logger.Warn("mostro: malformed dm", slog.String("event_id", event.ID), slog.Any("error", err))
		return
	}

	c.correlator.Route(msg)
	if c.onDM != nil {
		c.onDM(msg, event.PubKey)
	}
}

// SearchOrders opens a short-lived subscription filtered by filters,
// accumulates every matching order document for DefaultSearchTimeout, then
// stops the subscription and returns the deduplicated set (latest created_at
// wins per id).
func (c *Client) SearchOrders(ctx context.Context, filters order.Filters) ([]order.Order, error) {
	nf := nostr.Filter{Kinds: []int{KindOrderDocument}}
	if len(filters.Authors) > 0 {
		nf.Authors = filters.Authors
	}

	searchCtx, cancel := context.WithTimeout(ctx, correlator.DefaultSearchTimeout)
	defer cancel()

	sub, err := c.gateway.Subscribe(searchCtx, nf)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	timer := time.NewTimer(correlator.DefaultSearchTimeout)
	defer timer.Stop()

	found := make(map[string]order.Order)
collect:
	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				break collect
			}
			if !filters.Match(event) {
				continue
			}
			ord, ok := order.ExtractOrder(event)
			if !ok {
				continue
			}
			if existing, seen := found[ord.ID]; !seen || ord.CreatedAt.After(existing.CreatedAt) {
				found[ord.ID] = ord
			}
		case <-timer.C:
			break collect
		case <-searchCtx.Done():
			break collect
		}
	}

	out := make([]order.Order, 0, len(found))
	for _, o := range found {
		out = append(out, o)
	}
	return out, nil
}

// SubmitOrder publishes a new-order action and blocks until the reply
// arrives or the request times out.
func (c *Client) SubmitOrder(ctx context.Context, newOrder dispatcher.NewOrder) (message.MostroMessage, error) {
	completion, err := c.dispatcher.SubmitOrder(ctx, newOrder)
	if err != nil {
		return message.MostroMessage{}, err
	}
	return completion.Wait()
}

// TakeSell takes a sell order, optionally specifying a sub-amount for a
// range order, and blocks until the reply arrives or the request times out.
func (c *Client) TakeSell(ctx context.Context, o order.Order, amount *int64) (message.MostroMessage, error) {
	completion, err := c.dispatcher.TakeSell(ctx, o, amount)
	if err != nil {
		return message.MostroMessage{}, err
	}
	return completion.Wait()
}

// TakeBuy takes a buy order, optionally specifying a sub-amount for a range
// order, and blocks until the reply arrives or the request times out.
func (c *Client) TakeBuy(ctx context.Context, o order.Order, amount *int64) (message.MostroMessage, error) {
	completion, err := c.dispatcher.TakeBuy(ctx, o, amount)
	if err != nil {
		return message.MostroMessage{}, err
	}
	return completion.Wait()
}

// AddInvoice attaches a Lightning invoice (and optional amount) to order and
// blocks until the reply arrives or the request times out.
func (c *Client) AddInvoice(ctx context.Context, o order.Order, invoice string, amount *int64) (message.MostroMessage, error) {
	completion, err := c.dispatcher.AddInvoice(ctx, o, invoice, amount)
	if err != nil {
		return message.MostroMessage{}, err
	}
	return completion.Wait()
}

// Release instructs the seller's hold invoice to settle and blocks until the
// reply arrives or the request times out.
func (c *Client) Release(ctx context.Context, o order.Order) (message.MostroMessage, error) {
	completion, err := c.dispatcher.Release(ctx, o)
	if err != nil {
		return message.MostroMessage{}, err
	}
	return completion.Wait()
}

// FiatSent notifies the counterparty the fiat leg has been sent and blocks
// until the reply arrives or the request times out.
func (c *Client) FiatSent(ctx context.Context, o order.Order) (message.MostroMessage, error) {
	completion, err := c.dispatcher.FiatSent(ctx, o)
	if err != nil {
		return message.MostroMessage{}, err
	}
	return completion.Wait()
}

// Cancel requests cancellation of order and blocks until the reply arrives
// or the request times out.
func (c *Client) Cancel(ctx context.Context, o order.Order) (message.MostroMessage, error) {
	completion, err := c.dispatcher.Cancel(ctx, o)
	if err != nil {
		return message.MostroMessage{}, err
	}
	return completion.Wait()
}

// Dispute opens a dispute on order and blocks until the reply arrives or the
// request times out.
func (c *Client) Dispute(ctx context.Context, o order.Order) (message.MostroMessage, error) {
	completion, err := c.dispatcher.Dispute(ctx, o)
	if err != nil {
		return message.MostroMessage{}, err
	}
	return completion.Wait()
}

// RateCounterpart submits a star rating for order's counterparty and blocks
// until the reply arrives or the request times out.
func (c *Client) RateCounterpart(ctx context.Context, o order.Order, rating float64) (message.MostroMessage, error) {
	completion, err := c.dispatcher.RateCounterpart(ctx, o, rating)
	if err != nil {
		return message.MostroMessage{}, err
	}
	return completion.Wait()
}

// SendDirectMessage encrypts text for the counterparty peer at
// recipientPubkey (hex or npub) and publishes it as a legacy kind-4 direct
// message, signed by the active key. This is the out-of-band channel two
// matched peers use to coordinate the fiat leg; it does not pass through the
// Mostro instance and has no reply correlation.
func (c *Client) SendDirectMessage(ctx context.Context, recipientPubkey, text string) error {
	m := c.keys.Current()
	if m == nil {
		return ErrKeyNotSet
	}
	recipientHex, err := normalizePubkey(recipientPubkey)
	if err != nil {
		return err
	}
	event, err := buildPeerDM(m, recipientHex, text, time.Now().Unix())
	if err != nil {
		return err
	}
	return c.gateway.Publish(ctx, event)
}

// AwaitAction registers a waiter for a server-initiated lifecycle message
// carrying (action, orderID) — for example the waiting-seller-to-pay update
// a taker receives after the counterparty's take-buy, which arrives without
// any request id of ours. The returned completion resolves on the first
// matching message, or fails with ErrTimeout after timeout (the default
// request timeout when timeout <= 0), or ErrDisconnected on teardown.
func (c *Client) AwaitAction(action message.Action, orderID string, timeout time.Duration) *correlator.Completion {
	return c.correlator.AwaitAction(action, orderID, timeout)
}

// buildPeerDM constructs and signs one kind-4 peer message.
func buildPeerDM(m *keys.Manager, recipientHex, text string, now int64) (*nostr.Event, error) {
	ciphertext, err := cryptography.EncryptNIP04(text, m.Hex(), recipientHex)
	if err != nil {
		return nil, err
	}
	senderPub, err := m.PublicKey(keys.Hex)
	if err != nil {
		return nil, err
	}
	event := &nostr.Event{
		PubKey:    senderPub,
		CreatedAt: nostr.Timestamp(now),
		Kind:      KindLegacyDM,
		Tags:      nostr.Tags{{"p", recipientHex}},
		Content:   ciphertext,
	}
	return cryptography.SignEvent(event, m.Hex())
}

// UpdatePrivateKey replaces the active signing key. Per the key material
// invariant, this invalidates every outstanding Mode-1 and Mode-2 waiter:
// callers awaiting a completion from before the swap receive ErrDisconnected.
func (c *Client) UpdatePrivateKey(key string) error {
	m, err := keys.Load(key)
	if err != nil {
		return err
	}
	c.keys.Set(m)
	c.correlator.Disconnect()
	return nil
}

// PublicKey returns the active key's public key in the requested encoding,
// or ErrKeyNotSet if no private key has been loaded.
func (c *Client) PublicKey(enc keys.Encoding) (string, error) {
	m := c.keys.Current()
	if m == nil {
		return "", ErrKeyNotSet
	}
	return m.PublicKey(enc)
}

// Disconnect stops every subscription and tears down the relay pool,
// failing any outstanding completion with ErrDisconnected. Idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	cancel := c.cancel
	subs := c.subs
	c.subs = nil
	c.cancel = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	if cancel != nil {
		cancel()
	}
	c.correlator.Disconnect()
	return c.gateway.Disconnect()
}

// normalizePubkey accepts either a 64-char hex pubkey or a bech32 npub and
// returns the hex form.
func normalizePubkey(s string) (string, error) {
	if isHex64(s) {
		return s, nil
	}
	prefix, value, err := nip19.Decode(s)
	if err != nil {
		return "", fmt.Errorf("mostro: decode pubkey: %w: %v", ErrInvalidBech32, err)
	}
	if prefix != "npub" {
		return "", fmt.Errorf("mostro: unexpected bech32 prefix %q: %w", prefix, ErrInvalidBech32)
	}
	pub, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("mostro: npub payload was not a key: %w", ErrInvalidBech32)
	}
	return pub, nil
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
