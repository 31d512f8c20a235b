package dispatcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"mostro-client-go/correlator"
	"mostro-client-go/giftwrap"
	"mostro-client-go/internal/merrors"
	"mostro-client-go/keys"
	"mostro-client-go/message"
	"mostro-client-go/order"
)

type fakePublisher struct {
	published []*nostr.Event
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, event *nostr.Event) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

type fixedRandom struct{}

func (fixedRandom) HexID(n int) (string, error)   { return strings.Repeat("ab", n), nil }
func (fixedRandom) Int63n(n int64) (int64, error) { return 0, nil }

// testHarness bundles a Dispatcher with the Mostro keypair it addresses, so
// tests can gift-unwrap whatever it publishes.
type testHarness struct {
	dispatcher *Dispatcher
	mostroPriv string
	publisher  *fakePublisher
}

func newTestHarness(t *testing.T, withKey bool) *testHarness {
	t.Helper()
	store := keys.NewStore(nil)
	if withKey {
		m, err := keys.Load(strings.Repeat("01", 32))
		if err != nil {
			t.Fatalf("load key: %v", err)
		}
		store.Set(m)
	}
	mostro, err := keys.RandomEphemeralKey()
	if err != nil {
		t.Fatalf("mostro key: %v", err)
	}
	mostroPub, err := mostro.PublicKey(keys.Hex)
	if err != nil {
		t.Fatalf("mostro pub: %v", err)
	}
	pub := &fakePublisher{}
	corr := correlator.New(nil)
	d := New(store, pub, corr, mostroPub,
		WithClock(func() int64 { return 1_700_000_000 }),
		WithRandomSource(fixedRandom{}),
	)
	return &testHarness{dispatcher: d, mostroPriv: mostro.Hex(), publisher: pub}
}

func (h *testHarness) decodeLastPublished(t *testing.T) message.MostroMessage {
	t.Helper()
	if len(h.publisher.published) == 0 {
		t.Fatal("expected at least one published event")
	}
	event := h.publisher.published[len(h.publisher.published)-1]
	rumor, err := giftwrap.Unwrap(event, h.mostroPriv)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	msg, err := message.Parse([]byte(rumor.Content))
	if err != nil {
		t.Fatalf("parse inner payload: %v", err)
	}
	return msg
}

func TestSubmitOrderRejectsNegativeAmount(t *testing.T) {
	h := newTestHarness(t, true)
	_, err := h.dispatcher.SubmitOrder(context.Background(), NewOrder{Kind: order.KindBuy, Amount: -1})
	if !errors.Is(err, merrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if len(h.publisher.published) != 0 {
		t.Fatal("expected no publish for a rejected amount")
	}
}

func TestTradeActionsRequireKey(t *testing.T) {
	h := newTestHarness(t, false)
	_, err := h.dispatcher.SubmitOrder(context.Background(), NewOrder{Kind: order.KindBuy, FiatAmount: 100})
	if !errors.Is(err, merrors.ErrKeyNotSet) {
		t.Fatalf("expected ErrKeyNotSet, got %v", err)
	}
}

func TestSubmitOrderPublishesGiftWrappedNewOrder(t *testing.T) {
	h := newTestHarness(t, true)

	_, err := h.dispatcher.SubmitOrder(context.Background(), NewOrder{
		Kind:          order.KindBuy,
		FiatCode:      "USD",
		FiatAmount:    100,
		PaymentMethod: "bank transfer",
	})
	if err != nil {
		t.Fatalf("submit order: %v", err)
	}
	if len(h.publisher.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(h.publisher.published))
	}
	if h.publisher.published[0].Kind != giftwrap.KindGiftWrap {
		t.Fatalf("expected gift wrap kind %d, got %d", giftwrap.KindGiftWrap, h.publisher.published[0].Kind)
	}

	msg := h.decodeLastPublished(t)
	if msg.Order == nil || msg.Order.Action != message.ActionNewOrder {
		t.Fatalf("expected new-order action, got %+v", msg)
	}
	if msg.Order.Content == nil || msg.Order.Content.Order == nil {
		t.Fatal("expected content.order to be populated")
	}
	if msg.Order.Content.Order.FiatCode != "USD" {
		t.Fatalf("expected fiat_code USD, got %s", msg.Order.Content.Order.FiatCode)
	}
}

func TestTakeSellCarriesOptionalAmount(t *testing.T) {
	h := newTestHarness(t, true)
	amount := int64(50000)
	o := order.Order{ID: "order-1"}

	if _, err := h.dispatcher.TakeSell(context.Background(), o, &amount); err != nil {
		t.Fatalf("take sell: %v", err)
	}

	msg := h.decodeLastPublished(t)
	if msg.Order.Action != message.ActionTakeSell {
		t.Fatalf("expected take-sell action, got %v", msg.Order.Action)
	}
	if msg.Order.ID == nil || *msg.Order.ID != "order-1" {
		t.Fatalf("expected order id order-1, got %v", msg.Order.ID)
	}
	if msg.Order.Content == nil || msg.Order.Content.Amount == nil || *msg.Order.Content.Amount != amount {
		t.Fatalf("expected content.amount %d, got %+v", amount, msg.Order.Content)
	}
}

func TestTakeBuyWithoutAmountOmitsContent(t *testing.T) {
	h := newTestHarness(t, true)
	o := order.Order{ID: "order-3"}

	if _, err := h.dispatcher.TakeBuy(context.Background(), o, nil); err != nil {
		t.Fatalf("take buy: %v", err)
	}

	msg := h.decodeLastPublished(t)
	if msg.Order.Content != nil {
		t.Fatalf("expected nil content when no amount is given, got %+v", msg.Order.Content)
	}
}

func TestAddInvoiceCarriesPaymentRequestTuple(t *testing.T) {
	h := newTestHarness(t, true)
	o := order.Order{ID: "order-4"}
	amount := int64(21000)

	if _, err := h.dispatcher.AddInvoice(context.Background(), o, "lnbc1...", &amount); err != nil {
		t.Fatalf("add invoice: %v", err)
	}

	msg := h.decodeLastPublished(t)
	if msg.Order.Action != message.ActionAddInvoice {
		t.Fatalf("expected add-invoice action, got %v", msg.Order.Action)
	}
	pr := msg.Order.Content.PaymentRequest
	if pr == nil || pr.Invoice != "lnbc1..." || pr.Amount == nil || *pr.Amount != amount {
		t.Fatalf("unexpected payment request: %+v", pr)
	}
}

func TestReleaseFiatSentCancelOmitContent(t *testing.T) {
	h := newTestHarness(t, true)
	o := order.Order{ID: "order-2"}

	if _, err := h.dispatcher.Release(context.Background(), o); err != nil {
		t.Fatalf("release: %v", err)
	}
	if msg := h.decodeLastPublished(t); msg.Order.Content != nil {
		t.Fatalf("expected nil content for release, got %+v", msg.Order.Content)
	}
	if _, err := h.dispatcher.FiatSent(context.Background(), o); err != nil {
		t.Fatalf("fiat sent: %v", err)
	}
	if msg := h.decodeLastPublished(t); msg.Order.Content != nil {
		t.Fatalf("expected nil content for fiat-sent, got %+v", msg.Order.Content)
	}
	if _, err := h.dispatcher.Cancel(context.Background(), o); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if msg := h.decodeLastPublished(t); msg.Order.Content != nil {
		t.Fatalf("expected nil content for cancel, got %+v", msg.Order.Content)
	}
	if len(h.publisher.published) != 3 {
		t.Fatalf("expected 3 published events, got %d", len(h.publisher.published))
	}
}

func TestDisputePublishesDisputeAction(t *testing.T) {
	h := newTestHarness(t, true)
	o := order.Order{ID: "order-6"}

	if _, err := h.dispatcher.Dispute(context.Background(), o); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	msg := h.decodeLastPublished(t)
	if msg.Order.Action != message.ActionDispute {
		t.Fatalf("expected dispute action, got %v", msg.Order.Action)
	}
	if msg.Order.ID == nil || *msg.Order.ID != "order-6" {
		t.Fatalf("expected order id order-6, got %v", msg.Order.ID)
	}
}

func TestRateCounterpartCarriesBareNumber(t *testing.T) {
	h := newTestHarness(t, true)
	o := order.Order{ID: "order-7"}

	if _, err := h.dispatcher.RateCounterpart(context.Background(), o, 5); err != nil {
		t.Fatalf("rate counterpart: %v", err)
	}

	msg := h.decodeLastPublished(t)
	if msg.Order.Action != message.ActionRateUser {
		t.Fatalf("expected rate-user action, got %v", msg.Order.Action)
	}
	if msg.Order.Content == nil || msg.Order.Content.RatingUser == nil || *msg.Order.Content.RatingUser != 5 {
		t.Fatalf("expected rating_user 5, got %+v", msg.Order.Content)
	}
}

func TestPublishFailurePropagates(t *testing.T) {
	h := newTestHarness(t, true)
	h.publisher.err = errors.New("relay rejected event")

	_, err := h.dispatcher.Release(context.Background(), order.Order{ID: "order-5"})
	if err == nil {
		t.Fatal("expected publish failure to propagate")
	}
}
