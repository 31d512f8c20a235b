package message

import (
	"encoding/json"
	"fmt"

	"mostro-client-go/order"
)

// Peer carries the counterparty's pubkey, delivered by the server once two
// orders are matched so each side can message the other out of band.
type Peer struct {
	Pubkey string `json:"pubkey"`
}

// Dispute carries the dispute token material the server hands each party
// when a dispute is opened.
type Dispute struct {
	ID          string `json:"id"`
	BuyerToken  *int32 `json:"buyer_token,omitempty"`
	SellerToken *int32 `json:"seller_token,omitempty"`
}

// PaymentRequest is the on-wire tuple form [order|null, invoice, amount?].
// The protocol also has an unused object-shaped sibling
// ({order, invoice, amount}); this library emits and expects only the
// tuple, which is the form actually observed on the wire.
type PaymentRequest struct {
	Order   *order.Order
	Invoice string
	Amount  *int64 // omitted entirely (two-element array) when nil
}

// MarshalJSON renders the tuple form, a 2- or 3-element JSON array.
func (p PaymentRequest) MarshalJSON() ([]byte, error) {
	var orderField interface{}
	if p.Order != nil {
		orderField = orderWire{}.from(p.Order)
	}
	arr := []interface{}{orderField, p.Invoice}
	if p.Amount != nil {
		arr = append(arr, *p.Amount)
	}
	return json.Marshal(arr)
}

// UnmarshalJSON parses the tuple form, tolerating the 2- or 3-element cases.
func (p *PaymentRequest) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("payment_request: expected tuple array: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("payment_request: expected at least 2 elements, got %d", len(raw))
	}
	if string(raw[0]) != "null" {
		var w orderWire
		if err := json.Unmarshal(raw[0], &w); err != nil {
			return fmt.Errorf("payment_request: decode order element: %w", err)
		}
		o := w.to()
		p.Order = &o
	} else {
		p.Order = nil
	}
	if err := json.Unmarshal(raw[1], &p.Invoice); err != nil {
		return fmt.Errorf("payment_request: decode invoice element: %w", err)
	}
	if len(raw) >= 3 {
		var amt int64
		if err := json.Unmarshal(raw[2], &amt); err != nil {
			return fmt.Errorf("payment_request: decode amount element: %w", err)
		}
		p.Amount = &amt
	} else {
		p.Amount = nil
	}
	return nil
}

// orderWire is the JSON-friendly mirror of order.Order used inside message
// content, since order.Order itself carries non-JSON-tagged fields derived
// from Nostr tags rather than a wire struct.
type orderWire struct {
	ID            string `json:"id,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Status        string `json:"status,omitempty"`
	Amount        int64  `json:"amount"`
	FiatCode      string `json:"fiat_code,omitempty"`
	FiatAmount    int64  `json:"fiat_amount,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Platform      string `json:"platform,omitempty"`
	CreatedAt     int64  `json:"created_at,omitempty"`
}

func (orderWire) from(o *order.Order) orderWire {
	fa := o.FiatAmount.Exact
	if o.FiatAmount.IsRange {
		fa = o.FiatAmount.Min
	}
	return orderWire{
		ID:            o.ID,
		Kind:          string(o.Kind),
		Status:        string(o.Status),
		Amount:        o.Amount,
		FiatCode:      o.FiatCode,
		FiatAmount:    int64(fa),
		PaymentMethod: o.PaymentMethod,
		Platform:      o.Platform,
		CreatedAt:     o.CreatedAt.Unix(),
	}
}

func (w orderWire) to() order.Order {
	return order.Order{
		ID:            w.ID,
		Kind:          order.Kind(w.Kind),
		Status:        order.Status(w.Status),
		Amount:        w.Amount,
		FiatCode:      w.FiatCode,
		FiatAmount:    order.FiatAmount{Exact: int(w.FiatAmount)},
		PaymentMethod: w.PaymentMethod,
		Platform:      w.Platform,
	}
}

// Content is the heterogeneous union carried by a MostroMessage. At most one
// field is populated per the protocol's untagged-union convention; Raw
// always holds the bytes as received so callers can recover data from
// actions this library does not yet model explicitly.
type Content struct {
	Order          *order.Order
	PaymentRequest *PaymentRequest
	TextMessage    *string
	Peer           *Peer
	RatingUser     *float64
	Dispute        *Dispute
	// Amount carries the sub-amount a taker specifies against a range order
	// (take-sell/take-buy), the one content shape that is a bare {amount}
	// object rather than one of the named variants above.
	Amount *int64

	Raw json.RawMessage
}

type contentWire struct {
	Order          *orderWire      `json:"order,omitempty"`
	PaymentRequest *PaymentRequest `json:"payment_request,omitempty"`
	TextMessage    *string         `json:"text_message,omitempty"`
	Peer           *Peer           `json:"peer,omitempty"`
	RatingUser     *float64        `json:"rating_user,omitempty"`
	Dispute        *Dispute        `json:"dispute,omitempty"`
	Amount         *int64          `json:"amount,omitempty"`
}

// MarshalJSON emits exactly the populated variant.
func (c Content) MarshalJSON() ([]byte, error) {
	w := contentWire{
		PaymentRequest: c.PaymentRequest,
		TextMessage:    c.TextMessage,
		Peer:           c.Peer,
		RatingUser:     c.RatingUser,
		Dispute:        c.Dispute,
		Amount:         c.Amount,
	}
	if c.Order != nil {
		ow := orderWire{}.from(c.Order)
		w.Order = &ow
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes whichever variant is present, always retaining Raw
// for forward-compatible access to unmodeled fields.
func (c *Content) UnmarshalJSON(data []byte) error {
	c.Raw = append(json.RawMessage(nil), data...)
	var w contentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("content: decode: %w", err)
	}
	if w.Order != nil {
		o := w.Order.to()
		c.Order = &o
	}
	c.PaymentRequest = w.PaymentRequest
	c.TextMessage = w.TextMessage
	c.Peer = w.Peer
	c.RatingUser = w.RatingUser
	c.Dispute = w.Dispute
	c.Amount = w.Amount
	return nil
}
