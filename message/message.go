// Package message models MostroMessage: the tagged-sum envelope exchanged
// over the encrypted DM channel, either an {order: ...} request/response or
// a {cant-do: ...} refusal.
package message

import (
	"encoding/json"
	"fmt"

	"mostro-client-go/internal/merrors"
)

// OrderMessage is the {order: {...}} variant of MostroMessage.
type OrderMessage struct {
	Version   int      `json:"version"`
	ID        *string  `json:"id,omitempty"`
	RequestID *uint32  `json:"request_id,omitempty"`
	Action    Action   `json:"action"`
	Content   *Content `json:"content,omitempty"`
	CreatedAt *int64   `json:"created_at,omitempty"`
}

// CantDoMessage is the {cant-do: {...}} variant of MostroMessage, surfaced
// to callers as a successful completion whose content describes the
// server's refusal — it is not a local error.
type CantDoMessage struct {
	Version   int      `json:"version"`
	ID        *string  `json:"id,omitempty"`
	RequestID *uint32  `json:"request_id,omitempty"`
	Pubkey    string   `json:"pubkey"`
	Action    Action   `json:"action"`
	Content   *Content `json:"content,omitempty"`
}

// MostroMessage is the tagged sum over {Order, CantDo}. Exactly one of the
// two fields is populated after a successful Parse.
type MostroMessage struct {
	Order  *OrderMessage
	CantDo *CantDoMessage
}

type messageWire struct {
	Order  *OrderMessage  `json:"order,omitempty"`
	CantDo *CantDoMessage `json:"cant-do,omitempty"`
}

// MarshalJSON emits whichever variant is populated.
func (m MostroMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageWire{Order: m.Order, CantDo: m.CantDo})
}

// Parse decodes a MostroMessage from its JSON wire form, inspecting which of
// "order" or "cant-do" is present. Any other shape is ErrMalformedMessage;
// the Orchestrator logs and drops such events rather than propagating the
// error to a caller.
func Parse(data []byte) (MostroMessage, error) {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return MostroMessage{}, fmt.Errorf("message: decode: %w: %w", merrors.ErrMalformedMessage, err)
	}
	if w.Order == nil && w.CantDo == nil {
		return MostroMessage{}, fmt.Errorf("message: neither order nor cant-do present: %w", merrors.ErrMalformedMessage)
	}
	return MostroMessage{Order: w.Order, CantDo: w.CantDo}, nil
}

// RequestID returns the request_id carried by whichever variant is set, and
// whether one was present.
func (m MostroMessage) RequestID() (uint32, bool) {
	switch {
	case m.Order != nil && m.Order.RequestID != nil:
		return *m.Order.RequestID, true
	case m.CantDo != nil && m.CantDo.RequestID != nil:
		return *m.CantDo.RequestID, true
	default:
		return 0, false
	}
}

// ActionOrderID returns the (action, order-id) pair used for Mode-2
// correlation, if the message carries an order id.
func (m MostroMessage) ActionOrderID() (action Action, orderID string, ok bool) {
	switch {
	case m.Order != nil && m.Order.ID != nil:
		return m.Order.Action, *m.Order.ID, true
	case m.CantDo != nil && m.CantDo.ID != nil:
		return m.CantDo.Action, *m.CantDo.ID, true
	default:
		return "", "", false
	}
}
