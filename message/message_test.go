package message

import (
	"encoding/json"
	"testing"
)

func TestParseOrderMessageRoundTrip(t *testing.T) {
	reqID := uint32(0)
	id := "abc"
	content := Content{Order: nil}
	msg := MostroMessage{Order: &OrderMessage{
		Version:   1,
		ID:        &id,
		RequestID: &reqID,
		Action:    ActionNewOrder,
		Content:   &content,
	}}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Order == nil || parsed.CantDo != nil {
		t.Fatalf("expected order variant only, got %+v", parsed)
	}
	reqid, ok := parsed.RequestID()
	if !ok || reqid != 0 {
		t.Fatalf("expected request_id 0, got %v ok=%v", reqid, ok)
	}
	action, orderID, ok := parsed.ActionOrderID()
	if !ok || action != ActionNewOrder || orderID != "abc" {
		t.Fatalf("unexpected action/order-id: %v %v %v", action, orderID, ok)
	}
}

func TestParseCantDoSurfacesAsSuccessfulMessage(t *testing.T) {
	raw := []byte(`{"cant-do":{"version":1,"id":"abc","request_id":7,"pubkey":"deadbeef","action":"out-of-range-fiat-amount","content":{"text_message":"amount out of range"}}}`)
	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.CantDo == nil {
		t.Fatal("expected cant-do variant")
	}
	if msg.CantDo.Content == nil || msg.CantDo.Content.TextMessage == nil {
		t.Fatal("expected text_message content")
	}
	if *msg.CantDo.Content.TextMessage != "amount out of range" {
		t.Fatalf("unexpected text message: %v", *msg.CantDo.Content.TextMessage)
	}
}

func TestParseMalformedMessageFails(t *testing.T) {
	_, err := Parse([]byte(`{"something-else": {}}`))
	if err == nil {
		t.Fatal("expected error for message with neither order nor cant-do")
	}
}

func TestPaymentRequestTwoElementForm(t *testing.T) {
	pr := PaymentRequest{Invoice: "lnbc1..."}
	data, err := json.Marshal(pr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if len(arr) != 2 {
		t.Fatalf("expected 2-element array without amount, got %d", len(arr))
	}
}

func TestPaymentRequestThreeElementForm(t *testing.T) {
	amount := int64(50000)
	pr := PaymentRequest{Invoice: "lnbc1...", Amount: &amount}
	data, err := json.Marshal(pr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if len(arr) != 3 {
		t.Fatalf("expected 3-element array with amount, got %d", len(arr))
	}

	var roundTrip PaymentRequest
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		t.Fatalf("round trip unmarshal: %v", err)
	}
	if roundTrip.Amount == nil || *roundTrip.Amount != amount {
		t.Fatalf("expected amount %d, got %v", amount, roundTrip.Amount)
	}
}

func TestContentAmountRoundTrip(t *testing.T) {
	amount := int64(30000)
	c := Content{Amount: &amount}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"amount":30000}` {
		t.Fatalf("unexpected wire form: %s", data)
	}
	var decoded Content
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Amount == nil || *decoded.Amount != amount {
		t.Fatalf("expected amount %d, got %v", amount, decoded.Amount)
	}
}

func TestUnknownActionDecodesWithoutError(t *testing.T) {
	raw := []byte(`{"order":{"version":1,"action":"some-future-action","content":{"text_message":"hi"}}}`)
	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("expected unknown action to decode cleanly, got %v", err)
	}
	if msg.Order.Action != Action("some-future-action") {
		t.Fatalf("unexpected action value: %v", msg.Order.Action)
	}
}
