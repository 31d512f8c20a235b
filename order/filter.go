package order

import (
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Filters is the structured predicate the Order Tag Filter matches a
// kind-38383 event's tags against. A zero-valued field imposes no
// constraint; Authors is forwarded to the relay gateway as part of the
// subscription filter rather than checked locally.
type Filters struct {
	DocumentType   string   // z tag, typically "order"
	OrderType      Kind     // k tag
	Currency       string   // f tag, exact uppercase ISO code
	Status         Status   // s tag
	Platform       string   // y tag
	PaymentMethods []string // pm tag, case-insensitive intersection
	Authors        []string // relay-side author prefix, not tag-matched here
}

// tagMap projects a Nostr event's tag list into a single-letter-key lookup of
// the first value, matching the Mostro tag convention.
func tagMap(tags nostr.Tags) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		if len(t) < 2 {
			continue
		}
		if _, exists := m[t[0]]; exists {
			continue // first value wins
		}
		m[t[0]] = t[1]
	}
	return m
}

// Match reports whether event e satisfies every non-empty field of f. A true
// result implies every non-empty filter field is satisfied by the
// corresponding tag; fields left at their zero value impose no constraint.
func (f Filters) Match(e *nostr.Event) bool {
	if e == nil {
		return false
	}
	tags := tagMap(e.Tags)

	if f.DocumentType != "" && tags["z"] != f.DocumentType {
		return false
	}
	if f.OrderType != "" && Kind(tags["k"]) != f.OrderType {
		return false
	}
	if f.Currency != "" && tags["f"] != f.Currency {
		return false
	}
	if f.Status != "" && Status(tags["s"]) != f.Status {
		return false
	}
	if f.Platform != "" && tags["y"] != f.Platform {
		return false
	}
	if len(f.PaymentMethods) > 0 {
		wanted := make(map[string]struct{}, len(f.PaymentMethods))
		for _, pm := range f.PaymentMethods {
			wanted[strings.ToLower(strings.TrimSpace(pm))] = struct{}{}
		}
		offered := splitPaymentMethods(strings.ToLower(tags["pm"]))
		matched := false
		for _, o := range offered {
			if _, ok := wanted[o]; ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// IsMostroInfo reports whether an event's tags look like a MostroInfo
// document, distinguished by the presence of a mostro_pubkey tag.
func IsMostroInfo(e *nostr.Event) bool {
	if e == nil {
		return false
	}
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "mostro_pubkey" {
			return true
		}
	}
	return false
}

// ExtractOrder projects a matched kind-38383 event into an Order record.
// Events with malformed or missing mandatory tags (d, k) are not errors from
// the caller's perspective: ok is false and the event should be silently
// dropped.
func ExtractOrder(e *nostr.Event) (Order, bool) {
	if e == nil {
		return Order{}, false
	}
	tags := tagMap(e.Tags)

	id, ok := tags["d"]
	if !ok || id == "" {
		return Order{}, false
	}
	kindTag, ok := tags["k"]
	if !ok || (Kind(kindTag) != KindBuy && Kind(kindTag) != KindSell) {
		return Order{}, false
	}

	amount, _ := strconv.ParseInt(tags["amt"], 10, 64)

	o := Order{
		ID:            id,
		Kind:          Kind(kindTag),
		Status:        Status(tags["s"]),
		Amount:        amount,
		FiatCode:      tags["f"],
		FiatAmount:    parseFiatAmount(tags["fa"]),
		PaymentMethod: tags["pm"],
		Platform:      tags["y"],
		CreatedAt:     time.Unix(int64(e.CreatedAt), 0).UTC(),
		Author:        e.PubKey,
		RawEventID:    e.ID,
	}
	return o, true
}

// ExtractMostroInfo projects a MostroInfo-shaped event into a MostroInfo
// record, applying the documented defaults for fields a given deployment may
// omit.
func ExtractMostroInfo(e *nostr.Event) (MostroInfo, bool) {
	if e == nil || !IsMostroInfo(e) {
		return MostroInfo{}, false
	}
	tags := tagMap(e.Tags)

	info := MostroInfo{
		MostroPubkey:                tags["mostro_pubkey"],
		MostroVersion:               tags["mostro_version"],
		MostroCommitID:              tags["mostro_commit_id"],
		ExpirationHours:             defaultExpirationHours,
		ExpirationSeconds:           defaultExpirationSeconds,
		HoldInvoiceExpirationWindow: defaultHoldInvoiceExpirationWindow,
		InvoiceExpirationWindow:     defaultInvoiceExpirationWindow,
	}
	if v, ok := tags["max_order_amount"]; ok {
		info.MaxOrderAmount, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := tags["min_order_amount"]; ok {
		info.MinOrderAmount, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := tags["expiration_hours"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			info.ExpirationHours = n
		}
	}
	if v, ok := tags["expiration_seconds"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			info.ExpirationSeconds = n
		}
	}
	if v, ok := tags["fee"]; ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			info.Fee = n
		}
	}
	if v, ok := tags["hold_invoice_expiration_window"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			info.HoldInvoiceExpirationWindow = n
		}
	}
	if v, ok := tags["invoice_expiration_window"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			info.InvoiceExpirationWindow = n
		}
	}
	return info, true
}
