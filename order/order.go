// Package order models the public P2P order documents and Mostro instance
// configuration documents that travel as kind-38383 Nostr events, and
// implements the Order Tag Filter that matches an event's tag set against a
// structured predicate (component D of the client core).
package order

import (
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes a buy order from a sell order.
type Kind string

const (
	KindBuy  Kind = "buy"
	KindSell Kind = "sell"
)

// Status enumerates the order lifecycle states a kind-38383 document may
// carry in its "s" tag.
type Status string

const (
	StatusPending               Status = "pending"
	StatusWaitingBuyerInvoice   Status = "waiting-buyer-invoice"
	StatusWaitingSellerToPay    Status = "waiting-seller-to-pay"
	StatusActive                Status = "active"
	StatusFiatSent              Status = "fiat-sent"
	StatusSuccess               Status = "success"
	StatusCanceled              Status = "canceled"
	StatusCooperativelyCanceled Status = "cooperatively-canceled"
	StatusInDispute             Status = "in-dispute"
	StatusExpired               Status = "expired"
	StatusInProgress            Status = "in-progress"
)

// FiatAmount is either a single integer amount or a [min, max] range,
// mirroring the "fa" tag which is either a bare integer or a "min-max" string.
type FiatAmount struct {
	Exact    int
	Min, Max int
	IsRange  bool
}

// Order is the projection of a matched kind-38383 event into the domain
// fields the rest of the client operates on.
type Order struct {
	ID            string
	Kind          Kind
	Status        Status
	Amount        int64 // 0 encodes "market price"
	FiatCode      string
	FiatAmount    FiatAmount
	PaymentMethod string
	Platform      string
	CreatedAt     time.Time
	Author        string
	RawEventID    string
}

// PaymentMethods splits the comma-separated payment_method tag into its
// constituent, trimmed entries.
func (o Order) PaymentMethods() []string {
	return splitPaymentMethods(o.PaymentMethod)
}

func splitPaymentMethods(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MostroInfo is the published configuration document for a Mostro instance.
type MostroInfo struct {
	MostroPubkey                string
	MostroVersion               string
	MostroCommitID              string
	MaxOrderAmount              int64
	MinOrderAmount              int64
	ExpirationHours             int
	ExpirationSeconds           int
	Fee                         float64
	HoldInvoiceExpirationWindow int
	InvoiceExpirationWindow     int
}

const (
	defaultExpirationHours             = 24
	defaultExpirationSeconds           = 900
	defaultHoldInvoiceExpirationWindow = 120
	defaultInvoiceExpirationWindow     = 120
)

func parseFiatAmount(raw string) FiatAmount {
	if idx := strings.IndexByte(raw, '-'); idx > 0 {
		minStr, maxStr := raw[:idx], raw[idx+1:]
		min, errMin := strconv.Atoi(minStr)
		max, errMax := strconv.Atoi(maxStr)
		if errMin == nil && errMax == nil {
			return FiatAmount{Min: min, Max: max, IsRange: true}
		}
	}
	n, _ := strconv.Atoi(raw)
	return FiatAmount{Exact: n}
}
