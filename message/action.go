package message

// Action is drawn from the closed set of Mostro protocol actions. Unknown
// strings decode without error — the zero-value handling here treats the
// type as an open string enum, matching the design intent that an unrecognized
// action must never be a fatal decode error.
type Action string

const (
	ActionNewOrder   Action = "new-order"
	ActionTakeSell   Action = "take-sell"
	ActionTakeBuy    Action = "take-buy"
	ActionPayInvoice Action = "pay-invoice"
	ActionAddInvoice Action = "add-invoice"
	ActionFiatSent   Action = "fiat-sent"
	ActionFiatSentOk Action = "fiat-sent-ok"
	ActionRelease    Action = "release"
	ActionReleased   Action = "released"
	ActionCancel     Action = "cancel"
	ActionCanceled   Action = "canceled"

	ActionWaitingBuyerInvoice Action = "waiting-buyer-invoice"
	ActionWaitingSellerToPay  Action = "waiting-seller-to-pay"
	ActionBuyerTookOrder      Action = "buyer-took-order"

	ActionHoldInvoicePaymentAccepted Action = "hold-invoice-payment-accepted"
	ActionHoldInvoicePaymentSettled  Action = "hold-invoice-payment-settled"
	ActionHoldInvoicePaymentCanceled Action = "hold-invoice-payment-canceled"

	ActionCooperativeCancelInitiatedByYou  Action = "cooperative-cancel-initiated-by-you"
	ActionCooperativeCancelInitiatedByPeer Action = "cooperative-cancel-initiated-by-peer"
	ActionCooperativeCancelAccepted        Action = "cooperative-cancel-accepted"

	ActionRate         Action = "rate"
	ActionRateUser     Action = "rate-user"
	ActionRateReceived Action = "rate-received"

	ActionDispute                Action = "dispute"
	ActionDisputeInitiatedByYou  Action = "dispute-initiated-by-you"
	ActionDisputeInitiatedByPeer Action = "dispute-initiated-by-peer"

	ActionCantDo Action = "cant-do"

	ActionOutOfRangeFiatAmount   Action = "out-of-range-fiat-amount"
	ActionIsNotYourDispute       Action = "is-not-your-dispute"
	ActionNotFound               Action = "not-found"
	ActionIncorrectInvoiceAmount Action = "incorrect-invoice-amount"
	ActionInvalidSatsAmount      Action = "invalid-sats-amount"
	ActionOutOfRangeSatsAmount   Action = "out-of-range-sats-amount"
	ActionPaymentFailed          Action = "payment-failed"
	ActionInvoiceUpdated         Action = "invoice-updated"
)
