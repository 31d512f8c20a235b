package mostro

import "mostro-client-go/internal/merrors"

// Sentinel errors surfaced across the client. Callers should use errors.Is
// against these rather than matching on string content. They are defined in
// internal/merrors so leaf packages can return them without importing this
// package.
var (
	// ErrInvalidKeyFormat is returned when a private key string is neither
	// 64 hex characters nor a bech32 nsec.
	ErrInvalidKeyFormat = merrors.ErrInvalidKeyFormat
	// ErrInvalidBech32 is returned when a string looks like bech32 but fails
	// to decode or carries the wrong human-readable prefix.
	ErrInvalidBech32 = merrors.ErrInvalidBech32
	// ErrKeyNotSet is returned by any trade action when no private key has
	// been loaded into the orchestrator.
	ErrKeyNotSet = merrors.ErrKeyNotSet
	// ErrNotConnected is returned when an operation requires a live relay
	// connection that has not yet been established.
	ErrNotConnected = merrors.ErrNotConnected
	// ErrPublishFailed is returned when every connected relay rejected a
	// published event.
	ErrPublishFailed = merrors.ErrPublishFailed
	// ErrDecryptFailed is returned internally when MAC verification fails
	// decrypting an inbound message. It is never surfaced to a caller; it is
	// logged and the event is dropped.
	ErrDecryptFailed = merrors.ErrDecryptFailed
	// ErrMalformedMessage is returned internally when an inbound message
	// fails to parse as a MostroMessage. Logged and dropped, never surfaced.
	ErrMalformedMessage = merrors.ErrMalformedMessage
	// ErrTimeout is returned to a caller awaiting a correlator completion
	// that was not fulfilled before its deadline.
	ErrTimeout = merrors.ErrTimeout
	// ErrDisconnected is returned to every outstanding waiter when the
	// gateway is torn down via Disconnect.
	ErrDisconnected = merrors.ErrDisconnected
	// ErrInvalidAmount is returned by SubmitOrder when a negative amount is
	// supplied.
	ErrInvalidAmount = merrors.ErrInvalidAmount
	// ErrNoRelays is returned at construction time when the relay list is
	// empty.
	ErrNoRelays = merrors.ErrNoRelays
)
