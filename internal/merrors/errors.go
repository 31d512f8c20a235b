// Package merrors holds the sentinel error values shared by every package in
// the module. It exists so that leaf packages (keys, cryptography, relay,
// correlator, ...) can return typed errors without importing the root
// package, which would create an import cycle since the root package depends
// on all of them.
package merrors

import "errors"

var (
	ErrInvalidKeyFormat = errors.New("mostro: invalid key format")
	ErrInvalidBech32    = errors.New("mostro: invalid bech32 encoding")
	ErrKeyNotSet        = errors.New("mostro: private key not set")
	ErrNotConnected     = errors.New("mostro: gateway not connected")
	ErrPublishFailed    = errors.New("mostro: publish failed on all relays")
	ErrDecryptFailed    = errors.New("mostro: decrypt failed")
	ErrMalformedMessage = errors.New("mostro: malformed message")
	ErrTimeout          = errors.New("mostro: request timed out")
	ErrDisconnected     = errors.New("mostro: disconnected")
	ErrInvalidAmount    = errors.New("mostro: invalid amount")
	ErrNoRelays         = errors.New("mostro: at least one relay is required")
)
