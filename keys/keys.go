// Package keys owns the user's secp256k1 key material: parsing a private key
// from hex or bech32 nsec, projecting the public key in hex or bech32 npub,
// and minting fresh ephemeral keys for gift-wrap envelopes.
package keys

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"mostro-client-go/internal/merrors"
)

// Encoding selects the output form for a public key.
type Encoding int

const (
	Hex Encoding = iota
	Npub
)

// Manager holds (at most) one private key for the lifetime of the instance
// it's attached to. A Manager has no mutating methods; replacing the active
// key means swapping the Manager held by a Store, whose lock serializes the
// swap against readers.
type Manager struct {
	priv *btcec.PrivateKey
	hex  string
}

// Load parses a private key supplied as 64 hex characters or as a bech32
// nsec1... string.
func Load(s string) (*Manager, error) {
	var rawHex string
	switch {
	case isHex64(s):
		rawHex = s
	case len(s) >= 4 && s[:4] == "nsec":
		prefix, value, err := nip19.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("keys: decode nsec: %w: %w", merrors.ErrInvalidBech32, err)
		}
		if prefix != "nsec" {
			return nil, fmt.Errorf("keys: unexpected bech32 prefix %q: %w", prefix, merrors.ErrInvalidBech32)
		}
		sk, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("keys: nsec payload was not a key: %w", merrors.ErrInvalidBech32)
		}
		rawHex = sk
	default:
		return nil, fmt.Errorf("keys: %q is neither hex nor nsec: %w", s, merrors.ErrInvalidKeyFormat)
	}

	b, err := hex.DecodeString(rawHex)
	if err != nil || len(b) != 32 {
		return nil, fmt.Errorf("keys: decode private key bytes: %w", merrors.ErrInvalidKeyFormat)
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return &Manager{priv: priv, hex: rawHex}, nil
}

// FromPrivateKey wraps an already-parsed secp256k1 private key, used
// internally when constructing ephemeral gift-wrap signers.
func FromPrivateKey(priv *btcec.PrivateKey) *Manager {
	return &Manager{priv: priv, hex: hex.EncodeToString(priv.Serialize())}
}

// Hex returns the 64-char hex encoding of the private key.
func (m *Manager) Hex() string {
	if m == nil {
		return ""
	}
	return m.hex
}

// PublicKey returns the x-only public key in the requested encoding.
func (m *Manager) PublicKey(enc Encoding) (string, error) {
	if m == nil || m.priv == nil {
		return "", merrors.ErrKeyNotSet
	}
	pubHex, err := nostr.GetPublicKey(m.hex)
	if err != nil {
		return "", fmt.Errorf("keys: derive public key: %w", err)
	}
	switch enc {
	case Hex:
		return pubHex, nil
	case Npub:
		npub, err := nip19.EncodePublicKey(pubHex)
		if err != nil {
			return "", fmt.Errorf("keys: encode npub: %w", err)
		}
		return npub, nil
	default:
		return "", fmt.Errorf("keys: unknown encoding %d", enc)
	}
}

// Nsec returns the bech32 nsec encoding of the private key.
func (m *Manager) Nsec() (string, error) {
	if m == nil || m.priv == nil {
		return "", merrors.ErrKeyNotSet
	}
	nsec, err := nip19.EncodePrivateKey(m.hex)
	if err != nil {
		return "", fmt.Errorf("keys: encode nsec: %w", err)
	}
	return nsec, nil
}

// RandomEphemeralKey mints a fresh secp256k1 secret uniform over [1, n-1]
// using a cryptographically secure RNG, for use by the gift-wrap builder.
func RandomEphemeralKey() (*Manager, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keys: generate ephemeral key: %w", err)
	}
	return FromPrivateKey(priv), nil
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// secureRandomBytes is kept for callers (rumor ids) that need raw entropy
// rather than a key.
func secureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomHex returns n random bytes hex-encoded; used for rumor identifiers
// that must not be recipient-derivable.
func RandomHex(n int) (string, error) {
	b, err := secureRandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Store is a concurrency-safe holder for the one Manager the Cryptographer,
// Gift-Wrap Builder and Dispatcher share. update_private_key (owned by the
// Orchestrator) replaces the Manager here; readers always see either the old
// or the new key, never a partially-updated one.
type Store struct {
	mu      sync.RWMutex
	manager *Manager
}

// NewStore wraps an optional initial Manager (nil if no key was supplied at
// construction).
func NewStore(initial *Manager) *Store {
	return &Store{manager: initial}
}

// Current returns the active Manager, or nil if no key has been loaded.
func (s *Store) Current() *Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager
}

// Set replaces the active Manager.
func (s *Store) Set(m *Manager) {
	s.mu.Lock()
	s.manager = m
	s.mu.Unlock()
}
