// Package giftwrap implements the Gift-Wrap Builder: it seals an inner rumor
// event under NIP-44 v2 using a fresh ephemeral key and wraps the result as a
// signed kind-1059 event addressed to the recipient, with a randomized
// created_at to frustrate timing correlation (NIP-59, Mostro convention).
package giftwrap

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/nbd-wtf/go-nostr"

	"mostro-client-go/cryptography"
	"mostro-client-go/keys"
)

// KindGiftWrap is the outer envelope kind.
const KindGiftWrap = 1059

// KindRumor is the inner, never-signed event kind carrying the domain
// payload as its content.
const KindRumor = 1

// MaxClockSmear bounds how far into the past created_at may be randomized,
// in seconds (48 hours).
const MaxClockSmear = 2 * 24 * 3600

// Wrap builds a signed kind-1059 gift wrap addressed to recipientPubHex,
// carrying content (already JSON-marshaled as the rumor's content) as an
// unsigned kind-1 rumor attributed to senderPubHex — the real sender's
// identity, asserted but never signed, since only the throwaway ephemeral
// key ever touches the outer envelope. now and randomSource are supplied by
// the caller so the timestamp smear and rumor id are reproducible in tests.
func Wrap(content string, senderPubHex string, recipientPubHex string, now int64, randomSource RandomSource) (*nostr.Event, error) {
	ephemeral, err := keys.RandomEphemeralKey()
	if err != nil {
		return nil, fmt.Errorf("giftwrap: generate ephemeral key: %w", err)
	}

	rumorID, err := randomSource.HexID(32)
	if err != nil {
		return nil, fmt.Errorf("giftwrap: generate rumor id: %w", err)
	}

	rumor := nostr.Event{
		ID:        rumorID,
		PubKey:    senderPubHex,
		CreatedAt: nostr.Timestamp(now),
		Kind:      KindRumor,
		Tags:      nostr.Tags{},
		Content:   content,
	}

	canonical, err := canonicalJSON(rumor)
	if err != nil {
		return nil, fmt.Errorf("giftwrap: canonicalize rumor: %w", err)
	}

	ciphertext, err := cryptography.EncryptNIP44(string(canonical), ephemeral.Hex(), recipientPubHex)
	if err != nil {
		return nil, fmt.Errorf("giftwrap: encrypt rumor: %w", err)
	}

	offset, err := randomSource.Int63n(MaxClockSmear + 1)
	if err != nil {
		return nil, fmt.Errorf("giftwrap: sample clock smear: %w", err)
	}
	smearedCreatedAt := now - offset

	outer := &nostr.Event{
		PubKey:    ephemeral.Hex(),
		CreatedAt: nostr.Timestamp(smearedCreatedAt),
		Kind:      KindGiftWrap,
		Tags:      nostr.Tags{{"p", recipientPubHex}},
		Content:   ciphertext,
	}

	signed, err := cryptography.SignEvent(outer, ephemeral.Hex())
	if err != nil {
		return nil, fmt.Errorf("giftwrap: sign outer event: %w", err)
	}
	return signed, nil
}

// canonicalJSON serializes a rumor deterministically: field order matches
// the NIP-01 id-computation tuple so the recipient (see Unwrap) sees stable
// bytes regardless of struct field order in this Go type.
func canonicalJSON(rumor nostr.Event) ([]byte, error) {
	return json.Marshal(struct {
		ID        string     `json:"id"`
		PubKey    string     `json:"pubkey"`
		CreatedAt int64      `json:"created_at"`
		Kind      int        `json:"kind"`
		Tags      nostr.Tags `json:"tags"`
		Content   string     `json:"content"`
	}{
		ID:        rumor.ID,
		PubKey:    rumor.PubKey,
		CreatedAt: int64(rumor.CreatedAt),
		Kind:      rumor.Kind,
		Tags:      rumor.Tags,
		Content:   rumor.Content,
	})
}

// Unwrap reverses Wrap: it NIP-44-decrypts a kind-1059 event's content under
// the local private key and the outer event's author, and parses the result
// back into a rumor. The inner rumor's own signature (it has none) is never
// checked; Mostro rumors are unsigned by convention.
func Unwrap(event *nostr.Event, localPrivHex string) (*nostr.Event, error) {
	if event == nil {
		return nil, fmt.Errorf("giftwrap: nil event")
	}
	plaintext, err := cryptography.DecryptNIP44(event.Content, localPrivHex, event.PubKey)
	if err != nil {
		return nil, fmt.Errorf("giftwrap: decrypt rumor: %w", err)
	}
	var rumor nostr.Event
	if err := json.Unmarshal([]byte(plaintext), &rumor); err != nil {
		return nil, fmt.Errorf("giftwrap: decode rumor: %w", err)
	}
	return &rumor, nil
}

// RandomSource supplies the two sources of randomness Wrap needs: the rumor
// id and the clock-smear offset. Abstracted behind an interface so tests can
// inject deterministic values while production code uses CryptoRandomSource.
type RandomSource interface {
	// HexID returns a random hex string of n bytes (2n hex characters).
	HexID(n int) (string, error)
	// Int63n returns a uniform random integer in [0, n).
	Int63n(n int64) (int64, error)
}

// CryptoRandomSource is the production RandomSource, backed by
// crypto/rand.
type CryptoRandomSource struct{}

// HexID delegates to keys.RandomHex.
func (CryptoRandomSource) HexID(n int) (string, error) {
	return keys.RandomHex(n)
}

// Int63n draws a uniform integer in [0, n) via crypto/rand, avoiding
// math/rand's non-cryptographic bias for the clock-smear offset.
func (CryptoRandomSource) Int63n(n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("giftwrap: Int63n: n must be positive, got %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}
