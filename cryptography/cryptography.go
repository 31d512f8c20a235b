// Package cryptography implements the Event Cryptographer: NIP-04 legacy
// encryption for kind-4 direct messages, NIP-44 v2 encryption for gift-wrap
// payloads, and event finalization (id computation + schnorr signature).
//
// The actual cryptographic primitives (ChaCha20, HMAC-SHA256, HKDF, BIP-340
// schnorr) are not reimplemented here; they are delegated to nbd-wtf/go-nostr:
// its nip04 and nip44 packages for encryption and its Event.Sign for
// signatures, which this library treats as an external dependency.
package cryptography

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip44"

	"mostro-client-go/internal/merrors"
)

// EncryptNIP44 encrypts plaintext for recipientPubHex using the conversation
// key derived from senderPrivHex and the recipient's public key, per NIP-44
// v2. The result is base64-encoded.
func EncryptNIP44(plaintext, senderPrivHex, recipientPubHex string) (string, error) {
	key, err := nip44.GenerateConversationKey(recipientPubHex, senderPrivHex)
	if err != nil {
		return "", fmt.Errorf("cryptography: derive nip44 conversation key: %w", err)
	}
	ciphertext, err := nip44.Encrypt(plaintext, key)
	if err != nil {
		return "", fmt.Errorf("cryptography: nip44 encrypt: %w", err)
	}
	return ciphertext, nil
}

// DecryptNIP44 reverses EncryptNIP44. A MAC failure surfaces as
// merrors.ErrDecryptFailed; callers (the Orchestrator) are expected to log
// and drop the event rather than propagate this further.
func DecryptNIP44(ciphertextB64, localPrivHex, peerPubHex string) (string, error) {
	key, err := nip44.GenerateConversationKey(peerPubHex, localPrivHex)
	if err != nil {
		return "", fmt.Errorf("%w: derive conversation key: %v", merrors.ErrDecryptFailed, err)
	}
	plaintext, err := nip44.Decrypt(ciphertextB64, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", merrors.ErrDecryptFailed, err)
	}
	return plaintext, nil
}

// EncryptNIP04 encrypts plaintext for recipientPubHex using legacy kind-4
// direct-message encryption. Kept as a distinct codepath from NIP-44 v2 to
// preserve bit-compatibility with the deployed Mostro ecosystem, which still
// accepts kind-4 DMs from older clients.
func EncryptNIP04(plaintext, senderPrivHex, recipientPubHex string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(recipientPubHex, senderPrivHex)
	if err != nil {
		return "", fmt.Errorf("cryptography: derive nip04 shared secret: %w", err)
	}
	ciphertext, err := nip04.Encrypt(plaintext, shared)
	if err != nil {
		return "", fmt.Errorf("cryptography: nip04 encrypt: %w", err)
	}
	return ciphertext, nil
}

// DecryptNIP04 reverses EncryptNIP04.
func DecryptNIP04(ciphertextB64, localPrivHex, peerPubHex string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(peerPubHex, localPrivHex)
	if err != nil {
		return "", fmt.Errorf("%w: derive shared secret: %v", merrors.ErrDecryptFailed, err)
	}
	plaintext, err := nip04.Decrypt(ciphertextB64, shared)
	if err != nil {
		return "", fmt.Errorf("%w: %v", merrors.ErrDecryptFailed, err)
	}
	return plaintext, nil
}

// SignEvent finalizes an unsigned event: it computes the canonical id over
// [0, pubkey, created_at, kind, tags, content] and produces a BIP-340 schnorr
// signature under privHex, mutating and returning the same event.
func SignEvent(unsigned *nostr.Event, privHex string) (*nostr.Event, error) {
	if unsigned == nil {
		return nil, fmt.Errorf("cryptography: nil event")
	}
	if err := unsigned.Sign(privHex); err != nil {
		return nil, fmt.Errorf("cryptography: sign event: %w", err)
	}
	return unsigned, nil
}
