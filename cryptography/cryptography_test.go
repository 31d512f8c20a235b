package cryptography

import (
	"errors"
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"mostro-client-go/internal/merrors"
)

const (
	alicePriv = "0000000000000000000000000000000000000000000000000000000000000001"
	bobPriv   = "0000000000000000000000000000000000000000000000000000000000000002"
)

func pubOf(t *testing.T, priv string) string {
	t.Helper()
	pub, err := nostr.GetPublicKey(priv)
	if err != nil {
		t.Fatalf("derive pubkey: %v", err)
	}
	return pub
}

func TestNIP44RoundTrip(t *testing.T) {
	alicePub := pubOf(t, alicePriv)
	bobPub := pubOf(t, bobPriv)

	ciphertext, err := EncryptNIP44("hello mostro", alicePriv, bobPub)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plaintext, err := DecryptNIP44(ciphertext, bobPriv, alicePub)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "hello mostro" {
		t.Fatalf("round trip mismatch: got %q", plaintext)
	}
}

func TestNIP44DecryptFailureOnTamperedCiphertext(t *testing.T) {
	alicePub := pubOf(t, alicePriv)
	bobPub := pubOf(t, bobPriv)

	ciphertext, err := EncryptNIP44("hello mostro", alicePriv, bobPub)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tampered := strings.ToUpper(ciphertext[:len(ciphertext)-4]) + ciphertext[len(ciphertext)-4:]
	if tampered == ciphertext {
		t.Skip("tampering produced identical ciphertext")
	}
	_, err = DecryptNIP44(tampered, bobPriv, alicePub)
	if !errors.Is(err, merrors.ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestNIP04RoundTrip(t *testing.T) {
	alicePub := pubOf(t, alicePriv)
	bobPub := pubOf(t, bobPriv)

	ciphertext, err := EncryptNIP04("legacy dm", alicePriv, bobPub)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plaintext, err := DecryptNIP04(ciphertext, bobPriv, alicePub)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "legacy dm" {
		t.Fatalf("round trip mismatch: got %q", plaintext)
	}
}

func TestSignEventProducesIDAndSig(t *testing.T) {
	evt := &nostr.Event{
		Kind:      1,
		CreatedAt: nostr.Now(),
		Content:   "test",
	}
	signed, err := SignEvent(evt, alicePriv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.ID == "" {
		t.Fatal("expected non-empty id")
	}
	if signed.Sig == "" {
		t.Fatal("expected non-empty signature")
	}
	ok, err := signed.CheckSignature()
	if err != nil {
		t.Fatalf("check signature: %v", err)
	}
	if !ok {
		t.Fatal("expected valid signature")
	}
}
