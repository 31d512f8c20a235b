package keys

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"mostro-client-go/internal/merrors"
)

func TestLoadHex(t *testing.T) {
	raw := strings.Repeat("01", 32)
	m, err := Load(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Hex() != raw {
		t.Fatalf("hex round-trip mismatch: got %s want %s", m.Hex(), raw)
	}
	pub, err := m.PublicKey(Hex)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if len(pub) != 64 {
		t.Fatalf("expected 64-char hex pubkey, got %d chars", len(pub))
	}
}

func TestLoadNsecRoundTrip(t *testing.T) {
	raw := strings.Repeat("02", 32)
	m, err := Load(raw)
	if err != nil {
		t.Fatalf("load hex: %v", err)
	}
	nsec, err := m.Nsec()
	if err != nil {
		t.Fatalf("encode nsec: %v", err)
	}
	if !strings.HasPrefix(nsec, "nsec1") {
		t.Fatalf("expected nsec1 prefix, got %s", nsec)
	}
	m2, err := Load(nsec)
	if err != nil {
		t.Fatalf("decode nsec: %v", err)
	}
	if m2.Hex() != raw {
		t.Fatalf("nsec round-trip mismatch: got %s want %s", m2.Hex(), raw)
	}
}

func TestLoadInvalidFormat(t *testing.T) {
	_, err := Load("not-a-key")
	if !errors.Is(err, merrors.ErrInvalidKeyFormat) {
		t.Fatalf("expected ErrInvalidKeyFormat, got %v", err)
	}
}

func TestLoadInvalidBech32(t *testing.T) {
	_, err := Load("nsec1invalidchecksum")
	if !errors.Is(err, merrors.ErrInvalidBech32) {
		t.Fatalf("expected ErrInvalidBech32, got %v", err)
	}
}

func TestNpubEncoding(t *testing.T) {
	raw := strings.Repeat("03", 32)
	m, err := Load(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	npub, err := m.PublicKey(Npub)
	if err != nil {
		t.Fatalf("npub: %v", err)
	}
	if !strings.HasPrefix(npub, "npub1") {
		t.Fatalf("expected npub1 prefix, got %s", npub)
	}
}

func TestRandomEphemeralKeyIsUnique(t *testing.T) {
	a, err := RandomEphemeralKey()
	if err != nil {
		t.Fatalf("ephemeral key: %v", err)
	}
	b, err := RandomEphemeralKey()
	if err != nil {
		t.Fatalf("ephemeral key: %v", err)
	}
	if a.Hex() == b.Hex() {
		t.Fatalf("expected distinct ephemeral keys")
	}
	if _, err := hex.DecodeString(a.Hex()); err != nil {
		t.Fatalf("ephemeral key not valid hex: %v", err)
	}
}

func TestStoreStartsEmptyAndAcceptsReplacement(t *testing.T) {
	s := NewStore(nil)
	if s.Current() != nil {
		t.Fatal("expected empty store to have no current manager")
	}
	m, err := Load(strings.Repeat("04", 32))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Set(m)
	if s.Current() != m {
		t.Fatal("expected Current to return the manager passed to Set")
	}
}
