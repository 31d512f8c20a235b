package mostro

import (
	"errors"
	"strings"
	"testing"

	"mostro-client-go/cryptography"
	"mostro-client-go/keys"
)

func TestNormalizePubkeyAcceptsHex(t *testing.T) {
	raw := strings.Repeat("ab", 32)
	got, err := normalizePubkey(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != raw {
		t.Fatalf("expected hex passthrough, got %s", got)
	}
}

func TestNormalizePubkeyDecodesNpub(t *testing.T) {
	m, err := keys.Load(strings.Repeat("05", 32))
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	pubHex, err := m.PublicKey(keys.Hex)
	if err != nil {
		t.Fatalf("hex pub: %v", err)
	}
	npub, err := m.PublicKey(keys.Npub)
	if err != nil {
		t.Fatalf("npub: %v", err)
	}

	got, err := normalizePubkey(npub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != pubHex {
		t.Fatalf("npub decode mismatch: got %s want %s", got, pubHex)
	}
}

func TestNormalizePubkeyRejectsGarbage(t *testing.T) {
	if _, err := normalizePubkey("nsomething-else"); !errors.Is(err, ErrInvalidBech32) {
		t.Fatalf("expected ErrInvalidBech32, got %v", err)
	}
}

func TestBuildPeerDMRoundTrip(t *testing.T) {
	sender, err := keys.Load(strings.Repeat("06", 32))
	if err != nil {
		t.Fatalf("sender key: %v", err)
	}
	recipient, err := keys.Load(strings.Repeat("07", 32))
	if err != nil {
		t.Fatalf("recipient key: %v", err)
	}
	recipientPub, err := recipient.PublicKey(keys.Hex)
	if err != nil {
		t.Fatalf("recipient pub: %v", err)
	}

	event, err := buildPeerDM(sender, recipientPub, "meet at noon", 1_700_000_000)
	if err != nil {
		t.Fatalf("build peer dm: %v", err)
	}
	if event.Kind != KindLegacyDM {
		t.Fatalf("expected kind %d, got %d", KindLegacyDM, event.Kind)
	}
	if ok, err := event.CheckSignature(); err != nil || !ok {
		t.Fatalf("expected valid signature, ok=%v err=%v", ok, err)
	}
	var foundRecipientTag bool
	for _, tag := range event.Tags {
		if len(tag) == 2 && tag[0] == "p" && tag[1] == recipientPub {
			foundRecipientTag = true
		}
	}
	if !foundRecipientTag {
		t.Fatalf("expected p tag addressed to recipient, got %v", event.Tags)
	}

	plaintext, err := cryptography.DecryptNIP04(event.Content, recipient.Hex(), event.PubKey)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "meet at noon" {
		t.Fatalf("round trip mismatch: got %q", plaintext)
	}
}
