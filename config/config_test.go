package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.toml")
	contents := `MostroPubkey = "abc123"
Relays = ["wss://relay.example.com"]
PrivateKey = "0101010101010101010101010101010101010101010101010101010101010101"
Debug = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MostroPubkey != "abc123" {
		t.Fatalf("unexpected mostro pubkey: %s", cfg.MostroPubkey)
	}
	if len(cfg.Relays) != 1 || cfg.Relays[0] != "wss://relay.example.com" {
		t.Fatalf("unexpected relays: %v", cfg.Relays)
	}
	if !cfg.Debug {
		t.Fatal("expected debug true")
	}
}

func TestLoadGeneratesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PrivateKey == "" {
		t.Fatal("expected a generated private key")
	}
	if len(cfg.Relays) == 0 {
		t.Fatal("expected default relays to be populated")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be persisted: %v", err)
	}

	// A second load against the same path must be idempotent: the same
	// private key comes back rather than a freshly generated one.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.PrivateKey != cfg.PrivateKey {
		t.Fatalf("expected stable private key across reloads, got %s then %s", cfg.PrivateKey, again.PrivateKey)
	}
}

func TestLoadBackfillsMissingPrivateKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.toml")
	if err := os.WriteFile(path, []byte(`Relays = ["wss://relay.example.com"]`+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PrivateKey == "" {
		t.Fatal("expected a backfilled private key")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.PrivateKey != cfg.PrivateKey {
		t.Fatal("expected backfilled private key to persist across reloads")
	}
}
