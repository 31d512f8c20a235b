// Package config loads Client construction parameters from a TOML file on
// disk: if the file is missing, a default is generated (including a fresh
// private key) and persisted so the caller's identity is stable across
// restarts.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"mostro-client-go/keys"
)

// File is the on-disk shape of a Client's configuration.
type File struct {
	MostroPubkey string   `toml:"MostroPubkey"`
	Relays       []string `toml:"Relays"`
	PrivateKey   string   `toml:"PrivateKey"`
	Debug        bool     `toml:"Debug"`
}

// defaultRelays seeds a freshly generated config with well-known public
// relays so Load never hands back an empty Relays list.
var defaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nostr.mom",
}

// Load reads path and decodes it into a File. If path does not exist, a
// default File is generated (with a freshly minted private key) and written
// to path before returning, so a second Load against the same path is
// idempotent.
func Load(path string) (*File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &File{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if cfg.PrivateKey == "" {
		m, err := keys.RandomEphemeralKey()
		if err != nil {
			return nil, fmt.Errorf("config: generate private key: %w", err)
		}
		cfg.PrivateKey = m.Hex()
		if err := save(path, cfg); err != nil {
			return nil, err
		}
	}
	if len(cfg.Relays) == 0 {
		cfg.Relays = append([]string(nil), defaultRelays...)
	}
	return cfg, nil
}

func createDefault(path string) (*File, error) {
	m, err := keys.RandomEphemeralKey()
	if err != nil {
		return nil, fmt.Errorf("config: generate private key: %w", err)
	}
	cfg := &File{
		Relays:     append([]string(nil), defaultRelays...),
		PrivateKey: m.Hex(),
	}
	if err := save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func save(path string, cfg *File) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}
