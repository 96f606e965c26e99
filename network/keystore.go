package network

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
)

var libp2pKeyName = "libp2p.key"

// ReadLibp2pKey reads the libp2p private key from the passed in data directory.
//
// The key must be named 'libp2p.key'. If no key is found, it is
// generated and persisted. An empty data directory yields an
// in-memory key
func ReadLibp2pKey(dataDir string) (crypto.PrivKey, error) {
	if dataDir == "" {
		priv, _, err := crypto.GenerateKeyPair(crypto.Secp256k1, 256)
		if err != nil {
			return nil, err
		}

		return priv, nil
	}

	path := filepath.Join(dataDir, libp2pKeyName)

	_, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat (%s): %w", path, err)
	}

	if os.IsNotExist(err) {
		// The key doesn't exist, generate it
		priv, _, err := crypto.GenerateKeyPair(crypto.Secp256k1, 256)
		if err != nil {
			return nil, err
		}

		buf, err := crypto.MarshalPrivateKey(priv)
		if err != nil {
			return nil, err
		}

		if err := os.WriteFile(path, []byte(hex.EncodeToString(buf)), 0600); err != nil {
			return nil, err
		}

		return priv, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	buf, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, err
	}

	return crypto.UnmarshalPrivateKey(buf)
}
