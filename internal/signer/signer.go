// Package signer loads the executor's signing keypair once at startup and
// exposes an opaque signing interface. Transaction encoding and signature
// format beyond attaching this key are out of scope for this module.
package signer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer holds a loaded Solana keypair for the process lifetime.
type Signer struct {
	key solana.PrivateKey
}

// Load reads a keypair from path (the format produced by solana-keygen).
// A missing or unreadable keypair aborts startup — Trader refuses to run
// without a signing identity.
func Load(path string) (*Signer, error) {
	if path == "" {
		return nil, fmt.Errorf("no keypair path configured")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair from %q: %w", path, err)
	}
	return &Signer{key: key}, nil
}

// PublicKey returns the signer's public identity.
func (s *Signer) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// SignMessage signs an arbitrary message with the loaded private key.
func (s *Signer) SignMessage(msg []byte) (solana.Signature, error) {
	return s.key.Sign(msg)
}

// KeyLookup returns a function suitable for solana.Transaction.Sign,
// which looks up the private key for a given public key. Only the
// signer's own key is known.
func (s *Signer) KeyLookup() func(key solana.PublicKey) *solana.PrivateKey {
	pub := s.key.PublicKey()
	return func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &s.key
		}
		return nil
	}
}
