// Package security implements the cryptographic boundary of the gateway:
// secp256k1 session keypairs, Ethereum address derivation, EIP-191 message
// signing and recovery, and relayer API tokens.
package security

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"sessiongate/internal/evm"
)

// ErrInvalidKey is returned when key material is malformed.
var ErrInvalidKey = errors.New("security: invalid key")

// SessionKeypair holds a session signing key and its derived address.
// The address is the session key id the registry and gateway operate on.
type SessionKeypair struct {
	PrivateKey *secp256k1.PrivateKey
	Address    evm.Address
}

// GenerateSessionKeypair creates a fresh random session keypair.
func GenerateSessionKeypair() (*SessionKeypair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &SessionKeypair{PrivateKey: priv, Address: PubKeyAddress(priv.PubKey())}, nil
}

// SessionKeypairFromSeed derives a deterministic keypair from an arbitrary
// seed string: the private key is keccak256(seed). Used by seeding and by
// callers that re-derive a throwaway key from stored entropy.
func SessionKeypairFromSeed(seed string) (*SessionKeypair, error) {
	if seed == "" {
		return nil, ErrInvalidKey
	}
	h := evm.Keccak256([]byte(seed))
	priv := secp256k1.PrivKeyFromBytes(h[:])
	if priv.Key.IsZero() {
		return nil, ErrInvalidKey
	}
	return &SessionKeypair{PrivateKey: priv, Address: PubKeyAddress(priv.PubKey())}, nil
}

// PubKeyAddress derives the Ethereum address for a secp256k1 public key:
// the last 20 bytes of keccak256 over the uncompressed point without the
// 0x04 prefix.
func PubKeyAddress(pub *secp256k1.PublicKey) evm.Address {
	raw := pub.SerializeUncompressed()
	h := evm.Keccak256(raw[1:])
	return evm.BytesToAddress(h[12:])
}
