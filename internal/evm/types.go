// Package evm holds the minimal EVM primitives the gateway works with:
// addresses, hashes, keccak256, and ABI word helpers.
package evm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// AddressLength is the byte length of an EVM address.
	AddressLength = 20
	// HashLength is the byte length of a keccak256 hash.
	HashLength = 32
)

// ErrInvalidAddress is returned when a hex string does not parse to 20 bytes.
var ErrInvalidAddress = errors.New("evm: invalid address")

// Address is a 20-byte EVM account or contract address.
type Address [AddressLength]byte

// ZeroAddress is the sentinel asset id for the native asset, matching the
// zero-address convention of token-vs-native call sites.
var ZeroAddress = Address{}

// Hash is a 32-byte keccak256 digest.
type Hash [HashLength]byte

// HexToAddress parses a 0x-prefixed (or bare) hex string into an Address.
func HexToAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != AddressLength {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// BytesToAddress sets an Address from b, left-truncating or left-padding to 20 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// Hex returns the 0x-prefixed lowercase hex encoding.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero (native asset) address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string { return a.Hex() }

// MarshalText encodes the address as 0x hex for JSON and text encoders.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText parses a 0x-prefixed hex address.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := HexToAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hex returns the 0x-prefixed lowercase hex encoding.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string { return h.Hex() }

// MarshalText encodes the hash as 0x hex for JSON and text encoders.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText parses a 0x-prefixed hex hash.
func (h *Hash) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimSpace(string(text)), "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != HashLength {
		return fmt.Errorf("evm: invalid hash %q", string(text))
	}
	copy(h[:], b)
	return nil
}

// Keccak256 returns the keccak256 digest of the concatenation of data.
func Keccak256(data ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	d.Sum(h[:0])
	return h
}

// LeftPad32 pads b on the left with zeroes to a 32-byte ABI word.
// b longer than 32 bytes is truncated from the left.
func LeftPad32(b []byte) []byte {
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// U256Bytes returns the 32-byte big-endian ABI encoding of v. Nil encodes as zero.
func U256Bytes(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return LeftPad32(v.Bytes())
}

// WordToAddress decodes a 32-byte ABI word into an address (last 20 bytes).
func WordToAddress(word []byte) Address {
	return BytesToAddress(word)
}

// WordToU256 decodes a 32-byte ABI word into an unsigned big integer.
func WordToU256(word []byte) *big.Int {
	return new(big.Int).SetBytes(word)
}
