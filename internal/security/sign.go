package security

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"sessiongate/internal/evm"
)

// ErrInvalidSignature is returned when a signature is malformed or does not
// recover to any public key.
var ErrInvalidSignature = errors.New("security: invalid signature")

// SignatureLength is the byte length of an [R || S || V] signature.
const SignatureLength = 65

// PersonalMessageHash applies the EIP-191 personal-message prefix to the
// given digest and returns keccak256 of the result. This matches wallets
// that sign the raw bytes of an operation hash via personal_sign.
func PersonalMessageHash(digest evm.Hash) evm.Hash {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(digest))
	return evm.Keccak256([]byte(prefix), digest[:])
}

// SignDigest signs the EIP-191 personal-message hash of digest with the
// session private key and returns a 65-byte [R || S || V] signature with
// V in {27, 28}.
func SignDigest(priv *secp256k1.PrivateKey, digest evm.Hash) ([]byte, error) {
	if priv == nil {
		return nil, ErrInvalidKey
	}
	msgHash := PersonalMessageHash(digest)
	// SignCompact yields [V || R || S] with V = 27 + recovery id; rearrange
	// to the Ethereum wire order with V last.
	compact := secpecdsa.SignCompact(priv, msgHash[:], false)
	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}

// RecoverSigner recovers the address that produced sig over the EIP-191
// personal-message hash of digest. sig is [R || S || V] with V in
// {0, 1, 27, 28}.
func RecoverSigner(digest evm.Hash, sig []byte) (evm.Address, error) {
	if len(sig) != SignatureLength {
		return evm.Address{}, ErrInvalidSignature
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return evm.Address{}, ErrInvalidSignature
	}
	compact := make([]byte, SignatureLength)
	compact[0] = v
	copy(compact[1:], sig[:64])

	msgHash := PersonalMessageHash(digest)
	pub, _, err := secpecdsa.RecoverCompact(compact, msgHash[:])
	if err != nil {
		return evm.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return PubKeyAddress(pub), nil
}
