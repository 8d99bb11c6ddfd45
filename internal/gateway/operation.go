// Package gateway implements the delegated-operation entry point: a linear
// pipeline that verifies the session-key signature, decodes the call into a
// spend, authorizes it against the grant registry, and forwards the call
// unchanged to the account executor.
package gateway

import (
	"encoding/binary"
	"math/big"

	"sessiongate/internal/evm"
)

// DelegatedOperation is a signed request, submitted by a relayer, asking an
// account to execute a call on a session key's authority.
type DelegatedOperation struct {
	// Account is the owning account the call executes as.
	Account evm.Address
	// SessionKey is the address of the delegated key claimed to have signed.
	SessionKey evm.Address
	// Nonce distinguishes otherwise identical operations in the digest.
	// Ordering and replay are the settlement layer's concern.
	Nonce uint64
	// Target is the call target: a recipient for native transfers, a token
	// contract for token transfers.
	Target evm.Address
	// Value is the native value sent with the call.
	Value *big.Int
	// Data is the call payload; empty for native transfers.
	Data []byte
	// Signature is the 65-byte EIP-191 signature over Hash(chainID).
	Signature []byte
}

// Hash returns the operation digest the session key signs: keccak256 over
// the canonical encoding of (chainID, account, sessionKey, nonce, target,
// value, keccak256(data)). The signature itself is not part of the digest.
func (op *DelegatedOperation) Hash(chainID *big.Int) evm.Hash {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], op.Nonce)
	dataHash := evm.Keccak256(op.Data)
	return evm.Keccak256(
		evm.U256Bytes(chainID),
		op.Account[:],
		op.SessionKey[:],
		nonce[:],
		op.Target[:],
		evm.U256Bytes(op.Value),
		dataHash[:],
	)
}
