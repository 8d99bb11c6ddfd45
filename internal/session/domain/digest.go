package domain

import (
	"encoding/binary"
	"math/big"

	"sessiongate/internal/evm"
)

// grantDigestTag domain-separates grant digests from operation digests.
var grantDigestTag = []byte("sessiongate/grant")

// Digest returns the hash the owning account signs to authorize creation of
// this grant on the given chain: keccak256 over a tagged canonical encoding
// of the grant's identity and window fields. Usage fields (limitUsed,
// lastUsed) are excluded; a fresh grant always starts unspent.
func (g *SessionGrant) Digest(chainID *big.Int) evm.Hash {
	var validAfter, validUntil, refresh [8]byte
	binary.BigEndian.PutUint64(validAfter[:], uint64(g.ValidAfter))
	binary.BigEndian.PutUint64(validUntil[:], uint64(g.ValidUntil))
	binary.BigEndian.PutUint64(refresh[:], uint64(g.RefreshInterval))
	return evm.Keccak256(
		grantDigestTag,
		evm.U256Bytes(chainID),
		g.Account[:],
		g.SessionKey[:],
		g.Asset[:],
		validAfter[:],
		validUntil[:],
		evm.U256Bytes(g.LimitAmount),
		refresh[:],
	)
}
