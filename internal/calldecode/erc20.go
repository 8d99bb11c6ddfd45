package calldecode

import (
	"math/big"

	"sessiongate/internal/evm"
)

// TransferSelector is the ABI selector of transfer(address,uint256),
// keccak256("transfer(address,uint256)")[:4].
var TransferSelector = Selector{0xa9, 0x05, 0x9c, 0xbb}

// transferDataLength is selector + recipient word + amount word.
const transferDataLength = SelectorLength + 32 + 32

// erc20Transfer decodes the canonical fungible-token transfer shape.
// The asset is the token contract, i.e. the call target.
type erc20Transfer struct{}

func (erc20Transfer) Decode(target evm.Address, value *big.Int, data []byte) (Spend, error) {
	if len(data) != transferDataLength {
		return Spend{}, ErrUnsupportedCall
	}
	if value != nil && value.Sign() != 0 {
		return Spend{}, ErrMixedValue
	}
	amount := evm.WordToU256(data[SelectorLength+32:])
	return Spend{Asset: target, Amount: amount}, nil
}

// EncodeTransfer builds transfer(address,uint256) calldata for recipient and
// amount. Used by seeding and tests to produce recognized token spends.
func EncodeTransfer(recipient evm.Address, amount *big.Int) []byte {
	data := make([]byte, 0, transferDataLength)
	data = append(data, TransferSelector[:]...)
	data = append(data, evm.LeftPad32(recipient[:])...)
	data = append(data, evm.U256Bytes(amount)...)
	return data
}
