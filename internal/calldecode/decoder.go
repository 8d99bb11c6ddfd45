// Package calldecode inspects an outbound call and normalizes it into a
// single (asset, amount) spend. Only an allow-list of recognized transfer
// shapes is accepted; anything else is rejected rather than interpreted.
package calldecode

import (
	"errors"
	"math/big"

	"sessiongate/internal/evm"
)

var (
	// ErrUnsupportedCall is returned when the call payload is not a
	// recognized transfer shape.
	ErrUnsupportedCall = errors.New("calldecode: unsupported call")
	// ErrMixedValue is returned when a token transfer also carries native
	// value. A spend moves exactly one asset.
	ErrMixedValue = errors.New("calldecode: token transfer must not carry native value")
)

// SelectorLength is the byte length of an ABI function selector.
const SelectorLength = 4

// Selector is a 4-byte ABI function selector.
type Selector [SelectorLength]byte

// Spend is a normalized spend: the asset moved and the amount in the
// asset's smallest unit. The native asset uses evm.ZeroAddress.
type Spend struct {
	Asset  evm.Address
	Amount *big.Int
}

// ShapeDecoder decodes one recognized calldata shape into a spend.
// Implementations are pure: the same input always yields the same spend.
type ShapeDecoder interface {
	// Decode extracts the spend from a call whose selector matched this
	// shape. target is the call target, value the native value sent along.
	Decode(target evm.Address, value *big.Int, data []byte) (Spend, error)
}

// Decoder maps call payloads to spends via a registry of shape decoders
// keyed by selector. New transfer shapes are added with RegisterShape
// without touching the validator.
type Decoder struct {
	shapes map[Selector]ShapeDecoder
}

// NewDecoder returns a Decoder with the canonical fungible-token
// transfer(address,uint256) shape registered.
func NewDecoder() *Decoder {
	d := &Decoder{shapes: make(map[Selector]ShapeDecoder)}
	d.RegisterShape(TransferSelector, erc20Transfer{})
	return d
}

// RegisterShape registers a decoder for calls starting with selector.
// A later registration for the same selector replaces the earlier one.
func (d *Decoder) RegisterShape(selector Selector, s ShapeDecoder) {
	d.shapes[selector] = s
}

// Decode normalizes an outbound call into a spend.
//
// An empty payload is a native transfer of value to target. A payload with
// a registered selector is decoded by its shape. Everything else is
// ErrUnsupportedCall.
func (d *Decoder) Decode(target evm.Address, value *big.Int, data []byte) (Spend, error) {
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return Spend{}, ErrUnsupportedCall
	}
	if len(data) == 0 {
		return Spend{Asset: evm.ZeroAddress, Amount: new(big.Int).Set(value)}, nil
	}
	if len(data) < SelectorLength {
		return Spend{}, ErrUnsupportedCall
	}
	var sel Selector
	copy(sel[:], data[:SelectorLength])
	shape, ok := d.shapes[sel]
	if !ok {
		return Spend{}, ErrUnsupportedCall
	}
	return shape.Decode(target, value, data)
}
