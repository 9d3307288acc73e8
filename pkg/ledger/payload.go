package ledger

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Order payload wire format: the ABI encoding the off-chain matcher and
// client tooling already speak.
//
//	(uint256 orderId, address owner, address token, uint256 price, uint256 size, bool isBuy)
//
// Clients encode with orderId=0 since IDs are assigned at submission; the
// authoritative ID is the ledger's, never the payload's.
var payloadArgs = func() abi.Arguments {
	uint256T, _ := abi.NewType("uint256", "", nil)
	addressT, _ := abi.NewType("address", "", nil)
	boolT, _ := abi.NewType("bool", "", nil)
	return abi.Arguments{
		{Name: "orderId", Type: uint256T},
		{Name: "owner", Type: addressT},
		{Name: "token", Type: addressT},
		{Name: "price", Type: uint256T},
		{Name: "size", Type: uint256T},
		{Name: "isBuy", Type: boolT},
	}
}()

// EncodePayload packs an order's terms into the wire format.
func EncodePayload(orderID uint64, owner common.Address, t Terms) ([]byte, error) {
	if t.Price < 0 || t.Size < 0 {
		return nil, fmt.Errorf("%w: negative price or size", ErrBadPayload)
	}
	packed, err := payloadArgs.Pack(
		new(big.Int).SetUint64(orderID),
		owner,
		t.Token,
		big.NewInt(t.Price),
		big.NewInt(t.Size),
		t.IsBuy,
	)
	if err != nil {
		return nil, fmt.Errorf("pack order payload: %w", err)
	}
	return packed, nil
}

// DecodePayload unpacks the wire format back into terms.
// Returns the payload's embedded orderId and owner as well; callers that
// trust only ledger state should ignore them.
func DecodePayload(b []byte) (uint64, common.Address, Terms, error) {
	vals, err := payloadArgs.Unpack(b)
	if err != nil {
		return 0, common.Address{}, Terms{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	orderID, ok := vals[0].(*big.Int)
	if !ok || !orderID.IsUint64() {
		return 0, common.Address{}, Terms{}, fmt.Errorf("%w: orderId out of range", ErrBadPayload)
	}
	owner, _ := vals[1].(common.Address)
	token, _ := vals[2].(common.Address)

	price, err := toInt64(vals[3], "price")
	if err != nil {
		return 0, common.Address{}, Terms{}, err
	}
	size, err := toInt64(vals[4], "size")
	if err != nil {
		return 0, common.Address{}, Terms{}, err
	}
	isBuy, _ := vals[5].(bool)

	return orderID.Uint64(), owner, Terms{Token: token, Price: price, Size: size, IsBuy: isBuy}, nil
}

func toInt64(v interface{}, field string) (int64, error) {
	n, ok := v.(*big.Int)
	if !ok || !n.IsUint64() || n.Uint64() > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s out of range", ErrBadPayload, field)
	}
	return int64(n.Uint64()), nil
}
