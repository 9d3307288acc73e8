package ledger

import (
	"github.com/ethereum/go-ethereum/common"
)

// Terms is the decoded view of an order payload: which token is traded,
// at what limit price, for what size, and on which side. In opaque mode
// these are only materialized for the privileged engine; in structured
// mode they are decoded once at submission and stored alongside the blob.
type Terms struct {
	Token common.Address `json:"token"`
	Price int64          `json:"price"` // limit price in quote units per lot
	Size  int64          `json:"size"`  // quantity in lots
	IsBuy bool           `json:"isBuy"`
}

// Order is a ledger entry. Immutable after creation except for the
// Filled and Cancelled flags, each of which flips false->true at most once.
type Order struct {
	ID        uint64         `json:"id"`
	Owner     common.Address `json:"owner"`
	Payload   []byte         `json:"payload"`
	Terms     *Terms         `json:"terms,omitempty"` // nil in opaque mode
	Filled    bool           `json:"filled"`
	Cancelled bool           `json:"cancelled"`
	CreatedAt int64          `json:"createdAt"` // Unix milliseconds
}

// Open reports whether the order can still be matched.
func (o *Order) Open() bool {
	return !o.Filled && !o.Cancelled
}

// Status returns a human-readable lifecycle state for API responses.
func (o *Order) Status() string {
	switch {
	case o.Filled:
		return "filled"
	case o.Cancelled:
		return "cancelled"
	default:
		return "open"
	}
}
