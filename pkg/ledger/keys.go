package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema.
// Order records are keyed by zero-padded ID so iteration yields submission
// order; the owner index is a prefix scan per address.
const (
	prefixOrder = "ord:"   // order record, keyed by ID
	prefixOwner = "own:"   // owner -> order ID index
	keyNextID   = "seq:id" // next order ID to assign
)

// orderKey returns the key for an order record.
// Format: "ord:{id:020d}" — padded for lexicographic ordering.
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// ownerKey returns the index entry tying an order to its owner.
// Format: "own:{address}:{id:020d}"
func ownerKey(owner common.Address, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixOwner, owner.Hex(), id))
}

// ownerPrefix returns the scan prefix for all of an owner's orders.
func ownerPrefix(owner common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixOwner, owner.Hex()))
}

// ownerKeyID extracts the order ID from an owner index key.
func ownerKeyID(key []byte) (uint64, error) {
	i := strings.LastIndexByte(string(key), ':')
	if i < 0 {
		return 0, fmt.Errorf("malformed owner index key: %q", key)
	}
	return strconv.ParseUint(string(key[i+1:]), 10, 64)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
