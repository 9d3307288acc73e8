package settlement

import "errors"

// Match-validity failure kinds for ExecuteMatch. Order-state kinds
// (not found, already filled, cancelled, unauthorized) come from the
// ledger package; together they form the full settlement taxonomy.
var (
	// ErrSideMismatch means the buy order is not a buy or the sell order
	// is not a sell.
	ErrSideMismatch = errors.New("order side mismatch")

	// ErrAssetMismatch means the two orders, or the match parameters,
	// do not reference the same tradable asset.
	ErrAssetMismatch = errors.New("order asset mismatch")

	// ErrPriceMismatch means the buy price is below the sell price:
	// the spread is negative and the match is illegal.
	ErrPriceMismatch = errors.New("buy price below sell price")

	// ErrSizeExceeded means the match amount exceeds an order's size.
	ErrSizeExceeded = errors.New("match amount exceeds order size")

	// ErrOwnerMismatch means the supplied buyer or seller address does
	// not own the corresponding order.
	ErrOwnerMismatch = errors.New("party does not own referenced order")

	// ErrTransferFailed means an escrow leg did not complete; the whole
	// match rolls back and no partial transfer persists.
	ErrTransferFailed = errors.New("escrow transfer failed")

	// ErrBadAttestation means an attested authority update carried a
	// proof the verifier rejected.
	ErrBadAttestation = errors.New("attestation proof rejected")
)
