package ledger

import "errors"

// Failure kinds surfaced by ledger operations. Callers branch with
// errors.Is; the API layer maps each kind to a reason string so the
// off-chain matcher can decide whether to retry, re-authorize, or abort.
var (
	// ErrOrderNotFound means the referenced order ID was never submitted.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnauthorized means the caller is neither the order's owner nor
	// the privileged settlement authority for the operation attempted.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOrderAlreadyFilled means a state change was attempted on an
	// order already marked filled.
	ErrOrderAlreadyFilled = errors.New("order already filled")

	// ErrOrderCancelled means a state change was attempted on an order
	// the owner has cancelled.
	ErrOrderCancelled = errors.New("order cancelled")

	// ErrEmptyPayload rejects submissions with no payload bytes.
	ErrEmptyPayload = errors.New("empty order payload")

	// ErrPayloadTooLarge rejects submissions above the configured cap.
	ErrPayloadTooLarge = errors.New("order payload too large")

	// ErrBadPayload means a payload could not be decoded into terms, or
	// decoded into terms with non-positive price or size. Only raised in
	// structured mode, where decoding happens at submission.
	ErrBadPayload = errors.New("malformed order payload")
)
