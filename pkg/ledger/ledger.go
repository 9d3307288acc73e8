package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Mode selects how order payloads are stored.
type Mode int

const (
	// ModeOpaque keeps payloads as uninterpreted blobs; terms are decoded
	// lazily, and only on the privileged settlement path.
	ModeOpaque Mode = iota
	// ModeStructured decodes payloads at submission and rejects blobs
	// that do not parse into valid terms.
	ModeStructured
)

// Config holds ledger parameters.
type Config struct {
	Mode Mode
	// MaxPayloadBytes bounds submission size to prevent unbounded growth.
	MaxPayloadBytes int
}

// DefaultMaxPayloadBytes fits the six-word ABI payload with headroom for
// the envelope formats client tooling wraps around it.
const DefaultMaxPayloadBytes = 4096

// Privileged answers whether an address is the settlement authority.
// Implemented by settlement.Authority.
type Privileged interface {
	IsPrivileged(addr common.Address) bool
}

// Events receives ledger notifications. The submitted event carries the
// order ID and owner only — never the payload.
type Events interface {
	OrderSubmitted(id uint64, owner common.Address)
}

// Ledger is the append-only order book state: sequential IDs from 1,
// owner-indexed lookup, fill-once semantics. All access goes through one
// mutex so every operation is an atomic state transition, mirroring the
// serialized transaction model of the host chain this state machine
// originally lived on.
type Ledger struct {
	mu      sync.RWMutex
	cfg     Config
	orders  map[uint64]*Order
	byOwner map[common.Address][]uint64
	nextID  uint64

	store  *Store // nil for in-memory ledgers (tests, dry runs)
	auth   Privileged
	events Events
	log    *zap.SugaredLogger
}

// New creates an in-memory ledger.
func New(cfg Config, auth Privileged, log *zap.SugaredLogger) *Ledger {
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Ledger{
		cfg:     cfg,
		orders:  make(map[uint64]*Order),
		byOwner: make(map[common.Address][]uint64),
		nextID:  1,
		auth:    auth,
		log:     log,
	}
}

// Open creates a ledger backed by a Pebble store at dbPath, warming the
// in-memory state from disk.
func Open(cfg Config, auth Privileged, dbPath string, log *zap.SugaredLogger) (*Ledger, error) {
	l := New(cfg, auth, log)

	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %w", err)
	}
	l.store = store

	if err := store.LoadAll(func(o *Order) error {
		l.orders[o.ID] = o
		l.byOwner[o.Owner] = append(l.byOwner[o.Owner], o.ID)
		return nil
	}); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to warm ledger: %w", err)
	}

	next, err := store.NextID()
	if err != nil {
		store.Close()
		return nil, err
	}
	l.nextID = next

	l.log.Infow("ledger_opened", "orders", len(l.orders), "next_id", next)
	return l, nil
}

// Close closes the underlying store, if any.
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// SetEvents wires an event sink. Must be called before traffic starts.
func (l *Ledger) SetEvents(ev Events) { l.events = ev }

// Submit appends a new order and returns its ID. IDs are assigned
// sequentially starting at 1 and never reused.
func (l *Ledger) Submit(owner common.Address, payload []byte) (uint64, error) {
	if len(payload) == 0 {
		return 0, ErrEmptyPayload
	}
	if len(payload) > l.cfg.MaxPayloadBytes {
		return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), l.cfg.MaxPayloadBytes)
	}

	var terms *Terms
	if l.cfg.Mode == ModeStructured {
		_, payloadOwner, t, err := DecodePayload(payload)
		if err != nil {
			return 0, err
		}
		if t.Price <= 0 || t.Size <= 0 {
			return 0, fmt.Errorf("%w: non-positive price or size", ErrBadPayload)
		}
		// A payload claiming a different owner than the submitter is
		// either a relay bug or an impersonation attempt.
		if payloadOwner != (common.Address{}) && payloadOwner != owner {
			return 0, fmt.Errorf("%w: payload owner %s does not match submitter", ErrBadPayload, payloadOwner.Hex())
		}
		terms = &t
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o := &Order{
		ID:        l.nextID,
		Owner:     owner,
		Payload:   append([]byte(nil), payload...),
		Terms:     terms,
		CreatedAt: time.Now().UnixMilli(),
	}

	if l.store != nil {
		if err := l.store.SaveSubmit(o); err != nil {
			return 0, err
		}
	}

	l.orders[o.ID] = o
	l.byOwner[owner] = append(l.byOwner[owner], o.ID)
	l.nextID++

	l.log.Infow("order_submitted", "id", o.ID, "owner", owner.Hex())
	if l.events != nil {
		l.events.OrderSubmitted(o.ID, owner)
	}
	return o.ID, nil
}

// Exists reports whether an order with the given ID has been submitted.
func (l *Ledger) Exists(id uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.orders[id]
	return ok
}

// IsFilled returns the order's fill state.
func (l *Ledger) IsFilled(id uint64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return false, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	return o.Filled, nil
}

// IsCancelled returns the order's cancel state.
func (l *Ledger) IsCancelled(id uint64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return false, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	return o.Cancelled, nil
}

// OwnerOf returns the order's owner. Restricted: only the settlement
// authority or the owner itself may resolve ownership of an ID.
func (l *Ledger) OwnerOf(id uint64, caller common.Address) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return common.Address{}, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	if caller != o.Owner && !l.privileged(caller) {
		return common.Address{}, fmt.Errorf("owner of order %d: %w", id, ErrUnauthorized)
	}
	return o.Owner, nil
}

// PayloadOf returns the order's payload bytes. Only the owner or the
// settlement authority may read them; everyone else gets an explicit
// error, never the bytes.
func (l *Ledger) PayloadOf(id uint64, caller common.Address) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	if caller != o.Owner && !l.privileged(caller) {
		return nil, fmt.Errorf("payload of order %d: %w", id, ErrUnauthorized)
	}
	return append([]byte(nil), o.Payload...), nil
}

// TermsOf returns the order's decoded terms for the settlement path.
// Restricted like PayloadOf. In opaque mode the payload is decoded here.
func (l *Ledger) TermsOf(id uint64, caller common.Address) (Terms, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return Terms{}, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	if caller != o.Owner && !l.privileged(caller) {
		return Terms{}, fmt.Errorf("terms of order %d: %w", id, ErrUnauthorized)
	}
	if o.Terms != nil {
		return *o.Terms, nil
	}
	_, _, t, err := DecodePayload(o.Payload)
	if err != nil {
		return Terms{}, err
	}
	return t, nil
}

// OrdersOf returns the IDs of all orders submitted by owner, in
// submission order. Confidentiality yields silently here: any caller
// other than the owner or the authority gets an empty slice, not an
// error, so the existence and count of a user's orders never leaks.
func (l *Ledger) OrdersOf(owner, caller common.Address) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if caller != owner && !l.privileged(caller) {
		return nil
	}
	ids := l.byOwner[owner]
	return append([]uint64(nil), ids...)
}

// Cancel marks an order cancelled. Owner-only; filled or already-cancelled
// orders cannot be cancelled.
func (l *Ledger) Cancel(id uint64, caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	if caller != o.Owner {
		return fmt.Errorf("cancel order %d: %w", id, ErrUnauthorized)
	}
	if o.Filled {
		return fmt.Errorf("cancel order %d: %w", id, ErrOrderAlreadyFilled)
	}
	if o.Cancelled {
		return fmt.Errorf("cancel order %d: %w", id, ErrOrderCancelled)
	}

	cp := *o
	cp.Cancelled = true
	if l.store != nil {
		if err := l.store.SaveOrder(&cp); err != nil {
			return err
		}
	}
	*o = cp

	l.log.Infow("order_cancelled", "id", id, "owner", o.Owner.Hex())
	return nil
}

// MarkFilled flips both orders of a settled match to filled in one atomic
// step. Callers must have verified both orders are open; this re-checks
// under the write lock so a racing settlement cannot double-fill.
func (l *Ledger) MarkFilled(buyID, sellID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	buy, ok := l.orders[buyID]
	if !ok {
		return fmt.Errorf("order %d: %w", buyID, ErrOrderNotFound)
	}
	sell, ok := l.orders[sellID]
	if !ok {
		return fmt.Errorf("order %d: %w", sellID, ErrOrderNotFound)
	}
	for _, o := range []*Order{buy, sell} {
		if o.Filled {
			return fmt.Errorf("order %d: %w", o.ID, ErrOrderAlreadyFilled)
		}
		if o.Cancelled {
			return fmt.Errorf("order %d: %w", o.ID, ErrOrderCancelled)
		}
	}

	buyCp, sellCp := *buy, *sell
	buyCp.Filled = true
	sellCp.Filled = true
	if l.store != nil {
		if err := l.store.SaveFilledPair(&buyCp, &sellCp); err != nil {
			return err
		}
	}
	*buy = buyCp
	*sell = sellCp
	return nil
}

// Count returns the total number of orders ever submitted. The off-chain
// matcher polls this to page through the book.
func (l *Ledger) Count() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID - 1
}

func (l *Ledger) privileged(addr common.Address) bool {
	return l.auth != nil && l.auth.IsPrivileged(addr)
}
