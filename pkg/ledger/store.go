package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store provides Pebble-based persistence for the order ledger.
// Thread-safe via the Ledger's mutex; all multi-key mutations go through
// batches so a crash never leaves a half-applied submit or fill.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		MaxOpenFiles:          1000,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NextID loads the next order ID to assign. Returns 1 on a fresh database.
func (s *Store) NextID() (uint64, error) {
	data, closer, err := s.db.Get([]byte(keyNextID))
	if err == pebble.ErrNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load order sequence: %w", err)
	}
	defer closer.Close()

	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt order sequence: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// SaveSubmit persists a newly submitted order atomically: the record, its
// owner index entry, and the advanced ID sequence land in one batch.
func (s *Store) SaveSubmit(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", o.ID, err)
	}

	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], o.ID+1)

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(orderKey(o.ID), data, nil); err != nil {
		return err
	}
	if err := batch.Set(ownerKey(o.Owner, o.ID), nil, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(keyNextID), seq[:], nil); err != nil {
		return err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to persist order %d: %w", o.ID, err)
	}
	return nil
}

// SaveOrder rewrites a single order record (cancel path).
func (s *Store) SaveOrder(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", o.ID, err)
	}
	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order %d: %w", o.ID, err)
	}
	return nil
}

// SaveFilledPair persists two filled orders in one atomic batch. Either
// both fill flags survive a crash or neither does.
func (s *Store) SaveFilledPair(buy, sell *Order) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, o := range []*Order{buy, sell} {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("failed to marshal order %d: %w", o.ID, err)
		}
		if err := batch.Set(orderKey(o.ID), data, nil); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to persist fill %d/%d: %w", buy.ID, sell.ID, err)
	}
	return nil
}

// LoadOrder loads an order by ID. Returns nil if it doesn't exist.
func (s *Store) LoadOrder(id uint64) (*Order, error) {
	data, closer, err := s.db.Get(orderKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	defer closer.Close()

	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order %d: %w", id, err)
	}
	return &o, nil
}

// LoadOwnerIDs returns all order IDs submitted by an owner, ascending.
func (s *Store) LoadOwnerIDs(owner common.Address) ([]uint64, error) {
	prefix := ownerPrefix(owner)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan owner index: %w", err)
	}
	defer iter.Close()

	var ids []uint64
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ownerKeyID(iter.Key())
		if err != nil {
			continue // skip corrupt index entries
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadAll streams every order record in ID order, for warm-up on restart.
func (s *Store) LoadAll(fn func(*Order) error) error {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to scan orders: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var o Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // skip corrupt records
		}
		if err := fn(&o); err != nil {
			return err
		}
	}
	return nil
}
