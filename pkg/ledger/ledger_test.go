package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	mallory = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	oracle  = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	tokenX  = common.HexToAddress("0x0000000000000000000000000000000000000101")
)

// fixedAuthority treats one address as the privileged settlement caller.
type fixedAuthority struct {
	matcher common.Address
}

func (f fixedAuthority) IsPrivileged(addr common.Address) bool {
	return addr == f.matcher
}

func newTestLedger(mode Mode) *Ledger {
	return New(Config{Mode: mode}, fixedAuthority{matcher: oracle}, nil)
}

func mustPayload(t *testing.T, owner common.Address, terms Terms) []byte {
	t.Helper()
	payload, err := EncodePayload(0, owner, terms)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return payload
}

func TestSubmit_SequentialIDs(t *testing.T) {
	l := newTestLedger(ModeOpaque)

	for want := uint64(1); want <= 5; want++ {
		id, err := l.Submit(alice, []byte{byte(want)})
		if err != nil {
			t.Fatalf("submit %d: %v", want, err)
		}
		if id != want {
			t.Errorf("submit returned id %d, want %d", id, want)
		}
	}
	if got := l.Count(); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
}

func TestSubmit_PayloadValidation(t *testing.T) {
	l := New(Config{Mode: ModeOpaque, MaxPayloadBytes: 8}, nil, nil)

	if _, err := l.Submit(alice, nil); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("empty payload: got %v, want ErrEmptyPayload", err)
	}
	if _, err := l.Submit(alice, make([]byte, 9)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversized payload: got %v, want ErrPayloadTooLarge", err)
	}
	if _, err := l.Submit(alice, []byte{1}); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}
}

func TestSubmit_StructuredMode(t *testing.T) {
	l := newTestLedger(ModeStructured)

	tests := []struct {
		name    string
		owner   common.Address
		payload []byte
		wantErr error
	}{
		{
			name:    "valid",
			owner:   alice,
			payload: mustPayload(t, alice, Terms{Token: tokenX, Price: 10, Size: 5, IsBuy: true}),
		},
		{
			name:    "garbage blob",
			owner:   alice,
			payload: []byte("not abi"),
			wantErr: ErrBadPayload,
		},
		{
			name:    "zero price",
			owner:   alice,
			payload: mustPayload(t, alice, Terms{Token: tokenX, Price: 0, Size: 5}),
			wantErr: ErrBadPayload,
		},
		{
			name:    "zero size",
			owner:   alice,
			payload: mustPayload(t, alice, Terms{Token: tokenX, Price: 10, Size: 0}),
			wantErr: ErrBadPayload,
		},
		{
			name:    "payload owner mismatch",
			owner:   bob,
			payload: mustPayload(t, alice, Terms{Token: tokenX, Price: 10, Size: 5}),
			wantErr: ErrBadPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Submit(tt.owner, tt.payload)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExistsAndIsFilled(t *testing.T) {
	l := newTestLedger(ModeOpaque)

	if l.Exists(1) {
		t.Error("Exists(1) true on empty ledger")
	}
	if _, err := l.IsFilled(1); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("IsFilled on missing order: got %v, want ErrOrderNotFound", err)
	}

	id, _ := l.Submit(alice, []byte{1})
	if !l.Exists(id) {
		t.Error("Exists false after submit")
	}
	filled, err := l.IsFilled(id)
	if err != nil || filled {
		t.Errorf("IsFilled right after submit = %v, %v; want false, nil", filled, err)
	}
}

func TestPayloadOf_AccessControl(t *testing.T) {
	l := newTestLedger(ModeOpaque)
	payload := []byte("secret terms")
	id, _ := l.Submit(alice, payload)

	// Owner reads its own payload.
	got, err := l.PayloadOf(id, alice)
	if err != nil || string(got) != string(payload) {
		t.Errorf("owner read = %q, %v", got, err)
	}

	// The privileged matcher reads anyone's payload.
	if _, err := l.PayloadOf(id, oracle); err != nil {
		t.Errorf("matcher read: %v", err)
	}

	// Everyone else is denied, without leaking bytes.
	got, err = l.PayloadOf(id, mallory)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("stranger read: got %v, want ErrUnauthorized", err)
	}
	if got != nil {
		t.Errorf("stranger received payload bytes: %q", got)
	}

	if _, err := l.PayloadOf(99, alice); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("missing order: got %v, want ErrOrderNotFound", err)
	}
}

func TestOwnerOf_AccessControl(t *testing.T) {
	l := newTestLedger(ModeOpaque)
	id, _ := l.Submit(alice, []byte{1})

	if owner, err := l.OwnerOf(id, oracle); err != nil || owner != alice {
		t.Errorf("matcher OwnerOf = %s, %v; want alice", owner.Hex(), err)
	}
	if owner, err := l.OwnerOf(id, alice); err != nil || owner != alice {
		t.Errorf("self OwnerOf = %s, %v; want alice", owner.Hex(), err)
	}
	if _, err := l.OwnerOf(id, mallory); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("stranger OwnerOf: got %v, want ErrUnauthorized", err)
	}
}

func TestOrdersOf_SilentEmptyForStrangers(t *testing.T) {
	l := newTestLedger(ModeOpaque)
	l.Submit(alice, []byte{1})
	l.Submit(bob, []byte{2})
	l.Submit(alice, []byte{3})

	if ids := l.OrdersOf(alice, alice); len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("owner view = %v, want [1 3]", ids)
	}
	if ids := l.OrdersOf(alice, oracle); len(ids) != 2 {
		t.Errorf("matcher view = %v, want 2 ids", ids)
	}
	// Confidentiality yields silently: empty, not an error.
	if ids := l.OrdersOf(alice, mallory); len(ids) != 0 {
		t.Errorf("stranger view = %v, want empty", ids)
	}
	if ids := l.OrdersOf(mallory, mallory); len(ids) != 0 {
		t.Errorf("empty owner view = %v, want empty", ids)
	}
}

func TestCancel(t *testing.T) {
	l := newTestLedger(ModeOpaque)
	id, _ := l.Submit(alice, []byte{1})

	if err := l.Cancel(id, bob); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("cancel by non-owner: got %v, want ErrUnauthorized", err)
	}
	if err := l.Cancel(id, alice); err != nil {
		t.Fatalf("cancel by owner: %v", err)
	}
	if err := l.Cancel(id, alice); !errors.Is(err, ErrOrderCancelled) {
		t.Errorf("double cancel: got %v, want ErrOrderCancelled", err)
	}
	if err := l.Cancel(99, alice); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("cancel missing: got %v, want ErrOrderNotFound", err)
	}

	// Cancelled orders can never be filled.
	other, _ := l.Submit(bob, []byte{2})
	if err := l.MarkFilled(id, other); !errors.Is(err, ErrOrderCancelled) {
		t.Errorf("fill cancelled order: got %v, want ErrOrderCancelled", err)
	}
}

func TestMarkFilled_FillOnce(t *testing.T) {
	l := newTestLedger(ModeOpaque)
	buyID, _ := l.Submit(alice, []byte{1})
	sellID, _ := l.Submit(bob, []byte{2})

	if err := l.MarkFilled(buyID, sellID); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	for _, id := range []uint64{buyID, sellID} {
		filled, _ := l.IsFilled(id)
		if !filled {
			t.Errorf("order %d not filled after MarkFilled", id)
		}
	}

	if err := l.MarkFilled(buyID, sellID); !errors.Is(err, ErrOrderAlreadyFilled) {
		t.Errorf("second fill: got %v, want ErrOrderAlreadyFilled", err)
	}
	if err := l.MarkFilled(buyID, 99); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("fill with missing order: got %v, want ErrOrderNotFound", err)
	}

	// A filled order cannot be cancelled either.
	if err := l.Cancel(buyID, alice); !errors.Is(err, ErrOrderAlreadyFilled) {
		t.Errorf("cancel filled order: got %v, want ErrOrderAlreadyFilled", err)
	}
}

func TestTermsOf_OpaqueModeDecodesLazily(t *testing.T) {
	l := newTestLedger(ModeOpaque)
	want := Terms{Token: tokenX, Price: 10, Size: 5, IsBuy: true}
	id, _ := l.Submit(alice, mustPayload(t, alice, want))

	terms, err := l.TermsOf(id, oracle)
	if err != nil {
		t.Fatalf("TermsOf: %v", err)
	}
	if terms != want {
		t.Errorf("TermsOf = %+v, want %+v", terms, want)
	}

	if _, err := l.TermsOf(id, mallory); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("stranger TermsOf: got %v, want ErrUnauthorized", err)
	}
}

func TestOpen_Persistence(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Mode: ModeOpaque}
	auth := fixedAuthority{matcher: oracle}

	l, err := Open(cfg, auth, dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id1, _ := l.Submit(alice, []byte("one"))
	id2, _ := l.Submit(bob, []byte("two"))
	if err := l.MarkFilled(id1, id2); err != nil {
		t.Fatalf("mark filled: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen: state and the ID sequence must survive.
	l, err = Open(cfg, auth, dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()

	if filled, _ := l.IsFilled(id1); !filled {
		t.Error("fill flag lost across restart")
	}
	if got, _ := l.PayloadOf(id2, bob); string(got) != "two" {
		t.Errorf("payload lost across restart: %q", got)
	}
	if id3, err := l.Submit(alice, []byte("three")); err != nil || id3 != 3 {
		t.Errorf("sequence after restart: id=%d err=%v, want 3", id3, err)
	}
}
