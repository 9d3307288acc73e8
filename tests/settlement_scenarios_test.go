package tests

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tricodex/darkpool/pkg/ledger"
	"github.com/tricodex/darkpool/pkg/settlement"
	"github.com/tricodex/darkpool/pkg/token"
)

var (
	admin   = common.HexToAddress("0x0000000000000000000000000000000000000ad1")
	matcher = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	traderA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	traderB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	waterAt = common.HexToAddress("0x0000000000000000000000000000000000000201")
	usdcAt  = common.HexToAddress("0x0000000000000000000000000000000000000200")
)

type world struct {
	book   *ledger.Ledger
	water  *token.Token
	usdc   *token.Token
	engine *settlement.Engine
}

// newWorld assembles a full stack: authority, ledger, two confidential
// tokens and a settlement engine with privacy access granted.
func newWorld(t *testing.T) *world {
	t.Helper()

	auth := settlement.NewAuthority(admin, matcher, nil, nil)
	book := ledger.New(ledger.Config{Mode: ledger.ModeStructured}, auth, nil)

	water := token.New("WATER", waterAt, admin)
	usdc := token.New("WUSDC", usdcAt, admin)
	reg := token.NewRegistry()
	if err := reg.Register(water); err != nil {
		t.Fatalf("register: %v", err)
	}

	eng := settlement.NewEngine(matcher, book, reg, usdc, auth, nil)
	eng.RequestPrivacyAccess()

	if err := water.Mint(admin, traderB, 1000); err != nil {
		t.Fatalf("mint WATER: %v", err)
	}
	if err := usdc.Mint(admin, traderA, 1000); err != nil {
		t.Fatalf("mint WUSDC: %v", err)
	}
	return &world{book: book, water: water, usdc: usdc, engine: eng}
}

func (w *world) place(t *testing.T, owner common.Address, price, size int64, isBuy bool) uint64 {
	t.Helper()
	payload, err := ledger.EncodePayload(0, owner, ledger.Terms{
		Token: waterAt, Price: price, Size: size, IsBuy: isBuy,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	id, err := w.book.Submit(owner, payload)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return id
}

func (w *world) mustBalance(t *testing.T, tok *token.Token, holder common.Address, want int64) {
	t.Helper()
	got, err := tok.BalanceOf(holder, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got != want {
		t.Errorf("%s balance of %s = %d, want %d", tok.Symbol(), holder.Hex(), got, want)
	}
}

// A submits a buy for 5 WATER at price 10, B submits the matching sell;
// settling moves both escrow legs and permanently fills both orders.
func TestFullMatchLifecycle(t *testing.T) {
	w := newWorld(t)

	buyID := w.place(t, traderA, 10, 5, true)
	sellID := w.place(t, traderB, 10, 5, false)
	if buyID != 1 || sellID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", buyID, sellID)
	}

	params := settlement.MatchParams{
		BuyOrderID: buyID, SellOrderID: sellID,
		Buyer: traderA, Seller: traderB,
		Token: waterAt, Amount: 5, Price: 10,
	}
	if err := w.engine.ExecuteMatch(matcher, params); err != nil {
		t.Fatalf("execute match: %v", err)
	}

	w.mustBalance(t, w.water, traderA, 5)
	w.mustBalance(t, w.water, traderB, 995)
	w.mustBalance(t, w.usdc, traderA, 950)
	w.mustBalance(t, w.usdc, traderB, 50)

	for _, id := range []uint64{buyID, sellID} {
		filled, err := w.book.IsFilled(id)
		if err != nil {
			t.Fatalf("is filled: %v", err)
		}
		if !filled {
			t.Errorf("order %d still open after settlement", id)
		}
	}

	// Replaying the same match must fail and move nothing.
	err := w.engine.ExecuteMatch(matcher, params)
	if !errors.Is(err, ledger.ErrOrderAlreadyFilled) {
		t.Fatalf("replay: got %v, want ErrOrderAlreadyFilled", err)
	}
	w.mustBalance(t, w.water, traderA, 5)
	w.mustBalance(t, w.usdc, traderB, 50)
}

// A sell priced above the buy never crosses, whatever the matcher claims.
func TestCrossedPricesRejected(t *testing.T) {
	w := newWorld(t)

	buyID := w.place(t, traderA, 10, 5, true)
	sellID := w.place(t, traderB, 12, 5, false)

	err := w.engine.ExecuteMatch(matcher, settlement.MatchParams{
		BuyOrderID: buyID, SellOrderID: sellID,
		Buyer: traderA, Seller: traderB,
		Token: waterAt, Amount: 5, Price: 10,
	})
	if !errors.Is(err, settlement.ErrPriceMismatch) {
		t.Fatalf("got %v, want ErrPriceMismatch", err)
	}

	w.mustBalance(t, w.water, traderB, 1000)
	w.mustBalance(t, w.usdc, traderA, 1000)
	for _, id := range []uint64{buyID, sellID} {
		if filled, _ := w.book.IsFilled(id); filled {
			t.Errorf("order %d filled despite rejected match", id)
		}
	}
}

// Order IDs keep counting across matches; a filled slot never blocks
// fresh orders from the same owners.
func TestSequentialOrdersAcrossMatches(t *testing.T) {
	w := newWorld(t)

	for round := 0; round < 3; round++ {
		buyID := w.place(t, traderA, 10, 1, true)
		sellID := w.place(t, traderB, 10, 1, false)
		if err := w.engine.ExecuteMatch(matcher, settlement.MatchParams{
			BuyOrderID: buyID, SellOrderID: sellID,
			Buyer: traderA, Seller: traderB,
			Token: waterAt, Amount: 1, Price: 10,
		}); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
	}

	if got := w.book.Count(); got != 6 {
		t.Fatalf("order count = %d, want 6", got)
	}
	w.mustBalance(t, w.water, traderA, 3)
	w.mustBalance(t, w.usdc, traderB, 30)
}

// Rotating the matcher through the admin path immediately shifts who may
// settle: the old matcher is locked out, the new one succeeds.
func TestAuthorityRotationAffectsSettlement(t *testing.T) {
	w := newWorld(t)
	newMatcher := common.HexToAddress("0x00000000000000000000000000000000000000fd")

	buyID := w.place(t, traderA, 10, 5, true)
	sellID := w.place(t, traderB, 10, 5, false)
	params := settlement.MatchParams{
		BuyOrderID: buyID, SellOrderID: sellID,
		Buyer: traderA, Seller: traderB,
		Token: waterAt, Amount: 5, Price: 10,
	}

	auth := w.engine.Authority()
	if err := auth.Apply(admin, settlement.AdminUpdate{NewMatcher: newMatcher}); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if err := w.engine.ExecuteMatch(matcher, params); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("old matcher: got %v, want ErrUnauthorized", err)
	}
	if err := w.engine.ExecuteMatch(newMatcher, params); err != nil {
		t.Fatalf("new matcher: %v", err)
	}
}
