package settlement

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tricodex/darkpool/pkg/ledger"
	"github.com/tricodex/darkpool/pkg/token"
)

// MatchParams are the arguments of a settlement call, mirroring the
// executeMatch surface the off-chain matcher invokes.
type MatchParams struct {
	BuyOrderID  uint64         `json:"buyOrderId"`
	SellOrderID uint64         `json:"sellOrderId"`
	Buyer       common.Address `json:"buyer"`
	Seller      common.Address `json:"seller"`
	Token       common.Address `json:"token"`
	Amount      int64          `json:"amount"`
	Price       int64          `json:"price"`
}

// Events receives settlement notifications.
type Events interface {
	MatchExecuted(buyOrderID, sellOrderID uint64, amount, price int64)
}

// Engine is the match-settlement core: the one component that moves
// value. Every other operation in this system is a read or an append;
// ExecuteMatch alone transfers escrowed balances, and only for the
// single caller the Authority currently trusts.
type Engine struct {
	addr   common.Address // the engine's own identity as a token mover
	book   *ledger.Ledger
	tokens *token.Registry
	quote  *token.Token // settlement leg counter-asset
	auth   *Authority
	events Events
	log    *zap.SugaredLogger
}

// NewEngine wires the settlement engine. addr is the identity the
// confidential tokens will see as spender; quote is the asset the
// amount*price leg settles in.
func NewEngine(addr common.Address, book *ledger.Ledger, tokens *token.Registry, quote *token.Token, auth *Authority, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		addr:   addr,
		book:   book,
		tokens: tokens,
		quote:  quote,
		auth:   auth,
		log:    log,
	}
}

// Address returns the engine's token-mover identity.
func (e *Engine) Address() common.Address { return e.addr }

// Authority returns the engine's authorization context.
func (e *Engine) Authority() *Authority { return e.auth }

// SetEvents wires an event sink. Must be called before traffic starts.
func (e *Engine) SetEvents(ev Events) { e.events = ev }

// RequestPrivacyAccess asks every registered confidential asset, plus the
// quote asset, to let this engine move balances on depositors' behalf.
// Call once after construction; re-calling is a harmless no-op since
// grants are idempotent.
func (e *Engine) RequestPrivacyAccess() {
	for _, t := range e.tokens.List() {
		t.GrantAccess(e.addr)
	}
	e.quote.GrantAccess(e.addr)
	e.log.Infow("privacy_access_requested", "engine", e.addr.Hex(), "tokens", len(e.tokens.List())+1)
}

// ExecuteMatch validates and settles one full fill between a buy and a
// sell order. Preconditions run in a fixed order, each with its own
// failure kind; on success both escrow legs move and both orders flip to
// filled, atomically — any failure leaves no partial state behind.
func (e *Engine) ExecuteMatch(caller common.Address, p MatchParams) error {
	// 1. Identity: only the trusted matcher settles.
	if !e.auth.IsPrivileged(caller) {
		return fmt.Errorf("execute match: caller %s: %w", caller.Hex(), ledger.ErrUnauthorized)
	}

	// 2. Existence.
	if !e.book.Exists(p.BuyOrderID) {
		return fmt.Errorf("buy order %d: %w", p.BuyOrderID, ledger.ErrOrderNotFound)
	}
	if !e.book.Exists(p.SellOrderID) {
		return fmt.Errorf("sell order %d: %w", p.SellOrderID, ledger.ErrOrderNotFound)
	}

	// 3. Fill-once. Cancelled orders are permanently unmatched.
	for _, id := range []uint64{p.BuyOrderID, p.SellOrderID} {
		if filled, err := e.book.IsFilled(id); err != nil {
			return err
		} else if filled {
			return fmt.Errorf("order %d: %w", id, ledger.ErrOrderAlreadyFilled)
		}
		if cancelled, err := e.book.IsCancelled(id); err != nil {
			return err
		} else if cancelled {
			return fmt.Errorf("order %d: %w", id, ledger.ErrOrderCancelled)
		}
	}

	buy, err := e.book.TermsOf(p.BuyOrderID, caller)
	if err != nil {
		return err
	}
	sell, err := e.book.TermsOf(p.SellOrderID, caller)
	if err != nil {
		return err
	}

	// 4. Sides.
	if !buy.IsBuy {
		return fmt.Errorf("order %d is not a buy: %w", p.BuyOrderID, ErrSideMismatch)
	}
	if sell.IsBuy {
		return fmt.Errorf("order %d is not a sell: %w", p.SellOrderID, ErrSideMismatch)
	}

	// 5. Same tradable asset on both orders and in the call itself.
	if buy.Token != sell.Token || buy.Token != p.Token {
		return fmt.Errorf("buy=%s sell=%s param=%s: %w",
			buy.Token.Hex(), sell.Token.Hex(), p.Token.Hex(), ErrAssetMismatch)
	}

	// 6. Non-negative spread.
	if buy.Price < sell.Price {
		return fmt.Errorf("buy=%d sell=%d: %w", buy.Price, sell.Price, ErrPriceMismatch)
	}

	// 7. Amount within both sizes.
	if p.Amount <= 0 || p.Amount > buy.Size || p.Amount > sell.Size {
		return fmt.Errorf("amount=%d buySize=%d sellSize=%d: %w",
			p.Amount, buy.Size, sell.Size, ErrSizeExceeded)
	}
	if p.Price > 0 && p.Amount > math.MaxInt64/p.Price {
		return fmt.Errorf("amount=%d price=%d: notional overflow: %w", p.Amount, p.Price, ErrSizeExceeded)
	}

	// The named parties must own the orders they settle against.
	if owner, err := e.book.OwnerOf(p.BuyOrderID, caller); err != nil {
		return err
	} else if owner != p.Buyer {
		return fmt.Errorf("buy order %d: %w", p.BuyOrderID, ErrOwnerMismatch)
	}
	if owner, err := e.book.OwnerOf(p.SellOrderID, caller); err != nil {
		return err
	} else if owner != p.Seller {
		return fmt.Errorf("sell order %d: %w", p.SellOrderID, ErrOwnerMismatch)
	}

	base, err := e.tokens.ByAddress(p.Token)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrAssetMismatch)
	}
	notional := p.Amount * p.Price

	// Escrow legs. The second-leg and fill failures compensate earlier
	// effects so no partial transfer ever survives the call.
	if err := base.TransferFrom(e.addr, p.Seller, p.Buyer, p.Amount); err != nil {
		return fmt.Errorf("base leg: %v: %w", err, ErrTransferFailed)
	}
	if err := e.quote.TransferFrom(e.addr, p.Buyer, p.Seller, notional); err != nil {
		e.mustCompensate(base, p.Buyer, p.Seller, p.Amount)
		return fmt.Errorf("quote leg: %v: %w", err, ErrTransferFailed)
	}

	if err := e.book.MarkFilled(p.BuyOrderID, p.SellOrderID); err != nil {
		e.mustCompensate(base, p.Buyer, p.Seller, p.Amount)
		e.mustCompensate(e.quote, p.Seller, p.Buyer, notional)
		return err
	}

	e.log.Infow("match_executed",
		"buy", p.BuyOrderID, "sell", p.SellOrderID,
		"token", p.Token.Hex(), "amount", p.Amount, "price", p.Price)
	if e.events != nil {
		e.events.MatchExecuted(p.BuyOrderID, p.SellOrderID, p.Amount, p.Price)
	}
	return nil
}

// mustCompensate reverses a completed escrow leg. The funds provably
// exist at the destination, so failure here means corrupted token state.
func (e *Engine) mustCompensate(t *token.Token, from, to common.Address, amount int64) {
	if err := t.TransferFrom(e.addr, from, to, amount); err != nil {
		e.log.Errorw("escrow_compensation_failed", "token", t.Symbol(), "err", err)
	}
}
