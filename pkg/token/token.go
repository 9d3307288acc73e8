package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Failure kinds for confidential asset operations.
var (
	// ErrAccessDenied means the caller may not see the balance it asked
	// for: balances are visible only to their holder and to explicitly
	// access-granted contracts.
	ErrAccessDenied = errors.New("confidential balance access denied")

	// ErrInsufficientBalance means a transfer exceeds the sender's funds.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance means a TransferFrom exceeds what the
	// holder approved and the spender holds no privacy grant.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrNotAdmin guards the mint path.
	ErrNotAdmin = errors.New("caller is not the token admin")
)

// Token models a confidential asset contract at its boundary surface:
// balances hidden from arbitrary callers, ERC-20-style transfer and
// allowance mechanics, plus the privacy capability grant that lets a
// settlement contract move escrowed balances on depositors' behalf.
// Thread-safe; every method is one atomic state transition.
type Token struct {
	mu sync.RWMutex

	symbol  string
	address common.Address // identity of this asset in order terms
	admin   common.Address

	balances  map[common.Address]int64
	allowance map[common.Address]map[common.Address]int64 // holder -> spender -> amount
	granted   map[common.Address]bool                     // privacy-access grantees
}

// New creates a confidential token identified by a symbol and an address.
func New(symbol string, address, admin common.Address) *Token {
	return &Token{
		symbol:    symbol,
		address:   address,
		admin:     admin,
		balances:  make(map[common.Address]int64),
		allowance: make(map[common.Address]map[common.Address]int64),
		granted:   make(map[common.Address]bool),
	}
}

// Symbol returns the token's trading symbol.
func (t *Token) Symbol() string { return t.symbol }

// Address returns the asset identity referenced by order terms.
func (t *Token) Address() common.Address { return t.address }

// Mint credits freshly wrapped value to an account. Admin-only; this is
// the deposit/wrap path, not part of the settlement surface.
func (t *Token) Mint(caller, to common.Address, amount int64) error {
	if caller != t.admin {
		return fmt.Errorf("mint %s: %w", t.symbol, ErrNotAdmin)
	}
	if amount <= 0 {
		return fmt.Errorf("mint amount must be positive: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[to] += amount
	return nil
}

// BalanceOf returns holder's balance. Confidential: only the holder
// itself or an access-granted caller may read it.
func (t *Token) BalanceOf(holder, caller common.Address) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if caller != holder && !t.granted[caller] {
		return 0, fmt.Errorf("balance of %s: %w", t.symbol, ErrAccessDenied)
	}
	return t.balances[holder], nil
}

// Transfer moves amount from the caller to another account.
func (t *Token) Transfer(caller, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(caller, to, amount)
}

// Approve sets the caller's allowance for a spender.
func (t *Token) Approve(caller, spender common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("allowance cannot be negative: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	inner, ok := t.allowance[caller]
	if !ok {
		inner = make(map[common.Address]int64)
		t.allowance[caller] = inner
	}
	inner[spender] = amount
	return nil
}

// Allowance returns how much spender may move on holder's behalf.
func (t *Token) Allowance(holder, spender common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowance[holder][spender]
}

// TransferFrom moves amount from holder to recipient on the caller's
// authority. A privacy-granted caller (the settlement contract after
// RequestPrivacyAccess) moves balances without consuming allowance;
// anyone else draws down an explicit approval.
func (t *Token) TransferFrom(caller, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.granted[caller] {
		have := t.allowance[from][caller]
		if have < amount {
			return fmt.Errorf("%s: spender %s has %d, needs %d: %w",
				t.symbol, caller.Hex(), have, amount, ErrInsufficientAllowance)
		}
		t.allowance[from][caller] = have - amount
	}
	return t.move(from, to, amount)
}

// GrantAccess registers a privacy-access grantee. Idempotent: repeated
// grants for the same address are harmless no-ops.
func (t *Token) GrantAccess(grantee common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.granted[grantee] = true
}

// HasAccess reports whether an address holds a privacy grant.
func (t *Token) HasAccess(addr common.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.granted[addr]
}

// move is the shared debit/credit; callers hold the write lock.
func (t *Token) move(from, to common.Address, amount int64) error {
	have := t.balances[from]
	if have < amount {
		return fmt.Errorf("%s: %s has %d, needs %d: %w",
			t.symbol, from.Hex(), have, amount, ErrInsufficientBalance)
	}
	t.balances[from] = have - amount
	t.balances[to] += amount
	return nil
}
