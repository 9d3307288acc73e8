package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry manages the confidential assets known to the settlement
// engine, looked up by asset address (the identity order terms carry)
// or by symbol.
type Registry struct {
	mu        sync.RWMutex
	byAddress map[common.Address]*Token
	bySymbol  map[string]*Token
}

// NewRegistry creates an empty token registry.
func NewRegistry() *Registry {
	return &Registry{
		byAddress: make(map[common.Address]*Token),
		bySymbol:  make(map[string]*Token),
	}
}

// Register adds a token to the registry.
// Returns error if its address or symbol is already registered.
func (r *Registry) Register(t *Token) error {
	if t == nil {
		return fmt.Errorf("cannot register nil token")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAddress[t.Address()]; exists {
		return fmt.Errorf("token at %s already registered", t.Address().Hex())
	}
	if _, exists := r.bySymbol[t.Symbol()]; exists {
		return fmt.Errorf("token %s already registered", t.Symbol())
	}

	r.byAddress[t.Address()] = t
	r.bySymbol[t.Symbol()] = t
	return nil
}

// ByAddress retrieves a token by asset address.
func (r *Registry) ByAddress(addr common.Address) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.byAddress[addr]
	if !exists {
		return nil, fmt.Errorf("no token registered at %s", addr.Hex())
	}
	return t, nil
}

// BySymbol retrieves a token by symbol.
func (r *Registry) BySymbol(symbol string) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.bySymbol[symbol]
	if !exists {
		return nil, fmt.Errorf("token %s not found", symbol)
	}
	return t, nil
}

// List returns all registered tokens.
func (r *Registry) List() []*Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]*Token, 0, len(r.byAddress))
	for _, t := range r.byAddress {
		tokens = append(tokens, t)
	}
	return tokens
}
