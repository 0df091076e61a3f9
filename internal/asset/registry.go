package asset

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Registry is a thread-safe registry of known assets.
type Registry struct {
	bySymbol map[string]*Asset
	byMint   map[solana.PublicKey]*Asset
	mu       sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		bySymbol: make(map[string]*Asset),
		byMint:   make(map[solana.PublicKey]*Asset),
	}
}

// Register adds an asset to the registry.
// Panics if an asset with the same symbol or mint is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySymbol[a.Symbol()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.Symbol()))
	}
	if _, exists := r.byMint[a.Mint()]; exists {
		panic(fmt.Sprintf("asset: mint %s already registered", a.Mint()))
	}

	r.bySymbol[a.Symbol()] = a
	r.byMint[a.Mint()] = a
}

// BySymbol retrieves an asset by its ticker, case-insensitively.
func (r *Registry) BySymbol(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

// ByMint retrieves an asset by mint address.
func (r *Registry) ByMint(mint solana.PublicKey) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byMint[mint]
	return a, ok
}

// Lookup resolves either a ticker or a base58 mint.
func (r *Registry) Lookup(ref string) (*Asset, bool) {
	if a, ok := r.BySymbol(ref); ok {
		return a, true
	}
	mint, err := solana.PublicKeyFromBase58(ref)
	if err != nil {
		return nil, false
	}
	return r.ByMint(mint)
}

// ClassOf returns the class of ref, defaulting unknown assets to long-tail.
func (r *Registry) ClassOf(ref string) Class {
	if a, ok := r.Lookup(ref); ok {
		return a.Class()
	}
	return ClassLongTail
}

// Mints returns every registered mint sorted by symbol.
func (r *Registry) Mints() solana.PublicKeySlice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.bySymbol))
	for s := range r.bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := make(solana.PublicKeySlice, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, r.bySymbol[s].Mint())
	}
	return out
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySymbol)
}
