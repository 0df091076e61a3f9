// Package asset describes tradable assets and their risk class.
package asset

import (
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Class groups assets by how aggressively lenders discount them.
type Class string

const (
	ClassStable   Class = "stable"
	ClassMajor    Class = "major"
	ClassLongTail Class = "longtail"
)

// Asset is the metadata of a token. Symbol is display metadata, the mint is identity.
type Asset struct {
	symbol   string
	mint     solana.PublicKey
	decimals uint8
	class    Class
}

// New creates an Asset.
func New(symbol string, mint solana.PublicKey, decimals uint8, class Class) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}
	return &Asset{
		symbol:   strings.ToUpper(symbol),
		mint:     mint,
		decimals: decimals,
		class:    class,
	}
}

// Symbol returns the ticker symbol (e.g., "SOL", "USDC").
func (a *Asset) Symbol() string { return a.symbol }

// Mint returns the SPL mint address.
func (a *Asset) Mint() solana.PublicKey { return a.mint }

// Decimals returns the number of decimal places.
func (a *Asset) Decimals() uint8 { return a.decimals }

// Class returns the asset's risk class.
func (a *Asset) Class() Class { return a.class }

func (a *Asset) String() string { return a.symbol }

// Equals compares two Assets by mint.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.mint.Equals(other.mint)
}
