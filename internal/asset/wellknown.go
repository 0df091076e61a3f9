package asset

import "github.com/gagliardetto/solana-go"

// Well-known SPL mints on Solana mainnet.
var (
	MintWSOL    = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	MintUSDC    = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	MintUSDT    = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
	MintMSOL    = solana.MustPublicKeyFromBase58("mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So")
	MintJitoSOL = solana.MustPublicKeyFromBase58("J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn")
	MintWETH    = solana.MustPublicKeyFromBase58("7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs")
	MintWBTC    = solana.MustPublicKeyFromBase58("3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh")
	MintJUP     = solana.MustPublicKeyFromBase58("JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN")
	MintBONK    = solana.MustPublicKeyFromBase58("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263")
)

// DefaultRegistry returns a registry pre-populated with common Solana assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(New("USDC", MintUSDC, 6, ClassStable))
	r.Register(New("USDT", MintUSDT, 6, ClassStable))

	r.Register(New("SOL", MintWSOL, 9, ClassMajor))
	r.Register(New("MSOL", MintMSOL, 9, ClassMajor))
	r.Register(New("JITOSOL", MintJitoSOL, 9, ClassMajor))
	r.Register(New("ETH", MintWETH, 8, ClassMajor))
	r.Register(New("BTC", MintWBTC, 8, ClassMajor))

	r.Register(New("JUP", MintJUP, 6, ClassLongTail))
	r.Register(New("BONK", MintBONK, 5, ClassLongTail))

	return r
}
