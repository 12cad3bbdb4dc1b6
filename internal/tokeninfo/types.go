package tokeninfo

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenInfo хранит информацию о токене. Market fields are zero when no pair
// was found.
type TokenInfo struct {
	Address  string
	Name     string
	Symbol   string
	Decimals uint8
	// Listed is true when the token list knows the mint.
	Listed bool

	PriceUSD       decimal.Decimal
	PriceNative    decimal.Decimal
	LiquidityUSD   decimal.Decimal
	MarketCap      decimal.Decimal
	Volume24h      decimal.Decimal
	PriceChange24h decimal.Decimal
	DexID          string
	PairAddress    string
	HasMarket      bool

	Source    string // "list", "dexscreener", "list+dexscreener"
	UpdatedAt time.Time
}

// Platform names the venue the token trades on, derived from the pair's dexId.
func (t *TokenInfo) Platform() string {
	dex := strings.ToLower(t.DexID)
	switch {
	case strings.Contains(dex, "pump"):
		return "pump.fun"
	case strings.Contains(dex, "raydium"), strings.HasSuffix(strings.ToLower(t.Address), "bonk"):
		return "bonk.fun / Raydium"
	case t.DexID != "":
		return t.DexID
	default:
		return "Unknown"
	}
}

type listToken struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type dexScreenerResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD    decimal.Decimal `json:"priceUsd"`
	PriceNative decimal.Decimal `json:"priceNative"`
	Liquidity   struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"liquidity"`
	MarketCap decimal.Decimal `json:"marketCap"`
	Volume    struct {
		H24 decimal.Decimal `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 decimal.Decimal `json:"h24"`
	} `json:"priceChange"`
}
