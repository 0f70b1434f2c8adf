package domain

import (
	"github.com/shopspring/decimal"
)

// CryptoHistoryCap is the maximum number of price points retained per asset.
const CryptoHistoryCap = 100

// PricePoint is a single observed price at a point in time.
type PricePoint struct {
	TimestampUnixMs int64           `json:"timestamp"`
	Price           decimal.Decimal `json:"price"`
}

// CryptoRecord represents the latest observed state of a single asset.
// Scalars come from bulk fetches and push updates; History only grows
// through push updates and is bounded by CryptoHistoryCap.
type CryptoRecord struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	PriceChange24h    decimal.Decimal `json:"price_change_24h"`
	MarketCap         decimal.Decimal `json:"market_cap"`
	Volume            decimal.Decimal `json:"volume"`
	CirculatingSupply decimal.Decimal `json:"circulating_supply"`
	History           []PricePoint    `json:"history,omitempty"`
}

// DisplayName prefers the human-readable name, falling back to the id.
func (c *CryptoRecord) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
