package domain

import "strings"

type AssetClass string

const (
	AssetClassEquity  AssetClass = "equity"
	AssetClassDigital AssetClass = "digital_asset"
)

func (c AssetClass) Valid() bool {
	return c == AssetClassEquity || c == AssetClassDigital
}

// NormalizeSymbol upper-cases and trims a ticker so that
// (asset_class, symbol) keys compare consistently.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
