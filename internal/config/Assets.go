/*

This file contains the static asset registry. One vault instance trades one
underlying; the registry pins the addresses, decimals and price-history
symbols for the assets the adapter and manager can reference.

*/

package config

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Canonical mainnet asset addresses.
var (
	WETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	WBTC = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	USDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

// AssetInfo describes one asset the system can hold or price.
type AssetInfo struct {
	Symbol        string         `json:"symbol"`
	Address       common.Address `json:"address"`
	Decimals      int            `json:"decimals"`
	HistorySymbol string         `json:"history_symbol"` // symbol used against the price-history API
}

var assetRegistry = []AssetInfo{
	{Symbol: "WETH", Address: WETH, Decimals: 18, HistorySymbol: "ETH"},
	{Symbol: "WBTC", Address: WBTC, Decimals: 8, HistorySymbol: "BTC"},
	{Symbol: "USDC", Address: USDC, Decimals: 6, HistorySymbol: "USDC"},
}

var ErrUnknownAsset = errors.New("asset is not in the registry")

// AssetBySymbol resolves registry info by symbol, case-insensitively.
func AssetBySymbol(symbol string) (AssetInfo, error) {
	for _, info := range assetRegistry {
		if strings.EqualFold(info.Symbol, symbol) {
			return info, nil
		}
	}
	return AssetInfo{}, ErrUnknownAsset
}

// AssetByAddress resolves registry info by address.
func AssetByAddress(addr common.Address) (AssetInfo, error) {
	for _, info := range assetRegistry {
		if info.Address == addr {
			return info, nil
		}
	}
	return AssetInfo{}, ErrUnknownAsset
}
