package main

import (
	"testing"

	"github.com/quillon-fi/ovm/internal/config"
	"github.com/quillon-fi/ovm/internal/types"
)

func TestVaultAssetFollowsTradingMode(t *testing.T) {
	underlying, err := config.AssetBySymbol("WETH")
	if err != nil {
		t.Fatalf("underlying: %v", err)
	}
	strikeAsset, err := config.AssetBySymbol("USDC")
	if err != nil {
		t.Fatalf("strike asset: %v", err)
	}

	if got := vaultAssetFor(types.OptionCall, underlying, strikeAsset); got.Address != underlying.Address {
		t.Fatalf("call vault holds %s, want the underlying %s", got.Symbol, underlying.Symbol)
	}
	if got := vaultAssetFor(types.OptionPut, underlying, strikeAsset); got.Address != strikeAsset.Address {
		t.Fatalf("put vault holds %s, want the strike asset %s", got.Symbol, strikeAsset.Symbol)
	}
}
