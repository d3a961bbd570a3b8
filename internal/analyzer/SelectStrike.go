/*
This file contains the strike selection rule: the strategy buys options a
fixed percentage out of the money, calls above spot and puts below. Strikes
are produced on the protocol's 8-decimal grid and lifted to the generic
18-decimal convention so no precision is lost translating them back.
*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"

	"github.com/quillon-fi/ovm/internal/types"
	"github.com/quillon-fi/ovm/internal/utils"
)

var ErrInvalidSpot = errors.New("spot price must be positive and finite")

// strikeGridDecimals matches the protocol's strike precision.
const strikeGridDecimals = 8

// SelectStrike derives the 18-decimal strike for the next cycle from the
// current spot price and the strategy's OTM percentage.
func SelectStrike(spot float64, otmPercent float64, optionType types.OptionType) (sdkmath.Int, error) {
	if math.IsNaN(spot) || math.IsInf(spot, 0) || spot <= 0 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %f", ErrInvalidSpot, spot)
	}
	if otmPercent < 0 || otmPercent >= 1 {
		return sdkmath.ZeroInt(), fmt.Errorf("otm percent out of range: %f", otmPercent)
	}

	var strike float64
	switch optionType {
	case types.OptionCall:
		strike = spot * (1 + otmPercent)
	case types.OptionPut:
		strike = spot * (1 - otmPercent)
	default:
		return sdkmath.ZeroInt(), fmt.Errorf("invalid option type %d", optionType)
	}

	grid, err := utils.Float64ToSDKInt(strike, strikeGridDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("strike conversion: %w", err)
	}
	return utils.RescaleDecimals(grid, strikeGridDecimals, 18)
}
