/*
This file contains common utility functions for converting between amount
representations: fixed-point rescaling between decimal conventions and
float64 bridging for the planning layer.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// pow10Int returns 10^n as an sdkmath.Int. n must be >= 0.
func pow10Int(n int) sdkmath.Int {
	result := sdkmath.OneInt()
	ten := sdkmath.NewInt(10)
	for i := 0; i < n; i++ {
		result = result.Mul(ten)
	}
	return result
}

// RescaleDecimals converts an amount between fixed-point conventions, e.g.
// an 18-decimal strike into a protocol's 8-decimal representation. Scaling
// down truncates; scaling up is exact.
func RescaleDecimals(amount sdkmath.Int, fromDecimals, toDecimals int) (sdkmath.Int, error) {
	if fromDecimals < 0 || fromDecimals > 18 || toDecimals < 0 || toDecimals > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: from=%d to=%d", ErrInvalidPrecision, fromDecimals, toDecimals)
	}
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	switch {
	case fromDecimals == toDecimals:
		return amount, nil
	case fromDecimals > toDecimals:
		return amount.Quo(pow10Int(fromDecimals - toDecimals)), nil
	default:
		return amount.Mul(pow10Int(toDecimals - fromDecimals)), nil
	}
}

// SDKIntToFloat64 converts an SDK Int in base units to a float64 in whole
// units given the asset's decimal precision.
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDecFromInt(pow10Int(precision))

	result := decAmount.Quo(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// Float64ToSDKInt converts a float64 amount in whole units to an SDK Int in
// base units. The value is formatted to the asset precision first so binary
// float artifacts do not leak into the integer amount.
func Float64ToSDKInt(amount float64, precision int) (sdkmath.Int, error) {
	if precision < 0 || precision > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.ZeroInt(), nil
	}

	amountStr := fmt.Sprintf(fmt.Sprintf("%%.%df", precision), amount)

	decAmount, err := sdkmath.LegacyNewDecFromStr(amountStr)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}

	result := decAmount.MulInt(pow10Int(precision)).TruncateInt()
	if result.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	return result, nil
}
