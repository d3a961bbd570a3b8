package utils

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
)

func TestRescaleDecimalsDownTruncates(t *testing.T) {
	got, err := RescaleDecimals(sdkmath.NewInt(123_456_789), 8, 4)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}
	if !got.Equal(sdkmath.NewInt(12_345)) {
		t.Fatalf("got %s, want 12345", got)
	}
}

func TestRescaleDecimalsUpIsExact(t *testing.T) {
	got, err := RescaleDecimals(sdkmath.NewInt(12_345), 4, 8)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}
	if !got.Equal(sdkmath.NewInt(123_450_000)) {
		t.Fatalf("got %s, want 123450000", got)
	}
}

func TestRescaleDecimalsSamePrecisionPassesThrough(t *testing.T) {
	got, err := RescaleDecimals(sdkmath.NewInt(42), 8, 8)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}
	if !got.Equal(sdkmath.NewInt(42)) {
		t.Fatalf("got %s, want 42", got)
	}
}

func TestRescaleDecimalsRejectsBadInput(t *testing.T) {
	if _, err := RescaleDecimals(sdkmath.NewInt(1), -1, 8); !errors.Is(err, ErrInvalidPrecision) {
		t.Fatalf("negative precision: got %v", err)
	}
	if _, err := RescaleDecimals(sdkmath.NewInt(1), 8, 19); !errors.Is(err, ErrInvalidPrecision) {
		t.Fatalf("oversized precision: got %v", err)
	}
	if _, err := RescaleDecimals(sdkmath.Int{}, 8, 8); !errors.Is(err, ErrAmountNil) {
		t.Fatalf("nil amount: got %v", err)
	}
	if _, err := RescaleDecimals(sdkmath.NewInt(-1), 8, 8); !errors.Is(err, ErrAmountNegative) {
		t.Fatalf("negative amount: got %v", err)
	}
}

func TestFloat64ToSDKInt(t *testing.T) {
	got, err := Float64ToSDKInt(1.5, 18)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want, _ := sdkmath.NewIntFromString("1500000000000000000")
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	// Binary float noise is cut off at the asset precision.
	got, err = Float64ToSDKInt(0.1+0.2, 2)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !got.Equal(sdkmath.NewInt(30)) {
		t.Fatalf("got %s, want 30", got)
	}

	got, err = Float64ToSDKInt(0, 8)
	if err != nil || !got.IsZero() {
		t.Fatalf("zero: got %s, %v", got, err)
	}

	if _, err := Float64ToSDKInt(-1, 8); !errors.Is(err, ErrAmountNegative) {
		t.Fatalf("negative: got %v", err)
	}
}

func TestSDKIntToFloat64RoundTrip(t *testing.T) {
	amount, err := Float64ToSDKInt(2043.75, 8)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	back, err := SDKIntToFloat64(amount, 8)
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if back != 2043.75 {
		t.Fatalf("round trip = %f, want 2043.75", back)
	}
}
