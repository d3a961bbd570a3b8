package analyzer

import (
	"errors"
	"math"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/quillon-fi/ovm/internal/types"
)

func hourlySeries(prices []float64) []types.PriceData {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.PriceData, len(prices))
	for i, p := range prices {
		out[i] = types.PriceData{Timestamp: base.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return out
}

func TestCalculateVolatilityConstantSeriesIsZero(t *testing.T) {
	vol, err := CalculateVolatility(hourlySeries([]float64{100, 100, 100, 100}), 8760)
	if err != nil {
		t.Fatalf("volatility: %v", err)
	}
	if vol != 0 {
		t.Fatalf("constant series vol = %f, want 0", vol)
	}
}

func TestCalculateVolatilityRequiresTwoPoints(t *testing.T) {
	_, err := CalculateVolatility(hourlySeries([]float64{100}), 8760)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("got %v, want ErrInsufficientData", err)
	}

	// All non-positive prices leave no usable returns.
	_, err = CalculateVolatility(hourlySeries([]float64{0, -1, 0}), 8760)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("got %v, want ErrInsufficientData", err)
	}
}

func TestCalculateVolatilityKnownSeries(t *testing.T) {
	// Alternating +1%/-1% moves: both log returns have equal magnitude and
	// opposite sign, so stddev equals that magnitude times sqrt of the
	// annualization factor.
	series := hourlySeries([]float64{100, 101, 99.99})
	vol, err := CalculateVolatility(series, 8760)
	if err != nil {
		t.Fatalf("volatility: %v", err)
	}
	r1 := math.Log(101.0 / 100.0)
	r2 := math.Log(99.99 / 101.0)
	mean := (r1 + r2) / 2
	want := math.Sqrt((math.Pow(r1-mean, 2)+math.Pow(r2-mean, 2))/2) * math.Sqrt(8760)
	if math.Abs(vol-want) > 1e-12 {
		t.Fatalf("vol = %.15f, want %.15f", vol, want)
	}
}

func TestClampVolatility(t *testing.T) {
	if got := ClampVolatility(0.1, 0.3, 2.5); got != 0.3 {
		t.Fatalf("below band: %f, want 0.3", got)
	}
	if got := ClampVolatility(3.0, 0.3, 2.5); got != 2.5 {
		t.Fatalf("above band: %f, want 2.5", got)
	}
	if got := ClampVolatility(0.8, 0.3, 2.5); got != 0.8 {
		t.Fatalf("inside band: %f, want 0.8", got)
	}
}

func TestSelectStrikeDirection(t *testing.T) {
	spot18 := func(v float64) sdkmath.Int {
		return sdkmath.NewInt(int64(v * 1e8)).MulRaw(1e10)
	}

	call, err := SelectStrike(2000, 0.10, types.OptionCall)
	if err != nil {
		t.Fatalf("call strike: %v", err)
	}
	if !call.Equal(spot18(2200)) {
		t.Fatalf("call strike = %s, want %s", call, spot18(2200))
	}

	put, err := SelectStrike(2000, 0.10, types.OptionPut)
	if err != nil {
		t.Fatalf("put strike: %v", err)
	}
	if !put.Equal(spot18(1800)) {
		t.Fatalf("put strike = %s, want %s", put, spot18(1800))
	}

	if _, err := SelectStrike(-5, 0.10, types.OptionCall); !errors.Is(err, ErrInvalidSpot) {
		t.Fatalf("negative spot: got %v, want ErrInvalidSpot", err)
	}
}
