package analyzer

import (
	"errors"
	"math"
	"sort"

	"github.com/quillon-fi/ovm/internal/types"
)

// ErrInsufficientData indicates that not enough data points were provided
// to calculate volatility (need at least 2 points for 1 return).
var ErrInsufficientData = errors.New("insufficient data points to calculate volatility")

// CalculateVolatility computes annualized historical volatility from a price
// series using logarithmic returns and population standard deviation. The
// series is sorted chronologically first. annualizationFactor matches the
// data frequency (8760 for hourly, 365 for daily).
func CalculateVolatility(prices []types.PriceData, annualizationFactor float64) (float64, error) {
	n := len(prices)
	if n < 2 {
		return 0, ErrInsufficientData
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Timestamp.Before(prices[j].Timestamp)
	})

	logReturns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		current := prices[i].Price
		previous := prices[i-1].Price
		// Non-positive prices would break math.Log; skip the pair.
		if previous <= 0 || current <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(current/previous))
	}

	numReturns := len(logReturns)
	if numReturns == 0 {
		return 0, ErrInsufficientData
	}

	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(numReturns)

	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += math.Pow(r-mean, 2)
	}
	variance := sumSqDiff / float64(numReturns)
	stdDev := math.Sqrt(variance)

	return stdDev * math.Sqrt(annualizationFactor), nil
}

// ClampVolatility bounds a volatility estimate into the strategy's accepted
// band so a noisy series cannot push sizing to extremes.
func ClampVolatility(vol, minVol, maxVol float64) float64 {
	if vol < minVol {
		return minVol
	}
	if vol > maxVol {
		return maxVol
	}
	return vol
}
