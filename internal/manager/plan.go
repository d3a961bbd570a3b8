/*

This file contains cycle planning: turning a price history into the option
the vault should enter next. Volatility gates the cycle, the OTM offset picks
the strike, and the position is sized so the quoted premium stays inside the
per-cycle budget.

*/

package manager

import (
	"errors"
	"fmt"
	"math"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/quillon-fi/ovm/internal/analyzer"
	"github.com/quillon-fi/ovm/internal/types"
)

var (
	ErrVolatilityOutOfBand = errors.New("volatility outside the tradable band")
	ErrBudgetExhausted     = errors.New("premium budget cannot buy any size")
	ErrNoPriceData         = errors.New("no price data to plan a cycle from")
)

// hoursPerYear annualizes hourly log-return volatility.
const hoursPerYear = 8760

// sizingIterations bounds the premium-fitting loop. The quote is close to
// linear in size, so two or three passes normally converge.
const sizingIterations = 8

// CyclePlan is one fully-specified option cycle ready to propose.
type CyclePlan struct {
	Terms      types.OptionTerms
	Amount     sdkmath.Int
	Spot       float64
	Volatility float64
}

// buildPlan derives the next cycle's terms and size from the price history
// and the current free balance. Returns ErrVolatilityOutOfBand when the
// market is too quiet or too disorderly to trade.
func (m *Manager) buildPlan(prices []types.PriceData, free sdkmath.Int) (CyclePlan, error) {
	if len(prices) == 0 {
		return CyclePlan{}, ErrNoPriceData
	}

	vol, err := analyzer.CalculateVolatility(prices, hoursPerYear)
	if err != nil {
		return CyclePlan{}, fmt.Errorf("volatility estimate: %w", err)
	}
	if vol < m.params.MinVolatility || vol > m.params.MaxVolatility {
		return CyclePlan{}, fmt.Errorf("%w: %.4f outside [%.4f, %.4f]",
			ErrVolatilityOutOfBand, vol, m.params.MinVolatility, m.params.MaxVolatility)
	}
	vol = analyzer.ClampVolatility(vol, m.params.MinVolatility, m.params.MaxVolatility)

	spot := prices[len(prices)-1].Price
	strike, err := analyzer.SelectStrike(spot, m.params.OTMPercent, m.cfg.Mode)
	if err != nil {
		return CyclePlan{}, fmt.Errorf("strike selection: %w", err)
	}

	terms := types.OptionTerms{
		Underlying:  m.cfg.Underlying,
		StrikeAsset: m.cfg.StrikeAsset,
		Expiry:      m.now().Add(time.Duration(m.params.CycleDays) * 24 * time.Hour),
		StrikePrice: strike,
		OptionType:  m.cfg.Mode,
	}

	amount, err := m.sizeUnderBudget(terms, free)
	if err != nil {
		return CyclePlan{}, err
	}

	return CyclePlan{
		Terms:      terms,
		Amount:     amount,
		Spot:       spot,
		Volatility: vol,
	}, nil
}

// sizeUnderBudget finds the largest position whose premium fits inside the
// budget slice of the free balance. The quote is re-checked after each scale
// down because the payment conversion is not perfectly linear in size.
func (m *Manager) sizeUnderBudget(terms types.OptionTerms, free sdkmath.Int) (sdkmath.Int, error) {
	if !free.IsPositive() {
		return sdkmath.ZeroInt(), ErrBudgetExhausted
	}

	bps := sdkmath.NewInt(int64(math.Round(m.params.PremiumBudgetPercent * 10000)))
	budget := free.Mul(bps).Quo(sdkmath.NewInt(10000))
	if !budget.IsPositive() {
		return sdkmath.ZeroInt(), ErrBudgetExhausted
	}

	amount := free
	for i := 0; i < sizingIterations; i++ {
		premium, err := m.cfg.Adapter.PremiumQuote(terms, amount, m.cfg.PaymentAsset)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("premium quote: %w", err)
		}
		if premium.LTE(budget) {
			return amount, nil
		}
		amount = amount.Mul(budget).Quo(premium)
		if !amount.IsPositive() {
			return sdkmath.ZeroInt(), ErrBudgetExhausted
		}
	}
	return sdkmath.ZeroInt(), fmt.Errorf("%w: quote did not converge", ErrBudgetExhausted)
}
