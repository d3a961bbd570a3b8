package web

import (
	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges are scaled to whole tokens for dashboards; exact base-unit values
// live in the receipts and snapshot tables.
var (
	totalBalanceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ovm_vault_total_balance",
		Help: "Total vault balance in asset tokens, locked premium included.",
	})
	freeBalanceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ovm_vault_free_balance",
		Help: "Withdrawable vault balance in asset tokens.",
	})
	lockedAmountGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ovm_vault_locked_amount",
		Help: "Premium locked for the pending or open option, in asset tokens.",
	})
	shareSupplyGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ovm_share_supply",
		Help: "Outstanding vault share supply in share tokens.",
	})
	cycleNumberGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ovm_cycle_number",
		Help: "Global cycle number of the most recent strategy cycle.",
	})
	cyclesCompletedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ovm_cycles_completed_total",
		Help: "Number of option cycles redeemed since process start.",
	})
)

// RecordVaultBalances publishes the current balance picture to Prometheus.
func RecordVaultBalances(total, free, locked, shareSupply sdkmath.Int, decimals uint8) {
	scale := sdkmath.LegacyNewDec(10).Power(uint64(decimals))
	toTokens := func(v sdkmath.Int) float64 {
		return sdkmath.LegacyNewDecFromInt(v).Quo(scale).MustFloat64()
	}
	totalBalanceGauge.Set(toTokens(total))
	freeBalanceGauge.Set(toTokens(free))
	lockedAmountGauge.Set(toTokens(locked))
	shareSupplyGauge.Set(toTokens(shareSupply))
}

// RecordCycleNumber publishes the global cycle counter value.
func RecordCycleNumber(cycle int) {
	cycleNumberGauge.Set(float64(cycle))
}

// RecordCycleCompleted increments the redeemed-cycle counter.
func RecordCycleCompleted() {
	cyclesCompletedCounter.Inc()
}
