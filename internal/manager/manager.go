/*

This file contains the autonomous option-cycle manager. Each cycle it fetches
price history, plans the next option, proposes it on the vault, settles the
roll against a counterparty purchase once the activation delay has passed,
waits out the tenor and redeems, journaling a snapshot at every phase.

*/

package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quillon-fi/ovm/internal/adapter"
	"github.com/quillon-fi/ovm/internal/config"
	"github.com/quillon-fi/ovm/internal/datafetcher"
	"github.com/quillon-fi/ovm/internal/logger"
	"github.com/quillon-fi/ovm/internal/settlement"
	"github.com/quillon-fi/ovm/internal/sharetoken"
	"github.com/quillon-fi/ovm/internal/state"
	"github.com/quillon-fi/ovm/internal/types"
	"github.com/quillon-fi/ovm/internal/vault"
	"github.com/quillon-fi/ovm/internal/web"
)

const (
	DefaultConfigName    = "default"
	DefaultConfigVersion = 1

	// orderValidity bounds how long a signed settlement order stays
	// acceptable after the manager produces it.
	orderValidity = 15 * time.Minute
)

// PriceFetcher retrieves hourly price history for a symbol.
type PriceFetcher func(symbol string, hours int) ([]types.PriceData, error)

// Config holds the wiring for one Manager instance.
type Config struct {
	Vault   *vault.Vault
	Adapter adapter.Adapter
	// Signer holds the key settlement orders are signed with. Its address
	// must be the vault's account.
	Signer *settlement.Signer
	// Shares is read for metrics only; issuance stays with the vault.
	Shares sharetoken.Ledger

	// ManagerAddress is the identity the vault authorizes lifecycle calls
	// for. Counterparty is the account that buys positions from the protocol
	// and sells them to the vault through signed orders.
	ManagerAddress common.Address
	Counterparty   common.Address

	Asset       common.Address
	Underlying  common.Address
	StrikeAsset common.Address
	// PaymentAsset is the denomination premiums are quoted and paid in; the
	// zero address means the protocol settles natively.
	PaymentAsset common.Address
	Mode         types.OptionType

	Params   *types.StrategyParameters
	ParamsID int64

	// FetchPrices defaults to the HTTP history fetcher when nil.
	FetchPrices PriceFetcher

	// Journal persists receipts and cycle snapshots to the database.
	Journal bool
}

// Manager drives the vault through option cycles.
type Manager struct {
	logger zerolog.Logger
	cfg    Config
	params *types.StrategyParameters

	fetchPrices PriceFetcher
	nonce       uint64
	cycleCount  int
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewManager validates the wiring and returns a ready manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Vault == nil || cfg.Adapter == nil || cfg.Signer == nil {
		return nil, fmt.Errorf("manager: vault, adapter and signer are required")
	}
	if cfg.Params == nil {
		return nil, fmt.Errorf("manager: strategy parameters are required")
	}
	if cfg.ManagerAddress == (common.Address{}) || cfg.Counterparty == (common.Address{}) {
		return nil, fmt.Errorf("manager: manager and counterparty addresses are required")
	}
	if cfg.Asset == (common.Address{}) || cfg.Underlying == (common.Address{}) {
		return nil, fmt.Errorf("manager: asset and underlying are required")
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("manager: invalid mode %d", cfg.Mode)
	}

	fetch := cfg.FetchPrices
	if fetch == nil {
		fetch = datafetcher.FetchHistoricalPriceData
	}

	return &Manager{
		logger:      logger.GetForComponent("cycle_manager"),
		cfg:         cfg,
		params:      cfg.Params,
		fetchPrices: fetch,
		nonce:       uint64(time.Now().UnixNano()),
		now:         time.Now,
		sleep:       realSleep,
	}, nil
}

// SetClock overrides the manager clock. Test helper.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// RunLoop runs cycles back to back until the context is cancelled. A cycle
// spans the full option tenor, so the loop itself needs no ticker; the pause
// between cycles only absorbs tight error loops.
func (m *Manager) RunLoop(ctx context.Context, pause time.Duration) {
	m.logger.Info().Dur("pause", pause).Msg("Starting cycle manager loop")

	for {
		if err := ctx.Err(); err != nil {
			m.logger.Info().Msg("Cycle manager loop stopped")
			return
		}
		if err := m.RunCycle(ctx); err != nil {
			m.logger.Error().Err(err).Msg("Cycle failed")
		}
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Cycle manager loop stopped")
			return
		case <-time.After(pause):
		}
	}
}

// RunCycle executes one complete option cycle: plan, propose, roll, redeem.
func (m *Manager) RunCycle(ctx context.Context) error {
	cycleID := uuid.New().String()
	cycleLogger := m.logger.With().Str("cycle_id", cycleID).Logger()
	cycleNumber := m.getCycleNumber()

	cycleLogger.Info().Int("cycleNumber", cycleNumber).Msg("--- Starting option cycle ---")

	initialTotal, err := m.cfg.Vault.TotalBalance()
	if err != nil {
		return fmt.Errorf("initial total balance: %w", err)
	}
	initialFree, err := m.cfg.Vault.FreeBalance()
	if err != nil {
		return fmt.Errorf("initial free balance: %w", err)
	}

	// Step 1: price history and planning.
	info, err := config.AssetByAddress(m.cfg.Underlying)
	if err != nil {
		return fmt.Errorf("underlying not in registry: %w", err)
	}
	prices, err := m.fetchPrices(info.HistorySymbol, m.params.VolLookbackHours)
	if err != nil {
		return fmt.Errorf("price history: %w", err)
	}

	plan, err := m.buildPlan(prices, initialFree)
	if err != nil {
		if errors.Is(err, ErrVolatilityOutOfBand) {
			cycleLogger.Info().Err(err).Msg("Skipping cycle: market not tradable")
			return nil
		}
		return fmt.Errorf("cycle planning: %w", err)
	}
	cycleLogger.Info().
		Float64("spot", plan.Spot).
		Float64("volatility", plan.Volatility).
		Str("strike", plan.Terms.StrikePrice.String()).
		Str("amount", plan.Amount.String()).
		Time("expiry", plan.Terms.Expiry).
		Msg("Step 1: Cycle planned")

	// Step 2: propose on the vault.
	if err := m.cfg.Vault.ProposeNextOption(m.cfg.ManagerAddress, plan.Terms, plan.Amount); err != nil {
		return fmt.Errorf("propose: %w", err)
	}
	premium, ok := m.cfg.Vault.StagedPremium()
	if !ok {
		return fmt.Errorf("propose accepted but nothing staged")
	}
	cycleLogger.Info().Str("premium", premium.String()).Msg("Step 2: Option proposed")

	snapshot := types.CycleSnapshot{
		CycleID:             cycleID,
		CycleNumber:         cycleNumber,
		Timestamp:           m.now(),
		StrategyParamsID:    m.cfg.ParamsID,
		OptionType:          plan.Terms.OptionType.String(),
		StrikePrice:         plan.Terms.StrikePrice,
		Expiry:              plan.Terms.Expiry,
		PurchaseAmount:      plan.Amount,
		Premium:             premium,
		InitialTotalBalance: initialTotal,
		InitialFreeBalance:  initialFree,
		FinalTotalBalance:   initialTotal,
		FinalFreeBalance:    initialFree,
		RealizedProfit:      sdkmath.ZeroInt(),
		Phase:               "proposed",
	}
	m.journalSnapshot(cycleLogger, snapshot)

	// Step 3: wait out the activation delay, then roll.
	readyAt, ok := m.cfg.Vault.NextOptionReadyAt()
	if !ok {
		return fmt.Errorf("staged proposal disappeared before the roll")
	}
	if err := m.waitUntil(ctx, readyAt); err != nil {
		return err
	}

	position, err := m.enterPosition(cycleLogger, plan, premium)
	if err != nil {
		return fmt.Errorf("roll: %w", err)
	}
	snapshot.Option = position
	snapshot.Phase = "rolled"
	snapshot.Timestamp = m.now()
	m.journalSnapshot(cycleLogger, snapshot)
	m.publishMetrics(cycleNumber)

	// Step 4: wait out the tenor, then redeem.
	if err := m.waitUntil(ctx, m.cfg.Vault.CurrentOptionExpiry().Add(time.Second)); err != nil {
		return err
	}

	profit, err := m.cfg.Vault.Redeem(m.cfg.ManagerAddress)
	if err != nil {
		return fmt.Errorf("redeem: %w", err)
	}

	finalTotal, err := m.cfg.Vault.TotalBalance()
	if err != nil {
		return fmt.Errorf("final total balance: %w", err)
	}
	finalFree, err := m.cfg.Vault.FreeBalance()
	if err != nil {
		return fmt.Errorf("final free balance: %w", err)
	}

	snapshot.Phase = "redeemed"
	snapshot.Timestamp = m.now()
	snapshot.RealizedProfit = profit
	snapshot.FinalTotalBalance = finalTotal
	snapshot.FinalFreeBalance = finalFree
	m.journalSnapshot(cycleLogger, snapshot)

	web.RecordCycleCompleted()
	m.publishMetrics(cycleNumber)

	cycleLogger.Info().
		Str("profit", profit.String()).
		Str("finalTotal", finalTotal.String()).
		Msg("--- Option cycle completed ---")
	return nil
}

// enterPosition has the counterparty buy the planned option from the protocol
// and settles it into the vault with a signed order.
func (m *Manager) enterPosition(cycleLogger zerolog.Logger, plan CyclePlan, premium sdkmath.Int) (common.Address, error) {
	cost, err := m.cfg.Adapter.PremiumQuote(plan.Terms, plan.Amount, m.cfg.PaymentAsset)
	if err != nil {
		return common.Address{}, fmt.Errorf("counterparty quote: %w", err)
	}

	value := sdkmath.ZeroInt()
	if m.cfg.PaymentAsset == (common.Address{}) {
		value = cost
	}
	record, err := m.cfg.Adapter.Purchase(m.cfg.Counterparty, plan.Terms, plan.Amount, m.cfg.PaymentAsset, value)
	if err != nil {
		return common.Address{}, fmt.Errorf("counterparty purchase: %w", err)
	}
	cycleLogger.Info().
		Str("position", record.Position.Hex()).
		Str("cost", record.Premium.String()).
		Msg("Step 3: Counterparty acquired position")

	m.nonce++
	order := settlement.Order{
		Nonce:  m.nonce,
		Expiry: m.now().Add(orderValidity),
		Signer: settlement.Party{
			Wallet: m.cfg.Signer.Address(),
			Token:  m.cfg.Asset,
			Amount: premium,
		},
		Sender: settlement.Party{
			Wallet: m.cfg.Counterparty,
			Token:  record.Position,
			Amount: plan.Amount,
		},
	}
	if err := m.cfg.Signer.SignOrder(&order); err != nil {
		return common.Address{}, err
	}

	if err := m.cfg.Vault.RollToNextOption(m.cfg.ManagerAddress, order); err != nil {
		return common.Address{}, err
	}
	cycleLogger.Info().Str("position", record.Position.Hex()).Msg("Step 3: Rolled into position")
	return record.Position, nil
}

// waitUntil blocks until the target instant or context cancellation. The
// loop re-reads the clock after every sleep so an adjusted clock shortens
// the wait.
func (m *Manager) waitUntil(ctx context.Context, target time.Time) error {
	for {
		delay := target.Sub(m.now())
		if delay <= 0 {
			return nil
		}
		m.logger.Debug().Time("target", target).Dur("delay", delay).Msg("Waiting")
		if err := m.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func realSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// getCycleNumber advances the persistent cycle counter, falling back to a
// process-local count when journaling is off or the database is unreachable.
func (m *Manager) getCycleNumber() int {
	if m.cfg.Journal {
		cycleNumber, err := state.IncrementCycleNumber()
		if err == nil {
			return cycleNumber
		}
		m.logger.Error().Err(err).Msg("Failed to increment cycle number, using local counter")
	}
	m.cycleCount++
	return m.cycleCount
}

func (m *Manager) journalSnapshot(cycleLogger zerolog.Logger, snapshot types.CycleSnapshot) {
	if !m.cfg.Journal {
		return
	}
	snapshotID, err := state.SaveCycleSnapshot(snapshot)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save cycle snapshot")
		return
	}
	cycleLogger.Info().Int64("snapshot_id", snapshotID).Str("phase", snapshot.Phase).Msg("Cycle snapshot saved")
}

// publishMetrics pushes the balance picture to the Prometheus gauges.
func (m *Manager) publishMetrics(cycleNumber int) {
	total, err := m.cfg.Vault.TotalBalance()
	if err != nil {
		m.logger.Error().Err(err).Msg("Metrics: total balance unavailable")
		return
	}
	free, err := m.cfg.Vault.FreeBalance()
	if err != nil {
		m.logger.Error().Err(err).Msg("Metrics: free balance unavailable")
		return
	}
	supply := sdkmath.ZeroInt()
	var decimals uint8 = 18
	if m.cfg.Shares != nil {
		if s, err := m.cfg.Shares.TotalSupply(); err == nil {
			supply = s
		}
		decimals = m.cfg.Shares.Decimals()
	}
	web.RecordVaultBalances(total, free, m.cfg.Vault.LockedAmount(), supply, decimals)
	web.RecordCycleNumber(cycleNumber)
}
