package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/quillon-fi/ovm/internal/adapter/hegic"
	"github.com/quillon-fi/ovm/internal/assets"
	"github.com/quillon-fi/ovm/internal/config"
	"github.com/quillon-fi/ovm/internal/datafetcher"
	"github.com/quillon-fi/ovm/internal/logger"
	"github.com/quillon-fi/ovm/internal/manager"
	"github.com/quillon-fi/ovm/internal/oracle"
	"github.com/quillon-fi/ovm/internal/settlement"
	"github.com/quillon-fi/ovm/internal/sharetoken"
	"github.com/quillon-fi/ovm/internal/state"
	"github.com/quillon-fi/ovm/internal/swap"
	"github.com/quillon-fi/ovm/internal/types"
	"github.com/quillon-fi/ovm/internal/utils"
	"github.com/quillon-fi/ovm/internal/vault"
	"github.com/quillon-fi/ovm/internal/web"
)

// CYCLE_PAUSE separates the end of one option cycle from the start of the
// next.
const CYCLE_PAUSE = time.Minute

// Fixed accounts for the paper-trading stack. The vault's own account is the
// order signer's address and comes from OVM_ORDER_SIGNER_KEY.
var (
	paperOwner        = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	paperManager      = common.HexToAddress("0x000000000000000000000000000000000000FACE")
	paperFeeRecipient = common.HexToAddress("0x0000000000000000000000000000000000F0F0F0")
	paperCounterparty = common.HexToAddress("0x0000000000000000000000000000000000C0FFEE")
	paperMarket       = common.HexToAddress("0x00000000000000000000000000000000004E617B")
	paperPool         = common.HexToAddress("0x0000000000000000000000000000000000D00D1E")
	paperExecutor     = common.HexToAddress("0x0000000000000000000000000000000000E8EC00")
	paperDepositor    = common.HexToAddress("0x0000000000000000000000000000000000DE9051")
)

// main is the entry point for the OVM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("OVM Core Logic Starting...")

	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load strategy parameters, seeding the defaults on first run.
	strategyParams, paramsID, err := state.LoadActiveStrategyParameters(manager.DefaultConfigName)
	if err != nil || strategyParams == nil {
		log.Warn().Err(err).Msg("No active strategy parameters, using defaults and saving.")
		defaultParams := config.DefaultStrategyParameters
		version, verr := state.NextParametersVersion(manager.DefaultConfigName)
		if verr != nil {
			version = manager.DefaultConfigVersion
		}
		paramsID, err = state.SaveStrategyParameters(defaultParams, manager.DefaultConfigName, version, true)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default strategy parameters.")
		}
		strategyParams = &defaultParams
	}
	log.Info().Msg("Strategy parameters loaded successfully.")

	// --- Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting OVM web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 2. Trading Stack Initialization (with Safety Switch) ---
	ovmMode := os.Getenv("OVM_MODE")
	if ovmMode != "paper" {
		log.Fatal().Msg("OVM_MODE is not set to 'paper'. Halting to prevent accidental execution. Set OVM_MODE=paper to run.")
	}
	log.Info().Msg("Initializing OVM in PAPER mode. All balances are simulated in memory.")

	underlyingSymbol := os.Getenv("OVM_UNDERLYING")
	if underlyingSymbol == "" {
		underlyingSymbol = "WETH"
	}
	underlying, err := config.AssetBySymbol(underlyingSymbol)
	if err != nil {
		log.Fatal().Err(err).Str("symbol", underlyingSymbol).Msg("Unknown underlying asset")
	}
	strikeAsset, err := config.AssetBySymbol("USDC")
	if err != nil {
		log.Fatal().Err(err).Msg("Strike asset missing from registry")
	}

	mgr, err := buildPaperStack(underlying, strikeAsset, strategyParams, paramsID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build paper trading stack")
	}

	// --- 3. Start Cycle Manager Loop ---
	log.Info().Str("pause", CYCLE_PAUSE.String()).Msg("Starting OVM cycle loop")
	ctx := context.Background()
	mgr.RunLoop(ctx, CYCLE_PAUSE)
}

// vaultAssetFor picks the deposit asset for the trading mode. Call vaults hold
// the underlying they write against; put vaults hold the strike asset as
// collateral.
func vaultAssetFor(mode types.OptionType, underlying, strikeAsset config.AssetInfo) config.AssetInfo {
	if mode == types.OptionPut {
		return strikeAsset
	}
	return underlying
}

// buildPaperStack wires the full in-memory trading environment: bank, wrapped
// asset, price feed, AMM pool, option market, adapter, executor and vault.
func buildPaperStack(underlying, strikeAsset config.AssetInfo, params *types.StrategyParameters, paramsID int64) (*manager.Manager, error) {
	signer, err := settlement.NewSigner(config.OrderSignerKey)
	if err != nil {
		return nil, err
	}

	mode := types.OptionCall
	if config.VaultMode == "put" {
		mode = types.OptionPut
	}
	vaultAsset := vaultAssetFor(mode, underlying, strikeAsset)

	bank := assets.NewMemoryBank()
	bank.RegisterAsset(underlying.Address)
	bank.RegisterAsset(strikeAsset.Address)
	wrapper := assets.NewMemoryWrapper(bank, underlying.Address)
	shares := sharetoken.NewMemoryLedger("Options Vault Share", "o"+vaultAsset.Symbol, 18)

	// Anchor the paper feed at the live spot price.
	prices, err := datafetcher.FetchHistoricalPriceData(underlying.HistorySymbol, 2)
	if err != nil {
		return nil, err
	}
	spot, err := utils.Float64ToSDKInt(prices[len(prices)-1].Price, oracle.PriceDecimals)
	if err != nil {
		return nil, err
	}
	feed, err := oracle.NewStaticFeed(spot)
	if err != nil {
		return nil, err
	}
	log.Info().Str("spot", spot.String()).Str("symbol", underlying.Symbol).Msg("Paper price feed anchored")

	seed := sdkmath.NewInt(1_000).MulRaw(1_000_000_000_000_000_000)
	pool, err := swap.NewMemoryPool(bank, paperPool, strikeAsset.Address, seed, seed.MulRaw(2000))
	if err != nil {
		return nil, err
	}
	market, err := hegic.NewMemoryMarket(bank, underlying.Address, common.Address{}, paperMarket,
		feed, sdkmath.NewInt(55_000_000), seed)
	if err != nil {
		return nil, err
	}
	adpt := hegic.NewAdapter(bank, pool, strikeAsset.Address)
	adpt.RegisterMarket(market, feed)

	executor := settlement.NewMemoryExecutor(bank, adpt, paperExecutor)

	minPool, ok := sdkmath.NewIntFromString(config.MinPoolSize)
	if !ok {
		return nil, fmt.Errorf("OVM_MIN_POOL_SIZE must be an integer amount, got: %s", config.MinPoolSize)
	}
	depositCap, ok := sdkmath.NewIntFromString(config.VaultCap)
	if !ok {
		return nil, fmt.Errorf("OVM_VAULT_CAP must be an integer amount, got: %s", config.VaultCap)
	}

	v, err := vault.NewVault(vault.Config{
		Asset:           vaultAsset.Address,
		Underlying:      underlying.Address,
		StrikeAsset:     strikeAsset.Address,
		Mode:            mode,
		Adapter:         adpt,
		Executor:        executor,
		Bank:            bank,
		Wrapper:         wrapper,
		Address:         signer.Address(),
		MinimumPoolSize: minPool,
	})
	if err != nil {
		return nil, err
	}
	if err := v.Initialize(paperOwner, paperManager, paperFeeRecipient, depositCap, shares); err != nil {
		return nil, err
	}
	fee := sdkmath.LegacyNewDecWithPrec(int64(config.WithdrawalFeeBps), 4)
	if err := v.SetWithdrawalFee(paperOwner, fee); err != nil {
		return nil, err
	}

	// Fund the paper accounts: a seed deposit so cycles have capital and a
	// native balance for the counterparty's purchases.
	seedDeposit := sdkmath.NewInt(100).MulRaw(1_000_000_000_000_000_000)
	if raw := os.Getenv("OVM_PAPER_SEED_DEPOSIT"); raw != "" {
		seedDeposit, ok = sdkmath.NewIntFromString(raw)
		if !ok {
			return nil, fmt.Errorf("OVM_PAPER_SEED_DEPOSIT must be an integer amount, got: %s", raw)
		}
	}
	if seedDeposit.IsPositive() {
		if err := bank.Mint(vaultAsset.Address, paperDepositor, seedDeposit); err != nil {
			return nil, err
		}
		receipt, err := v.Deposit(paperDepositor, seedDeposit)
		if err != nil {
			return nil, err
		}
		if _, err := state.SaveDepositReceipt(receipt); err != nil {
			log.Error().Err(err).Msg("Failed to journal seed deposit")
		}
	}
	bank.MintNative(paperCounterparty, seed)
	if mode == types.OptionPut {
		// Put purchases pay collateral in the strike asset, swapped exact-out
		// through the pool, so the counterparty needs a stable balance too.
		if err := bank.Mint(strikeAsset.Address, paperCounterparty, seed.MulRaw(2000)); err != nil {
			return nil, err
		}
	}

	// The vault pays premiums natively only when its asset is the wrapped
	// native token.
	paymentAsset := common.Address{}
	if vaultAsset.Address != underlying.Address {
		paymentAsset = vaultAsset.Address
	}

	return manager.NewManager(manager.Config{
		Vault:          v,
		Adapter:        adpt,
		Signer:         signer,
		Shares:         shares,
		ManagerAddress: paperManager,
		Counterparty:   paperCounterparty,
		Asset:          vaultAsset.Address,
		Underlying:     underlying.Address,
		StrikeAsset:    strikeAsset.Address,
		PaymentAsset:   paymentAsset,
		Mode:           mode,
		Params:         params,
		ParamsID:       paramsID,
		Journal:        true,
	})
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
