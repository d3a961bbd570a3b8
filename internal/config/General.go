package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment
// variables. These are populated at startup by the LoadConfig function.
var (
	// VaultMode selects what the vault trades: "put" or "call".
	VaultMode string

	// VaultCap is the soft deposit ceiling in base units of the vault asset.
	VaultCap string

	// MinPoolSize is the floor both the total balance and the share supply
	// must stay above once the pool is seeded, in base units.
	MinPoolSize string

	// WithdrawalFeeBps is the instant-withdrawal fee in basis points.
	// Must be strictly between 0 and 3000.
	WithdrawalFeeBps uint64

	// OrderSignerKey is the hex-encoded secp256k1 key the manager signs
	// settlement orders with.
	OrderSignerKey string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultMode, err = getEnv("OVM_VAULT_MODE")
	if err != nil {
		return err
	}
	if VaultMode != "put" && VaultMode != "call" {
		return errors.New("OVM_VAULT_MODE must be \"put\" or \"call\", got: " + VaultMode)
	}

	VaultCap, err = getEnv("OVM_VAULT_CAP")
	if err != nil {
		return err
	}

	MinPoolSize, err = getEnv("OVM_MIN_POOL_SIZE")
	if err != nil {
		return err
	}

	WithdrawalFeeBps, err = getEnvAsUint64("OVM_WITHDRAWAL_FEE_BPS")
	if err != nil {
		return err
	}
	if WithdrawalFeeBps == 0 || WithdrawalFeeBps >= 3000 {
		return errors.New("OVM_WITHDRAWAL_FEE_BPS must be strictly between 0 and 3000")
	}

	OrderSignerKey, err = getEnv("OVM_ORDER_SIGNER_KEY")
	if err != nil {
		return err
	}

	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultMode", VaultMode).
		Str("VaultCap", VaultCap).
		Uint64("WithdrawalFeeBps", WithdrawalFeeBps).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
