package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PriceHistoryAPI is the base URL for hourly price history
	// (CryptoCompare-compatible histohour endpoint).
	PriceHistoryAPI string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	PriceHistoryAPI, err = getEnv("PRICE_HISTORY_API")
	if err != nil {
		return err
	}

	log.Debug().
		Str("PriceHistoryAPI", PriceHistoryAPI).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
