/*
This file is used to fetch historical price data from a CryptoCompare-style
histohour API.

The volatility estimator needs a full window of valid hourly closes; partial
or corrupt series are rejected rather than silently padded, because strike
and sizing decisions for pooled depositor capital hang off the result.
*/

package datafetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/quillon-fi/ovm/internal/config"
	"github.com/quillon-fi/ovm/internal/logger"
	"github.com/quillon-fi/ovm/internal/types"
)

var priceLogger = logger.GetForComponent("price_retriever")

var ErrInvalidPriceData = errors.New("invalid price data received")
var ErrInsufficientData = errors.New("insufficient price data for volatility calculation")
var ErrAPIConfiguration = errors.New("API configuration error")

const (
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 30
)

type histoHourResponse struct {
	Response   string `json:"Response"`
	Message    string `json:"Message"`
	HasWarning bool   `json:"HasWarning"`
	Data       struct {
		TimeFrom int64            `json:"TimeFrom"`
		TimeTo   int64            `json:"TimeTo"`
		Data     []histoHourPoint `json:"Data"`
	} `json:"Data"`
}

type histoHourPoint struct {
	Time  int64   `json:"time"`
	Close float64 `json:"close"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Open  float64 `json:"open"`
}

// validatePricePoint performs strict validation on one hourly candle.
func validatePricePoint(p histoHourPoint, symbol string) error {
	if p.Time <= 0 {
		return fmt.Errorf("invalid timestamp for %s: %d", symbol, p.Time)
	}
	for _, field := range []struct {
		value float64
		name  string
	}{
		{p.Close, "close"},
		{p.High, "high"},
		{p.Low, "low"},
		{p.Open, "open"},
	} {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) {
			return fmt.Errorf("%s price for %s is not finite: %f", field.name, symbol, field.value)
		}
		if field.value <= 0 {
			return fmt.Errorf("%s price for %s must be positive: %f", field.name, symbol, field.value)
		}
	}
	if p.High < p.Low {
		return fmt.Errorf("high (%f) below low (%f) for %s", p.High, p.Low, symbol)
	}
	if p.Close < p.Low || p.Close > p.High {
		return fmt.Errorf("close (%f) outside [%f, %f] for %s", p.Close, p.Low, p.High, symbol)
	}
	return nil
}

// FetchHistoricalPriceData fetches `hours` of hourly closes for the symbol
// against USD, with retries and strict validation.
func FetchHistoricalPriceData(symbol string, hours int) ([]types.PriceData, error) {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrAPIConfiguration)
	}
	if hours < 2 {
		return nil, fmt.Errorf("%w: need at least 2 hours, got %d", ErrAPIConfiguration, hours)
	}
	if config.PriceHistoryAPI == "" {
		return nil, fmt.Errorf("%w: PRICE_HISTORY_API is not configured", ErrAPIConfiguration)
	}

	url := fmt.Sprintf("%s?fsym=%s&tsym=USD&limit=%d", config.PriceHistoryAPI, symbol, hours)
	if apiKey := os.Getenv("PRICE_HISTORY_API_KEY"); apiKey != "" {
		url += "&api_key=" + apiKey
	}

	client := &http.Client{Timeout: TIMEOUT_SECONDS * time.Second}

	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		priceLogger.Debug().
			Str("symbol", symbol).
			Int("attempt", attempt).
			Int("hours", hours).
			Msg("Requesting price history")

		resp, err := client.Get(url)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed on attempt %d: %w", attempt, err)
			priceLogger.Warn().
				Err(err).
				Str("symbol", symbol).
				Int("attempt", attempt).
				Msg("HTTP request failed, will retry if attempts remain")
			if attempt < MAX_RETRIES {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			break
		}

		result, err := processResponse(resp, symbol, hours)
		if err != nil {
			lastErr = err
			if attempt < MAX_RETRIES {
				priceLogger.Warn().
					Err(err).
					Str("symbol", symbol).
					Int("attempt", attempt).
					Msg("Response processing failed, will retry if attempts remain")
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			break
		}
		return result, nil
	}

	priceLogger.Error().
		Err(lastErr).
		Str("symbol", symbol).
		Int("maxRetries", MAX_RETRIES).
		Msg("All retry attempts failed")
	return nil, fmt.Errorf("failed to fetch price data for %s after %d attempts: %w", symbol, MAX_RETRIES, lastErr)
}

func processResponse(resp *http.Response, symbol string, hours int) ([]types.PriceData, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d for %s", resp.StatusCode, symbol)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s: %w", symbol, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response body for %s", ErrInvalidPriceData, symbol)
	}

	var parsed histoHourResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response for %s: %w", symbol, err)
	}
	if parsed.Response != "Success" {
		return nil, fmt.Errorf("API error for %s: %s - %s", symbol, parsed.Response, parsed.Message)
	}
	if len(parsed.Data.Data) == 0 {
		return nil, fmt.Errorf("%w: no data available for %s", ErrInvalidPriceData, symbol)
	}
	if parsed.HasWarning {
		priceLogger.Warn().
			Str("symbol", symbol).
			Str("message", parsed.Message).
			Int("dataPoints", len(parsed.Data.Data)).
			Msg("API returned warning but has data - continuing")
	}
	if len(parsed.Data.Data) < hours {
		return nil, fmt.Errorf("%w: received %d hours for %s, required %d",
			ErrInsufficientData, len(parsed.Data.Data), symbol, hours)
	}

	priceData := make([]types.PriceData, 0, len(parsed.Data.Data))
	for i, point := range parsed.Data.Data {
		if err := validatePricePoint(point, symbol); err != nil {
			return nil, fmt.Errorf("%w: data point %d: %w", ErrInvalidPriceData, i, err)
		}
		priceData = append(priceData, types.PriceData{
			Timestamp: time.Unix(point.Time, 0),
			Price:     point.Close,
		})
	}

	if err := validateTimeSequence(priceData, symbol); err != nil {
		return nil, err
	}

	// Keep exactly the most recent window.
	if len(priceData) > hours {
		priceData = priceData[len(priceData)-hours:]
	}

	priceLogger.Info().
		Str("symbol", symbol).
		Int("dataPoints", len(priceData)).
		Time("oldest", priceData[0].Timestamp).
		Time("newest", priceData[len(priceData)-1].Timestamp).
		Msg("Successfully retrieved and validated price data")

	return priceData, nil
}

// validateTimeSequence ensures chronological order and flags unusual gaps.
func validateTimeSequence(priceData []types.PriceData, symbol string) error {
	for i := 1; i < len(priceData); i++ {
		if priceData[i].Timestamp.Before(priceData[i-1].Timestamp) {
			return fmt.Errorf("%w: data out of chronological order for %s at index %d",
				ErrInvalidPriceData, symbol, i)
		}
		gap := priceData[i].Timestamp.Sub(priceData[i-1].Timestamp)
		if gap < 30*time.Minute || gap > 90*time.Minute {
			priceLogger.Warn().
				Str("symbol", symbol).
				Int("index", i).
				Dur("gap", gap).
				Msg("Unusual time gap between data points")
		}
	}
	return nil
}
