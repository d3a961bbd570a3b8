package oracle

import (
	"errors"
	"sync"

	sdkmath "cosmossdk.io/math"
)

// Prices carry 8 decimals, matching the reference-feed convention of the
// option protocols this system adapts.
const PriceDecimals = 8

var (
	ErrNoPrice      = errors.New("oracle has no price set")
	ErrInvalidPrice = errors.New("oracle price must be positive")
)

// PriceSource supplies the current reference price for one asset pair.
type PriceSource interface {
	LatestPrice() (sdkmath.Int, error)
}

// StaticFeed is a settable in-process price source used by the paper mode
// and the test suites.
type StaticFeed struct {
	mu    sync.Mutex
	price sdkmath.Int
	set   bool
}

// NewStaticFeed returns a feed primed with the given 8-decimal price.
func NewStaticFeed(price sdkmath.Int) (*StaticFeed, error) {
	feed := &StaticFeed{}
	if err := feed.SetPrice(price); err != nil {
		return nil, err
	}
	return feed, nil
}

// SetPrice replaces the feed's current price.
func (f *StaticFeed) SetPrice(price sdkmath.Int) error {
	if price.IsNil() || !price.IsPositive() {
		return ErrInvalidPrice
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = price
	f.set = true
	return nil
}

func (f *StaticFeed) LatestPrice() (sdkmath.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		return sdkmath.ZeroInt(), ErrNoPrice
	}
	return f.price, nil
}
