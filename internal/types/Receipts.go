package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// DepositReceipt records one accepted deposit, with the pool state after it.
type DepositReceipt struct {
	ReceiptID    int64          `json:"receipt_id,omitempty"` // assigned by the journal
	Account      common.Address `json:"account"`
	Amount       sdkmath.Int    `json:"amount"`
	SharesMinted sdkmath.Int    `json:"shares_minted"`
	TotalBalance sdkmath.Int    `json:"total_balance"`
	ShareSupply  sdkmath.Int    `json:"share_supply"`
	Native       bool           `json:"native"`
	Timestamp    time.Time      `json:"timestamp"`
}

// WithdrawalReceipt records one completed withdrawal. Fee is the slice of the
// gross amount routed to the fee recipient; Net is what the account received.
type WithdrawalReceipt struct {
	ReceiptID    int64          `json:"receipt_id,omitempty"`
	Account      common.Address `json:"account"`
	SharesBurned sdkmath.Int    `json:"shares_burned"`
	GrossAmount  sdkmath.Int    `json:"gross_amount"`
	Fee          sdkmath.Int    `json:"fee"`
	NetAmount    sdkmath.Int    `json:"net_amount"`
	TotalBalance sdkmath.Int    `json:"total_balance"`
	ShareSupply  sdkmath.Int    `json:"share_supply"`
	Native       bool           `json:"native"`
	Timestamp    time.Time      `json:"timestamp"`
}

// PurchaseRecord is emitted by an adapter when a position is opened.
type PurchaseRecord struct {
	Position     common.Address `json:"position"`
	Terms        OptionTerms    `json:"terms"`
	Amount       sdkmath.Int    `json:"amount"`
	Premium      sdkmath.Int    `json:"premium"`       // cost in the sub-market's native payment terms
	PaymentAsset common.Address `json:"payment_asset"` // zero for a native-currency payment
	Timestamp    time.Time      `json:"timestamp"`
}

// CycleSnapshot captures one option cycle end to end: the staged terms, the
// balances around the roll, and the realized outcome at redemption.
type CycleSnapshot struct {
	SnapshotID       int64     `json:"snapshot_id,omitempty"`
	CycleID          string    `json:"cycle_id"` // uuid used for log correlation
	CycleNumber      int       `json:"cycle_number"`
	Timestamp        time.Time `json:"timestamp"`
	StrategyParamsID int64     `json:"strategy_params_id,omitempty"`

	Option         common.Address `json:"option"`
	OptionType     string         `json:"option_type"`
	StrikePrice    sdkmath.Int    `json:"strike_price"`
	Expiry         time.Time      `json:"expiry"`
	PurchaseAmount sdkmath.Int    `json:"purchase_amount"`
	Premium        sdkmath.Int    `json:"premium"`

	InitialTotalBalance sdkmath.Int `json:"initial_total_balance"`
	InitialFreeBalance  sdkmath.Int `json:"initial_free_balance"`
	FinalTotalBalance   sdkmath.Int `json:"final_total_balance"`
	FinalFreeBalance    sdkmath.Int `json:"final_free_balance"`
	RealizedProfit      sdkmath.Int `json:"realized_profit"`

	// Phase is the last lifecycle step the cycle reached:
	// "proposed", "rolled" or "redeemed".
	Phase string `json:"phase"`
}
