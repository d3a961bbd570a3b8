// ./internal/state/receipts_store.go
package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/quillon-fi/ovm/internal/types"
)

// SaveDepositReceipt journals an accepted deposit and returns its id.
func SaveDepositReceipt(receipt types.DepositReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO deposit_receipts (
			receipt_timestamp, account, amount, shares_minted,
			total_balance, share_supply, native
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRow(
		query,
		receipt.Timestamp, receipt.Account.Hex(), receipt.Amount.String(), receipt.SharesMinted.String(),
		receipt.TotalBalance.String(), receipt.ShareSupply.String(), receipt.Native,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to save deposit receipt: %w", err)
	}

	log.Info().
		Int64("receipt_id", receiptID).
		Str("account", receipt.Account.Hex()).
		Str("amount", receipt.Amount.String()).
		Msg("Deposit receipt saved to database")
	return receiptID, nil
}

// SaveWithdrawalReceipt journals a completed withdrawal and returns its id.
func SaveWithdrawalReceipt(receipt types.WithdrawalReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO withdrawal_receipts (
			receipt_timestamp, account, shares_burned, gross_amount,
			fee, net_amount, total_balance, share_supply, native
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRow(
		query,
		receipt.Timestamp, receipt.Account.Hex(), receipt.SharesBurned.String(), receipt.GrossAmount.String(),
		receipt.Fee.String(), receipt.NetAmount.String(), receipt.TotalBalance.String(),
		receipt.ShareSupply.String(), receipt.Native,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to save withdrawal receipt: %w", err)
	}

	log.Info().
		Int64("receipt_id", receiptID).
		Str("account", receipt.Account.Hex()).
		Str("net", receipt.NetAmount.String()).
		Msg("Withdrawal receipt saved to database")
	return receiptID, nil
}

// GetRecentDeposits retrieves recent deposit receipts, newest first.
func GetRecentDeposits(limit int) ([]types.DepositReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT receipt_id, receipt_timestamp, account, amount,
		       shares_minted, total_balance, share_supply, native
		FROM deposit_receipts
		ORDER BY receipt_timestamp DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposit receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.DepositReceipt
	for rows.Next() {
		var r types.DepositReceipt
		var account, amount, minted, total, supply string
		if err := rows.Scan(&r.ReceiptID, &r.Timestamp, &account, &amount, &minted, &total, &supply, &r.Native); err != nil {
			log.Error().Err(err).Msg("Failed to scan deposit receipt row")
			continue
		}
		r.Account = common.HexToAddress(account)
		if r.Amount, err = scanAmount(amount, "amount"); err != nil {
			return nil, err
		}
		if r.SharesMinted, err = scanAmount(minted, "shares_minted"); err != nil {
			return nil, err
		}
		if r.TotalBalance, err = scanAmount(total, "total_balance"); err != nil {
			return nil, err
		}
		if r.ShareSupply, err = scanAmount(supply, "share_supply"); err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return receipts, nil
}

// GetRecentWithdrawals retrieves recent withdrawal receipts, newest first.
func GetRecentWithdrawals(limit int) ([]types.WithdrawalReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT receipt_id, receipt_timestamp, account, shares_burned,
		       gross_amount, fee, net_amount, total_balance, share_supply, native
		FROM withdrawal_receipts
		ORDER BY receipt_timestamp DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawal receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.WithdrawalReceipt
	for rows.Next() {
		var r types.WithdrawalReceipt
		var account, burned, gross, fee, net, total, supply string
		if err := rows.Scan(&r.ReceiptID, &r.Timestamp, &account, &burned, &gross, &fee, &net, &total, &supply, &r.Native); err != nil {
			log.Error().Err(err).Msg("Failed to scan withdrawal receipt row")
			continue
		}
		r.Account = common.HexToAddress(account)
		if r.SharesBurned, err = scanAmount(burned, "shares_burned"); err != nil {
			return nil, err
		}
		if r.GrossAmount, err = scanAmount(gross, "gross_amount"); err != nil {
			return nil, err
		}
		if r.Fee, err = scanAmount(fee, "fee"); err != nil {
			return nil, err
		}
		if r.NetAmount, err = scanAmount(net, "net_amount"); err != nil {
			return nil, err
		}
		if r.TotalBalance, err = scanAmount(total, "total_balance"); err != nil {
			return nil, err
		}
		if r.ShareSupply, err = scanAmount(supply, "share_supply"); err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return receipts, nil
}
