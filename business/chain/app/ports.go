// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

// BlockFetcher reads the newest block of a cadence.
type BlockFetcher interface {
	// LatestBlock returns the latest block (standard) or the pending block (flash).
	LatestBlock(ctx context.Context, cadence domain.Cadence) (*domain.Block, error)
}

// BlockSource delivers blocks of one cadence as they appear.
type BlockSource interface {
	// Subscribe streams updates until ctx ends; the channel is then closed.
	Subscribe(ctx context.Context) (<-chan domain.BlockUpdate, error)

	// Status returns the current connection status.
	Status() domain.ConnectionStatus
}

// ReceiptQuerier answers whether a transaction is confirmed on a cadence.
type ReceiptQuerier interface {
	QueryReceipt(ctx context.Context, id domain.TxID, cadence domain.Cadence) (domain.Receipt, error)
}

// TxSubmitter sends transactions from the configured wallet.
type TxSubmitter interface {
	SubmitTransaction(ctx context.Context, to common.Address, valueETH decimal.Decimal) (domain.TxID, error)
	Wallet(ctx context.Context) (domain.WalletInfo, error)
}
