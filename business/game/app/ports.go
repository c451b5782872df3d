// Package app contains the game's application services: block ingestion,
// the confirmation race coordinator and the play session.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

// ChainGateway is what the game needs from the chain context.
type ChainGateway interface {
	LatestBlock(ctx context.Context, cadence chain.Cadence) (*chain.Block, error)
	SubscribeBlocks(ctx context.Context, cadence chain.Cadence) (<-chan chain.BlockUpdate, error)
	QueryReceipt(ctx context.Context, id chain.TxID, cadence chain.Cadence) (chain.Receipt, error)
	SubmitTransaction(ctx context.Context, to common.Address, valueETH decimal.Decimal) (chain.TxID, error)
	Wallet(ctx context.Context) (chain.WalletInfo, error)
	Status(cadence chain.Cadence) chain.ConnectionStatus
}

// RaceObserver receives coordinator notifications. It is called with the
// coordinator's lock held and must not block or call back into it.
type RaceObserver interface {
	OnRaceEvent(ev domain.RaceEvent)
}

// RaceObserverFunc adapts a function to RaceObserver.
type RaceObserverFunc func(ev domain.RaceEvent)

func (f RaceObserverFunc) OnRaceEvent(ev domain.RaceEvent) { f(ev) }

// Reporter defines the interface for presenting game state.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Update pushes a fresh snapshot.
	Update(state domain.GameState)

	// ReportError shows a user-visible failure, such as a rejected submission.
	ReportError(err error)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
