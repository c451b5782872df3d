package app

import (
	"context"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/internal/apperror"
)

// ChainService is the Chain Data Gateway: one facade over both cadences'
// block sources, the RPC reader and the transaction submitter.
type ChainService struct {
	fetcher   BlockFetcher
	receipts  ReceiptQuerier
	submitter TxSubmitter
	sources   [domain.NumCadences]BlockSource

	closeOnce sync.Once
	closers   []closer
}

type closer interface{ Close() error }

// NewChainService wires the gateway. Sources are indexed by cadence.
func NewChainService(
	fetcher BlockFetcher,
	receipts ReceiptQuerier,
	submitter TxSubmitter,
	standard, flash BlockSource,
) *ChainService {
	s := &ChainService{
		fetcher:   fetcher,
		receipts:  receipts,
		submitter: submitter,
	}
	s.sources[domain.Standard] = standard
	s.sources[domain.Flash] = flash

	// One RPC adapter usually backs several ports; close it once.
	for _, v := range []any{fetcher, receipts, submitter, standard, flash} {
		c, ok := v.(closer)
		if !ok || slices.Contains(s.closers, c) {
			continue
		}
		s.closers = append(s.closers, c)
	}
	return s
}

func (s *ChainService) source(cadence domain.Cadence) (BlockSource, error) {
	if !cadence.Valid() || s.sources[cadence] == nil {
		return nil, apperror.New(apperror.CodeUnsupportedCadence, apperror.WithContext(cadence.String()))
	}
	return s.sources[cadence], nil
}

// LatestBlock fetches the newest block of a cadence.
func (s *ChainService) LatestBlock(ctx context.Context, cadence domain.Cadence) (*domain.Block, error) {
	return s.fetcher.LatestBlock(ctx, cadence)
}

// SubscribeBlocks starts the cadence's block stream.
func (s *ChainService) SubscribeBlocks(ctx context.Context, cadence domain.Cadence) (<-chan domain.BlockUpdate, error) {
	src, err := s.source(cadence)
	if err != nil {
		return nil, err
	}
	return src.Subscribe(ctx)
}

// QueryReceipt reports confirmation of id on a cadence.
func (s *ChainService) QueryReceipt(ctx context.Context, id domain.TxID, cadence domain.Cadence) (domain.Receipt, error) {
	return s.receipts.QueryReceipt(ctx, id, cadence)
}

// SubmitTransaction sends valueETH to `to`.
func (s *ChainService) SubmitTransaction(ctx context.Context, to common.Address, valueETH decimal.Decimal) (domain.TxID, error) {
	return s.submitter.SubmitTransaction(ctx, to, valueETH)
}

// Wallet describes the submitting account.
func (s *ChainService) Wallet(ctx context.Context) (domain.WalletInfo, error) {
	return s.submitter.Wallet(ctx)
}

// Status returns the connection status of a cadence's source.
func (s *ChainService) Status(cadence domain.Cadence) domain.ConnectionStatus {
	src, err := s.source(cadence)
	if err != nil {
		return domain.ConnectionStatus{Cadence: cadence, State: domain.StateDisconnected}
	}
	return src.Status()
}

// Close releases every underlying adapter once.
func (s *ChainService) Close() error {
	var first error
	s.closeOnce.Do(func() {
		for _, c := range s.closers {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}
