package app

import (
	"context"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

// BlockHandler consumes newly ingested blocks.
type BlockHandler func(ctx context.Context, ev domain.BlockEvent)

// RunIngestion feeds updates into ing until the channel closes or ctx ends,
// passing each new block to the handlers in order.
func RunIngestion(ctx context.Context, updates <-chan chain.BlockUpdate, ing *Ingestor, handlers ...BlockHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Reset {
				ing.Reset()
			}
			ev, fresh := ing.Ingest(u.Block)
			if !fresh {
				continue
			}
			for _, h := range handlers {
				h(ctx, ev)
			}
		}
	}
}
