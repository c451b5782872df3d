package domain

import (
	"time"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

// BlockEvent is emitted once per newly ingested block.
type BlockEvent struct {
	Cadence        chain.Cadence
	Block          *chain.Block
	ObservedAt     time.Time
	ContainsUserTx bool
	// UserTx is the tracked transaction the block matched, so a later
	// supersession can tell the event is stale.
	UserTx chain.TxID
}
