package flashblocks

import (
	"errors"
	"sync"
	"time"

	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

// ErrMissingBase is returned for a diff whose payload base was never seen
// and which carries no block number of its own.
var ErrMissingBase = errors.New("flashblock diff without base")

// Merger turns payload diffs into blocks, remembering the base of the
// current payload for later indices.
type Merger struct {
	mu        sync.Mutex
	payloadID string
	base      *Base
}

// NewMerger creates an empty merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Merge converts p into a flash-cadence block. Transactions holds only the
// transactions added by this flashblock.
func (m *Merger) Merge(p *Payload) (*domain.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.Base != nil {
		m.payloadID = p.PayloadID
		m.base = p.Base
	} else if p.PayloadID != m.payloadID {
		m.base = nil
	}

	b := &domain.Block{
		Cadence:   domain.Flash,
		Hash:      p.Diff.BlockHash,
		GasUsed:   uint64(p.Diff.GasUsed),
		PayloadID: p.PayloadID,
		Index:     p.Index,
	}

	switch {
	case p.Metadata.BlockNumber != nil:
		b.Number = uint64(*p.Metadata.BlockNumber)
	case m.base != nil:
		b.Number = uint64(m.base.BlockNumber)
	default:
		return nil, ErrMissingBase
	}

	if m.base != nil {
		b.ParentHash = m.base.ParentHash
		b.GasLimit = uint64(m.base.GasLimit)
		b.Timestamp = time.Unix(int64(m.base.Timestamp), 0)
	}

	b.Transactions = make([]domain.TxID, len(p.Diff.Transactions))
	for i, tx := range p.Diff.Transactions {
		b.Transactions[i] = tx.TxID()
	}

	return b, nil
}

// Reset forgets the current payload. Called on every reconnect.
func (m *Merger) Reset() {
	m.mu.Lock()
	m.payloadID = ""
	m.base = nil
	m.mu.Unlock()
}
