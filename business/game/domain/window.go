package domain

import (
	"time"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

// DefaultWindowSize is the number of recent blocks kept per cadence.
const DefaultWindowSize = 50

// ObservedBlock is a block together with when it was ingested.
type ObservedBlock struct {
	Block          *chain.Block
	ObservedAt     time.Time
	ContainsUserTx bool
}

// BlockWindow is a fixed-capacity ring of the most recent blocks, oldest
// evicted first.
type BlockWindow struct {
	buf   []ObservedBlock
	start int
	n     int
}

// NewBlockWindow creates a window holding up to size blocks.
func NewBlockWindow(size int) *BlockWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &BlockWindow{buf: make([]ObservedBlock, size)}
}

// Push appends b, evicting the oldest entry when full.
func (w *BlockWindow) Push(b ObservedBlock) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = b
		w.n++
		return
	}
	w.buf[w.start] = b
	w.start = (w.start + 1) % len(w.buf)
}

// Snapshot returns the entries oldest first.
func (w *BlockWindow) Snapshot() []ObservedBlock {
	out := make([]ObservedBlock, w.n)
	for i := range w.n {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Latest returns the newest entry.
func (w *BlockWindow) Latest() (ObservedBlock, bool) {
	if w.n == 0 {
		return ObservedBlock{}, false
	}
	return w.buf[(w.start+w.n-1)%len(w.buf)], true
}

func (w *BlockWindow) Len() int {
	return w.n
}

func (w *BlockWindow) Cap() int {
	return len(w.buf)
}
