package domain

import (
	"math"
	"math/rand/v2"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

// ArenaConfig sizes the playfield in terminal cells.
type ArenaConfig struct {
	Width       int
	Height      int
	PaddleWidth int
	BlockWidth  float64

	// Per cadence, in rows per frame, cells, and points.
	Speeds [chain.NumCadences]float64
	Widths [chain.NumCadences]float64
	Points [chain.NumCadences]int
}

// DefaultArenaConfig keeps the 2:3 fall speed ratio and 80% flash width.
func DefaultArenaConfig(width, height, paddleWidth int) ArenaConfig {
	const blockWidth = 8
	cfg := ArenaConfig{
		Width:       width,
		Height:      height,
		PaddleWidth: paddleWidth,
		BlockWidth:  blockWidth,
	}
	cfg.Speeds[chain.Standard] = 0.5
	cfg.Speeds[chain.Flash] = 0.75
	cfg.Widths[chain.Standard] = blockWidth
	cfg.Widths[chain.Flash] = blockWidth * 0.8
	cfg.Points[chain.Standard] = 10
	cfg.Points[chain.Flash] = 5
	return cfg
}

// FallingBlock is a block on screen. Y is the top row; blocks are one row tall.
type FallingBlock struct {
	ID      uint64
	Cadence chain.Cadence
	Number  uint64
	TxCount int
	X, Y    float64
	Width   float64
	UserTx  bool
}

// CatchEvent reports a block landing on the paddle.
type CatchEvent struct {
	Block  FallingBlock
	Points int
}

// ArenaSnapshot is a copy of the arena for rendering.
type ArenaSnapshot struct {
	Width, Height int
	PaddleX       int
	PaddleWidth   int
	Blocks        []FallingBlock
	Score         int
	Caught        [chain.NumCadences]int
	Missed        [chain.NumCadences]int
}

// Arena is the falling-block playfield. It is not safe for concurrent use.
type Arena struct {
	cfg     ArenaConfig
	rng     *rand.Rand
	blocks  []FallingBlock
	paddleX int
	nextID  uint64
	score   int
	caught  [chain.NumCadences]int
	missed  [chain.NumCadences]int
}

// NewArena creates an arena with the paddle centred.
func NewArena(cfg ArenaConfig, seed uint64) *Arena {
	return &Arena{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		paddleX: (cfg.Width - cfg.PaddleWidth) / 2,
	}
}

// Spawn drops a block for ev at a random column above the top row.
func (a *Arena) Spawn(ev BlockEvent) FallingBlock {
	w := a.cfg.Widths[ev.Cadence]
	a.nextID++
	b := FallingBlock{
		ID:      a.nextID,
		Cadence: ev.Cadence,
		Number:  ev.Block.Number,
		TxCount: len(ev.Block.Transactions),
		X:       a.rng.Float64() * math.Max(0, float64(a.cfg.Width)-w),
		Y:       -1,
		Width:   w,
		UserTx:  ev.ContainsUserTx,
	}
	a.blocks = append(a.blocks, b)
	return b
}

// MovePaddle shifts the paddle by dx cells, clamped to the arena.
func (a *Arena) MovePaddle(dx int) {
	a.SetPaddle(a.paddleX + dx)
}

// SetPaddle places the paddle's left edge at x, clamped to the arena.
func (a *Arena) SetPaddle(x int) {
	a.paddleX = max(0, min(x, a.cfg.Width-a.cfg.PaddleWidth))
}

func (a *Arena) paddleRow() float64 {
	return float64(a.cfg.Height - 1)
}

// Step advances every block one frame. Blocks whose bottom edge reaches the
// paddle row while overlapping the paddle are caught and removed; blocks
// falling past the floor are dropped.
func (a *Arena) Step() []CatchEvent {
	var events []CatchEvent
	row := a.paddleRow()
	left, right := float64(a.paddleX), float64(a.paddleX+a.cfg.PaddleWidth)

	kept := a.blocks[:0]
	for _, b := range a.blocks {
		prevBottom := b.Y + 1
		b.Y += a.cfg.Speeds[b.Cadence]
		bottom := b.Y + 1

		if prevBottom <= row && bottom >= row && b.X+b.Width > left && b.X < right {
			points := a.cfg.Points[b.Cadence]
			a.score += points
			a.caught[b.Cadence]++
			events = append(events, CatchEvent{Block: b, Points: points})
			continue
		}

		if b.Y >= float64(a.cfg.Height) {
			a.missed[b.Cadence]++
			continue
		}
		kept = append(kept, b)
	}
	clear(a.blocks[len(kept):])
	a.blocks = kept

	return events
}

// Score returns the total points.
func (a *Arena) Score() int {
	return a.score
}

// Snapshot copies the arena state.
func (a *Arena) Snapshot() ArenaSnapshot {
	blocks := make([]FallingBlock, len(a.blocks))
	copy(blocks, a.blocks)
	return ArenaSnapshot{
		Width:       a.cfg.Width,
		Height:      a.cfg.Height,
		PaddleX:     a.paddleX,
		PaddleWidth: a.cfg.PaddleWidth,
		Blocks:      blocks,
		Score:       a.score,
		Caught:      a.caught,
		Missed:      a.missed,
	}
}
