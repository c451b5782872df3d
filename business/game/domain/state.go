package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

// WalletView is the wallet panel content.
type WalletView struct {
	Configured bool
	Address    common.Address
	Balance    decimal.Decimal
}

// GameState is the read-only snapshot handed to the presentation layer.
type GameState struct {
	Arena  ArenaSnapshot
	Score  int
	Caught [chain.NumCadences]int

	// Race is the current or last race; HasRace is false before the first submit.
	Race    Race
	HasRace bool
	History []Race
	Events  []RaceEvent // most recent last

	Windows     [chain.NumCadences][]ObservedBlock
	Connections [chain.NumCadences]chain.ConnectionStatus
	Stats       Stats
	Wallet      WalletView

	Submitting bool
	LastError  string
	Frame      uint64
	Now        time.Time
}

// ActiveTx returns the tracked transaction, empty before the first submit.
func (g GameState) ActiveTx() chain.TxID {
	if !g.HasRace {
		return ""
	}
	return g.Race.TxID
}

// Confirmed reports the per-cadence confirmed flag.
func (g GameState) Confirmed(c chain.Cadence) bool {
	return g.HasRace && g.Race.Results[c].Confirmed
}

// BestLatency reports the per-cadence best latency, if confirmed.
func (g GameState) BestLatency(c chain.Cadence) (time.Duration, bool) {
	if !g.Confirmed(c) {
		return 0, false
	}
	return g.Race.Results[c].BestLatency, true
}
