package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Block is one observed block of a cadence. For the flash cadence it is a
// single flashblock: Transactions holds only the transactions it added.
type Block struct {
	Cadence      Cadence
	Number       uint64
	Hash         common.Hash
	ParentHash   common.Hash
	Timestamp    time.Time
	GasLimit     uint64
	GasUsed      uint64
	Transactions []TxID

	// Flashblock position within its payload; zero for standard blocks.
	PayloadID string
	Index     uint64
}

// BlockIdentity is the dedup key of a block.
type BlockIdentity struct {
	Cadence Cadence
	Number  uint64
	Hash    common.Hash
}

// Identity returns the block's dedup key.
func (b *Block) Identity() BlockIdentity {
	return BlockIdentity{Cadence: b.Cadence, Number: b.Number, Hash: b.Hash}
}

// ContainsTx reports whether id is among the block's transactions.
func (b *Block) ContainsTx(id TxID) bool {
	if id.IsZero() {
		return false
	}
	for _, tx := range b.Transactions {
		if tx.Equal(id) {
			return true
		}
	}
	return false
}

// BlockUpdate is one item of a block subscription. Reset marks the start of
// a fresh connection: blocks seen before it may be delivered again.
type BlockUpdate struct {
	Block *Block
	Reset bool
}

// Receipt is the result of a receipt query.
type Receipt struct {
	Confirmed   bool
	BlockNumber uint64
	// Pending is set when the tx sits in the speculative pending block
	// without a receipt yet.
	Pending bool
}

// WalletInfo describes the submitting account.
type WalletInfo struct {
	Address common.Address
	Balance decimal.Decimal // ETH
}

// ConnectionState represents the state of a block source.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StatePolling      ConnectionState = "polling"
)

// Healthy reports whether blocks are flowing from some source.
func (s ConnectionState) Healthy() bool {
	return s == StateConnected || s == StatePolling
}

// ConnectionStatus contains detailed connection information.
type ConnectionStatus struct {
	Cadence       Cadence
	State         ConnectionState
	LastBlock     uint64
	LastUpdate    time.Time
	Reconnects    int
	UsingFallback bool
}
