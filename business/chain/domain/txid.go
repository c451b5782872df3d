package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TxID identifies a transaction. Sources disagree on hex case, so
// comparisons are case-insensitive.
type TxID string

// TxIDFromHash converts a go-ethereum hash.
func TxIDFromHash(h common.Hash) TxID {
	return TxID(h.Hex())
}

// Equal compares ignoring case.
func (t TxID) Equal(other TxID) bool {
	return strings.EqualFold(string(t), string(other))
}

// IsZero reports whether no transaction is identified.
func (t TxID) IsZero() bool {
	return t == ""
}

// Hash parses the id as a 32-byte hash.
func (t TxID) Hash() common.Hash {
	return common.HexToHash(string(t))
}

// Short renders 0x1234…abcd for display.
func (t TxID) Short() string {
	s := string(t)
	if len(s) <= 14 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}

func (t TxID) String() string {
	return string(t)
}
